// Package ui is the terminal host for a running timeline. The Model is the
// scroll container and the clock display the engine's loop controller
// drives, and it turns keys and mouse clicks into token activations.
package ui

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Dicklesworthstone/loopline/pkg/analysis"
	"github.com/Dicklesworthstone/loopline/pkg/engine"
	"github.com/Dicklesworthstone/loopline/pkg/model"
	"github.com/Dicklesworthstone/loopline/pkg/watch"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	headerHeight = 2 // title row + border
	footerHeight = 2 // status row + key help
	gutterWidth  = 7 // "HH:MM" plus padding

	// SpeedStep is the change applied by one faster/slower key press.
	SpeedStep = 0.2
)

// Options configures a Model.
type Options struct {
	Title  string
	Story  model.Story // used for the lint badge and as the reload baseline
	Config engine.Config

	// Scheduler drives the loop controller. nil uses tea.Tick, which is what
	// a running program wants; tests pass an engine.ManualScheduler.
	Scheduler engine.Scheduler

	// Observer receives engine events alongside the model, e.g. a journal.
	Observer engine.Observer

	Watcher   *watch.Watcher
	Reloader  *watch.Reloader
	LintCache *analysis.Cache

	Renderer  *lipgloss.Renderer
	Logger    *log.Logger
	Clipboard func(string) error
}

// changeMsg carries a debounced file change from the watcher.
type changeMsg watch.Change

type placed struct {
	Block
	top int
}

type focusRef struct {
	timeID  string
	ordinal int
}

// Model is the bubbletea model for the timeline view.
type Model struct {
	eng   *engine.Engine
	ctrl  *engine.Controller
	sched engine.Scheduler

	title string
	story model.Story
	theme Theme
	keys  KeyMap
	help  help.Model

	width, height int
	ready         bool
	scrollTop     float64
	cache         map[string]Block
	blocks        []placed
	boxes         []engine.Box
	total         int

	clockTime string
	clockDate string
	loop      int
	speed     float64

	focus    *focusRef
	status   string
	statusOK bool

	showHelp bool
	helpView HelpModel

	watcher   *watch.Watcher
	reloader  *watch.Reloader
	lintCache *analysis.Cache
	lint      *analysis.Report

	logger *log.Logger
	copy   func(string) error
}

// NewModel builds the view around eng. The controller starts once the first
// window size arrives.
func NewModel(eng *engine.Engine, opts Options) *Model {
	sched := opts.Scheduler
	if sched == nil {
		sched = newTeaScheduler()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = lipgloss.DefaultRenderer()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	copyFn := opts.Clipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	lintCache := opts.LintCache
	if lintCache == nil {
		lintCache = analysis.NewCache(time.Minute)
	}
	title := opts.Title
	if title == "" {
		title = opts.Story.Title
	}

	theme := DefaultTheme(renderer)
	m := &Model{
		eng:       eng,
		sched:     sched,
		title:     title,
		story:     opts.Story,
		theme:     theme,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		width:     80,
		height:    24,
		cache:     make(map[string]Block),
		helpView:  NewHelpModel(theme),
		watcher:   opts.Watcher,
		reloader:  opts.Reloader,
		lintCache: lintCache,
		logger:    logger,
		copy:      copyFn,
		statusOK:  true,
	}
	m.ctrl = engine.NewController(eng, sched, opts.Config)
	m.speed = m.ctrl.Speed()
	m.loop = eng.State().LoopCount()
	eng.SetObserver(engine.Observers{opts.Observer, m})
	m.refreshLint()
	return m
}

// Controller returns the loop controller driving the view.
func (m *Model) Controller() *engine.Controller {
	return m.ctrl
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForChange()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.helpView.SetSize(msg.Width, msg.Height)
		m.relayout()
		if !m.ready {
			m.ready = true
			m.ctrl.Init(m, m)
		} else {
			m.SetScrollTop(m.scrollTop)
			m.ctrl.SyncClock()
		}

	case jobMsg:
		if ts, ok := m.sched.(*teaScheduler); ok {
			ts.fire(msg)
		}

	case changeMsg:
		m.applyReload()
		cmds = append(cmds, m.waitForChange())

	case tea.MouseMsg:
		m.handleMouse(msg)

	case tea.KeyMsg:
		if m.showHelp {
			m.helpView, _ = m.helpView.Update(msg)
			if m.helpView.ShouldClose() {
				m.showHelp = false
				m.helpView.ResetClose()
			}
			break
		}
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	if ts, ok := m.sched.(*teaScheduler); ok {
		cmds = append(cmds, ts.drain())
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Stop()
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Pause):
		m.ctrl.TogglePause()
		m.setStatus(m.ctrl.State().String())
	case key.Matches(msg, m.keys.Faster):
		m.ctrl.AdjustSpeed(SpeedStep)
	case key.Matches(msg, m.keys.Slower):
		m.ctrl.AdjustSpeed(-SpeedStep)
	case key.Matches(msg, m.keys.Restart):
		m.focus = nil
		m.ctrl.Wrap()
	case key.Matches(msg, m.keys.Up):
		m.scrollBy(-1)
	case key.Matches(msg, m.keys.Down):
		m.scrollBy(1)
	case key.Matches(msg, m.keys.PageUp):
		m.scrollBy(-m.viewportHeight())
	case key.Matches(msg, m.keys.PageDown):
		m.scrollBy(m.viewportHeight())
	case key.Matches(msg, m.keys.Next):
		m.moveFocus(1)
	case key.Matches(msg, m.keys.Prev):
		m.moveFocus(-1)
	case key.Matches(msg, m.keys.Activate):
		if m.focus != nil {
			m.activate(m.focus.timeID, m.focus.ordinal)
		}
	case key.Matches(msg, m.keys.Copy):
		m.copyCurrent()
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.scrollBy(-3)
		return
	case tea.MouseButtonWheelDown:
		m.scrollBy(3)
		return
	}
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return
	}
	if timeID, ordinal, ok := m.TokenAtCell(msg.X, msg.Y); ok {
		m.activate(timeID, ordinal)
	}
}

// TokenAtCell maps a screen cell to the interactive token drawn there.
func (m *Model) TokenAtCell(x, y int) (string, int, bool) {
	row := y - headerHeight
	if row < 0 || row >= m.viewportHeight() {
		return "", 0, false
	}
	abs := int(m.scrollTop) + row
	for _, b := range m.blocks {
		if abs < b.top || abs >= b.top+len(b.Lines) {
			continue
		}
		ordinal, ok := b.HitAt(abs-b.top, x-gutterWidth)
		return b.TimeID, ordinal, ok
	}
	return "", 0, false
}

func (m *Model) activate(timeID string, ordinal int) {
	m.focus = nil
	ref, err := m.eng.TokenAt(timeID, ordinal)
	if err != nil {
		m.setError(err.Error())
		return
	}
	res, err := m.eng.Activate(ref)
	if err != nil {
		if errors.Is(err, engine.ErrNoToken) {
			m.setStatus("nothing left to do there")
		} else {
			m.setError(err.Error())
		}
		return
	}
	if !res.Executed() && res.FlagAcquired == "" {
		m.setStatus(fmt.Sprintf("%q did nothing", res.Label))
	}
	m.relayout()
	m.ctrl.SyncClock()
}

func (m *Model) scrollBy(rows int) {
	m.SetScrollTop(m.scrollTop + float64(rows))
	m.ctrl.OnScroll(time.Now())
}

// moveFocus steps through the interactive tokens in timeline order. With
// nothing focused it starts from the first token at or below the viewport.
func (m *Model) moveFocus(dir int) {
	type stop struct {
		ref  focusRef
		line int
	}
	var stops []stop
	for _, b := range m.blocks {
		for _, ord := range b.Ordinals() {
			line, _ := b.LineOf(ord)
			stops = append(stops, stop{ref: focusRef{timeID: b.TimeID, ordinal: ord}, line: b.top + line})
		}
	}
	if len(stops) == 0 {
		m.focus = nil
		return
	}

	idx := -1
	if m.focus != nil {
		for i, s := range stops {
			if s.ref == *m.focus {
				idx = (i + dir + len(stops)) % len(stops)
				break
			}
		}
	}
	if idx < 0 {
		idx = 0
		for i, s := range stops {
			if s.line >= int(m.scrollTop) {
				idx = i
				break
			}
		}
		if dir < 0 {
			idx = (idx - 1 + len(stops)) % len(stops)
		}
	}

	ref := stops[idx].ref
	m.focus = &ref
	line := stops[idx].line
	vh := m.viewportHeight()
	if line < int(m.scrollTop) || line >= int(m.scrollTop)+vh {
		m.SetScrollTop(float64(line - vh/3))
		m.ctrl.OnScroll(time.Now())
	}
}

func (m *Model) copyCurrent() {
	i := engine.Nearest(m.boxes, m.scrollTop, float64(m.viewportHeight()))
	if i < 0 {
		return
	}
	entry, ok := m.eng.Store().FindByID(m.boxes[i].TimeID)
	if !ok {
		return
	}
	if err := m.copy(entry.Text()); err != nil {
		m.setError("copy failed: " + err.Error())
		return
	}
	m.setStatus("copied " + entry.TimeID)
}

func (m *Model) waitForChange() tea.Cmd {
	if m.watcher == nil || m.reloader == nil {
		return nil
	}
	ch := m.watcher.Changes()
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return changeMsg(c)
	}
}

// applyReload swaps in the story on disk. The session survives; an invalid
// file is logged and the current story kept.
func (m *Model) applyReload() {
	r, changed, err := m.reloader.Check()
	if err != nil {
		m.logger.Printf("WARNING: reload failed, keeping current story: %v", err)
		m.setError("reload failed: " + err.Error())
		return
	}
	if !changed {
		return
	}
	for _, e := range r.DataErrs {
		m.logger.Printf("WARNING: %v", e)
	}
	m.story = r.Story
	m.cache = make(map[string]Block)
	m.focus = nil
	m.eng.Reload(r.Store)
	m.relayout()
	if m.ready {
		m.ctrl.Init(m, m)
	}
	m.refreshLint()
}

func (m *Model) refreshLint() {
	if len(m.story.Entries) == 0 {
		m.lint = nil
		return
	}
	m.lint, _ = analysis.LintStory(m.story, m.lintCache)
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusOK = true
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusOK = false
}

// Observe implements engine.Observer and turns engine events into status
// messages.
func (m *Model) Observe(ev engine.Event) {
	switch ev.Kind {
	case engine.EventFlag:
		m.setStatus("you now know: " + ev.Flag)
	case engine.EventUnlock:
		m.setStatus(fmt.Sprintf("revealed %q at %s", ev.Label, ev.TimeID))
	case engine.EventAction:
		m.setStatus(fmt.Sprintf("%s changed", ev.TimeID))
	case engine.EventSkip:
		if ev.Variant < 0 {
			m.setError(fmt.Sprintf("skipped target in %s: %s", ev.TimeID, ev.Detail))
		} else {
			m.setError(fmt.Sprintf("skipped %s:%d: %s", ev.TimeID, ev.Variant, ev.Detail))
		}
	case engine.EventWrap:
		m.setStatus(fmt.Sprintf("loop %d begins", ev.Session.LoopCount))
	case engine.EventReload:
		m.setStatus("story reloaded")
	}
}

// relayout wraps every entry to the current width, reusing blocks whose entry
// has not changed since it was last drawn.
func (m *Model) relayout() {
	width := m.contentWidth()
	m.blocks = m.blocks[:0]
	m.boxes = m.boxes[:0]
	top := 0
	for _, e := range m.eng.Store().Entries() {
		b, ok := m.cache[e.TimeID]
		if !ok || b.Generation != e.Generation || b.Width != width || b.Variant != e.DisplayedVariant() {
			b = LayoutEntry(e, width)
			m.cache[e.TimeID] = b
		}
		m.blocks = append(m.blocks, placed{Block: b, top: top})
		m.boxes = append(m.boxes, engine.Box{TimeID: e.TimeID, Top: float64(top), Height: float64(b.Height())})
		top += b.Height()
	}
	m.total = top
}

func (m *Model) contentWidth() int {
	w := m.width - gutterWidth - 1
	if w < 10 {
		w = 10
	}
	return w
}

func (m *Model) viewportHeight() int {
	h := m.height - headerHeight - footerHeight
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) maxScroll() float64 {
	v := float64(m.total - m.viewportHeight())
	if v < 0 {
		return 0
	}
	return v
}

// ScrollTop implements engine.Container.
func (m *Model) ScrollTop() float64 {
	return m.scrollTop
}

// SetScrollTop implements engine.Container.
func (m *Model) SetScrollTop(offset float64) {
	if offset > m.maxScroll() {
		offset = m.maxScroll()
	}
	if offset < 0 {
		offset = 0
	}
	m.scrollTop = offset
}

// ViewportHeight implements engine.Container.
func (m *Model) ViewportHeight() float64 {
	return float64(m.viewportHeight())
}

// ScrollHeight implements engine.Container.
func (m *Model) ScrollHeight() float64 {
	m.relayout()
	return float64(m.total)
}

// Boxes implements engine.Container. The loop controller reads boxes right
// after a wrap restored the text, so layout is refreshed first.
func (m *Model) Boxes() []engine.Box {
	m.relayout()
	return m.boxes
}

// ShowTime implements engine.Display.
func (m *Model) ShowTime(text string) { m.clockTime = text }

// ShowDate implements engine.Display.
func (m *Model) ShowDate(text string) { m.clockDate = text }

// ShowLoop implements engine.Display.
func (m *Model) ShowLoop(count int) { m.loop = count }

// ShowSpeed implements engine.Display.
func (m *Model) ShowSpeed(speed float64) { m.speed = speed }

// Clock returns the time and date currently shown.
func (m *Model) Clock() (string, string) {
	return m.clockTime, m.clockDate
}

// Loop returns the loop counter currently shown.
func (m *Model) Loop() int {
	return m.loop
}

// Status returns the status line text.
func (m *Model) Status() string {
	return m.status
}

// Focused returns the focused token, if any.
func (m *Model) Focused() (string, int, bool) {
	if m.focus == nil {
		return "", 0, false
	}
	return m.focus.timeID, m.focus.ordinal, true
}

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Loading timeline..."
	}
	if m.showHelp {
		return m.helpView.View()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderBody())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderHeader() string {
	r := m.theme.Renderer
	parts := []string{m.title}
	clock := r.NewStyle().Foreground(m.theme.Literal).Bold(true).Render(m.clockTime)
	if m.clockDate != "" {
		clock += " " + m.theme.Status.Render(m.clockDate)
	}
	parts = append(parts, clock, RenderLoopBadge(m.loop, m.theme))
	speed := r.NewStyle().Foreground(SpeedColor(m.speed, m.theme)).Render(fmt.Sprintf("%.1fx", m.speed))
	parts = append(parts, speed)
	if st := m.ctrl.State(); st == engine.Paused {
		parts = append(parts, m.theme.Error.Render("paused"))
	}
	return m.theme.Header.Width(m.width).Render(strings.Join(parts, "  "))
}

func (m *Model) renderBody() string {
	vh := m.viewportHeight()
	start := int(m.scrollTop)
	rows := make([]string, 0, vh)
	bi := 0
	for row := start; row < start+vh; row++ {
		for bi < len(m.blocks) && row >= m.blocks[bi].top+m.blocks[bi].Height() {
			bi++
		}
		if bi >= len(m.blocks) {
			rows = append(rows, "")
			continue
		}
		blk := m.blocks[bi]
		li := row - blk.top
		if li >= len(blk.Lines) {
			rows = append(rows, "")
			continue
		}
		gutter := strings.Repeat(" ", gutterWidth)
		if li == 0 {
			entry, _ := m.eng.Store().FindByID(blk.TimeID)
			if entry != nil {
				gutter = runewidth.FillRight(entry.TimeText, gutterWidth)
			}
		}
		rows = append(rows, m.theme.Gutter.Render(gutter)+m.renderLine(blk.TimeID, blk.Lines[li]))
	}
	return strings.Join(rows, "\n")
}

func (m *Model) renderLine(timeID string, line Line) string {
	var sb strings.Builder
	for _, run := range line {
		style := m.theme.TokenStyle(run.Kind)
		if m.focus != nil && m.focus.timeID == timeID && run.Ordinal >= 0 && m.focus.ordinal == run.Ordinal {
			style = m.theme.Focused.Inherit(style)
		}
		sb.WriteString(style.Render(run.Text))
	}
	return sb.String()
}

func (m *Model) renderStatus() string {
	left := m.theme.Status.Render(m.status)
	if !m.statusOK {
		left = m.theme.Error.Render(m.status)
	}

	var right []string
	if m.lint != nil {
		errs := m.lint.Count(analysis.SeverityError)
		warns := m.lint.Count(analysis.SeverityWarning)
		badge := fmt.Sprintf("lint %d/%d", errs, warns)
		if errs > 0 {
			right = append(right, m.theme.Error.Render(badge))
		} else {
			right = append(right, m.theme.Status.Render(badge))
		}
	}
	progress := LoopProgress(m.scrollTop, float64(m.viewportHeight()), float64(m.total))
	right = append(right, m.theme.Gutter.Render("["+RenderSparkline(progress, 10)+"]"))
	rightText := strings.Join(right, " ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(rightText)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + rightText
}
