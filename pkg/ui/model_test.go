package ui_test

import (
	"io"
	"log"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Dicklesworthstone/loopline/pkg/engine"
	"github.com/Dicklesworthstone/loopline/pkg/loader"
	"github.com/Dicklesworthstone/loopline/pkg/markup"
	"github.com/Dicklesworthstone/loopline/pkg/timeline"
	"github.com/Dicklesworthstone/loopline/pkg/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type harness struct {
	m      *ui.Model
	eng    *engine.Engine
	sched  *engine.ManualScheduler
	copied string
}

// newHarness loads the lighthouse story into an 80x12 terminal: eight
// timeline rows, every entry on one line.
func newHarness(t *testing.T) *harness {
	t.Helper()
	story, err := loader.LoadStoryFromFile("../../tests/testdata/prison.yaml")
	if err != nil {
		t.Fatalf("LoadStoryFromFile: %v", err)
	}
	store, errs := timeline.FromStory(story)
	if len(errs) > 0 {
		t.Fatalf("unexpected data errors: %v", errs)
	}
	h := &harness{sched: engine.NewManualScheduler(time.Unix(0, 0))}
	h.eng = engine.New(store, nil)
	h.eng.SetLogger(log.New(io.Discard, "", 0))
	h.m = ui.NewModel(h.eng, ui.Options{
		Story:     story,
		Config:    engine.DefaultConfig(),
		Scheduler: h.sched,
		Renderer:  lipgloss.NewRenderer(io.Discard),
		Logger:    log.New(io.Discard, "", 0),
		Clipboard: func(s string) error {
			h.copied = s
			return nil
		},
	})
	h.send(tea.WindowSizeMsg{Width: 80, Height: 12})
	return h
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	_, cmd := h.m.Update(msg)
	return cmd
}

func (h *harness) key(s string) tea.Cmd {
	switch s {
	case "tab":
		return h.send(tea.KeyMsg{Type: tea.KeyTab})
	case "enter":
		return h.send(tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		return h.send(tea.KeyMsg{Type: tea.KeyEsc})
	case " ":
		return h.send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	}
	return h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestModelShowsClockAfterResize(t *testing.T) {
	h := newHarness(t)

	if got := h.m.ScrollHeight(); got != 12 {
		t.Errorf("ScrollHeight = %v, want 12", got)
	}
	if got := h.m.ViewportHeight(); got != 8 {
		t.Errorf("ViewportHeight = %v, want 8", got)
	}

	// Viewport center is row 4, equidistant from the 06:20 and 06:45 boxes.
	clock, date := h.m.Clock()
	if clock != "06:20" || date != "Oct 3" {
		t.Errorf("Clock = %q %q, want 06:20 Oct 3", clock, date)
	}

	view := h.m.View()
	for _, want := range []string{"The Lighthouse Keeper", "Loop: 0", "1.0x", "a door slams", "06:00"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "[a door slams") {
		t.Error("view shows raw markup")
	}
}

func TestModelTabEnterActivatesTrigger(t *testing.T) {
	h := newHarness(t)

	h.key("tab")
	id, ord, ok := h.m.Focused()
	if !ok || id != "10-03-06-00" || ord != 0 {
		t.Fatalf("Focused = %s %d %v, want 10-03-06-00 0", id, ord, ok)
	}

	h.key("enter")

	if _, _, ok := h.m.Focused(); ok {
		t.Error("focus should clear after activation")
	}
	wake, _ := h.eng.Store().FindByID("10-03-06-00")
	if !strings.Contains(wake.Scripts[0], markup.ExecutedMarker("a door slams")) {
		t.Errorf("trigger not disabled: %q", wake.Scripts[0])
	}
	rocks, _ := h.eng.Store().FindByID("10-03-06-45")
	if rocks.CurrentVariant != 1 {
		t.Errorf("06:45 variant = %d, want 1 after flag", rocks.CurrentVariant)
	}
	if !strings.Contains(h.m.Status(), "revealed") {
		t.Errorf("Status = %q, want unlock message", h.m.Status())
	}
	if !strings.Contains(h.m.View(), "A figure on the rocks") {
		t.Error("view not refreshed after activation")
	}

	// The trigger is spent; tab now lands on the next live token.
	h.key("tab")
	id, _, _ = h.m.Focused()
	if id != "10-03-07-10" {
		t.Errorf("next focus = %s, want 10-03-07-10", id)
	}
}

func TestModelClickActivatesAction(t *testing.T) {
	h := newHarness(t)

	// 07:10 is the fourth block (rows 6-7); the token starts after "You could ".
	x, y := 7+len("You could "), 2+6
	id, ord, ok := h.m.TokenAtCell(x, y)
	if !ok || id != "10-03-07-10" || ord != 0 {
		t.Fatalf("TokenAtCell = %s %d %v", id, ord, ok)
	}
	if _, _, ok := h.m.TokenAtCell(0, y); ok {
		t.Error("gutter should not hit a token")
	}

	h.send(tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})

	tide, _ := h.eng.Store().FindByID("10-03-07-40")
	if tide.CurrentVariant != 1 {
		t.Errorf("07:40 variant = %d, want 1", tide.CurrentVariant)
	}
	if got := h.m.Status(); got != "10-03-07-40 changed" {
		t.Errorf("Status = %q", got)
	}
}

func TestModelAutoscrollWraps(t *testing.T) {
	h := newHarness(t)

	if h.m.Controller().State() != engine.Idle {
		t.Fatalf("controller should wait for the start delay")
	}
	// Start at 600ms; at 30 rows/s the 3.5-row span is crossed on the
	// eighth 16ms tick, and 800ms leaves no time for a second wrap.
	h.sched.Advance(800 * time.Millisecond)

	if got := h.m.Loop(); got != 1 {
		t.Errorf("Loop = %d, want 1", got)
	}
	if got := h.m.Status(); got != "loop 1 begins" {
		t.Errorf("Status = %q", got)
	}
	wake, _ := h.eng.Store().FindByID("10-03-06-00")
	if wake.CurrentVariant != 1 {
		t.Errorf("06:00 variant = %d, want loop-trigger variant 1", wake.CurrentVariant)
	}
	if h.m.ScrollTop() <= 0 || h.m.ScrollTop() >= 3.5 {
		t.Errorf("ScrollTop = %v, want a partial scroll into loop 1", h.m.ScrollTop())
	}
}

func TestModelSpeedAndPause(t *testing.T) {
	h := newHarness(t)

	h.key("+")
	if got := h.m.Controller().Speed(); math.Abs(got-1.2) > 1e-9 {
		t.Errorf("speed after + = %v, want 1.2", got)
	}
	h.key("-")
	h.key("-")
	if got := h.m.Controller().Speed(); math.Abs(got-0.8) > 1e-9 {
		t.Errorf("speed after -- = %v, want 0.8", got)
	}

	h.sched.Advance(600 * time.Millisecond)
	h.key(" ")
	if h.m.Controller().State() != engine.Paused {
		t.Fatalf("State = %v, want paused", h.m.Controller().State())
	}
	if !strings.Contains(h.m.View(), "paused") {
		t.Error("header should show paused")
	}

	before := h.m.ScrollTop()
	h.sched.Advance(500 * time.Millisecond)
	if h.m.ScrollTop() != before {
		t.Error("paused controller should not scroll")
	}

	h.key("j")
	if h.m.ScrollTop() != before+1 {
		t.Errorf("manual scroll: ScrollTop = %v, want %v", h.m.ScrollTop(), before+1)
	}
}

func TestModelCopyEntryUnderClock(t *testing.T) {
	h := newHarness(t)

	h.key("y")

	want := "The keeper's room is cold. A ledger lies open on the desk."
	if h.copied != want {
		t.Errorf("copied %q, want %q", h.copied, want)
	}
	if h.m.Status() != "copied 10-03-06-20" {
		t.Errorf("Status = %q", h.m.Status())
	}
}

func TestModelHelpOverlay(t *testing.T) {
	h := newHarness(t)

	h.key("?")
	if !strings.Contains(h.m.View(), "Keys") {
		t.Error("help overlay not shown")
	}
	// Keys go to the overlay while it is open.
	h.key("+")
	if h.m.Controller().Speed() != 1.0 {
		t.Error("speed changed behind the help overlay")
	}

	h.key("esc")
	if !strings.Contains(h.m.View(), "The Lighthouse Keeper") {
		t.Error("timeline not restored after closing help")
	}
}

func TestModelQuit(t *testing.T) {
	h := newHarness(t)
	h.sched.Advance(600 * time.Millisecond)

	cmd := h.key("q")
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit command did not produce tea.QuitMsg")
	}
	if h.m.Controller().State() != engine.Idle {
		t.Error("controller still running after quit")
	}
	if h.sched.Active() != 0 {
		t.Errorf("%d jobs left after quit", h.sched.Active())
	}
}

func TestModelResizeKeepsController(t *testing.T) {
	h := newHarness(t)
	h.sched.Advance(600 * time.Millisecond)
	jobs := h.sched.Active()

	h.send(tea.WindowSizeMsg{Width: 40, Height: 20})

	if h.sched.Active() != jobs {
		t.Errorf("resize changed scheduled jobs: %d -> %d", jobs, h.sched.Active())
	}
	if h.m.ScrollHeight() <= 12 {
		t.Errorf("narrower terminal should wrap to more rows, got %v", h.m.ScrollHeight())
	}
}
