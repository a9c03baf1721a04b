package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	tea "github.com/charmbracelet/bubbletea"
)

// HelpPage is one page of the help overlay.
type HelpPage struct {
	ID      string
	Title   string
	Content string // Markdown
}

// HelpModel is the help overlay: a few markdown pages rendered with glamour.
type HelpModel struct {
	pages        []HelpPage
	currentPage  int
	scrollOffset int
	width        int
	height       int
	theme        Theme
	shouldClose  bool

	renderer      *glamour.TermRenderer
	rendererWidth int
	rendered      map[string]string
}

// NewHelpModel creates the overlay with the default pages.
func NewHelpModel(theme Theme) HelpModel {
	return HelpModel{
		pages:    defaultHelpPages(),
		width:    80,
		height:   24,
		theme:    theme,
		rendered: make(map[string]string),
	}
}

// Update handles keys while the overlay is open.
func (m HelpModel) Update(msg tea.Msg) (HelpModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "esc", "q", "?":
		m.shouldClose = true
	case "right", "l", "n", "tab":
		m.NextPage()
	case "left", "h", "p", "shift+tab":
		m.PrevPage()
	case "j", "down":
		m.scrollOffset++
	case "k", "up":
		if m.scrollOffset > 0 {
			m.scrollOffset--
		}
	case "g", "home":
		m.scrollOffset = 0
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		m.JumpToPage(int(keyMsg.String()[0]-'0') - 1)
	}
	return m, nil
}

// View renders the current page.
func (m *HelpModel) View() string {
	if len(m.pages) == 0 {
		return ""
	}
	page := m.pages[m.currentPage]
	r := m.theme.Renderer

	var b strings.Builder
	title := r.NewStyle().Bold(true).Foreground(m.theme.Primary).Render(page.Title)
	counter := r.NewStyle().Foreground(m.theme.Subtext).
		Render(fmt.Sprintf("  %d/%d", m.currentPage+1, len(m.pages)))
	b.WriteString(title + counter + "\n")

	lines := strings.Split(m.renderPage(page), "\n")
	visible := m.height - 4
	if visible < 3 {
		visible = 3
	}
	maxOffset := len(lines) - visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.scrollOffset > maxOffset {
		m.scrollOffset = maxOffset
	}
	end := m.scrollOffset + visible
	if end > len(lines) {
		end = len(lines)
	}
	b.WriteString(strings.Join(lines[m.scrollOffset:end], "\n"))
	b.WriteString("\n")
	b.WriteString(m.theme.Status.Render("←/→ page • j/k scroll • esc close"))
	return b.String()
}

// renderPage renders markdown through glamour, falling back to the raw text
// when the renderer cannot be built.
func (m *HelpModel) renderPage(page HelpPage) string {
	width := m.width - 4
	if width < 40 {
		width = 40
	}
	if m.renderer == nil || m.rendererWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return page.Content
		}
		m.renderer = r
		m.rendererWidth = width
		m.rendered = make(map[string]string)
	}
	if out, ok := m.rendered[page.ID]; ok {
		return out
	}
	out, err := m.renderer.Render(page.Content)
	if err != nil {
		return page.Content
	}
	out = strings.Trim(out, "\n")
	m.rendered[page.ID] = out
	return out
}

// NextPage advances to the next page.
func (m *HelpModel) NextPage() {
	if m.currentPage < len(m.pages)-1 {
		m.currentPage++
		m.scrollOffset = 0
	}
}

// PrevPage goes back one page.
func (m *HelpModel) PrevPage() {
	if m.currentPage > 0 {
		m.currentPage--
		m.scrollOffset = 0
	}
}

// JumpToPage shows page index if it exists.
func (m *HelpModel) JumpToPage(index int) {
	if index >= 0 && index < len(m.pages) {
		m.currentPage = index
		m.scrollOffset = 0
	}
}

// SetSize updates the overlay dimensions.
func (m *HelpModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// CurrentPageID returns the ID of the page on screen.
func (m HelpModel) CurrentPageID() string {
	if len(m.pages) == 0 {
		return ""
	}
	return m.pages[m.currentPage].ID
}

// ShouldClose reports whether the user asked to close the overlay.
func (m HelpModel) ShouldClose() bool {
	return m.shouldClose
}

// ResetClose clears the close request so the overlay can be reopened.
func (m *HelpModel) ResetClose() {
	m.shouldClose = false
}

func defaultHelpPages() []HelpPage {
	return []HelpPage{
		{
			ID:    "keys",
			Title: "Keys",
			Content: `# Moving through the loop

The timeline scrolls by itself. When it reaches the end the loop wraps:
flags are forgotten, the text returns to how it started and the loop
counter goes up.

| Key | Action |
|-----|--------|
| **space** | pause or resume scrolling |
| **+** / **-** | change scroll speed |
| **↑ ↓ pgup pgdn** | scroll by hand |
| **tab** / **shift+tab** | focus the next or previous token |
| **enter** or click | activate the focused token |
| **r** | jump to the next loop |
| **y** | copy the raw text of the entry under the clock |
| **?** | toggle this help |
| **q** | quit |
`,
		},
		{
			ID:    "markup",
			Title: "Reading the timeline",
			Content: `# Tokens

* **◆ Triggers** reveal hidden actions in other entries. Some also give
  you a flag that changes how later entries read in this loop.
* **▶ Actions** rewrite another moment of the timeline.
* **◇ Hidden actions** are greyed out until a trigger reveals them.
* **✓ Used tokens** have already done their work in this loop.

Revealed actions stay revealed across loops. Everything else resets.
`,
		},
		{
			ID:    "authoring",
			Title: "Authoring",
			Content: "# Markup\n\n" +
				"```\n" +
				"[label:10-03-06-20:1:(cellar stairs) #flag]  trigger\n" +
				"[label:10-03-06-20 -> 1, 10-03-07-40 -> 0]   action\n" +
				"(label:10-03-06-45 -> 1)                     hidden action\n" +
				"```\n\n" +
				"Used tokens are marked ✓ and stay used until the loop resets.\n" +
				"Braces are plain text.\n\n" +
				"Time IDs are `MM-DD-HH-MM` (or `MM-DD` for date-only entries).\n" +
				"Run `loopline --robot-lint` to check every reference.\n",
		},
	}
}
