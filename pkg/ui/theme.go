package ui

import (
	"github.com/Dicklesworthstone/loopline/pkg/markup"
	"github.com/charmbracelet/lipgloss"
)

// Theme holds the colors and styles of the timeline view.
type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor

	// Token colors
	Literal  lipgloss.AdaptiveColor
	Trigger  lipgloss.AdaptiveColor
	Action   lipgloss.AdaptiveColor
	Inactive lipgloss.AdaptiveColor
	Executed lipgloss.AdaptiveColor
	Flag     lipgloss.AdaptiveColor

	// Styles
	Base    lipgloss.Style
	Header  lipgloss.Style
	Gutter  lipgloss.Style
	Focused lipgloss.Style
	Status  lipgloss.Style
	Error   lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (Adaptive).
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		// Dracula / Light Mode equivalent
		Primary:   lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#BD93F9"}, // Purple
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}, // Gray
		Subtext:   lipgloss.AdaptiveColor{Light: "#999999", Dark: "#BFBFBF"}, // Dim
		Border:    lipgloss.AdaptiveColor{Light: "#DDDDDD", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#EEEEEE", Dark: "#44475A"},

		Literal:  lipgloss.AdaptiveColor{Light: "#333333", Dark: "#F8F8F2"},
		Trigger:  lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}, // Cyan
		Action:   lipgloss.AdaptiveColor{Light: "#008000", Dark: "#50FA7B"}, // Green
		Inactive: lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#6272A4"}, // Gray
		Executed: lipgloss.AdaptiveColor{Light: "#B06000", Dark: "#FFB86C"}, // Orange
		Flag:     lipgloss.AdaptiveColor{Light: "#CC0066", Dark: "#FF79C6"}, // Pink
	}

	t.Base = r.NewStyle().Foreground(t.Literal)

	t.Header = r.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(t.Border)

	t.Gutter = r.NewStyle().Foreground(t.Secondary)

	t.Focused = r.NewStyle().
		Background(t.Highlight).
		Bold(true)

	t.Status = r.NewStyle().Foreground(t.Subtext)

	t.Error = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"})

	return t
}

// TokenColor returns the foreground for a segment kind.
func (t Theme) TokenColor(kind markup.Kind) lipgloss.AdaptiveColor {
	switch kind {
	case markup.Trigger:
		return t.Trigger
	case markup.ActiveAction:
		return t.Action
	case markup.InactiveAction:
		return t.Inactive
	case markup.Executed:
		return t.Executed
	default:
		return t.Literal
	}
}

// TokenStyle returns the style used to draw a segment of the given kind.
func (t Theme) TokenStyle(kind markup.Kind) lipgloss.Style {
	s := t.Base.Foreground(t.TokenColor(kind))
	switch kind {
	case markup.Trigger, markup.ActiveAction:
		s = s.Underline(true)
	case markup.InactiveAction:
		s = s.Faint(true)
	case markup.Executed:
		s = s.Italic(true)
	}
	return s
}

// GetKindMarker returns the legend glyph and color for a segment kind.
func (t Theme) GetKindMarker(kind markup.Kind) (string, lipgloss.AdaptiveColor) {
	switch kind {
	case markup.Trigger:
		return "◆", t.Trigger
	case markup.ActiveAction:
		return "▶", t.Action
	case markup.InactiveAction:
		return "◇", t.Inactive
	case markup.Executed:
		return "✓", t.Executed
	default:
		return "•", t.Subtext
	}
}
