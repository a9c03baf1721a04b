package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderSparkline creates a textual bar of val (0.0 - 1.0).
func RenderSparkline(val float64, width int) string {
	if width <= 0 {
		return ""
	}

	chars := []string{" ", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

	if math.IsNaN(val) || val < 0 {
		val = 0
	}
	if val > 1 {
		val = 1
	}

	fullChars := int(val * float64(width))
	remainder := (val * float64(width)) - float64(fullChars)

	var sb strings.Builder
	sb.WriteString(strings.Repeat("█", fullChars))

	if fullChars < width {
		idx := int(remainder * float64(len(chars)))
		// Ensure non-zero values are visible
		if idx == 0 && remainder > 0 {
			idx = 1
		}
		if idx >= len(chars) {
			idx = len(chars) - 1
		}
		sb.WriteString(chars[idx])
	}

	if padding := width - fullChars - 1; padding > 0 {
		sb.WriteString(strings.Repeat(" ", padding))
	}

	return sb.String()
}

// LoopProgress returns how far through the timeline the viewport is, 0 at the
// top and 1 at the wrap point.
func LoopProgress(scrollTop, viewportHeight, scrollHeight float64) float64 {
	span := scrollHeight - viewportHeight
	if span <= 0 {
		return 1
	}
	p := scrollTop / span
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// SpeedColor returns a color for the autoscroll multiplier: slow speeds are
// cool, fast speeds hot.
func SpeedColor(speed float64, t Theme) lipgloss.TerminalColor {
	switch {
	case speed >= 3:
		return t.Flag
	case speed >= 1.5:
		return t.Executed
	case speed >= 1:
		return t.Action
	default:
		return t.Trigger
	}
}

// LoopColors cycles through one color per loop so a wrap is visible at a
// glance.
var LoopColors = []lipgloss.Color{
	lipgloss.Color("#3282b8"), // blue
	lipgloss.Color("#96CEB4"), // sage green
	lipgloss.Color("#F7DC6F"), // gold
	lipgloss.Color("#e94560"), // coral
	lipgloss.Color("#BB8FCE"), // lavender
	lipgloss.Color("#4ECDC4"), // teal
}

// GetLoopColor returns the badge color for loop n.
func GetLoopColor(n int) lipgloss.Color {
	if n < 0 {
		n = -n
	}
	return LoopColors[n%len(LoopColors)]
}

// RenderLoopBadge renders "Loop: n" in the loop's color.
func RenderLoopBadge(n int, t Theme) string {
	return t.Renderer.NewStyle().
		Foreground(GetLoopColor(n)).
		Bold(true).
		Render(fmt.Sprintf("Loop: %d", n))
}
