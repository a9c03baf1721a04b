package engine

import "math"

// Box is the laid-out position of one entry inside the scroll container, in
// whatever unit the host scrolls by (pixels, terminal rows).
type Box struct {
	TimeID string
	Top    float64
	Height float64
}

// Nearest returns the index of the box whose midpoint is closest to the
// vertical center of the viewport, or -1 when boxes is empty. Ties go to the
// earlier box.
func Nearest(boxes []Box, scrollTop, viewportHeight float64) int {
	center := scrollTop + viewportHeight/2
	best, bestDist := -1, math.Inf(1)
	for i, b := range boxes {
		dist := math.Abs(b.Top + b.Height/2 - center)
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// Container is the scrollable view the host exposes: one box per entry.
type Container interface {
	ScrollTop() float64
	SetScrollTop(offset float64)
	ViewportHeight() float64
	ScrollHeight() float64
	Boxes() []Box
}

// Display receives the values shown next to the timeline. Any method may be
// a no-op if the host has no such target.
type Display interface {
	ShowTime(text string)
	ShowDate(text string)
	ShowLoop(count int)
	ShowSpeed(speed float64)
}

type nopDisplay struct{}

func (nopDisplay) ShowTime(string) {}
func (nopDisplay) ShowDate(string) {}
func (nopDisplay) ShowLoop(int) {}
func (nopDisplay) ShowSpeed(float64) {}

// clockState remembers what the display currently shows so unchanged values
// are not written again.
type clockState struct {
	time  string
	date  string
	valid bool
}

// SyncClock shows the time and date of the entry nearest the viewport center.
// It reports whether anything was written.
func (c *Controller) SyncClock() bool {
	if c.container == nil {
		return false
	}
	boxes := c.container.Boxes()
	i := Nearest(boxes, c.container.ScrollTop(), c.container.ViewportHeight())
	if i < 0 {
		return false
	}
	entry, ok := c.engine.Store().FindByID(boxes[i].TimeID)
	if !ok {
		return false
	}

	wrote := false
	if !c.clock.valid || c.clock.time != entry.TimeText {
		c.clock.time = entry.TimeText
		c.display.ShowTime(entry.TimeText)
		wrote = true
	}
	if !c.clock.valid || c.clock.date != entry.DateText {
		c.clock.date = entry.DateText
		c.display.ShowDate(entry.DateText)
		wrote = true
	}
	c.clock.valid = true
	return wrote
}
