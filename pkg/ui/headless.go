package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dicklesworthstone/loopline/pkg/engine"
	"github.com/Dicklesworthstone/loopline/pkg/session"
)

// Headless is a container with no terminal behind it. Entries are laid out
// exactly as the Model would at the same size.
type Headless struct {
	eng       *engine.Engine
	width     int
	height    int
	scrollTop float64
	boxes     []engine.Box
	total     int

	Time  string
	Date  string
	Loop  int
	Speed float64
}

// NewHeadless creates a headless host with a width x height text area.
func NewHeadless(eng *engine.Engine, width, height int) *Headless {
	if width < 10 {
		width = 10
	}
	if height < 1 {
		height = 1
	}
	return &Headless{eng: eng, width: width, height: height}
}

func (h *Headless) relayout() {
	h.boxes = h.boxes[:0]
	top := 0
	for _, e := range h.eng.Store().Entries() {
		b := LayoutEntry(e, h.width)
		h.boxes = append(h.boxes, engine.Box{TimeID: e.TimeID, Top: float64(top), Height: float64(b.Height())})
		top += b.Height()
	}
	h.total = top
}

func (h *Headless) ScrollTop() float64 { return h.scrollTop }

func (h *Headless) SetScrollTop(offset float64) {
	if offset < 0 {
		offset = 0
	}
	h.scrollTop = offset
}

func (h *Headless) ViewportHeight() float64 { return float64(h.height) }

func (h *Headless) ScrollHeight() float64 {
	h.relayout()
	return float64(h.total)
}

func (h *Headless) Boxes() []engine.Box {
	h.relayout()
	return h.boxes
}

func (h *Headless) ShowTime(text string)    { h.Time = text }
func (h *Headless) ShowDate(text string)    { h.Date = text }
func (h *Headless) ShowLoop(count int)      { h.Loop = count }
func (h *Headless) ShowSpeed(speed float64) { h.Speed = speed }

// Activation names a token to click: the ordinal-th interactive token of the
// entry's displayed variant.
type Activation struct {
	TimeID  string `json:"time_id"`
	Ordinal int    `json:"ordinal"`
}

// ParseActivation parses "TIMEID:ORDINAL", e.g. "10-03-06-00:0".
func ParseActivation(s string) (Activation, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return Activation{}, fmt.Errorf("activation %q: want TIMEID:ORDINAL", s)
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n < 0 {
		return Activation{}, fmt.Errorf("activation %q: bad ordinal", s)
	}
	return Activation{TimeID: s[:i], Ordinal: n}, nil
}

// ActivationResult reports one scripted click.
type ActivationResult struct {
	Activation
	Label    string `json:"label,omitempty"`
	Executed bool   `json:"executed"`
	Flag     string `json:"flag,omitempty"`
	Error    string `json:"error,omitempty"`
}

// LoopSnapshot records the displayed variant of every entry when a loop
// began.
type LoopSnapshot struct {
	Loop     int            `json:"loop"`
	AtMS     int64          `json:"at_ms"`
	Variants map[string]int `json:"variants"`
}

// SimulationOptions configures Simulate.
type SimulationOptions struct {
	Loops    int
	Width    int
	Height   int
	Activate []Activation
}

// SimulationResult is the outcome of Simulate.
type SimulationResult struct {
	Loops       int                `json:"loops"`
	VirtualMS   int64              `json:"virtual_ms"`
	Session     session.Snapshot   `json:"session"`
	Activations []ActivationResult `json:"activations,omitempty"`
	Timeline    []LoopSnapshot     `json:"timeline"`
}

// Simulate drives eng through opts.Loops loops on a synthetic clock. The
// activations are applied once, right after the first layout, in order.
// When the content fits the viewport the controller never scrolls, so each
// loop is ended with an explicit wrap.
func Simulate(eng *engine.Engine, cfg engine.Config, opts SimulationOptions) SimulationResult {
	if opts.Width == 0 {
		opts.Width = 72
	}
	if opts.Height == 0 {
		opts.Height = 10
	}
	start := time.Unix(0, 0).UTC()
	sched := engine.NewManualScheduler(start)
	host := NewHeadless(eng, opts.Width, opts.Height)
	ctrl := engine.NewController(eng, sched, cfg)
	ctrl.Init(host, host)
	defer ctrl.Stop()

	res := SimulationResult{}
	for _, a := range opts.Activate {
		res.Activations = append(res.Activations, activateOnce(eng, a))
	}

	elapsed := func() int64 { return sched.Now().Sub(start).Milliseconds() }
	res.Timeline = append(res.Timeline, snapshotLoop(eng, elapsed()))

	tick := cfg.TickInterval
	if tick <= 0 {
		tick = engine.DefaultConfig().TickInterval
	}
	for eng.State().LoopCount() < opts.Loops {
		target := eng.State().LoopCount() + 1
		if host.ScrollHeight()-host.ViewportHeight() <= 0 {
			sched.Advance(tick)
			ctrl.Wrap()
		} else {
			deadline := sched.Now().Add(loopBudget(host, cfg, ctrl.Speed()))
			for eng.State().LoopCount() < target && sched.Now().Before(deadline) {
				sched.Advance(tick)
			}
			if eng.State().LoopCount() < target {
				ctrl.Wrap()
			}
		}
		res.Timeline = append(res.Timeline, snapshotLoop(eng, elapsed()))
	}

	res.Loops = eng.State().LoopCount()
	res.VirtualMS = elapsed()
	res.Session = eng.State().Snapshot()
	return res
}

// loopBudget is twice the time one pass over the content should take.
func loopBudget(h *Headless, cfg engine.Config, speed float64) time.Duration {
	rate := cfg.BaseRate
	if rate <= 0 {
		rate = engine.DefaultConfig().BaseRate
	}
	span := h.ScrollHeight() - h.ViewportHeight()
	secs := span / (rate * speed)
	return cfg.StartDelay + 2*time.Duration(secs*float64(time.Second)) + time.Second
}

func activateOnce(eng *engine.Engine, a Activation) ActivationResult {
	out := ActivationResult{Activation: a}
	ref, err := eng.TokenAt(a.TimeID, a.Ordinal)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	r, err := eng.Activate(ref)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Label = r.Label
	out.Executed = r.Executed()
	out.Flag = r.FlagAcquired
	return out
}

func snapshotLoop(eng *engine.Engine, atMS int64) LoopSnapshot {
	snap := LoopSnapshot{
		Loop:     eng.State().LoopCount(),
		AtMS:     atMS,
		Variants: make(map[string]int, eng.Store().Len()),
	}
	for _, e := range eng.Store().Entries() {
		snap.Variants[e.TimeID] = e.DisplayedVariant()
	}
	return snap
}
