package engine

import (
	"math"
	"time"
)

// LoopState is the autoscroll state machine.
type LoopState int

const (
	Idle LoopState = iota
	Scrolling
	Paused
)

func (s LoopState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scrolling:
		return "scrolling"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Speed limits for the autoscroll multiplier.
const (
	MinSpeed = 0.1
	MaxSpeed = 5.0
)

// Config holds the controller's timing.
type Config struct {
	StartDelay     time.Duration // Idle -> Scrolling
	TickInterval   time.Duration // autoscroll step
	ClockInterval  time.Duration // clock refresh while scrolling
	ThrottleWindow time.Duration // manual scroll clock refresh
	BaseRate       float64       // scroll units per second at speed 1.0
	Speed          float64
	Epsilon        float64 // wrap tolerance in scroll units
}

// DefaultConfig returns the stock timing: 600ms start delay, 16ms ticks,
// 100ms clock refresh and scroll throttle, 30 units per second.
func DefaultConfig() Config {
	return Config{
		StartDelay:     600 * time.Millisecond,
		TickInterval:   16 * time.Millisecond,
		ClockInterval:  100 * time.Millisecond,
		ThrottleWindow: 100 * time.Millisecond,
		BaseRate:       30,
		Speed:          1.0,
		Epsilon:        0.5,
	}
}

// ClampSpeed limits v to [MinSpeed, MaxSpeed] at one-decimal resolution.
func ClampSpeed(v float64) float64 {
	if math.IsNaN(v) {
		return 1.0
	}
	v = math.Round(v*10) / 10
	if v < MinSpeed {
		return MinSpeed
	}
	if v > MaxSpeed {
		return MaxSpeed
	}
	return v
}

// Controller auto-advances a container, detects the end of the timeline and
// starts the next loop there.
type Controller struct {
	engine    *Engine
	sched     Scheduler
	cfg       Config
	container Container
	display   Display
	state     LoopState
	speed     float64
	throttle  *Throttle
	clock     clockState
	cancels   []Cancel
}

// NewController wires a controller to an engine and a tick source.
func NewController(e *Engine, sched Scheduler, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.ClockInterval <= 0 {
		cfg.ClockInterval = def.ClockInterval
	}
	if cfg.BaseRate <= 0 {
		cfg.BaseRate = def.BaseRate
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = def.Epsilon
	}
	if cfg.Speed == 0 {
		cfg.Speed = def.Speed
	}
	return &Controller{
		engine:   e,
		sched:    sched,
		cfg:      cfg,
		display:  nopDisplay{},
		speed:    ClampSpeed(cfg.Speed),
		throttle: NewThrottle(cfg.ThrottleWindow),
	}
}

// Engine returns the driven engine.
func (c *Controller) Engine() *Engine {
	return c.engine
}

// State returns the autoscroll state.
func (c *Controller) State() LoopState {
	return c.state
}

// Speed returns the current multiplier.
func (c *Controller) Speed() float64 {
	return c.speed
}

// Init binds the controller to a container and starts the autoscroll after
// the start delay. Any ticking from a previous Init is cancelled first, so
// calling it again when the host redisplays its content never leaves two
// tickers running.
func (c *Controller) Init(container Container, display Display) {
	c.Stop()
	if display == nil {
		display = nopDisplay{}
	}
	c.container = container
	c.display = display
	c.clock = clockState{}

	c.engine.ResolveAll()
	container.SetScrollTop(0)
	c.display.ShowLoop(c.engine.State().LoopCount())
	c.display.ShowSpeed(c.speed)
	c.SyncClock()

	c.cancels = append(c.cancels, c.sched.After(c.cfg.StartDelay, func(time.Time) {
		c.start()
	}))
}

func (c *Controller) start() {
	if c.state != Idle {
		return
	}
	c.state = Scrolling
	c.cancels = append(c.cancels,
		c.sched.Every(c.cfg.TickInterval, c.tick),
		c.sched.Every(c.cfg.ClockInterval, func(time.Time) {
			if c.state == Scrolling {
				c.SyncClock()
			}
		}),
	)
}

// Stop cancels all scheduled work and returns to Idle.
func (c *Controller) Stop() {
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
	c.state = Idle
}

// Pause halts autoscrolling without cancelling the tickers.
func (c *Controller) Pause() {
	if c.state == Scrolling {
		c.state = Paused
	}
}

// Resume continues after Pause.
func (c *Controller) Resume() {
	if c.state == Paused {
		c.state = Scrolling
	}
}

// TogglePause flips between Scrolling and Paused.
func (c *Controller) TogglePause() {
	switch c.state {
	case Scrolling:
		c.Pause()
	case Paused:
		c.Resume()
	}
}

// SetSpeed clamps and applies a new multiplier and returns it.
func (c *Controller) SetSpeed(v float64) float64 {
	c.speed = ClampSpeed(v)
	c.display.ShowSpeed(c.speed)
	return c.speed
}

// AdjustSpeed changes the multiplier by delta.
func (c *Controller) AdjustSpeed(delta float64) float64 {
	return c.SetSpeed(c.speed + delta)
}

// OnScroll is called by the host for manual scroll events. While the
// controller autoscrolls the clock ticker already covers the update.
func (c *Controller) OnScroll(now time.Time) bool {
	if c.state == Scrolling {
		return false
	}
	if !c.throttle.Allow(now) {
		return false
	}
	return c.SyncClock()
}

func (c *Controller) tick(time.Time) {
	if c.state != Scrolling || c.container == nil {
		return
	}
	height := c.container.ScrollHeight()
	viewport := c.container.ViewportHeight()
	if height-viewport <= 0 {
		return
	}
	next := c.container.ScrollTop() + c.cfg.BaseRate*c.speed*c.cfg.TickInterval.Seconds()
	if next+viewport >= height-c.cfg.Epsilon {
		c.Wrap()
		return
	}
	c.container.SetScrollTop(next)
}

// Wrap starts the next loop: session and text are reset, the view returns to
// the top and the clock is refreshed.
func (c *Controller) Wrap() {
	c.engine.Wrap()
	if c.container != nil {
		c.container.SetScrollTop(0)
	}
	c.display.ShowLoop(c.engine.State().LoopCount())
	c.SyncClock()
}
