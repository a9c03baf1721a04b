package engine

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttle is a leading-edge rate limit: the first call in a window passes,
// the rest of the burst is dropped.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows one call per window.
func NewThrottle(window time.Duration) *Throttle {
	if window <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(window), 1)}
}

// Allow reports whether a call at now may run.
func (t *Throttle) Allow(now time.Time) bool {
	return t.limiter.AllowN(now, 1)
}
