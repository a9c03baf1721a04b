package engine

import (
	"sort"
	"time"
)

// Cancel stops a scheduled job. Calling it more than once is harmless.
type Cancel func()

// Scheduler is the single tick source the engine subscribes to. Callbacks
// must be delivered on the host's event loop, one at a time.
type Scheduler interface {
	After(delay time.Duration, fn func(now time.Time)) Cancel
	Every(interval time.Duration, fn func(now time.Time)) Cancel
}

// ManualScheduler runs jobs only when Advance is called, which makes timing
// deterministic in tests and headless simulation.
type ManualScheduler struct {
	now  time.Time
	seq  int
	jobs []*manualJob
}

type manualJob struct {
	seq       int
	due       time.Time
	interval  time.Duration
	fn        func(time.Time)
	cancelled bool
}

// NewManualScheduler starts the synthetic clock at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Now returns the synthetic time.
func (s *ManualScheduler) Now() time.Time {
	return s.now
}

func (s *ManualScheduler) add(delay, interval time.Duration, fn func(time.Time)) Cancel {
	s.seq++
	job := &manualJob{seq: s.seq, due: s.now.Add(delay), interval: interval, fn: fn}
	s.jobs = append(s.jobs, job)
	return func() { job.cancelled = true }
}

// After schedules fn once.
func (s *ManualScheduler) After(delay time.Duration, fn func(time.Time)) Cancel {
	return s.add(delay, 0, fn)
}

// Every schedules fn repeatedly. A non-positive interval is treated as 1ms.
func (s *ManualScheduler) Every(interval time.Duration, fn func(time.Time)) Cancel {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return s.add(interval, interval, fn)
}

// Advance moves the clock forward by d, running every job that falls due in
// chronological order. Jobs due at the same instant run in scheduling order.
func (s *ManualScheduler) Advance(d time.Duration) {
	target := s.now.Add(d)
	for {
		s.prune()
		job := s.next()
		if job == nil || job.due.After(target) {
			break
		}
		s.now = job.due
		if job.interval > 0 {
			job.due = job.due.Add(job.interval)
		} else {
			job.cancelled = true
		}
		job.fn(s.now)
	}
	s.now = target
	s.prune()
}

func (s *ManualScheduler) next() *manualJob {
	if len(s.jobs) == 0 {
		return nil
	}
	sort.SliceStable(s.jobs, func(i, j int) bool {
		if s.jobs[i].due.Equal(s.jobs[j].due) {
			return s.jobs[i].seq < s.jobs[j].seq
		}
		return s.jobs[i].due.Before(s.jobs[j].due)
	})
	return s.jobs[0]
}

func (s *ManualScheduler) prune() {
	live := s.jobs[:0]
	for _, j := range s.jobs {
		if !j.cancelled {
			live = append(live, j)
		}
	}
	s.jobs = live
}

// Active returns the number of pending jobs.
func (s *ManualScheduler) Active() int {
	s.prune()
	return len(s.jobs)
}

// Repeating returns the number of pending periodic jobs.
func (s *ManualScheduler) Repeating() int {
	s.prune()
	n := 0
	for _, j := range s.jobs {
		if j.interval > 0 {
			n++
		}
	}
	return n
}
