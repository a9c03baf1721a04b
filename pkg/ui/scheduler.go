package ui

import (
	"time"

	"github.com/Dicklesworthstone/loopline/pkg/engine"
	tea "github.com/charmbracelet/bubbletea"
)

// jobMsg is delivered when a scheduled job is due.
type jobMsg struct {
	id int
	at time.Time
}

type teaJob struct {
	interval time.Duration
	fn       func(time.Time)
}

// teaScheduler implements engine.Scheduler on top of tea.Tick so that every
// callback runs inside Update. Jobs scheduled during Update are queued as
// commands and handed back to the runtime by drain.
type teaScheduler struct {
	seq     int
	jobs    map[int]*teaJob
	pending []tea.Cmd
}

func newTeaScheduler() *teaScheduler {
	return &teaScheduler{jobs: make(map[int]*teaJob)}
}

func (s *teaScheduler) After(delay time.Duration, fn func(time.Time)) engine.Cancel {
	return s.add(delay, 0, fn)
}

func (s *teaScheduler) Every(interval time.Duration, fn func(time.Time)) engine.Cancel {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return s.add(interval, interval, fn)
}

func (s *teaScheduler) add(delay, interval time.Duration, fn func(time.Time)) engine.Cancel {
	s.seq++
	id := s.seq
	s.jobs[id] = &teaJob{interval: interval, fn: fn}
	s.pending = append(s.pending, tickJob(id, delay))
	return func() { delete(s.jobs, id) }
}

func tickJob(id int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return jobMsg{id: id, at: t}
	})
}

// fire runs a due job. Cancelled jobs are dropped; repeating jobs that are
// still live are scheduled again.
func (s *teaScheduler) fire(msg jobMsg) {
	job, ok := s.jobs[msg.id]
	if !ok {
		return
	}
	if job.interval == 0 {
		delete(s.jobs, msg.id)
	}
	job.fn(msg.at)
	if job.interval > 0 {
		if _, live := s.jobs[msg.id]; live {
			s.pending = append(s.pending, tickJob(msg.id, job.interval))
		}
	}
}

// drain returns the commands queued since the last call.
func (s *teaScheduler) drain() tea.Cmd {
	if len(s.pending) == 0 {
		return nil
	}
	cmds := s.pending
	s.pending = nil
	return tea.Batch(cmds...)
}

// Active returns the number of live jobs.
func (s *teaScheduler) Active() int {
	return len(s.jobs)
}
