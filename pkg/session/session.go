// Package session holds the per-run mutable state of the engine: loop
// counter, flags acquired during the current loop, and the unlocks that
// survive every reset.
package session

import (
	"sort"

	"github.com/Dicklesworthstone/loopline/pkg/model"
)

// State is owned by one engine instance. It is not safe for concurrent use;
// all access happens on the host's event loop.
type State struct {
	loopCount int
	flags     map[string]struct{}
	unlocks   []model.Unlock
	unlockSet map[model.Unlock]struct{}
}

// New returns a fresh state at loop 0.
func New() *State {
	return &State{
		flags:     make(map[string]struct{}),
		unlockSet: make(map[model.Unlock]struct{}),
	}
}

// LoopCount returns the number of completed loops.
func (s *State) LoopCount() int {
	return s.loopCount
}

// Flags exposes the flag set for read-only checks.
func (s *State) Flags() map[string]struct{} {
	return s.flags
}

// HasFlag reports whether name was acquired this loop.
func (s *State) HasFlag(name string) bool {
	_, ok := s.flags[name]
	return ok
}

// AcquireFlag adds name and reports whether it was new.
func (s *State) AcquireFlag(name string) bool {
	if name == "" || s.HasFlag(name) {
		return false
	}
	s.flags[name] = struct{}{}
	return true
}

// FlagNames returns the acquired flags sorted.
func (s *State) FlagNames() []string {
	out := make([]string, 0, len(s.flags))
	for f := range s.flags {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// RecordUnlock stores u and reports whether it was new. Unlocks keep their
// insertion order so reapplying them is deterministic.
func (s *State) RecordUnlock(u model.Unlock) bool {
	if _, ok := s.unlockSet[u]; ok {
		return false
	}
	s.unlockSet[u] = struct{}{}
	s.unlocks = append(s.unlocks, u)
	return true
}

// HasUnlock reports whether u has been recorded.
func (s *State) HasUnlock(u model.Unlock) bool {
	_, ok := s.unlockSet[u]
	return ok
}

// Unlocks returns a copy of the persistent unlocks in insertion order.
func (s *State) Unlocks() []model.Unlock {
	return append([]model.Unlock(nil), s.unlocks...)
}

// Reset starts the next loop: the counter advances by one and flags are
// cleared. Unlocks are kept.
func (s *State) Reset() {
	s.loopCount++
	s.flags = make(map[string]struct{})
}

// Snapshot is a serializable view of the state.
type Snapshot struct {
	LoopCount int      `json:"loop_count"`
	Flags     []string `json:"flags"`
	Unlocks   []string `json:"unlocks"`
}

// Snapshot captures the current state for robot output and the journal.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		LoopCount: s.loopCount,
		Flags:     s.FlagNames(),
		Unlocks:   make([]string, 0, len(s.unlocks)),
	}
	for _, u := range s.unlocks {
		snap.Unlocks = append(snap.Unlocks, u.Key())
	}
	return snap
}
