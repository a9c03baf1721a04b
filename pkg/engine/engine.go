// Package engine drives a loaded timeline: it resolves displayed variants,
// processes token activations, and restores state when the loop wraps.
//
// Nothing here is safe for concurrent use. The host delivers clicks and
// scheduler callbacks on one event loop, and each call runs to completion.
package engine

import (
	"log"

	"github.com/Dicklesworthstone/loopline/pkg/markup"
	"github.com/Dicklesworthstone/loopline/pkg/model"
	"github.com/Dicklesworthstone/loopline/pkg/resolver"
	"github.com/Dicklesworthstone/loopline/pkg/session"
	"github.com/Dicklesworthstone/loopline/pkg/timeline"
)

// Engine owns the store, the session state and the canonical snapshot taken
// when it was created.
type Engine struct {
	store    *timeline.Store
	state    *session.State
	original timeline.Snapshot
	logger   *log.Logger
	observer Observer
}

// New binds an engine to store and state. The store's current scripts become
// the canonical text restored on every wrap. A nil state starts a new session.
func New(store *timeline.Store, state *session.State) *Engine {
	if state == nil {
		state = session.New()
	}
	return &Engine{
		store:    store,
		state:    state,
		original: store.Snapshot(),
		logger:   log.Default(),
		observer: nopObserver{},
	}
}

// SetLogger sets a custom logger for skipped targets.
func (e *Engine) SetLogger(logger *log.Logger) {
	e.logger = logger
}

// SetObserver registers a receiver for engine events. nil disables events.
func (e *Engine) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	e.observer = o
}

// Store returns the timeline being driven.
func (e *Engine) Store() *timeline.Store {
	return e.store
}

// State returns the session state.
func (e *Engine) State() *session.State {
	return e.state
}

// ContentReady performs the first resolve pass once the host has its entries
// laid out. It returns the time IDs whose displayed variant changed.
func (e *Engine) ContentReady() []string {
	return e.ResolveAll()
}

// ResolveAll recomputes displayed variants for the current loop and flags.
func (e *Engine) ResolveAll() []string {
	return resolver.ApplyAll(e.store.Entries(), e.state.LoopCount(), e.state.Flags())
}

// Document compiles the displayed variant of timeID.
func (e *Engine) Document(timeID string) (*markup.Document, bool) {
	entry, ok := e.store.FindByID(timeID)
	if !ok {
		return nil, false
	}
	return markup.Compile(entry.Text()), true
}

// Wrap starts the next loop in one step: the counter advances and flags are
// cleared, canonical text is restored, persistent unlocks are promoted again,
// every variant cache is invalidated, and variants are resolved anew.
func (e *Engine) Wrap() {
	e.state.Reset()
	e.store.Restore(e.original)
	e.reapplyUnlocks()
	for _, entry := range e.store.Entries() {
		entry.Invalidate()
	}
	e.ResolveAll()
	e.emit(Event{Kind: EventWrap})
}

// Reload swaps in a freshly loaded store while keeping the session. The new
// store's text becomes canonical, persistent unlocks are reapplied to it, and
// variants are resolved from scratch.
func (e *Engine) Reload(store *timeline.Store) {
	e.store = store
	e.original = store.Snapshot()
	e.reapplyUnlocks()
	for _, entry := range store.Entries() {
		entry.Invalidate()
	}
	e.ResolveAll()
	e.emit(Event{Kind: EventReload, Detail: "story reloaded"})
}

func (e *Engine) reapplyUnlocks() {
	for _, u := range e.state.Unlocks() {
		entry, err := e.store.Variant(u.TimeID, u.Variant)
		if err != nil {
			e.skip(u.TimeID, u.Variant, err)
			continue
		}
		if text, n := markup.Promote(entry.Scripts[u.Variant], u.Label); n > 0 {
			entry.SetScript(u.Variant, text)
		}
	}
}

func (e *Engine) emit(ev Event) {
	ev.Session = e.state.Snapshot()
	e.observer.Observe(ev)
}

// skip logs a target that could not be processed.
func (e *Engine) skip(timeID string, variant int, err error) {
	if e.logger != nil {
		e.logger.Printf("WARNING: skipping target %s:%d: %v", timeID, variant, err)
	}
	e.emit(Event{Kind: EventSkip, TimeID: timeID, Variant: variant, Detail: err.Error()})
}

// Unlocked reports whether u is a recorded persistent unlock.
func (e *Engine) Unlocked(u model.Unlock) bool {
	return e.state.HasUnlock(u)
}
