package engine

import "github.com/Dicklesworthstone/loopline/pkg/session"

// EventKind names something the engine did.
type EventKind string

const (
	EventActivate EventKind = "activate"
	EventFlag     EventKind = "flag"
	EventUnlock   EventKind = "unlock"
	EventAction   EventKind = "action"
	EventDisable  EventKind = "disable"
	EventSkip     EventKind = "skip"
	EventWrap     EventKind = "wrap"
	EventReload   EventKind = "reload"
)

// Event describes one engine effect.
type Event struct {
	Kind    EventKind
	TimeID  string
	Variant int
	Label   string
	Flag    string
	Detail  string
	Session session.Snapshot
}

// Observer receives events synchronously on the event loop. Implementations
// must not call back into the engine.
type Observer interface {
	Observe(Event)
}

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

// Observers fans one event out to several observers in order. nil entries
// are skipped.
type Observers []Observer

func (o Observers) Observe(ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ev)
		}
	}
}
