package engine

import (
	"errors"
	"fmt"

	"github.com/Dicklesworthstone/loopline/pkg/markup"
	"github.com/Dicklesworthstone/loopline/pkg/model"
)

// ErrNoToken is returned when a TokenRef no longer points at an interactive
// token, e.g. because it was already executed.
var ErrNoToken = errors.New("no interactive token at position")

// TokenRef addresses an interactive token: the Ordinal-th interactive token
// in variant Variant of entry TimeID.
type TokenRef struct {
	TimeID  string
	Variant int
	Ordinal int
}

// Result summarizes what an activation did.
type Result struct {
	Kind         markup.Kind
	Label        string
	FlagAcquired string
	Promoted     []model.Unlock
	Applied      []markup.ActionTarget
	Disabled     bool
	Skipped      []error
}

// Executed reports whether any target took effect.
func (r Result) Executed() bool {
	return len(r.Promoted) > 0 || len(r.Applied) > 0
}

// TokenAt builds a reference to the ordinal-th token of timeID's displayed
// variant.
func (e *Engine) TokenAt(timeID string, ordinal int) (TokenRef, error) {
	entry, ok := e.store.FindByID(timeID)
	if !ok {
		return TokenRef{}, &model.LookupError{TimeID: timeID, Reason: "no such entry"}
	}
	return TokenRef{TimeID: timeID, Variant: entry.DisplayedVariant(), Ordinal: ordinal}, nil
}

// Activate processes a click on the referenced token.
//
// A flag carried by the token is acquired first and all entries are resolved
// again. Trigger targets then have their inactive action promoted and the
// unlock recorded; action targets are switched to the requested variant
// without going through the resolver. A target that cannot be found is
// logged and skipped. Finally, if anything executed or a flag was newly
// acquired, the clicked token is replaced by its executed marker.
func (e *Engine) Activate(ref TokenRef) (Result, error) {
	owner, err := e.store.Variant(ref.TimeID, ref.Variant)
	if err != nil {
		return Result{}, err
	}
	doc := markup.Compile(owner.Scripts[ref.Variant])
	tok, ok := doc.Token(ref.Ordinal)
	if !ok {
		return Result{}, fmt.Errorf("%s:%d token %d: %w", ref.TimeID, ref.Variant, ref.Ordinal, ErrNoToken)
	}
	occurrence := doc.Occurrence(ref.Ordinal)

	res := Result{Kind: tok.Kind, Label: tok.Label}
	e.emit(Event{Kind: EventActivate, TimeID: ref.TimeID, Variant: ref.Variant, Label: tok.Label, Flag: tok.Flag})

	if tok.Flag != "" && e.state.AcquireFlag(tok.Flag) {
		res.FlagAcquired = tok.Flag
		e.ResolveAll()
		e.emit(Event{Kind: EventFlag, TimeID: ref.TimeID, Flag: tok.Flag})
	}

	for _, item := range tok.Undecodable {
		e.skipUndecodable(ref.TimeID, item, &res)
	}

	switch tok.Kind {
	case markup.Trigger:
		e.promoteTargets(tok.Unlocks, &res)
	case markup.ActiveAction:
		e.applyActions(tok.Actions, &res)
	}

	if res.Executed() || res.FlagAcquired != "" {
		text, ok := markup.Disable(owner.Scripts[ref.Variant], tok.Raw, occurrence)
		if ok {
			res.Disabled = owner.SetScript(ref.Variant, text)
			e.emit(Event{Kind: EventDisable, TimeID: ref.TimeID, Variant: ref.Variant, Label: tok.Label})
		}
	}
	return res, nil
}

func (e *Engine) promoteTargets(targets []markup.UnlockTarget, res *Result) {
	for _, t := range targets {
		entry, err := e.store.Variant(t.TimeID, t.Variant)
		if err != nil {
			e.skip(t.TimeID, t.Variant, err)
			res.Skipped = append(res.Skipped, err)
			continue
		}
		if text, n := markup.Promote(entry.Scripts[t.Variant], t.Label); n > 0 {
			entry.SetScript(t.Variant, text)
		}
		u := model.Unlock{TimeID: t.TimeID, Variant: t.Variant, Label: t.Label}
		e.state.RecordUnlock(u)
		res.Promoted = append(res.Promoted, u)
		e.emit(Event{Kind: EventUnlock, TimeID: t.TimeID, Variant: t.Variant, Label: t.Label})
	}
}

func (e *Engine) applyActions(targets []markup.ActionTarget, res *Result) {
	for _, t := range targets {
		entry, err := e.store.Variant(t.TimeID, t.Variant)
		if err != nil {
			e.skip(t.TimeID, t.Variant, err)
			res.Skipped = append(res.Skipped, err)
			continue
		}
		entry.SetVariant(t.Variant)
		res.Applied = append(res.Applied, t)
		e.emit(Event{Kind: EventAction, TimeID: t.TimeID, Variant: t.Variant})
	}
}

// skipUndecodable logs a target item whose index could not be decoded.
func (e *Engine) skipUndecodable(timeID, item string, res *Result) {
	err := &model.SerializationError{Input: item, Err: errors.New("variant index out of range for int")}
	if e.logger != nil {
		e.logger.Printf("WARNING: skipping target in %s: %v", timeID, err)
	}
	res.Skipped = append(res.Skipped, err)
	e.emit(Event{Kind: EventSkip, TimeID: timeID, Variant: -1, Detail: err.Error()})
}
