package model

import "time"

// NoVariant marks an entry whose displayed variant has been invalidated and
// must be recomputed on the next resolver pass.
const NoVariant = -1

// Entry is one normalized narrative beat. Scripts and CurrentVariant are the
// only fields mutated after load; every mutation bumps Generation so render
// layers can diff against what they drew last.
type Entry struct {
	TimeID          string    `json:"time_id"`
	AbsoluteMinutes int       `json:"absolute_minutes"`
	Instant         time.Time `json:"instant"`
	DateText        string    `json:"date_text"`
	TimeText        string    `json:"time_text"`

	Scripts           []string           `json:"scripts"`
	LoopTriggers      []LoopTrigger      `json:"loop_triggers,omitempty"`
	ConditionTriggers []ConditionTrigger `json:"condition_triggers,omitempty"`

	CurrentVariant int    `json:"current_variant"`
	Generation     uint64 `json:"generation"`
}

// HasTriggers reports whether the resolver manages this entry.
func (e *Entry) HasTriggers() bool {
	return len(e.LoopTriggers) > 0 || len(e.ConditionTriggers) > 0
}

// ValidVariant reports whether i indexes into Scripts.
func (e *Entry) ValidVariant(i int) bool {
	return i >= 0 && i < len(e.Scripts)
}

// DisplayedVariant returns the variant currently shown, treating an
// invalidated cache as the canonical variant.
func (e *Entry) DisplayedVariant() int {
	if !e.ValidVariant(e.CurrentVariant) {
		return 0
	}
	return e.CurrentVariant
}

// Text returns the raw source of the displayed variant.
func (e *Entry) Text() string {
	if len(e.Scripts) == 0 {
		return ""
	}
	return e.Scripts[e.DisplayedVariant()]
}

// SetScript replaces the raw text of variant i. It returns false when i is out
// of range or the text is unchanged.
func (e *Entry) SetScript(i int, text string) bool {
	if !e.ValidVariant(i) || e.Scripts[i] == text {
		return false
	}
	e.Scripts[i] = text
	e.Generation++
	return true
}

// SetVariant changes the displayed variant. It returns false when i is out of
// range or already displayed.
func (e *Entry) SetVariant(i int) bool {
	if !e.ValidVariant(i) || e.CurrentVariant == i {
		return false
	}
	e.CurrentVariant = i
	e.Generation++
	return true
}

// Invalidate drops the cached variant index.
func (e *Entry) Invalidate() {
	if e.CurrentVariant != NoVariant {
		e.CurrentVariant = NoVariant
		e.Generation++
	}
}
