// Package timeline holds the canonical, chronologically ordered entries of a
// story and the snapshot used to restore them on every loop reset.
package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/Dicklesworthstone/loopline/pkg/markup"
	"github.com/Dicklesworthstone/loopline/pkg/model"
)

// Options controls how raw entries are normalized.
type Options struct {
	Start      time.Time // instant absolute minutes are measured from
	DateFormat string    // Go layout for Entry.DateText
}

// Store holds the normalized entries keyed by time ID.
type Store struct {
	start   time.Time
	entries []*model.Entry
	byID    map[string]*model.Entry
}

// Snapshot is a deep copy of every entry's scripts keyed by time ID.
type Snapshot map[string][]string

// FromStory normalizes an authored story using its own start and date format.
func FromStory(story model.Story) (*Store, []error) {
	return Normalize(story.Entries, Options{
		Start:      story.Start.Instant(),
		DateFormat: story.DateFormat,
	})
}

// Normalize converts raw entries into a sorted store. Entries that fail
// validation are reported as *model.DataError and left out; the rest load.
func Normalize(raw []model.RawEntry, opts Options) (*Store, []error) {
	if opts.Start.IsZero() {
		opts.Start = model.StartTime{}.Instant()
	}
	if opts.DateFormat == "" {
		opts.DateFormat = model.DefaultDateFormat
	}

	s := &Store{
		start: opts.Start,
		byID:  make(map[string]*model.Entry, len(raw)),
	}

	var errs []error
	for i, r := range raw {
		entry, err := normalizeEntry(i, r, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := s.byID[entry.TimeID]; dup {
			errs = append(errs, &model.DataError{Index: i, TimeID: entry.TimeID, Reason: "duplicate time id"})
			continue
		}
		s.byID[entry.TimeID] = entry
		s.entries = append(s.entries, entry)
	}

	s.SortByTime()
	return s, errs
}

func normalizeEntry(i int, r model.RawEntry, opts Options) (*model.Entry, error) {
	instant, id, err := locate(r, opts.Start)
	if err != nil {
		return nil, &model.DataError{Index: i, Reason: err.Error()}
	}
	if len(r.Scripts) == 0 {
		return nil, &model.DataError{Index: i, TimeID: id, Reason: "no scripts"}
	}
	for v, script := range r.Scripts {
		if markup.HasReserved(script) {
			return nil, &model.DataError{Index: i, TimeID: id, Reason: fmt.Sprintf("script %d contains a reserved character (U+E000 or U+E001)", v)}
		}
	}
	for _, lt := range r.LoopTriggers {
		if lt.VariantIndex < 0 || lt.VariantIndex >= len(r.Scripts) {
			return nil, &model.DataError{Index: i, TimeID: id, Reason: fmt.Sprintf("loop trigger variant %d out of range", lt.VariantIndex)}
		}
		if lt.LoopThreshold < 0 {
			return nil, &model.DataError{Index: i, TimeID: id, Reason: fmt.Sprintf("negative loop threshold %d", lt.LoopThreshold)}
		}
	}
	for _, ct := range r.ConditionTriggers {
		if ct.VariantIndex < 0 || ct.VariantIndex >= len(r.Scripts) {
			return nil, &model.DataError{Index: i, TimeID: id, Reason: fmt.Sprintf("condition trigger variant %d out of range", ct.VariantIndex)}
		}
	}

	entry := &model.Entry{
		TimeID:            id,
		AbsoluteMinutes:   int(instant.Sub(opts.Start) / time.Minute),
		Instant:           instant,
		DateText:          instant.Format(opts.DateFormat),
		Scripts:           append([]string(nil), r.Scripts...),
		LoopTriggers:      append([]model.LoopTrigger(nil), r.LoopTriggers...),
		ConditionTriggers: cloneConditions(r.ConditionTriggers),
		CurrentVariant:    model.NoVariant,
	}
	if r.MinutesFromStart != nil || r.Hour != nil || r.Minute != nil {
		entry.TimeText = FormatTime(instant.Hour(), instant.Minute())
	}
	return entry, nil
}

// locate derives the instant and time ID of a raw entry.
func locate(r model.RawEntry, start time.Time) (time.Time, string, error) {
	if r.MinutesFromStart != nil {
		t := start.Add(time.Duration(*r.MinutesFromStart) * time.Minute)
		return t, FormatID(int(t.Month()), t.Day(), t.Hour(), t.Minute()), nil
	}

	if r.Month < 1 || r.Month > 12 {
		return time.Time{}, "", fmt.Errorf("month %d out of range", r.Month)
	}
	t := time.Date(start.Year(), time.Month(r.Month), r.Day, 0, 0, 0, 0, time.UTC)
	if r.Day < 1 || t.Day() != r.Day {
		return time.Time{}, "", fmt.Errorf("day %d out of range for month %d", r.Day, r.Month)
	}
	if r.Hour == nil && r.Minute == nil {
		return t, FormatDateID(r.Month, r.Day), nil
	}

	hour, minute := 0, 0
	if r.Hour != nil {
		hour = *r.Hour
	}
	if r.Minute != nil {
		minute = *r.Minute
	}
	if hour < 0 || hour > 23 {
		return time.Time{}, "", fmt.Errorf("hour %d out of range", hour)
	}
	if minute < 0 || minute > 59 {
		return time.Time{}, "", fmt.Errorf("minute %d out of range", minute)
	}
	t = t.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	return t, FormatID(r.Month, r.Day, hour, minute), nil
}

func cloneConditions(in []model.ConditionTrigger) []model.ConditionTrigger {
	if in == nil {
		return nil
	}
	out := make([]model.ConditionTrigger, len(in))
	for i, ct := range in {
		out[i] = model.ConditionTrigger{
			RequiredFlags: append([]string(nil), ct.RequiredFlags...),
			VariantIndex:  ct.VariantIndex,
		}
	}
	return out
}

// FormatID builds a MM-DD-HH-mm time ID.
func FormatID(month, day, hour, minute int) string {
	return fmt.Sprintf("%02d-%02d-%02d-%02d", month, day, hour, minute)
}

// FormatDateID builds a MM-DD time ID for entries without a time of day.
func FormatDateID(month, day int) string {
	return fmt.Sprintf("%02d-%02d", month, day)
}

// FormatTime renders a clock label as HH:MM.
func FormatTime(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// SortByTime orders entries by instant, keeping authored order for ties.
func (s *Store) SortByTime() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].Instant.Before(s.entries[j].Instant)
	})
}

// Start returns the instant absolute minutes are measured from.
func (s *Store) Start() time.Time {
	return s.start
}

// Entries returns the entries in display order. The slice is shared.
func (s *Store) Entries() []*model.Entry {
	return s.entries
}

// Len returns the number of loaded entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// FindByID returns the entry with the given time ID.
func (s *Store) FindByID(id string) (*model.Entry, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// Variant returns the entry for id when variant indexes one of its scripts,
// or a *model.LookupError otherwise.
func (s *Store) Variant(id string, variant int) (*model.Entry, error) {
	e, ok := s.byID[id]
	if !ok {
		return nil, &model.LookupError{TimeID: id, Variant: variant, Reason: "no such entry"}
	}
	if !e.ValidVariant(variant) {
		return nil, &model.LookupError{TimeID: id, Variant: variant, Reason: fmt.Sprintf("entry has %d variants", len(e.Scripts))}
	}
	return e, nil
}

// Snapshot deep-copies every entry's scripts.
func (s *Store) Snapshot() Snapshot {
	snap := make(Snapshot, len(s.entries))
	for _, e := range s.entries {
		snap[e.TimeID] = append([]string(nil), e.Scripts...)
	}
	return snap
}

// Restore writes scripts back from snap. Entries missing from the snapshot are
// left untouched.
func (s *Store) Restore(snap Snapshot) {
	for _, e := range s.entries {
		scripts, ok := snap[e.TimeID]
		if !ok {
			continue
		}
		if len(scripts) != len(e.Scripts) {
			e.Scripts = append([]string(nil), scripts...)
			e.Generation++
			continue
		}
		for i, text := range scripts {
			e.SetScript(i, text)
		}
	}
}
