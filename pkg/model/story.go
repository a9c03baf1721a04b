package model

import (
	"time"
)

// DefaultStartHour and DefaultStartMinute place the first beat at 08:00 when a
// story does not configure its own start instant.
const (
	DefaultStartHour   = 8
	DefaultStartMinute = 0
	DefaultStartYear   = 2000 // leap year, so 02-29 stays addressable
	DefaultDateFormat  = "Jan 2"
)

// Story is one authored timeline document as it appears on disk.
type Story struct {
	Title      string     `json:"title,omitempty" yaml:"title,omitempty"`
	Start      StartTime  `json:"start" yaml:"start"`
	DateFormat string     `json:"dateFormat,omitempty" yaml:"dateFormat,omitempty"`
	Entries    []RawEntry `json:"entries" yaml:"entries"`
}

// StartTime is the instant absolute minutes are measured from.
type StartTime struct {
	Year   int `json:"year,omitempty" yaml:"year,omitempty"`
	Month  int `json:"month,omitempty" yaml:"month,omitempty"`
	Day    int `json:"day,omitempty" yaml:"day,omitempty"`
	Hour   *int `json:"hour,omitempty" yaml:"hour,omitempty"`
	Minute *int `json:"minute,omitempty" yaml:"minute,omitempty"`
}

// Instant returns the configured start as a UTC time. A missing year, month
// or day falls back to DefaultStartYear, January and 1st. The time of day is
// DefaultStartHour:DefaultStartMinute when neither hour nor minute is given;
// otherwise an unset half is zero.
func (s StartTime) Instant() time.Time {
	year, month, day := s.Year, s.Month, s.Day
	hour, minute := DefaultStartHour, DefaultStartMinute
	if s.Hour != nil || s.Minute != nil {
		hour, minute = 0, 0
		if s.Hour != nil {
			hour = *s.Hour
		}
		if s.Minute != nil {
			minute = *s.Minute
		}
	}
	if year == 0 {
		year = DefaultStartYear
	}
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
}

// RawEntry is one authored beat before normalization. Either the calendar
// fields (Month/Day with optional Hour/Minute) or MinutesFromStart locate it.
type RawEntry struct {
	Month             int                `json:"month,omitempty" yaml:"month,omitempty"`
	Day               int                `json:"day,omitempty" yaml:"day,omitempty"`
	Hour              *int               `json:"hour,omitempty" yaml:"hour,omitempty"`
	Minute            *int               `json:"minute,omitempty" yaml:"minute,omitempty"`
	MinutesFromStart  *int               `json:"minutesFromStart,omitempty" yaml:"minutesFromStart,omitempty"`
	Scripts           []string           `json:"scripts" yaml:"scripts"`
	LoopTriggers      []LoopTrigger      `json:"loopTriggers,omitempty" yaml:"loopTriggers,omitempty"`
	ConditionTriggers []ConditionTrigger `json:"conditionTriggers,omitempty" yaml:"conditionTriggers,omitempty"`
}

// LoopTrigger selects VariantIndex once the loop counter reaches LoopThreshold.
type LoopTrigger struct {
	LoopThreshold int `json:"loopThreshold" yaml:"loopThreshold"`
	VariantIndex  int `json:"variantIndex" yaml:"variantIndex"`
}

// ConditionTrigger selects VariantIndex when every flag in RequiredFlags has
// been acquired during the current loop.
type ConditionTrigger struct {
	RequiredFlags []string `json:"requiredFlags" yaml:"requiredFlags"`
	VariantIndex  int      `json:"variantIndex" yaml:"variantIndex"`
}

// Satisfied reports whether all required flags are present in flags.
func (c ConditionTrigger) Satisfied(flags map[string]struct{}) bool {
	for _, f := range c.RequiredFlags {
		if _, ok := flags[f]; !ok {
			return false
		}
	}
	return true
}

// IntPtr is a helper for building RawEntry literals.
func IntPtr(v int) *int {
	return &v
}
