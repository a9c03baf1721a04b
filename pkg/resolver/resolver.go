// Package resolver picks the variant each entry should display for a given
// loop count and flag set.
package resolver

import "github.com/Dicklesworthstone/loopline/pkg/model"

// Target computes the variant for e. Loop triggers are applied in authored
// order wherever loopCount reaches the threshold, then condition triggers in
// authored order wherever all flags are held. Each match overrides the
// previous one, so list order, not the numeric threshold, decides.
// The second result is false for entries without triggers.
func Target(e *model.Entry, loopCount int, flags map[string]struct{}) (int, bool) {
	if !e.HasTriggers() {
		return 0, false
	}
	variant := 0
	for _, lt := range e.LoopTriggers {
		if loopCount >= lt.LoopThreshold {
			variant = lt.VariantIndex
		}
	}
	for _, ct := range e.ConditionTriggers {
		if ct.Satisfied(flags) {
			variant = ct.VariantIndex
		}
	}
	return variant, true
}

// Apply brings e's displayed variant in line with Target. Entries without
// triggers keep whatever variant direct interaction chose and only fall back
// to the canonical variant after their cache was invalidated. It reports
// whether the displayed variant changed.
func Apply(e *model.Entry, loopCount int, flags map[string]struct{}) bool {
	target, managed := Target(e, loopCount, flags)
	if !managed {
		if e.CurrentVariant == model.NoVariant {
			return e.SetVariant(0)
		}
		return false
	}
	if !e.ValidVariant(target) {
		target = 0
	}
	return e.SetVariant(target)
}

// ApplyAll runs Apply across entries and returns the time IDs that changed.
func ApplyAll(entries []*model.Entry, loopCount int, flags map[string]struct{}) []string {
	var changed []string
	for _, e := range entries {
		if Apply(e, loopCount, flags) {
			changed = append(changed, e.TimeID)
		}
	}
	return changed
}
