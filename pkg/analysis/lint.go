package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/Dicklesworthstone/loopline/pkg/markup"
	"github.com/Dicklesworthstone/loopline/pkg/timeline"
)

// Severity ranks lint findings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding kinds.
const (
	KindDanglingTarget     = "dangling-target"
	KindBadVariant         = "bad-variant"
	KindOrphanUnlock       = "orphan-unlock"
	KindUnreachableVariant = "unreachable-variant"
	KindUnobtainableFlag   = "unobtainable-flag"
	KindCycle              = "cycle"
	KindData               = "data"
	KindUndecodableTarget  = "undecodable-target"
)

// Finding is one lint result.
type Finding struct {
	Severity Severity `json:"severity"`
	Kind     string   `json:"kind"`
	TimeID   string   `json:"time_id,omitempty"`
	Variant  int      `json:"variant"`
	Message  string   `json:"message"`
}

// Ranked is a variant with its influence score.
type Ranked struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// Report is the output of Lint.
type Report struct {
	DataHash        string     `json:"data_hash,omitempty"`
	Entries         int        `json:"entries"`
	Variants        int        `json:"variants"`
	Tokens          int        `json:"tokens"`
	References      int        `json:"references"`
	Findings        []Finding  `json:"findings"`
	Cycles          [][]string `json:"cycles,omitempty"`
	CyclesTruncated bool       `json:"cycles_truncated,omitempty"`
	Influence       []Ranked   `json:"influence,omitempty"`
}

// Count returns the number of findings at severity s.
func (r *Report) Count(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

// LintConfig bounds the expensive parts of Lint.
type LintConfig struct {
	MaxCycles     int
	CyclesTimeout time.Duration
	TopInfluence  int
}

// DefaultLintConfig returns limits suitable for interactive use.
func DefaultLintConfig() LintConfig {
	return LintConfig{
		MaxCycles:     100,
		CyclesTimeout: 2 * time.Second,
		TopInfluence:  5,
	}
}

// Lint checks store with the default limits. Data errors from loading can be
// passed in to be reported alongside.
func Lint(store *timeline.Store, dataErrs []error) Report {
	return LintWithConfig(store, dataErrs, DefaultLintConfig())
}

// LintWithConfig checks store with explicit limits.
func LintWithConfig(store *timeline.Store, dataErrs []error, cfg LintConfig) Report {
	rg := NewReferenceGraph(store)
	report := Report{
		Entries:    store.Len(),
		Variants:   rg.NodeCount(),
		Tokens:     rg.TokenCount(),
		References: len(rg.References()),
		Findings:   []Finding{},
	}

	for _, err := range dataErrs {
		report.Findings = append(report.Findings, Finding{Severity: SeverityError, Kind: KindData, Variant: -1, Message: err.Error()})
	}

	reachable := make(map[string]bool)
	for _, ref := range rg.References() {
		report.Findings = append(report.Findings, rg.checkRef(ref, reachable)...)
	}
	report.Findings = append(report.Findings, rg.checkTriggers(reachable)...)
	report.Findings = append(report.Findings, rg.undecoded...)

	for _, e := range store.Entries() {
		for v := 1; v < len(e.Scripts); v++ {
			if reachable[VariantKey(e.TimeID, v)] {
				continue
			}
			report.Findings = append(report.Findings, Finding{
				Severity: SeverityWarning, Kind: KindUnreachableVariant, TimeID: e.TimeID, Variant: v,
				Message: "no trigger or action ever selects this variant",
			})
		}
	}

	report.Cycles, report.CyclesTruncated = rg.Cycles(cfg.MaxCycles, cfg.CyclesTimeout)
	for _, c := range report.Cycles {
		report.Findings = append(report.Findings, Finding{
			Severity: SeverityInfo, Kind: KindCycle, Variant: -1,
			Message: fmt.Sprintf("reference cycle %v", c),
		})
	}

	report.Influence = topRanked(rg.Influence(), cfg.TopInfluence)
	return report
}

func (rg *ReferenceGraph) checkRef(ref Reference, reachable map[string]bool) []Finding {
	at := func(sev Severity, kind, msg string) Finding {
		return Finding{Severity: sev, Kind: kind, TimeID: ref.FromID, Variant: ref.FromVariant, Message: msg}
	}
	target, ok := rg.store.FindByID(ref.ToID)
	if !ok {
		return []Finding{at(SeverityError, KindDanglingTarget,
			fmt.Sprintf("%s %q targets missing entry %s", ref.Kind, ref.Token, ref.ToID))}
	}
	if !target.ValidVariant(ref.ToVariant) {
		return []Finding{at(SeverityError, KindBadVariant,
			fmt.Sprintf("%s %q targets variant %d of %s, which has %d", ref.Kind, ref.Token, ref.ToVariant, ref.ToID, len(target.Scripts)))}
	}

	switch ref.Kind {
	case RefAction, RefPending:
		reachable[VariantKey(ref.ToID, ref.ToVariant)] = true
	case RefUnlock:
		for _, label := range markup.Labels(target.Scripts[ref.ToVariant]) {
			if label == ref.UnlockLabel {
				return nil
			}
		}
		return []Finding{at(SeverityWarning, KindOrphanUnlock,
			fmt.Sprintf("trigger %q unlocks (%s) but %s has no such inactive action", ref.Token, ref.UnlockLabel, VariantKey(ref.ToID, ref.ToVariant)))}
	}
	return nil
}

func (rg *ReferenceGraph) checkTriggers(reachable map[string]bool) []Finding {
	var findings []Finding
	for _, e := range rg.store.Entries() {
		for _, lt := range e.LoopTriggers {
			reachable[VariantKey(e.TimeID, lt.VariantIndex)] = true
		}
		for _, ct := range e.ConditionTriggers {
			obtainable := true
			for _, flag := range ct.RequiredFlags {
				if len(rg.FlagSources(flag)) == 0 {
					obtainable = false
					findings = append(findings, Finding{
						Severity: SeverityWarning, Kind: KindUnobtainableFlag, TimeID: e.TimeID, Variant: ct.VariantIndex,
						Message: fmt.Sprintf("no token grants required flag #%s", flag),
					})
				}
			}
			if obtainable {
				reachable[VariantKey(e.TimeID, ct.VariantIndex)] = true
			}
		}
	}
	return findings
}

func topRanked(scores map[string]float64, n int) []Ranked {
	ranked := make([]Ranked, 0, len(scores))
	for k, s := range scores {
		ranked = append(ranked, Ranked{Key: k, Score: s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Key < ranked[j].Key
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
