package journal

import (
	"sort"
	"time"

	"github.com/Dicklesworthstone/loopline/pkg/model"
	"github.com/Dicklesworthstone/loopline/pkg/version"
)

// LabelCount is a token label with how often it was activated.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Stats summarizes a journal.
type Stats struct {
	Records       int            `json:"records"`
	Sessions      int            `json:"sessions"`
	ByKind        map[string]int `json:"by_kind"`
	MaxLoop       int            `json:"max_loop"`
	FlagsSeen     []string       `json:"flags_seen"`
	Skipped       int            `json:"skipped"`
	TopTokens     []LabelCount   `json:"top_tokens"`
	First         time.Time      `json:"first,omitempty"`
	Last          time.Time      `json:"last,omitempty"`
	NewerVersions []string       `json:"newer_versions,omitempty"`
	Unlocked      []model.Unlock `json:"unlocked"`
	Malformed     int            `json:"malformed_unlocks"`
}

// Summarize aggregates records. topN bounds TopTokens; zero keeps all.
func Summarize(records []Record, topN int) Stats {
	stats := Stats{
		ByKind:    make(map[string]int),
		FlagsSeen: []string{},
		TopTokens: []LabelCount{},
		Unlocked:  []model.Unlock{},
	}
	sessions := make(map[string]bool)
	flags := make(map[string]bool)
	labels := make(map[string]int)
	newer := make(map[string]bool)
	unlocked := make(map[string]model.Unlock)

	for _, rec := range records {
		stats.Records++
		stats.ByKind[rec.Kind]++
		sessions[rec.Session] = true
		if rec.Loop > stats.MaxLoop {
			stats.MaxLoop = rec.Loop
		}
		if rec.Flag != "" {
			flags[rec.Flag] = true
		}
		switch rec.Kind {
		case "activate":
			labels[rec.Label]++
		case "skip":
			stats.Skipped++
		case "unlock":
			if rec.Unlock == "" {
				break
			}
			if u, err := model.ParseUnlock(rec.Unlock); err != nil {
				stats.Malformed++
			} else {
				unlocked[u.Key()] = u
			}
		}
		if stats.First.IsZero() || rec.At.Before(stats.First) {
			stats.First = rec.At
		}
		if rec.At.After(stats.Last) {
			stats.Last = rec.At
		}
		if version.Newer(rec.Version) {
			newer[rec.Version] = true
		}
	}
	stats.Sessions = len(sessions)

	for f := range flags {
		stats.FlagsSeen = append(stats.FlagsSeen, f)
	}
	sort.Strings(stats.FlagsSeen)

	for l, n := range labels {
		stats.TopTokens = append(stats.TopTokens, LabelCount{Label: l, Count: n})
	}
	sort.Slice(stats.TopTokens, func(i, j int) bool {
		if stats.TopTokens[i].Count != stats.TopTokens[j].Count {
			return stats.TopTokens[i].Count > stats.TopTokens[j].Count
		}
		return stats.TopTokens[i].Label < stats.TopTokens[j].Label
	})
	if topN > 0 && len(stats.TopTokens) > topN {
		stats.TopTokens = stats.TopTokens[:topN]
	}

	keys := make([]string, 0, len(unlocked))
	for k := range unlocked {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stats.Unlocked = append(stats.Unlocked, unlocked[k])
	}

	for v := range newer {
		stats.NewerVersions = append(stats.NewerVersions, v)
	}
	sort.Strings(stats.NewerVersions)
	return stats
}
