package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/Dicklesworthstone/loopline/pkg/model"
	"github.com/Dicklesworthstone/loopline/pkg/timeline"
)

// ComputeDataHash fingerprints an authored story. Entry order is part of the
// hash because it decides which of two colliding entries wins.
func ComputeDataHash(story model.Story) string {
	if len(story.Entries) == 0 {
		return "empty"
	}
	data, err := json.Marshal(story)
	if err != nil {
		return "unhashable"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Cache keeps the last lint report keyed by story hash.
type Cache struct {
	mu       sync.RWMutex
	ttl      time.Duration
	hash     string
	report   *Report
	storedAt time.Time
}

// NewCache creates a cache whose entry expires after ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

// Get returns the cached report for story, if fresh.
func (c *Cache) Get(story model.Story) (*Report, bool) {
	hash := ComputeDataHash(story)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.report == nil || c.hash != hash || time.Since(c.storedAt) > c.ttl {
		return nil, false
	}
	return c.report, true
}

// Set stores report for story.
func (c *Cache) Set(story model.Story, report *Report) {
	hash := ComputeDataHash(story)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hash = hash
	c.report = report
	c.storedAt = time.Now()
}

// Invalidate drops the cached report.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hash = ""
	c.report = nil
}

// Stats returns the cached hash and its age.
func (c *Cache) Stats() (hash string, age time.Duration, hasData bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.report == nil {
		return "", 0, false
	}
	return c.hash, time.Since(c.storedAt), true
}

// LintStory normalizes story and lints it, reusing the cached report when the
// story is unchanged. A nil cache always recomputes.
func LintStory(story model.Story, cache *Cache) (*Report, bool) {
	if cache != nil {
		if r, ok := cache.Get(story); ok {
			return r, true
		}
	}
	store, errs := timeline.FromStory(story)
	report := Lint(store, errs)
	report.DataHash = ComputeDataHash(story)
	if cache != nil {
		cache.Set(story, &report)
	}
	return &report, false
}
