package watch

import (
	"github.com/Dicklesworthstone/loopline/pkg/analysis"
	"github.com/Dicklesworthstone/loopline/pkg/model"
	"github.com/Dicklesworthstone/loopline/pkg/timeline"
)

// LoadFunc reads the current story from disk.
type LoadFunc func() (model.Story, error)

// Reload is the outcome of one Reloader.Check.
type Reload struct {
	Story    model.Story
	Store    *timeline.Store
	DataErrs []error
	Hash     string
}

// Reloader loads a story and reports whether it differs from the last one
// accepted.
type Reloader struct {
	load     LoadFunc
	lastHash string
}

// NewReloader creates a reloader. seedHash is the hash of the story already
// on screen so that a save without changes does not reload.
func NewReloader(load LoadFunc, seedHash string) *Reloader {
	return &Reloader{load: load, lastHash: seedHash}
}

// Check loads the story. It returns changed=false when the content hash is
// unchanged. A load error leaves the last accepted hash in place so the next
// valid save is picked up.
func (r *Reloader) Check() (Reload, bool, error) {
	story, err := r.load()
	if err != nil {
		return Reload{}, false, err
	}
	hash := analysis.ComputeDataHash(story)
	if hash == r.lastHash {
		return Reload{}, false, nil
	}
	store, errs := timeline.FromStory(story)
	r.lastHash = hash
	return Reload{Story: story, Store: store, DataErrs: errs, Hash: hash}, true, nil
}

// Hash returns the hash of the last accepted story.
func (r *Reloader) Hash() string {
	return r.lastHash
}
