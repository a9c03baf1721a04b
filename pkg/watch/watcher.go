// Package watch reloads story files when they change on disk.
package watch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// Change lists the watched files touched during one debounce window.
type Change struct {
	Paths []string
}

// Watcher reports debounced changes to a fixed set of files. It watches the
// parent directories so that editors replacing a file by rename are seen.
type Watcher struct {
	files    map[string]bool
	debounce time.Duration
	fsw      *fsnotify.Watcher
	changes  chan Change
	logger   *log.Logger
}

// New starts watching paths.
func New(paths []string, debounce time.Duration) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		files:    make(map[string]bool, len(paths)),
		debounce: debounce,
		fsw:      fsw,
		changes:  make(chan Change, 1),
		logger:   log.Default(),
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return w, nil
}

// SetLogger sets a custom logger for watcher errors.
func (w *Watcher) SetLogger(logger *log.Logger) {
	w.logger = logger
}

// Changes delivers one Change per quiet period after a burst of events.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Run forwards debounced changes until ctx is done, then closes the
// underlying watcher and the Changes channel.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.changes)
	defer w.fsw.Close()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending = make(map[string]bool)
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			path, ok := w.relevant(ev)
			if !ok {
				continue
			}
			pending[path] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Printf("WARNING: file watcher: %v", err)
			}

		case <-timerC:
			timerC = nil
			change := Change{Paths: make([]string, 0, len(pending))}
			for p := range pending {
				change.Paths = append(change.Paths, p)
			}
			sort.Strings(change.Paths)
			clear(pending)
			select {
			case w.changes <- change:
			case <-ctx.Done():
				return
			}
		}
	}
}

// relevant returns the absolute path of ev when it touches a watched file.
func (w *Watcher) relevant(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return "", false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return "", false
	}
	return abs, w.files[abs]
}
