package watch_test

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dicklesworthstone/loopline/pkg/model"
	"github.com/Dicklesworthstone/loopline/pkg/watch"
)

func TestNew_NoPaths(t *testing.T) {
	if _, err := watch.New(nil, 0); err == nil {
		t.Error("expected error without paths")
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	if _, err := watch.New([]string{"/nonexistent/dir/story.yaml"}, 0); err == nil {
		t.Error("expected error for a directory that cannot be watched")
	}
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	story := filepath.Join(dir, "story.yaml")
	other := filepath.Join(dir, "notes.txt")
	os.WriteFile(story, []byte("entries: []\n"), 0644)

	w, err := watch.New([]string{story}, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	w.SetLogger(log.New(io.Discard, "", 0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// unrelated files in the same directory are ignored
	os.WriteFile(other, []byte("x"), 0644)
	for i := 0; i < 3; i++ {
		os.WriteFile(story, []byte("entries: []\n# edit\n"), 0644)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case change := <-w.Changes():
		want, _ := filepath.Abs(story)
		if len(change.Paths) != 1 || change.Paths[0] != want {
			t.Errorf("change = %+v, want only %s", change, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change delivered")
	}

	select {
	case change := <-w.Changes():
		t.Errorf("burst should produce a single change, got another: %+v", change)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	story := filepath.Join(dir, "story.yaml")
	os.WriteFile(story, []byte(""), 0644)

	w, err := watch.New([]string{story}, 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-w.Changes(); ok {
		t.Error("Changes should be closed after Run returns")
	}
}

func TestReloader(t *testing.T) {
	current := model.Story{Entries: []model.RawEntry{{Month: 1, Day: 1, Scripts: []string{"a"}}}}
	var loadErr error
	load := func() (model.Story, error) { return current, loadErr }

	r := watch.NewReloader(load, "")
	first, changed, err := r.Check()
	if err != nil || !changed {
		t.Fatalf("first check should load: changed=%v err=%v", changed, err)
	}
	if first.Store.Len() != 1 || first.Hash == "" || first.Hash != r.Hash() {
		t.Errorf("unexpected reload: %+v", first)
	}

	if _, changed, _ := r.Check(); changed {
		t.Error("unchanged content should not reload")
	}

	loadErr = errors.New("yaml: line 3: did not find expected key")
	if _, changed, err := r.Check(); err == nil || changed {
		t.Error("load errors should be returned without a reload")
	}
	if r.Hash() != first.Hash {
		t.Error("a failed load must keep the last accepted hash")
	}

	loadErr = nil
	current.Entries = append(current.Entries, model.RawEntry{Month: 13, Day: 1, Scripts: []string{"bad"}})
	next, changed, err := r.Check()
	if err != nil || !changed {
		t.Fatalf("edited story should reload: changed=%v err=%v", changed, err)
	}
	if len(next.DataErrs) != 1 || next.Store.Len() != 1 {
		t.Errorf("data errors should be reported with the valid entries kept: %+v", next)
	}
}
