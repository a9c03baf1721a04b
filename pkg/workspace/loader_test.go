package workspace_test

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/loopline/pkg/timeline"
	"github.com/Dicklesworthstone/loopline/pkg/workspace"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func setupWorkspace(t *testing.T, config string, chapters map[string]string) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, workspace.ConfigDir, workspace.ConfigFile), config)
	for name, content := range chapters {
		writeFile(t, filepath.Join(root, name), content)
	}
	return root
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no chapters", "title: x\n", "no chapters"},
		{"empty path", "chapters:\n  - path: ''\n", "has no path"},
		{"duplicate", "chapters:\n  - path: a.yaml\n  - path: ./a.yaml\n", "listed twice"},
		{"bad yaml", "chapters: [\n", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "workspace.yaml")
			writeFile(t, path, tt.content)
			_, err := workspace.LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestChapterConfig_Defaults(t *testing.T) {
	off := false
	ch := workspace.ChapterConfig{Path: "chapters/night-watch.yaml"}
	if !ch.IsEnabled() {
		t.Error("chapters should be enabled by default")
	}
	if ch.GetName() != "night-watch" {
		t.Errorf("GetName() = %q, want night-watch", ch.GetName())
	}
	ch.Enabled = &off
	if ch.IsEnabled() {
		t.Error("explicitly disabled chapter reported enabled")
	}
}

func TestFindConfig(t *testing.T) {
	root := setupWorkspace(t, "chapters:\n  - path: a.yaml\n", nil)
	path, ok := workspace.FindConfig(root)
	if !ok {
		t.Fatal("expected workspace config to be found")
	}
	if workspace.RootOf(path) != root {
		t.Errorf("RootOf(%s) = %s, want %s", path, workspace.RootOf(path), root)
	}
	if _, ok := workspace.FindConfig(t.TempDir()); ok {
		t.Error("empty directory should have no workspace")
	}
}

func TestLoadAllFromConfig_MergesInChapterOrder(t *testing.T) {
	root := setupWorkspace(t, `title: Lighthouse
start: {month: 10, day: 3, hour: 6}
chapters:
  - path: one.yaml
  - path: two.jsonl
  - path: skipped.yaml
    enabled: false
`, map[string]string{
		"one.yaml": `entries:
  - {month: 10, day: 3, hour: 7, minute: 0, scripts: ["second"]}
  - {month: 10, day: 3, hour: 6, minute: 0, scripts: ["first"]}
`,
		"two.jsonl":    `{"minutesFromStart":120,"scripts":["third"]}` + "\n",
		"skipped.yaml": "not: [valid",
	})

	story, results, err := workspace.LoadAllFromConfig(context.Background(), filepath.Join(root, ".loopline", "workspace.yaml"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results (disabled chapter skipped), got %d", len(results))
	}
	if story.Title != "Lighthouse" {
		t.Errorf("Title = %q", story.Title)
	}
	if len(story.Entries) != 3 {
		t.Fatalf("Expected 3 merged entries, got %d", len(story.Entries))
	}
	if story.Entries[2].Scripts[0] != "third" {
		t.Errorf("chapter order not kept: %+v", story.Entries)
	}

	store, errs := timeline.FromStory(story)
	if len(errs) != 0 {
		t.Fatalf("unexpected data errors: %v", errs)
	}
	ids := []string{}
	for _, e := range store.Entries() {
		ids = append(ids, e.TimeID)
	}
	want := "10-03-06-00,10-03-07-00,10-03-08-00"
	if strings.Join(ids, ",") != want {
		t.Errorf("ids = %v, want %s", ids, want)
	}
}

func TestLoadAll_FailedChapterDoesNotAbort(t *testing.T) {
	root := setupWorkspace(t, "chapters:\n  - path: good.yaml\n  - path: missing.yaml\n", map[string]string{
		"good.yaml": "entries:\n  - {month: 1, day: 1, scripts: [ok]}\n",
	})
	cfg, err := workspace.LoadConfig(filepath.Join(root, ".loopline", "workspace.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	l := workspace.NewChapterLoader(cfg, root)
	l.SetLogger(log.New(io.Discard, "", 0))

	story, results, err := l.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(story.Entries) != 1 {
		t.Errorf("Expected 1 entry from the good chapter, got %d", len(story.Entries))
	}
	if story.Title != filepath.Base(root) {
		t.Errorf("Title should default to the workspace directory, got %q", story.Title)
	}

	summary := workspace.Summarize(results)
	if summary.TotalChapters != 2 || summary.SuccessfulChapters != 1 || summary.FailedChapters != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(summary.FailedChapterNames) != 1 || summary.FailedChapterNames[0] != "missing" {
		t.Errorf("FailedChapterNames = %v", summary.FailedChapterNames)
	}
	if summary.TotalEntries != 1 {
		t.Errorf("TotalEntries = %d", summary.TotalEntries)
	}
}

func TestLoadAll_DuplicateIDsAcrossChapters(t *testing.T) {
	root := setupWorkspace(t, "chapters:\n  - path: a.yaml\n  - path: b.yaml\n", map[string]string{
		"a.yaml": "entries:\n  - {month: 2, day: 3, hour: 9, scripts: [from a]}\n",
		"b.yaml": "entries:\n  - {month: 2, day: 3, hour: 9, minute: 0, scripts: [from b]}\n",
	})
	story, _, err := workspace.LoadAllFromConfig(context.Background(), filepath.Join(root, ".loopline", "workspace.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	store, errs := timeline.FromStory(story)
	if len(errs) != 1 {
		t.Fatalf("Expected one duplicate error, got %v", errs)
	}
	e, _ := store.FindByID("02-03-09-00")
	if e.Scripts[0] != "from a" {
		t.Errorf("first chapter should win, got %q", e.Scripts[0])
	}
}

func TestLoadAll_NoEnabledChapters(t *testing.T) {
	off := false
	cfg := &workspace.Config{Chapters: []workspace.ChapterConfig{{Path: "a.yaml", Enabled: &off}}}
	_, _, err := workspace.NewChapterLoader(cfg, t.TempDir()).LoadAll(context.Background())
	if err == nil {
		t.Fatal("Expected error when every chapter is disabled")
	}
}

func TestLoadAll_CancelledContext(t *testing.T) {
	root := setupWorkspace(t, "chapters:\n  - path: a.yaml\n", map[string]string{
		"a.yaml": "entries:\n  - {month: 1, day: 1, scripts: [ok]}\n",
	})
	cfg, _ := workspace.LoadConfig(filepath.Join(root, ".loopline", "workspace.yaml"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := workspace.NewChapterLoader(cfg, root)
	l.SetLogger(log.New(io.Discard, "", 0))
	_, results, err := l.LoadAll(ctx)
	if err != nil {
		t.Fatalf("cancellation should be recorded per chapter, got %v", err)
	}
	if results[0].Error == nil {
		t.Error("expected the chapter to carry the context error")
	}
}

func TestPaths(t *testing.T) {
	cfg := &workspace.Config{Chapters: []workspace.ChapterConfig{{Path: "a.yaml"}, {Path: "/abs/b.yaml"}}}
	paths := workspace.NewChapterLoader(cfg, "/root/ws").Paths()
	if len(paths) != 2 || paths[0] != filepath.Join("/root/ws", "a.yaml") || paths[1] != "/abs/b.yaml" {
		t.Errorf("Paths() = %v", paths)
	}
}
