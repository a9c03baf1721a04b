package loader_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/loopline/pkg/loader"
)

// =============================================================================
// FindStoryPath Tests
// =============================================================================

func TestFindStoryPath_NonExistentDirectory(t *testing.T) {
	_, err := loader.FindStoryPath("/nonexistent/path/to/story")
	if err == nil {
		t.Fatal("Expected error for non-existent directory")
	}
	if !strings.Contains(err.Error(), "failed to read story directory") {
		t.Errorf("Expected 'failed to read story directory' error, got: %v", err)
	}
}

func TestFindStoryPath_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := loader.FindStoryPath(dir)
	if err == nil {
		t.Fatal("Expected error for empty directory")
	}
	if !strings.Contains(err.Error(), "no story file found") {
		t.Errorf("Expected 'no story file found' error, got: %v", err)
	}
}

func TestFindStoryPath_NoStoryFiles(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello"), 0644)
	os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# notes"), 0644)

	_, err := loader.FindStoryPath(dir)
	if err == nil {
		t.Fatal("Expected error when no story files exist")
	}
}

func TestFindStoryPath_PrefersStoryYAML(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "chapter.yaml"), []byte("entries: []"), 0644)
	os.WriteFile(filepath.Join(dir, "story.yaml"), []byte("entries: []"), 0644)
	os.WriteFile(filepath.Join(dir, "timeline.json"), []byte(`{"entries":[]}`), 0644)

	path, err := loader.FindStoryPath(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if filepath.Base(path) != "story.yaml" {
		t.Errorf("Expected story.yaml to be preferred, got: %s", path)
	}
}

func TestFindStoryPath_FallsBackToTimeline(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("entries: []"), 0644)
	os.WriteFile(filepath.Join(dir, "timeline.jsonl"), []byte(""), 0644)

	path, err := loader.FindStoryPath(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if filepath.Base(path) != "timeline.jsonl" {
		t.Errorf("Expected timeline.jsonl, got: %s", path)
	}
}

func TestFindStoryPath_SkipsArtifacts(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "story.backup.yaml"), []byte("entries: []"), 0644)
	os.WriteFile(filepath.Join(dir, "story.orig.yaml"), []byte("entries: []"), 0644)
	os.WriteFile(filepath.Join(dir, "b.merge.json"), []byte("{}"), 0644)
	os.WriteFile(filepath.Join(dir, "zeta.yaml"), []byte("entries: []"), 0644)

	path, err := loader.FindStoryPath(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if filepath.Base(path) != "zeta.yaml" {
		t.Errorf("Should not select artifact files, got: %s", path)
	}
}

// =============================================================================
// LoadStoryFromFile Tests
// =============================================================================

func TestLoadStoryFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "story.yaml")
	content := `title: Morning
start: {month: 3, day: 1, hour: 6}
dateFormat: "01/02"
entries:
  - month: 3
    day: 1
    hour: 7
    minute: 15
    scripts:
      - "Wake to [a gunshot:03-01-07-30:1:(washroom) #woke]."
      - "Who was I?"
    loopTriggers:
      - {loopThreshold: 1, variantIndex: 1}
  - minutesFromStart: 90
    scripts: ["Move to (washroom:03-01-07-30 -> 1)."]
    conditionTriggers:
      - requiredFlags: [woke]
        variantIndex: 0
`
	os.WriteFile(path, []byte(content), 0644)

	story, err := loader.LoadStoryFromFile(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if story.Title != "Morning" {
		t.Errorf("Expected title 'Morning', got %q", story.Title)
	}
	if story.Start.Month != 3 || story.Start.Hour == nil || *story.Start.Hour != 6 || story.Start.Minute != nil {
		t.Errorf("Unexpected start: %+v", story.Start)
	}
	if len(story.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(story.Entries))
	}
	first := story.Entries[0]
	if first.Hour == nil || *first.Hour != 7 || first.Minute == nil || *first.Minute != 15 {
		t.Errorf("Unexpected first entry time: %+v", first)
	}
	if len(first.LoopTriggers) != 1 || first.LoopTriggers[0].VariantIndex != 1 {
		t.Errorf("Loop triggers not decoded: %+v", first.LoopTriggers)
	}
	second := story.Entries[1]
	if second.MinutesFromStart == nil || *second.MinutesFromStart != 90 {
		t.Errorf("minutesFromStart not decoded: %+v", second)
	}
	if len(second.ConditionTriggers) != 1 || second.ConditionTriggers[0].RequiredFlags[0] != "woke" {
		t.Errorf("Condition triggers not decoded: %+v", second.ConditionTriggers)
	}
}

func TestLoadStoryFromFile_YAMLUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "story.yaml")
	os.WriteFile(path, []byte("entries:\n  - month: 1\n    day: 1\n    script: [oops]\n"), 0644)

	if _, err := loader.LoadStoryFromFile(path); err == nil {
		t.Fatal("Expected error for misspelled field")
	}
}

func TestLoadStoryFromFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prison.json")
	os.WriteFile(path, []byte(`{"entries":[{"month":1,"day":2,"scripts":["a","b"]}]}`), 0644)

	story, err := loader.LoadStoryFromFile(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if story.Title != "prison" {
		t.Errorf("Expected title from file name, got %q", story.Title)
	}
	if len(story.Entries) != 1 || len(story.Entries[0].Scripts) != 2 {
		t.Errorf("Unexpected entries: %+v", story.Entries)
	}
}

func TestLoadStoryFromFile_EmptyJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.jsonl")
	os.WriteFile(path, []byte("\n\n   \n\t\n"), 0644)

	story, err := loader.LoadStoryFromFile(path)
	if err != nil {
		t.Fatalf("Whitespace-only file should not error: %v", err)
	}
	if len(story.Entries) != 0 {
		t.Errorf("Expected 0 entries, got %d", len(story.Entries))
	}
}

func TestLoadStoryFromFile_MalformedJSONLLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.jsonl")
	content := `{"minutesFromStart":0,"scripts":["one"]}
{"minutesFromStart":15
{"minutesFromStart":30,"scripts":["three"]}
invalid
{"minutesFromStart":45,"scripts":["four"]}
`
	os.WriteFile(path, []byte(content), 0644)

	story, err := loader.LoadStoryFromFile(path)
	if err != nil {
		t.Fatalf("Should continue loading after malformed lines: %v", err)
	}
	if len(story.Entries) != 3 {
		t.Errorf("Expected 3 valid entries, got %d", len(story.Entries))
	}
}

func TestLoadStoryFromFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "story.toml")
	os.WriteFile(path, []byte(""), 0644)

	_, err := loader.LoadStoryFromFile(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("Expected unsupported extension error, got: %v", err)
	}
}

func TestLoadStoryFromFile_Missing(t *testing.T) {
	_, err := loader.LoadStoryFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadStoryFromFile_Testdata(t *testing.T) {
	story, err := loader.LoadStoryFromFile("../../tests/testdata/prison.yaml")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(story.Entries) < 5 {
		t.Errorf("Expected the sample story to have at least 5 entries, got %d", len(story.Entries))
	}
}

func TestListStoryPaths_Order(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "timeline.json", "a.jsonl", "story.yaml", "notes.txt"} {
		os.WriteFile(filepath.Join(dir, name), []byte(""), 0644)
	}

	paths, err := loader.ListStoryPaths(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := []string{"story.yaml", "timeline.json", "a.jsonl", "b.yaml"}
	if len(paths) != len(want) {
		t.Fatalf("Expected %d paths, got %v", len(want), paths)
	}
	for i, name := range want {
		if filepath.Base(paths[i]) != name {
			t.Errorf("paths[%d] = %s, want %s", i, filepath.Base(paths[i]), name)
		}
	}
}
