package main_test

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWorkspace_MergesChapters(t *testing.T) {
	bin := buildLooplineBinary(t)
	env := t.TempDir()

	if err := os.MkdirAll(filepath.Join(env, ".loopline"), 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		".loopline/workspace.yaml": `title: Two Mornings
chapters:
  - path: chapters/one.yaml
  - path: chapters/two.yaml
  - path: chapters/draft.yaml
    enabled: false
`,
		"chapters/one.yaml": `entries:
  - {month: 1, day: 1, hour: 8, minute: 0, scripts: ["First morning. [look:01-02-08-00 -> 1]"]}
`,
		"chapters/two.yaml": `entries:
  - {month: 1, day: 2, hour: 8, minute: 0, scripts: ["Second morning.", "Second morning, changed."]}
`,
	}
	for name, content := range files {
		path := filepath.Join(env, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	payload := runJSON(t, bin, env, "--robot-lint")

	if payload["title"] != "Two Mornings" {
		t.Errorf("title = %v", payload["title"])
	}
	if entries, _ := payload["entries"].(float64); int(entries) != 2 {
		t.Errorf("entries = %v, want 2 from two enabled chapters", payload["entries"])
	}
	// The action in chapter one resolves against chapter two.
	for _, f := range payload["findings"].([]any) {
		if m, _ := f.(map[string]any); m["kind"] == "dangling-target" {
			t.Errorf("cross-chapter reference reported dangling: %v", m)
		}
	}
	if sources, _ := payload["sources"].([]any); len(sources) != 3 {
		t.Errorf("sources = %v, want config plus two chapters", payload["sources"])
	}
}
