package main_test

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestExport_AllFormats(t *testing.T) {
	bin := buildLooplineBinary(t)
	env := t.TempDir()
	writeLighthouse(t, env)
	out := t.TempDir()

	mdPath := filepath.Join(out, "story.md")
	svgPath := filepath.Join(out, "timeline.svg")
	pngPath := filepath.Join(out, "timeline.png")
	sqliteDir := filepath.Join(out, "db")

	cmd := exec.Command(bin,
		"--export-md="+mdPath,
		"--export-svg="+svgPath,
		"--export-png="+pngPath,
		"--export-sqlite="+sqliteDir,
	)
	cmd.Dir = env
	if combined, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("export failed: %v\n%s", err, combined)
	}

	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("markdown not written: %v", err)
	}
	for _, want := range []string{"The Lighthouse Keeper", "```mermaid"} {
		if !strings.Contains(string(md), want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	svg, err := os.ReadFile(svgPath)
	if err != nil {
		t.Fatalf("svg not written: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Error("svg output has no <svg> element")
	}

	png, err := os.ReadFile(pngPath)
	if err != nil {
		t.Fatalf("png not written: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("png output lacks PNG signature")
	}

	if _, err := os.Stat(filepath.Join(sqliteDir, "story.sqlite3")); err != nil {
		t.Errorf("sqlite database not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(sqliteDir, "data", "lint.json")); err != nil {
		t.Errorf("lint.json not written: %v", err)
	}
}
