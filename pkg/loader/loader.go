// Package loader reads authored story files from disk.
//
// Three encodings are accepted: a YAML or JSON document holding a full
// model.Story, or JSONL where every line is one raw entry.
package loader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/loopline/pkg/model"
)

// Format is a story file encoding.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// preferredNames are tried in order before falling back to any story file.
var preferredNames = []string{
	"story.yaml",
	"story.yml",
	"story.json",
	"timeline.yaml",
	"timeline.json",
	"timeline.jsonl",
}

// FormatFromPath infers the encoding from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonl":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("unsupported story file extension %q", filepath.Ext(path))
	}
}

// FindStoryPath locates the story file inside dir, preferring the canonical
// names and skipping backups and merge artifacts.
func FindStoryPath(dir string) (string, error) {
	candidates, err := ListStoryPaths(dir)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no story file found in %s", dir)
	}
	return candidates[0], nil
}

// ListStoryPaths returns every story file in dir, canonical names first and
// the rest in lexical order.
func ListStoryPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read story directory: %w", err)
	}

	var others []string
	present := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if _, err := FormatFromPath(name); err != nil {
			continue
		}
		if isArtifact(name) {
			continue
		}
		present[name] = true
	}

	var paths []string
	preferred := make(map[string]bool, len(preferredNames))
	for _, name := range preferredNames {
		preferred[name] = true
		if present[name] {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	for name := range present {
		if !preferred[name] {
			others = append(others, name)
		}
	}
	sort.Strings(others)
	for _, name := range others {
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}

func isArtifact(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range []string{".backup", ".orig", ".merge", ".bak", "~"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return strings.HasPrefix(lower, ".")
}

// LoadStoryFromFile reads and decodes the story at path.
func LoadStoryFromFile(path string) (model.Story, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return model.Story{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return model.Story{}, fmt.Errorf("failed to open story file: %w", err)
	}
	defer f.Close()

	story, err := ParseStory(f, format)
	if err != nil {
		return model.Story{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if story.Title == "" {
		story.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return story, nil
}

// ParseStory decodes a story in the given format.
func ParseStory(r io.Reader, format Format) (model.Story, error) {
	var story model.Story
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&story); err != nil && err != io.EOF {
			return model.Story{}, err
		}
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&story); err != nil && err != io.EOF {
			return model.Story{}, err
		}
	case FormatJSONL:
		entries, err := parseEntryLines(r)
		if err != nil {
			return model.Story{}, err
		}
		story.Entries = entries
	default:
		return model.Story{}, fmt.Errorf("unknown format %q", format)
	}
	return story, nil
}

// parseEntryLines reads one raw entry per line. Malformed lines are logged
// and skipped so one bad line does not hide the rest of the story.
func parseEntryLines(r io.Reader) ([]model.RawEntry, error) {
	var entries []model.RawEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry model.RawEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			log.Printf("WARNING: skipping malformed story line %d: %v", lineNum, err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading story lines: %w", err)
	}
	return entries, nil
}
