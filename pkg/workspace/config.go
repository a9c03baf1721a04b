// Package workspace loads a story split across several chapter files.
//
// A workspace is described by .loopline/workspace.yaml:
//
//	title: The Lighthouse
//	start: {month: 10, day: 3, hour: 6}
//	chapters:
//	  - path: chapters/night.yaml
//	  - path: chapters/morning.yaml
//	    name: Morning
//	  - path: drafts/epilogue.yaml
//	    enabled: false
//
// Chapter paths are relative to the workspace root (the directory holding
// .loopline). Chapters are loaded in parallel and merged in listed order.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/loopline/pkg/model"
)

// ConfigDir and ConfigFile locate the workspace file under a root directory.
const (
	ConfigDir  = ".loopline"
	ConfigFile = "workspace.yaml"
)

// Config is the parsed workspace file.
type Config struct {
	Title      string          `yaml:"title,omitempty"`
	Start      model.StartTime `yaml:"start"`
	DateFormat string          `yaml:"dateFormat,omitempty"`
	Chapters   []ChapterConfig `yaml:"chapters"`
}

// ChapterConfig is one chapter entry.
type ChapterConfig struct {
	Path    string `yaml:"path"`
	Name    string `yaml:"name,omitempty"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the chapter takes part in loading. Chapters are
// enabled unless switched off explicitly.
func (c ChapterConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// GetName returns the display name, defaulting to the file name without
// extension.
func (c ChapterConfig) GetName() string {
	if c.Name != "" {
		return c.Name
	}
	base := filepath.Base(c.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadConfig reads and validates a workspace file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse workspace config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that chapters are listed and not repeated.
func (c *Config) Validate() error {
	if len(c.Chapters) == 0 {
		return fmt.Errorf("workspace lists no chapters")
	}
	seen := make(map[string]bool, len(c.Chapters))
	for i, ch := range c.Chapters {
		if strings.TrimSpace(ch.Path) == "" {
			return fmt.Errorf("chapter %d has no path", i)
		}
		clean := filepath.Clean(ch.Path)
		if seen[clean] {
			return fmt.Errorf("chapter %q listed twice", ch.Path)
		}
		seen[clean] = true
	}
	return nil
}

// FindConfig returns the workspace file under root, if there is one.
func FindConfig(root string) (string, bool) {
	path := filepath.Join(root, ConfigDir, ConfigFile)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

// RootOf returns the workspace root for a config path
// (.loopline/workspace.yaml -> root).
func RootOf(configPath string) string {
	return filepath.Dir(filepath.Dir(configPath))
}
