package workspace

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Dicklesworthstone/loopline/pkg/loader"
	"github.com/Dicklesworthstone/loopline/pkg/model"
)

// LoadResult contains the result of loading a single chapter
type LoadResult struct {
	// Chapter is the display name of the chapter
	Chapter string

	// Path is the resolved file path
	Path string

	// Entries are the raw entries read from the chapter
	Entries []model.RawEntry

	// Error is set if loading failed
	Error error
}

// ChapterLoader loads the chapters of a workspace into one story
type ChapterLoader struct {
	config        *Config
	workspaceRoot string
	logger        *log.Logger
}

// NewChapterLoader creates a loader for the given workspace config
func NewChapterLoader(config *Config, workspaceRoot string) *ChapterLoader {
	return &ChapterLoader{
		config:        config,
		workspaceRoot: workspaceRoot,
		logger:        log.Default(),
	}
}

// SetLogger sets a custom logger for error reporting
func (l *ChapterLoader) SetLogger(logger *log.Logger) {
	l.logger = logger
}

// LoadAll loads every enabled chapter and merges them into a single story
// carrying the workspace's title, start and date format. Entries keep the
// chapter order; duplicate time IDs across chapters are left for
// timeline.Normalize to report. Failed chapters are logged and skipped.
func (l *ChapterLoader) LoadAll(ctx context.Context) (model.Story, []LoadResult, error) {
	if l.config == nil {
		return model.Story{}, nil, fmt.Errorf("workspace config is nil")
	}

	chapters := l.enabledChapters()
	if len(chapters) == 0 {
		return model.Story{}, nil, fmt.Errorf("no enabled chapters in workspace")
	}

	results, err := l.loadChaptersParallel(ctx, chapters)
	if err != nil {
		return model.Story{}, results, fmt.Errorf("fatal error during parallel loading: %w", err)
	}

	story := model.Story{
		Title:      l.config.Title,
		Start:      l.config.Start,
		DateFormat: l.config.DateFormat,
	}
	for _, result := range results {
		if result.Error != nil {
			l.logChapterError(result.Chapter, result.Error)
			continue
		}
		story.Entries = append(story.Entries, result.Entries...)
	}
	if story.Title == "" {
		story.Title = filepath.Base(l.workspaceRoot)
	}
	return story, results, nil
}

// Paths returns the resolved file of every enabled chapter.
func (l *ChapterLoader) Paths() []string {
	var paths []string
	for _, ch := range l.enabledChapters() {
		paths = append(paths, l.resolve(ch))
	}
	return paths
}

func (l *ChapterLoader) enabledChapters() []ChapterConfig {
	var enabled []ChapterConfig
	for _, ch := range l.config.Chapters {
		if ch.IsEnabled() {
			enabled = append(enabled, ch)
		}
	}
	return enabled
}

func (l *ChapterLoader) resolve(ch ChapterConfig) string {
	if filepath.IsAbs(ch.Path) {
		return ch.Path
	}
	return filepath.Join(l.workspaceRoot, ch.Path)
}

// loadChaptersParallel loads all chapters concurrently using errgroup
func (l *ChapterLoader) loadChaptersParallel(ctx context.Context, chapters []ChapterConfig) ([]LoadResult, error) {
	results := make([]LoadResult, len(chapters))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)

	for i, ch := range chapters {
		g.Go(func() error {
			path := l.resolve(ch)
			select {
			case <-ctx.Done():
				mu.Lock()
				results[i] = LoadResult{Chapter: ch.GetName(), Path: path, Error: ctx.Err()}
				mu.Unlock()
				return nil // context errors are recorded, not fatal
			default:
			}

			story, err := loader.LoadStoryFromFile(path)
			if err != nil {
				err = fmt.Errorf("failed to load chapter %s: %w", ch.GetName(), err)
			}

			mu.Lock()
			results[i] = LoadResult{
				Chapter: ch.GetName(),
				Path:    path,
				Entries: story.Entries,
				Error:   err,
			}
			mu.Unlock()

			return nil // chapter errors are captured in results
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (l *ChapterLoader) logChapterError(chapter string, err error) {
	if l.logger != nil {
		l.logger.Printf("WARNING: Failed to load chapter %q: %v", chapter, err)
	}
}

// LoadAllFromConfig loads a workspace config and all its chapters
func LoadAllFromConfig(ctx context.Context, configPath string) (model.Story, []LoadResult, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return model.Story{}, nil, fmt.Errorf("failed to load workspace config: %w", err)
	}
	return NewChapterLoader(config, RootOf(configPath)).LoadAll(ctx)
}

// LoadSummary describes the outcome of a workspace load
type LoadSummary struct {
	TotalChapters      int
	SuccessfulChapters int
	FailedChapters     int
	TotalEntries       int
	FailedChapterNames []string
}

// Summarize returns a summary of the load results
func Summarize(results []LoadResult) LoadSummary {
	summary := LoadSummary{TotalChapters: len(results)}
	for _, result := range results {
		if result.Error != nil {
			summary.FailedChapters++
			summary.FailedChapterNames = append(summary.FailedChapterNames, result.Chapter)
			continue
		}
		summary.SuccessfulChapters++
		summary.TotalEntries += len(result.Entries)
	}
	return summary
}
