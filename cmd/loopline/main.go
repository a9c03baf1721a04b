package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/loopline/pkg/analysis"
	"github.com/Dicklesworthstone/loopline/pkg/config"
	"github.com/Dicklesworthstone/loopline/pkg/engine"
	"github.com/Dicklesworthstone/loopline/pkg/export"
	"github.com/Dicklesworthstone/loopline/pkg/journal"
	"github.com/Dicklesworthstone/loopline/pkg/loader"
	"github.com/Dicklesworthstone/loopline/pkg/model"
	"github.com/Dicklesworthstone/loopline/pkg/timeline"
	"github.com/Dicklesworthstone/loopline/pkg/ui"
	"github.com/Dicklesworthstone/loopline/pkg/version"
	"github.com/Dicklesworthstone/loopline/pkg/watch"
	"github.com/Dicklesworthstone/loopline/pkg/workspace"
)

func main() {
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	storyPath := flag.String("story", "", "Story file to play (yaml, json or jsonl)")
	dir := flag.String("dir", ".", "Directory to search for a story or workspace")
	workspacePath := flag.String("workspace", "", "Workspace config (default: <dir>/.loopline/workspace.yaml if present)")
	watchFlag := flag.Bool("watch", false, "Reload the story when its files change")
	journalPath := flag.String("journal", "", "Append session events to this JSONL file (overrides LOOPLINE_JOURNAL)")
	logFile := flag.String("log-file", "", "Write log output here while the TUI runs (overrides LOOPLINE_LOG_FILE)")
	speed := flag.Float64("speed", 0, "Initial scroll speed multiplier (overrides LOOPLINE_SPEED)")
	robotLint := flag.Bool("robot-lint", false, "Output the story lint report as JSON")
	robotSimulate := flag.Int("robot-simulate", 0, "Run N loops headless and output the session as JSON")
	activate := flag.String("activate", "", "Comma-separated TIMEID:ORDINAL tokens to click in --robot-simulate")
	robotJournal := flag.String("robot-journal", "", "Summarize a session journal file as JSON")
	exportSQLite := flag.String("export-sqlite", "", "Export the story to a SQLite database in this directory")
	exportMD := flag.String("export-md", "", "Export the story as a Markdown report")
	exportSVG := flag.String("export-svg", "", "Export the timeline chart as SVG")
	exportPNG := flag.String("export-png", "", "Export the timeline chart as PNG")
	flag.Parse()

	if *help {
		fmt.Println("Usage: loopline [options]")
		fmt.Println("\nA looping timeline narrative in the terminal.")
		fmt.Println("\nOptions:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("loopline %s\n", version.Version)
		os.Exit(0)
	}

	if *robotJournal != "" {
		if err := runRobotJournal(*robotJournal); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *speed != 0 {
		cfg.Engine.Speed = engine.ClampSpeed(*speed)
	}
	if *journalPath != "" {
		cfg.Journal = *journalPath
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}

	robotMode := *robotLint || *robotSimulate > 0
	exportMode := *exportSQLite != "" || *exportMD != "" || *exportSVG != "" || *exportPNG != ""
	interactive := !robotMode && !exportMode && term.IsTerminal(int(os.Stdout.Fd()))

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if interactive {
		out, closeLog, err := openLog(cfg.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closeLog()
		logger.SetOutput(out)
		log.SetOutput(out)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	src, err := resolveSource(ctx, *storyPath, *dir, *workspacePath, interactive, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store, dataErrs := timeline.FromStory(src.story)
	for _, e := range dataErrs {
		logger.Printf("WARNING: %v", e)
	}

	if robotMode || exportMode {
		if err := runBatch(batchOptions{
			src:       src,
			store:     store,
			dataErrs:  dataErrs,
			cfg:       cfg,
			lint:      *robotLint,
			simulate:  *robotSimulate,
			activate:  *activate,
			sqliteDir: *exportSQLite,
			mdPath:    *exportMD,
			svgPath:   *exportSVG,
			pngPath:   *exportPNG,
			logger:    logger,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if !interactive {
		fmt.Fprintln(os.Stderr, "Error: stdout is not a terminal; use --robot-lint, --robot-simulate or an --export flag")
		os.Exit(1)
	}

	if err := runTUI(ctx, src, store, cfg, *watchFlag, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// source is the story being played and where it came from.
type source struct {
	story model.Story
	paths []string // files to watch
	load  watch.LoadFunc
}

func resolveSource(ctx context.Context, storyPath, dir, workspacePath string, interactive bool, logger *log.Logger) (source, error) {
	if storyPath != "" {
		return fileSource(storyPath)
	}

	if workspacePath == "" {
		if found, ok := workspace.FindConfig(dir); ok {
			workspacePath = found
		}
	}
	if workspacePath != "" {
		return workspaceSource(ctx, workspacePath, logger)
	}

	paths, err := loader.ListStoryPaths(dir)
	if err != nil {
		return source{}, err
	}
	if len(paths) == 0 {
		return source{}, fmt.Errorf("no story file found in %s", dir)
	}
	chosen := paths[0]
	if len(paths) > 1 && interactive {
		chosen, err = pickStory(paths)
		if err != nil {
			return source{}, err
		}
	}
	return fileSource(chosen)
}

func fileSource(path string) (source, error) {
	load := func() (model.Story, error) {
		return loader.LoadStoryFromFile(path)
	}
	story, err := load()
	if err != nil {
		return source{}, err
	}
	return source{story: story, paths: []string{path}, load: load}, nil
}

func workspaceSource(ctx context.Context, configPath string, logger *log.Logger) (source, error) {
	load := func() (model.Story, error) {
		story, _, err := loadWorkspace(ctx, configPath, logger)
		return story, err
	}
	story, cl, err := loadWorkspace(ctx, configPath, logger)
	if err != nil {
		return source{}, err
	}
	return source{story: story, paths: append([]string{configPath}, cl.Paths()...), load: load}, nil
}

// loadWorkspace reads the workspace config and merges its chapters. The
// config is read again on every call so watch mode sees chapter edits.
func loadWorkspace(ctx context.Context, configPath string, logger *log.Logger) (model.Story, *workspace.ChapterLoader, error) {
	cfg, err := workspace.LoadConfig(configPath)
	if err != nil {
		return model.Story{}, nil, err
	}
	cl := workspace.NewChapterLoader(cfg, workspace.RootOf(configPath))
	cl.SetLogger(logger)
	story, results, err := cl.LoadAll(ctx)
	if err != nil {
		return model.Story{}, nil, err
	}
	if sum := workspace.Summarize(results); sum.FailedChapters > 0 {
		logger.Printf("WARNING: %d of %d chapters failed to load: %s",
			sum.FailedChapters, sum.TotalChapters, strings.Join(sum.FailedChapterNames, ", "))
	}
	return story, cl, nil
}

func pickStory(paths []string) (string, error) {
	options := make([]huh.Option[string], len(paths))
	for i, p := range paths {
		options[i] = huh.NewOption(filepath.Base(p), p)
	}
	var choice string
	err := huh.NewSelect[string]().
		Title("Several stories found. Which one?").
		Options(options...).
		Value(&choice).
		Run()
	if err != nil {
		return "", fmt.Errorf("story selection: %w", err)
	}
	return choice, nil
}

func openLog(path string) (io.Writer, func(), error) {
	if path == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func openJournal(path string, logger *log.Logger) (*journal.Writer, error) {
	if path == "" {
		return nil, nil
	}
	w, err := journal.Open(path)
	if err != nil {
		return nil, err
	}
	w.SetLogger(logger)
	return w, nil
}

func runTUI(ctx context.Context, src source, store *timeline.Store, cfg config.Config, watchMode bool, logger *log.Logger) error {
	eng := engine.New(store, nil)
	eng.SetLogger(logger)

	opts := ui.Options{
		Story:  src.story,
		Config: cfg.Engine,
		Logger: logger,
	}

	jw, err := openJournal(cfg.Journal, logger)
	if err != nil {
		return err
	}
	if jw != nil {
		defer jw.Close()
		opts.Observer = jw
	}

	if watchMode {
		w, err := watch.New(src.paths, cfg.WatchDebounce)
		if err != nil {
			return err
		}
		w.SetLogger(logger)
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go w.Run(watchCtx)
		opts.Watcher = w
		opts.Reloader = watch.NewReloader(src.load, analysis.ComputeDataHash(src.story))
	}

	m := ui.NewModel(eng, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

type batchOptions struct {
	src       source
	store     *timeline.Store
	dataErrs  []error
	cfg       config.Config
	lint      bool
	simulate  int
	activate  string
	sqliteDir string
	mdPath    string
	svgPath   string
	pngPath   string
	logger    *log.Logger
}

// lintOutput is the --robot-lint payload.
type lintOutput struct {
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version"`
	Title       string    `json:"title"`
	Sources     []string  `json:"sources"`
	*analysis.Report
}

// simulateOutput is the --robot-simulate payload.
type simulateOutput struct {
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version"`
	Title       string    `json:"title"`
	DataHash    string    `json:"data_hash"`
	ui.SimulationResult
	Events map[string]int `json:"events"`
}

// eventCounter tallies engine events by kind.
type eventCounter map[string]int

func (c eventCounter) Observe(ev engine.Event) {
	c[string(ev.Kind)]++
}

func runBatch(o batchOptions) error {
	report := analysis.Lint(o.store, o.dataErrs)
	report.DataHash = analysis.ComputeDataHash(o.src.story)
	title := o.src.story.Title

	if o.sqliteDir != "" {
		exp := export.NewSQLiteExporter(o.store, &report, title)
		exp.SetLogger(o.logger)
		if err := exp.Export(o.sqliteDir); err != nil {
			return fmt.Errorf("sqlite export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %s\n", filepath.Join(o.sqliteDir, export.DatabaseName))
	}
	if o.mdPath != "" {
		if err := export.SaveMarkdownToFile(o.store, &report, title, o.mdPath); err != nil {
			return fmt.Errorf("markdown export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %s\n", o.mdPath)
	}
	if o.svgPath != "" {
		if err := export.SaveSVG(o.store, title, o.svgPath); err != nil {
			return fmt.Errorf("svg export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %s\n", o.svgPath)
	}
	if o.pngPath != "" {
		if err := export.SavePNG(o.store, title, o.pngPath); err != nil {
			return fmt.Errorf("png export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %s\n", o.pngPath)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if o.lint {
		out := lintOutput{
			GeneratedAt: time.Now().UTC(),
			Version:     version.Version,
			Title:       title,
			Sources:     o.src.paths,
			Report:      &report,
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding lint report: %w", err)
		}
	}

	if o.simulate > 0 {
		var acts []ui.Activation
		for _, s := range strings.Split(o.activate, ",") {
			if s = strings.TrimSpace(s); s == "" {
				continue
			}
			a, err := ui.ParseActivation(s)
			if err != nil {
				return err
			}
			acts = append(acts, a)
		}

		eng := engine.New(o.store, nil)
		eng.SetLogger(o.logger)
		counter := eventCounter{}
		obs := engine.Observers{counter}
		jw, err := openJournal(o.cfg.Journal, o.logger)
		if err != nil {
			return err
		}
		if jw != nil {
			defer jw.Close()
			obs = append(obs, jw)
		}
		eng.SetObserver(obs)

		res := ui.Simulate(eng, o.cfg.Engine, ui.SimulationOptions{Loops: o.simulate, Activate: acts})
		out := simulateOutput{
			GeneratedAt:      time.Now().UTC(),
			Version:          version.Version,
			Title:            title,
			DataHash:         report.DataHash,
			SimulationResult: res,
			Events:           counter,
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding simulation: %w", err)
		}
	}
	return nil
}

// journalOutput is the --robot-journal payload.
type journalOutput struct {
	GeneratedAt time.Time `json:"generated_at"`
	Path        string    `json:"path"`
	journal.Stats
}

func runRobotJournal(path string) error {
	records, err := journal.Load(path)
	if err != nil {
		return err
	}
	out := journalOutput{
		GeneratedAt: time.Now().UTC(),
		Path:        path,
		Stats:       journal.Summarize(records, 10),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
