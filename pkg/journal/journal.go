// Package journal appends engine events to a JSONL file for debugging a
// play session. Journals are write-only while playing: nothing is read back
// at startup, and a new run never resumes from an old journal.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Dicklesworthstone/loopline/pkg/engine"
	"github.com/Dicklesworthstone/loopline/pkg/model"
	"github.com/Dicklesworthstone/loopline/pkg/version"
)

// DefaultFileName is used when a directory is given as the journal path.
const DefaultFileName = "loopline_journal.jsonl"

// Record is one journal line.
type Record struct {
	ID      string    `json:"id"`
	Session string    `json:"session"`
	At      time.Time `json:"at"`
	Version string    `json:"version"`
	Kind    string    `json:"kind"`
	TimeID  string    `json:"time_id,omitempty"`
	Variant int       `json:"variant"`
	Label   string    `json:"label,omitempty"`
	Flag    string    `json:"flag,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	Loop    int       `json:"loop"`
	Flags   []string  `json:"flags,omitempty"`
	Unlocks int       `json:"unlocks"`
	Unlock  string    `json:"unlock,omitempty"` // model.Unlock key on unlock records
}

// Writer appends records to a journal file. It implements engine.Observer.
type Writer struct {
	path    string
	session string
	mu      sync.Mutex
	file    *os.File
	logger  *log.Logger
	now     func() time.Time
	written int
}

// Open creates or appends to the journal at path. A directory path gets
// DefaultFileName inside it.
func Open(path string) (*Writer, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultFileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening journal file: %w", err)
	}
	return &Writer{
		path:    path,
		session: ulid.Make().String(),
		file:    file,
		logger:  log.Default(),
		now:     time.Now,
	}, nil
}

// SetLogger sets a custom logger for write failures.
func (w *Writer) SetLogger(logger *log.Logger) {
	w.logger = logger
}

// Path returns the file being written.
func (w *Writer) Path() string {
	return w.path
}

// Session returns the ID shared by every record of this writer.
func (w *Writer) Session() string {
	return w.session
}

// Written returns how many records were appended.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Observe appends ev. Write errors are logged, never returned to the engine.
func (w *Writer) Observe(ev engine.Event) {
	rec := Record{
		ID:      ulid.Make().String(),
		Session: w.session,
		At:      w.now().UTC(),
		Version: version.Version,
		Kind:    string(ev.Kind),
		TimeID:  ev.TimeID,
		Variant: ev.Variant,
		Label:   ev.Label,
		Flag:    ev.Flag,
		Detail:  ev.Detail,
		Loop:    ev.Session.LoopCount,
		Flags:   ev.Session.Flags,
		Unlocks: len(ev.Session.Unlocks),
	}
	if ev.Kind == engine.EventUnlock {
		rec.Unlock = model.Unlock{TimeID: ev.TimeID, Variant: ev.Variant, Label: ev.Label}.Key()
	}
	if err := w.Append(rec); err != nil && w.logger != nil {
		w.logger.Printf("WARNING: journal write failed: %v", err)
	}
}

// Append writes one record.
func (w *Writer) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling journal record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return fmt.Errorf("journal %s is closed", w.path)
	}
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing journal record: %w", err)
	}
	w.written++
	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Load reads every record of a journal. Malformed lines are logged and
// skipped.
func Load(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal file: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			log.Printf("WARNING: skipping malformed journal line %d: %v", lineNum, err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("reading journal: %w", err)
	}
	return records, nil
}
