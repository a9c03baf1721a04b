// Package export writes a loaded story to other formats: a queryable SQLite
// database, a Markdown report, and SVG or PNG timeline charts.
package export

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Dicklesworthstone/loopline/pkg/analysis"
	"github.com/Dicklesworthstone/loopline/pkg/markup"
	"github.com/Dicklesworthstone/loopline/pkg/timeline"
	"github.com/Dicklesworthstone/loopline/pkg/version"

	_ "github.com/mattn/go-sqlite3"
)

// DatabaseName is the file written inside the output directory.
const DatabaseName = "story.sqlite3"

// ExportMeta is written to data/meta.json next to the database.
type ExportMeta struct {
	Version        string    `json:"version"`
	GeneratedAt    time.Time `json:"generated_at"`
	Title          string    `json:"title,omitempty"`
	DataHash       string    `json:"data_hash,omitempty"`
	EntryCount     int       `json:"entry_count"`
	VariantCount   int       `json:"variant_count"`
	ReferenceCount int       `json:"reference_count"`
	SchemaVersion  int       `json:"schema_version"`
}

// SQLiteExporter exports a story and its lint report to SQLite.
type SQLiteExporter struct {
	Store  *timeline.Store
	Report *analysis.Report
	Title  string
	logger *log.Logger
}

// NewSQLiteExporter creates an exporter. report may be nil, in which case the
// story is linted during export.
func NewSQLiteExporter(store *timeline.Store, report *analysis.Report, title string) *SQLiteExporter {
	return &SQLiteExporter{
		Store:  store,
		Report: report,
		Title:  title,
		logger: log.Default(),
	}
}

// SetLogger sets a custom logger for non-fatal export problems.
func (e *SQLiteExporter) SetLogger(logger *log.Logger) {
	e.logger = logger
}

// Export writes the database and supporting JSON to outputDir.
func (e *SQLiteExporter) Export(outputDir string) error {
	if e.Store == nil {
		return fmt.Errorf("nothing to export")
	}
	if e.Report == nil {
		r := analysis.Lint(e.Store, nil)
		e.Report = &r
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	dataDir := filepath.Join(outputDir, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(outputDir, DatabaseName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := CreateSchema(db); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := e.insertEntries(db); err != nil {
		return fmt.Errorf("insert entries: %w", err)
	}
	if err := e.insertReferences(db); err != nil {
		return fmt.Errorf("insert references: %w", err)
	}
	if err := e.insertFindings(db); err != nil {
		return fmt.Errorf("insert findings: %w", err)
	}
	if err := CreateFTSIndex(db); err != nil {
		if e.logger != nil {
			e.logger.Printf("WARNING: FTS5 not available: %v", err)
		}
	}

	meta := e.meta()
	if err := e.insertMeta(db, meta); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}
	if err := OptimizeDatabase(db); err != nil {
		return fmt.Errorf("optimize database: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	if err := writeJSON(filepath.Join(dataDir, "meta.json"), meta); err != nil {
		return fmt.Errorf("write meta.json: %w", err)
	}
	if err := writeJSON(filepath.Join(dataDir, "lint.json"), e.Report); err != nil {
		return fmt.Errorf("write lint.json: %w", err)
	}
	return nil
}

func (e *SQLiteExporter) meta() ExportMeta {
	variants := 0
	for _, entry := range e.Store.Entries() {
		variants += len(entry.Scripts)
	}
	return ExportMeta{
		Version:        version.Version,
		GeneratedAt:    time.Now().UTC(),
		Title:          e.Title,
		DataHash:       e.Report.DataHash,
		EntryCount:     e.Store.Len(),
		VariantCount:   variants,
		ReferenceCount: e.Report.References,
		SchemaVersion:  SchemaVersion,
	}
}

// insertEntries inserts entries with their variants and tokens.
func (e *SQLiteExporter) insertEntries(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	entryStmt, err := tx.Prepare(`
		INSERT INTO entries (time_id, position, absolute_minutes, instant, date_text, time_text, variant_count, loop_triggers, condition_triggers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer entryStmt.Close()

	variantStmt, err := tx.Prepare(`
		INSERT INTO variants (time_id, variant, script, plain_text, token_count)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer variantStmt.Close()

	tokenStmt, err := tx.Prepare(`
		INSERT INTO tokens (time_id, variant, ordinal, kind, label, flag, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer tokenStmt.Close()

	for pos, entry := range e.Store.Entries() {
		loops, _ := json.Marshal(entry.LoopTriggers)
		conds, _ := json.Marshal(entry.ConditionTriggers)
		if _, err := entryStmt.Exec(
			entry.TimeID,
			pos,
			entry.AbsoluteMinutes,
			entry.Instant.Format(time.RFC3339),
			entry.DateText,
			entry.TimeText,
			len(entry.Scripts),
			nullJSON(loops),
			nullJSON(conds),
		); err != nil {
			return fmt.Errorf("entry %s: %w", entry.TimeID, err)
		}

		for v, script := range entry.Scripts {
			doc := markup.Compile(script)
			if _, err := variantStmt.Exec(entry.TimeID, v, script, doc.Render(), len(doc.Tokens())); err != nil {
				return fmt.Errorf("variant %s:%d: %w", entry.TimeID, v, err)
			}
			ordinal := 0
			for _, seg := range doc.Segments {
				if seg.Kind == markup.Literal {
					continue
				}
				var flag *string
				if seg.Flag != "" {
					flag = &seg.Flag
				}
				if _, err := tokenStmt.Exec(entry.TimeID, v, ordinal, seg.Kind.String(), seg.Label, flag, seg.Raw); err != nil {
					return fmt.Errorf("token %s:%d#%d: %w", entry.TimeID, v, ordinal, err)
				}
				ordinal++
			}
		}
	}
	return tx.Commit()
}

// insertReferences inserts every target found in the markup.
func (e *SQLiteExporter) insertReferences(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO refs (kind, from_id, from_variant, token, to_id, to_variant, unlock_label, resolvable)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ref := range analysis.NewReferenceGraph(e.Store).References() {
		var label *string
		if ref.UnlockLabel != "" {
			label = &ref.UnlockLabel
		}
		resolvable := 0
		if _, err := e.Store.Variant(ref.ToID, ref.ToVariant); err == nil {
			resolvable = 1
		}
		if _, err := stmt.Exec(string(ref.Kind), ref.FromID, ref.FromVariant, ref.Token, ref.ToID, ref.ToVariant, label, resolvable); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (e *SQLiteExporter) insertFindings(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO findings (severity, kind, time_id, variant, message) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range e.Report.Findings {
		var timeID *string
		var variant *int
		if f.TimeID != "" {
			timeID = &f.TimeID
			variant = &f.Variant
		}
		if _, err := stmt.Exec(string(f.Severity), f.Kind, timeID, variant, f.Message); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (e *SQLiteExporter) insertMeta(db *sql.DB, meta ExportMeta) error {
	values := map[string]string{
		"version":         meta.Version,
		"generated_at":    meta.GeneratedAt.Format(time.RFC3339),
		"entry_count":     strconv.Itoa(meta.EntryCount),
		"variant_count":   strconv.Itoa(meta.VariantCount),
		"reference_count": strconv.Itoa(meta.ReferenceCount),
		"schema_version":  strconv.Itoa(SchemaVersion),
	}
	if meta.Title != "" {
		values["title"] = meta.Title
	}
	if meta.DataHash != "" {
		values["data_hash"] = meta.DataHash
	}
	for key, value := range values {
		if err := InsertMetaValue(db, key, value); err != nil {
			return fmt.Errorf("insert meta %s: %w", key, err)
		}
	}
	return nil
}

func nullJSON(b []byte) string {
	if len(b) == 0 || string(b) == "null" {
		return "[]"
	}
	return string(b)
}

// writeJSON writes data as JSON to a file.
func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
