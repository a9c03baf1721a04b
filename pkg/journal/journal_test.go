package journal_test

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dicklesworthstone/loopline/pkg/engine"
	"github.com/Dicklesworthstone/loopline/pkg/journal"
	"github.com/Dicklesworthstone/loopline/pkg/model"
	"github.com/Dicklesworthstone/loopline/pkg/timeline"
)

func playOnce(t *testing.T, w *journal.Writer) {
	t.Helper()
	store, errs := timeline.Normalize([]model.RawEntry{
		{Month: 1, Day: 1, Hour: model.IntPtr(8), Scripts: []string{"[knock:01-01-09-00:0:(open) #heard]"}},
		{Month: 1, Day: 1, Hour: model.IntPtr(9), Scripts: []string{"The (open:01-01-09-00 -> 0) door."}},
	}, timeline.Options{})
	if len(errs) != 0 {
		t.Fatal(errs)
	}
	e := engine.New(store, nil)
	e.SetLogger(log.New(io.Discard, "", 0))
	e.SetObserver(w)
	e.ContentReady()

	ref, err := e.TokenAt("01-01-08-00", 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Activate(ref); err != nil {
		t.Fatal(err)
	}
	e.Wrap()
}

func TestWriter_RecordsEngineEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	w, err := journal.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	playOnce(t, w)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	records, err := journal.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != w.Written() {
		t.Fatalf("loaded %d records, wrote %d", len(records), w.Written())
	}

	kinds := []string{}
	for _, r := range records {
		kinds = append(kinds, r.Kind)
		if r.Session != w.Session() || r.ID == "" {
			t.Errorf("record missing ids: %+v", r)
		}
	}
	want := []string{"activate", "flag", "unlock", "disable", "wrap"}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}

	wrap := records[len(records)-1]
	if wrap.Loop != 1 || wrap.Unlocks != 1 || len(wrap.Flags) != 0 {
		t.Errorf("wrap record should show loop 1, kept unlock, cleared flags: %+v", wrap)
	}
	if records[1].Flag != "heard" {
		t.Errorf("flag record = %+v", records[1])
	}
	if records[2].Unlock != "01-01-09-00:0:(open)" {
		t.Errorf("unlock record key = %q", records[2].Unlock)
	}
}

func TestWriter_AppendsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		w, err := journal.Open(dir)
		if err != nil {
			t.Fatal(err)
		}
		if w.Path() != filepath.Join(dir, journal.DefaultFileName) {
			t.Errorf("directory path should use the default file name, got %s", w.Path())
		}
		playOnce(t, w)
		w.Close()
	}

	records, err := journal.Load(filepath.Join(dir, journal.DefaultFileName))
	if err != nil {
		t.Fatal(err)
	}
	stats := journal.Summarize(records, 0)
	if stats.Sessions != 2 {
		t.Errorf("Sessions = %d, want 2", stats.Sessions)
	}
	if stats.ByKind["wrap"] != 2 || stats.ByKind["activate"] != 2 {
		t.Errorf("ByKind = %v", stats.ByKind)
	}
}

func TestWriter_ClosedAppendFails(t *testing.T) {
	w, err := journal.Open(filepath.Join(t.TempDir(), "j.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	w.Close()
	if err := w.Append(journal.Record{Kind: "wrap"}); err == nil {
		t.Error("append after close should fail")
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestLoad_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.jsonl")
	content := `{"id":"1","session":"s","kind":"activate","label":"knock"}
not json

{"id":"2","session":"s","kind":"wrap","loop":1}
`
	os.WriteFile(path, []byte(content), 0644)

	records, err := journal.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := journal.Load(filepath.Join(t.TempDir(), "none.jsonl")); err == nil {
		t.Error("expected error for missing journal")
	}
}

func TestSummarize(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	records := []journal.Record{
		{Session: "a", At: t0.Add(time.Minute), Kind: "activate", Label: "knock", Version: "v0.1.0"},
		{Session: "a", At: t0, Kind: "activate", Label: "look", Flag: "seen"},
		{Session: "a", At: t0.Add(2 * time.Minute), Kind: "activate", Label: "knock"},
		{Session: "b", At: t0.Add(3 * time.Minute), Kind: "skip"},
		{Session: "b", At: t0.Add(4 * time.Minute), Kind: "wrap", Loop: 3, Version: "v99.0.0"},
		{Session: "b", At: t0.Add(5 * time.Minute), Kind: "unlock", Unlock: "01-01:1:(open drawer)"},
		{Session: "b", At: t0.Add(6 * time.Minute), Kind: "unlock", Unlock: "01-01:1:(open drawer)"},
		{Session: "b", At: t0.Add(7 * time.Minute), Kind: "unlock", Unlock: "01-01:(truncated"},
	}
	stats := journal.Summarize(records, 1)

	if stats.Records != 8 || stats.Sessions != 2 || stats.MaxLoop != 3 || stats.Skipped != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(stats.TopTokens) != 1 || stats.TopTokens[0] != (journal.LabelCount{Label: "knock", Count: 2}) {
		t.Errorf("TopTokens = %v", stats.TopTokens)
	}
	if len(stats.FlagsSeen) != 1 || stats.FlagsSeen[0] != "seen" {
		t.Errorf("FlagsSeen = %v", stats.FlagsSeen)
	}
	if !stats.First.Equal(t0) || !stats.Last.Equal(t0.Add(7*time.Minute)) {
		t.Errorf("range = %v .. %v", stats.First, stats.Last)
	}
	if len(stats.NewerVersions) != 1 || stats.NewerVersions[0] != "v99.0.0" {
		t.Errorf("NewerVersions = %v", stats.NewerVersions)
	}
	want := model.Unlock{TimeID: "01-01", Variant: 1, Label: "open drawer"}
	if len(stats.Unlocked) != 1 || stats.Unlocked[0] != want {
		t.Errorf("Unlocked = %v, want [%v]", stats.Unlocked, want)
	}
	if stats.Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", stats.Malformed)
	}
}

func TestSummarize_Empty(t *testing.T) {
	stats := journal.Summarize(nil, 5)
	if stats.Records != 0 || stats.FlagsSeen == nil || stats.TopTokens == nil || stats.Unlocked == nil {
		t.Errorf("empty summary should have empty, non-nil slices: %+v", stats)
	}
}
