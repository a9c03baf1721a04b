package ui

import (
	"testing"

	"github.com/Dicklesworthstone/loopline/pkg/markup"
	"github.com/Dicklesworthstone/loopline/pkg/model"
)

func lineStrings(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.String()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWrapDocument(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		width int
		want  []string
	}{
		{"empty", "", 10, []string{""}},
		{"fits", "short text", 20, []string{"short text"}},
		{"word wrap", "one two three four", 9, []string{"one two", "three", "four"}},
		{"collapses spaces", "a    b", 10, []string{"a b"}},
		{"newline", "first\nsecond", 20, []string{"first", "second"}},
		{"hard break", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"token label", "go [to the cellar:01-01 -> 1] now", 12, []string{"go to the", "cellar now"}},
		{"wide runes", "日本語のテキスト", 6, []string{"日本語", "のテキ", "スト"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lineStrings(WrapDocument(markup.Compile(tt.src), tt.width))
			if !equalStrings(got, tt.want) {
				t.Errorf("WrapDocument(%q, %d) = %q, want %q", tt.src, tt.width, got, tt.want)
			}
		})
	}
}

func TestWrapDocumentWidthNeverExceeded(t *testing.T) {
	doc := markup.Compile("A long [winding road:01-01 -> 1] under a supercalifragilistic sky (hidden:01-02 -> 0) and " + markup.ExecutedMarker("spent") + ".")
	for width := 1; width <= 30; width++ {
		for i, l := range WrapDocument(doc, width) {
			if l.Width() > width {
				t.Fatalf("width %d line %d = %q (%d cells)", width, i, l.String(), l.Width())
			}
		}
	}
}

func TestLayoutEntryHits(t *testing.T) {
	entry := &model.Entry{
		TimeID:  "01-01-08-00",
		Scripts: []string{"Pick [left:01-01 -> 1] or [right door:01-02 -> 0] (later:01-03 -> 1)."},
	}
	b := LayoutEntry(entry, 12)

	want := []string{"Pick left or", "right door", "later."}
	if got := lineStrings(b.Lines); !equalStrings(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	if b.Height() != 4 {
		t.Errorf("Height = %d, want 4", b.Height())
	}

	if ord, ok := b.HitAt(0, 5); !ok || ord != 0 {
		t.Errorf("HitAt(0,5) = %d %v, want token 0", ord, ok)
	}
	if _, ok := b.HitAt(0, 10); ok {
		t.Error(`"or" is literal, should not hit`)
	}
	if ord, ok := b.HitAt(1, 9); !ok || ord != 1 {
		t.Errorf("HitAt(1,9) = %d %v, want token 1", ord, ok)
	}
	// Inactive actions are drawn but cannot be clicked.
	if _, ok := b.HitAt(2, 0); ok {
		t.Error("inactive action should not hit")
	}

	if got := b.Ordinals(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("Ordinals = %v", got)
	}
	if line, ok := b.LineOf(1); !ok || line != 1 {
		t.Errorf("LineOf(1) = %d %v", line, ok)
	}
}

func TestLayoutEntryRunKinds(t *testing.T) {
	entry := &model.Entry{
		Scripts:        []string{"x", "See " + markup.ExecutedMarker("done") + " then [go:01-01 -> 0]"},
		CurrentVariant: 1,
	}
	b := LayoutEntry(entry, 80)
	if b.Variant != 1 {
		t.Errorf("Variant = %d, want 1", b.Variant)
	}
	var kinds []markup.Kind
	for _, r := range b.Lines[0] {
		kinds = append(kinds, r.Kind)
	}
	want := []markup.Kind{markup.Literal, markup.Executed, markup.Literal, markup.ActiveAction}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("run %d kind = %v, want %v", i, kinds[i], want[i])
		}
	}
	if b.Lines[0][1].Ordinal != -1 || b.Lines[0][3].Ordinal != 0 {
		t.Error("only interactive runs carry an ordinal")
	}
}
