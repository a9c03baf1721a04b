package ui

import (
	"strings"
	"unicode/utf8"

	"github.com/Dicklesworthstone/loopline/pkg/markup"
	"github.com/Dicklesworthstone/loopline/pkg/model"
	"github.com/mattn/go-runewidth"
)

// Run is a stretch of one line drawn with a single style.
type Run struct {
	Text    string
	Kind    markup.Kind
	Ordinal int // interactive ordinal, -1 for everything else
}

// Line is one wrapped terminal row.
type Line []Run

// Width returns the display width of the line in cells.
func (l Line) Width() int {
	w := 0
	for _, r := range l {
		w += runewidth.StringWidth(r.Text)
	}
	return w
}

// String returns the plain text of the line.
func (l Line) String() string {
	var sb strings.Builder
	for _, r := range l {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Hit is the clickable area of an interactive token on one line. A token
// that wraps has one hit per line it covers.
type Hit struct {
	Line    int
	Col     int
	Width   int
	Ordinal int
}

// Block is the wrapped form of one entry's displayed variant.
type Block struct {
	TimeID     string
	Variant    int
	Generation uint64
	Width      int
	Lines      []Line
	Hits       []Hit
}

// Height returns the rows the block occupies, including the blank separator
// after it.
func (b Block) Height() int {
	return len(b.Lines) + 1
}

// HitAt returns the ordinal of the token under (line, col) in block-local
// coordinates.
func (b Block) HitAt(line, col int) (int, bool) {
	for _, h := range b.Hits {
		if h.Line == line && col >= h.Col && col < h.Col+h.Width {
			return h.Ordinal, true
		}
	}
	return 0, false
}

// LineOf returns the first line on which the token with ordinal starts.
func (b Block) LineOf(ordinal int) (int, bool) {
	for _, h := range b.Hits {
		if h.Ordinal == ordinal {
			return h.Line, true
		}
	}
	return 0, false
}

// Ordinals returns the interactive ordinals present in the block, in order.
func (b Block) Ordinals() []int {
	var out []int
	seen := make(map[int]bool)
	for _, h := range b.Hits {
		if !seen[h.Ordinal] {
			seen[h.Ordinal] = true
			out = append(out, h.Ordinal)
		}
	}
	return out
}

// LayoutEntry wraps entry's displayed variant to width cells.
func LayoutEntry(entry *model.Entry, width int) Block {
	doc := markup.Compile(entry.Text())
	b := Block{
		TimeID:     entry.TimeID,
		Variant:    entry.DisplayedVariant(),
		Generation: entry.Generation,
		Width:      width,
		Lines:      WrapDocument(doc, width),
	}
	b.Hits = hitsOf(b.Lines)
	return b
}

type atom struct {
	text    string
	kind    markup.Kind
	ordinal int
	space   bool
	newline bool
}

// atomize splits segments into words, space runs and newlines, each tagged
// with the segment it came from.
func atomize(doc *markup.Document) []atom {
	var atoms []atom
	ordinal := 0
	for _, seg := range doc.Segments {
		ord := -1
		if seg.Interactive() {
			ord = ordinal
			ordinal++
		}
		text := seg.Label
		for text != "" {
			r, size := utf8.DecodeRuneInString(text)
			switch {
			case r == '\n':
				atoms = append(atoms, atom{kind: seg.Kind, ordinal: ord, newline: true})
				text = text[size:]
			case r == ' ' || r == '\t' || r == '\r':
				n := 0
				for n < len(text) && (text[n] == ' ' || text[n] == '\t' || text[n] == '\r') {
					n++
				}
				atoms = append(atoms, atom{text: " ", kind: seg.Kind, ordinal: ord, space: true})
				text = text[n:]
			default:
				n := strings.IndexAny(text, " \t\r\n")
				if n < 0 {
					n = len(text)
				}
				atoms = append(atoms, atom{text: text[:n], kind: seg.Kind, ordinal: ord})
				text = text[n:]
			}
		}
	}
	return atoms
}

// WrapDocument word-wraps the rendered document. Words longer than width are
// broken at cell boundaries. The result always has at least one line.
func WrapDocument(doc *markup.Document, width int) []Line {
	if width < 1 {
		width = 1
	}
	var lines []Line
	var cur Line
	col := 0

	flush := func() {
		lines = append(lines, trimTrailing(cur))
		cur = nil
		col = 0
	}
	add := func(a atom, text string) {
		if n := len(cur); n > 0 && cur[n-1].Kind == a.kind && cur[n-1].Ordinal == a.ordinal {
			cur[n-1].Text += text
		} else {
			cur = append(cur, Run{Text: text, Kind: a.kind, Ordinal: a.ordinal})
		}
		col += runewidth.StringWidth(text)
	}

	for _, a := range atomize(doc) {
		switch {
		case a.newline:
			flush()
			continue
		case a.space:
			if col == 0 {
				continue
			}
			if col+1 > width {
				flush()
				continue
			}
			add(a, a.text)
			continue
		}

		text := a.text
		w := runewidth.StringWidth(text)
		if col > 0 && col+w > width {
			flush()
		}
		for w > width-col {
			head := runewidth.Truncate(text, width-col, "")
			if head == "" {
				if col > 0 {
					flush()
					continue
				}
				_, size := utf8.DecodeRuneInString(text)
				head = text[:size]
			}
			add(a, head)
			flush()
			text = text[len(head):]
			w = runewidth.StringWidth(text)
		}
		if text != "" {
			add(a, text)
		}
	}
	if cur != nil || len(lines) == 0 {
		flush()
	}
	return lines
}

func trimTrailing(l Line) Line {
	for len(l) > 0 {
		last := &l[len(l)-1]
		last.Text = strings.TrimRight(last.Text, " ")
		if last.Text != "" {
			break
		}
		l = l[:len(l)-1]
	}
	return l
}

func hitsOf(lines []Line) []Hit {
	var hits []Hit
	for i, line := range lines {
		col := 0
		for _, r := range line {
			w := runewidth.StringWidth(r.Text)
			if r.Ordinal >= 0 && w > 0 {
				hits = append(hits, Hit{Line: i, Col: col, Width: w, Ordinal: r.Ordinal})
			}
			col += w
		}
	}
	return hits
}
