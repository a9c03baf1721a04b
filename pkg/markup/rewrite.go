package markup

import (
	"sort"
	"strings"
)

type edit struct {
	span Span
	text string
}

// apply splices non-overlapping edits into src.
func apply(src string, edits []edit) string {
	if len(edits) == 0 {
		return src
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].span.Start < edits[j].span.Start })

	var sb strings.Builder
	sb.Grow(len(src))
	pos := 0
	for _, e := range edits {
		sb.WriteString(src[pos:e.span.Start])
		sb.WriteString(e.text)
		pos = e.span.End
	}
	sb.WriteString(src[pos:])
	return sb.String()
}

// Executed markers are delimited by private-use runes. Authored scripts may
// not contain them, so a marker only ever comes from Disable.
const (
	ExecutedOpen  = "\uE000"
	ExecutedClose = "\uE001"
)

// ExecutedMarker returns the source form of a token that has already fired.
func ExecutedMarker(label string) string {
	return ExecutedOpen + label + ExecutedClose
}

// HasReserved reports whether authored text contains an executed-marker
// delimiter.
func HasReserved(src string) bool {
	return strings.Contains(src, ExecutedOpen) || strings.Contains(src, ExecutedClose)
}

// Promote turns every inactive action labelled label into an active action by
// swapping its parentheses for brackets. The target list and flag are kept
// verbatim. It returns the new source and the number of promoted tokens.
func Promote(src, label string) (string, int) {
	doc := Compile(src)
	var edits []edit
	for _, seg := range doc.Segments {
		if seg.Kind != InactiveAction || seg.Label != label {
			continue
		}
		inner := src[seg.Span.Start+1 : seg.Span.End-1]
		edits = append(edits, edit{span: seg.Span, text: "[" + inner + "]"})
	}
	return apply(src, edits), len(edits)
}

// Disable replaces one interactive token with its executed marker. The token
// is located by its raw text and occurrence among identical tokens; if fewer
// occurrences remain the last one is used.
func Disable(src, raw string, occurrence int) (string, bool) {
	doc := Compile(src)
	var matches []Segment
	for _, seg := range doc.Segments {
		if seg.Interactive() && seg.Raw == raw {
			matches = append(matches, seg)
		}
	}
	if len(matches) == 0 {
		return src, false
	}
	if occurrence < 0 || occurrence >= len(matches) {
		occurrence = len(matches) - 1
	}
	seg := matches[occurrence]
	return apply(src, []edit{{span: seg.Span, text: ExecutedMarker(seg.Label)}}), true
}

// Labels returns the labels of every inactive action in src.
func Labels(src string) []string {
	var out []string
	for _, seg := range Compile(src).Segments {
		if seg.Kind == InactiveAction {
			out = append(out, seg.Label)
		}
	}
	return out
}
