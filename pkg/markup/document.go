// Package markup compiles the timeline's embedded markup into a flat list of
// literal and token segments, each carrying its byte span in the source text.
//
// Grammar, in order of precedence:
//
//	[label:id:n:(unlock), ... #flag]   trigger (reveals inactive actions elsewhere)
//	[label:id -> n, ... #flag]         active action (swaps a target's variant)
//	[label #flag]                      flag-only trigger without targets
//	(label:id -> n, ... #flag)         inactive action, promoted by a trigger
//
// A token that has fired is rewritten to an executed marker: its label between
// ExecutedOpen and ExecutedClose. Authored text never contains those runes.
// Anything else that does not match, braces included, is kept as literal text.
package markup

import "strings"

// Kind classifies a segment.
type Kind int

const (
	Literal Kind = iota
	Trigger
	ActiveAction
	InactiveAction
	Executed
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Trigger:
		return "trigger"
	case ActiveAction:
		return "action"
	case InactiveAction:
		return "inactive"
	case Executed:
		return "executed"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range into Document.Source.
type Span struct {
	Start int
	End   int
}

// Len returns the span width in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// UnlockTarget is one target of a trigger: promote the inactive action
// labelled Label inside variant Variant of entry TimeID.
type UnlockTarget struct {
	TimeID  string
	Variant int
	Label   string
}

// ActionTarget is one target of an action: display variant Variant of TimeID.
type ActionTarget struct {
	TimeID  string
	Variant int
}

// Segment is either literal text or a token.
type Segment struct {
	Kind Kind
	Span Span
	Raw  string // exact source substring

	// Label is the visible text. For literals it equals Raw.
	Label string
	Flag  string

	Unlocks []UnlockTarget // Trigger only
	Actions []ActionTarget // ActiveAction and InactiveAction

	// TargetList is the authored target list, verbatim.
	TargetList string

	// Undecodable holds target items that match the grammar but whose
	// variant index does not fit an int. The rest of the token still works.
	Undecodable []string
}

// Interactive reports whether the segment reacts to activation.
func (s Segment) Interactive() bool {
	return s.Kind == Trigger || s.Kind == ActiveAction
}

// Document is the compiled form of one variant's raw text.
type Document struct {
	Source   string
	Segments []Segment
}

// Render returns the visible text: literals verbatim, tokens by label.
func (d *Document) Render() string {
	var sb strings.Builder
	for _, seg := range d.Segments {
		sb.WriteString(seg.Label)
	}
	return sb.String()
}

// Tokens returns the interactive segments in source order. A token's position
// in this slice is its ordinal.
func (d *Document) Tokens() []Segment {
	var out []Segment
	for _, seg := range d.Segments {
		if seg.Interactive() {
			out = append(out, seg)
		}
	}
	return out
}

// Token returns the interactive segment with the given ordinal.
func (d *Document) Token(ordinal int) (Segment, bool) {
	n := 0
	for _, seg := range d.Segments {
		if !seg.Interactive() {
			continue
		}
		if n == ordinal {
			return seg, true
		}
		n++
	}
	return Segment{}, false
}

// HasTokens reports whether any segment is not literal.
func (d *Document) HasTokens() bool {
	for _, seg := range d.Segments {
		if seg.Kind != Literal {
			return true
		}
	}
	return false
}

// Occurrence returns how many interactive tokens before ordinal share its
// exact raw text. Together with Raw it relocates a token after edits elsewhere
// in the source shifted its span.
func (d *Document) Occurrence(ordinal int) int {
	tokens := d.Tokens()
	if ordinal < 0 || ordinal >= len(tokens) {
		return 0
	}
	n := 0
	for i := 0; i < ordinal; i++ {
		if tokens[i].Raw == tokens[ordinal].Raw {
			n++
		}
	}
	return n
}
