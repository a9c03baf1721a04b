package markup

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	flagSuffixRe  = regexp.MustCompile(`(?s)^(.*?)\s*#([^\s#\[\](){}:,]+)\s*$`)
	unlockItemRe  = regexp.MustCompile(`^\s*([A-Za-z0-9_-]+)\s*:\s*(\d+)\s*:\s*\(([^()]+)\)\s*$`)
	actionItemRe  = regexp.MustCompile(`^\s*([A-Za-z0-9_-]+?)\s*->\s*(\d+)\s*$`)
	reservedRunes = "[]():#" + ExecutedOpen + ExecutedClose
)

// Compile scans src into segments. It never fails: unmatched markup is
// literal text, so a source with no markup compiles to a single literal.
func Compile(src string) *Document {
	doc := &Document{Source: src}
	litStart := 0

	for i := 0; i < len(src); {
		var (
			seg Segment
			ok  bool
		)
		switch {
		case src[i] == '[':
			seg, ok = scanDelimited(src, i, '[', ']')
		case src[i] == '(':
			seg, ok = scanDelimited(src, i, '(', ')')
		case strings.HasPrefix(src[i:], ExecutedOpen):
			seg, ok = scanExecuted(src, i)
		}
		if !ok {
			i++
			continue
		}
		if litStart < seg.Span.Start {
			doc.Segments = append(doc.Segments, literal(src, litStart, seg.Span.Start))
		}
		doc.Segments = append(doc.Segments, seg)
		i = seg.Span.End
		litStart = i
	}

	if litStart < len(src) || len(src) == 0 {
		doc.Segments = append(doc.Segments, literal(src, litStart, len(src)))
	}
	return doc
}

func literal(src string, start, end int) Segment {
	text := src[start:end]
	return Segment{Kind: Literal, Span: Span{start, end}, Raw: text, Label: text}
}

// scanDelimited tries to read one construct opened at src[start].
func scanDelimited(src string, start int, open, close byte) (Segment, bool) {
	rel := strings.IndexByte(src[start+1:], close)
	if rel < 0 {
		return Segment{}, false
	}
	end := start + 1 + rel
	body := src[start+1 : end]
	if strings.IndexByte(body, open) >= 0 {
		// a nested opener starts the real construct; let the scanner reach it
		return Segment{}, false
	}

	var (
		seg Segment
		ok  bool
	)
	if open == '[' {
		seg, ok = parseBracket(body)
	} else {
		seg, ok = parseParen(body)
	}
	if !ok {
		return Segment{}, false
	}
	seg.Span = Span{start, end + 1}
	seg.Raw = src[start : end+1]
	return seg, true
}

func parseBracket(body string) (Segment, bool) {
	label, list, flag, hasList, ok := splitBody(body)
	if !ok {
		return Segment{}, false
	}
	if !hasList {
		return Segment{Kind: Trigger, Label: label, Flag: flag}, true
	}
	if unlocks, bad, ok := parseUnlockList(list); ok {
		return Segment{Kind: Trigger, Label: label, Flag: flag, Unlocks: unlocks, TargetList: list, Undecodable: bad}, true
	}
	if actions, bad, ok := parseActionList(list); ok {
		return Segment{Kind: ActiveAction, Label: label, Flag: flag, Actions: actions, TargetList: list, Undecodable: bad}, true
	}
	return Segment{}, false
}

func parseParen(body string) (Segment, bool) {
	label, list, flag, hasList, ok := splitBody(body)
	if !ok || !hasList {
		return Segment{}, false
	}
	actions, bad, ok := parseActionList(list)
	if !ok {
		return Segment{}, false
	}
	return Segment{Kind: InactiveAction, Label: label, Flag: flag, Actions: actions, TargetList: list, Undecodable: bad}, true
}

// scanExecuted reads an executed marker opened at src[start].
func scanExecuted(src string, start int) (Segment, bool) {
	bodyStart := start + len(ExecutedOpen)
	rel := strings.Index(src[bodyStart:], ExecutedClose)
	if rel < 0 {
		return Segment{}, false
	}
	end := bodyStart + rel + len(ExecutedClose)
	label := strings.TrimSpace(src[bodyStart : bodyStart+rel])
	if !validLabel(label) {
		return Segment{}, false
	}
	return Segment{Kind: Executed, Label: label, Span: Span{start, end}, Raw: src[start:end]}, true
}

// splitBody separates "label:list #flag" into its parts.
func splitBody(body string) (label, list, flag string, hasList, ok bool) {
	if m := flagSuffixRe.FindStringSubmatch(body); m != nil {
		body, flag = m[1], m[2]
	}
	colon := strings.IndexByte(body, ':')
	if colon < 0 {
		label = strings.TrimSpace(body)
		return label, "", flag, false, validLabel(label)
	}
	label = strings.TrimSpace(body[:colon])
	list = body[colon+1:]
	return label, list, flag, true, validLabel(label) && strings.TrimSpace(list) != ""
}

func validLabel(label string) bool {
	return label != "" && !strings.ContainsAny(label, reservedRunes)
}

// splitTargets splits a target list on commas outside parentheses.
func splitTargets(list string) []string {
	var (
		items []string
		depth int
		start int
	)
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				items = append(items, list[start:i])
				start = i + 1
			}
		}
	}
	return append(items, list[start:])
}

// parseUnlockList decodes a trigger target list. Items whose index overflows
// are returned separately; any other mismatch rejects the whole list.
func parseUnlockList(list string) ([]UnlockTarget, []string, bool) {
	items := splitTargets(list)
	out := make([]UnlockTarget, 0, len(items))
	var bad []string
	for _, item := range items {
		m := unlockItemRe.FindStringSubmatch(item)
		if m == nil {
			return nil, nil, false
		}
		label := strings.TrimSpace(m[3])
		if !validLabel(label) {
			return nil, nil, false
		}
		v, err := strconv.Atoi(m[2])
		if err != nil {
			bad = append(bad, strings.TrimSpace(item))
			continue
		}
		out = append(out, UnlockTarget{TimeID: m[1], Variant: v, Label: label})
	}
	return out, bad, true
}

func parseActionList(list string) ([]ActionTarget, []string, bool) {
	items := splitTargets(list)
	out := make([]ActionTarget, 0, len(items))
	var bad []string
	for _, item := range items {
		m := actionItemRe.FindStringSubmatch(item)
		if m == nil {
			return nil, nil, false
		}
		v, err := strconv.Atoi(m[2])
		if err != nil {
			bad = append(bad, strings.TrimSpace(item))
			continue
		}
		out = append(out, ActionTarget{TimeID: m[1], Variant: v})
	}
	return out, bad, true
}
