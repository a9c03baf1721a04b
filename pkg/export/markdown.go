package export

import (
	"fmt"
	"hash/fnv"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/Dicklesworthstone/loopline/pkg/analysis"
	"github.com/Dicklesworthstone/loopline/pkg/markup"
	"github.com/Dicklesworthstone/loopline/pkg/timeline"
)

// sanitizeMermaidID ensures an ID is valid for Mermaid diagrams.
// Mermaid node IDs must be alphanumeric with hyphens/underscores.
func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "node"
	}
	// Mermaid reads a leading digit run as a number
	return "e" + sb.String()
}

// sanitizeMermaidText prepares text for use in Mermaid node labels.
func sanitizeMermaidText(text string) string {
	replacer := strings.NewReplacer(
		"\"", "'",
		"[", "(",
		"]", ")",
		"{", "(",
		"}", ")",
		"<", "&lt;",
		">", "&gt;",
		"|", "/",
		"#", "",
		"`", "'",
		"\n", " ",
		"\r", "",
	)
	result := replacer.Replace(text)
	result = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, result)
	result = strings.TrimSpace(result)

	runes := []rune(result)
	if len(runes) > 40 {
		result = string(runes[:37]) + "..."
	}
	return result
}

// GenerateMarkdown renders a report of the story: a summary, a reference
// graph, every entry with its variants, and the lint findings.
func GenerateMarkdown(store *timeline.Store, report *analysis.Report, title string) string {
	if report == nil {
		r := analysis.Lint(store, nil)
		report = &r
	}
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("*Generated: %s*\n\n", time.Now().Format(time.RFC1123)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Count |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| **Entries** | %d |\n", report.Entries))
	sb.WriteString(fmt.Sprintf("| Variants | %d |\n", report.Variants))
	sb.WriteString(fmt.Sprintf("| Tokens | %d |\n", report.Tokens))
	sb.WriteString(fmt.Sprintf("| References | %d |\n", report.References))
	sb.WriteString(fmt.Sprintf("| Errors | %d |\n", report.Count(analysis.SeverityError)))
	sb.WriteString(fmt.Sprintf("| Warnings | %d |\n\n", report.Count(analysis.SeverityWarning)))

	sb.WriteString("## Table of Contents\n\n")
	for _, e := range store.Entries() {
		sb.WriteString(fmt.Sprintf("- [%s %s](#%s)\n", e.TimeID, entryHeading(e.DateText, e.TimeText), createSlug(e.TimeID)))
	}
	sb.WriteString("\n---\n\n")

	sb.WriteString("## Reference Graph\n\n")
	sb.WriteString(generateMermaid(store))

	sb.WriteString("## Timeline\n\n")
	for _, e := range store.Entries() {
		sb.WriteString(fmt.Sprintf("### %s\n\n", e.TimeID))
		sb.WriteString(fmt.Sprintf("**%s** · %d variant(s)\n\n", entryHeading(e.DateText, e.TimeText), len(e.Scripts)))
		for _, lt := range e.LoopTriggers {
			sb.WriteString(fmt.Sprintf("- from loop %d show variant %d\n", lt.LoopThreshold, lt.VariantIndex))
		}
		for _, ct := range e.ConditionTriggers {
			sb.WriteString(fmt.Sprintf("- with #%s show variant %d\n", strings.Join(ct.RequiredFlags, " #"), ct.VariantIndex))
		}
		if len(e.LoopTriggers)+len(e.ConditionTriggers) > 0 {
			sb.WriteString("\n")
		}
		for v, script := range e.Scripts {
			sb.WriteString(fmt.Sprintf("%d. %s\n", v, markdownText(script)))
		}
		sb.WriteString("\n")
	}

	if len(report.Findings) > 0 {
		sb.WriteString("## Lint\n\n")
		sb.WriteString("| Severity | Kind | Entry | Message |\n|----------|------|-------|---------|\n")
		for _, f := range report.Findings {
			where := "-"
			if f.TimeID != "" {
				where = analysis.VariantKey(f.TimeID, f.Variant)
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", f.Severity, f.Kind, where, strings.ReplaceAll(f.Message, "|", "/")))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func entryHeading(date, clock string) string {
	if clock == "" {
		return date
	}
	return date + " " + clock
}

// markdownText shows tokens as inline code and everything else as rendered.
func markdownText(script string) string {
	var sb strings.Builder
	for _, seg := range markup.Compile(script).Segments {
		switch seg.Kind {
		case markup.Literal:
			sb.WriteString(seg.Raw)
		case markup.Executed:
			sb.WriteString("~~" + seg.Label + "~~")
		default:
			sb.WriteString("`" + seg.Raw + "`")
		}
	}
	return sb.String()
}

func generateMermaid(store *timeline.Store) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\ngraph LR\n")
	sb.WriteString("    classDef plain fill:#6272A4,stroke:#333,color:#fff\n")
	sb.WriteString("    classDef managed fill:#50FA7B,stroke:#333,color:#000\n\n")

	safeIDMap := make(map[string]string)
	usedSafe := make(map[string]bool)
	getSafeID := func(orig string) string {
		if safe, ok := safeIDMap[orig]; ok {
			return safe
		}
		safe := sanitizeMermaidID(orig)
		if usedSafe[safe] {
			h := fnv.New32a()
			_, _ = h.Write([]byte(orig))
			safe = fmt.Sprintf("%s_%x", safe, h.Sum32())
		}
		usedSafe[safe] = true
		safeIDMap[orig] = safe
		return safe
	}

	for _, e := range store.Entries() {
		id := getSafeID(e.TimeID)
		sb.WriteString(fmt.Sprintf("    %s[\"%s<br/>%s\"]\n", id, e.TimeID, sanitizeMermaidText(markup.Compile(e.Scripts[0]).Render())))
		class := "plain"
		if e.HasTriggers() {
			class = "managed"
		}
		sb.WriteString(fmt.Sprintf("    class %s %s\n", id, class))
	}

	seen := make(map[string]bool)
	for _, ref := range analysis.NewReferenceGraph(store).References() {
		if _, ok := store.FindByID(ref.ToID); !ok {
			continue
		}
		key := fmt.Sprintf("%s|%s|%s", ref.FromID, ref.ToID, ref.Kind)
		if seen[key] {
			continue
		}
		seen[key] = true
		link := "==>"
		switch ref.Kind {
		case analysis.RefUnlock:
			link = "-.->"
		case analysis.RefPending:
			link = "-->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s|%s| %s\n", getSafeID(ref.FromID), link, sanitizeMermaidText(ref.Token), getSafeID(ref.ToID)))
	}
	if len(seen) == 0 && store.Len() > 0 {
		sb.WriteString("    NoLinks[\"No References\"]\n")
	}
	sb.WriteString("```\n\n")
	return sb.String()
}

func createSlug(id string) string {
	slug := strings.ToLower(id)
	reg := regexp.MustCompile(`[^a-z0-9]+`)
	slug = reg.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// SaveMarkdownToFile writes GenerateMarkdown output to filename.
func SaveMarkdownToFile(store *timeline.Store, report *analysis.Report, title, filename string) error {
	content := GenerateMarkdown(store, report, title)
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	return nil
}
