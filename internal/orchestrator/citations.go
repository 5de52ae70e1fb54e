package orchestrator

import (
	"fmt"
	"strings"

	"agentic-rag-platform/models"
)

// DedupeCitations drops duplicate citations, keyed by (title, URL). Order of
// first appearance is preserved.
func DedupeCitations(citations []models.Citation) []models.Citation {
	type key struct{ title, url string }

	seen := make(map[key]bool, len(citations))
	var out []models.Citation
	for _, c := range citations {
		k := key{title: c.Title, url: c.URL}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

// RenderCitations formats a deduplicated citation list as a markdown section.
func RenderCitations(citations []models.Citation) string {
	if len(citations) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("**Citations:**\n")
	for _, c := range citations {
		line := c.Title
		if c.URL != "" {
			line = fmt.Sprintf("[%s](%s)", c.Title, c.URL)
		}
		if c.Ref != "" {
			line += " (" + c.Ref + ")"
		}
		fmt.Fprintf(&sb, "- %s: %s\n", c.Source, line)
	}
	return sb.String()
}

// AppendCitations attaches the citation section to an answer, deduplicating
// first.
func AppendCitations(answer string, citations []models.Citation) string {
	section := RenderCitations(DedupeCitations(citations))
	if section == "" {
		return answer
	}
	return strings.TrimRight(answer, "\n") + "\n\n" + section
}
