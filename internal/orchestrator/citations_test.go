package orchestrator

import (
	"strings"
	"testing"

	"agentic-rag-platform/models"
)

func TestDedupeCitations(t *testing.T) {
	citations := []models.Citation{
		{Source: models.CitationDocument, Title: "Handbook", Ref: "page 3"},
		{Source: models.CitationWeb, Title: "Blog", URL: "https://example.com/post"},
		{Source: models.CitationDocument, Title: "Handbook", Ref: "page 3"},
		{Source: models.CitationWeb, Title: "Blog", URL: "https://example.com/other"},
	}

	out := DedupeCitations(citations)
	if len(out) != 3 {
		t.Fatalf("got %d citations, want 3: %v", len(out), out)
	}
	// Order of first appearance is preserved.
	if out[0].Title != "Handbook" || out[1].URL != "https://example.com/post" {
		t.Errorf("unexpected order: %v", out)
	}
}

func TestRenderCitations(t *testing.T) {
	out := RenderCitations([]models.Citation{
		{Source: models.CitationDocument, Title: "Handbook", Ref: "page 3"},
		{Source: models.CitationWeb, Title: "Blog", URL: "https://example.com"},
	})

	if !strings.HasPrefix(out, "**Citations:**\n") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.Contains(out, "- document: Handbook (page 3)") {
		t.Errorf("missing document line: %q", out)
	}
	if !strings.Contains(out, "- web: [Blog](https://example.com)") {
		t.Errorf("missing web link line: %q", out)
	}
}

func TestRenderCitationsEmpty(t *testing.T) {
	if out := RenderCitations(nil); out != "" {
		t.Errorf("expected empty string, got %q", out)
	}
}

func TestAppendCitations(t *testing.T) {
	answer := AppendCitations("The answer.\n", []models.Citation{
		{Source: models.CitationDataset, Title: "sales", Ref: "4 matching rows"},
	})

	if !strings.Contains(answer, "The answer.\n\n**Citations:**") {
		t.Errorf("citations not appended cleanly: %q", answer)
	}

	plain := AppendCitations("No sources here.", nil)
	if plain != "No sources here." {
		t.Errorf("answer without citations should be unchanged: %q", plain)
	}
}
