package agents

import (
	"strings"
	"testing"
	"unicode/utf8"

	"agentic-rag-platform/models"
)

func TestDecodeJSONPayloadPlainObject(t *testing.T) {
	var plan models.Plan
	raw := `{"agents_needed": ["DocumentRetrievalAgent"], "justification": "internal docs"}`

	if err := decodeJSONPayload(raw, &plan); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(plan.AgentsNeeded) != 1 || plan.AgentsNeeded[0] != "DocumentRetrievalAgent" {
		t.Errorf("unexpected agents: %v", plan.AgentsNeeded)
	}
}

func TestDecodeJSONPayloadCodeFence(t *testing.T) {
	var verdict models.Verdict
	raw := "```json\n{\"status\": \"Approved\", \"response\": \"ok\"}\n```"

	if err := decodeJSONPayload(raw, &verdict); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if verdict.Status != models.VerdictApproved {
		t.Errorf("status = %q, want Approved", verdict.Status)
	}
}

func TestDecodeJSONPayloadBareFence(t *testing.T) {
	var verdict models.Verdict
	raw := "```\n{\"status\": \"Denied\", \"rewritten_query\": \"retry\"}\n```"

	if err := decodeJSONPayload(raw, &verdict); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if verdict.RewrittenQuery != "retry" {
		t.Errorf("rewritten_query = %q, want retry", verdict.RewrittenQuery)
	}
}

func TestDecodeJSONPayloadDoubleEncoded(t *testing.T) {
	var verdict models.Verdict
	// The object itself arrives as a JSON string.
	raw := `"{\"status\": \"Approved\", \"reason\": \"sufficient\"}"`

	if err := decodeJSONPayload(raw, &verdict); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if verdict.Status != models.VerdictApproved || verdict.Reason != "sufficient" {
		t.Errorf("unexpected verdict: %+v", verdict)
	}
}

func TestDecodeJSONPayloadInvalid(t *testing.T) {
	var plan models.Plan
	if err := decodeJSONPayload("not json at all", &plan); err == nil {
		t.Fatal("expected an error for non-JSON input")
	}
}

func TestTruncateOnRuneBoundary(t *testing.T) {
	// Each é is two bytes; a 9-byte cap falls mid-rune.
	text := strings.Repeat("é", 5)

	truncated := truncateOnRuneBoundary(text, 9)
	if !utf8.ValidString(truncated) {
		t.Errorf("truncation split a rune: %q", truncated)
	}
	if truncated != strings.Repeat("é", 4) {
		t.Errorf("truncated = %q", truncated)
	}

	if got := truncateOnRuneBoundary("short", 100); got != "short" {
		t.Errorf("text under the cap should be untouched, got %q", got)
	}
	if got := truncateOnRuneBoundary("abcdef", 3); got != "abc" {
		t.Errorf("ascii truncation = %q", got)
	}
}
