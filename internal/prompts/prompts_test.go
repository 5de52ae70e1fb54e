package prompts

import (
	"strings"
	"testing"
)

func TestRenderPlannerPrompt(t *testing.T) {
	system, user, err := RenderPlannerPrompt("what is our refund policy?")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if system == "" {
		t.Error("system prompt is empty")
	}
	if !strings.Contains(user, "what is our refund policy?") {
		t.Errorf("user prompt missing query: %q", user)
	}
	if !strings.Contains(user, "agents_needed") {
		t.Error("user prompt missing the JSON contract")
	}
}

func TestRenderVerifierPrompt(t *testing.T) {
	findings := []Finding{
		{Agent: "DocumentRetrievalAgent", Summary: "refunds allowed within 30 days"},
		{Agent: "WebRetrievalAgent", Summary: "industry norm is 14 days"},
	}

	system, user, err := RenderVerifierPrompt("refund policy?", findings)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if system == "" {
		t.Error("system prompt is empty")
	}
	for _, f := range findings {
		if !strings.Contains(user, f.Agent) || !strings.Contains(user, f.Summary) {
			t.Errorf("user prompt missing finding %q", f.Agent)
		}
	}
	if !strings.Contains(user, "Approved") || !strings.Contains(user, "Denied") {
		t.Error("user prompt missing the verdict contract")
	}
	if !strings.Contains(user, "rewritten_query") {
		t.Error("user prompt missing the rewrite contract")
	}
}

func TestRenderSummaryPrompt(t *testing.T) {
	_, user, err := RenderSummaryPrompt("refund policy?", []Finding{
		{Agent: "DocumentRetrievalAgent", Summary: "30-day refund window"},
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(user, "30-day refund window") {
		t.Errorf("user prompt missing finding: %q", user)
	}
	if !strings.Contains(user, "refund policy?") {
		t.Errorf("user prompt missing query: %q", user)
	}
}

func TestRenderPageSummaryPrompt(t *testing.T) {
	_, user, err := RenderPageSummaryPrompt(
		"refund policy?", "Returns FAQ", "https://example.com/faq",
		"All purchases can be returned within 30 days.")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for _, want := range []string{"Returns FAQ", "https://example.com/faq", "within 30 days"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}
