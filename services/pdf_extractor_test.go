package services

import (
	"strings"
	"testing"

	"agentic-rag-platform/internal/indexer"
)

func TestEvaluateTextQualityCleanProse(t *testing.T) {
	e := NewPDFExtractor()

	text := "The quarterly report covers revenue and expenses for the period. " +
		"Totals are reconciled against the ledger in section 4. " +
		"Any discrepancy above 1,000 dollars is escalated to the finance team."

	score := e.evaluateTextQuality(text)
	if score < 0.7 {
		t.Errorf("clean prose scored %.2f, want >= 0.7", score)
	}
}

func TestEvaluateTextQualityCorruptedText(t *testing.T) {
	e := NewPDFExtractor()

	text := strings.Repeat("�͸͹", 40)
	score := e.evaluateTextQuality(text)
	if score > 0.2 {
		t.Errorf("corrupted text scored %.2f, want <= 0.2", score)
	}
}

func TestEvaluateTextQualityShortText(t *testing.T) {
	e := NewPDFExtractor()

	if score := e.evaluateTextQuality("  abc  "); score != 0.1 {
		t.Errorf("near-empty text scored %.2f, want 0.1", score)
	}
}

func TestEvaluateTextQualityCommonUnicodePenaltyFree(t *testing.T) {
	e := NewPDFExtractor()

	text := "The company’s results — summarized below — show the €1,500 fee was waived. " +
		"Refunds for the period are listed in the appendix of the annual statement."
	score := e.evaluateTextQuality(text)
	if score < 0.7 {
		t.Errorf("typographic punctuation should not count as corruption, scored %.2f", score)
	}
}

func TestHasGoodPatterns(t *testing.T) {
	if !hasGoodPatterns("The totals reached 12,000 units. Growth continued in the region.") {
		t.Error("sentence-like text should pass the pattern check")
	}
	if hasGoodPatterns("xq zzv qqq") {
		t.Error("pattern-free text should fail the check")
	}
}

func TestJoinPages(t *testing.T) {
	joined := joinPages([]indexer.Page{
		{Number: 1, Text: "first"},
		{Number: 2, Text: "second"},
	})
	if joined != "first\nsecond\n" {
		t.Errorf("joined = %q", joined)
	}
}
