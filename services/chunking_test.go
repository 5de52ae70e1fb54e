package services

import (
	"strings"
	"testing"
)

func TestChunkerEmptyInput(t *testing.T) {
	c := NewChunker(1000, 200, 100)

	if chunks := c.Chunk(""); chunks != nil {
		t.Errorf("empty input should produce no chunks, got %v", chunks)
	}
	if chunks := c.Chunk("\n\n  \n\n"); chunks != nil {
		t.Errorf("whitespace input should produce no chunks, got %v", chunks)
	}
}

func TestChunkerShortTextSingleChunk(t *testing.T) {
	c := NewChunker(1000, 200, 100)

	text := "A short paragraph.\n\nAnother short paragraph."
	chunks := c.Chunk(text)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1: %v", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0], "A short paragraph.") || !strings.Contains(chunks[0], "Another short paragraph.") {
		t.Errorf("paragraphs not packed together: %q", chunks[0])
	}
}

func TestChunkerSplitsOnParagraphs(t *testing.T) {
	c := NewChunker(200, 0, 50)

	para := strings.Repeat("Sentence here. ", 10) // ~150 chars
	text := para + "\n\n" + para + "\n\n" + para
	chunks := c.Chunk(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		// Allow some slack for joins, but nothing wildly oversized.
		if len(chunk) > 400 {
			t.Errorf("chunk %d is oversized: %d chars", i, len(chunk))
		}
	}
}

func TestChunkerCarriesOverlap(t *testing.T) {
	c := NewChunker(200, 60, 50)

	para := strings.Repeat("This sentence is filler text. ", 6)
	text := para + "\n\n" + para
	chunks := c.Chunk(text)

	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	// The second chunk starts with trailing content of the first.
	if !strings.Contains(chunks[1], "filler text") {
		t.Errorf("no overlap carried into second chunk: %q", chunks[1])
	}
}

func TestChunkerSplitsOversizedParagraph(t *testing.T) {
	c := NewChunker(100, 0, 20)

	// One paragraph far beyond the chunk size, with sentence boundaries.
	text := strings.Repeat("A fairly normal sentence of some length. ", 20)
	chunks := c.Chunk(text)

	if len(chunks) < 3 {
		t.Fatalf("expected the long paragraph to split, got %d chunks", len(chunks))
	}
}

func TestChunkerHardSplitsUnbrokenText(t *testing.T) {
	c := NewChunker(100, 0, 20)

	text := strings.Repeat("x", 450)
	chunks := c.Chunk(text)

	if len(chunks) < 4 {
		t.Fatalf("expected hard splits, got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 110 {
			t.Errorf("chunk %d exceeds limit: %d chars", i, len(chunk))
		}
	}
}

func TestChunkerMergesTinyTail(t *testing.T) {
	c := NewChunker(200, 0, 80)

	para := strings.Repeat("Words and words. ", 10)
	text := para + "\n\nTiny."
	chunks := c.Chunk(text)

	last := chunks[len(chunks)-1]
	if strings.TrimSpace(last) == "Tiny." && len(chunks) > 1 {
		t.Errorf("tiny tail should have merged into the previous chunk: %v", chunks)
	}
	if !strings.Contains(strings.Join(chunks, " "), "Tiny.") {
		t.Error("tail content lost")
	}
}

func TestChunkerDefaults(t *testing.T) {
	c := NewChunker(0, -5, 0)
	if c.maxChunkSize != 1000 {
		t.Errorf("maxChunkSize = %d", c.maxChunkSize)
	}
	if c.overlap != 0 {
		t.Errorf("overlap = %d", c.overlap)
	}
	if c.minChunkSize != 100 {
		t.Errorf("minChunkSize = %d", c.minChunkSize)
	}
}
