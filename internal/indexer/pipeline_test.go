package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"agentic-rag-platform/models"
	"agentic-rag-platform/utils"
)

type fakeExtractor struct {
	pages []Page
	err   error
}

func (f fakeExtractor) Extract(context.Context, string) ([]Page, error) {
	return f.pages, f.err
}

// wordChunker splits on lines, one chunk per non-empty line.
type wordChunker struct{}

func (wordChunker) Chunk(text string) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			chunks = append(chunks, line)
		}
	}
	return chunks
}

type fakeEmbedder struct {
	batches [][]string
	err     error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, texts)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 1}
	}
	return vectors, nil
}

type fakeWriter struct {
	documentID primitive.ObjectID
	chunks     []models.Chunk
	err        error
}

func (f *fakeWriter) ReplaceDocumentChunks(_ context.Context, documentID primitive.ObjectID, chunks []models.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.documentID = documentID
	f.chunks = chunks
	return nil
}

func testDocument() *models.Document {
	return &models.Document{
		ID:     primitive.NewObjectID(),
		Title:  "Handbook",
		Source: models.SourcePDF,
	}
}

func TestPipelineExecute(t *testing.T) {
	extractor := fakeExtractor{pages: []Page{
		{Number: 1, Text: "first chunk\nsecond chunk"},
		{Number: 2, Text: "third chunk"},
	}}
	embedder := &fakeEmbedder{}
	writer := &fakeWriter{}
	pipeline := NewPipeline(extractor, wordChunker{}, embedder, writer, 4096)

	doc := testDocument()
	var stages []string
	counters, err := pipeline.Execute(context.Background(), doc, "ignored.pdf", func(stage string, _ models.RunCounters) {
		stages = append(stages, stage)
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if counters.Pages != 2 || counters.Chunks != 3 || counters.Embedded != 3 || counters.Stored != 3 {
		t.Errorf("counters = %+v", counters)
	}
	if writer.documentID != doc.ID {
		t.Errorf("chunks written for wrong document: %s", writer.documentID.Hex())
	}
	if len(writer.chunks) != 3 {
		t.Fatalf("stored %d chunks, want 3", len(writer.chunks))
	}

	// Chunks keep global order and inherit document metadata.
	for i, chunk := range writer.chunks {
		if chunk.Order != i {
			t.Errorf("chunk %d has order %d", i, chunk.Order)
		}
		if chunk.Title != "Handbook" {
			t.Errorf("chunk %d title = %q", i, chunk.Title)
		}
		if chunk.ChunkID == "" {
			t.Errorf("chunk %d has no chunk_id", i)
		}
		if len(chunk.Vector) == 0 {
			t.Errorf("chunk %d has no vector", i)
		}
	}
	if writer.chunks[2].Page != 2 {
		t.Errorf("third chunk page = %d, want 2", writer.chunks[2].Page)
	}

	// Every stage reported at least once.
	for _, want := range []string{StageExtract, StageChunk, StageEmbed, StageStore} {
		found := false
		for _, s := range stages {
			if s == want {
				found = true
			}
		}
		if !found {
			t.Errorf("stage %q never reported: %v", want, stages)
		}
	}
}

func TestPipelinePageOverrides(t *testing.T) {
	extractor := fakeExtractor{pages: []Page{
		{Number: 1, Text: "page text", Title: "Pricing", URL: "https://example.com/pricing", Keywords: []string{"pricing"}},
	}}
	writer := &fakeWriter{}
	pipeline := NewPipeline(extractor, wordChunker{}, &fakeEmbedder{}, writer, 4096)

	doc := testDocument()
	doc.Source = models.SourceWeb
	if _, err := pipeline.Execute(context.Background(), doc, "", nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	chunk := writer.chunks[0]
	if chunk.Title != "Pricing" || chunk.URL != "https://example.com/pricing" {
		t.Errorf("page overrides not applied: %+v", chunk)
	}
	if len(chunk.Keywords) != 1 || chunk.Keywords[0] != "pricing" {
		t.Errorf("keywords not carried: %v", chunk.Keywords)
	}
}

func TestPipelineCompressesOversizedChunks(t *testing.T) {
	big := strings.Repeat("lorem ipsum dolor sit amet ", 20)
	extractor := fakeExtractor{pages: []Page{{Number: 1, Text: big}}}
	writer := &fakeWriter{}
	// Threshold far below the chunk size forces compression.
	pipeline := NewPipeline(extractor, wordChunker{}, &fakeEmbedder{}, writer, 64)

	if _, err := pipeline.Execute(context.Background(), testDocument(), "", nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	chunk := writer.chunks[0]
	if !chunk.Compressed {
		t.Fatal("oversized chunk should be compressed")
	}
	restored, err := utils.DecompressText(chunk.Text)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if restored != strings.TrimSpace(big) {
		t.Errorf("round trip mismatch: %q", restored[:40])
	}
}

func TestPipelineEmptyExtractFails(t *testing.T) {
	pipeline := NewPipeline(fakeExtractor{}, wordChunker{}, &fakeEmbedder{}, &fakeWriter{}, 4096)

	counters, err := pipeline.Execute(context.Background(), testDocument(), "", nil)
	if err == nil {
		t.Fatal("expected an error for zero pages")
	}
	if counters.Pages != 0 {
		t.Errorf("counters = %+v", counters)
	}
}

func TestPipelineEmbedFailureKeepsCounters(t *testing.T) {
	extractor := fakeExtractor{pages: []Page{{Number: 1, Text: "one\ntwo"}}}
	pipeline := NewPipeline(extractor, wordChunker{}, &fakeEmbedder{err: errors.New("quota")}, &fakeWriter{}, 4096)

	counters, err := pipeline.Execute(context.Background(), testDocument(), "", nil)
	if err == nil {
		t.Fatal("expected the embed error to propagate")
	}
	if counters.Pages != 1 || counters.Chunks != 2 || counters.Stored != 0 {
		t.Errorf("counters = %+v", counters)
	}
}
