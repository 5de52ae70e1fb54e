package indexer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"agentic-rag-platform/models"
	"agentic-rag-platform/utils"
)

// Pipeline stages, in execution order.
const (
	StageExtract = "extract"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageStore   = "store"
)

// Page is one extracted page of source text. Title, URL and Keywords are
// optional per-page overrides used by web ingestion, where every page has
// its own address; PDF extraction leaves them empty and the document-level
// values apply.
type Page struct {
	Number   int
	Text     string
	Title    string
	URL      string
	Keywords []string
}

// Extractor turns a staged file into page texts.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]Page, error)
}

// Chunker splits page text into retrieval-sized chunks.
type Chunker interface {
	Chunk(text string) []string
}

// Embedder produces vectors for a batch of chunk texts.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkWriter persists the final chunk set for a document.
type ChunkWriter interface {
	ReplaceDocumentChunks(ctx context.Context, documentID primitive.ObjectID, chunks []models.Chunk) error
}

// Progress is called after each stage (and per embedding batch) with the
// current counters, so the run record stays observable while the pipeline
// works.
type Progress func(stage string, counters models.RunCounters)

// Pipeline executes extract → chunk → embed → store for one document.
type Pipeline struct {
	extractor            Extractor
	chunker              Chunker
	embedder             Embedder
	writer               ChunkWriter
	compressionThreshold int
	embedBatchSize       int
}

func NewPipeline(extractor Extractor, chunker Chunker, embedder Embedder, writer ChunkWriter, compressionThreshold int) *Pipeline {
	if compressionThreshold <= 0 {
		compressionThreshold = 4096
	}
	return &Pipeline{
		extractor:            extractor,
		chunker:              chunker,
		embedder:             embedder,
		writer:               writer,
		compressionThreshold: compressionThreshold,
		embedBatchSize:       64,
	}
}

// Execute runs all stages. Counters reflect completed work even when an
// error aborts a later stage.
func (p *Pipeline) Execute(ctx context.Context, doc *models.Document, filePath string, progress Progress) (models.RunCounters, error) {
	tracer := otel.Tracer("indexer")
	ctx, span := tracer.Start(ctx, "indexer.pipeline")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", doc.ID.Hex()))

	var counters models.RunCounters
	report := func(stage string) {
		if progress != nil {
			progress(stage, counters)
		}
	}

	// Extract
	pages, err := p.extractor.Extract(ctx, filePath)
	if err != nil {
		return counters, fmt.Errorf("extract stage failed: %w", err)
	}
	counters.Pages = len(pages)
	report(StageExtract)

	if len(pages) == 0 {
		return counters, fmt.Errorf("extract stage produced no pages")
	}

	// Chunk
	chunks := p.buildChunks(doc, pages)
	counters.Chunks = len(chunks)
	report(StageChunk)

	if len(chunks) == 0 {
		return counters, fmt.Errorf("chunk stage produced no chunks")
	}

	// Embed, in batches
	for start := 0; start < len(chunks); start += p.embedBatchSize {
		end := start + p.embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return counters, fmt.Errorf("embed stage failed at chunk %d: %w", start, err)
		}

		for i := range vectors {
			chunks[start+i].Vector = vectors[i]
		}
		counters.Embedded = end
		report(StageEmbed)
	}

	// Store: compress oversized text, then swap the chunk set atomically
	for i := range chunks {
		if len(chunks[i].Text) > p.compressionThreshold {
			compressed, err := utils.CompressText(chunks[i].Text)
			if err != nil {
				return counters, fmt.Errorf("store stage failed compressing chunk %d: %w", i, err)
			}
			chunks[i].Text = compressed
			chunks[i].Compressed = true
		}
	}

	if err := p.writer.ReplaceDocumentChunks(ctx, doc.ID, chunks); err != nil {
		return counters, fmt.Errorf("store stage failed: %w", err)
	}
	counters.Stored = len(chunks)
	report(StageStore)

	span.SetAttributes(
		attribute.Int("indexer.pages", counters.Pages),
		attribute.Int("indexer.chunks", counters.Stored),
	)
	return counters, nil
}

func (p *Pipeline) buildChunks(doc *models.Document, pages []Page) []models.Chunk {
	var chunks []models.Chunk
	order := 0
	for _, page := range pages {
		title := page.Title
		if title == "" {
			title = doc.Title
		}
		url := page.URL
		if url == "" {
			url = doc.URL
		}

		for _, text := range p.chunker.Chunk(page.Text) {
			chunks = append(chunks, models.Chunk{
				DocumentID: doc.ID,
				ChunkID:    uuid.NewString(),
				Order:      order,
				Text:       text,
				Title:      title,
				Page:       page.Number,
				Source:     doc.Source,
				URL:        url,
				Keywords:   page.Keywords,
			})
			order++
		}
	}
	return chunks
}
