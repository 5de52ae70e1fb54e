package agents

import (
	"context"
	"fmt"
	"strings"

	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/models"
	"agentic-rag-platform/utils"
)

// DocumentAgentName is the planner-facing name of the document retriever.
const DocumentAgentName = "DocumentRetrievalAgent"

// ChunkSearcher finds the most relevant indexed chunks for a query.
type ChunkSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]models.ScoredChunk, error)
}

// DocumentAgent retrieves context from the uploaded-document chunk index.
type DocumentAgent struct {
	searcher ChunkSearcher
	topK     int
}

func NewDocumentAgent(searcher ChunkSearcher, topK int) *DocumentAgent {
	if topK <= 0 {
		topK = 8
	}
	return &DocumentAgent{searcher: searcher, topK: topK}
}

func (a *DocumentAgent) Name() string { return DocumentAgentName }

func (a *DocumentAgent) Retrieve(ctx context.Context, query string) (*models.Retrieval, error) {
	chunks, err := a.searcher.Search(ctx, query, a.topK)
	if err != nil {
		return nil, fmt.Errorf("document search failed: %w", err)
	}

	if len(chunks) == 0 {
		return &models.Retrieval{
			Agent:   a.Name(),
			Summary: "No matching internal documents were found for this query.",
		}, nil
	}

	var sb strings.Builder
	sb.WriteString("Relevant excerpts from internal documents:\n")

	var citations []models.Citation
	for _, chunk := range chunks {
		text := chunk.Text
		if chunk.Compressed {
			decompressed, err := utils.DecompressText(text)
			if err != nil {
				logger.Warn("Failed to decompress chunk text, skipping",
					"chunk_id", chunk.ChunkID, "error", err)
				continue
			}
			text = decompressed
		}

		title := chunk.Title
		if title == "" {
			title = "Untitled document"
		}

		if chunk.Page > 0 {
			fmt.Fprintf(&sb, "\n### %s (page %d)\n%s\n", title, chunk.Page, text)
		} else {
			fmt.Fprintf(&sb, "\n### %s\n%s\n", title, text)
		}

		ref := ""
		if chunk.Page > 0 {
			ref = fmt.Sprintf("page %d", chunk.Page)
		}
		citations = append(citations, models.Citation{
			Source: models.CitationDocument,
			Title:  title,
			URL:    chunk.URL,
			Ref:    ref,
		})
	}

	return &models.Retrieval{
		Agent:     a.Name(),
		Summary:   sb.String(),
		Citations: citations,
	}, nil
}
