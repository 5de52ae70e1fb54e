package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"agentic-rag-platform/internal/ai"
	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/internal/prompts"
	"agentic-rag-platform/models"
	"agentic-rag-platform/utils"
)

// WebAgentName is the planner-facing name of the web retriever.
const WebAgentName = "WebRetrievalAgent"

// maxPageText caps how much fetched page text is handed to the LLM.
const maxPageText = 6000

// WebSearchResult is one hit from the configured search endpoint.
type WebSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebAgent retrieves live web context. With a search endpoint configured it
// searches, fetches the top pages, and condenses each with the LLM. Without
// one it falls back to previously crawled pages in the chunk index.
type WebAgent struct {
	llm            LLM
	searchEndpoint string
	resultLimit    int
	client         *http.Client
	fallback       ChunkSearcher
}

func NewWebAgent(llm LLM, searchEndpoint string, resultLimit int, fetchTimeout time.Duration, fallback ChunkSearcher) *WebAgent {
	if resultLimit <= 0 {
		resultLimit = 5
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 20 * time.Second
	}
	return &WebAgent{
		llm:            llm,
		searchEndpoint: searchEndpoint,
		resultLimit:    resultLimit,
		client:         &http.Client{Timeout: fetchTimeout},
		fallback:       fallback,
	}
}

func (a *WebAgent) Name() string { return WebAgentName }

func (a *WebAgent) Retrieve(ctx context.Context, query string) (*models.Retrieval, error) {
	if a.searchEndpoint == "" {
		return a.retrieveFromCrawledPages(ctx, query)
	}

	results, err := a.search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}
	if len(results) == 0 {
		return &models.Retrieval{
			Agent:   a.Name(),
			Summary: "The web search returned no results for this query.",
		}, nil
	}

	if len(results) > a.resultLimit {
		results = results[:a.resultLimit]
	}

	var sb strings.Builder
	sb.WriteString("Findings from the web:\n")

	var citations []models.Citation
	for _, result := range results {
		summary, err := a.summarizePage(ctx, query, result)
		if err != nil {
			logger.Warn("Failed to summarize web page, using snippet",
				"url", result.URL, "error", err)
			summary = result.Snippet
		}
		if summary == "" {
			continue
		}

		fmt.Fprintf(&sb, "\n### %s (%s)\n%s\n", result.Title, result.URL, summary)
		citations = append(citations, models.Citation{
			Source: models.CitationWeb,
			Title:  result.Title,
			URL:    result.URL,
		})
	}

	if len(citations) == 0 {
		return &models.Retrieval{
			Agent:   a.Name(),
			Summary: "Web results were found but none could be fetched or summarized.",
		}, nil
	}

	return &models.Retrieval{
		Agent:     a.Name(),
		Summary:   sb.String(),
		Citations: citations,
	}, nil
}

func (a *WebAgent) search(ctx context.Context, query string) ([]WebSearchResult, error) {
	endpoint, err := url.Parse(a.searchEndpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	params := endpoint.Query()
	params.Set("q", query)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		Results []WebSearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	return payload.Results, nil
}

func (a *WebAgent) summarizePage(ctx context.Context, query string, result WebSearchResult) (string, error) {
	pageText, err := a.fetchPageText(ctx, result.URL)
	if err != nil {
		return "", err
	}
	if pageText == "" {
		return result.Snippet, nil
	}

	systemPrompt, userPrompt, err := prompts.RenderPageSummaryPrompt(query, result.Title, result.URL, pageText)
	if err != nil {
		return "", err
	}

	llmResult, err := a.llm.Generate(ctx, userPrompt, ai.GenerateOptions{
		SystemPrompt: systemPrompt,
		Temperature:  0.2,
		MaxTokens:    1024,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(llmResult.Text), nil
}

func (a *WebAgent) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "agentic-rag-platform/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page fetch returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	doc.Find("script, style, nav, header, footer, noscript").Remove()

	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	return truncateOnRuneBoundary(text, maxPageText), nil
}

// truncateOnRuneBoundary caps text at max bytes without splitting a UTF-8
// sequence mid-rune.
func truncateOnRuneBoundary(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// retrieveFromCrawledPages serves web context from pages the crawler already
// ingested into the chunk index.
func (a *WebAgent) retrieveFromCrawledPages(ctx context.Context, query string) (*models.Retrieval, error) {
	if a.fallback == nil {
		return &models.Retrieval{
			Agent:   a.Name(),
			Summary: "No web search endpoint is configured and no crawled pages are available.",
		}, nil
	}

	chunks, err := a.fallback.Search(ctx, query, a.resultLimit)
	if err != nil {
		return nil, fmt.Errorf("crawled page search failed: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Findings from previously crawled web pages:\n")

	var citations []models.Citation
	for _, chunk := range chunks {
		if chunk.Source != models.SourceWeb {
			continue
		}
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
		fmt.Fprintf(&sb, "\n### %s (%s)\n%s\n", chunk.Title, chunk.URL, text)
		citations = append(citations, models.Citation{
			Source: models.CitationWeb,
			Title:  chunk.Title,
			URL:    chunk.URL,
		})
	}

	if len(citations) == 0 {
		return &models.Retrieval{
			Agent:   a.Name(),
			Summary: "No crawled web pages matched this query.",
		}, nil
	}

	return &models.Retrieval{
		Agent:     a.Name(),
		Summary:   sb.String(),
		Citations: citations,
	}, nil
}
