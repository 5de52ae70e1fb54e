package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"agentic-rag-platform/internal/indexer"
	"agentic-rag-platform/internal/logger"
)

// PDFExtractor extracts per-page text from PDF files, with a pdftotext
// fallback for documents the Go reader mangles.
type PDFExtractor struct {
	minQuality float64
}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{minQuality: 0.3}
}

// Extract implements indexer.Extractor.
func (e *PDFExtractor) Extract(ctx context.Context, filePath string) ([]indexer.Page, error) {
	// Cap extremely large files to avoid OOM
	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}
	if stat.Size() > 200<<20 { // 200MB safety cap
		return nil, fmt.Errorf("pdf too large for in-memory extraction")
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}

	pages, goErr := e.extractWithGoPDF(content)
	if goErr == nil {
		quality := e.evaluateTextQuality(joinPages(pages))
		if quality >= 0.7 {
			return pages, nil
		}
		logger.Warn("Low-quality go-pdf extraction, trying pdftotext",
			"file", filePath, "quality", quality)
	}

	popplerPages, popplerErr := e.extractWithPoppler(ctx, content)
	if popplerErr == nil {
		quality := e.evaluateTextQuality(joinPages(popplerPages))
		if quality >= e.minQuality {
			return popplerPages, nil
		}
	}

	// Fall back to the best low-quality result rather than nothing
	if goErr == nil && e.evaluateTextQuality(joinPages(pages)) >= e.minQuality {
		return pages, nil
	}

	return nil, fmt.Errorf("all extraction methods failed: go-pdf: %v, pdftotext: %v", goErr, popplerErr)
}

func (e *PDFExtractor) extractWithGoPDF(content []byte) ([]indexer.Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var pages []indexer.Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from page", "page", i, "error", err)
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, indexer.Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no text extracted by go-pdf")
	}
	return pages, nil
}

// extractWithPoppler shells out to pdftotext, splitting pages on form feeds.
func (e *PDFExtractor) extractWithPoppler(ctx context.Context, content []byte) ([]indexer.Page, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not available")
	}

	extractCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(extractCtx, "pdftotext", "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(content)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftotext failed: %v, stderr: %s", err, stderr.String())
	}

	var pages []indexer.Page
	for i, pageText := range strings.Split(stdout.String(), "\f") {
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		pages = append(pages, indexer.Page{Number: i + 1, Text: pageText})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no text extracted by pdftotext")
	}
	return pages, nil
}

// evaluateTextQuality assesses the quality of extracted text
func (e *PDFExtractor) evaluateTextQuality(text string) float64 {
	text = strings.TrimSpace(text)
	if len(text) < 10 {
		return 0.1
	}

	var alphanumeric, printable, corrupted int

	for _, r := range text {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			alphanumeric++
			printable++
		case r == ' ' || r == '\n' || r == '\t':
			printable++
		case r == '�':
			corrupted++
		case r >= 32 && r <= 126:
			printable++
		default:
			if r > 127 && !isCommonUnicodeChar(r) {
				corrupted++
			} else {
				printable++
			}
		}
	}

	total := len([]rune(text))
	alphanumericRatio := float64(alphanumeric) / float64(total)
	printableRatio := float64(printable) / float64(total)
	corruptedRatio := float64(corrupted) / float64(total)

	score := printableRatio * 0.4

	if alphanumericRatio >= 0.3 {
		score += 0.3
	} else {
		score += alphanumericRatio
	}

	score -= corruptedRatio * 2.0

	if len(text) > 100 {
		score += 0.1
	}

	if hasGoodPatterns(text) {
		score += 0.2
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// isCommonUnicodeChar checks if a character is a common Unicode character
func isCommonUnicodeChar(r rune) bool {
	common := []rune{'—', '"', '"', '‘', '’', '…', '€', '£', '¥', '©', '®', '™'}
	for _, c := range common {
		if r == c {
			return true
		}
	}
	return false
}

// hasGoodPatterns checks for patterns that indicate good text extraction
func hasGoodPatterns(text string) bool {
	patterns := []string{
		`\b[A-Z][a-z]+\b`,       // Capitalized words
		`\b\d{1,3}[,.]?\d{3}\b`, // Numbers with separators
		`[.!?]\s+[A-Z]`,         // Sentence boundaries
		`\b(the|and|or|of|to|in|for|with|on|at|by|from)\b`, // Common words
	}

	goodPatterns := 0
	for _, pattern := range patterns {
		if matched, _ := regexp.MatchString(pattern, text); matched {
			goodPatterns++
		}
	}
	return goodPatterns >= 3
}

func joinPages(pages []indexer.Page) string {
	var sb strings.Builder
	for _, page := range pages {
		sb.WriteString(page.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
