package services

import (
	"regexp"
	"strings"
)

// Chunker splits text into retrieval-sized chunks with paragraph and
// sentence boundary awareness plus a configurable overlap.
type Chunker struct {
	maxChunkSize   int
	overlap        int
	minChunkSize   int
	sentenceRegex  *regexp.Regexp
	paragraphRegex *regexp.Regexp
}

func NewChunker(maxChunkSize, overlap, minChunkSize int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = 1000
	}
	if minChunkSize <= 0 || minChunkSize > maxChunkSize {
		minChunkSize = maxChunkSize / 10
	}
	if overlap < 0 || overlap >= maxChunkSize {
		overlap = 0
	}
	return &Chunker{
		maxChunkSize:   maxChunkSize,
		overlap:        overlap,
		minChunkSize:   minChunkSize,
		sentenceRegex:  regexp.MustCompile(`[.!?]+[\s]+`),
		paragraphRegex: regexp.MustCompile(`\n\n+`),
	}
}

// Chunk splits text along paragraph boundaries, packing paragraphs until
// the max size is reached and carrying sentence-level overlap into the next
// chunk.
func (c *Chunker) Chunk(text string) []string {
	paragraphs := filterEmpty(c.paragraphRegex.Split(text, -1))
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	currentChunk := new(strings.Builder)
	currentSize := 0

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if len(paragraph) == 0 {
			continue
		}

		paraSize := len(paragraph)

		// If adding this paragraph would exceed max size, finalize
		if currentSize+paraSize > c.maxChunkSize && currentSize >= c.minChunkSize {
			if currentChunk.Len() > 0 {
				chunks = append(chunks, currentChunk.String())
			}

			currentChunk = new(strings.Builder)
			currentSize = 0

			// Carry overlap from the previous chunk
			if len(chunks) > 0 && c.overlap > 0 {
				overlapText := c.overlapText(chunks[len(chunks)-1])
				if len(overlapText) > 0 {
					currentChunk.WriteString(overlapText)
					currentSize += len(overlapText)
				}
			}
		}

		// Oversized single paragraph: split it on sentence boundaries
		if paraSize > c.maxChunkSize {
			for _, piece := range c.splitLongParagraph(paragraph) {
				if currentSize+len(piece) > c.maxChunkSize && currentChunk.Len() > 0 {
					chunks = append(chunks, currentChunk.String())
					currentChunk = new(strings.Builder)
					currentSize = 0
				}
				if currentChunk.Len() > 0 {
					currentChunk.WriteString(" ")
					currentSize++
				}
				currentChunk.WriteString(piece)
				currentSize += len(piece)
			}
			continue
		}

		if currentChunk.Len() > 0 {
			currentChunk.WriteString("\n\n")
			currentSize += 2
		}
		currentChunk.WriteString(paragraph)
		currentSize += paraSize
	}

	if currentChunk.Len() > 0 {
		final := currentChunk.String()
		if len(chunks) > 0 && len(strings.TrimSpace(final)) < c.minChunkSize {
			// Merge a tiny tail into the previous chunk instead of
			// emitting a fragment.
			chunks[len(chunks)-1] += "\n\n" + final
		} else {
			chunks = append(chunks, final)
		}
	}

	return chunks
}

// splitLongParagraph breaks a paragraph that exceeds the chunk size into
// sentence-sized pieces.
func (c *Chunker) splitLongParagraph(paragraph string) []string {
	sentences := filterEmpty(c.sentenceRegex.Split(paragraph, -1))
	if len(sentences) == 0 {
		return hardSplit(paragraph, c.maxChunkSize)
	}

	var pieces []string
	for _, sentence := range sentences {
		if len(sentence) > c.maxChunkSize {
			pieces = append(pieces, hardSplit(sentence, c.maxChunkSize)...)
		} else {
			pieces = append(pieces, sentence)
		}
	}
	return pieces
}

// overlapText extracts trailing sentences from the previous chunk up to the
// overlap budget.
func (c *Chunker) overlapText(text string) string {
	if len(text) <= c.overlap {
		return text
	}

	sentences := filterEmpty(c.sentenceRegex.Split(text, -1))
	if len(sentences) == 0 {
		return text[len(text)-c.overlap:]
	}

	var tail []string
	size := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		if size+len(sentences[i]) > c.overlap {
			break
		}
		tail = append([]string{sentences[i]}, tail...)
		size += len(sentences[i])
	}
	if len(tail) == 0 {
		return text[len(text)-c.overlap:]
	}
	return strings.Join(tail, ". ")
}

func hardSplit(text string, size int) []string {
	var pieces []string
	for len(text) > size {
		pieces = append(pieces, text[:size])
		text = text[size:]
	}
	if len(text) > 0 {
		pieces = append(pieces, text)
	}
	return pieces
}

// filterEmpty removes empty strings from slice
func filterEmpty(slice []string) []string {
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if len(strings.TrimSpace(s)) > 0 {
			result = append(result, s)
		}
	}
	return result
}
