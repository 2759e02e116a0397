// Package rag chunks uploaded sources and retrieves the chunks most relevant
// to a query, formatted as a context block for the model.
package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sant0-9/promptforge/internal/config"
)

// Chunk is a bounded slice of a source's text.
type Chunk struct {
	ID         string `json:"id"`
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`
	Content    string `json:"content"`
	Index      int    `json:"index"`

	// Start and End delimit the chunk's span in the newline-normalized
	// source text. Content is that span trimmed.
	Start int `json:"start"`
	End   int `json:"end"`
}

// Chunker splits text into overlapping windows cut at natural boundaries.
type Chunker struct {
	size     int
	overlap  int
	lookback int
	minChunk int
}

// NewChunker builds a chunker from retrieval settings. An overlap that
// would stall the window is clamped to size-1.
func NewChunker(cfg config.RetrievalConfig) *Chunker {
	def := config.DefaultRetrieval()
	c := &Chunker{
		size:     cfg.ChunkSize,
		overlap:  cfg.Overlap,
		lookback: cfg.Lookback,
		minChunk: cfg.MinChunk,
	}
	if c.size <= 0 {
		c.size = def.ChunkSize
	}
	if c.overlap < 0 {
		c.overlap = 0
	}
	if c.overlap >= c.size {
		c.overlap = c.size - 1
	}
	if c.lookback < 0 || c.lookback > c.size {
		c.lookback = c.size
	}
	if c.minChunk < 0 {
		c.minChunk = 0
	}
	return c
}

// Normalize converts CRLF line endings to LF. Chunk offsets refer to the
// normalized text.
func Normalize(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}

// Chunk splits text into chunks. Fragments no longer than the minimum
// chunk length are dropped as noise. Empty input yields nil.
func (c *Chunker) Chunk(text, sourceID, sourceName string) []Chunk {
	text = Normalize(text)
	if text == "" {
		return nil
	}

	var chunks []Chunk
	start := 0
	for start < len(text) {
		end := c.cut(text, start)

		content := strings.TrimSpace(text[start:end])
		if len(content) > c.minChunk {
			idx := len(chunks)
			chunks = append(chunks, Chunk{
				ID:         fmt.Sprintf("%s-chk-%d", sourceID, idx),
				SourceID:   sourceID,
				SourceName: sourceName,
				Content:    content,
				Index:      idx,
				Start:      start,
				End:        end,
			})
		}

		if end == len(text) {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}

	return chunks
}

// cut returns the end of the window starting at start, preferring a
// paragraph break, then a sentence end, then a space within the lookback
// margin before the nominal end.
func (c *Chunker) cut(text string, start int) int {
	end := start + c.size
	if end >= len(text) {
		return len(text)
	}

	limit := end - c.lookback
	if limit < start {
		limit = start
	}

	if i := lastIndexAtOrBefore(text, "\n\n", end); i > limit {
		return i + 2
	}
	if i := lastIndexAtOrBefore(text, ". ", end); i > limit {
		return i + 2
	}
	if i := lastIndexAtOrBefore(text, " ", end); i > limit {
		return i + 1
	}

	for end > start+1 && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

// lastIndexAtOrBefore finds the last occurrence of sep starting at or
// before pos.
func lastIndexAtOrBefore(text, sep string, pos int) int {
	stop := pos + len(sep)
	if stop > len(text) {
		stop = len(text)
	}
	return strings.LastIndex(text[:stop], sep)
}
