package rag

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/sant0-9/promptforge/internal/config"
	"github.com/sant0-9/promptforge/internal/logging"
)

// Messages returned in place of an empty context block.
const (
	EmptyKnowledgeBase = "No files in the knowledge base."
	NoRelevantContext  = "No relevant context found in the files."
)

// Source is an uploaded document. Chunks is the cached chunking, built once
// at ingest; when empty the retriever chunks on the fly.
type Source struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Content string  `json:"content"`
	Chunks  []Chunk `json:"chunks,omitempty"`
}

// ScoredChunk pairs a chunk with its score for one query.
type ScoredChunk struct {
	Chunk
	Score float64
}

// Retriever selects the chunks most relevant to a query.
type Retriever struct {
	cfg     config.RetrievalConfig
	chunker *Chunker
	// chunks memoizes on-the-fly chunking of sources that carry none.
	chunks *cache.Cache
	logger *zap.Logger
}

// NewRetriever creates a retriever. A nil logger disables logging.
func NewRetriever(cfg config.RetrievalConfig, logger *zap.Logger) *Retriever {
	def := config.DefaultRetrieval()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.FallbackDocs <= 0 {
		cfg.FallbackDocs = def.FallbackDocs
	}
	if cfg.FallbackPreview <= 0 {
		cfg.FallbackPreview = def.FallbackPreview
	}
	return &Retriever{
		cfg:     cfg,
		chunker: NewChunker(cfg),
		chunks:  cache.New(cacheTTL, cacheCleanup),
		logger:  logging.Module(logger, "rag"),
	}
}

// Chunker returns the chunker used for on-the-fly chunking.
func (r *Retriever) Chunker() *Chunker {
	return r.chunker
}

// Rank scores every chunk of every source and returns those above the
// noise threshold, best first, at most TopK.
func (r *Retriever) Rank(query string, sources []Source) []ScoredChunk {
	var scored []ScoredChunk
	for _, src := range sources {
		for _, c := range r.chunksFor(src) {
			s := Score(query, c.Content)
			if s > r.cfg.MinScore {
				scored = append(scored, ScoredChunk{Chunk: c, Score: s})
			}
		}
	}

	slices.SortStableFunc(scored, func(a, b ScoredChunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(scored) > r.cfg.TopK {
		scored = scored[:r.cfg.TopK]
	}
	return scored
}

// Retrieve returns the formatted context block for query. It never
// returns an empty string.
func (r *Retriever) Retrieve(query string, sources []Source) string {
	if len(sources) == 0 {
		return EmptyKnowledgeBase
	}

	ranked := r.Rank(query, sources)
	if len(ranked) == 0 {
		r.logger.Warn("no strong match, falling back to source introductions",
			zap.Int("sources", len(sources)))
		return r.fallback(sources)
	}

	blocks := make([]string, len(ranked))
	for i, sc := range ranked {
		blocks[i] = fmt.Sprintf("\n<RELEVANT_CONTEXT file=%q relevance=\"%d\">\n%s\n</RELEVANT_CONTEXT>",
			sc.SourceName, int(math.Round(sc.Score)), sc.Content)
	}

	r.logger.Debug("retrieved context",
		zap.Int("chunks", len(ranked)),
		zap.Float64("top_score", ranked[0].Score))
	return strings.Join(blocks, "\n\n")
}

func (r *Retriever) fallback(sources []Source) string {
	n := min(len(sources), r.cfg.FallbackDocs)

	var blocks []string
	for _, src := range sources[:n] {
		chunks := r.chunksFor(src)
		if len(chunks) == 0 {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("\n<RELEVANT_CONTEXT file=%q type=\"fallback_intro\">\n%s...\n</RELEVANT_CONTEXT>",
			chunks[0].SourceName, preview(chunks[0].Content, r.cfg.FallbackPreview)))
	}

	if len(blocks) == 0 {
		return NoRelevantContext
	}
	return strings.Join(blocks, "\n")
}

// preview cuts s to at most limit bytes without splitting a rune.
func preview(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
