package rag

import (
	"context"
	"runtime"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	cacheTTL     = 1 * time.Hour
	cacheCleanup = 10 * time.Minute
)

// chunksFor returns the source's cached chunks, chunking it on first use
// when it carries none.
func (r *Retriever) chunksFor(src Source) []Chunk {
	if len(src.Chunks) > 0 {
		return src.Chunks
	}
	if x, found := r.chunks.Get(src.ID); found {
		return x.([]Chunk)
	}

	chunks := r.chunker.Chunk(src.Content, src.ID, src.Name)
	r.chunks.Set(src.ID, chunks, cache.DefaultExpiration)
	return chunks
}

// Forget drops the memoized chunks of a source, for example after it was
// deleted or replaced.
func (r *Retriever) Forget(sourceID string) {
	r.chunks.Delete(sourceID)
}

// Ingest chunks every source that has no chunks yet, concurrently, and
// returns the sources with Chunks filled in so the caller can persist them
// alongside the text. Sources that already carry chunks are left as is.
func (r *Retriever) Ingest(ctx context.Context, sources []Source) ([]Source, error) {
	out := make([]Source, len(sources))
	copy(out, sources)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for i := range out {
		if len(out[i].Chunks) > 0 {
			continue
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			out[i].Chunks = r.chunksFor(out[i])
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info("ingested sources", zap.Int("count", len(out)))
	return out, nil
}
