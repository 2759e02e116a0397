package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/sant0-9/promptforge/internal/llm"
)

// TickInterval is how often Run checks the thinking deadline while the
// transport is silent.
var TickInterval = time.Second

// Run streams req from provider through in, calling emit for every event in
// order. It returns nil when the turn completes or is aborted by the
// interpreter; the transport request is cancelled in the latter case.
// External cancellation of ctx returns an error wrapping llm.ErrAborted.
// Run waits for the transport to close its channel before returning.
func Run(ctx context.Context, provider llm.Provider, req *llm.CompletionRequest, in *Interpreter, emit func(Event)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := provider.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		cancel()
		for range ch {
		}
	}()

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	deliver := func(events []Event) {
		for _, ev := range events {
			emit(ev)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", llm.ErrAborted, ctx.Err())

		case now := <-ticker.C:
			deliver(in.Tick(now))

		case chunk, ok := <-ch:
			if !ok {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("%w: %w", llm.ErrAborted, err)
				}
				deliver(in.Finish())
				return nil
			}
			if chunk.Error != nil {
				return chunk.Error
			}
			deliver(in.Advance(chunk))
		}

		if in.Phase().Terminal() {
			return nil
		}
	}
}
