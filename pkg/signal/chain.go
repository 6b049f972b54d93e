package signal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// DefaultStrategyTimeout bounds one strategy attempt.
const DefaultStrategyTimeout = 15 * time.Second

// Strategy is one way of acquiring a source's items.
type Strategy struct {
	Name  string
	Fetch func(ctx context.Context, id Identity) ([]Item, error)
	// Timeout overrides DefaultStrategyTimeout when positive.
	Timeout time.Duration
}

// Acquire runs strategies in order and returns the first non-empty result.
//
// Strategies run one at a time; a later strategy starts only after the
// previous one has returned. Errors and panics are logged and treated like
// an empty result. If every strategy comes back empty, Acquire returns nil.
// Each item is stamped with source and the strategy name.
func Acquire(ctx context.Context, logger *slog.Logger, source string, strategies []Strategy, id Identity) []Item {
	if logger == nil {
		logger = slog.Default()
	}
	for _, s := range strategies {
		if ctx.Err() != nil {
			logger.DebugContext(ctx, "fallback chain abandoned", "source", source, "error", ctx.Err())
			return nil
		}
		start := time.Now()
		items, err := run(ctx, s, id)
		switch {
		case errors.Is(err, ErrSkipped):
			logger.DebugContext(ctx, "strategy skipped", "source", source, "strategy", s.Name, "reason", err)
			continue
		case err != nil:
			logger.WarnContext(ctx, "strategy failed", "source", source, "strategy", s.Name,
				"duration", time.Since(start), "error", err)
			continue
		case len(items) == 0:
			logger.DebugContext(ctx, "strategy returned nothing", "source", source, "strategy", s.Name)
			continue
		}
		logger.InfoContext(ctx, "strategy succeeded", "source", source, "strategy", s.Name,
			"items", len(items), "duration", time.Since(start))
		for i := range items {
			items[i].Source = source
			if items[i].Strategy == "" {
				items[i].Strategy = s.Name
			}
		}
		return items
	}
	logger.InfoContext(ctx, "all strategies empty", "source", source, "tried", len(strategies))
	return nil
}

func run(ctx context.Context, s Strategy, id Identity) (items []Item, err error) {
	if s.Fetch == nil {
		return nil, ErrSkipped
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultStrategyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return s.Fetch(ctx, id)
}
