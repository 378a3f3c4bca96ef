package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vcscout/internal/domain"
	"vcscout/internal/ports"
)

// Source implements ports.DealFeed by aggregating registered loaders.
type Source struct {
	registry *Registry
	names    []string
	limit    int
	logger   *slog.Logger
}

var _ ports.DealFeed = (*Source)(nil)

// NewSource wires the loader registry with the configured feed names.
func NewSource(reg *Registry, names []string, limit int, log *slog.Logger) *Source {
	return &Source{
		registry: reg,
		names:    names,
		limit:    limit,
		logger:   log,
	}
}

// FetchRecent pulls every configured feed and concatenates the results.
func (s *Source) FetchRecent(ctx context.Context, lookback time.Duration) ([]domain.Raise, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("feed registry is not configured")
	}

	s.debug("fetch recent", "feeds", len(s.names), "lookback", lookback.String())

	var aggregated []domain.Raise
	for _, name := range s.names {
		loader, err := s.registry.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", name, err)
		}

		raises, err := loader.Load(ctx, Request{Lookback: lookback, Limit: s.limit})
		if err != nil {
			return nil, fmt.Errorf("load feed %s: %w", name, err)
		}

		s.debug("feed produced raises", "feed", name, "count", len(raises))
		aggregated = append(aggregated, raises...)
	}

	s.debug("feed source done", "total_raises", len(aggregated))
	return aggregated, nil
}

func (s *Source) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
