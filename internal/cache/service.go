package cache

import (
	"context"
	"time"

	"github.com/tradelens/analytics-engine/internal/engine"
	"github.com/tradelens/analytics-engine/internal/metrics"
	"github.com/tradelens/analytics-engine/internal/model"
)

// Service serves dashboards from the cache and computes them on a miss.
// Concurrent misses for one selection may each compute; the results are
// identical so the last Put wins harmlessly.
type Service struct {
	engine *engine.Engine
	cache  Cache
}

// NewService wraps eng with c. A nil c disables caching.
func NewService(eng *engine.Engine, c Cache) *Service {
	return &Service{engine: eng, cache: c}
}

// Engine returns the wrapped engine.
func (s *Service) Engine() *engine.Engine { return s.engine }

// Dashboard returns the aggregate result for spec.
func (s *Service) Dashboard(ctx context.Context, spec model.FilterSpec) model.AggregateResult {
	if s.cache != nil {
		if res, ok := s.cache.Get(ctx, spec); ok {
			metrics.CacheHits.Inc()
			return res
		}
		metrics.CacheMisses.Inc()
	}

	start := time.Now()
	res := s.engine.Aggregate(spec)
	metrics.ObserveAggregation("dashboard", start)

	if s.cache != nil {
		s.cache.Put(ctx, spec, res)
	}
	return res
}
