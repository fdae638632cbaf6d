// Package cache memoizes dashboard results per normalized filter selection.
//
// Results are keyed by model.FilterSpec.Key, so selections that normalize to
// the same content share one entry regardless of how they were entered.
package cache

import (
	"context"
	"time"

	"github.com/tradelens/analytics-engine/internal/model"
)

// DefaultTTL is how long a result stays valid after it was stored.
const DefaultTTL = 300 * time.Second

// Cache stores aggregate results. Implementations must be safe for
// concurrent use. A lookup failure of any kind is reported as a miss.
type Cache interface {
	Get(ctx context.Context, spec model.FilterSpec) (model.AggregateResult, bool)
	Put(ctx context.Context, spec model.FilterSpec, result model.AggregateResult)
}

// Clock returns the current time.
type Clock func() time.Time
