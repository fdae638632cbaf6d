package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/tradelens/analytics-engine/internal/dataset"
	"github.com/tradelens/analytics-engine/internal/engine"
	"github.com/tradelens/analytics-engine/internal/filter"
	"github.com/tradelens/analytics-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func result(exports float64) model.AggregateResult {
	return model.AggregateResult{Level: model.Level6, KPIs: model.KPIs{Exports: d(exports)}}
}

func TestMemory_TTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemory(300*time.Second, 10, WithClock(clock.Now))
	ctx := context.Background()
	spec := filter.Normalize([]int{2020}, nil, 6, nil)

	c.Put(ctx, spec, result(100))

	clock.Advance(299 * time.Second)
	got, ok := c.Get(ctx, spec)
	if !ok || !got.KPIs.Exports.Equal(d(100)) {
		t.Fatalf("expected hit before expiry, got %v %+v", ok, got)
	}

	clock.Advance(time.Second)
	if _, ok := c.Get(ctx, spec); ok {
		t.Fatal("entry should expire after the TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be evicted on lookup, len=%d", c.Len())
	}
}

func TestMemory_EqualContentSharesEntry(t *testing.T) {
	c := NewMemory(0, 0)
	ctx := context.Background()

	c.Put(ctx, filter.Normalize([]any{"2021", 2020}, []string{"Peru", "Chile"}, "HS6", nil), result(7))

	got, ok := c.Get(ctx, filter.Normalize([]int{2020, 2021, 2020}, []string{"Chile", "Peru"}, 6, []string{}))
	if !ok || !got.KPIs.Exports.Equal(d(7)) {
		t.Fatalf("equal selections should hit the same entry")
	}
	if _, ok := c.Get(ctx, filter.Normalize([]int{2020}, nil, 6, nil)); ok {
		t.Error("different selection should miss")
	}
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemory(time.Hour, 2)
	ctx := context.Background()
	a := filter.Normalize([]int{2018}, nil, 6, nil)
	b := filter.Normalize([]int{2019}, nil, 6, nil)
	x := filter.Normalize([]int{2020}, nil, 6, nil)

	c.Put(ctx, a, result(1))
	c.Put(ctx, b, result(2))
	c.Get(ctx, a)
	c.Put(ctx, x, result(3))

	if _, ok := c.Get(ctx, b); ok {
		t.Error("least recently used entry should be evicted")
	}
	if _, ok := c.Get(ctx, a); !ok {
		t.Error("recently used entry should survive")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestRedisKey(t *testing.T) {
	a := filter.Normalize([]int{2020}, nil, 6, nil).Key()
	b := filter.Normalize([]int{2021}, nil, 6, nil).Key()

	if !strings.HasPrefix(redisKey(a), "dashboard:") {
		t.Errorf("unexpected key %q", redisKey(a))
	}
	if redisKey(a) != redisKey(a) || redisKey(a) == redisKey(b) {
		t.Error("keys should be stable and distinct")
	}
}

func TestRedis_UnreachableIsMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	c := NewRedis(rdb, time.Minute)
	ctx := context.Background()
	spec := filter.Normalize(nil, nil, nil, nil)

	c.Put(ctx, spec, result(1))
	if _, ok := c.Get(ctx, spec); ok {
		t.Error("unreachable redis should read as a miss")
	}
}

// countingCache records Put calls on top of a Memory cache.
type countingCache struct {
	*Memory
	puts int
}

func (c *countingCache) Put(ctx context.Context, spec model.FilterSpec, res model.AggregateResult) {
	c.puts++
	c.Memory.Put(ctx, spec, res)
}

func TestService_Dashboard(t *testing.T) {
	descs := [4]string{"Animals", "Horses", "Pure-bred", "Breeding"}
	ds := dataset.New([]model.TradeRecord{
		dataset.NewRecord("01012100", 2020, "100", "EXP", "Peru", descs),
		dataset.NewRecord("01012100", 2020, "40", "IMP", "Peru", descs),
	})
	c := &countingCache{Memory: NewMemory(time.Minute, 10)}
	svc := NewService(engine.New(ds), c)
	ctx := context.Background()
	spec := filter.Normalize([]int{2020}, nil, 6, nil)

	first := svc.Dashboard(ctx, spec)
	second := svc.Dashboard(ctx, spec)

	if c.puts != 1 {
		t.Errorf("expected one computation, got %d puts", c.puts)
	}
	if !first.KPIs.Balance.Equal(d(60)) || !second.KPIs.Balance.Equal(first.KPIs.Balance) {
		t.Errorf("unexpected results %+v %+v", first.KPIs, second.KPIs)
	}
}

func TestService_NoCache(t *testing.T) {
	svc := NewService(engine.New(dataset.New(nil)), nil)
	res := svc.Dashboard(context.Background(), filter.Normalize(nil, nil, nil, nil))
	if !res.KPIs.Volume.IsZero() {
		t.Errorf("unexpected volume %s", res.KPIs.Volume)
	}
}
