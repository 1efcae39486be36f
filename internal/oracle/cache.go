package oracle

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/discochess/hindsight/internal/fen"
	"github.com/discochess/hindsight/internal/stats"
)

type cacheKey struct {
	fen    string
	budget Budget
}

// Cache memoizes evaluations of another Oracle. Positions are keyed by
// their normalized FEN, so move counters do not split entries, and by
// budget, so a shallow score never answers a deeper request.
// Failed evaluations are not cached.
type Cache struct {
	next  Oracle
	lru   *lru.Cache[cacheKey, Evaluation]
	stats stats.Collector
}

// Compile-time check that Cache implements Oracle.
var _ Oracle = (*Cache)(nil)

// NewCache wraps next with an LRU cache holding up to size evaluations.
func NewCache(next Oracle, size int, c stats.Collector) (*Cache, error) {
	l, err := lru.New[cacheKey, Evaluation](size)
	if err != nil {
		return nil, fmt.Errorf("creating evaluation cache: %w", err)
	}
	if c == nil {
		c = stats.NewNoop()
	}
	return &Cache{next: next, lru: l, stats: c}, nil
}

// Evaluate returns a cached evaluation or asks the wrapped Oracle.
func (c *Cache) Evaluate(ctx context.Context, fenStr string, b Budget) (Evaluation, error) {
	normalized, err := fen.Normalize(fenStr)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluating %q: %w", fenStr, err)
	}
	key := cacheKey{fen: normalized, budget: b}
	if e, ok := c.lru.Get(key); ok {
		c.stats.IncCounter(stats.MetricCacheHits, 1)
		return e, nil
	}
	c.stats.IncCounter(stats.MetricCacheMisses, 1)

	e, err := c.next.Evaluate(ctx, fenStr, b)
	if err != nil {
		return Evaluation{}, err
	}
	c.lru.Add(key, e)
	c.stats.SetGauge(stats.MetricCacheSize, int64(c.lru.Len()))
	return e, nil
}

// Len returns the number of cached evaluations.
func (c *Cache) Len() int { return c.lru.Len() }
