package query

import (
	"strings"
	"sync"

	"github.com/nicolovejoy/housing-data-v1/internal/models"
)

// pivotCache memoizes pivot rows per request until the next load commits.
// A cached answer is exactly what the store returned for the same request,
// so lookups and live queries stay indistinguishable.
type pivotCache struct {
	mu   sync.RWMutex
	rows map[string][]models.AggregateRow
}

func newPivotCache() *pivotCache {
	return &pivotCache{rows: make(map[string][]models.AggregateRow)}
}

func cacheKey(groupBy []string, f models.Filter) string {
	return strings.Join(groupBy, ",") + "|" + f.StateCode + "|" + string(f.Kind) + "|" + strings.ToLower(f.NameContains)
}

func (c *pivotCache) get(groupBy []string, f models.Filter) ([]models.AggregateRow, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows, ok := c.rows[cacheKey(groupBy, f)]
	return rows, ok
}

func (c *pivotCache) put(groupBy []string, f models.Filter, rows []models.AggregateRow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[cacheKey(groupBy, f)] = rows
}

func (c *pivotCache) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = make(map[string][]models.AggregateRow)
}
