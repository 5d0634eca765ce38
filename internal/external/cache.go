package external

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const cacheTTL = 1 * time.Hour

type cacheEntry struct {
	rate      decimal.Decimal
	expiresAt time.Time
}

type rateCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newRateCache() *rateCache {
	return &rateCache{
		entries: make(map[string]cacheEntry),
	}
}

// cacheKey formats: "{base}=>{quote}:{YYYY-MM-DD}" e.g. "USD=>KRW:2024-03-01"
func cacheKey(base, quote string, day time.Time) string {
	return fmt.Sprintf("%s=>%s:%s", base, quote, day.Format("2006-01-02"))
}

func (c *rateCache) get(key string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return decimal.Zero, false
	}
	return entry.rate, true
}

func (c *rateCache) set(key string, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		rate:      rate,
		expiresAt: time.Now().Add(cacheTTL),
	}
}
