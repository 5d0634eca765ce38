package external

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryRateRepository keeps rates for the lifetime of the process. It backs
// runs that have no database, such as computing from a CSV ledger.
type MemoryRateRepository struct {
	mu    sync.RWMutex
	rates map[string]Rate
}

// NewMemoryRateRepository creates an empty MemoryRateRepository.
func NewMemoryRateRepository() *MemoryRateRepository {
	return &MemoryRateRepository{rates: make(map[string]Rate)}
}

func (r *MemoryRateRepository) SaveRate(_ context.Context, base, quote string, day time.Time, value decimal.Decimal) error {
	day = truncateDay(day)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates[cacheKey(base, quote, day)] = Rate{Base: base, Quote: quote, Day: day, Value: value, UpdatedAt: time.Now()}
	return nil
}

func (r *MemoryRateRepository) GetRate(_ context.Context, base, quote string, day time.Time) (Rate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rate, ok := r.rates[cacheKey(base, quote, truncateDay(day))]
	if !ok {
		return Rate{}, ErrNotFound
	}
	return rate, nil
}
