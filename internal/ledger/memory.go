package ledger

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mtlprog/cryptotax/internal/domain"
)

// MemoryRepository is an in-memory Repository and Writer.
// Transactions with equal timestamps keep their insertion order.
type MemoryRepository struct {
	mu  sync.RWMutex
	txs []domain.Transaction
	ids map[string]bool
}

// NewMemoryRepository creates a repository seeded with txs.
func NewMemoryRepository(txs ...domain.Transaction) *MemoryRepository {
	r := &MemoryRepository{ids: make(map[string]bool)}
	_, _ = r.Insert(context.Background(), txs)
	return r
}

func (r *MemoryRepository) QueryByDateRange(_ context.Context, start, end time.Time) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := lo.Filter(r.txs, func(tx domain.Transaction, _ int) bool {
		return !tx.Timestamp.Before(start) && tx.Timestamp.Before(end)
	})
	slices.SortStableFunc(result, func(a, b domain.Transaction) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return result, nil
}

func (r *MemoryRepository) Insert(_ context.Context, txs []domain.Transaction) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, tx := range txs {
		if tx.ID != "" && r.ids[tx.ID] {
			continue
		}
		if tx.ID != "" {
			r.ids[tx.ID] = true
		}
		r.txs = append(r.txs, tx)
		inserted++
	}
	return inserted, nil
}
