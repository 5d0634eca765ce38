// Package costbasis tracks acquisition lots per asset and values disposals
// under the MovingAverageFIFODepletion policy.
//
// MovingAverageFIFODepletion: a disposal is valued at the amount-weighted average
// unit cost of every lot currently held, while the lots themselves are depleted
// oldest-inserted first. Valuation and depletion are independent, so a partially
// consumed lot keeps its original unit cost and shifts the average afterwards.
package costbasis

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotax/internal/domain"
)

// PolicyName identifies the valuation/depletion hybrid implemented here.
const PolicyName = "MovingAverageFIFODepletion"

var (
	// ErrNonPositiveAmount is returned when a lot would be created with amount <= 0.
	ErrNonPositiveAmount = errors.New("lot amount must be positive")
	// ErrNegativeCost is returned when a lot would be created with a negative unit cost.
	ErrNegativeCost = errors.New("lot unit cost must not be negative")
)

// Lot is a single acquisition still (partly) held.
type Lot struct {
	ID         string          `json:"id"`
	Asset      string          `json:"asset"`
	Amount     decimal.Decimal `json:"amount"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	AcquiredAt time.Time       `json:"acquiredAt"`
	Source     string          `json:"source"`
}

// Ledger holds lots per asset in insertion order.
// A Ledger belongs to one computation run and is not safe for concurrent use.
type Ledger struct {
	lots map[string][]Lot
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{lots: make(map[string][]Lot)}
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// AddLot appends a lot to the asset's sequence.
func (l *Ledger) AddLot(asset string, amount, unitCost decimal.Decimal, acquiredAt time.Time, source string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("adding %s lot of %s: %w", asset, amount, ErrNonPositiveAmount)
	}
	if unitCost.IsNegative() {
		return fmt.Errorf("adding %s lot at %s: %w", asset, unitCost, ErrNegativeCost)
	}

	key := normalizeAsset(asset)
	l.lots[key] = append(l.lots[key], Lot{
		ID:         uuid.NewString(),
		Asset:      key,
		Amount:     amount,
		UnitCost:   unitCost,
		AcquiredAt: acquiredAt,
		Source:     source,
	})
	return nil
}

// AverageCost returns the amount-weighted mean unit cost over all lots held for the
// asset, or zero when none are held.
func (l *Ledger) AverageCost(asset string) decimal.Decimal {
	lots := l.lots[normalizeAsset(asset)]
	totalCost := lo.Reduce(lots, func(acc decimal.Decimal, lot Lot, _ int) decimal.Decimal {
		return acc.Add(lot.Amount.Mul(lot.UnitCost))
	}, decimal.Zero)
	return domain.SafeDiv(totalCost, sumAmounts(lots))
}

// Consume depletes lots oldest-inserted first until amount is covered and returns
// the part that could not be covered. A non-zero shortfall is tolerated: upstream
// ledgers may miss transfers, so the disposal is treated as satisfied.
func (l *Ledger) Consume(asset string, amount decimal.Decimal) (shortfall decimal.Decimal) {
	if !amount.IsPositive() {
		return decimal.Zero
	}

	key := normalizeAsset(asset)
	lots := l.lots[key]
	remaining := amount

	for len(lots) > 0 && remaining.IsPositive() {
		head := &lots[0]
		if head.Amount.GreaterThan(remaining) {
			head.Amount = head.Amount.Sub(remaining)
			remaining = decimal.Zero
			break
		}
		remaining = remaining.Sub(head.Amount)
		lots = lots[1:]
	}

	if len(lots) == 0 {
		delete(l.lots, key)
	} else {
		l.lots[key] = lots
	}
	return remaining
}

// Holdings returns the total amount held for the asset.
func (l *Ledger) Holdings(asset string) decimal.Decimal {
	return sumAmounts(l.lots[normalizeAsset(asset)])
}

// Lots returns a copy of the asset's lots, oldest first.
func (l *Ledger) Lots(asset string) []Lot {
	lots := l.lots[normalizeAsset(asset)]
	out := make([]Lot, len(lots))
	copy(out, lots)
	return out
}

// Assets returns the symbols with at least one lot, sorted.
func (l *Ledger) Assets() []string {
	keys := lo.Keys(l.lots)
	slices.Sort(keys)
	return keys
}

func sumAmounts(lots []Lot) decimal.Decimal {
	return lo.Reduce(lots, func(acc decimal.Decimal, lot Lot, _ int) decimal.Decimal {
		return acc.Add(lot.Amount)
	}, decimal.Zero)
}
