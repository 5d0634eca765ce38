package costbasis

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotax/internal/domain"
)

// ErrUnknownCategory is returned for a category the calculator has no rule for.
var ErrUnknownCategory = errors.New("unknown transaction category")

// PassthroughHandler applies a PASSTHROUGH transaction (swaps, unrecognized types)
// to the ledger. Swaps are not modelled as a disposal of one asset plus an
// acquisition of another yet; a handler doing that can be plugged in here.
type PassthroughHandler func(l *Ledger, tx domain.Transaction, price decimal.Decimal) error

// AcquirePassthrough treats a passthrough transaction exactly like an acquisition.
func AcquirePassthrough(l *Ledger, tx domain.Transaction, price decimal.Decimal) error {
	return l.AddLot(tx.AssetSymbol(), tx.Amount, price, tx.Timestamp, tx.Source())
}

// Outcome is the effect of one transaction.
type Outcome struct {
	Category domain.Category
	// Taxable is set only for taxable disposals.
	Taxable *domain.TaxableTransaction
	// Shortfall is the disposed amount that no lot covered.
	Shortfall decimal.Decimal
}

// Calculator applies classified transactions to a Ledger and values disposals.
type Calculator struct {
	ledger      *Ledger
	passthrough PassthroughHandler
}

// NewCalculator creates a Calculator over ledger. An optional PassthroughHandler
// replaces the default AcquirePassthrough.
func NewCalculator(ledger *Ledger, passthrough ...PassthroughHandler) *Calculator {
	handler := PassthroughHandler(AcquirePassthrough)
	if len(passthrough) > 0 && passthrough[0] != nil {
		handler = passthrough[0]
	}
	return &Calculator{ledger: ledger, passthrough: handler}
}

// Ledger returns the ledger the calculator mutates.
func (c *Calculator) Ledger() *Ledger {
	return c.ledger
}

// Apply applies tx, classified as category and valued at unit price p in the
// reporting currency.
func (c *Calculator) Apply(tx domain.Transaction, category domain.Category, p decimal.Decimal) (Outcome, error) {
	out := Outcome{Category: category, Shortfall: decimal.Zero}
	asset := tx.AssetSymbol()

	switch category {
	case domain.CategoryAcquire:
		if err := c.ledger.AddLot(asset, tx.Amount, p, tx.Timestamp, tx.Source()); err != nil {
			return Outcome{}, fmt.Errorf("acquiring %s: %w", tx.ID, err)
		}

	case domain.CategoryDispose:
		totalValue := tx.Amount.Mul(p)
		// Average must be read before the lots are depleted.
		avgCost := c.ledger.AverageCost(asset)
		costBasis := avgCost.Mul(tx.Amount)
		gainLoss := totalValue.Sub(costBasis).Sub(tx.Fee.Mul(p))

		out.Shortfall = c.ledger.Consume(asset, tx.Amount)
		out.Taxable = &domain.TaxableTransaction{
			Transaction:      tx,
			UnitPrice:        p,
			TotalValue:       totalValue,
			GainLoss:         &gainLoss,
			CostBasisMatched: &costBasis,
		}

	case domain.CategoryDisposeNonTaxable:
		out.Shortfall = c.ledger.Consume(asset, tx.Amount)

	case domain.CategoryPassthrough:
		if err := c.passthrough(c.ledger, tx, p); err != nil {
			return Outcome{}, fmt.Errorf("passing through %s: %w", tx.ID, err)
		}

	default:
		return Outcome{}, fmt.Errorf("applying %s: %w: %s", tx.ID, ErrUnknownCategory, category)
	}

	return out, nil
}
