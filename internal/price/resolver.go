package price

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotax/internal/domain"
)

// Oracle converts an amount between currencies as of a point in time.
type Oracle interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOf time.Time) (decimal.Decimal, error)
}

// Resolver determines the unit price of a transaction in the reporting currency.
type Resolver struct {
	reportingCurrency string
	oracle            Oracle
}

// NewResolver creates a Resolver. oracle may be nil, in which case secondary
// currency prices cannot be converted and resolve to zero.
func NewResolver(reportingCurrency string, oracle Oracle) *Resolver {
	return &Resolver{
		reportingCurrency: strings.ToUpper(reportingCurrency),
		oracle:            oracle,
	}
}

// Resolve returns the unit price of tx in the reporting currency. Missing price
// data never fails: the price degrades to zero and a warning is returned.
func (r *Resolver) Resolve(ctx context.Context, tx domain.Transaction) (decimal.Decimal, *domain.Warning) {
	if tx.PriceReporting != nil {
		return *tx.PriceReporting, nil
	}

	if tx.PriceSecondary == nil {
		return decimal.Zero, r.unavailable(tx, "no price recorded")
	}

	from := strings.ToUpper(strings.TrimSpace(tx.SecondaryCurrency))
	switch {
	case from == "":
		return decimal.Zero, r.unavailable(tx, "secondary price without currency")
	case from == r.reportingCurrency:
		return *tx.PriceSecondary, nil
	case r.oracle == nil:
		return decimal.Zero, r.unavailable(tx, fmt.Sprintf("no oracle to convert %s", from))
	}

	converted, err := r.oracle.Convert(ctx, *tx.PriceSecondary, from, r.reportingCurrency, tx.Timestamp)
	if err != nil {
		return decimal.Zero, r.unavailable(tx, fmt.Sprintf("converting %s to %s: %v", from, r.reportingCurrency, err))
	}
	return converted, nil
}

func (r *Resolver) unavailable(tx domain.Transaction, msg string) *domain.Warning {
	return &domain.Warning{
		Kind:          domain.WarningPriceUnavailable,
		TransactionID: tx.ID,
		Message:       msg,
	}
}
