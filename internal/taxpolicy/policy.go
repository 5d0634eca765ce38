// Package taxpolicy holds the jurisdiction deduction and rate schedule.
package taxpolicy

import (
	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotax/internal/domain"
)

// Policy is a deduction schedule split at a boundary year plus a flat rate.
type Policy struct {
	// BoundaryYear is the first year DeductionFrom applies.
	BoundaryYear    int
	DeductionBefore decimal.Decimal
	DeductionFrom   decimal.Decimal
	Rate            decimal.Decimal
}

// Default is the KRW schedule: 2,500,000 basic deduction, raised to 50,000,000
// from 2025, taxed at 22% (20% national + 2% local).
var Default = Policy{
	BoundaryYear:    2025,
	DeductionBefore: decimal.NewFromInt(2_500_000),
	DeductionFrom:   decimal.NewFromInt(50_000_000),
	Rate:            decimal.RequireFromString("0.22"),
}

// DeductionFor returns the deduction for a tax year.
func (p Policy) DeductionFor(year int) decimal.Decimal {
	if year >= p.BoundaryYear {
		return p.DeductionFrom
	}
	return p.DeductionBefore
}

// Finalize derives the net, deduction, taxable and tax fields of s from its totals.
func (p Policy) Finalize(s *domain.TaxSummary) {
	s.NetGains = s.TotalGains.Sub(s.TotalLosses)
	s.Deduction = p.DeductionFor(s.Year)
	s.TaxableGains = domain.NonNegative(s.NetGains.Sub(s.Deduction))
	s.EstimatedTax = s.TaxableGains.Mul(p.Rate)
}
