package domain

import "github.com/shopspring/decimal"

// TaxableTransaction is a transaction decorated with its valuation.
// GainLoss and CostBasisMatched are set only for disposals.
type TaxableTransaction struct {
	Transaction
	UnitPrice        decimal.Decimal  `json:"unitPrice"`
	TotalValue       decimal.Decimal  `json:"totalValue"`
	GainLoss         *decimal.Decimal `json:"gainLoss,omitempty"`
	CostBasisMatched *decimal.Decimal `json:"costBasisMatched,omitempty"`
}

// TaxSummary is the result of one annual computation. Decimal fields marshal as
// JSON strings, so a stored summary re-hydrates without precision loss.
type TaxSummary struct {
	Year                int                  `json:"year"`
	TotalGains          decimal.Decimal      `json:"totalGains"`
	TotalLosses         decimal.Decimal      `json:"totalLosses"`
	NetGains            decimal.Decimal      `json:"netGains"`
	Deduction           decimal.Decimal      `json:"deduction"`
	TaxableGains        decimal.Decimal      `json:"taxableGains"`
	EstimatedTax        decimal.Decimal      `json:"estimatedTax"`
	TransactionCount    int                  `json:"transactionCount"`
	TaxableTransactions []TaxableTransaction `json:"taxableTransactions"`
}

// WarningKind classifies a non-fatal problem met during a computation.
type WarningKind string

const (
	WarningMalformed        WarningKind = "malformed"
	WarningUnclassifiedType WarningKind = "unclassified_type"
	WarningInsufficientLots WarningKind = "insufficient_lots"
	WarningPriceUnavailable WarningKind = "price_unavailable"
)

// Warning describes a record that was skipped or processed in degraded form.
type Warning struct {
	Kind          WarningKind `json:"kind"`
	TransactionID string      `json:"transactionId"`
	Message       string      `json:"message"`
}
