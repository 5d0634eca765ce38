// Package tax computes annual capital-gains summaries from the transaction ledger.
package tax

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotax/internal/costbasis"
	"github.com/mtlprog/cryptotax/internal/domain"
	"github.com/mtlprog/cryptotax/internal/ledger"
	"github.com/mtlprog/cryptotax/internal/price"
	"github.com/mtlprog/cryptotax/internal/taxpolicy"
)

// DefaultLookbackYears is how many prior years are replayed to rebuild lot state.
const DefaultLookbackYears = 5

// PriceResolver resolves a transaction's unit price in the reporting currency.
type PriceResolver interface {
	Resolve(ctx context.Context, tx domain.Transaction) (decimal.Decimal, *domain.Warning)
}

var _ PriceResolver = (*price.Resolver)(nil)

// Result is a computed summary plus the records that were skipped or degraded.
type Result struct {
	Summary  domain.TaxSummary `json:"summary"`
	Warnings []domain.Warning  `json:"warnings"`
}

// Holding is the lot state of one asset at the end of a replay.
type Holding struct {
	Asset       string          `json:"asset"`
	Amount      decimal.Decimal `json:"amount"`
	AverageCost decimal.Decimal `json:"averageCost"`
	LotCount    int             `json:"lotCount"`
}

// Service computes tax summaries. It keeps no state between calls: every call
// builds its own costbasis.Ledger, so concurrent calls never share lots.
type Service struct {
	ledger        ledger.Repository
	prices        PriceResolver
	policy        taxpolicy.Policy
	lookbackYears int
}

// NewService creates a new tax Service. A non-positive lookbackYears disables
// the carry-forward replay.
func NewService(repo ledger.Repository, prices PriceResolver, policy taxpolicy.Policy, lookbackYears int) *Service {
	return &Service{
		ledger:        repo,
		prices:        prices,
		policy:        policy,
		lookbackYears: lookbackYears,
	}
}

// Compute builds the summary for year. Prior years inside the lookback window are
// replayed first, silently, so that lots carried into the year have their cost.
// A ledger read failure aborts the computation; bad records only add warnings.
func (s *Service) Compute(ctx context.Context, year int) (Result, error) {
	r := newRun(s.prices)

	if err := s.carryForward(ctx, r, year); err != nil {
		return Result{}, err
	}

	txs, err := s.ledger.QueryByDateRange(ctx, yearStart(year), yearStart(year+1))
	if err != nil {
		return Result{}, fmt.Errorf("loading %d transactions: %w", year, err)
	}

	summary := domain.TaxSummary{
		Year:                year,
		TotalGains:          decimal.Zero,
		TotalLosses:         decimal.Zero,
		TaxableTransactions: []domain.TaxableTransaction{},
	}

	for _, tx := range txs {
		out, ok := r.process(ctx, tx)
		if !ok {
			continue
		}
		summary.TransactionCount++

		if out.Taxable == nil {
			continue
		}
		gainLoss := *out.Taxable.GainLoss
		if gainLoss.IsPositive() {
			summary.TotalGains = summary.TotalGains.Add(gainLoss)
		} else if gainLoss.IsNegative() {
			summary.TotalLosses = summary.TotalLosses.Add(gainLoss.Abs())
		}
		summary.TaxableTransactions = append(summary.TaxableTransactions, *out.Taxable)
	}

	s.policy.Finalize(&summary)

	slog.Info("tax summary computed",
		"year", year,
		"transactions", summary.TransactionCount,
		"taxable", len(summary.TaxableTransactions),
		"warnings", len(r.warnings),
		"policy", costbasis.PolicyName)

	return Result{Summary: summary, Warnings: r.warnings}, nil
}

// Holdings replays the ledger through the end of year and reports what is held.
func (s *Service) Holdings(ctx context.Context, year int) ([]Holding, []domain.Warning, error) {
	r := newRun(s.prices)

	if err := s.carryForward(ctx, r, year); err != nil {
		return nil, nil, err
	}

	txs, err := s.ledger.QueryByDateRange(ctx, yearStart(year), yearStart(year+1))
	if err != nil {
		return nil, nil, fmt.Errorf("loading %d transactions: %w", year, err)
	}
	for _, tx := range txs {
		r.process(ctx, tx)
	}

	l := r.calc.Ledger()
	holdings := lo.Map(l.Assets(), func(asset string, _ int) Holding {
		return Holding{
			Asset:       asset,
			Amount:      l.Holdings(asset),
			AverageCost: l.AverageCost(asset),
			LotCount:    len(l.Lots(asset)),
		}
	})
	return holdings, r.warnings, nil
}

func (s *Service) carryForward(ctx context.Context, r *run, year int) error {
	if s.lookbackYears <= 0 {
		return nil
	}
	txs, err := s.ledger.QueryByDateRange(ctx, yearStart(year-s.lookbackYears), yearStart(year))
	if err != nil {
		return fmt.Errorf("loading carry-forward transactions for %d: %w", year, err)
	}
	for _, tx := range txs {
		r.process(ctx, tx)
	}
	return nil
}

func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// run is the state of a single computation.
type run struct {
	calc     *costbasis.Calculator
	prices   PriceResolver
	warnings []domain.Warning
}

func newRun(prices PriceResolver) *run {
	return &run{
		calc:     costbasis.NewCalculator(costbasis.NewLedger()),
		prices:   prices,
		warnings: []domain.Warning{},
	}
}

// process applies one transaction. It returns false when the record was skipped.
func (r *run) process(ctx context.Context, tx domain.Transaction) (costbasis.Outcome, bool) {
	if err := tx.Validate(); err != nil {
		r.warn(domain.WarningMalformed, tx, err.Error())
		return costbasis.Outcome{}, false
	}

	category, known := domain.Classify(string(tx.Type))
	if !known {
		r.warn(domain.WarningUnclassifiedType, tx, fmt.Sprintf("type %q treated as %s", tx.Type, category))
	}

	p, priceWarn := r.prices.Resolve(ctx, tx)
	if priceWarn != nil {
		r.warnings = append(r.warnings, *priceWarn)
		slog.Warn("price unavailable, using zero", "tx", tx.ID, "reason", priceWarn.Message)
	}

	out, err := r.calc.Apply(tx, category, p)
	if err != nil {
		kind := domain.WarningMalformed
		if errors.Is(err, costbasis.ErrUnknownCategory) {
			kind = domain.WarningUnclassifiedType
		}
		r.warn(kind, tx, err.Error())
		return costbasis.Outcome{}, false
	}

	// An unpriced disposal still depletes lots but realizes nothing.
	if priceWarn != nil && out.Taxable != nil {
		zero := decimal.Zero
		out.Taxable.GainLoss = &zero
	}

	if out.Shortfall.IsPositive() {
		r.warn(domain.WarningInsufficientLots, tx,
			fmt.Sprintf("disposed %s %s but only %s was held", tx.Amount, tx.AssetSymbol(), tx.Amount.Sub(out.Shortfall)))
	}
	return out, true
}

func (r *run) warn(kind domain.WarningKind, tx domain.Transaction, msg string) {
	slog.Warn("transaction warning", "kind", kind, "tx", tx.ID, "message", msg)
	r.warnings = append(r.warnings, domain.Warning{Kind: kind, TransactionID: tx.ID, Message: msg})
}
