package tax

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotax/internal/domain"
	"github.com/mtlprog/cryptotax/internal/ledger"
	"github.com/mtlprog/cryptotax/internal/price"
	"github.com/mtlprog/cryptotax/internal/taxpolicy"
)

type failingRepo struct {
	calls  int
	failOn int
}

func (m *failingRepo) QueryByDateRange(_ context.Context, _, _ time.Time) ([]domain.Transaction, error) {
	m.calls++
	if m.calls == m.failOn {
		return nil, errors.New("connection reset")
	}
	return nil, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func trade(id string, when time.Time, typ domain.TxType, asset, amount, unitPrice string) domain.Transaction {
	return domain.Transaction{
		ID:             id,
		Timestamp:      when,
		Type:           typ,
		Asset:          asset,
		Amount:         d(amount),
		PriceReporting: ptr(unitPrice),
		Fee:            decimal.Zero,
		ExchangeID:     "upbit",
	}
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 9, 0, 0, 0, time.UTC)
}

func newService(txs ...domain.Transaction) *Service {
	return NewService(ledger.NewMemoryRepository(txs...), price.NewResolver("KRW", nil), taxpolicy.Default, DefaultLookbackYears)
}

func TestComputeAverageCostSale(t *testing.T) {
	svc := newService(
		trade("b1", day(2024, 1, 1), domain.TxBuy, "BTC", "1.0", "100"),
		trade("b2", day(2024, 2, 1), domain.TxBuy, "BTC", "1.0", "200"),
		trade("s1", day(2024, 3, 1), domain.TxSell, "BTC", "1.0", "300"),
	)

	res, err := svc.Compute(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := res.Summary
	if !s.TotalGains.Equal(d("150")) || !s.TotalLosses.IsZero() || !s.NetGains.Equal(d("150")) {
		t.Errorf("gains/losses/net = %s/%s/%s, want 150/0/150", s.TotalGains, s.TotalLosses, s.NetGains)
	}
	if s.TransactionCount != 3 {
		t.Errorf("TransactionCount = %d, want 3", s.TransactionCount)
	}
	if len(s.TaxableTransactions) != 1 || s.TaxableTransactions[0].ID != "s1" {
		t.Fatalf("TaxableTransactions = %+v, want only s1", s.TaxableTransactions)
	}
	if !s.TaxableGains.IsZero() {
		t.Errorf("TaxableGains = %s, want 0 under deduction", s.TaxableGains)
	}

	holdings, _, err := svc.Holdings(context.Background(), 2024)
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if len(holdings) != 1 || !holdings[0].Amount.Equal(d("1")) || !holdings[0].AverageCost.Equal(d("200")) {
		t.Errorf("holdings = %+v, want 1 BTC @ 200", holdings)
	}
}

func TestComputeCarryForward(t *testing.T) {
	svc := newService(
		trade("b1", day(2022, 5, 1), domain.TxBuy, "ETH", "2", "1000000"),
		trade("s0", day(2023, 5, 1), domain.TxSell, "ETH", "1", "5000000"),
		trade("s1", day(2024, 5, 1), domain.TxSell, "ETH", "1", "3000000"),
	)

	res, err := svc.Compute(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := res.Summary
	// 2023 gain is not part of 2024; the 2024 sale uses the 2022 cost.
	if !s.TotalGains.Equal(d("2000000")) {
		t.Errorf("TotalGains = %s, want 2000000", s.TotalGains)
	}
	if s.TransactionCount != 1 {
		t.Errorf("TransactionCount = %d, want 1", s.TransactionCount)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %+v, want none", res.Warnings)
	}
}

func TestComputeLookbackBound(t *testing.T) {
	svc := newService(
		trade("old", day(2018, 6, 1), domain.TxBuy, "BTC", "1", "1000"),
		trade("s1", day(2024, 6, 1), domain.TxSell, "BTC", "1", "5000"),
	)

	res, err := svc.Compute(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 2018 is outside [2019, 2024), so the sale has no cost basis.
	if got := *res.Summary.TaxableTransactions[0].CostBasisMatched; !got.IsZero() {
		t.Errorf("CostBasisMatched = %s, want 0", got)
	}
	if !res.Summary.TotalGains.Equal(d("5000")) {
		t.Errorf("TotalGains = %s, want 5000", res.Summary.TotalGains)
	}
}

func TestComputeSellWithoutLots(t *testing.T) {
	svc := newService(trade("s1", day(2024, 2, 1), domain.TxSell, "XRP", "100", "700"))

	res, err := svc.Compute(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Summary.TotalGains.Equal(d("70000")) {
		t.Errorf("TotalGains = %s, want 70000", res.Summary.TotalGains)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != domain.WarningInsufficientLots {
		t.Errorf("warnings = %+v, want one insufficient_lots", res.Warnings)
	}
}

func TestComputeLossesAccumulateAsAbsolute(t *testing.T) {
	svc := newService(
		trade("b1", day(2024, 1, 1), domain.TxBuy, "SOL", "10", "200000"),
		trade("s1", day(2024, 2, 1), domain.TxSell, "SOL", "5", "100000"),
		trade("s2", day(2024, 3, 1), domain.TxSell, "SOL", "5", "300000"),
	)

	res, err := svc.Compute(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := res.Summary
	if !s.TotalLosses.Equal(d("500000")) || !s.TotalGains.Equal(d("500000")) || !s.NetGains.IsZero() {
		t.Errorf("gains/losses/net = %s/%s/%s, want 500000/500000/0", s.TotalGains, s.TotalLosses, s.NetGains)
	}
}

func TestComputeDeductionBoundary(t *testing.T) {
	for _, tt := range []struct {
		year        int
		wantTaxable string
		wantTax     string
	}{
		{2024, "500000", "110000"},
		{2025, "0", "0"},
	} {
		svc := newService(
			trade("b1", day(tt.year, 1, 10), domain.TxBuy, "BTC", "1", "1000000"),
			trade("s1", day(tt.year, 6, 10), domain.TxSell, "BTC", "1", "4000000"),
		)
		res, err := svc.Compute(context.Background(), tt.year)
		if err != nil {
			t.Fatalf("%d: unexpected error: %v", tt.year, err)
		}
		s := res.Summary
		if !s.NetGains.Equal(d("3000000")) {
			t.Errorf("%d: NetGains = %s, want 3000000", tt.year, s.NetGains)
		}
		if !s.TaxableGains.Equal(d(tt.wantTaxable)) || !s.EstimatedTax.Equal(d(tt.wantTax)) {
			t.Errorf("%d: taxable/tax = %s/%s, want %s/%s", tt.year, s.TaxableGains, s.EstimatedTax, tt.wantTaxable, tt.wantTax)
		}
	}
}

func TestComputeSkipsMalformed(t *testing.T) {
	bad := trade("bad", day(2024, 1, 2), domain.TxBuy, "BTC", "-1", "100")
	noAsset := trade("noasset", day(2024, 1, 3), domain.TxBuy, "", "1", "100")
	svc := newService(
		trade("b1", day(2024, 1, 1), domain.TxBuy, "BTC", "1", "100"),
		bad,
		noAsset,
		trade("s1", day(2024, 2, 1), domain.TxSell, "BTC", "1", "150"),
	)

	res, err := svc.Compute(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary.TransactionCount != 2 {
		t.Errorf("TransactionCount = %d, want 2", res.Summary.TransactionCount)
	}
	if !res.Summary.TotalGains.Equal(d("50")) {
		t.Errorf("TotalGains = %s, want 50", res.Summary.TotalGains)
	}
	malformed := 0
	for _, w := range res.Warnings {
		if w.Kind == domain.WarningMalformed {
			malformed++
		}
	}
	if malformed != 2 {
		t.Errorf("malformed warnings = %d, want 2 (%+v)", malformed, res.Warnings)
	}
}

func TestComputeMissingPriceDegrades(t *testing.T) {
	noPrice := trade("r1", day(2024, 1, 5), domain.TxAirdrop, "ARB", "100", "0")
	noPrice.PriceReporting = nil
	svc := newService(
		noPrice,
		trade("s1", day(2024, 2, 1), domain.TxSell, "ARB", "50", "1000"),
	)

	res, err := svc.Compute(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary.TransactionCount != 2 {
		t.Errorf("TransactionCount = %d, want 2", res.Summary.TransactionCount)
	}
	if !res.Summary.TotalGains.Equal(d("50000")) {
		t.Errorf("TotalGains = %s, want 50000", res.Summary.TotalGains)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != domain.WarningPriceUnavailable {
		t.Errorf("warnings = %+v, want one price_unavailable", res.Warnings)
	}
}

func TestComputeUnclassifiedTypeWarns(t *testing.T) {
	svc := newService(trade("x1", day(2024, 1, 5), "bridge_in", "ETH", "1", "10"))

	res, err := svc.Compute(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary.TransactionCount != 1 {
		t.Errorf("TransactionCount = %d, want 1", res.Summary.TransactionCount)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != domain.WarningUnclassifiedType {
		t.Errorf("warnings = %+v, want one unclassified_type", res.Warnings)
	}
}

func TestComputeLedgerFailure(t *testing.T) {
	for _, failOn := range []int{1, 2} {
		repo := &failingRepo{failOn: failOn}
		svc := NewService(repo, price.NewResolver("KRW", nil), taxpolicy.Default, DefaultLookbackYears)

		res, err := svc.Compute(context.Background(), 2024)
		if err == nil {
			t.Fatalf("failOn %d: expected error", failOn)
		}
		if !reflect.DeepEqual(res, Result{}) {
			t.Errorf("failOn %d: partial result returned: %+v", failOn, res)
		}
	}
}

func TestComputeIdempotent(t *testing.T) {
	svc := newService(
		trade("b1", day(2023, 1, 1), domain.TxBuy, "BTC", "0.3", "41000000"),
		trade("b2", day(2024, 1, 1), domain.TxBuy, "BTC", "0.2", "55000000"),
		trade("o1", day(2024, 2, 1), domain.TxTransferOut, "BTC", "0.1", "60000000"),
		trade("s1", day(2024, 3, 1), domain.TxSell, "BTC", "0.25", "90000000"),
	)

	first, err := svc.Compute(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Compute(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Summary.NetGains.Equal(second.Summary.NetGains) ||
		!first.Summary.EstimatedTax.Equal(second.Summary.EstimatedTax) ||
		first.Summary.TransactionCount != second.Summary.TransactionCount {
		t.Errorf("results differ: %+v vs %+v", first.Summary, second.Summary)
	}
	// transfer_out depletes the 2023 lot to 0.2, so avg = (0.2*41e6 + 0.2*55e6)/0.4 = 48e6
	if !first.Summary.TotalGains.Equal(d("10500000")) {
		t.Errorf("TotalGains = %s, want 10500000", first.Summary.TotalGains)
	}
}

func TestComputeWithoutLookback(t *testing.T) {
	repo := ledger.NewMemoryRepository(
		trade("b1", day(2023, 1, 1), domain.TxBuy, "BTC", "1", "100"),
		trade("s1", day(2024, 1, 1), domain.TxSell, "BTC", "1", "100"),
	)
	svc := NewService(repo, price.NewResolver("KRW", nil), taxpolicy.Default, 0)

	res, err := svc.Compute(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Summary.TotalGains.Equal(d("100")) {
		t.Errorf("TotalGains = %s, want 100 without carry-forward", res.Summary.TotalGains)
	}
}

func TestHoldingsAcrossYears(t *testing.T) {
	svc := newService(
		trade("b1", day(2023, 1, 10), domain.TxBuy, "btc", "1", "100"),
		trade("b2", day(2024, 1, 10), domain.TxBuy, "BTC", "3", "300"),
		trade("e1", day(2024, 2, 1), domain.TxReward, "ETH", "5", "10"),
		trade("o1", day(2024, 3, 1), domain.TxTransferOut, "BTC", "2", "0"),
		trade("b3", day(2025, 1, 10), domain.TxBuy, "BTC", "10", "999"),
	)

	holdings, warnings, err := svc.Holdings(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %+v, want none", warnings)
	}
	if len(holdings) != 2 {
		t.Fatalf("holdings = %+v, want BTC and ETH", holdings)
	}

	// Transfer-out consumed the whole 2023 lot and one unit of the 2024 lot.
	btc := holdings[0]
	if btc.Asset != "BTC" || !btc.Amount.Equal(d("2")) || !btc.AverageCost.Equal(d("300")) || btc.LotCount != 1 {
		t.Errorf("BTC holding = %+v, want 2 @ 300 in 1 lot", btc)
	}
	eth := holdings[1]
	if eth.Asset != "ETH" || !eth.Amount.Equal(d("5")) || !eth.AverageCost.Equal(d("10")) {
		t.Errorf("ETH holding = %+v, want 5 @ 10", eth)
	}
}

func TestHoldingsLedgerFailure(t *testing.T) {
	svc := NewService(&failingRepo{failOn: 2}, price.NewResolver("KRW", nil), taxpolicy.Default, DefaultLookbackYears)

	if _, _, err := svc.Holdings(context.Background(), 2024); err == nil {
		t.Fatal("expected error when the target-year read fails")
	}
}

func TestComputeUnpricedSaleRealizesNothing(t *testing.T) {
	unpriced := trade("s1", day(2024, 6, 1), domain.TxSell, "BTC", "1", "0")
	unpriced.PriceReporting = nil
	svc := newService(
		trade("b1", day(2024, 1, 1), domain.TxBuy, "BTC", "1", "50000000"),
		unpriced,
	)

	res, err := svc.Compute(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := res.Summary
	if !s.TotalGains.IsZero() || !s.TotalLosses.IsZero() || !s.NetGains.IsZero() || !s.EstimatedTax.IsZero() {
		t.Errorf("gains/losses/net/tax = %s/%s/%s/%s, want all 0",
			s.TotalGains, s.TotalLosses, s.NetGains, s.EstimatedTax)
	}
	if len(s.TaxableTransactions) != 1 {
		t.Fatalf("TaxableTransactions = %d, want 1", len(s.TaxableTransactions))
	}
	if gl := s.TaxableTransactions[0].GainLoss; gl == nil || !gl.IsZero() {
		t.Errorf("GainLoss = %v, want 0", gl)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != domain.WarningPriceUnavailable {
		t.Errorf("warnings = %+v, want one price_unavailable", res.Warnings)
	}

	holdings, _, err := svc.Holdings(context.Background(), 2024)
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if len(holdings) != 0 {
		t.Errorf("holdings = %+v, want the lot depleted", holdings)
	}
}
