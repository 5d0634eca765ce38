package price

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotax/internal/domain"
)

type mockOracle struct {
	rate  decimal.Decimal
	err   error
	calls int
	from  string
	to    string
	asOf  time.Time
}

func (m *mockOracle) Convert(_ context.Context, amount decimal.Decimal, from, to string, asOf time.Time) (decimal.Decimal, error) {
	m.calls++
	m.from, m.to, m.asOf = from, to, asOf
	if m.err != nil {
		return decimal.Zero, m.err
	}
	return amount.Mul(m.rate), nil
}

func ptr(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

var ts = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func TestResolveReportingPriceWins(t *testing.T) {
	oracle := &mockOracle{rate: decimal.NewFromInt(1300)}
	r := NewResolver("KRW", oracle)

	got, warn := r.Resolve(context.Background(), domain.Transaction{
		ID: "t1", Timestamp: ts, PriceReporting: ptr("90000000"), PriceSecondary: ptr("65000"), SecondaryCurrency: "USD",
	})
	if warn != nil {
		t.Fatalf("unexpected warning: %+v", warn)
	}
	if !got.Equal(decimal.NewFromInt(90_000_000)) {
		t.Errorf("price = %s, want 90000000", got)
	}
	if oracle.calls != 0 {
		t.Errorf("oracle called %d times, want 0", oracle.calls)
	}
}

func TestResolveSecondaryConverted(t *testing.T) {
	oracle := &mockOracle{rate: decimal.RequireFromString("1350.5")}
	r := NewResolver("krw", oracle)

	got, warn := r.Resolve(context.Background(), domain.Transaction{
		ID: "t1", Timestamp: ts, PriceSecondary: ptr("2"), SecondaryCurrency: "usd",
	})
	if warn != nil {
		t.Fatalf("unexpected warning: %+v", warn)
	}
	if !got.Equal(decimal.NewFromInt(2701)) {
		t.Errorf("price = %s, want 2701", got)
	}
	if oracle.from != "USD" || oracle.to != "KRW" || !oracle.asOf.Equal(ts) {
		t.Errorf("oracle called with %s->%s at %v", oracle.from, oracle.to, oracle.asOf)
	}
}

func TestResolveSecondaryInReportingCurrency(t *testing.T) {
	oracle := &mockOracle{}
	r := NewResolver("KRW", oracle)

	got, warn := r.Resolve(context.Background(), domain.Transaction{
		ID: "t1", PriceSecondary: ptr("5000"), SecondaryCurrency: "KRW",
	})
	if warn != nil || !got.Equal(decimal.NewFromInt(5000)) || oracle.calls != 0 {
		t.Errorf("got %s, warn %+v, calls %d; want 5000 without oracle", got, warn, oracle.calls)
	}
}

func TestResolveDegradesToZero(t *testing.T) {
	tests := []struct {
		name   string
		oracle Oracle
		tx     domain.Transaction
	}{
		{"no price at all", &mockOracle{}, domain.Transaction{ID: "t1"}},
		{"no currency", &mockOracle{}, domain.Transaction{ID: "t1", PriceSecondary: ptr("1")}},
		{"no oracle", nil, domain.Transaction{ID: "t1", PriceSecondary: ptr("1"), SecondaryCurrency: "USD"}},
		{"oracle error", &mockOracle{err: errors.New("rate limited")}, domain.Transaction{ID: "t1", PriceSecondary: ptr("1"), SecondaryCurrency: "USD"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver("KRW", tt.oracle)
			got, warn := r.Resolve(context.Background(), tt.tx)
			if !got.IsZero() {
				t.Errorf("price = %s, want 0", got)
			}
			if warn == nil || warn.Kind != domain.WarningPriceUnavailable || warn.TransactionID != "t1" {
				t.Errorf("warning = %+v, want price_unavailable for t1", warn)
			}
		})
	}
}
