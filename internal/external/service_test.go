package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type mockRateRepo struct {
	rates  map[string]Rate
	getErr error
	saves  int
}

func newMockRateRepo() *mockRateRepo {
	return &mockRateRepo{rates: make(map[string]Rate)}
}

func (m *mockRateRepo) SaveRate(_ context.Context, base, quote string, day time.Time, value decimal.Decimal) error {
	m.saves++
	m.rates[cacheKey(base, quote, day)] = Rate{Base: base, Quote: quote, Day: day, Value: value, UpdatedAt: time.Now()}
	return nil
}

func (m *mockRateRepo) GetRate(_ context.Context, base, quote string, day time.Time) (Rate, error) {
	if m.getErr != nil {
		return Rate{}, m.getErr
	}
	r, ok := m.rates[cacheKey(base, quote, day)]
	if !ok {
		return Rate{}, ErrNotFound
	}
	return r, nil
}

var march7 = time.Date(2024, 3, 7, 18, 45, 0, 0, time.UTC)

func TestConvertUsesStoredRate(t *testing.T) {
	repo := newMockRateRepo()
	repo.rates[cacheKey("USD", "KRW", truncateDay(march7))] = Rate{Value: decimal.NewFromInt(1300)}
	svc := NewService(nil, repo, "KRW", []string{"USD"})

	got, err := svc.Convert(context.Background(), decimal.RequireFromString("2.5"), "usd", "krw", march7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(3250)) {
		t.Errorf("Convert = %s, want 3250", got)
	}
}

func TestConvertSameCurrency(t *testing.T) {
	svc := NewService(nil, newMockRateRepo(), "KRW", nil)
	got, err := svc.Convert(context.Background(), decimal.NewFromInt(42), "KRW", "KRW", march7)
	if err != nil || !got.Equal(decimal.NewFromInt(42)) {
		t.Errorf("Convert = %s, %v; want 42", got, err)
	}
}

func TestConvertFetchesAndCaches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"market_data":{"current_price":{"krw":1310.5}}}`))
	}))
	defer server.Close()

	repo := newMockRateRepo()
	svc := NewService(NewCoinGeckoClient(server.URL, 0, 0), repo, "KRW", []string{"USD"})

	for range 3 {
		got, err := svc.Convert(context.Background(), decimal.NewFromInt(2), "USD", "KRW", march7)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(decimal.NewFromInt(2621)) {
			t.Errorf("Convert = %s, want 2621", got)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("CoinGecko calls = %d, want 1", calls.Load())
	}
	if repo.saves != 1 {
		t.Errorf("saves = %d, want 1", repo.saves)
	}
}

func TestConvertNoRateWithoutClient(t *testing.T) {
	svc := NewService(nil, newMockRateRepo(), "KRW", nil)
	_, err := svc.Convert(context.Background(), decimal.NewFromInt(1), "USD", "KRW", march7)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestConvertRepoError(t *testing.T) {
	repo := newMockRateRepo()
	repo.getErr = errors.New("db down")
	svc := NewService(nil, repo, "KRW", nil)

	if _, err := svc.Convert(context.Background(), decimal.NewFromInt(1), "USD", "KRW", march7); err == nil {
		t.Fatal("expected error from repository")
	}
}

func TestFetchAndStoreRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tether":{"krw":1350}}`))
	}))
	defer server.Close()

	repo := newMockRateRepo()
	svc := NewService(NewCoinGeckoClient(server.URL, 0, 0), repo, "KRW", []string{"USD"})

	n, err := svc.FetchAndStoreRates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("stored count = %d, want 1", n)
	}
	stored, ok := repo.rates[cacheKey("USD", "KRW", truncateDay(time.Now()))]
	if !ok || !stored.Value.Equal(decimal.NewFromInt(1350)) {
		t.Errorf("stored = %+v, want USD/KRW 1350 for today", stored)
	}
}

func TestMemoryRateRepositoryBacksService(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"market_data":{"current_price":{"krw":1300}}}`))
	}))
	defer server.Close()

	repo := NewMemoryRateRepository()
	if _, err := repo.GetRate(context.Background(), "USD", "KRW", march7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRate on empty repo = %v, want ErrNotFound", err)
	}

	svc := NewService(NewCoinGeckoClient(server.URL, 0, 0), repo, "KRW", nil)
	if _, err := svc.Rate(context.Background(), "USD", "KRW", march7); err != nil {
		t.Fatalf("Rate: %v", err)
	}

	stored, err := repo.GetRate(context.Background(), "USD", "KRW", march7.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetRate after fetch: %v", err)
	}
	if !stored.Value.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("stored rate = %s, want 1300", stored.Value)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("CoinGecko calls = %d, want 1", got)
	}
}
