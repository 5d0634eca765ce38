// Package external converts prices between currencies using CoinGecko rates,
// persisted per day so a tax year can be recomputed without refetching.
package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotax/internal/price"
)

var _ price.Oracle = (*Service)(nil)

// Service resolves exchange rates from cache, then storage, then CoinGecko.
type Service struct {
	coingecko  *CoinGeckoClient
	repo       RateRepository
	cache      *rateCache
	quote      string
	currencies []string
}

// NewService creates a rate Service quoting into the reporting currency. currencies
// are the secondary currencies refreshed by FetchAndStoreRates.
func NewService(coingecko *CoinGeckoClient, repo RateRepository, reportingCurrency string, currencies []string) *Service {
	return &Service{
		coingecko:  coingecko,
		repo:       repo,
		cache:      newRateCache(),
		quote:      strings.ToUpper(reportingCurrency),
		currencies: currencies,
	}
}

// Convert converts amount from one currency to another at the rate of asOf's UTC day.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOf time.Time) (decimal.Decimal, error) {
	rate, err := s.Rate(ctx, from, to, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// Rate returns the daily rate 1 from = rate to.
func (s *Service) Rate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	base, quote := strings.ToUpper(from), strings.ToUpper(to)
	if base == quote {
		return decimal.NewFromInt(1), nil
	}

	day := truncateDay(asOf)
	key := cacheKey(base, quote, day)
	if rate, ok := s.cache.get(key); ok {
		return rate, nil
	}

	stored, err := s.repo.GetRate(ctx, base, quote, day)
	if err == nil {
		s.cache.set(key, stored.Value)
		return stored.Value, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return decimal.Zero, fmt.Errorf("reading stored rate: %w", err)
	}

	if s.coingecko == nil {
		return decimal.Zero, fmt.Errorf("no stored rate %s: %w", key, ErrNotFound)
	}
	rate, err := s.coingecko.FetchHistoricalRate(ctx, base, quote, day)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching rate %s: %w", key, err)
	}

	if err := s.repo.SaveRate(ctx, base, quote, day, rate); err != nil {
		slog.Warn("failed to store fetched rate", "key", key, "error", err)
	}
	s.cache.set(key, rate)
	return rate, nil
}

// FetchAndStoreRates fetches today's rates for the configured currencies, stores
// them and returns how many were stored.
func (s *Service) FetchAndStoreRates(ctx context.Context) (int, error) {
	rates, err := s.coingecko.FetchCurrentRates(ctx, s.currencies, s.quote)
	if err != nil {
		return 0, fmt.Errorf("fetching current rates: %w", err)
	}

	day := truncateDay(time.Now())
	stored := 0
	for base, rate := range rates {
		if err := s.repo.SaveRate(ctx, base, s.quote, day, rate); err != nil {
			return stored, fmt.Errorf("storing rate for %s: %w", base, err)
		}
		s.cache.set(cacheKey(base, s.quote, day), rate)
		stored++
	}

	return stored, nil
}

// Quote returns the reporting currency rates are quoted in.
func (s *Service) Quote() string {
	return s.quote
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
