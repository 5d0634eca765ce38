package worker

import (
	"context"
	"log/slog"
	"time"
)

// RateFetcher fetches the day's exchange rates and stores them.
type RateFetcher interface {
	// FetchAndStoreRates returns the number of rates stored.
	FetchAndStoreRates(ctx context.Context) (int, error)
	// Quote is the reporting currency the rates are quoted in.
	Quote() string
}

// QuoteWorker periodically stores the day's exchange rates so that transactions
// recorded in a secondary currency can be valued without a live lookup.
type QuoteWorker struct {
	fetcher  RateFetcher
	interval time.Duration
	// failures counts consecutive failed refreshes; reset on success.
	failures int
}

// NewQuoteWorker creates a new QuoteWorker.
func NewQuoteWorker(fetcher RateFetcher, interval time.Duration) *QuoteWorker {
	return &QuoteWorker{
		fetcher:  fetcher,
		interval: interval,
	}
}

// Run refreshes rates on startup and then every interval. It blocks until the
// context is cancelled.
func (w *QuoteWorker) Run(ctx context.Context) {
	slog.Info("QuoteWorker: starting", "quote", w.fetcher.Quote(), "interval", w.interval)
	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("QuoteWorker: shutting down")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *QuoteWorker) refresh(ctx context.Context) {
	stored, err := w.fetcher.FetchAndStoreRates(ctx)
	if err != nil {
		w.failures++
		slog.Error("QuoteWorker: refresh failed",
			"quote", w.fetcher.Quote(), "stored", stored, "consecutive_failures", w.failures, "error", err)
		return
	}

	if w.failures > 0 {
		slog.Info("QuoteWorker: recovered", "after_failures", w.failures)
	}
	w.failures = 0

	if stored == 0 {
		slog.Warn("QuoteWorker: no rates returned", "quote", w.fetcher.Quote())
		return
	}
	slog.Info("QuoteWorker: rates stored", "quote", w.fetcher.Quote(), "count", stored)
}
