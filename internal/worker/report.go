package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtlprog/cryptotax/internal/domain"
	"github.com/mtlprog/cryptotax/internal/tax"
)

// SummaryGenerator defines the interface for generating annual summaries.
type SummaryGenerator interface {
	Generate(ctx context.Context, year int) (tax.Result, error)
}

// AfterReportHook is called after each successful summary generation.
type AfterReportHook interface {
	Export(ctx context.Context, summary domain.TaxSummary) error
}

// ReportWorker periodically regenerates the current year's summary.
type ReportWorker struct {
	generator SummaryGenerator
	interval  time.Duration
	hook      AfterReportHook // optional
	now       func() time.Time
}

// NewReportWorker creates a new ReportWorker with an optional post-generation hook.
func NewReportWorker(generator SummaryGenerator, interval time.Duration, hook AfterReportHook) *ReportWorker {
	return &ReportWorker{
		generator: generator,
		interval:  interval,
		hook:      hook,
		now:       time.Now,
	}
}

// runHook calls the post-generation hook if one is configured.
func (w *ReportWorker) runHook(ctx context.Context, summary domain.TaxSummary) {
	if w.hook == nil {
		return
	}
	if err := w.hook.Export(ctx, summary); err != nil {
		slog.Error("ReportWorker: export hook failed", "error", err)
	} else {
		slog.Info("ReportWorker: export hook completed")
	}
}

func (w *ReportWorker) generate(ctx context.Context) {
	year := w.now().UTC().Year()
	result, err := w.generator.Generate(ctx, year)
	if err != nil {
		slog.Error("ReportWorker: generation failed", "year", year, "error", err)
		return
	}
	slog.Info("ReportWorker: generation completed", "year", year, "warnings", len(result.Warnings))
	w.runHook(ctx, result.Summary)
}

// Run starts the report worker loop. It blocks until the context is cancelled.
func (w *ReportWorker) Run(ctx context.Context) {
	slog.Info("ReportWorker: starting")

	// Generate immediately on startup
	w.generate(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ReportWorker: shutting down")
			return
		case <-ticker.C:
			w.generate(ctx)
		}
	}
}
