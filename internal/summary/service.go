// Package summary computes annual tax summaries and persists them.
package summary

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mtlprog/cryptotax/internal/domain"
	"github.com/mtlprog/cryptotax/internal/tax"
)

// Calculator defines the tax computation interface.
type Calculator interface {
	Compute(ctx context.Context, year int) (tax.Result, error)
}

// Service manages summary generation and retrieval.
type Service struct {
	calc Calculator
	repo Repository
}

// NewService creates a new summary Service.
func NewService(calc Calculator, repo Repository) *Service {
	return &Service{calc: calc, repo: repo}
}

// Generate computes the summary for year and stores it, replacing any earlier one.
func (s *Service) Generate(ctx context.Context, year int) (tax.Result, error) {
	result, err := s.calc.Compute(ctx, year)
	if err != nil {
		return tax.Result{}, fmt.Errorf("computing %d summary: %w", year, err)
	}

	data, err := json.Marshal(result.Summary)
	if err != nil {
		return tax.Result{}, fmt.Errorf("marshaling summary: %w", err)
	}

	if err := s.repo.Save(ctx, year, data, len(result.Warnings)); err != nil {
		return tax.Result{}, fmt.Errorf("saving summary: %w", err)
	}

	return result, nil
}

// Get returns the stored summary for year, re-hydrated from its JSON form.
func (s *Service) Get(ctx context.Context, year int) (domain.TaxSummary, error) {
	stored, err := s.repo.GetByYear(ctx, year)
	if err != nil {
		return domain.TaxSummary{}, err
	}
	return Decode(stored.Data)
}

// List retrieves the most recent stored summaries.
func (s *Service) List(ctx context.Context, limit int) ([]Stored, error) {
	return s.repo.List(ctx, limit)
}

// Decode re-hydrates a stored summary.
func Decode(data json.RawMessage) (domain.TaxSummary, error) {
	var summary domain.TaxSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return domain.TaxSummary{}, fmt.Errorf("decoding summary: %w", err)
	}
	return summary, nil
}
