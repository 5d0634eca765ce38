package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that no summary is stored for the requested year.
var ErrNotFound = errors.New("summary not found")

// Stored is a persisted tax summary.
type Stored struct {
	Year         int             `json:"year"`
	Data         json.RawMessage `json:"data"`
	WarningCount int             `json:"warningCount"`
	ComputedAt   time.Time       `json:"computedAt"`
}

// Repository defines persistent storage for computed summaries.
type Repository interface {
	Save(ctx context.Context, year int, data json.RawMessage, warningCount int) error
	GetByYear(ctx context.Context, year int) (*Stored, error)
	List(ctx context.Context, limit int) ([]Stored, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL summary repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Save(ctx context.Context, year int, data json.RawMessage, warningCount int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tax_summaries (tax_year, data, warning_count, computed_at)
		 VALUES ($1, $2::jsonb, $3, NOW())
		 ON CONFLICT (tax_year)
		 DO UPDATE SET data = $2::jsonb, warning_count = $3, computed_at = NOW()`,
		year, data, warningCount)
	if err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByYear(ctx context.Context, year int) (*Stored, error) {
	var s Stored
	err := r.pool.QueryRow(ctx,
		`SELECT tax_year, data, warning_count, computed_at
		 FROM tax_summaries
		 WHERE tax_year = $1`, year).Scan(&s.Year, &s.Data, &s.WarningCount, &s.ComputedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting summary for %d: %w", year, err)
	}
	return &s, nil
}

func (r *PgRepository) List(ctx context.Context, limit int) ([]Stored, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.pool.Query(ctx,
		`SELECT tax_year, data, warning_count, computed_at
		 FROM tax_summaries
		 ORDER BY tax_year DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing summaries: %w", err)
	}
	defer rows.Close()

	var summaries []Stored
	for rows.Next() {
		var s Stored
		if err := rows.Scan(&s.Year, &s.Data, &s.WarningCount, &s.ComputedAt); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating summaries: %w", err)
	}
	return summaries, nil
}
