package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates that no rate is stored for the requested day.
var ErrNotFound = errors.New("rate not found")

// Rate is a stored daily exchange rate: 1 Base = Value Quote.
type Rate struct {
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	Day       time.Time       `json:"day"`
	Value     decimal.Decimal `json:"value"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// RateRepository defines persistent storage for daily exchange rates.
type RateRepository interface {
	SaveRate(ctx context.Context, base, quote string, day time.Time, value decimal.Decimal) error
	GetRate(ctx context.Context, base, quote string, day time.Time) (Rate, error)
}

// PgRateRepository implements RateRepository with PostgreSQL.
type PgRateRepository struct {
	pool *pgxpool.Pool
}

// NewPgRateRepository creates a new PostgreSQL rate repository.
func NewPgRateRepository(pool *pgxpool.Pool) *PgRateRepository {
	return &PgRateRepository{pool: pool}
}

func (r *PgRateRepository) SaveRate(ctx context.Context, base, quote string, day time.Time, value decimal.Decimal) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO fx_rates (base, quote, rate_date, rate, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (base, quote, rate_date) DO UPDATE SET rate = $4, updated_at = NOW()`,
		base, quote, day, value)
	if err != nil {
		return fmt.Errorf("saving rate %s/%s: %w", base, quote, err)
	}
	return nil
}

func (r *PgRateRepository) GetRate(ctx context.Context, base, quote string, day time.Time) (Rate, error) {
	var rate Rate
	err := r.pool.QueryRow(ctx,
		`SELECT base, quote, rate_date, rate, updated_at FROM fx_rates
		 WHERE base = $1 AND quote = $2 AND rate_date = $3`,
		base, quote, day).Scan(&rate.Base, &rate.Quote, &rate.Day, &rate.Value, &rate.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rate{}, ErrNotFound
		}
		return Rate{}, fmt.Errorf("getting rate %s/%s: %w", base, quote, err)
	}
	return rate, nil
}
