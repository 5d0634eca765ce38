// Package ledger reads and writes the transaction ledger the tax engine consumes.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotax/internal/domain"
)

// Repository provides transactions ordered oldest first.
type Repository interface {
	// QueryByDateRange returns transactions with start <= timestamp < end.
	QueryByDateRange(ctx context.Context, start, end time.Time) ([]domain.Transaction, error)
}

// Writer stores transactions. The tax engine never writes; importers do.
type Writer interface {
	Insert(ctx context.Context, txs []domain.Transaction) (int, error)
}

// PgRepository implements Repository and Writer with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL transaction repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) QueryByDateRange(ctx context.Context, start, end time.Time) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, occurred_at, tx_type, asset, amount, price_reporting, price_secondary,
		        secondary_currency, fee, fee_asset, exchange_id, wallet_address
		 FROM transactions
		 WHERE occurred_at >= $1 AND occurred_at < $2
		 ORDER BY occurred_at ASC, seq ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			tx             domain.Transaction
			txType         string
			priceReporting decimal.NullDecimal
			priceSecondary decimal.NullDecimal
		)
		if err := rows.Scan(&tx.ID, &tx.Timestamp, &txType, &tx.Asset, &tx.Amount,
			&priceReporting, &priceSecondary, &tx.SecondaryCurrency, &tx.Fee,
			&tx.FeeAsset, &tx.ExchangeID, &tx.WalletAddress); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		tx.Type = domain.TxType(txType)
		if priceReporting.Valid {
			tx.PriceReporting = &priceReporting.Decimal
		}
		if priceSecondary.Valid {
			tx.PriceSecondary = &priceSecondary.Decimal
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}
	return txs, nil
}

// Insert stores transactions in one batch, skipping ids that already exist.
// It returns the number of newly inserted rows.
func (r *PgRepository) Insert(ctx context.Context, txs []domain.Transaction) (int, error) {
	batch := &pgx.Batch{}
	for _, tx := range txs {
		batch.Queue(
			`INSERT INTO transactions (id, occurred_at, tx_type, asset, amount, price_reporting,
			        price_secondary, secondary_currency, fee, fee_asset, exchange_id, wallet_address)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT (id) DO NOTHING`,
			tx.ID, tx.Timestamp, string(tx.Type), tx.Asset, tx.Amount,
			nullable(tx.PriceReporting), nullable(tx.PriceSecondary), tx.SecondaryCurrency,
			tx.Fee, tx.FeeAsset, tx.ExchangeID, tx.WalletAddress)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range txs {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("inserting transaction: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func nullable(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
