package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mtlprog/cryptotax/internal/domain"
)

// ErrMissingColumn is returned when a CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

var requiredColumns = []string{"timestamp", "type", "asset", "amount"}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ImportCSV reads transactions from a CSV export with a header row. Recognized
// columns: id, timestamp, type, asset, amount, price_reporting, price_secondary,
// secondary_currency, fee, fee_asset, exchange_id, wallet_address. Rows whose
// timestamp cannot be parsed are skipped and logged; rows without an id get one.
func ImportCSV(r io.Reader) ([]domain.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var txs []domain.Transaction
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", line, err)
		}

		field := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		ts, err := parseTime(field("timestamp"))
		if err != nil {
			slog.Warn("skipping CSV row", "line", line, "error", err)
			continue
		}

		id := field("id")
		if id == "" {
			id = uuid.NewString()
		}

		txs = append(txs, domain.Transaction{
			ID:                id,
			Timestamp:         ts,
			Type:              domain.NormalizeType(field("type")),
			Asset:             strings.ToUpper(field("asset")),
			Amount:            domain.SafeParse(field("amount")),
			PriceReporting:    domain.ParseOptional(field("price_reporting")),
			PriceSecondary:    domain.ParseOptional(field("price_secondary")),
			SecondaryCurrency: strings.ToUpper(field("secondary_currency")),
			Fee:               domain.SafeParse(field("fee")),
			FeeAsset:          strings.ToUpper(field("fee_asset")),
			ExchangeID:        field("exchange_id"),
			WalletAddress:     field("wallet_address"),
		})
	}
	return txs, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time %q", s)
}
