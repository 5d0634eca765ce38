// Package export renders tax summaries as delimited text, labeled rows,
// XLSX workbooks and Google Sheets.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotax/internal/domain"
)

const dateLayout = "2006-01-02"

// TransactionColumns are the header labels of the delimited export, in order:
// date, type, asset, amount, unit price, total value, fee, gain/loss.
var TransactionColumns = []string{"거래일자", "거래유형", "자산", "수량", "단가", "거래금액", "수수료", "손익"}

// transactionRecord renders one taxable transaction as export fields.
func transactionRecord(tx domain.TaxableTransaction) []string {
	return []string{
		tx.Timestamp.UTC().Format(dateLayout),
		tx.Type.Label(),
		tx.AssetSymbol(),
		domain.FormatPlain(tx.Amount),
		domain.FormatPlain(tx.UnitPrice),
		domain.FormatPlain(tx.TotalValue),
		domain.FormatPlain(tx.Fee),
		domain.FormatPlain(lo.FromPtrOr(tx.GainLoss, decimal.Zero)),
	}
}

// ToDelimitedText renders the header and one comma-separated row per taxable
// transaction, in summary order.
func ToDelimitedText(s domain.TaxSummary) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(TransactionColumns); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	for _, tx := range s.TaxableTransactions {
		if err := w.Write(transactionRecord(tx)); err != nil {
			return "", fmt.Errorf("writing transaction %s: %w", tx.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing delimited text: %w", err)
	}
	return buf.String(), nil
}
