package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/mtlprog/cryptotax/internal/domain"
)

const (
	summarySheet      = "Summary"
	transactionsSheet = "Transactions"
)

// WriteXLSX writes a workbook with a Summary sheet of labeled rows and a
// Transactions sheet with the taxable transactions.
func WriteXLSX(w io.Writer, s domain.TaxSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("renaming summary sheet: %w", err)
	}
	if err := f.SetSheetRow(summarySheet, "A1", &[]any{"연도", s.Year}); err != nil {
		return fmt.Errorf("writing year row: %w", err)
	}
	for i, row := range ToLabeledRows(s) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &[]any{row.Label, row.Value}); err != nil {
			return fmt.Errorf("writing summary row %q: %w", row.Label, err)
		}
	}

	if _, err := f.NewSheet(transactionsSheet); err != nil {
		return fmt.Errorf("creating transactions sheet: %w", err)
	}
	for i, values := range buildTransactionRows(s) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(transactionsSheet, cell, &values); err != nil {
			return fmt.Errorf("writing transaction row %d: %w", i, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// buildTransactionRows builds the header plus one row per taxable transaction.
// Amounts are written as plain decimal text so no cell holds a rounded float.
// Columns: date | type | asset | amount | unit price | total value | fee | gain/loss
func buildTransactionRows(s domain.TaxSummary) [][]any {
	data := make([][]any, 0, len(s.TaxableTransactions)+1)
	header := make([]any, len(TransactionColumns))
	for i, c := range TransactionColumns {
		header[i] = c
	}
	data = append(data, header)

	for _, tx := range s.TaxableTransactions {
		record := transactionRecord(tx)
		row := make([]any, len(record))
		for i, v := range record {
			row[i] = v
		}
		data = append(data, row)
	}
	return data
}
