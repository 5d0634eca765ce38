package export

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/mtlprog/cryptotax/internal/domain"
)

const historySheet = "HISTORY"

// historyColumns are the headers of the HISTORY sheet, one row per published run.
var historyColumns = []any{"Date", "Year", "총 양도차익", "총 양도차손", "순 양도차익", "기본공제", "과세표준", "예상 세액", "Transactions"}

// SheetsWriter publishes summaries to a Google spreadsheet.
type SheetsWriter struct {
	spreadsheetID string
	svc           *sheets.Service
}

// NewSheetsWriter creates a SheetsWriter authenticated with a service account JSON.
func NewSheetsWriter(ctx context.Context, spreadsheetID, credentialsJSON string) (*SheetsWriter, error) {
	creds, err := google.CredentialsFromJSON(
		ctx,
		[]byte(credentialsJSON),
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &SheetsWriter{spreadsheetID: spreadsheetID, svc: svc}, nil
}

// Export rewrites the year's summary and transaction sheets and appends a
// HISTORY row. Implements worker.AfterReportHook.
func (w *SheetsWriter) Export(ctx context.Context, s domain.TaxSummary) error {
	summaryName := fmt.Sprintf("SUMMARY_%d", s.Year)
	txName := fmt.Sprintf("TX_%d", s.Year)
	if err := w.ensureSheets(ctx, summaryName, txName, historySheet); err != nil {
		return err
	}

	_, err := w.svc.Spreadsheets.Values.BatchClear(
		w.spreadsheetID,
		&sheets.BatchClearValuesRequest{
			Ranges: []string{summaryName + "!A:B", txName + "!A:H"},
		},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clearing sheets: %w", err)
	}

	_, err = w.svc.Spreadsheets.Values.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateValuesRequest{
			ValueInputOption: "USER_ENTERED",
			Data: []*sheets.ValueRange{
				{Range: summaryName + "!A1", Values: buildSummaryValues(s)},
				{Range: txName + "!A1", Values: buildTransactionRows(s)},
			},
		},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing sheets: %w", err)
	}

	return w.appendHistory(ctx, s, time.Now().UTC())
}

// buildSummaryValues renders the labeled rows as a two-column range.
func buildSummaryValues(s domain.TaxSummary) [][]any {
	rows := ToLabeledRows(s)
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, []any{r.Label, r.Value})
	}
	return data
}

// buildHistoryRow renders one HISTORY row for a published summary.
func buildHistoryRow(s domain.TaxSummary, at time.Time) []any {
	row := []any{at.Format(dateLayout), s.Year}
	for _, r := range ToLabeledRows(s) {
		row = append(row, r.Value)
	}
	return append(row, s.TransactionCount)
}

// appendHistory writes the header if the HISTORY sheet is empty, then appends one row.
func (w *SheetsWriter) appendHistory(ctx context.Context, s domain.TaxSummary, at time.Time) error {
	existing, err := w.svc.Spreadsheets.Values.Get(
		w.spreadsheetID, historySheet+"!A1:A1",
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading HISTORY header: %w", err)
	}

	if len(existing.Values) == 0 {
		_, err = w.svc.Spreadsheets.Values.Update(
			w.spreadsheetID,
			historySheet+"!A1",
			&sheets.ValueRange{Values: [][]any{historyColumns}},
		).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("writing HISTORY header: %w", err)
		}
	}

	_, err = w.svc.Spreadsheets.Values.Append(
		w.spreadsheetID,
		historySheet+"!A:I",
		&sheets.ValueRange{Values: [][]any{buildHistoryRow(s, at)}},
	).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending HISTORY row: %w", err)
	}
	return nil
}

// ensureSheets creates any of the named sheets that do not already exist.
func (w *SheetsWriter) ensureSheets(ctx context.Context, names ...string) error {
	spreadsheet, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting spreadsheet metadata: %w", err)
	}

	existing := make(map[string]bool, len(spreadsheet.Sheets))
	for _, s := range spreadsheet.Sheets {
		existing[s.Properties.Title] = true
	}

	var requests []*sheets.Request
	for _, name := range names {
		if !existing[name] {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			})
		}
	}

	if len(requests) == 0 {
		return nil
	}

	_, err = w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("creating sheets: %w", err)
	}

	return nil
}
