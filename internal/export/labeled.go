package export

import (
	"github.com/mtlprog/cryptotax/internal/domain"
)

// LabeledRow is a label/value pair for spreadsheet summaries.
type LabeledRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ToLabeledRows returns the six summary figures as integer-rounded strings:
// total gains, total losses, net gains, deduction, taxable base, estimated tax.
func ToLabeledRows(s domain.TaxSummary) []LabeledRow {
	return []LabeledRow{
		{Label: "총 양도차익", Value: domain.FormatInteger(s.TotalGains)},
		{Label: "총 양도차손", Value: domain.FormatInteger(s.TotalLosses)},
		{Label: "순 양도차익", Value: domain.FormatInteger(s.NetGains)},
		{Label: "기본공제", Value: domain.FormatInteger(s.Deduction)},
		{Label: "과세표준", Value: domain.FormatInteger(s.TaxableGains)},
		{Label: "예상 세액", Value: domain.FormatInteger(s.EstimatedTax)},
	}
}
