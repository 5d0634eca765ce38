package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mtlprog/cryptotax/internal/domain"
	"github.com/mtlprog/cryptotax/internal/export"
	"github.com/mtlprog/cryptotax/internal/summary"
	"github.com/mtlprog/cryptotax/internal/tax"
)

// HoldingsProvider replays the ledger and reports the lots carried at a year's end.
type HoldingsProvider interface {
	Holdings(ctx context.Context, year int) ([]tax.Holding, []domain.Warning, error)
}

// Handler provides HTTP endpoints for the tax summary API.
type Handler struct {
	summaries *summary.Service
	holdings  HoldingsProvider
}

// NewHandler creates a new API handler.
func NewHandler(summaries *summary.Service, holdings HoldingsProvider) *Handler {
	return &Handler{summaries: summaries, holdings: holdings}
}

type summaryResponse struct {
	Summary domain.TaxSummary   `json:"summary"`
	Rows    []export.LabeledRow `json:"rows"`
}

type holdingsResponse struct {
	Year     int              `json:"year"`
	Holdings []tax.Holding    `json:"holdings"`
	Warnings []domain.Warning `json:"warnings"`
}

// ListSummaries handles GET /api/v1/summaries.
//
//	@Summary	List stored tax summaries
//	@Tags		summaries
//	@Produce	json
//	@Param		limit	query		int	false	"maximum number of summaries (default 20, max 100)"
//	@Success	200		{array}		summary.Stored
//	@Failure	500		{object}	map[string]string
//	@Router		/summaries [get]
func (h *Handler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	const maxLimit = 100
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}

	stored, err := h.summaries.List(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list summaries", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// GetSummary handles GET /api/v1/summaries/{year}.
//
//	@Summary	Get the stored summary of a tax year
//	@Tags		summaries
//	@Produce	json
//	@Param		year	path		int	true	"tax year"
//	@Success	200		{object}	summaryResponse
//	@Failure	400		{object}	map[string]string
//	@Failure	404		{object}	map[string]string
//	@Router		/summaries/{year} [get]
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSummary(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Summary: s, Rows: export.ToLabeledRows(s)})
}

// GenerateSummary handles POST /api/v1/summaries/{year}/generate.
//
//	@Summary	Recompute and store the summary of a tax year
//	@Tags		summaries
//	@Produce	json
//	@Security	BearerAuth
//	@Param		year	path		int	true	"tax year"
//	@Success	200		{object}	tax.Result
//	@Failure	401		{object}	map[string]string
//	@Failure	500		{object}	map[string]string
//	@Router		/summaries/{year}/generate [post]
func (h *Handler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	year, ok := parseYear(w, r)
	if !ok {
		return
	}

	result, err := h.summaries.Generate(r.Context(), year)
	if err != nil {
		slog.Error("failed to generate summary", "year", year, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate summary")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ExportCSV handles GET /api/v1/summaries/{year}/export.csv.
//
//	@Summary	Download taxable transactions as CSV
//	@Tags		export
//	@Produce	text/csv
//	@Param		year	path	int	true	"tax year"
//	@Success	200
//	@Failure	404	{object}	map[string]string
//	@Router		/summaries/{year}/export.csv [get]
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSummary(w, r)
	if !ok {
		return
	}

	text, err := export.ToDelimitedText(s)
	if err != nil {
		slog.Error("failed to render delimited export", "year", s.Year, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", fmt.Sprintf("tax-%d.csv", s.Year), []byte(text))
}

// ExportXLSX handles GET /api/v1/summaries/{year}/export.xlsx.
//
//	@Summary	Download the summary workbook
//	@Tags		export
//	@Produce	application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Param		year	path	int	true	"tax year"
//	@Success	200
//	@Failure	404	{object}	map[string]string
//	@Router		/summaries/{year}/export.xlsx [get]
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSummary(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, s); err != nil {
		slog.Error("failed to render workbook", "year", s.Year, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("tax-%d.xlsx", s.Year), buf.Bytes())
}

// GetHoldings handles GET /api/v1/holdings/{year}.
//
//	@Summary	Lots carried at the end of a year
//	@Tags		holdings
//	@Produce	json
//	@Param		year	path		int	true	"tax year"
//	@Success	200		{object}	holdingsResponse
//	@Failure	500		{object}	map[string]string
//	@Router		/holdings/{year} [get]
func (h *Handler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	year, ok := parseYear(w, r)
	if !ok {
		return
	}

	holdings, warnings, err := h.holdings.Holdings(r.Context(), year)
	if err != nil {
		slog.Error("failed to compute holdings", "year", year, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if holdings == nil {
		holdings = []tax.Holding{}
	}
	if warnings == nil {
		warnings = []domain.Warning{}
	}
	writeJSON(w, http.StatusOK, holdingsResponse{Year: year, Holdings: holdings, Warnings: warnings})
}

func (h *Handler) loadSummary(w http.ResponseWriter, r *http.Request) (domain.TaxSummary, bool) {
	year, ok := parseYear(w, r)
	if !ok {
		return domain.TaxSummary{}, false
	}

	s, err := h.summaries.Get(r.Context(), year)
	if err != nil {
		if errors.Is(err, summary.ErrNotFound) {
			writeError(w, http.StatusNotFound, "summary not found for year")
			return domain.TaxSummary{}, false
		}
		slog.Error("failed to get summary", "year", year, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return domain.TaxSummary{}, false
	}
	return s, true
}

func parseYear(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year < 1970 || year > 9999 {
		writeError(w, http.StatusBadRequest, "invalid year, expected YYYY")
		return 0, false
	}
	return year, true
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
