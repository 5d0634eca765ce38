package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	// Registers the OpenAPI document served under /swagger/.
	_ "github.com/mtlprog/cryptotax/internal/api/docs"
	"github.com/mtlprog/cryptotax/internal/summary"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(port string, summaries *summary.Service, holdings HoldingsProvider, adminAPIKey string) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      NewMux(NewHandler(summaries, holdings), adminAPIKey),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewMux registers the API routes. Summary generation requires the admin key when one is set.
//
//	@title						cryptotax API
//	@version					1.0
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
func NewMux(handler *Handler, adminAPIKey string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/summaries", handler.ListSummaries)
	mux.HandleFunc("GET /api/v1/summaries/{year}", handler.GetSummary)
	mux.HandleFunc("GET /api/v1/summaries/{year}/export.csv", handler.ExportCSV)
	mux.HandleFunc("GET /api/v1/summaries/{year}/export.xlsx", handler.ExportXLSX)
	mux.HandleFunc("GET /api/v1/holdings/{year}", handler.GetHoldings)
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	generateHandler := http.HandlerFunc(handler.GenerateSummary)
	if adminAPIKey != "" {
		mux.Handle("POST /api/v1/summaries/{year}/generate", requireAuth(adminAPIKey, generateHandler))
	} else {
		mux.Handle("POST /api/v1/summaries/{year}/generate", generateHandler)
	}
	return mux
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
