package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/cryptotax/internal/api"
	"github.com/mtlprog/cryptotax/internal/config"
	"github.com/mtlprog/cryptotax/internal/database"
	"github.com/mtlprog/cryptotax/internal/domain"
	"github.com/mtlprog/cryptotax/internal/export"
	"github.com/mtlprog/cryptotax/internal/external"
	"github.com/mtlprog/cryptotax/internal/ledger"
	"github.com/mtlprog/cryptotax/internal/price"
	"github.com/mtlprog/cryptotax/internal/summary"
	"github.com/mtlprog/cryptotax/internal/tax"
	"github.com/mtlprog/cryptotax/internal/taxpolicy"
	"github.com/mtlprog/cryptotax/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := domain.CheckClassification(); err != nil {
		log.Fatalf("Invalid transaction classification: %v", err)
	}

	app := &cli.App{
		Name:  "cryptotax",
		Usage: "capital-gains tax summaries for crypto-asset ledgers",
		Commands: []*cli.Command{
			serveCommand(),
			computeCommand(),
			exportCommand(),
			importCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

var (
	yearFlag = &cli.IntFlag{
		Name:  "year",
		Usage: "tax year",
		Value: time.Now().UTC().Year(),
	}
	ledgerFileFlag = &cli.StringFlag{
		Name:  "file",
		Usage: "read transactions from a CSV file instead of the database; no database is opened and rates come from CoinGecko, cached for this run only",
	}
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API and background workers",
		Action: func(c *cli.Context) error {
			ctx := c.Context
			cfg := config.Load()

			pool, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			rates := newRateService(cfg, pool)
			taxSvc := newTaxService(cfg, ledger.NewPgRepository(pool), rates)
			summarySvc := summary.NewService(taxSvc, summary.NewPgRepository(pool))

			var hook worker.AfterReportHook
			if cfg.SheetsEnabled() {
				sheetsWriter, err := export.NewSheetsWriter(ctx, cfg.GoogleSheetsID, cfg.GoogleCredentialsJSON)
				if err != nil {
					return fmt.Errorf("creating sheets writer: %w", err)
				}
				hook = sheetsWriter
			} else {
				slog.Info("Google Sheets export disabled, GOOGLE_SHEETS_ID or GOOGLE_CREDENTIALS_JSON not set")
			}

			quoteWorker := worker.NewQuoteWorker(rates, cfg.QuoteWorkerInterval)
			go quoteWorker.Run(ctx)

			reportWorker := worker.NewReportWorker(summarySvc, cfg.ReportWorkerInterval, hook)
			go reportWorker.Run(ctx)

			if cfg.AdminAPIKey == "" {
				slog.Warn("ADMIN_API_KEY not set, generate endpoint is unprotected")
			}

			srv := api.NewServer(cfg.HTTPPort, summarySvc, taxSvc, cfg.AdminAPIKey)
			errCh := make(chan error, 1)
			go func() {
				log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				return fmt.Errorf("HTTP server: %w", err)
			}
			log.Println("Shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
			}

			log.Println("Shutdown complete")
			return nil
		},
	}
}

func computeCommand() *cli.Command {
	return &cli.Command{
		Name:  "compute",
		Usage: "compute the tax summary for a year",
		Flags: []cli.Flag{
			yearFlag,
			ledgerFileFlag,
			&cli.BoolFlag{Name: "json", Usage: "print the full result as JSON"},
			&cli.BoolFlag{Name: "save", Usage: "store the summary in the database (opens DATABASE_URL even with --file)"},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			cfg := config.Load()
			year := c.Int("year")

			env, err := openEnvironment(ctx, cfg, c.String("file"), c.Bool("save"))
			if err != nil {
				return err
			}
			defer env.Close()

			var result tax.Result
			if c.Bool("save") {
				result, err = summary.NewService(env.tax, summary.NewPgRepository(env.pool)).Generate(ctx, year)
			} else {
				result, err = env.tax.Compute(ctx, year)
			}
			if err != nil {
				return err
			}

			for _, w := range result.Warnings {
				slog.Warn("transaction warning", "kind", w.Kind, "id", w.TransactionID, "message", w.Message)
			}

			if c.Bool("json") {
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Fprintf(c.App.Writer, "%d (%d transactions, %d warnings)\n",
				year, result.Summary.TransactionCount, len(result.Warnings))
			for _, row := range export.ToLabeledRows(result.Summary) {
				fmt.Fprintf(c.App.Writer, "%s\t%s\n", row.Label, row.Value)
			}
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "export a year's taxable transactions as CSV or XLSX",
		Flags: []cli.Flag{
			yearFlag,
			ledgerFileFlag,
			&cli.StringFlag{Name: "format", Usage: "csv or xlsx", Value: "csv"},
			&cli.StringFlag{Name: "out", Usage: "output file, stdout when empty"},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			cfg := config.Load()

			format := c.String("format")
			if format != "csv" && format != "xlsx" {
				return fmt.Errorf("unsupported format %q", format)
			}

			env, err := openEnvironment(ctx, cfg, c.String("file"), false)
			if err != nil {
				return err
			}
			defer env.Close()

			result, err := env.tax.Compute(ctx, c.Int("year"))
			if err != nil {
				return err
			}

			render := func(w io.Writer) error {
				if format == "xlsx" {
					return export.WriteXLSX(w, result.Summary)
				}
				text, err := export.ToDelimitedText(result.Summary)
				if err != nil {
					return err
				}
				_, err = io.WriteString(w, text)
				return err
			}

			if path := c.String("out"); path != "" {
				return writeFile(path, render)
			}
			return render(c.App.Writer)
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "load transactions from a CSV file into the database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Usage: "CSV file to import", Required: true},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			cfg := config.Load()

			txs, err := readLedgerFile(c.String("file"))
			if err != nil {
				return err
			}

			pool, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			inserted, err := ledger.NewPgRepository(pool).Insert(ctx, txs)
			if err != nil {
				return err
			}
			slog.Info("imported transactions", "file", c.String("file"), "read", len(txs), "inserted", inserted)
			return nil
		},
	}
}

// environment holds what compute and export need. pool is nil for CSV-ledger
// runs that do not store anything.
type environment struct {
	pool *pgxpool.Pool
	tax  *tax.Service
}

func (e *environment) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

// needsDatabase reports whether a compute/export run must open DATABASE_URL:
// when the ledger lives there, or when the result is stored.
func needsDatabase(cfg config.Config, ledgerFile string, store bool) (bool, error) {
	need := ledgerFile == "" || store
	if need && cfg.DatabaseURL == "" {
		if ledgerFile == "" {
			return false, errors.New("DATABASE_URL or --file is required")
		}
		return false, errors.New("--save requires DATABASE_URL")
	}
	return need, nil
}

func openEnvironment(ctx context.Context, cfg config.Config, ledgerFile string, store bool) (*environment, error) {
	useDB, err := needsDatabase(cfg, ledgerFile, store)
	if err != nil {
		return nil, err
	}

	// Read the file first so a bad path fails before any connection is made.
	var repo ledger.Repository
	if ledgerFile != "" {
		txs, err := readLedgerFile(ledgerFile)
		if err != nil {
			return nil, err
		}
		repo = ledger.NewMemoryRepository(txs...)
	}

	env := &environment{}
	var rateRepo external.RateRepository = external.NewMemoryRateRepository()
	if useDB {
		pool, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		env.pool = pool
		rateRepo = external.NewPgRateRepository(pool)
		if repo == nil {
			repo = ledger.NewPgRepository(pool)
		}
	}

	coingecko := external.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoDelay, cfg.CoinGeckoRetryMax)
	oracle := external.NewService(coingecko, rateRepo, cfg.ReportingCurrency, cfg.SecondaryCurrencies)
	env.tax = newTaxService(cfg, repo, oracle)
	return env, nil
}

// writeFile renders into path. The close error is returned so a failed flush
// never reports success.
func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	return closeAfter(f, path, render(f))
}

// closeAfter closes c and returns renderErr, or the close error when rendering succeeded.
func closeAfter(c io.Closer, path string, renderErr error) error {
	closeErr := c.Close()
	if renderErr != nil {
		return fmt.Errorf("writing %s: %w", path, renderErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", path, closeErr)
	}
	return nil
}

func openDatabase(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return pool, nil
}

func newRateService(cfg config.Config, pool *pgxpool.Pool) *external.Service {
	coingecko := external.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoDelay, cfg.CoinGeckoRetryMax)
	return external.NewService(coingecko, external.NewPgRateRepository(pool), cfg.ReportingCurrency, cfg.SecondaryCurrencies)
}

func newTaxService(cfg config.Config, repo ledger.Repository, oracle price.Oracle) *tax.Service {
	resolver := price.NewResolver(cfg.ReportingCurrency, oracle)
	return tax.NewService(repo, resolver, taxpolicy.Default, cfg.LookbackYears)
}

func readLedgerFile(path string) ([]domain.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	txs, err := ledger.ImportCSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return txs, nil
}
