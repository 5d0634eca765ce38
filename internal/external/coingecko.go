package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedCurrency is returned for a currency without a CoinGecko mapping.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// CurrencyMapping maps secondary currencies to the CoinGecko coin that tracks them.
// Fiat USD is tracked through tether.
var CurrencyMapping = map[string]string{
	"USD":  "tether",
	"USDT": "tether",
	"USDC": "usd-coin",
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
}

// CoinGeckoClient fetches exchange rates from the CoinGecko API.
type CoinGeckoClient struct {
	baseURL    string
	httpClient *http.Client
	delay      time.Duration
	maxRetries int
}

// NewCoinGeckoClient creates a new CoinGecko API client.
func NewCoinGeckoClient(baseURL string, delay time.Duration, maxRetries int) *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		delay:      delay,
		maxRetries: maxRetries,
	}
}

// FetchHistoricalRate returns how many units of `to` one unit of `from` was worth
// on the given UTC day.
func (c *CoinGeckoClient) FetchHistoricalRate(ctx context.Context, from, to string, day time.Time) (decimal.Decimal, error) {
	coinID, ok := CurrencyMapping[strings.ToUpper(from)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, from)
	}

	url := fmt.Sprintf("%s/coins/%s/history?date=%s&localization=false",
		c.baseURL, coinID, day.UTC().Format("02-01-2006"))

	body, err := c.fetchWithRetry(ctx, url)
	if err != nil {
		return decimal.Zero, err
	}

	// Parse: {"id":"tether","market_data":{"current_price":{"krw":1342.1,"usd":1.0,...}}}
	var raw struct {
		MarketData struct {
			CurrentPrice map[string]decimal.Decimal `json:"current_price"`
		} `json:"market_data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return decimal.Zero, fmt.Errorf("parsing CoinGecko history response: %w", err)
	}

	rate, ok := raw.MarketData.CurrentPrice[strings.ToLower(to)]
	if !ok {
		return decimal.Zero, fmt.Errorf("CoinGecko has no %s price for %s on %s", to, coinID, day.Format("2006-01-02"))
	}
	return rate, nil
}

// FetchCurrentRates returns the latest rate into `to` for each given currency.
// Currencies without a mapping are skipped.
func (c *CoinGeckoClient) FetchCurrentRates(ctx context.Context, currencies []string, to string) (map[string]decimal.Decimal, error) {
	uniqueIDs := make(map[string]bool)
	for _, cur := range currencies {
		if id, ok := CurrencyMapping[strings.ToUpper(cur)]; ok {
			uniqueIDs[id] = true
		}
	}
	if len(uniqueIDs) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	ids := make([]string, 0, len(uniqueIDs))
	for id := range uniqueIDs {
		ids = append(ids, id)
	}

	vs := strings.ToLower(to)
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s", c.baseURL, strings.Join(ids, ","), vs)

	body, err := c.fetchWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}

	// Parse: {"tether":{"krw":1342.1},"bitcoin":{"krw":90000000}}
	var raw map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing CoinGecko response: %w", err)
	}

	result := make(map[string]decimal.Decimal)
	for _, cur := range currencies {
		cur = strings.ToUpper(cur)
		prices, ok := raw[CurrencyMapping[cur]]
		if !ok {
			continue
		}
		if rate, ok := prices[vs]; ok {
			result[cur] = rate
		}
	}
	return result, nil
}

func (c *CoinGeckoClient) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		if attempt > 0 {
			baseDelay := c.delay
			if baseDelay == 0 {
				baseDelay = 10 * time.Second
			}
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating CoinGecko request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("CoinGecko request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading CoinGecko response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("CoinGecko rate limited (attempt %d/%d)", attempt+1, c.maxRetries+1)
			continue
		}

		return nil, fmt.Errorf("CoinGecko HTTP %d: %s", resp.StatusCode, string(body))
	}

	return nil, lastErr
}
