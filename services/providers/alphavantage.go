package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"stocktracker_backend/models"
	"stocktracker_backend/services/credentials"

	"github.com/shopspring/decimal"
)

// AlphaVantageBaseURL is the production API endpoint
const AlphaVantageBaseURL = "https://www.alphavantage.co"

// avGlobalQuoteResponse represents the GLOBAL_QUOTE payload
type avGlobalQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
	Note        string            `json:"Note"`
	Information string            `json:"Information"`
}

// avTimeSeriesResponse represents the TIME_SERIES_* payloads
type avTimeSeriesResponse struct {
	Daily       map[string]map[string]string `json:"Time Series (Daily)"`
	Weekly      map[string]map[string]string `json:"Weekly Time Series"`
	Monthly     map[string]map[string]string `json:"Monthly Time Series"`
	Note        string                       `json:"Note"`
	Information string                       `json:"Information"`
}

// avSearchResponse represents the SYMBOL_SEARCH payload
type avSearchResponse struct {
	BestMatches []map[string]string `json:"bestMatches"`
	Note        string              `json:"Note"`
	Information string              `json:"Information"`
}

// AlphaVantage fetches quotes from the AlphaVantage REST API. Every call
// consumes one credential lease from the pool; pool exhaustion surfaces as
// ErrNoCapacity without touching the network.
type AlphaVantage struct {
	BaseURL    string
	pool       *credentials.Pool
	httpClient *http.Client
}

// NewAlphaVantage creates an AlphaVantage adapter backed by pool
func NewAlphaVantage(pool *credentials.Pool) *AlphaVantage {
	return &AlphaVantage{
		BaseURL: AlphaVantageBaseURL,
		pool:    pool,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Name returns the provider identifier
func (av *AlphaVantage) Name() string {
	return models.ProviderAlphaVantage
}

// GetQuote fetches and normalizes a real-time quote. Returns (nil, nil) for
// an unknown symbol.
func (av *AlphaVantage) GetQuote(ctx context.Context, symbol string, opts Options) (*Quote, error) {
	body, err := av.call(ctx, opts, url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
	})
	if err != nil {
		return nil, err
	}

	var payload avGlobalQuoteResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}
	if err := avThrottled(payload.Note, payload.Information); err != nil {
		return nil, err
	}
	if len(payload.GlobalQuote) == 0 || payload.GlobalQuote["01. symbol"] == "" {
		// AlphaVantage answers an empty Global Quote for unknown symbols
		return nil, nil
	}

	price := avDecimal(payload.GlobalQuote["05. price"])
	prevClose := avDecimal(payload.GlobalQuote["08. previous close"])
	volume, _ := strconv.ParseInt(payload.GlobalQuote["06. volume"], 10, 64)

	return &Quote{
		Symbol:        strings.ToUpper(payload.GlobalQuote["01. symbol"]),
		Price:         price,
		PreviousClose: prevClose,
		Change:        price.Sub(prevClose),
		ChangePercent: changePercent(price, prevClose),
		Volume:        volume,
		Week52Low:     avDecimal(payload.GlobalQuote["04. low"]),
		Week52High:    avDecimal(payload.GlobalQuote["03. high"]),
		Source:        av.Name(),
		FetchedAt:     time.Now().UTC(),
	}, nil
}

// GetHistoricalData fetches and normalizes historical bars. interval picks
// the series (daily, weekly, monthly); period bounds how far back the bars
// go.
func (av *AlphaVantage) GetHistoricalData(ctx context.Context, symbol, period, interval string, opts Options) ([]Candle, error) {
	function := "TIME_SERIES_DAILY"
	switch interval {
	case "1wk", "weekly":
		function = "TIME_SERIES_WEEKLY"
	case "1mo", "monthly":
		function = "TIME_SERIES_MONTHLY"
	}

	body, err := av.call(ctx, opts, url.Values{
		"function":   {function},
		"symbol":     {symbol},
		"outputsize": {"compact"},
	})
	if err != nil {
		return nil, err
	}

	var payload avTimeSeriesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse time series response: %w", err)
	}
	if err := avThrottled(payload.Note, payload.Information); err != nil {
		return nil, err
	}

	series := payload.Daily
	if series == nil {
		series = payload.Weekly
	}
	if series == nil {
		series = payload.Monthly
	}
	if len(series) == 0 {
		return nil, nil
	}

	cutoff := periodStart(period, time.Now().UTC())
	candles := make([]Candle, 0, len(series))
	for date, bar := range series {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			log.Printf("Skipping unparseable bar date %q for %s", date, symbol)
			continue
		}
		if day.Before(cutoff) {
			continue
		}
		volume, _ := strconv.ParseInt(bar["5. volume"], 10, 64)
		candles = append(candles, Candle{
			Date:   day,
			Open:   avDecimal(bar["1. open"]),
			High:   avDecimal(bar["2. high"]),
			Low:    avDecimal(bar["3. low"]),
			Close:  avDecimal(bar["4. close"]),
			Volume: volume,
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Date.Before(candles[j].Date)
	})
	return candles, nil
}

// SearchSymbols fetches and normalizes symbol search matches
func (av *AlphaVantage) SearchSymbols(ctx context.Context, query string, opts Options) ([]SymbolMatch, error) {
	body, err := av.call(ctx, opts, url.Values{
		"function": {"SYMBOL_SEARCH"},
		"keywords": {query},
	})
	if err != nil {
		return nil, err
	}

	var payload avSearchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	if err := avThrottled(payload.Note, payload.Information); err != nil {
		return nil, err
	}

	matches := make([]SymbolMatch, 0, len(payload.BestMatches))
	for _, m := range payload.BestMatches {
		matches = append(matches, SymbolMatch{
			Symbol:   m["1. symbol"],
			Name:     m["2. name"],
			Type:     m["3. type"],
			Region:   m["4. region"],
			Currency: m["8. currency"],
			Source:   av.Name(),
		})
	}
	return matches, nil
}

// call leases a credential, records its usage and performs one API request
func (av *AlphaVantage) call(ctx context.Context, opts Options, params url.Values) ([]byte, error) {
	lease, err := av.pool.AcquireKey(ctx, av.Name(), opts.UserID)
	if err != nil {
		// ErrNoCapacity passes through untouched so callers can fall back
		return nil, err
	}
	if err := av.pool.RecordUsage(ctx, &lease.Credential); err != nil {
		return nil, err
	}

	params.Set("apikey", lease.Key)
	endpoint := av.BaseURL + "/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := av.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alphavantage error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, nil
}

// avThrottled maps AlphaVantage's 200-with-note throttle payloads onto the
// rate-limit sentinel
func avThrottled(note, information string) error {
	if note != "" {
		return fmt.Errorf("%w: %s", ErrRateLimited, note)
	}
	if strings.Contains(information, "rate limit") {
		return fmt.Errorf("%w: %s", ErrRateLimited, information)
	}
	return nil
}

// avDecimal parses a decimal field, treating garbage as zero
func avDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// periodStart translates a Yahoo-style period token into a cutoff date
func periodStart(period string, now time.Time) time.Time {
	switch period {
	case "1d":
		return now.AddDate(0, 0, -1)
	case "5d":
		return now.AddDate(0, 0, -5)
	case "1mo":
		return now.AddDate(0, -1, 0)
	case "3mo":
		return now.AddDate(0, -3, 0)
	case "6mo":
		return now.AddDate(0, -6, 0)
	case "2y":
		return now.AddDate(-2, 0, 0)
	case "5y":
		return now.AddDate(-5, 0, 0)
	case "max":
		return time.Time{}
	default: // 1y
		return now.AddDate(-1, 0, 0)
	}
}
