package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stocktracker_backend/models"

	"github.com/shopspring/decimal"
)

// YahooBaseURL is the production API endpoint
const YahooBaseURL = "https://query1.finance.yahoo.com"

// yahooChartResponse represents the v8 chart payload
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketVolume int64  `json:"regularMarketVolume"`
				FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow"`
				FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// yahooSearchResponse represents the v1 search payload
type yahooSearchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		QuoteType string `json:"quoteType"`
		Exchange  string `json:"exchange"`
	} `json:"quotes"`
}

// Yahoo fetches quotes from the Yahoo Finance chart API. No API key is
// required, so the credential pool is never consulted.
type Yahoo struct {
	BaseURL    string
	httpClient *http.Client
}

// NewYahoo creates a Yahoo Finance adapter
func NewYahoo() *Yahoo {
	return &Yahoo{
		BaseURL: YahooBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Name returns the provider identifier
func (y *Yahoo) Name() string {
	return models.ProviderYahoo
}

// GetQuote fetches and normalizes a real-time quote. Returns (nil, nil) for
// an unknown symbol.
func (y *Yahoo) GetQuote(ctx context.Context, symbol string, opts Options) (*Quote, error) {
	payload, err := y.chart(ctx, symbol, "1d", "1d")
	if err != nil {
		return nil, err
	}
	if payload == nil || len(payload.Chart.Result) == 0 {
		return nil, nil
	}

	meta := payload.Chart.Result[0].Meta
	if meta.Symbol == "" || meta.RegularMarketPrice == 0 {
		return nil, nil
	}

	price := decimal.NewFromFloat(meta.RegularMarketPrice)
	prevClose := decimal.NewFromFloat(meta.PreviousClose)
	if !prevClose.IsPositive() {
		prevClose = decimal.NewFromFloat(meta.ChartPreviousClose)
	}

	return &Quote{
		Symbol:        strings.ToUpper(meta.Symbol),
		Price:         price,
		PreviousClose: prevClose,
		Change:        price.Sub(prevClose),
		ChangePercent: changePercent(price, prevClose),
		Volume:        meta.RegularMarketVolume,
		Week52Low:     decimal.NewFromFloat(meta.FiftyTwoWeekLow),
		Week52High:    decimal.NewFromFloat(meta.FiftyTwoWeekHigh),
		Source:        y.Name(),
		FetchedAt:     time.Now().UTC(),
	}, nil
}

// GetHistoricalData fetches and normalizes historical bars
func (y *Yahoo) GetHistoricalData(ctx context.Context, symbol, period, interval string, opts Options) ([]Candle, error) {
	if period == "" {
		period = "1y"
	}
	if interval == "" {
		interval = "1d"
	}

	payload, err := y.chart(ctx, symbol, period, interval)
	if err != nil {
		return nil, err
	}
	if payload == nil || len(payload.Chart.Result) == 0 {
		return nil, nil
	}

	result := payload.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	bars := result.Indicators.Quote[0]

	candles := make([]Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(bars.Close) {
			break
		}
		candles = append(candles, Candle{
			Date:   time.Unix(ts, 0).UTC(),
			Open:   floatAt(bars.Open, i),
			High:   floatAt(bars.High, i),
			Low:    floatAt(bars.Low, i),
			Close:  floatAt(bars.Close, i),
			Volume: int64At(bars.Volume, i),
		})
	}
	return candles, nil
}

// SearchSymbols fetches and normalizes symbol search matches
func (y *Yahoo) SearchSymbols(ctx context.Context, query string, opts Options) ([]SymbolMatch, error) {
	endpoint := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=10&newsCount=0",
		y.BaseURL, url.QueryEscape(query))

	body, err := y.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload yahooSearchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	matches := make([]SymbolMatch, 0, len(payload.Quotes))
	for _, q := range payload.Quotes {
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		matches = append(matches, SymbolMatch{
			Symbol: q.Symbol,
			Name:   name,
			Type:   q.QuoteType,
			Region: q.Exchange,
			Source: y.Name(),
		})
	}
	return matches, nil
}

// chart performs one v8 chart request
func (y *Yahoo) chart(ctx context.Context, symbol, period, interval string) (*yahooChartResponse, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s&includePrePost=false",
		y.BaseURL, url.PathEscape(symbol), url.QueryEscape(period), url.QueryEscape(interval))

	body, err := y.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload yahooChartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if payload.Chart.Error != nil {
		// "Not Found" for bad symbols; anything else is the provider's problem
		if payload.Chart.Error.Code == "Not Found" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, payload.Chart.Error.Description)
	}
	return &payload, nil
}

// get performs one HTTP request with the browser headers Yahoo expects
func (y *Yahoo) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
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
	if resp.StatusCode == http.StatusNotFound {
		return []byte(`{"chart":{"error":{"code":"Not Found"}}}`), nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, nil
}

// floatAt reads arr[i] as decimal, zero when out of range
func floatAt(arr []float64, i int) decimal.Decimal {
	if i >= len(arr) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(arr[i])
}

// int64At reads arr[i], zero when out of range
func int64At(arr []int64, i int) int64 {
	if i >= len(arr) {
		return 0
	}
	return arr[i]
}
