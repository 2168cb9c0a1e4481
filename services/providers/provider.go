package providers

import (
	"context"
	"errors"
	"time"

	"stocktracker_backend/services/credentials"

	"github.com/shopspring/decimal"
)

// Failure taxonomy for provider calls. Callers pick a fallback (or skip the
// stock for this tick) based on which sentinel the error wraps.
var (
	// ErrRateLimited means the provider answered HTTP 429 (or its own
	// throttle payload); the same call may succeed against another provider.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrUnavailable covers network failures, timeouts and 5xx responses.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrNoCapacity is the credential pool exhaustion signal, re-exported so
	// callers can match it without importing the credentials package.
	ErrNoCapacity = credentials.ErrNoCapacity
)

// Quote is the normalized real-time quote shape shared by all providers.
// An unknown symbol yields (nil, nil), not an error.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	MarketCap     decimal.Decimal `json:"market_cap"`
	Week52Low     decimal.Decimal `json:"week52_low"`
	Week52High    decimal.Decimal `json:"week52_high"`
	Source        string          `json:"source"`
	FetchedAt     time.Time       `json:"fetched_at"`
}

// Candle is one normalized historical bar
type Candle struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// SymbolMatch is one normalized symbol-search result
type SymbolMatch struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Region   string `json:"region"`
	Currency string `json:"currency"`
	Source   string `json:"source"`
}

// Options carries per-call context for provider requests. UserID routes
// keyed providers to a user-scoped credential when one exists.
type Options struct {
	UserID *uint
}

// MarketDataProvider is the common surface of all quote providers. Fallback
// order between providers is the caller's policy, not the adapter's.
type MarketDataProvider interface {
	Name() string
	GetQuote(ctx context.Context, symbol string, opts Options) (*Quote, error)
	GetHistoricalData(ctx context.Context, symbol, period, interval string, opts Options) ([]Candle, error)
	SearchSymbols(ctx context.Context, query string, opts Options) ([]SymbolMatch, error)
}

// changePercent computes (current-previousClose)/previousClose*100, or zero
// when there is no previous close to divide by.
func changePercent(current, previousClose decimal.Decimal) decimal.Decimal {
	if !previousClose.IsPositive() {
		return decimal.Zero
	}
	return current.Sub(previousClose).
		Div(previousClose).
		Mul(decimal.NewFromInt(100)).
		Round(4)
}
