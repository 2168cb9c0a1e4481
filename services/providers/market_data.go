package providers

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/shopspring/decimal"
)

// MarketDataService orchestrates multiple providers with an externally
// supplied fallback order: the primary is tried first and the next provider
// takes over on rate limiting, unavailability, pool exhaustion or an empty
// answer. Single-symbol historical/search lookups additionally fall back to
// an exact-symbol quote as a last resort.
type MarketDataService struct {
	providers []MarketDataProvider
}

// NewMarketDataService creates a service trying providers in the given order
func NewMarketDataService(providers ...MarketDataProvider) *MarketDataService {
	return &MarketDataService{providers: providers}
}

// Providers returns the configured fallback order
func (m *MarketDataService) Providers() []MarketDataProvider {
	return m.providers
}

// GetQuote returns the first quote any provider can supply. (nil, nil) means
// every provider agreed the symbol is unknown.
func (m *MarketDataService) GetQuote(ctx context.Context, symbol string, opts Options) (*Quote, error) {
	var lastErr error
	for _, p := range m.providers {
		quote, err := p.GetQuote(ctx, symbol, opts)
		if err != nil {
			if fallbackWorthy(err) {
				log.Printf("Provider %s failed for %s, falling back: %v", p.Name(), symbol, err)
				lastErr = err
				continue
			}
			return nil, err
		}
		if quote == nil {
			lastErr = nil
			continue
		}
		return quote, nil
	}
	return nil, lastErr
}

// GetHistoricalData returns bars from the first provider that has them. When
// every provider fails, a lone bar synthesized from a plain quote is better
// than nothing for a single symbol.
func (m *MarketDataService) GetHistoricalData(ctx context.Context, symbol, period, interval string, opts Options) ([]Candle, error) {
	var lastErr error
	for _, p := range m.providers {
		candles, err := p.GetHistoricalData(ctx, symbol, period, interval, opts)
		if err != nil {
			if fallbackWorthy(err) {
				log.Printf("Provider %s historical failed for %s, falling back: %v", p.Name(), symbol, err)
				lastErr = err
				continue
			}
			return nil, err
		}
		if len(candles) == 0 {
			lastErr = nil
			continue
		}
		return candles, nil
	}

	quote, err := m.GetQuote(ctx, symbol, opts)
	if err != nil || quote == nil {
		return nil, lastErr
	}
	return []Candle{{
		Date:   quote.FetchedAt,
		Open:   quote.PreviousClose,
		High:   maxDecimal(quote.Price, quote.PreviousClose),
		Low:    minDecimal(quote.Price, quote.PreviousClose),
		Close:  quote.Price,
		Volume: quote.Volume,
	}}, nil
}

// SearchSymbols returns matches from the first provider that has any. For a
// query that looks like one plain symbol, an exact quote lookup serves as the
// last resort.
func (m *MarketDataService) SearchSymbols(ctx context.Context, query string, opts Options) ([]SymbolMatch, error) {
	var lastErr error
	for _, p := range m.providers {
		matches, err := p.SearchSymbols(ctx, query, opts)
		if err != nil {
			if fallbackWorthy(err) {
				log.Printf("Provider %s search failed for %q, falling back: %v", p.Name(), query, err)
				lastErr = err
				continue
			}
			return nil, err
		}
		if len(matches) == 0 {
			lastErr = nil
			continue
		}
		return matches, nil
	}

	if !looksLikeSymbol(query) {
		return nil, lastErr
	}
	quote, err := m.GetQuote(ctx, strings.ToUpper(query), opts)
	if err != nil || quote == nil {
		return nil, lastErr
	}
	return []SymbolMatch{{
		Symbol: quote.Symbol,
		Name:   quote.Symbol,
		Type:   "Equity",
		Source: quote.Source,
	}}, nil
}

// fallbackWorthy reports whether the next provider should be tried
func fallbackWorthy(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrNoCapacity)
}

// looksLikeSymbol reports whether query is a plausible bare ticker
func looksLikeSymbol(query string) bool {
	query = strings.TrimSpace(query)
	if len(query) == 0 || len(query) > 8 || strings.ContainsAny(query, " \t") {
		return false
	}
	for _, r := range query {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '.' || r == '-') {
			return false
		}
	}
	return true
}

func maxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
