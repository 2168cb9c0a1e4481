package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"stocktracker_backend/models"
	"stocktracker_backend/services/alerts"
	"stocktracker_backend/services/prices"
	"stocktracker_backend/services/providers"

	"gorm.io/gorm"
)

// quoteTimeout bounds each provider call so one hung request cannot stall
// the whole sweep
const quoteTimeout = 20 * time.Second

// QuoteSource is the slice of the market data service the tick consumes
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string, opts providers.Options) (*providers.Quote, error)
}

// AlertSink observes alerts triggered during a tick (the websocket hub)
type AlertSink interface {
	AlertsTriggered(triggered []models.Alert)
}

// TickResult summarizes one sweep. It is ephemeral; nothing about the sweep
// itself is persisted.
type TickResult struct {
	StocksChecked   int       `json:"stocksChecked"`
	PricesUpdated   int       `json:"pricesUpdated"`
	AlertsTriggered int       `json:"alertsTriggered"`
	Timestamp       time.Time `json:"timestamp"`
}

// TickRunner executes the scheduled alert sweep: refresh prices for every
// stock that has an active alert, then evaluate those alerts. Stocks are
// processed sequentially with a fixed pacing delay as backpressure against
// shared, quota-limited provider APIs; per-stock failures are skipped, never
// fatal.
type TickRunner struct {
	db          *gorm.DB
	market      QuoteSource
	store       *prices.Store
	evaluator   *alerts.Evaluator
	pacingDelay time.Duration
	alertSink   AlertSink
}

// NewTickRunner creates a tick runner
func NewTickRunner(db *gorm.DB, market QuoteSource, store *prices.Store, evaluator *alerts.Evaluator, pacingDelay time.Duration) *TickRunner {
	if pacingDelay <= 0 {
		pacingDelay = 250 * time.Millisecond
	}
	return &TickRunner{
		db:          db,
		market:      market,
		store:       store,
		evaluator:   evaluator,
		pacingDelay: pacingDelay,
	}
}

// SetAlertSink registers an observer for triggered alerts
func (r *TickRunner) SetAlertSink(sink AlertSink) {
	r.alertSink = sink
}

// alertStock is one (stock_id, symbol) pair referenced by active alerts
type alertStock struct {
	StockID uint
	Symbol  string
}

// RunTick performs one sweep and returns its summary. Only infrastructure
// failures (the initial stock query) return an error; everything per-stock is
// counted and skipped.
func (r *TickRunner) RunTick(ctx context.Context) (*TickResult, error) {
	result := &TickResult{Timestamp: time.Now().UTC()}

	stocks, err := r.alertRelevantStocks(ctx)
	if err != nil {
		return nil, err
	}
	if len(stocks) == 0 {
		log.Println("Alert tick: no stocks with active alerts")
		return result, nil
	}

	log.Printf("Alert tick: checking %d stocks", len(stocks))

	for i, stock := range stocks {
		result.StocksChecked++

		if updated, triggered := r.processStock(ctx, stock); updated {
			result.PricesUpdated++
			result.AlertsTriggered += triggered
		}

		// pacing between stocks, not after the last one
		if i < len(stocks)-1 {
			select {
			case <-time.After(r.pacingDelay):
			case <-ctx.Done():
				log.Printf("Alert tick interrupted after %d stocks: %v", result.StocksChecked, ctx.Err())
				return result, nil
			}
		}
	}

	log.Printf("Alert tick completed: checked=%d updated=%d triggered=%d",
		result.StocksChecked, result.PricesUpdated, result.AlertsTriggered)
	return result, nil
}

// processStock refreshes one stock's price and evaluates its alerts
func (r *TickRunner) processStock(ctx context.Context, stock alertStock) (updated bool, triggered int) {
	quoteCtx, cancel := context.WithTimeout(ctx, quoteTimeout)
	quote, err := r.market.GetQuote(quoteCtx, stock.Symbol, providers.Options{})
	cancel()
	if err != nil {
		log.Printf("Skipping %s this tick: %v", stock.Symbol, err)
		return false, 0
	}
	if quote == nil {
		log.Printf("Skipping %s this tick: no quote available", stock.Symbol)
		return false, 0
	}

	_, err = r.store.CreatePrice(ctx, stock.StockID, prices.SnapshotFields{
		Price:         quote.Price,
		Change:        quote.Change,
		ChangePercent: quote.ChangePercent,
		Volume:        quote.Volume,
		MarketCap:     quote.MarketCap,
		Week52Low:     quote.Week52Low,
		Week52High:    quote.Week52High,
		Source:        quote.Source,
	}, true)
	if err != nil {
		// rollback already happened; the previous latest price stays good
		log.Printf("Failed to persist price for %s: %v", stock.Symbol, err)
		return false, 0
	}

	hit, err := r.evaluator.CheckStockAlerts(ctx, stock.StockID)
	if err != nil {
		log.Printf("Alert evaluation failed for %s: %v", stock.Symbol, err)
		return true, 0
	}
	if len(hit) > 0 && r.alertSink != nil {
		r.alertSink.AlertsTriggered(hit)
	}
	return true, len(hit)
}

// alertRelevantStocks queries the distinct stocks referenced by active alerts
func (r *TickRunner) alertRelevantStocks(ctx context.Context) ([]alertStock, error) {
	var stocks []alertStock
	err := r.db.WithContext(ctx).Model(&models.Alert{}).
		Select("DISTINCT alerts.stock_id, stocks.symbol").
		Joins("JOIN stocks ON stocks.id = alerts.stock_id").
		Where("alerts.is_active = ?", true).
		Scan(&stocks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query alert-relevant stocks: %w", err)
	}
	return stocks, nil
}
