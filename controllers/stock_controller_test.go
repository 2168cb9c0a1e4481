package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"stocktracker_backend/models"
	"stocktracker_backend/services/prices"
	"stocktracker_backend/services/providers"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// cannedProvider answers from fixed values for controller tests
type cannedProvider struct {
	quote   *providers.Quote
	matches []providers.SymbolMatch
	err     error
}

func (p *cannedProvider) Name() string { return "canned" }

func (p *cannedProvider) GetQuote(ctx context.Context, symbol string, opts providers.Options) (*providers.Quote, error) {
	return p.quote, p.err
}

func (p *cannedProvider) GetHistoricalData(ctx context.Context, symbol, period, interval string, opts providers.Options) ([]providers.Candle, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []providers.Candle{{Close: decimal.RequireFromString("150")}}, nil
}

func (p *cannedProvider) SearchSymbols(ctx context.Context, query string, opts providers.Options) ([]providers.SymbolMatch, error) {
	return p.matches, p.err
}

func newStockRouter(t *testing.T, db *gorm.DB, provider *cannedProvider) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sc := NewStockController(db, providers.NewMarketDataService(provider), prices.NewStore(db))

	router := gin.New()
	group := router.Group("/api/v1/stocks")
	group.GET("/search", sc.SearchStocks)
	group.GET("/:symbol/quote", sc.GetQuote)
	group.GET("/:symbol/history", sc.GetHistory)
	group.GET("/:symbol/prices", sc.GetStoredPrices)
	return router
}

func TestGetQuoteEndpoint(t *testing.T) {
	db := setupTestDB(t)
	provider := &cannedProvider{
		quote: &providers.Quote{Symbol: "AAPL", Price: decimal.RequireFromString("150.25"), Source: "canned"},
	}
	router := newStockRouter(t, db, provider)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks/aapl/quote", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"symbol":"AAPL"`)
}

func TestGetQuoteUnknownSymbol(t *testing.T) {
	db := setupTestDB(t)
	router := newStockRouter(t, db, &cannedProvider{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks/NOPE/quote", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetQuoteProviderDown(t *testing.T) {
	db := setupTestDB(t)
	router := newStockRouter(t, db, &cannedProvider{err: providers.ErrUnavailable})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks/AAPL/quote", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSearchStocksRequiresQuery(t *testing.T) {
	db := setupTestDB(t)
	router := newStockRouter(t, db, &cannedProvider{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks/search", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchStocksEndpoint(t *testing.T) {
	db := setupTestDB(t)
	provider := &cannedProvider{
		matches: []providers.SymbolMatch{{Symbol: "AAPL", Name: "Apple Inc", Source: "canned"}},
	}
	router := newStockRouter(t, db, provider)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks/search?q=apple", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Apple Inc")
}

func TestGetStoredPricesEndpoint(t *testing.T) {
	db := setupTestDB(t)
	stock := &models.Stock{Symbol: "AAPL", Name: "Apple Inc"}
	require.NoError(t, db.Create(stock).Error)

	store := prices.NewStore(db)
	for _, price := range []string{"148", "149", "150.25"} {
		_, err := store.CreatePrice(context.Background(), stock.ID, prices.SnapshotFields{
			Price:  decimal.RequireFromString(price),
			Source: "yahoo",
		}, true)
		require.NoError(t, err)
	}

	router := newStockRouter(t, db, &cannedProvider{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks/AAPL/prices", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data  []models.PriceSnapshot `json:"data"`
		Stock models.Stock           `json:"stock"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 3)
	assert.Equal(t, "AAPL", body.Stock.Symbol)
}

func TestGetStoredPricesUnknownStock(t *testing.T) {
	db := setupTestDB(t)
	router := newStockRouter(t, db, &cannedProvider{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks/NOPE/prices", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
