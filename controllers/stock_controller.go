package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"stocktracker_backend/models"
	"stocktracker_backend/services/prices"
	"stocktracker_backend/services/providers"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StockController handles stock lookup requests backed by the multi-provider
// market data service
type StockController struct {
	db     *gorm.DB
	market *providers.MarketDataService
	store  *prices.Store
}

// NewStockController creates a stock controller
func NewStockController(db *gorm.DB, market *providers.MarketDataService, store *prices.Store) *StockController {
	return &StockController{db: db, market: market, store: store}
}

// SearchStocks searches symbols across providers
// GET /api/v1/stocks/search?q=
func (sc *StockController) SearchStocks(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter q is required"})
		return
	}

	matches, err := sc.market.SearchSymbols(c.Request.Context(), query, providers.Options{})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Symbol search is temporarily unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": matches})
}

// GetQuote fetches a live quote for a symbol
// GET /api/v1/stocks/:symbol/quote
func (sc *StockController) GetQuote(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	quote, err := sc.market.GetQuote(c.Request.Context(), symbol, providers.Options{})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Quote lookup is temporarily unavailable"})
		return
	}
	if quote == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown symbol"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": quote})
}

// GetHistory fetches historical bars for a symbol
// GET /api/v1/stocks/:symbol/history?period=1y&interval=1d
func (sc *StockController) GetHistory(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	period := c.DefaultQuery("period", "1y")
	interval := c.DefaultQuery("interval", "1d")

	candles, err := sc.market.GetHistoricalData(c.Request.Context(), symbol, period, interval, providers.Options{})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Historical data is temporarily unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": candles})
}

// GetStoredPrices returns persisted snapshots for a tracked stock
// GET /api/v1/stocks/:symbol/prices?limit=
func (sc *StockController) GetStoredPrices(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	var stock models.Stock
	if err := sc.db.Where("symbol = ?", symbol).First(&stock).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	snapshots, err := sc.store.GetHistory(c.Request.Context(), stock.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prices"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    snapshots,
		"stock":   stock,
	})
}
