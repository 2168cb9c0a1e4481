package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stocktracker_backend/middleware"
	"stocktracker_backend/models"
	"stocktracker_backend/services/alerts"
	"stocktracker_backend/services/jobs"
	"stocktracker_backend/services/prices"
	"stocktracker_backend/services/providers"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateStockModels(db))
	require.NoError(t, models.MigrateUserModels(db))
	require.NoError(t, models.MigrateAlertModels(db))
	t.Cleanup(func() {
		db.Exec("DELETE FROM alerts")
		db.Exec("DELETE FROM portfolio_items")
		db.Exec("DELETE FROM price_snapshots")
		db.Exec("DELETE FROM stocks")
		db.Exec("DELETE FROM users")
	})
	return db
}

type staticQuotes map[string]*providers.Quote

func (s staticQuotes) GetQuote(ctx context.Context, symbol string, opts providers.Options) (*providers.Quote, error) {
	return s[symbol], nil
}

func newJobsRouter(t *testing.T, db *gorm.DB, quotes staticQuotes, cronSecret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := prices.NewStore(db)
	evaluator := alerts.NewEvaluator(db, store, nil)
	tick := jobs.NewTickRunner(db, quotes, store, evaluator, time.Millisecond)
	jc := NewJobsController(tick, jobs.NewMaintenance(db))

	router := gin.New()
	group := router.Group("/jobs")
	group.Use(middleware.CronAuthMiddleware(cronSecret))
	group.GET("/alerts-tick", jc.AlertsTick)
	group.GET("/maintenance/fix-orphans", jc.FixOrphans)
	return router
}

func seedAlertedStock(t *testing.T, db *gorm.DB, symbol, alertType, target string) *models.Stock {
	t.Helper()
	user := &models.User{Email: symbol + "@example.com"}
	require.NoError(t, db.Create(user).Error)
	stock := &models.Stock{Symbol: symbol, Name: symbol + " Inc"}
	require.NoError(t, db.Create(stock).Error)
	require.NoError(t, db.Create(&models.Alert{
		UserID:      user.ID,
		StockID:     stock.ID,
		AlertType:   alertType,
		TargetPrice: decimal.RequireFromString(target),
		IsActive:    true,
	}).Error)
	return stock
}

func TestAlertsTickEndpoint(t *testing.T) {
	db := setupTestDB(t)
	seedAlertedStock(t, db, "AAPL", models.AlertTypeCutoffReached, "50")
	quotes := staticQuotes{
		"AAPL": {Symbol: "AAPL", Price: decimal.RequireFromString("48"), Source: "yahoo"},
	}
	router := newJobsRouter(t, db, quotes, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/alerts-tick", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			StocksChecked   int    `json:"stocksChecked"`
			PricesUpdated   int    `json:"pricesUpdated"`
			AlertsTriggered int    `json:"alertsTriggered"`
			Timestamp       string `json:"timestamp"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.Data.StocksChecked)
	assert.Equal(t, 1, body.Data.PricesUpdated)
	assert.Equal(t, 1, body.Data.AlertsTriggered)

	_, err := time.Parse(time.RFC3339, body.Data.Timestamp)
	assert.NoError(t, err)
}

func TestAlertsTickRequiresCronSecret(t *testing.T) {
	db := setupTestDB(t)
	router := newJobsRouter(t, db, staticQuotes{}, "s3cret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/alerts-tick", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/jobs/alerts-tick", nil)
	req.Header.Set("x-cron-secret", "s3cret")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAlertsTickCountsSkippedStocks(t *testing.T) {
	db := setupTestDB(t)
	seedAlertedStock(t, db, "AAPL", models.AlertTypePriceBelow, "100")
	seedAlertedStock(t, db, "GONE", models.AlertTypePriceBelow, "100")
	quotes := staticQuotes{
		"AAPL": {Symbol: "AAPL", Price: decimal.RequireFromString("150"), Source: "yahoo"},
		// GONE is unknown to every provider
	}
	router := newJobsRouter(t, db, quotes, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/alerts-tick", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			StocksChecked int `json:"stocksChecked"`
			PricesUpdated int `json:"pricesUpdated"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.StocksChecked)
	assert.Equal(t, 1, body.Data.PricesUpdated)
}

func TestFixOrphansEndpoint(t *testing.T) {
	db := setupTestDB(t)
	stock := seedAlertedStock(t, db, "GONE", models.AlertTypePriceBelow, "100")
	require.NoError(t, db.Unscoped().Delete(stock).Error)
	router := newJobsRouter(t, db, staticQuotes{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/maintenance/fix-orphans", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool              `json:"success"`
		Data    jobs.OrphanReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, jobs.OrphanActionDryRun, body.Data.Action)
	assert.Equal(t, int64(1), body.Data.OrphanedAlerts)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/jobs/maintenance/fix-orphans?action=deactivate", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var active int64
	require.NoError(t, db.Model(&models.Alert{}).Where("is_active = ?", true).Count(&active).Error)
	assert.Equal(t, int64(0), active)
}

func TestFixOrphansRejectsBadAction(t *testing.T) {
	db := setupTestDB(t)
	router := newJobsRouter(t, db, staticQuotes{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/maintenance/fix-orphans?action=nuke", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
