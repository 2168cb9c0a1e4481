package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Stock represents a tracked stock symbol
type Stock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"uniqueIndex;not null" json:"symbol"`
	Name      string    `json:"name"`
	Exchange  string    `json:"exchange"`
	Currency  string    `json:"currency"`
	Status    string    `gorm:"default:'active'" json:"status"` // active, delisted, suspended
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PriceSnapshot is a point-in-time price for a stock. At most one row per
// stock carries is_latest=true; PriceStore maintains that flag inside a
// transaction.
type PriceSnapshot struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	StockID       uint            `gorm:"index:idx_stock_latest" json:"stock_id"`
	Stock         Stock           `gorm:"foreignKey:StockID" json:"stock,omitempty"`
	Price         decimal.Decimal `gorm:"type:decimal(15,4)" json:"price"`
	Change        decimal.Decimal `gorm:"type:decimal(15,4)" json:"change"`
	ChangePercent decimal.Decimal `gorm:"type:decimal(10,4)" json:"change_percent"`
	Volume        int64           `json:"volume"`
	MarketCap     decimal.Decimal `gorm:"type:decimal(20,2)" json:"market_cap"`
	Week52Low     decimal.Decimal `gorm:"type:decimal(15,4)" json:"week52_low"`
	Week52High    decimal.Decimal `gorm:"type:decimal(15,4)" json:"week52_high"`
	Source        string          `json:"source"` // alphavantage, yahoo
	IsLatest      bool            `gorm:"index:idx_stock_latest;default:false" json:"is_latest"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MigrateStockModels runs database migrations for stock-related models
func MigrateStockModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Stock{},
		&PriceSnapshot{},
	)
}
