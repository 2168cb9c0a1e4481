package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User represents an account owning portfolios and alerts. Authentication
// lives outside this service; only the fields the alert engine needs are kept.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Email       string     `gorm:"uniqueIndex;not null" json:"email"`
	FullName    string     `json:"full_name"`
	IsActive    bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PortfolioItem represents a stock position held by a user
type PortfolioItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"index" json:"user_id"`
	User      User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	StockID   uint            `gorm:"index" json:"stock_id"`
	Stock     Stock           `gorm:"foreignKey:StockID" json:"stock,omitempty"`
	GroupName string          `json:"group_name"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4)" json:"quantity"`
	BuyPrice  decimal.Decimal `gorm:"type:decimal(15,4)" json:"buy_price"`
	Notes     string          `json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MigrateUserModels runs database migrations for user-related models
func MigrateUserModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&PortfolioItem{},
	)
}
