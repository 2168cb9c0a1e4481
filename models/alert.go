package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Alert type constants
const (
	AlertTypePriceBelow    = "price_below"
	AlertTypePriceAbove    = "price_above"
	AlertTypeTargetReached = "target_reached"
	AlertTypeCutoffReached = "cutoff_reached"
)

// Alert represents a price alert for a user. Rows are created and deleted by
// the user-facing CRUD; the trigger fields (triggered_at, current_price,
// email_sent, push_sent) are owned by the alert evaluator.
type Alert struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       uint            `gorm:"index" json:"user_id"`
	User         User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	StockID      uint            `gorm:"index" json:"stock_id"`
	Stock        Stock           `gorm:"foreignKey:StockID" json:"stock,omitempty"`
	AlertType    string          `json:"alert_type"` // price_below, price_above, target_reached, cutoff_reached
	TargetPrice  decimal.Decimal `gorm:"type:decimal(15,4)" json:"target_price"`
	CurrentPrice decimal.Decimal `gorm:"type:decimal(15,4)" json:"current_price"` // last observed price at trigger
	IsActive     bool            `gorm:"default:true" json:"is_active"`
	IsRead       bool            `gorm:"default:false" json:"is_read"`
	TriggeredAt  *time.Time      `json:"triggered_at"`
	EmailSent    bool            `gorm:"default:false" json:"email_sent"`
	EmailSentAt  *time.Time      `json:"email_sent_at"`
	PushSent     bool            `gorm:"default:false" json:"push_sent"`
	PushSentAt   *time.Time      `json:"push_sent_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ValidAlertTypes returns the accepted alert types
func ValidAlertTypes() []string {
	return []string{
		AlertTypePriceBelow,
		AlertTypePriceAbove,
		AlertTypeTargetReached,
		AlertTypeCutoffReached,
	}
}

// IsValidAlertType checks if the alert type is valid
func IsValidAlertType(alertType string) bool {
	for _, valid := range ValidAlertTypes() {
		if alertType == valid {
			return true
		}
	}
	return false
}

// MigrateAlertModels runs database migrations for alert-related models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(&Alert{})
}
