package models

import (
	"time"

	"gorm.io/gorm"
)

// Provider name constants
const (
	ProviderAlphaVantage = "alphavantage"
	ProviderYahoo        = "yahoo"
)

// ApiCredential is one provider API key in the pool. UserID is nil for keys
// in the shared pool and set for keys supplied by a single user. Key material
// is sealed before it reaches the database; the credentials service holds the
// sealing secret.
//
// Usage counters are bumped with a conditional UPDATE so that they never pass
// their limits even with several request handlers racing on the same row.
// RequestsUsed counts the current minute, DailyRequestsUsed the current UTC
// day; both are implicitly stale (and treated as zero) once LastUsedAt falls
// outside the window.
type ApiCredential struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Provider          string     `gorm:"index:idx_provider_user" json:"provider"`
	KeyCiphertext     string     `gorm:"not null" json:"-"`
	UserID            *uint      `gorm:"index:idx_provider_user" json:"user_id"`
	RequestsUsed      int        `gorm:"default:0" json:"requests_used"`
	DailyRequestsUsed int        `gorm:"default:0" json:"daily_requests_used"`
	RequestLimit      int        `json:"request_limit"`
	DailyRequestLimit int        `json:"daily_request_limit"`
	LastUsedAt        *time.Time `json:"last_used_at"`
	ExpiresAt         *time.Time `json:"expires_at"`
	IsActive          bool       `gorm:"default:true" json:"is_active"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// MigrateCredentialModels runs database migrations for credential models
func MigrateCredentialModels(db *gorm.DB) error {
	return db.AutoMigrate(&ApiCredential{})
}
