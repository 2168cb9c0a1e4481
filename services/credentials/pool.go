package credentials

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"stocktracker_backend/models"

	"gorm.io/gorm"
)

// ErrNoCapacity is returned when no eligible credential remains for a
// provider. Callers treat it as a signal to fall back to another provider,
// not as a retryable failure.
var ErrNoCapacity = errors.New("credential pool: no capacity")

// LeasedKey is a credential selected for one outbound provider call, with the
// key material unsealed for use.
type LeasedKey struct {
	Credential models.ApiCredential
	Key        string
}

// PoolOptions configures a credential pool
type PoolOptions struct {
	Secret              string // seals key material at rest
	RequestLimit        int    // default per-minute limit for seeded keys
	DailyRequestLimit   int    // default per-day limit for seeded keys
	AutoRegisterEnabled bool
	DenyList            []string
	SignupURL           string
}

// Pool manages provider API credentials (shared pool plus per-user keys) and
// enforces per-credential minute/day quotas. The counters live in the
// database so several instances can share one pool; all counter movement goes
// through conditional UPDATEs.
type Pool struct {
	db     *gorm.DB
	sealer *sealer
	opts   PoolOptions
}

// NewPool creates a credential pool backed by db
func NewPool(db *gorm.DB, opts PoolOptions) *Pool {
	if opts.RequestLimit <= 0 {
		opts.RequestLimit = 5
	}
	if opts.DailyRequestLimit <= 0 {
		opts.DailyRequestLimit = 500
	}
	return &Pool{
		db:     db,
		sealer: newSealer(opts.Secret),
		opts:   opts,
	}
}

// SeedSharedPool inserts the configured seed keys for a provider into the
// shared pool. Seeding is skipped once the provider already has shared keys,
// so restarts do not duplicate rows.
func (p *Pool) SeedSharedPool(ctx context.Context, provider string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	var existing int64
	if err := p.db.WithContext(ctx).Model(&models.ApiCredential{}).
		Where("provider = ? AND user_id IS NULL", provider).
		Count(&existing).Error; err != nil {
		return fmt.Errorf("failed to count shared credentials: %w", err)
	}
	if existing > 0 {
		return nil
	}

	for _, key := range keys {
		if err := p.AddKey(ctx, provider, key, nil); err != nil {
			return err
		}
	}
	log.Printf("Seeded %d shared %s credentials", len(keys), provider)
	return nil
}

// AddKey seals a key and adds it to the pool. userID is nil for the shared
// pool.
func (p *Pool) AddKey(ctx context.Context, provider, key string, userID *uint) error {
	sealed, err := p.sealer.Seal(key)
	if err != nil {
		return fmt.Errorf("failed to seal credential: %w", err)
	}

	cred := models.ApiCredential{
		Provider:          provider,
		KeyCiphertext:     sealed,
		UserID:            userID,
		RequestLimit:      p.opts.RequestLimit,
		DailyRequestLimit: p.opts.DailyRequestLimit,
		IsActive:          true,
	}
	if err := p.db.WithContext(ctx).Create(&cred).Error; err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// AcquireKey selects a usable credential for provider. A key owned by userID
// is preferred when one has quota left; otherwise the least-recently-used
// eligible key from the shared pool is chosen. Returns ErrNoCapacity when
// nothing is eligible.
func (p *Pool) AcquireKey(ctx context.Context, provider string, userID *uint) (*LeasedKey, error) {
	now := time.Now().UTC()

	var cred models.ApiCredential
	found := false

	if userID != nil {
		err := p.eligible(p.db.WithContext(ctx), now).
			Where("provider = ? AND user_id = ?", provider, *userID).
			Order("last_used_at IS NOT NULL, last_used_at ASC").
			First(&cred).Error
		if err == nil {
			found = true
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to query user credentials: %w", err)
		}
	}

	if !found {
		err := p.eligible(p.db.WithContext(ctx), now).
			Where("provider = ? AND user_id IS NULL", provider).
			Order("last_used_at IS NOT NULL, last_used_at ASC").
			First(&cred).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCapacity
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query shared credentials: %w", err)
		}
	}

	key, err := p.sealer.Open(cred.KeyCiphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal credential %d: %w", cred.ID, err)
	}

	return &LeasedKey{Credential: cred, Key: key}, nil
}

// RecordUsage bumps both usage counters for a credential in one conditional
// UPDATE. Counters whose window has passed since last_used_at restart from
// zero inside the same statement. When the row was raced to its limit by a
// concurrent caller, zero rows match and ErrNoCapacity is returned.
func (p *Pool) RecordUsage(ctx context.Context, cred *models.ApiCredential) error {
	now := time.Now().UTC()
	minuteStart := now.Truncate(time.Minute)
	dayStart := startOfUTCDay(now)

	res := p.db.WithContext(ctx).Model(&models.ApiCredential{}).
		Where("id = ?", cred.ID).
		Where("requests_used < request_limit OR last_used_at IS NULL OR last_used_at < ?", minuteStart).
		Where("daily_requests_used < daily_request_limit OR last_used_at IS NULL OR last_used_at < ?", dayStart).
		Updates(map[string]interface{}{
			"requests_used": gorm.Expr(
				"CASE WHEN last_used_at IS NULL OR last_used_at < ? THEN 1 ELSE requests_used + 1 END", minuteStart),
			"daily_requests_used": gorm.Expr(
				"CASE WHEN last_used_at IS NULL OR last_used_at < ? THEN 1 ELSE daily_requests_used + 1 END", dayStart),
			"last_used_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to record credential usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoCapacity
	}
	return nil
}

// ResetDailyCounters zeroes daily counters whose window has passed. The
// conditional reset in RecordUsage already keeps counters honest; this sweep
// just keeps the rows readable for operators.
func (p *Pool) ResetDailyCounters(ctx context.Context) error {
	dayStart := startOfUTCDay(time.Now().UTC())

	res := p.db.WithContext(ctx).Model(&models.ApiCredential{}).
		Where("daily_requests_used > 0 AND (last_used_at IS NULL OR last_used_at < ?)", dayStart).
		Updates(map[string]interface{}{
			"daily_requests_used": 0,
			"requests_used":       0,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reset daily counters: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("Reset daily usage on %d credentials", res.RowsAffected)
	}
	return nil
}

// eligible narrows a query to credentials that may serve a call right now: a
// credential is usable when it is active, unexpired, and each counter is
// either below its limit or stale (last use before the window started).
func (p *Pool) eligible(db *gorm.DB, now time.Time) *gorm.DB {
	minuteStart := now.Truncate(time.Minute)
	dayStart := startOfUTCDay(now)

	return db.Model(&models.ApiCredential{}).
		Where("is_active = ?", true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where("requests_used < request_limit OR last_used_at IS NULL OR last_used_at < ?", minuteStart).
		Where("daily_requests_used < daily_request_limit OR last_used_at IS NULL OR last_used_at < ?", dayStart)
}

// startOfUTCDay returns midnight UTC of t's day
func startOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
