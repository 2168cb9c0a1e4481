package prices

import (
	"context"
	"errors"
	"fmt"
	"log"

	"stocktracker_backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrSnapshotNotFound is returned when a stock has no latest snapshot
var ErrSnapshotNotFound = errors.New("price snapshot not found")

// SnapshotSink observes snapshots after they commit. Sinks are best-effort:
// the websocket hub and the Mongo archive both live behind this interface and
// neither can fail a write.
type SnapshotSink interface {
	SnapshotStored(snapshot *models.PriceSnapshot)
}

// SnapshotFields carries the normalized quote values persisted for a stock
type SnapshotFields struct {
	Price         decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	Volume        int64
	MarketCap     decimal.Decimal
	Week52Low     decimal.Decimal
	Week52High    decimal.Decimal
	Source        string
}

// Store persists price snapshots under the invariant that each stock has
// exactly one is_latest=true row at any observable instant. The flag flip and
// the insert share one transaction.
type Store struct {
	db    *gorm.DB
	sinks []SnapshotSink
}

// NewStore creates a price store backed by db
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AddSink registers a post-commit snapshot observer
func (s *Store) AddSink(sink SnapshotSink) {
	s.sinks = append(s.sinks, sink)
}

// CreatePrice inserts a new snapshot for stockID. When isLatest is set, every
// existing latest row for the stock is demoted first; both steps commit or
// roll back together so no reader ever sees zero or two latest rows.
func (s *Store) CreatePrice(ctx context.Context, stockID uint, fields SnapshotFields, isLatest bool) (*models.PriceSnapshot, error) {
	snapshot := &models.PriceSnapshot{
		StockID:       stockID,
		Price:         fields.Price,
		Change:        fields.Change,
		ChangePercent: fields.ChangePercent,
		Volume:        fields.Volume,
		MarketCap:     fields.MarketCap,
		Week52Low:     fields.Week52Low,
		Week52High:    fields.Week52High,
		Source:        fields.Source,
		IsLatest:      isLatest,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if isLatest {
			if err := tx.Model(&models.PriceSnapshot{}).
				Where("stock_id = ? AND is_latest = ?", stockID, true).
				Update("is_latest", false).Error; err != nil {
				return fmt.Errorf("failed to demote previous latest price: %w", err)
			}
		}
		if err := tx.Create(snapshot).Error; err != nil {
			return fmt.Errorf("failed to insert price snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, sink := range s.sinks {
		sink.SnapshotStored(snapshot)
	}
	return snapshot, nil
}

// GetLatestPrice returns the single is_latest row for a stock
func (s *Store) GetLatestPrice(ctx context.Context, stockID uint) (*models.PriceSnapshot, error) {
	var snapshot models.PriceSnapshot
	err := s.db.WithContext(ctx).
		Where("stock_id = ? AND is_latest = ?", stockID, true).
		First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest price: %w", err)
	}
	return &snapshot, nil
}

// GetMultipleLatestPrices returns the latest rows for a set of stocks keyed
// by stock ID. Stocks without a snapshot are simply absent from the map.
func (s *Store) GetMultipleLatestPrices(ctx context.Context, stockIDs []uint) (map[uint]*models.PriceSnapshot, error) {
	result := make(map[uint]*models.PriceSnapshot, len(stockIDs))
	if len(stockIDs) == 0 {
		return result, nil
	}

	var snapshots []models.PriceSnapshot
	err := s.db.WithContext(ctx).
		Where("stock_id IN ? AND is_latest = ?", stockIDs, true).
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load latest prices: %w", err)
	}

	for i := range snapshots {
		result[snapshots[i].StockID] = &snapshots[i]
	}
	return result, nil
}

// GetHistory returns up to limit historical snapshots for a stock, newest
// first
func (s *Store) GetHistory(ctx context.Context, stockID uint, limit int) ([]models.PriceSnapshot, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var snapshots []models.PriceSnapshot
	err := s.db.WithContext(ctx).
		Where("stock_id = ?", stockID).
		Order("created_at DESC").
		Limit(limit).
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load price history: %w", err)
	}
	return snapshots, nil
}

// UpdateLatestPriceFlag reassigns which historical row is the latest one for
// a stock, under the same transactional guarantee as CreatePrice. Used for
// corrections when a bad snapshot slipped in.
func (s *Store) UpdateLatestPriceFlag(ctx context.Context, stockID, priceID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.PriceSnapshot
		if err := tx.Where("id = ? AND stock_id = ?", priceID, stockID).First(&target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSnapshotNotFound
			}
			return fmt.Errorf("failed to load snapshot %d: %w", priceID, err)
		}

		if err := tx.Model(&models.PriceSnapshot{}).
			Where("stock_id = ? AND is_latest = ?", stockID, true).
			Update("is_latest", false).Error; err != nil {
			return fmt.Errorf("failed to demote previous latest price: %w", err)
		}

		if err := tx.Model(&models.PriceSnapshot{}).
			Where("id = ?", priceID).
			Update("is_latest", true).Error; err != nil {
			return fmt.Errorf("failed to promote snapshot %d: %w", priceID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("Reassigned latest price for stock %d to snapshot %d", stockID, priceID)
	return nil
}
