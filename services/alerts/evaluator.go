package alerts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"stocktracker_backend/models"
	"stocktracker_backend/services/notify"
	"stocktracker_backend/services/prices"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Evaluator compares latest prices against active alerts and records
// triggers. Alerts stay active after triggering (level-triggered), so a
// condition that keeps holding re-fires on every tick.
type Evaluator struct {
	db       *gorm.DB
	store    *prices.Store
	notifier notify.Notifier
}

// NewEvaluator creates an alert evaluator
func NewEvaluator(db *gorm.DB, store *prices.Store, notifier notify.Notifier) *Evaluator {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Evaluator{db: db, store: store, notifier: notifier}
}

// CheckStockAlerts evaluates every active alert for one stock against its
// latest price and returns the alerts that triggered. A stock without a
// snapshot yet triggers nothing. Per-alert failures are logged and skipped;
// they never abort the remaining alerts.
func (e *Evaluator) CheckStockAlerts(ctx context.Context, stockID uint) ([]models.Alert, error) {
	snapshot, err := e.store.GetLatestPrice(ctx, stockID)
	if errors.Is(err, prices.ErrSnapshotNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var active []models.Alert
	if err := e.db.WithContext(ctx).
		Preload("User").
		Where("stock_id = ? AND is_active = ?", stockID, true).
		Find(&active).Error; err != nil {
		return nil, fmt.Errorf("failed to load alerts for stock %d: %w", stockID, err)
	}

	return e.evaluate(ctx, active, map[uint]*models.PriceSnapshot{stockID: snapshot}), nil
}

// CheckUserAlerts evaluates all of one user's active alerts against the
// latest prices, for the on-demand "check now" endpoint. Same trigger
// semantics and error isolation as the scheduled sweep.
func (e *Evaluator) CheckUserAlerts(ctx context.Context, userID uint) ([]models.Alert, error) {
	var active []models.Alert
	if err := e.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&active).Error; err != nil {
		return nil, fmt.Errorf("failed to load alerts for user %d: %w", userID, err)
	}
	if len(active) == 0 {
		return nil, nil
	}

	stockIDs := make([]uint, 0, len(active))
	seen := make(map[uint]bool)
	for _, alert := range active {
		if !seen[alert.StockID] {
			seen[alert.StockID] = true
			stockIDs = append(stockIDs, alert.StockID)
		}
	}

	latest, err := e.store.GetMultipleLatestPrices(ctx, stockIDs)
	if err != nil {
		return nil, err
	}

	return e.evaluate(ctx, active, latest), nil
}

// evaluate runs the type comparison for each alert and persists triggers
func (e *Evaluator) evaluate(ctx context.Context, alerts []models.Alert, latest map[uint]*models.PriceSnapshot) []models.Alert {
	var triggered []models.Alert
	for i := range alerts {
		alert := &alerts[i]
		snapshot, ok := latest[alert.StockID]
		if !ok {
			continue
		}
		if !shouldTrigger(alert.AlertType, snapshot.Price, alert.TargetPrice) {
			continue
		}

		if err := e.recordTrigger(ctx, alert, snapshot.Price); err != nil {
			log.Printf("Error recording trigger for alert %d: %v", alert.ID, err)
			continue
		}

		e.dispatch(ctx, alert, snapshot)
		triggered = append(triggered, *alert)
	}
	return triggered
}

// shouldTrigger applies the comparison for an alert type. target_reached and
// cutoff_reached reuse the above/below comparisons against a user-chosen
// reference price; only the label differs.
func shouldTrigger(alertType string, current, target decimal.Decimal) bool {
	switch alertType {
	case models.AlertTypePriceBelow, models.AlertTypeCutoffReached:
		return current.LessThanOrEqual(target)
	case models.AlertTypePriceAbove, models.AlertTypeTargetReached:
		return current.GreaterThanOrEqual(target)
	default:
		return false
	}
}

// recordTrigger stamps the trigger fields. is_active is deliberately left
// alone; deactivation is the user's call.
func (e *Evaluator) recordTrigger(ctx context.Context, alert *models.Alert, price decimal.Decimal) error {
	now := time.Now().UTC()
	if err := e.db.WithContext(ctx).Model(alert).Updates(map[string]interface{}{
		"triggered_at":  now,
		"current_price": price,
		"is_read":       false,
	}).Error; err != nil {
		return err
	}
	alert.TriggeredAt = &now
	alert.CurrentPrice = price
	alert.IsRead = false
	return nil
}

// dispatch hands a triggered alert to the notification collaborator. Delivery
// failures are logged, never fatal.
func (e *Evaluator) dispatch(ctx context.Context, alert *models.Alert, snapshot *models.PriceSnapshot) {
	recipient := alert.User.Email
	if recipient == "" {
		return
	}

	subject := fmt.Sprintf("Price alert: %s", alert.AlertType)
	message := fmt.Sprintf("Stock %d hit %s (target %s)",
		alert.StockID, snapshot.Price.String(), alert.TargetPrice.String())

	if err := e.notifier.Send(recipient, subject, message); err != nil {
		log.Printf("Notification failed for alert %d: %v", alert.ID, err)
		return
	}

	now := time.Now().UTC()
	if err := e.db.WithContext(ctx).Model(alert).Updates(map[string]interface{}{
		"email_sent":    true,
		"email_sent_at": now,
		"push_sent":     true,
		"push_sent_at":  now,
	}).Error; err != nil {
		log.Printf("Error recording notification state for alert %d: %v", alert.ID, err)
		return
	}
	alert.EmailSent = true
	alert.EmailSentAt = &now
	alert.PushSent = true
	alert.PushSentAt = &now
}
