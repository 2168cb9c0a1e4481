package jobs

import (
	"context"
	"fmt"
	"log"

	"stocktracker_backend/models"

	"gorm.io/gorm"
)

// Fix-orphans actions
const (
	OrphanActionDryRun     = "dryRun"
	OrphanActionDeactivate = "deactivate"
	OrphanActionDelete     = "delete"
)

// OrphanReport summarizes one fix-orphans run
type OrphanReport struct {
	Action                  string `json:"action"`
	OrphanedPortfolioItems  int64  `json:"orphanedPortfolioItems"`
	OrphanedAlerts          int64  `json:"orphanedAlerts"`
	PortfolioItemsProcessed int64  `json:"portfolioItemsProcessed"`
	AlertsProcessed         int64  `json:"alertsProcessed"`
}

// Maintenance repairs rows left pointing at deleted stocks. Portfolio items
// have no inactive state, so "deactivate" only touches alerts and leaves the
// items for a later delete run.
type Maintenance struct {
	db *gorm.DB
}

// NewMaintenance creates a maintenance job runner
func NewMaintenance(db *gorm.DB) *Maintenance {
	return &Maintenance{db: db}
}

// FixOrphans finds portfolio items and alerts referencing missing stocks and
// applies the requested action
func (m *Maintenance) FixOrphans(ctx context.Context, action string) (*OrphanReport, error) {
	switch action {
	case OrphanActionDryRun, OrphanActionDeactivate, OrphanActionDelete:
	default:
		return nil, fmt.Errorf("unknown fix-orphans action: %q", action)
	}

	report := &OrphanReport{Action: action}
	db := m.db.WithContext(ctx)

	orphanedItems := db.Model(&models.PortfolioItem{}).
		Where("stock_id NOT IN (?)", db.Model(&models.Stock{}).Select("id"))
	if err := orphanedItems.Count(&report.OrphanedPortfolioItems).Error; err != nil {
		return nil, fmt.Errorf("failed to count orphaned portfolio items: %w", err)
	}

	orphanedAlerts := db.Model(&models.Alert{}).
		Where("stock_id NOT IN (?)", db.Model(&models.Stock{}).Select("id"))
	if err := orphanedAlerts.Count(&report.OrphanedAlerts).Error; err != nil {
		return nil, fmt.Errorf("failed to count orphaned alerts: %w", err)
	}

	switch action {
	case OrphanActionDryRun:
		// counts only

	case OrphanActionDeactivate:
		res := db.Model(&models.Alert{}).
			Where("stock_id NOT IN (?) AND is_active = ?", db.Model(&models.Stock{}).Select("id"), true).
			Update("is_active", false)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to deactivate orphaned alerts: %w", res.Error)
		}
		report.AlertsProcessed = res.RowsAffected

	case OrphanActionDelete:
		res := db.Where("stock_id NOT IN (?)", db.Model(&models.Stock{}).Select("id")).
			Delete(&models.Alert{})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to delete orphaned alerts: %w", res.Error)
		}
		report.AlertsProcessed = res.RowsAffected

		res = db.Where("stock_id NOT IN (?)", db.Model(&models.Stock{}).Select("id")).
			Delete(&models.PortfolioItem{})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to delete orphaned portfolio items: %w", res.Error)
		}
		report.PortfolioItemsProcessed = res.RowsAffected
	}

	log.Printf("Fix-orphans (%s): items=%d alerts=%d processed=%d/%d",
		action, report.OrphanedPortfolioItems, report.OrphanedAlerts,
		report.PortfolioItemsProcessed, report.AlertsProcessed)
	return report, nil
}
