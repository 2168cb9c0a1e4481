package controllers

import (
	"net/http"
	"strconv"

	"stocktracker_backend/middleware"
	"stocktracker_backend/models"
	"stocktracker_backend/services/alerts"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AlertController handles user-facing alert requests. Full alert management
// lives in the app backend; this surface is the thin slice the alert engine
// needs: create, list, delete and the on-demand check.
type AlertController struct {
	db        *gorm.DB
	evaluator *alerts.Evaluator
}

// NewAlertController creates an alert controller
func NewAlertController(db *gorm.DB, evaluator *alerts.Evaluator) *AlertController {
	return &AlertController{db: db, evaluator: evaluator}
}

// createAlertRequest is the payload for creating an alert
type createAlertRequest struct {
	StockID     uint   `json:"stock_id" binding:"required"`
	AlertType   string `json:"alert_type" binding:"required"`
	TargetPrice string `json:"target_price" binding:"required"`
}

// CreateAlert creates a price alert for the authenticated user
// POST /api/v1/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.IsValidAlertType(req.AlertType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert type"})
		return
	}

	target, err := decimal.NewFromString(req.TargetPrice)
	if err != nil || !target.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target price"})
		return
	}

	var stock models.Stock
	if err := ac.db.First(&stock, req.StockID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
		return
	}

	alert := models.Alert{
		UserID:      userID,
		StockID:     req.StockID,
		AlertType:   req.AlertType,
		TargetPrice: target,
		IsActive:    true,
	}
	if err := ac.db.Create(&alert).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": alert})
}

// GetAlerts lists the authenticated user's alerts
// GET /api/v1/alerts
func (ac *AlertController) GetAlerts(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var userAlerts []models.Alert
	query := ac.db.Where("user_id = ?", userID).Order("created_at DESC")
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&userAlerts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": userAlerts})
}

// DeleteAlert removes one of the authenticated user's alerts
// DELETE /api/v1/alerts/:id
func (ac *AlertController) DeleteAlert(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	alertID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	res := ac.db.Where("id = ? AND user_id = ?", alertID, userID).Delete(&models.Alert{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CheckNow evaluates the authenticated user's alerts against the latest
// stored prices
// POST /api/v1/alerts/check
func (ac *AlertController) CheckNow(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	triggered, err := ac.evaluator.CheckUserAlerts(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"triggered": triggered,
			"count":     len(triggered),
		},
	})
}
