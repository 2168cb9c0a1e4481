package controllers

import (
	"net/http"
	"time"

	"stocktracker_backend/services/jobs"

	"github.com/gin-gonic/gin"
)

// JobsController handles externally-triggered job endpoints. The invoking
// scheduler lives outside the process (a cron trigger hitting HTTP), so every
// run is stateless and safe to repeat.
type JobsController struct {
	tick        *jobs.TickRunner
	maintenance *jobs.Maintenance
}

// NewJobsController creates a jobs controller
func NewJobsController(tick *jobs.TickRunner, maintenance *jobs.Maintenance) *JobsController {
	return &JobsController{tick: tick, maintenance: maintenance}
}

// AlertsTick runs one alert sweep
// GET /jobs/alerts-tick
func (jc *JobsController) AlertsTick(c *gin.Context) {
	result, err := jc.tick.RunTick(c.Request.Context())
	if err != nil {
		// only infrastructure failures land here; the scheduler retries
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"stocksChecked":   result.StocksChecked,
			"pricesUpdated":   result.PricesUpdated,
			"alertsTriggered": result.AlertsTriggered,
			"timestamp":       result.Timestamp.Format(time.RFC3339),
		},
	})
}

// FixOrphans repairs rows referencing deleted stocks
// GET /jobs/maintenance/fix-orphans?action=dryRun|deactivate|delete
func (jc *JobsController) FixOrphans(c *gin.Context) {
	action := c.DefaultQuery("action", jobs.OrphanActionDryRun)

	report, err := jc.maintenance.FixOrphans(c.Request.Context(), action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    report,
	})
}
