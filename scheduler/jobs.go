package scheduler

import (
	"context"
	"log"
	"time"

	"stocktracker_backend/services/credentials"
	"stocktracker_backend/services/jobs"

	"github.com/go-co-op/gocron"
)

// Scheduler manages the in-process job schedule
type Scheduler struct {
	cron         *gocron.Scheduler
	tick         *jobs.TickRunner
	pool         *credentials.Pool
	tickInterval time.Duration
}

// NewScheduler creates a new scheduler instance. tickInterval <= 0 disables
// the in-process alert sweep.
func NewScheduler(tick *jobs.TickRunner, pool *credentials.Pool, tickInterval time.Duration) *Scheduler {
	return &Scheduler{
		cron:         gocron.NewScheduler(time.UTC),
		tick:         tick,
		pool:         pool,
		tickInterval: tickInterval,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	if s.tickInterval > 0 {
		s.cron.Every(s.tickInterval).Do(func() {
			s.runAlertTick()
		})
		log.Printf("In-process alert tick scheduled every %s", s.tickInterval)
	}

	// Reset daily credential counters at UTC midnight
	s.cron.Every(1).Day().At("00:00").Do(func() {
		s.resetCredentialCounters()
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// runAlertTick runs one alert sweep
func (s *Scheduler) runAlertTick() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := s.tick.RunTick(ctx)
	if err != nil {
		log.Printf("Scheduled alert tick failed: %v", err)
		return
	}
	log.Printf("Scheduled alert tick: checked=%d updated=%d triggered=%d",
		result.StocksChecked, result.PricesUpdated, result.AlertsTriggered)
}

// resetCredentialCounters zeroes stale daily usage counters
func (s *Scheduler) resetCredentialCounters() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.pool.ResetDailyCounters(ctx); err != nil {
		log.Printf("Error resetting credential counters: %v", err)
	}
}
