package scheduler

// Package scheduler provides the optional in-process job schedule for the
// stock tracker backend. It handles:
// - Periodic alert ticks when ALERT_CHECK_INTERVAL_SECONDS is set
//   (deployments driven by an external cron hit /jobs/alerts-tick instead)
// - Daily credential usage counter resets at UTC midnight
//
// The jobs are implemented in jobs.go
