package health

import (
	"sync"
	"time"

	"github.com/dd0wney/cluso-leader/pkg/logging"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check represents a health check for a specific component
type Check struct {
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"duration_ms"`
}

// CheckFunc is a function that performs a health check
type CheckFunc func() Check

// HealthChecker runs the daemon's registered checks and aggregates their
// results. Checks are registered once at startup and evaluated on demand by
// the admin HTTP handlers.
//
// Concurrent Safety:
// 1. Check maps guarded by sync.RWMutex
// 2. CheckFuncs must be safe to call concurrently; the checker adds no
//    serialization across endpoints
type HealthChecker struct {
	mu          sync.RWMutex
	checks      map[string]CheckFunc // full /health surface
	readyChecks map[string]CheckFunc // gates /ready
	liveChecks  map[string]CheckFunc // gates /live

	logger    logging.Logger
	startedAt time.Time
}

// Response represents the overall health response
type Response struct {
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
	Uptime    time.Duration    `json:"uptime_seconds"`
}
