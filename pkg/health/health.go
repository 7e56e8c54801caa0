package health

import (
	"time"

	"github.com/dd0wney/cluso-leader/pkg/logging"
)

// NewHealthChecker creates a checker with no checks registered. A nil logger
// silences check-failure reporting.
func NewHealthChecker(logger logging.Logger) *HealthChecker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HealthChecker{
		checks:      make(map[string]CheckFunc),
		readyChecks: make(map[string]CheckFunc),
		liveChecks:  make(map[string]CheckFunc),
		logger:      logger.With(logging.Component("health")),
		startedAt:   time.Now(),
	}
}

// RegisterCheck registers a health check
func (hc *HealthChecker) RegisterCheck(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// RegisterReadinessCheck registers a readiness check
func (hc *HealthChecker) RegisterReadinessCheck(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.readyChecks[name] = check
}

// RegisterLivenessCheck registers a liveness check
func (hc *HealthChecker) RegisterLivenessCheck(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.liveChecks[name] = check
}

// Check evaluates every registered health check
func (hc *HealthChecker) Check() Response {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.runChecks(hc.checks)
}

// CheckReadiness evaluates the readiness checks
func (hc *HealthChecker) CheckReadiness() Response {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.runChecks(hc.readyChecks)
}

// CheckLiveness evaluates the liveness checks
func (hc *HealthChecker) CheckLiveness() Response {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.runChecks(hc.liveChecks)
}

func (hc *HealthChecker) runChecks(checks map[string]CheckFunc) Response {
	resp := Response{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]Check, len(checks)),
		Uptime:    time.Since(hc.startedAt),
	}

	for name, run := range checks {
		started := time.Now()
		check := run()
		check.LastChecked = started
		check.Duration = time.Since(started)
		resp.Checks[name] = check

		if check.Status != StatusHealthy {
			hc.logger.Warn("Health check not passing",
				logging.String("check", name),
				logging.String("status", string(check.Status)),
				logging.String("message", check.Message))
		}
		resp.Status = worseOf(resp.Status, check.Status)
	}

	return resp
}

// worseOf aggregates check outcomes: unhealthy dominates degraded, which
// dominates healthy
func worseOf(a, b Status) Status {
	if a == StatusUnhealthy || b == StatusUnhealthy {
		return StatusUnhealthy
	}
	if a == StatusDegraded || b == StatusDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}
