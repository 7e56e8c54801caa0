package metrics

import (
	"runtime"
	"time"
)

// SetRole sets the current election role for a service
func (r *Registry) SetRole(service, role string) {
	// Reset all roles
	r.ElectionRole.WithLabelValues(service, "leader").Set(0)
	r.ElectionRole.WithLabelValues(service, "follower").Set(0)
	r.ElectionRole.WithLabelValues(service, "unknown").Set(0)

	// Set current role
	r.ElectionRole.WithLabelValues(service, role).Set(1)
}

// RecordCheckCycle records one completed check cycle
func (r *Registry) RecordCheckCycle(duration time.Duration) {
	r.ElectionCheckCycles.Inc()
	r.ElectionCheckDuration.Observe(duration.Seconds())
}

// RecordElection records the outcome of a registration attempt
func (r *Registry) RecordElection(service, result string) {
	r.ElectionsTotal.WithLabelValues(service, result).Inc()
}

// RecordCallAttempt records a single leader call attempt
func (r *Registry) RecordCallAttempt(service, outcome string) {
	r.CallerAttemptsTotal.WithLabelValues(service, outcome).Inc()
}

// RecordCallError records a terminal caller error
func (r *Registry) RecordCallError(service, kind string, duration time.Duration) {
	r.CallerErrorsTotal.WithLabelValues(service, kind).Inc()
	r.CallerDuration.Observe(duration.Seconds())
}

// UpdateMembership updates membership gauges
func (r *Registry) UpdateMembership(totalNodes, healthyNodes int, hasMinPeers bool) {
	r.MembershipNodesTotal.Set(float64(totalNodes))
	r.MembershipHealthyNodesTotal.Set(float64(healthyNodes))
	if hasMinPeers {
		r.MembershipHasMinPeers.Set(1)
	} else {
		r.MembershipHasMinPeers.Set(0)
	}
}

// UpdateSystemMetrics refreshes process-level gauges
func (r *Registry) UpdateSystemMetrics(startTime time.Time) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	r.UptimeSeconds.Set(time.Since(startTime).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(mem.Alloc))
}
