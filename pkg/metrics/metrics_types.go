package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Election Metrics
	ElectionRole           *prometheus.GaugeVec
	ElectionsTotal         *prometheus.CounterVec
	ElectionCheckCycles    prometheus.Counter
	ElectionCheckDuration  prometheus.Histogram
	ElectionLeaderDowns    prometheus.Counter
	ElectionSplitBrainHold prometheus.Counter

	// Leader Caller Metrics
	CallerAttemptsTotal *prometheus.CounterVec
	CallerRetriesTotal  prometheus.Counter
	CallerErrorsTotal   *prometheus.CounterVec
	CallerDuration      prometheus.Histogram

	// Registry Metrics
	RegistryLookupsTotal       *prometheus.CounterVec
	RegistryRegistrationsTotal *prometheus.CounterVec
	RegistryBindings           prometheus.Gauge

	// Membership Metrics
	MembershipNodesTotal        prometheus.Gauge
	MembershipHealthyNodesTotal prometheus.Gauge
	MembershipHasMinPeers       prometheus.Gauge

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initElectionMetrics()
	r.initCallerMetrics()
	r.initRegistryMetrics()
	r.initMembershipMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
