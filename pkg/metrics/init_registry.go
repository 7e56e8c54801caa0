package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initRegistryMetrics() {
	r.RegistryLookupsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "leader_registry_lookups_total",
			Help: "Registry lookups by result",
		},
		[]string{"result"}, // found, absent, error
	)

	r.RegistryRegistrationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "leader_registry_registrations_total",
			Help: "Atomic register-if-absent attempts by result",
		},
		[]string{"result"}, // success, conflict, error
	)

	r.RegistryBindings = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "leader_registry_bindings",
			Help: "Number of live service-to-leader bindings",
		},
	)
}
