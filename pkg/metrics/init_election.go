package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initElectionMetrics() {
	r.ElectionRole = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leader_election_role",
			Help: "Node role for a service (1 for current role, 0 otherwise)",
		},
		[]string{"service", "role"}, // leader, follower, unknown
	)

	r.ElectionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "leader_elections_total",
			Help: "Total number of registration attempts by outcome",
		},
		[]string{"service", "result"}, // won, lost, declined
	)

	r.ElectionCheckCycles = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "leader_election_check_cycles_total",
			Help: "Total number of periodic check cycles executed",
		},
	)

	r.ElectionCheckDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leader_election_check_duration_seconds",
			Help:    "Duration of check cycles in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)

	r.ElectionLeaderDowns = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "leader_election_leader_downs_total",
			Help: "Total number of leader termination notifications handled",
		},
	)

	r.ElectionSplitBrainHold = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "leader_election_split_brain_holds_total",
			Help: "Times the minimum-peers guard declined to elect",
		},
	)
}
