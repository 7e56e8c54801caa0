package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initMembershipMetrics() {
	r.MembershipNodesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "leader_membership_nodes_total",
			Help: "Total number of known cluster nodes",
		},
	)

	r.MembershipHealthyNodesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "leader_membership_healthy_nodes_total",
			Help: "Number of nodes with a recent heartbeat",
		},
	)

	r.MembershipHasMinPeers = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "leader_membership_has_min_peers",
			Help: "Whether visible peers meet the election threshold (1=yes, 0=no)",
		},
	)
}
