package master

import (
	"time"

	"github.com/dd0wney/cluso-leader/pkg/cluster"
	"github.com/dd0wney/cluso-leader/pkg/logging"
	"github.com/dd0wney/cluso-leader/pkg/metrics"
)

// Strategy decides whether this node should attempt to claim leadership
// when no leader is registered. The actor only depends on the yes/no
// answer, not on how it is computed.
type Strategy interface {
	ShouldLead(serviceID string) bool
}

// MinPeersStrategy is the default policy: attempt leadership only when at
// least minPeers other healthy nodes are visible. An isolated partition
// below the threshold never elects, which keeps two halves of a split
// cluster from each claiming the slot.
type MinPeersStrategy struct {
	membership    *cluster.Membership
	minPeers      int
	healthTimeout time.Duration
	logger        logging.Logger
	metrics       *metrics.Registry
}

// NewMinPeersStrategy builds the default threshold policy
func NewMinPeersStrategy(membership *cluster.Membership, minPeers int, healthTimeout time.Duration, logger logging.Logger) *MinPeersStrategy {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &MinPeersStrategy{
		membership:    membership,
		minPeers:      minPeers,
		healthTimeout: healthTimeout,
		logger:        logger.With(logging.Component("election-strategy")),
		metrics:       metrics.DefaultRegistry(),
	}
}

// ShouldLead reports whether enough peers are visible to elect safely
func (s *MinPeersStrategy) ShouldLead(serviceID string) bool {
	if s.membership.HasMinPeers(s.minPeers, s.healthTimeout) {
		return true
	}

	s.metrics.ElectionSplitBrainHold.Inc()
	s.logger.Warn("Holding election below peer threshold",
		logging.Service(serviceID),
		logging.Peers(s.membership.VisiblePeerCount(s.healthTimeout)),
		logging.Int("min_peers", s.minPeers))
	return false
}

// AlwaysLead elects unconditionally. Useful for single-node deployments
// and tests; unsafe in any topology that can partition.
type AlwaysLead struct{}

func (AlwaysLead) ShouldLead(string) bool { return true }

var (
	_ Strategy = (*MinPeersStrategy)(nil)
	_ Strategy = AlwaysLead{}
)
