package cluster

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-leader/pkg/metrics"
)

// NodeRole represents the role of a node relative to the services it hosts
type NodeRole int

const (
	// RoleFollower is a node tracking some other node's leadership
	RoleFollower NodeRole = iota
	// RoleLeader is a node holding at least one leadership slot
	RoleLeader
)

// String returns the string representation of a NodeRole
func (r NodeRole) String() string {
	switch r {
	case RoleFollower:
		return "follower"
	case RoleLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// NodeInfo contains information about a cluster node
type NodeInfo struct {
	ID          string    // Unique node identifier
	Addr        string    // Network address (host:port)
	Incarnation string    // Changes on every process restart
	Role        NodeRole  // Current role in cluster
	LastSeen    time.Time // Last announcement received
}

// IsHealthy returns true if the node has been seen recently
func (n *NodeInfo) IsHealthy(timeout time.Duration) bool {
	return time.Since(n.LastSeen) < timeout
}

// Membership tracks all nodes in the cluster. It is the source of the
// "visible peers" count the election guard consults before attempting to
// claim leadership.
//
// Concurrent Safety:
// 1. All public methods use RWMutex for thread-safe access
// 2. Read operations use RLock for concurrent reads
// 3. Query methods return defensive copies
type Membership struct {
	nodes           map[string]*NodeInfo // nodeID -> NodeInfo
	localNode       *NodeInfo            // This node's info
	mu              sync.RWMutex         // Protects all fields
	metricsRegistry *metrics.Registry    // Metrics tracking
}

// NewMembership creates a new membership tracker. The local node gets a
// fresh incarnation ID so peers can tell a restart from a reconnect.
func NewMembership(localNodeID string, localAddr string) *Membership {
	localNode := &NodeInfo{
		ID:          localNodeID,
		Addr:        localAddr,
		Incarnation: uuid.NewString(),
		Role:        RoleFollower,
		LastSeen:    time.Now(),
	}

	m := &Membership{
		nodes:           make(map[string]*NodeInfo),
		localNode:       localNode,
		metricsRegistry: metrics.DefaultRegistry(),
	}

	// Add self to membership
	m.nodes[localNodeID] = localNode

	m.metricsRegistry.MembershipNodesTotal.Set(float64(len(m.nodes)))

	return m
}
