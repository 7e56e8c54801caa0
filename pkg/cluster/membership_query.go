package cluster

import (
	"time"
)

// GetNode returns info about a specific node
func (m *Membership) GetNode(nodeID string) (*NodeInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, exists := m.nodes[nodeID]
	if !exists {
		return nil, ErrNodeNotFound
	}

	// Return a copy to prevent external mutations
	nodeCopy := *node
	return &nodeCopy, nil
}

// GetLocalNode returns this node's info
func (m *Membership) GetLocalNode() *NodeInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodeCopy := *m.localNode
	return &nodeCopy
}

// GetAllNodes returns all nodes in the cluster
func (m *Membership) GetAllNodes() []NodeInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodes := make([]NodeInfo, 0, len(m.nodes))
	for _, node := range m.nodes {
		nodes = append(nodes, *node)
	}

	return nodes
}

// GetHealthyNodes returns nodes seen within the health timeout
func (m *Membership) GetHealthyNodes(healthTimeout time.Duration) []NodeInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	healthy := make([]NodeInfo, 0, len(m.nodes))
	for _, node := range m.nodes {
		if node.IsHealthy(healthTimeout) {
			healthy = append(healthy, *node)
		}
	}

	m.metricsRegistry.MembershipHealthyNodesTotal.Set(float64(len(healthy)))

	return healthy
}

// GetNodeCount returns the total number of nodes
func (m *Membership) GetNodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.nodes)
}

// VisiblePeerCount returns the number of healthy nodes excluding self
func (m *Membership) VisiblePeerCount(healthTimeout time.Duration) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, node := range m.nodes {
		if node.ID == m.localNode.ID {
			continue
		}
		if node.IsHealthy(healthTimeout) {
			count++
		}
	}

	return count
}

// HasMinPeers reports whether enough peers are visible to elect safely
func (m *Membership) HasMinPeers(minPeers int, healthTimeout time.Duration) bool {
	has := m.VisiblePeerCount(healthTimeout) >= minPeers

	if has {
		m.metricsRegistry.MembershipHasMinPeers.Set(1)
	} else {
		m.metricsRegistry.MembershipHasMinPeers.Set(0)
	}

	return has
}
