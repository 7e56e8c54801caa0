package cluster

import (
	"time"
)

// AddNode registers a node in the cluster
func (m *Membership) AddNode(info NodeInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[info.ID]; exists {
		return ErrNodeAlreadyExists
	}

	// Make a copy to avoid external mutations
	nodeCopy := info
	nodeCopy.LastSeen = time.Now()
	m.nodes[info.ID] = &nodeCopy

	m.metricsRegistry.MembershipNodesTotal.Set(float64(len(m.nodes)))

	return nil
}

// RemoveNode removes a node from the cluster
func (m *Membership) RemoveNode(nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if nodeID == m.localNode.ID {
		return ErrCannotRemoveSelf
	}

	if _, exists := m.nodes[nodeID]; !exists {
		return ErrNodeNotFound
	}

	delete(m.nodes, nodeID)

	m.metricsRegistry.MembershipNodesTotal.Set(float64(len(m.nodes)))

	return nil
}

// TouchNode updates the last-seen timestamp and incarnation for a node
func (m *Membership) TouchNode(nodeID, incarnation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, exists := m.nodes[nodeID]
	if !exists {
		return ErrNodeNotFound
	}

	node.LastSeen = time.Now()
	if incarnation != "" {
		node.Incarnation = incarnation
	}

	return nil
}

// UpdateNodeRole updates a node's role
func (m *Membership) UpdateNodeRole(nodeID string, role NodeRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, exists := m.nodes[nodeID]
	if !exists {
		return ErrNodeNotFound
	}

	node.Role = role
	return nil
}

// SetLocalRole updates this node's role
func (m *Membership) SetLocalRole(role NodeRole) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.localNode.Role = role
}
