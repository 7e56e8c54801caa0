package cluster

import (
	"sync"
	"testing"
	"time"
)

func newTestMembership() *Membership {
	return NewMembership("node-1", "localhost:9090")
}

func TestNewMembership(t *testing.T) {
	m := newTestMembership()

	local := m.GetLocalNode()
	if local.ID != "node-1" {
		t.Errorf("Expected local node ID 'node-1', got %s", local.ID)
	}
	if local.Role != RoleFollower {
		t.Errorf("Expected initial role follower, got %v", local.Role)
	}
	if local.Incarnation == "" {
		t.Error("Local node must have an incarnation ID")
	}
	if m.GetNodeCount() != 1 {
		t.Errorf("Expected 1 node (self), got %d", m.GetNodeCount())
	}
}

func TestIncarnationChangesPerInstance(t *testing.T) {
	a := NewMembership("node-1", "localhost:9090")
	b := NewMembership("node-1", "localhost:9090")

	if a.GetLocalNode().Incarnation == b.GetLocalNode().Incarnation {
		t.Error("Two membership instances must carry distinct incarnations")
	}
}

func TestAddAndRemoveNode(t *testing.T) {
	m := newTestMembership()

	err := m.AddNode(NodeInfo{ID: "node-2", Addr: "localhost:9091"})
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if m.GetNodeCount() != 2 {
		t.Errorf("Expected 2 nodes, got %d", m.GetNodeCount())
	}

	// Duplicate add is rejected
	err = m.AddNode(NodeInfo{ID: "node-2", Addr: "localhost:9091"})
	if err != ErrNodeAlreadyExists {
		t.Errorf("Expected ErrNodeAlreadyExists, got %v", err)
	}

	if err := m.RemoveNode("node-2"); err != nil {
		t.Fatalf("RemoveNode failed: %v", err)
	}
	if err := m.RemoveNode("node-2"); err != ErrNodeNotFound {
		t.Errorf("Expected ErrNodeNotFound, got %v", err)
	}
}

func TestCannotRemoveSelf(t *testing.T) {
	m := newTestMembership()

	if err := m.RemoveNode("node-1"); err != ErrCannotRemoveSelf {
		t.Errorf("Expected ErrCannotRemoveSelf, got %v", err)
	}
}

func TestVisiblePeerCount(t *testing.T) {
	m := newTestMembership()

	// Self does not count as a peer
	if got := m.VisiblePeerCount(time.Minute); got != 0 {
		t.Errorf("Expected 0 peers, got %d", got)
	}

	m.AddNode(NodeInfo{ID: "node-2", Addr: "localhost:9091"})
	m.AddNode(NodeInfo{ID: "node-3", Addr: "localhost:9092"})

	if got := m.VisiblePeerCount(time.Minute); got != 2 {
		t.Errorf("Expected 2 peers, got %d", got)
	}
}

func TestStalePeersNotVisible(t *testing.T) {
	m := newTestMembership()

	m.AddNode(NodeInfo{ID: "node-2", Addr: "localhost:9091"})

	// Freshly added node is healthy
	if got := m.VisiblePeerCount(50 * time.Millisecond); got != 1 {
		t.Fatalf("Expected 1 visible peer, got %d", got)
	}

	time.Sleep(80 * time.Millisecond)

	if got := m.VisiblePeerCount(50 * time.Millisecond); got != 0 {
		t.Errorf("Expected stale peer to be invisible, got %d", got)
	}

	// A touch brings it back
	m.TouchNode("node-2", "")
	if got := m.VisiblePeerCount(50 * time.Millisecond); got != 1 {
		t.Errorf("Expected touched peer to be visible, got %d", got)
	}
}

func TestHasMinPeers(t *testing.T) {
	m := newTestMembership()

	if m.HasMinPeers(1, time.Minute) {
		t.Error("Single node must not meet a 1-peer threshold")
	}
	if !m.HasMinPeers(0, time.Minute) {
		t.Error("Zero threshold is always met")
	}

	m.AddNode(NodeInfo{ID: "node-2", Addr: "localhost:9091"})

	if !m.HasMinPeers(1, time.Minute) {
		t.Error("One visible peer meets a 1-peer threshold")
	}
	if m.HasMinPeers(2, time.Minute) {
		t.Error("One visible peer must not meet a 2-peer threshold")
	}
}

func TestUpdateNodeRole(t *testing.T) {
	m := newTestMembership()
	m.AddNode(NodeInfo{ID: "node-2", Addr: "localhost:9091"})

	if err := m.UpdateNodeRole("node-2", RoleLeader); err != nil {
		t.Fatalf("UpdateNodeRole failed: %v", err)
	}

	node, err := m.GetNode("node-2")
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if node.Role != RoleLeader {
		t.Errorf("Expected leader role, got %v", node.Role)
	}

	if err := m.UpdateNodeRole("ghost", RoleLeader); err != ErrNodeNotFound {
		t.Errorf("Expected ErrNodeNotFound, got %v", err)
	}
}

func TestGetNodeReturnsCopy(t *testing.T) {
	m := newTestMembership()
	m.AddNode(NodeInfo{ID: "node-2", Addr: "localhost:9091"})

	node, _ := m.GetNode("node-2")
	node.Role = RoleLeader

	fresh, _ := m.GetNode("node-2")
	if fresh.Role == RoleLeader {
		t.Error("Mutating a returned NodeInfo must not affect membership state")
	}
}

func TestConcurrentMembershipAccess(t *testing.T) {
	m := newTestMembership()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := nodeID(n)
			m.AddNode(NodeInfo{ID: id, Addr: "localhost:0"})
			m.TouchNode(id, "")
			m.GetAllNodes()
			m.VisiblePeerCount(time.Minute)
		}(i)
	}
	wg.Wait()

	if m.GetNodeCount() != 51 {
		t.Errorf("Expected 51 nodes after concurrent adds, got %d", m.GetNodeCount())
	}
}

func nodeID(n int) string {
	return "node-" + string(rune('a'+n%26)) + string(rune('0'+n/26))
}
