package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-leader/pkg/cluster"
	"github.com/dd0wney/cluso-leader/pkg/master"
	"github.com/dd0wney/cluso-leader/pkg/registry"
)

// testNode bundles one node's membership view and master actor. All nodes
// share one in-process registry, which stands in for the distributed
// mutual-exclusion service.
type testNode struct {
	id         string
	membership *cluster.Membership
	master     *master.Master
}

type echoHooks struct {
	master.NopHooks
}

func (echoHooks) HandleCall(msg any, _ string, state any) (any, any, error) {
	return msg, state, nil
}

// startNode creates a node that can see every peer in peerIDs
func startNode(t *testing.T, reg registry.Registry, serviceID, nodeID string, peerIDs []string, minPeers int) *testNode {
	t.Helper()

	membership := cluster.NewMembership(nodeID, "localhost_0")
	for _, peer := range peerIDs {
		if peer == nodeID {
			continue
		}
		require.NoError(t, membership.AddNode(cluster.NodeInfo{ID: peer, Addr: "localhost_0"}))
	}

	strategy := master.NewMinPeersStrategy(membership, minPeers, 15*time.Second, nil)
	m := master.New(serviceID, reg, echoHooks{}, strategy, master.Options{
		NodeID:        nodeID,
		CheckInterval: 25 * time.Millisecond,
		JitterMin:     time.Millisecond,
		JitterMax:     10 * time.Millisecond,
	})
	require.NoError(t, m.Start())

	return &testNode{id: nodeID, membership: membership, master: m}
}

func waitForLeader(t *testing.T, nodes []*testNode, timeout time.Duration) *testNode {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var leader *testNode
		leaders := 0
		for _, n := range nodes {
			if n.master.IsLeader() {
				leader = n
				leaders++
			}
		}
		require.LessOrEqual(t, leaders, 1, "more than one leader at once")
		if leaders == 1 {
			return leader
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("no leader elected within timeout")
	return nil
}

// TestThreeNodeFailover exercises the full failover path: elect, kill the
// leader, watch exactly one survivor take over while calls keep flowing.
func TestThreeNodeFailover(t *testing.T) {
	reg := registry.NewInMemory()
	defer reg.Close()

	const serviceID = "e2e-orders"
	ids := []string{"nodeA", "nodeB", "nodeC"}

	t.Log("Step 1: starting a 3-node cluster with min_peers=2...")
	nodes := make([]*testNode, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, startNode(t, reg, serviceID, id, ids, 2))
	}
	defer func() {
		for _, n := range nodes {
			n.master.Stop(nil)
		}
	}()

	first := waitForLeader(t, nodes, 2*time.Second)
	t.Logf("Step 2: %s became leader", first.id)

	t.Log("Step 3: verifying followers track the leader...")
	for _, n := range nodes {
		if n == first {
			continue
		}
		require.Eventually(t, func() bool {
			return n.master.State() == master.StateFollower
		}, 2*time.Second, 5*time.Millisecond, "%s never became follower", n.id)
		assert.Equal(t, first.master.Handle().ID(), n.master.LeaderID())
	}

	t.Log("Step 4: calling the leader through the caller...")
	caller := master.NewCaller(reg, nil)
	reply, err := caller.CallLeader(serviceID, "ping", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ping", reply)

	t.Logf("Step 5: killing leader %s...", first.id)
	first.master.Stop(nil)

	survivors := make([]*testNode, 0, 2)
	for _, n := range nodes {
		if n != first {
			survivors = append(survivors, n)
		}
	}

	second := waitForLeader(t, survivors, 3*time.Second)
	t.Logf("Step 6: %s took over", second.id)
	assert.NotEqual(t, first.id, second.id)

	t.Log("Step 7: calling across the failover window...")
	reply, err = caller.CallLeaderContext(context.Background(), serviceID, "after-failover", master.CallOptions{
		Tries:   50,
		Timeout: 200 * time.Millisecond,
		Backoff: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, "after-failover", reply)

	owner, found, err := reg.Lookup(serviceID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second.master.Handle().ID(), owner.ID())
}

// TestSingleNodeBelowThresholdNeverElects pins the split-brain guard: an
// isolated node with min_peers=2 must hold elections forever.
func TestSingleNodeBelowThresholdNeverElects(t *testing.T) {
	reg := registry.NewInMemory()
	defer reg.Close()

	const serviceID = "e2e-isolated"
	node := startNode(t, reg, serviceID, "loner", []string{"loner"}, 2)
	defer node.master.Stop(nil)

	// Many check cycles worth of waiting
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, master.StateUnknown, node.master.State())

	_, found, err := reg.Lookup(serviceID)
	require.NoError(t, err)
	assert.False(t, found, "isolated node must not register a binding")

	caller := master.NewCaller(reg, nil)
	_, err = caller.CallLeaderContext(context.Background(), serviceID, "msg", master.CallOptions{
		Tries:   3,
		Timeout: 20 * time.Millisecond,
		Backoff: 10 * time.Millisecond,
	})
	assert.ErrorIs(t, err, master.ErrLeaderNotFound)
}

// TestCallWithoutLocalInstance pins the terminal service_not_started path
func TestCallWithoutLocalInstance(t *testing.T) {
	reg := registry.NewInMemory()
	defer reg.Close()

	caller := master.NewCaller(reg, nil)

	start := time.Now()
	_, err := caller.CallLeader("e2e-nowhere", "msg", time.Second)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, master.ErrServiceNotStarted)
	assert.Less(t, elapsed, 100*time.Millisecond, "terminal error must not sleep")
}
