package health

import "time"

// Health checks for the election daemon's components

// SimpleCheck creates a simple health check that always returns healthy
func SimpleCheck(name string) Check {
	return Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now(),
	}
}

// RegistryCheck reports whether the leadership registry backend is reachable
func RegistryCheck(pingFunc func() error) CheckFunc {
	return func() Check {
		check := Check{
			Name: "registry",
		}

		if err := pingFunc(); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Connected"
		}

		return check
	}
}

// ElectionCheck reports the state of the per-service master actors. A
// stopped actor is unhealthy; a running actor without a known leader is
// degraded.
func ElectionCheck(getElectionState func() (running, withLeader, total int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "election",
			Details: make(map[string]any),
		}

		running, withLeader, total := getElectionState()

		check.Details["running_actors"] = running
		check.Details["actors_with_leader"] = withLeader
		check.Details["total_actors"] = total

		if total == 0 {
			check.Status = StatusHealthy
			check.Message = "No services configured"
		} else if running < total {
			check.Status = StatusUnhealthy
			check.Message = "Some master actors stopped"
		} else if withLeader < total {
			check.Status = StatusDegraded
			check.Message = "Some services have no known leader"
		} else {
			check.Status = StatusHealthy
			check.Message = "All services have a leader"
		}

		return check
	}
}

// MembershipCheck reports cluster visibility against the election threshold
func MembershipCheck(getClusterState func() (hasMinPeers bool, healthyNodes, totalNodes int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "membership",
			Details: make(map[string]any),
		}

		hasMinPeers, healthyNodes, totalNodes := getClusterState()

		check.Details["has_min_peers"] = hasMinPeers
		check.Details["healthy_nodes"] = healthyNodes
		check.Details["total_nodes"] = totalNodes

		if !hasMinPeers {
			check.Status = StatusDegraded
			check.Message = "Below peer threshold; elections held"
		} else if healthyNodes < totalNodes {
			check.Status = StatusDegraded
			check.Message = "Some nodes unhealthy"
		} else {
			check.Status = StatusHealthy
			check.Message = "Cluster visible"
		}

		return check
	}
}

// MemoryCheck creates a health check for memory usage
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()

		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		usagePercent := float64(alloc) / float64(sys) * 100

		if usagePercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}

		return check
	}
}
