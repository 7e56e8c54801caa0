package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	// Verify all metrics are initialized
	if r.ElectionRole == nil {
		t.Error("ElectionRole not initialized")
	}
	if r.ElectionsTotal == nil {
		t.Error("ElectionsTotal not initialized")
	}
	if r.CallerAttemptsTotal == nil {
		t.Error("CallerAttemptsTotal not initialized")
	}
	if r.RegistryBindings == nil {
		t.Error("RegistryBindings not initialized")
	}
	if r.MembershipNodesTotal == nil {
		t.Error("MembershipNodesTotal not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	// Should return the same instance
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()

	if r1 != r2 {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestSetRole(t *testing.T) {
	r := NewRegistry()

	r.SetRole("ids", "leader")

	leader, err := r.ElectionRole.GetMetricWithLabelValues("ids", "leader")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := leader.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() != 1 {
		t.Errorf("Leader gauge = %v, want 1", metric.Gauge.GetValue())
	}

	// Switching roles must reset the previous one
	r.SetRole("ids", "follower")

	if err := leader.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() != 0 {
		t.Errorf("Leader gauge after demotion = %v, want 0", metric.Gauge.GetValue())
	}
}

func TestRecordElection(t *testing.T) {
	r := NewRegistry()

	r.RecordElection("ids", "won")
	r.RecordElection("ids", "lost")
	r.RecordElection("ids", "lost")

	lost, err := r.ElectionsTotal.GetMetricWithLabelValues("ids", "lost")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := lost.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2 {
		t.Errorf("Lost counter = %v, want 2", metric.Counter.GetValue())
	}
}

func TestRecordCallError(t *testing.T) {
	r := NewRegistry()

	r.RecordCallError("ids", "leader_not_found", 100*time.Millisecond)

	errCounter, err := r.CallerErrorsTotal.GetMetricWithLabelValues("ids", "leader_not_found")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := errCounter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 1 {
		t.Errorf("Error counter = %v, want 1", metric.Counter.GetValue())
	}
}

func TestUpdateMembership(t *testing.T) {
	r := NewRegistry()

	r.UpdateMembership(3, 2, true)

	var metric dto.Metric
	if err := r.MembershipNodesTotal.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() != 3 {
		t.Errorf("Nodes gauge = %v, want 3", metric.Gauge.GetValue())
	}

	if err := r.MembershipHasMinPeers.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() != 1 {
		t.Errorf("MinPeers gauge = %v, want 1", metric.Gauge.GetValue())
	}

	r.UpdateMembership(1, 1, false)
	if err := r.MembershipHasMinPeers.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() != 0 {
		t.Errorf("MinPeers gauge = %v, want 0", metric.Gauge.GetValue())
	}
}

func TestUpdateSystemMetrics(t *testing.T) {
	r := NewRegistry()

	start := time.Now().Add(-5 * time.Second)
	r.UpdateSystemMetrics(start)

	var metric dto.Metric
	if err := r.UptimeSeconds.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() < 5 {
		t.Errorf("Uptime = %v, want >= 5", metric.Gauge.GetValue())
	}

	if err := r.GoRoutines.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() < 1 {
		t.Error("Goroutine count should be at least 1")
	}
}
