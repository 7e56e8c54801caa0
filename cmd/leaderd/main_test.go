package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/dd0wney/cluso-leader/pkg/master"
	"github.com/dd0wney/cluso-leader/pkg/registry"
)

type echoHooks struct {
	master.NopHooks
}

func (echoHooks) HandleCall(msg any, _ string, state any) (any, any, error) {
	return msg, state, nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func callRequest(service, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/call/"+service, strings.NewReader(body))
	return mux.SetURLVars(req, map[string]string{"service": service})
}

func TestLeaderCallHandlerForwardsToLeader(t *testing.T) {
	reg := registry.NewInMemory()
	defer reg.Close()

	m := master.New("orders", reg, echoHooks{}, master.AlwaysLead{}, master.Options{
		NodeID:        "node1",
		CheckInterval: 20 * time.Millisecond,
		JitterMin:     time.Millisecond,
		JitterMax:     5 * time.Millisecond,
	})
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop(nil)
	waitFor(t, time.Second, m.IsLeader)

	handler := leaderCallHandler(master.NewCaller(reg, nil), master.CallOptions{
		Tries:   3,
		Timeout: 500 * time.Millisecond,
		Backoff: 10 * time.Millisecond,
	})

	rec := httptest.NewRecorder()
	handler(rec, callRequest("orders", `{"op":"ping"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var reply map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&reply); err != nil {
		t.Fatalf("reply is not JSON: %v", err)
	}
	if reply["op"] != "ping" {
		t.Errorf("unexpected reply %v", reply)
	}
}

func TestLeaderCallHandlerUnknownService(t *testing.T) {
	reg := registry.NewInMemory()
	defer reg.Close()

	handler := leaderCallHandler(master.NewCaller(reg, nil), master.CallOptions{
		Tries:   3,
		Timeout: 50 * time.Millisecond,
		Backoff: 10 * time.Millisecond,
	})

	rec := httptest.NewRecorder()
	handler(rec, callRequest("ghost", `{}`))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a service with no local instance, got %d", rec.Code)
	}
}
