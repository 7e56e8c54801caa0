package cluster

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.NodeID = "node-1"
	cfg.NodeAddr = "localhost:9090"
	cfg.SeedNodes = []string{"localhost:9091"}
	cfg.Services = []string{"ids"}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.CheckInterval.Std() != 5*time.Second {
		t.Errorf("Expected 5s check interval, got %v", cfg.CheckInterval.Std())
	}
	if cfg.CallRetries != 30 {
		t.Errorf("Expected 30 call retries, got %d", cfg.CallRetries)
	}
	if cfg.CallBackoff.Std() != 500*time.Millisecond {
		t.Errorf("Expected 500ms call backoff, got %v", cfg.CallBackoff.Std())
	}
	if cfg.RegistryBackend != "memory" {
		t.Errorf("Expected memory registry backend, got %s", cfg.RegistryBackend)
	}
}

func TestValidateRejectsMissingNodeID(t *testing.T) {
	cfg := validConfig()
	cfg.NodeID = ""

	if err := cfg.Validate(); err != ErrInvalidNodeID {
		t.Errorf("Expected ErrInvalidNodeID, got %v", err)
	}
}

func TestValidateRejectsMissingAddr(t *testing.T) {
	cfg := validConfig()
	cfg.NodeAddr = ""

	if err := cfg.Validate(); err != ErrInvalidNodeAddr {
		t.Errorf("Expected ErrInvalidNodeAddr, got %v", err)
	}
}

func TestValidateRequiresSeedsWithMinPeers(t *testing.T) {
	cfg := validConfig()
	cfg.MinPeers = 2
	cfg.SeedNodes = nil

	if err := cfg.Validate(); err != ErrNoSeedNodes {
		t.Errorf("Expected ErrNoSeedNodes, got %v", err)
	}
}

func TestValidateRejectsShortSecret(t *testing.T) {
	cfg := validConfig()
	cfg.ClusterSecret = "short"

	if err := cfg.Validate(); err != ErrShortSecret {
		t.Errorf("Expected ErrShortSecret, got %v", err)
	}
}

func TestValidateRejectsNegativeMinPeers(t *testing.T) {
	cfg := validConfig()
	cfg.MinPeers = -1

	if err := cfg.Validate(); err != ErrInvalidMinPeers {
		t.Errorf("Expected ErrInvalidMinPeers, got %v", err)
	}
}

func TestValidateRejectsPostgresWithoutURL(t *testing.T) {
	cfg := validConfig()
	cfg.RegistryBackend = "postgres"
	cfg.DatabaseURL = ""

	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for postgres backend without database_url")
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := validConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Valid config rejected: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	content := `
node_id: node-1
node_addr: "localhost:9090"
seed_nodes:
  - "localhost:9091"
  - "localhost:9092"
check_interval: 2s
min_peers: 2
call_backoff: 250ms
services:
  - ids
  - jobs
`
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.NodeID != "node-1" {
		t.Errorf("Expected node-1, got %s", cfg.NodeID)
	}
	if cfg.CheckInterval.Std() != 2*time.Second {
		t.Errorf("Expected 2s check interval, got %v", cfg.CheckInterval.Std())
	}
	if cfg.MinPeers != 2 {
		t.Errorf("Expected min_peers 2, got %d", cfg.MinPeers)
	}
	if cfg.CallBackoff.Std() != 250*time.Millisecond {
		t.Errorf("Expected 250ms backoff, got %v", cfg.CallBackoff.Std())
	}
	if len(cfg.Services) != 2 {
		t.Errorf("Expected 2 services, got %d", len(cfg.Services))
	}
	// Defaults survive partial files
	if cfg.CallRetries != 30 {
		t.Errorf("Expected default 30 retries, got %d", cfg.CallRetries)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/cluster.yaml")
	if err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadConfigInvalidDuration(t *testing.T) {
	content := "node_id: n1\nnode_addr: \"localhost:1\"\ncheck_interval: banana\nservices: [ids]\n"
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for invalid duration")
	}
}
