package cluster

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Duration wraps time.Duration so config files can use "5s"-style values
type Duration time.Duration

// UnmarshalYAML parses a duration string
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config defines a node's cluster-wide settings
type Config struct {
	// Node identification
	NodeID   string `yaml:"node_id" validate:"required"`
	NodeAddr string `yaml:"node_addr" validate:"required,hostname_port"`

	// Seed nodes for initial discovery
	SeedNodes []string `yaml:"seed_nodes" validate:"dive,hostname_port"`

	// Election configuration
	CheckInterval Duration `yaml:"check_interval"` // periodic check cycle (default: 5s)
	MinPeers      int      `yaml:"min_peers"`      // visible peers required before electing (default: 1)
	HealthTimeout Duration `yaml:"health_timeout"` // peer considered gone after this silence (default: 15s)

	// Leader caller configuration
	CallTimeout Duration `yaml:"call_timeout"` // per-attempt timeout (default: 5s)
	CallRetries int      `yaml:"call_retries"` // attempt budget (default: 30)
	CallBackoff Duration `yaml:"call_backoff"` // sleep between retries (default: 500ms)

	// Transport
	ListenAddr    string `yaml:"listen_addr"`    // leader call listener, e.g. "tcp://0.0.0.0:9411"
	ClusterSecret string `yaml:"cluster_secret"` // shared secret for call authentication

	// Registry backend: "memory" or "postgres"
	RegistryBackend string `yaml:"registry_backend" validate:"omitempty,oneof=memory postgres"`
	DatabaseURL     string `yaml:"database_url"`

	// Services to run a master actor for on this node
	Services []string `yaml:"services" validate:"required,min=1,dive,required"`
}

// DefaultConfig returns a safe default configuration
func DefaultConfig() Config {
	return Config{
		CheckInterval:   Duration(5 * time.Second),
		MinPeers:        1,
		HealthTimeout:   Duration(15 * time.Second),
		CallTimeout:     Duration(5 * time.Second),
		CallRetries:     30,
		CallBackoff:     Duration(500 * time.Millisecond),
		RegistryBackend: "memory",
	}
}

// LoadConfig reads a YAML config file on top of defaults
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return ErrInvalidNodeID
	}
	if c.NodeAddr == "" {
		return ErrInvalidNodeAddr
	}
	if c.MinPeers < 0 {
		return ErrInvalidMinPeers
	}
	if c.MinPeers > 0 && len(c.SeedNodes) == 0 {
		return ErrNoSeedNodes
	}
	if c.ClusterSecret != "" && len(c.ClusterSecret) < 16 {
		return ErrShortSecret
	}
	if c.RegistryBackend == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("postgres registry backend requires database_url")
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
