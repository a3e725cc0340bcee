/*
Package config loads the operator-supplied YAML configuration file:
cluster list, autoscaler parameters, load-balancer strategy, and queue
backend connection string (spec §6).
*/
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sahil-03/fleetctl/pkg/types"
)

// Strategy names accepted in the load_balancer.strategy field.
const (
	StrategyRoundRobin      = "round_robin"
	StrategyRandom          = "random"
	StrategyLeastConnections = "least_connections"
)

// Config is the top-level operator configuration.
type Config struct {
	Clusters     []ClusterConfig    `yaml:"clusters"`
	Autoscaler   AutoscalerConfig   `yaml:"autoscaler"`
	LoadBalancer LoadBalancerConfig `yaml:"load_balancer"`
	Queue        QueueConfig        `yaml:"queue"`
}

// ClusterConfig mirrors types.ClusterDescriptor as it appears on disk.
type ClusterConfig struct {
	ID          string `yaml:"id"`
	Hostname    string `yaml:"hostname"`
	Username    string `yaml:"username"`
	KeyFilename string `yaml:"key_filename"`
}

// Descriptor converts a ClusterConfig into the runtime type.
func (c ClusterConfig) Descriptor() types.ClusterDescriptor {
	return types.ClusterDescriptor{
		ClusterID: c.ID,
		Hostname:  c.Hostname,
		Username:  c.Username,
		KeyPath:   c.KeyFilename,
	}
}

// AutoscalerConfig holds the parameters from spec §4.9.
type AutoscalerConfig struct {
	MinReplicas        int           `yaml:"min_replicas"`
	MaxReplicas        int           `yaml:"max_replicas"`
	ScaleUpThreshold   float64       `yaml:"scale_up_threshold"`
	ScaleDownThreshold float64       `yaml:"scale_down_threshold"`
	CooldownSeconds    int           `yaml:"cooldown_seconds"`
	CheckIntervalSecs  int           `yaml:"check_interval_seconds"`
}

// Cooldown returns the configured cooldown as a time.Duration.
func (a AutoscalerConfig) Cooldown() time.Duration {
	return time.Duration(a.CooldownSeconds) * time.Second
}

// CheckInterval returns the configured poll interval as a time.Duration.
func (a AutoscalerConfig) CheckInterval() time.Duration {
	return time.Duration(a.CheckIntervalSecs) * time.Second
}

// LoadBalancerConfig selects the dispatch strategy.
type LoadBalancerConfig struct {
	Strategy string `yaml:"strategy"`
}

// QueueConfig names the backing store for the request queue. Backend is
// "memory" or "bolt"; Path is the directory that holds the bbolt database
// file (fleetctl-queue.db) when Backend=="bolt".
type QueueConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config: %v", types.ErrConfiguration, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config: %v", types.ErrConfiguration, err)
	}

	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Autoscaler.MinReplicas == 0 {
		cfg.Autoscaler.MinReplicas = 1
	}
	if cfg.Autoscaler.MaxReplicas == 0 {
		cfg.Autoscaler.MaxReplicas = 10
	}
	if cfg.Autoscaler.CooldownSeconds == 0 {
		cfg.Autoscaler.CooldownSeconds = 60
	}
	if cfg.Autoscaler.CheckIntervalSecs == 0 {
		cfg.Autoscaler.CheckIntervalSecs = 10
	}
	if cfg.LoadBalancer.Strategy == "" {
		cfg.LoadBalancer.Strategy = StrategyRoundRobin
	}
	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = "memory"
	}
}

func (cfg Config) validate() error {
	if len(cfg.Clusters) == 0 {
		return fmt.Errorf("%w: at least one cluster must be configured", types.ErrConfiguration)
	}
	seen := make(map[string]bool, len(cfg.Clusters))
	for _, c := range cfg.Clusters {
		if c.ID == "" || c.Hostname == "" || c.Username == "" {
			return fmt.Errorf("%w: cluster entries require id, hostname, and username", types.ErrConfiguration)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate cluster id %q", types.ErrConfiguration, c.ID)
		}
		seen[c.ID] = true
	}
	if cfg.Autoscaler.MinReplicas < 0 || cfg.Autoscaler.MaxReplicas < cfg.Autoscaler.MinReplicas {
		return fmt.Errorf("%w: autoscaler min_replicas/max_replicas are inconsistent", types.ErrConfiguration)
	}
	switch cfg.LoadBalancer.Strategy {
	case StrategyRoundRobin, StrategyRandom, StrategyLeastConnections:
	default:
		return fmt.Errorf("%w: unknown load_balancer.strategy %q", types.ErrConfiguration, cfg.LoadBalancer.Strategy)
	}
	switch cfg.Queue.Backend {
	case "memory", "bolt":
	default:
		return fmt.Errorf("%w: unknown queue.backend %q", types.ErrConfiguration, cfg.Queue.Backend)
	}
	return nil
}
