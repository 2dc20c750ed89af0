package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DeploymentProfile is an optional YAML-loaded tuning layer on top of the
// env-based Config, for operators who want broadcaster/SSE sizing checked
// into a file rather than set per-process.
type DeploymentProfile struct {
	Name                 string `yaml:"name" json:"name"`
	BroadcastQueueSize   int    `yaml:"broadcast_queue_size" json:"broadcast_queue_size"`
	SSEHeartbeatSeconds  int    `yaml:"sse_heartbeat_seconds" json:"sse_heartbeat_seconds"`
	RootCacheTTLSeconds  int    `yaml:"root_cache_ttl_seconds" json:"root_cache_ttl_seconds"`
}

// LoadDeploymentProfile reads and parses a deployment profile YAML file.
func LoadDeploymentProfile(path string) (*DeploymentProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load deployment profile %q: %w", path, err)
	}
	var profile DeploymentProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse deployment profile %q: %w", path, err)
	}
	return &profile, nil
}

// ApplyTo overlays non-zero BroadcastQueueSize and SSEHeartbeatSeconds onto
// cfg, letting the env-based defaults stand for anything the profile leaves
// unset. RootCacheTTLSeconds is not applied; Config has no field for it.
func (p *DeploymentProfile) ApplyTo(cfg *Config) {
	if p == nil || cfg == nil {
		return
	}
	if p.BroadcastQueueSize > 0 {
		cfg.BroadcastQueueSize = p.BroadcastQueueSize
	}
	if p.SSEHeartbeatSeconds > 0 {
		cfg.SSEHeartbeatInterval = time.Duration(p.SSEHeartbeatSeconds) * time.Second
	}
}
