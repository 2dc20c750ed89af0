package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/talosprotocol/talos-audit-service/pkg/config"
)

func TestLoadDeploymentProfile_AppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	content := `
name: high-throughput
broadcast_queue_size: 1000
sse_heartbeat_seconds: 10
root_cache_ttl_seconds: 2
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	profile, err := config.LoadDeploymentProfile(path)
	if err != nil {
		t.Fatal(err)
	}
	if profile.Name != "high-throughput" {
		t.Errorf("expected name high-throughput, got %q", profile.Name)
	}

	cfg := &config.Config{BroadcastQueueSize: 100, SSEHeartbeatInterval: 30 * time.Second}
	profile.ApplyTo(cfg)

	if cfg.BroadcastQueueSize != 1000 {
		t.Errorf("expected queue size overridden to 1000, got %d", cfg.BroadcastQueueSize)
	}
	if cfg.SSEHeartbeatInterval != 10*time.Second {
		t.Errorf("expected heartbeat overridden to 10s, got %v", cfg.SSEHeartbeatInterval)
	}
}

func TestLoadDeploymentProfile_MissingFile(t *testing.T) {
	if _, err := config.LoadDeploymentProfile("/nonexistent/profile.yaml"); err == nil {
		t.Fatal("expected an error for a missing profile file")
	}
}

func TestDeploymentProfile_ApplyTo_NilProfileIsNoop(t *testing.T) {
	var profile *config.DeploymentProfile
	cfg := &config.Config{BroadcastQueueSize: 42}
	profile.ApplyTo(cfg)
	if cfg.BroadcastQueueSize != 42 {
		t.Errorf("expected unchanged config, got %d", cfg.BroadcastQueueSize)
	}
}
