// Package config loads runtime configuration from the environment, in the
// getenv-with-default style the rest of this codebase uses rather than a
// parsing framework.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the full set of environment inputs to cmd/talos-audit.
// StorageType and its adapter-specific variables are the only inputs that
// affect the core's behavior; everything else tunes ambient concerns
// (listen port, logging, broadcast/SSE sizing).
type Config struct {
	Port                  string
	LogLevel              string
	StorageType           string // "memory" | "postgres"
	DatabaseURL           string
	RedisURL              string
	BroadcastQueueSize    int
	SSEHeartbeatInterval  time.Duration
	DeploymentProfilePath string
}

// Load reads Config from the process environment, applying the same
// defaults a developer running the service locally without any env file
// would get.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	storageType := os.Getenv("TALOS_STORAGE_TYPE")
	if storageType == "" {
		storageType = "memory"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://talos@localhost:5432/talos?sslmode=disable"
	}

	redisURL := os.Getenv("REDIS_URL")

	queueSize := 100
	if v := os.Getenv("TALOS_BROADCAST_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			queueSize = n
		}
	}

	heartbeat := 30 * time.Second
	if v := os.Getenv("TALOS_SSE_HEARTBEAT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			heartbeat = time.Duration(n) * time.Second
		}
	}

	return &Config{
		Port:                  port,
		LogLevel:              logLevel,
		StorageType:           storageType,
		DatabaseURL:           dbURL,
		RedisURL:              redisURL,
		BroadcastQueueSize:    queueSize,
		SSEHeartbeatInterval:  heartbeat,
		DeploymentProfilePath: os.Getenv("TALOS_DEPLOYMENT_PROFILE"),
	}
}
