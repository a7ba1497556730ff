package config

import (
	"os"
	"path/filepath"
)

// Config holds daemon configuration: the global simulator parameters
// (spec.md §6) plus the addresses the daemon listens on.
type Config struct {
	GRPCAddress string
	RESTAddress string

	PacketPayloadBytes int64
	DefaultQuantum     int
	TraceEnabled       bool
	TimeHorizonSeconds float64

	DataDirectory            string
	MaxConcurrentSimulations int
	EventBufferSize          int
	RunQueueDepth            int
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local", "share", "cclsim")

	return &Config{
		GRPCAddress: "127.0.0.1:9090",
		RESTAddress: "127.0.0.1:8080",

		PacketPayloadBytes: 4096,
		DefaultQuantum:     1,
		TraceEnabled:       false,
		TimeHorizonSeconds: 0, // 0 => run until idle

		DataDirectory:            dataDir,
		MaxConcurrentSimulations: 8,
		EventBufferSize:          100,
		RunQueueDepth:            32,
	}
}

// LoadConfig loads configuration from file (simplified - just returns
// default). CLI/YAML/JSON config-file parsing is explicitly out of scope
// for the core; a daemon deployment that needs it can layer one in front
// of Config without touching the engine.
func LoadConfig(configPath string) (*Config, error) {
	// For simplicity, return default config
	// In production, this would parse a config file
	return DefaultConfig(), nil
}
