package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the GoAPS server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format"` // Log format: text, json
	DBPath    string `yaml:"db_path"`    // SQLite database path (default ~/.goaps/goaps.db, ":memory:" for testing)

	Engine  EngineConfig  `yaml:"engine"`
	Monitor MonitorConfig `yaml:"monitor"`
	Solver  SolverConfig  `yaml:"solver"`

	// LineCapacity caps the total quantity per (line, date, shift) slot.
	// Groups exceeding the cap get a FATAL conflict. Zero means unlimited.
	LineCapacity map[string]int `yaml:"line_capacity"`

	// SetupTablePath points at a YAML setup-compatibility table. Empty uses
	// the built-in default transition costs.
	SetupTablePath string `yaml:"setup_table"`
}

// EngineConfig holds optimization-engine connection settings.
type EngineConfig struct {
	URL         string        `yaml:"url"`          // JSON-RPC endpoint of the engine
	CallTimeout time.Duration `yaml:"call_timeout"` // per-call deadline (default 300s)
	PingTimeout time.Duration `yaml:"ping_timeout"` // health-check deadline (default 10s)
}

// SolverConfig sets engine-side solver parameters applied to every job.
// Zero values defer to the engine's own defaults.
type SolverConfig struct {
	Algorithm    string `yaml:"algorithm"`
	TimeBudgetMS int    `yaml:"time_budget_ms"`
	Seed         int64  `yaml:"seed"`
}

// MonitorConfig holds background-sweep intervals.
type MonitorConfig struct {
	StatusInterval  time.Duration `yaml:"status_interval"`  // running-job status sweep (default 30s)
	TimeoutInterval time.Duration `yaml:"timeout_interval"` // stale-job reclaim sweep (default 1h)
	HealthInterval  time.Duration `yaml:"health_interval"`  // engine health check (default 5m)
	JobTimeout      time.Duration `yaml:"job_timeout"`      // RUNNING older than this is failed (default 2h)
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		Engine: EngineConfig{
			URL:         "http://localhost:9090/rpc",
			CallTimeout: 300 * time.Second,
			PingTimeout: 10 * time.Second,
		},
		Monitor: MonitorConfig{
			StatusInterval:  30 * time.Second,
			TimeoutInterval: time.Hour,
			HealthInterval:  5 * time.Minute,
			JobTimeout:      2 * time.Hour,
		},
	}
}

// LoadFile merges values from a YAML file into cfg. Fields absent from the
// file keep their current values, so flags applied afterwards win.
func LoadFile(path string, cfg *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
