// Package daemon manages the Ampli daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	API           APIConfig           `toml:"api"`
	Orchestrator  OrchestratorConfig  `toml:"orchestrator"`
	FinOps        FinOpsConfig        `toml:"finops"`
	SLO           SLOConfig           `toml:"slo"`
	Breakers      BreakerConfig       `toml:"breakers"`
	Queue         QueueConfig         `toml:"queue"`
	Collaborators CollaboratorConfig  `toml:"collaborators"`
	Rollouts      map[string]int      `toml:"rollouts"`
	Telemetry     TelemetryConfig     `toml:"telemetry"`
	Logging       LoggingConfig       `toml:"logging"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// OrchestratorConfig controls the worker pools and competitions.
type OrchestratorConfig struct {
	Workers     int      `toml:"workers"`
	Competitors []string `toml:"competitors"`
	// EvolutionMinDelta is the win-rate delta required to trigger the
	// evolution pipeline.
	EvolutionMinDelta float64 `toml:"evolution_min_delta"`
	// ResultRetention bounds how long settled results stay queryable.
	ResultRetention string `toml:"result_retention"` // e.g. "24h"
}

// FinOpsConfig controls cost estimation and the margin guardrail.
// Amounts are microdollars.
type FinOpsConfig struct {
	DefaultMarginMicro int64            `toml:"default_margin_micro"`
	MarginMicro        map[string]int64 `toml:"margin_micro"`
	PlatformRateMicro  int64            `toml:"platform_rate_micro"`
	VariantRateMicro   int64            `toml:"variant_rate_micro"`
	// Window is the billing window; tenant spend resets on rollover.
	Window string `toml:"window"` // e.g. "24h"
}

// SLOConfig controls the error budget.
type SLOConfig struct {
	AllottedBudget int64  `toml:"allotted_budget"`
	Window         string `toml:"window"` // e.g. "24h"
}

// BreakerConfig controls the collaborator circuit breakers. The news
// collaborator is fast and critical, the per-platform share fan-out is
// slower and best-effort, so they carry distinct call timeouts.
type BreakerConfig struct {
	ErrorThreshold   int    `toml:"error_threshold"`
	ResetInterval    string `toml:"reset_interval"`     // e.g. "30s"
	NewsCallTimeout  string `toml:"news_call_timeout"`  // e.g. "2s"
	ShareCallTimeout string `toml:"share_call_timeout"` // e.g. "8s"
}

// QueueConfig controls back-pressure tiers.
type QueueConfig struct {
	SoftLimit   int `toml:"soft_limit"`
	MediumLimit int `toml:"medium_limit"`
	HardLimit   int `toml:"hard_limit"`
}

// CollaboratorConfig controls the simulated collaborators.
type CollaboratorConfig struct {
	LatencyMs   int     `toml:"latency_ms"`
	FailureRate float64 `toml:"failure_rate"`
	Seed        int64   `toml:"seed"`
}

// TelemetryConfig controls observability surfaces.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := ampliHome()
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8420,
		},
		Orchestrator: OrchestratorConfig{
			Workers:           10,
			EvolutionMinDelta: 0.05,
			ResultRetention:   "24h",
		},
		FinOps: FinOpsConfig{
			DefaultMarginMicro: 5_000_000,
			Window:             "24h",
		},
		SLO: SLOConfig{
			AllottedBudget: 100,
			Window:         "24h",
		},
		Breakers: BreakerConfig{
			ErrorThreshold:   5,
			ResetInterval:    "30s",
			NewsCallTimeout:  "2s",
			ShareCallTimeout: "8s",
		},
		Queue: QueueConfig{
			SoftLimit:   1_000,
			MediumLimit: 5_000,
			HardLimit:   10_000,
		},
		Collaborators: CollaboratorConfig{
			LatencyMs: 10,
		},
		Rollouts: map[string]int{
			"tasks-v2":               100,
			"self-compete":           100,
			"self-compete-evolution": 0,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(homeDir, "ampli.log"),
		},
	}
}

// LoadConfig reads config from ~/.ampli/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(ampliHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet — use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.ampli/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(ampliHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ampliHome returns the Ampli data directory.
func ampliHome() string {
	if env := os.Getenv("AMPLI_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ampli")
}

// AmpliHome is exported for use by other packages.
func AmpliHome() string {
	return ampliHome()
}
