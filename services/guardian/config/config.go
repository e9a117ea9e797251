// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads guardian configuration with priority
// env > file > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level guardian configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after
// creation.
type Config struct {
	// Server contains HTTP listener settings.
	Server ServerConfig `json:"server" yaml:"server"`

	// Pipeline contains check pipeline settings.
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`

	// Keyword contains keyword filter settings.
	Keyword KeywordConfig `json:"keyword" yaml:"keyword"`

	// Detectors lists the model-backed detectors in resolution order.
	// The first entry is conventionally the primary.
	Detectors []DetectorConfig `json:"detectors" yaml:"detectors"`

	// Audit contains audit log and token counter settings.
	Audit AuditConfig `json:"audit" yaml:"audit"`

	// Stats contains the aggregate counter store settings.
	Stats StatsConfig `json:"stats" yaml:"stats"`

	// Observability contains tracing, metrics, and logging settings.
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// Duration is a time.Duration that reads "30s" style strings from YAML
// and JSON config files. JSON additionally accepts bare numbers as
// nanoseconds, matching encoding/json's native time.Duration form.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", t, err)
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(t)
		return nil
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host            string   `json:"host" yaml:"host"`
	Port            int      `json:"port" yaml:"port"`
	ReadTimeout     Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// PipelineConfig contains check pipeline settings.
type PipelineConfig struct {
	// Deadline bounds one full check, detectors included.
	Deadline Duration `json:"deadline" yaml:"deadline"`

	// ShortCircuit skips the detectors when the keyword filter already
	// flagged the text.
	ShortCircuit bool `json:"short_circuit" yaml:"short_circuit"`

	// Strategy picks the conflict resolution for detector sets the
	// two-guard table does not cover: highest_severity, majority, or
	// first_unsafe.
	Strategy string `json:"strategy" yaml:"strategy"`
}

// KeywordConfig contains keyword filter settings.
type KeywordConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the blacklist YAML backing file. Empty runs from the
	// embedded defaults without persistence.
	Path string `json:"path" yaml:"path"`

	// Watch reloads the backing file on change.
	Watch bool `json:"watch" yaml:"watch"`
}

// DetectorConfig describes one model-backed detector.
type DetectorConfig struct {
	// Name is the detector id used in audit lines and resolver roles.
	Name string `json:"name" yaml:"name"`

	// Type selects the reply parser: llama_guard or granite_guard.
	Type string `json:"type" yaml:"type"`

	// Role is primary, secondary, or none.
	Role string `json:"role" yaml:"role"`

	// Backend selects the transport: ollama or openai.
	Backend string `json:"backend" yaml:"backend"`

	// Model is the backend model name.
	Model string `json:"model" yaml:"model"`

	// BaseURL overrides the backend endpoint.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey authenticates openai-compatible backends.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Timeout bounds one inspection. Must fit inside Pipeline.Deadline.
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// AuditConfig contains audit log and token counter settings.
type AuditConfig struct {
	// LogPath is the append-only audit log file.
	LogPath string `json:"log_path" yaml:"log_path"`

	// CounterPath is the token counter state file. Empty derives
	// LogPath + ".counter".
	CounterPath string `json:"counter_path" yaml:"counter_path"`
}

// StatsConfig contains aggregate counter store settings.
type StatsConfig struct {
	// Path is the on-disk store directory. Ignored when InMemory is set.
	Path string `json:"path" yaml:"path"`

	// InMemory keeps counters in RAM only. Used by tests and dev runs.
	InMemory bool `json:"in_memory" yaml:"in_memory"`
}

// ObservabilityConfig contains tracing, metrics, and logging settings.
type ObservabilityConfig struct {
	TracingEnabled bool   `json:"tracing_enabled" yaml:"tracing_enabled"`
	MetricsEnabled bool   `json:"metrics_enabled" yaml:"metrics_enabled"`
	OTLPEndpoint   string `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName    string `json:"service_name" yaml:"service_name"`
	LogLevel       string `json:"log_level" yaml:"log_level"`
}

// Default detector models. Both run through Ollama unless overridden.
const (
	DefaultPrimaryModel   = "llama-guard3"
	DefaultSecondaryModel = "granite3-guardian:8b"
	DefaultOllamaURL      = "http://localhost:11434"
)

// DefaultConfig returns the configuration used when no file or env
// override is present: both stock detectors against a local Ollama, the
// keyword filter on, and a 30 second check deadline.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8086,
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(45 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Pipeline: PipelineConfig{
			Deadline:     Duration(30 * time.Second),
			ShortCircuit: true,
			Strategy:     "highest_severity",
		},
		Keyword: KeywordConfig{
			Enabled: true,
			Path:    "data/blacklist.yaml",
			Watch:   true,
		},
		Detectors: []DetectorConfig{
			{
				Name:    "llama_guard",
				Type:    "llama_guard",
				Role:    "primary",
				Backend: "ollama",
				Model:   DefaultPrimaryModel,
				BaseURL: DefaultOllamaURL,
				Timeout: Duration(25 * time.Second),
			},
			{
				Name:    "granite_guard",
				Type:    "granite_guard",
				Role:    "secondary",
				Backend: "ollama",
				Model:   DefaultSecondaryModel,
				BaseURL: DefaultOllamaURL,
				Timeout: Duration(25 * time.Second),
			},
		},
		Audit: AuditConfig{
			LogPath: "data/guardian_audit.log",
		},
		Stats: StatsConfig{
			Path: "data/guardian_stats",
		},
		Observability: ObservabilityConfig{
			TracingEnabled: false,
			MetricsEnabled: true,
			ServiceName:    "aleutian-guardian",
			LogLevel:       "info",
		},
	}
}

// Load builds the configuration with priority env > file > defaults.
// A missing file is not an error; an unreadable or unparsable one is.
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	loadConfigFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadConfigFromEnv(cfg *Config) {
	if v := os.Getenv("GUARDIAN_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("GUARDIAN_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = i
		}
	}
	if v := os.Getenv("GUARDIAN_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.Deadline = Duration(d)
		}
	}
	if v := os.Getenv("GUARDIAN_SHORT_CIRCUIT"); v != "" {
		cfg.Pipeline.ShortCircuit = v == "true" || v == "1"
	}
	if v := os.Getenv("GUARDIAN_STRATEGY"); v != "" {
		cfg.Pipeline.Strategy = v
	}
	if v := os.Getenv("GUARDIAN_KEYWORD_ENABLED"); v != "" {
		cfg.Keyword.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GUARDIAN_BLACKLIST_PATH"); v != "" {
		cfg.Keyword.Path = v
	}
	if v := os.Getenv("GUARDIAN_BLACKLIST_WATCH"); v != "" {
		cfg.Keyword.Watch = v == "true" || v == "1"
	}
	if v := os.Getenv("GUARDIAN_AUDIT_LOG"); v != "" {
		cfg.Audit.LogPath = v
	}
	if v := os.Getenv("GUARDIAN_COUNTER_STATE"); v != "" {
		cfg.Audit.CounterPath = v
	}
	if v := os.Getenv("GUARDIAN_STATS_PATH"); v != "" {
		cfg.Stats.Path = v
	}
	if v := os.Getenv("GUARDIAN_STATS_IN_MEMORY"); v != "" {
		cfg.Stats.InMemory = v == "true" || v == "1"
	}

	// Backend endpoints apply to every detector that did not pin its own.
	if v := os.Getenv("GUARDIAN_OLLAMA_URL"); v != "" {
		for i := range cfg.Detectors {
			if cfg.Detectors[i].Backend == "ollama" {
				cfg.Detectors[i].BaseURL = v
			}
		}
	}
	if v := os.Getenv("GUARDIAN_OPENAI_API_KEY"); v != "" {
		for i := range cfg.Detectors {
			if cfg.Detectors[i].Backend == "openai" {
				cfg.Detectors[i].APIKey = v
			}
		}
	}
	if v := os.Getenv("GUARDIAN_PRIMARY_MODEL"); v != "" && len(cfg.Detectors) > 0 {
		cfg.Detectors[0].Model = v
	}
	if v := os.Getenv("GUARDIAN_SECONDARY_MODEL"); v != "" && len(cfg.Detectors) > 1 {
		cfg.Detectors[1].Model = v
	}
	if v := os.Getenv("GUARDIAN_DETECTOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			for i := range cfg.Detectors {
				cfg.Detectors[i].Timeout = Duration(d)
			}
		}
	}

	if v := os.Getenv("GUARDIAN_TRACING_ENABLED"); v != "" {
		cfg.Observability.TracingEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GUARDIAN_METRICS_ENABLED"); v != "" {
		cfg.Observability.MetricsEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GUARDIAN_OTLP_ENDPOINT"); v != "" {
		cfg.Observability.OTLPEndpoint = v
	}
	if v := os.Getenv("GUARDIAN_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}

// Validate checks the configuration for contradictions. It does not probe
// backends; detector reachability is a runtime concern.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.Pipeline.Deadline < Duration(time.Second) {
		return fmt.Errorf("pipeline deadline must be >= 1s")
	}
	switch c.Pipeline.Strategy {
	case "highest_severity", "majority", "first_unsafe":
	default:
		return fmt.Errorf("unknown resolution strategy %q", c.Pipeline.Strategy)
	}

	seen := make(map[string]bool, len(c.Detectors))
	primaries := 0
	for i, d := range c.Detectors {
		if d.Name == "" {
			return fmt.Errorf("detector %d has no name", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate detector name %q", d.Name)
		}
		seen[d.Name] = true

		switch d.Type {
		case "llama_guard", "granite_guard":
		default:
			return fmt.Errorf("detector %q has unknown type %q", d.Name, d.Type)
		}
		switch d.Role {
		case "primary":
			primaries++
		case "secondary", "none", "":
		default:
			return fmt.Errorf("detector %q has unknown role %q", d.Name, d.Role)
		}
		switch d.Backend {
		case "ollama", "openai":
		default:
			return fmt.Errorf("detector %q has unknown backend %q", d.Name, d.Backend)
		}
		if d.Model == "" {
			return fmt.Errorf("detector %q has no model", d.Name)
		}
		if d.Timeout <= 0 {
			return fmt.Errorf("detector %q timeout must be > 0", d.Name)
		}
		if d.Timeout > c.Pipeline.Deadline {
			return fmt.Errorf("detector %q timeout %s exceeds pipeline deadline %s",
				d.Name, d.Timeout, c.Pipeline.Deadline)
		}
	}
	if primaries > 1 {
		return fmt.Errorf("at most one detector may hold the primary role, got %d", primaries)
	}

	if c.Audit.LogPath == "" {
		return fmt.Errorf("audit log path must be set")
	}
	if !c.Stats.InMemory && c.Stats.Path == "" {
		return fmt.Errorf("stats path must be set unless in_memory is true")
	}
	return nil
}

// CounterStatePath resolves the token counter state file, deriving it from
// the audit log path when unset.
func (c Config) CounterStatePath() string {
	if c.Audit.CounterPath != "" {
		return c.Audit.CounterPath
	}
	return c.Audit.LogPath + ".counter"
}

// Addr formats the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
