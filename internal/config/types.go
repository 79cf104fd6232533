// Package config loads nestgrid configuration from nestgrid.yaml,
// NESTGRID_ environment variables, and CLI flags, in ascending
// precedence. It is decoupled from CLI concerns so the server and
// tools can load project configuration directly.
package config

import (
	"fmt"
	"strings"
)

// EnrichConfig points at the enrichment provider service.
type EnrichConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
}

// ChatConfig points at the completion endpoint used by AI columns and
// the workspace chat.
type ChatConfig struct {
	Endpoint string `koanf:"endpoint"`
	APIKey   string `koanf:"api_key"`
	Model    string `koanf:"model"`
}

// ServerConfig configures `nestgrid serve`.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	// SessionKey signs the session cookie carrying per-session state.
	SessionKey string `koanf:"session_key"`
	// WatchDir, when set, is watched for dropped CSV files to import.
	WatchDir string `koanf:"watch_dir"`
}

// RunConfig tunes enrichment execution.
type RunConfig struct {
	BatchSize int `koanf:"batch_size"`
	// AutoRunDebounceSeconds is the quiet period before an automatic
	// sweep fires.
	AutoRunDebounceSeconds int `koanf:"auto_run_debounce_seconds"`
}

// NestConfig configures the default external record source.
type NestConfig struct {
	// Type is csv, postgres, or duckdb.
	Type     string `koanf:"type"`
	Path     string `koanf:"path"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"sslmode"`
	Table    string `koanf:"table"`
	Query    string `koanf:"query"`
}

// Config is the resolved nestgrid configuration.
type Config struct {
	// ProjectRoot is the directory holding nestgrid.yaml (or the CWD).
	ProjectRoot string `koanf:"-"`

	StatePath string `koanf:"state_path"`
	Verbose   bool   `koanf:"verbose"`
	// Output selects CLI rendering: text or json.
	Output string `koanf:"output"`

	Enrich EnrichConfig `koanf:"enrich"`
	Chat   ChatConfig   `koanf:"chat"`
	Server ServerConfig `koanf:"server"`
	Run    RunConfig    `koanf:"run"`
	Nest   NestConfig   `koanf:"nest"`
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Output {
	case "text", "json":
	default:
		return fmt.Errorf("invalid output format %q (want text or json)", c.Output)
	}
	if c.Nest.Type != "" {
		switch strings.ToLower(c.Nest.Type) {
		case "csv", "postgres", "duckdb":
		default:
			return fmt.Errorf("unknown nest type %q (want csv, postgres, or duckdb)", c.Nest.Type)
		}
	}
	if c.Run.BatchSize < 0 {
		return fmt.Errorf("run.batch_size cannot be negative")
	}
	return nil
}
