// Package config loads ekaya-joins settings from config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-joins.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Datasource DSNs may reference secrets as ${VAR}; they are expanded at load time.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// AllowedOrigins lists origins allowed by CORS. "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:"," env-default:"*"`

	Limits      LimitsConfig       `yaml:"limits"`
	Datasources []DatasourceConfig `yaml:"datasources"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	MCP         MCPConfig          `yaml:"mcp"`
}

// LimitsConfig bounds the work a single request may cause. Zero disables a cap
// for the join limits.
type LimitsConfig struct {
	// MaxScoringWork caps value comparisons across all column pairs.
	MaxScoringWork int `yaml:"max_scoring_work" env:"JOIN_MAX_SCORING_WORK" env-default:"50000000"`
	// MaxOutputRows caps the merged table; a step that would exceed it is skipped.
	MaxOutputRows int `yaml:"max_output_rows" env:"JOIN_MAX_OUTPUT_ROWS" env-default:"1000000"`
	// MaxUploadBytes caps request bodies on upload endpoints.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" env-default:"52428800"`
	// MaxTableRows caps rows read from one database table.
	MaxTableRows int `yaml:"max_table_rows" env:"MAX_TABLE_ROWS" env-default:"100000"`
	PreviewRows  int `yaml:"preview_rows" env:"PREVIEW_ROWS" env-default:"5"`
	TopMatches   int `yaml:"top_matches" env:"TOP_MATCHES" env-default:"10"`
}

// DatasourceConfig names a database that request datasets may read tables from.
type DatasourceConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // "postgres", "sqlserver", "sqlite"
	DSN  string `yaml:"dsn"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Datadog DatadogConfig `yaml:"datadog"`
}

// DatadogConfig holds Datadog submission settings. The API key and site are read
// by the Datadog client from DD_API_KEY and DD_SITE.
type DatadogConfig struct {
	Enabled      bool     `yaml:"enabled" env:"DD_METRICS_ENABLED" env-default:"false"`
	JobName      string   `yaml:"job_name" env:"DD_METRICS_JOB" env-default:"ekaya-joins"`
	Tags         []string `yaml:"tags" env:"DD_METRICS_TAGS" env-separator:","`
	FlushSeconds int      `yaml:"flush_seconds" env:"DD_METRICS_FLUSH_SECONDS" env-default:"60"`
}

// FlushEvery returns the flush interval as a duration.
func (d DatadogConfig) FlushEvery() time.Duration {
	return time.Duration(d.FlushSeconds) * time.Second
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// A missing config.yaml is not an error; settings then come from the environment
// and defaults. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.expandDatasources()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// expandDatasources resolves ${VAR} references in DSNs and rewrites localhost
// hosts when running inside Docker.
func (c *Config) expandDatasources() {
	for i := range c.Datasources {
		ds := &c.Datasources[i]
		ds.Name = strings.TrimSpace(ds.Name)
		ds.Type = strings.ToLower(strings.TrimSpace(ds.Type))
		ds.DSN = ResolveDSNForDocker(os.ExpandEnv(ds.DSN))
	}
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Datasources))
	for i, ds := range c.Datasources {
		if ds.Name == "" {
			return fmt.Errorf("datasources[%d]: name is required", i)
		}
		if seen[ds.Name] {
			return fmt.Errorf("datasources[%d]: duplicate name %q", i, ds.Name)
		}
		seen[ds.Name] = true
		if ds.Type == "" {
			return fmt.Errorf("datasource %q: type is required", ds.Name)
		}
		if ds.DSN == "" {
			return fmt.Errorf("datasource %q: dsn is required", ds.Name)
		}
	}

	if c.Limits.PreviewRows <= 0 {
		return errors.New("limits.preview_rows must be positive")
	}
	if c.Limits.MaxUploadBytes <= 0 {
		return errors.New("limits.max_upload_bytes must be positive")
	}
	return nil
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}
