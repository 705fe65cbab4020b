// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for trustbim configuration.
	DefaultConfigDir = ".trustbim"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultRulesDir is the default rule catalog directory, relative to the project root.
	DefaultRulesDir = "rules"
	// DefaultStoreFile is the default SQLite run store file name.
	DefaultStoreFile = "runs.db"
)

var (
	// reNonAlphanumeric matches characters that aren't alphanumeric or underscore.
	reNonAlphanumeric = regexp.MustCompile(`[^a-z0-9_]`)
	// reMultipleUnderscores matches consecutive underscores.
	reMultipleUnderscores = regexp.MustCompile(`_+`)
)

// Config holds static configuration (read-only after init).
type Config struct {
	Project    string           `yaml:"project,omitempty"`
	Rules      string           `yaml:"rules,omitempty"`
	Validation ValidationConfig `yaml:"validation,omitempty"`
	Output     OutputConfig     `yaml:"output,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty"`
	Assist     AssistConfig     `yaml:"assist,omitempty"`
	Embedder   EmbedderConfig   `yaml:"embedder,omitempty"`
	Qdrant     QdrantConfig     `yaml:"qdrant,omitempty"`
	Store      StoreConfig      `yaml:"store,omitempty"`
}

// ValidationConfig holds engine settings.
type ValidationConfig struct {
	Mode                string   `yaml:"mode,omitempty"`
	Workers             int      `yaml:"workers,omitempty"`
	ConfidenceThreshold *float64 `yaml:"confidence_threshold,omitempty"`
	ReviewSeverities    []string `yaml:"review_severities,omitempty"`
	AssistPrecedence    string   `yaml:"assist_precedence,omitempty"`
	Audit               bool     `yaml:"audit,omitempty"`
	FailOn              []string `yaml:"fail_on,omitempty"`
}

// OutputConfig selects where run tables are written.
type OutputConfig struct {
	Dir     string   `yaml:"dir,omitempty"`
	Formats []string `yaml:"formats,omitempty"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// Textfile is a Prometheus textfile-collector path; empty disables export.
	Textfile string `yaml:"textfile,omitempty"`
}

// AssistConfig holds configuration for the class assistant LLM.
type AssistConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	TopN     int    `yaml:"top_n,omitempty"`
	Workers  int    `yaml:"workers,omitempty"`
}

// EmbedderConfig holds configuration for the embedding provider.
type EmbedderConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// QdrantConfig holds configuration for the Qdrant reference store.
type QdrantConfig struct {
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
}

// StoreConfig selects the relational run store.
type StoreConfig struct {
	// Driver is "sqlite", "postgres" or empty for no run store.
	Driver string `yaml:"driver,omitempty"`
	// Path is the SQLite database file.
	Path string `yaml:"path,omitempty"`
	// DSN is the Postgres connection string.
	DSN string `yaml:"dsn,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Project: "default",
		Rules:   DefaultRulesDir,
		Validation: ValidationConfig{
			Mode:             "tolerant",
			ReviewSeverities: []string{"error"},
			AssistPrecedence: "fallback",
		},
		Output: OutputConfig{
			Dir:     "output",
			Formats: []string{"csv", "json"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Assist: AssistConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			TopN:     5,
			Workers:  2,
		},
		Embedder: EmbedderConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
	}
}

// Load loads configuration from the .trustbim directory in the given path.
func Load(basePath string) (*Config, error) {
	return LoadFile(ConfigFilePath(basePath))
}

// LoadFile loads configuration from an explicit file.
func LoadFile(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'trustbim init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()

	return cfg, nil
}

// LoadOrDefault loads the project config when it exists and falls back to
// defaults (with environment overrides) otherwise.
func LoadOrDefault(basePath string) (*Config, error) {
	if !Exists(basePath) {
		cfg := Default()
		cfg.applyEnvOverrides()
		return cfg, nil
	}
	return Load(basePath)
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.Assist.APIKey == "" {
			c.Assist.APIKey = key
		}
		if c.Embedder.APIKey == "" {
			c.Embedder.APIKey = key
		}
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" {
		if c.Qdrant.APIKey == "" {
			c.Qdrant.APIKey = key
		}
	}
	if dsn := os.Getenv("TRUSTBIM_POSTGRES_DSN"); dsn != "" {
		c.Store.DSN = dsn
		if c.Store.Driver == "" {
			c.Store.Driver = "postgres"
		}
	}
	if level := os.Getenv("TRUSTBIM_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// RulesPath resolves the rule catalog location against the project root.
func (c *Config) RulesPath(basePath string) string {
	if c.Rules == "" || filepath.IsAbs(c.Rules) {
		return c.Rules
	}
	return filepath.Join(basePath, c.Rules)
}

// StorePath resolves the SQLite path, defaulting to .trustbim/runs.db.
func (c *Config) StorePath(basePath string) string {
	if c.Store.Path == "" {
		return filepath.Join(basePath, DefaultConfigDir, DefaultStoreFile)
	}
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(basePath, c.Store.Path)
}

// CollectionName returns the Qdrant collection for reference documents,
// derived from the project name unless set explicitly.
func (c *Config) CollectionName() string {
	if c.Qdrant.Collection != "" {
		return c.Qdrant.Collection
	}
	return GenerateCollectionName(c.Project)
}

// ConfigDir returns the path to the .trustbim config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// SanitizeName converts a project name to a valid collection suffix.
func SanitizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	name = reNonAlphanumeric.ReplaceAllString(name, "")
	name = reMultipleUnderscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if name == "" {
		return "default"
	}

	return name
}

// GenerateCollectionName creates a reference collection name for a project.
func GenerateCollectionName(project string) string {
	return "trustbim_" + SanitizeName(project) + "_references"
}
