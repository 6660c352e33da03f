package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all reasoner configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Schema oracle source
	Schema SchemaConfig `yaml:"schema"`

	// Unification defaults
	Unification UnificationConfig `yaml:"unification"`

	// Rule applicability scans
	Rules RulesConfig `yaml:"rules"`

	// Answer reuse cache
	Cache CacheConfig `yaml:"cache"`

	// Mangle-backed instance store
	Instance InstanceConfig `yaml:"instance"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "reasoner",
		Version: "0.1.0",
		Schema: SchemaConfig{
			Source:         SchemaSourceYAML,
			Path:           "schema.yaml",
			DatabasePath:   "schema.db",
			CacheSize:      1024,
			PinShardCounts: true,
		},
		Unification: UnificationConfig{
			DefaultType: "rule",
			MaxUnifiers: 256,
		},
		Rules: RulesConfig{
			Parallelism: 4,
		},
		Cache: CacheConfig{
			Size: 512,
		},
		Instance: InstanceConfig{
			FactLimit: 100000,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("REASONER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if debug := os.Getenv("REASONER_DEBUG"); debug != "" {
		if v, err := strconv.ParseBool(debug); err == nil {
			c.Logging.DebugMode = v
		}
	}
	if path := os.Getenv("REASONER_SCHEMA_PATH"); path != "" {
		c.Schema.Path = path
	}
	if path := os.Getenv("REASONER_DATABASE_PATH"); path != "" {
		c.Schema.DatabasePath = path
		c.Schema.Source = SchemaSourceSQLite
	}
}

// ValidUnifierTypes lists the unifier types accepted in configuration.
var ValidUnifierTypes = []string{"exact", "structural", "rule", "subsumptive"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Schema.Source {
	case SchemaSourceYAML:
		if c.Schema.Path == "" {
			return fmt.Errorf("schema.path is required for source %q", c.Schema.Source)
		}
	case SchemaSourceSQLite:
		if c.Schema.DatabasePath == "" {
			return fmt.Errorf("schema.database_path is required for source %q", c.Schema.Source)
		}
	default:
		return fmt.Errorf("invalid schema source: %s (valid: %s, %s)", c.Schema.Source, SchemaSourceYAML, SchemaSourceSQLite)
	}

	validType := false
	for _, t := range ValidUnifierTypes {
		if strings.EqualFold(c.Unification.DefaultType, t) {
			validType = true
			break
		}
	}
	if !validType {
		return fmt.Errorf("invalid unifier type: %s (valid: %v)", c.Unification.DefaultType, ValidUnifierTypes)
	}

	if c.Unification.MaxUnifiers < 0 {
		return fmt.Errorf("unification.max_unifiers must be >= 0, got %d", c.Unification.MaxUnifiers)
	}
	if c.Rules.Parallelism < 1 {
		return fmt.Errorf("rules.parallelism must be >= 1, got %d", c.Rules.Parallelism)
	}
	if c.Cache.Size < 1 {
		return fmt.Errorf("cache.size must be >= 1, got %d", c.Cache.Size)
	}
	if c.Schema.CacheSize < 1 {
		return fmt.Errorf("schema.cache_size must be >= 1, got %d", c.Schema.CacheSize)
	}

	return nil
}
