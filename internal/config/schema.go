package config

// Schema sources.
const (
	SchemaSourceYAML   = "yaml"
	SchemaSourceSQLite = "sqlite"
)

// SchemaConfig configures where the schema oracle reads type and role
// hierarchies from.
type SchemaConfig struct {
	Source         string `yaml:"source"`           // yaml, sqlite
	Path           string `yaml:"path"`             // YAML schema definition
	DatabasePath   string `yaml:"database_path"`    // SQLite schema store
	CacheSize      int    `yaml:"cache_size"`       // LRU entries for oracle lookups
	PinShardCounts bool   `yaml:"pin_shard_counts"` // freeze shard counts per planning pass
}
