package config

// UnificationConfig configures unifier defaults.
type UnificationConfig struct {
	DefaultType string `yaml:"default_type"` // exact, structural, rule, subsumptive
	MaxUnifiers int    `yaml:"max_unifiers"` // cap per enumeration, 0 = unbounded
}

// RulesConfig configures rule applicability scans.
type RulesConfig struct {
	Parallelism int `yaml:"parallelism"`
}

// CacheConfig configures the answer reuse cache.
type CacheConfig struct {
	Size int `yaml:"size"`
}

// InstanceConfig configures the Mangle-backed instance store.
type InstanceConfig struct {
	FactLimit int `yaml:"fact_limit"`
}
