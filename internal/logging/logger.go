// Package logging provides config-driven categorized logging for the reasoner.
// Each subsystem logs through a named zap logger; logging is controlled by
// debug_mode in the config file - when false, every category is a no-op.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot        Category = "boot"        // Boot/initialization
	CategorySchema      Category = "schema"      // Schema oracle lookups, SQLite store, snapshots
	CategoryInference   Category = "inference"   // Type/role inference
	CategoryUnify       Category = "unify"       // Unifier enumeration
	CategorySemantic    Category = "semantic"    // Semantic difference computation
	CategoryEquivalence Category = "equivalence" // Alpha/structural equivalence
	CategoryCache       Category = "cache"       // Answer reuse cache
	CategoryRules       Category = "rules"       // Rule applicability scans
	CategoryInstance    Category = "instance"    // Instance materialisation
)

// Categories lists every known category in a stable order.
var Categories = []Category{
	CategoryBoot,
	CategorySchema,
	CategoryInference,
	CategoryUnify,
	CategorySemantic,
	CategoryEquivalence,
	CategoryCache,
	CategoryRules,
	CategoryInstance,
}

// Options mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	DebugMode  bool            // master toggle
	Categories map[string]bool // per-category toggles; missing = enabled
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	opts    Options
	loggers = make(map[Category]*zap.Logger)
)

// Initialize builds the root logger from the given options.
// Safe to call more than once; later calls replace earlier loggers.
func Initialize(o Options) error {
	if !o.DebugMode {
		SetRoot(zap.NewNop(), o)
		return nil
	}

	level, err := parseLevel(o.Level)
	if err != nil {
		return err
	}

	var cfg zap.Config
	if strings.EqualFold(o.Format, "console") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetRoot(l, o)

	boot := Get(CategoryBoot)
	boot.Info("logging initialized",
		zap.String("level", level.String()),
		zap.String("format", cfg.Encoding))
	return nil
}

// SetRoot installs l as the root logger. Tests use it with zaptest or
// observer cores.
func SetRoot(l *zap.Logger, o Options) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	root = l
	opts = o
	loggers = make(map[Category]*zap.Logger)
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
func Get(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := zap.NewNop()
	if categoryEnabledLocked(category) {
		l = root.Named(string(category))
	}
	loggers[category] = l
	return l
}

// Sync flushes the root logger.
func Sync() {
	mu.RLock()
	l := root
	mu.RUnlock()
	_ = l.Sync()
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer starts timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("operation completed",
		zap.String("op", t.op),
		zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithThreshold logs a warning if the duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("slow operation",
			zap.String("op", t.op),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", threshold))
	} else {
		Get(t.category).Debug("operation completed",
			zap.String("op", t.op),
			zap.Duration("elapsed", elapsed))
	}
	return elapsed
}
