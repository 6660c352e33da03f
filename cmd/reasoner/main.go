package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reasoner/internal/config"
	"reasoner/internal/logging"
	"reasoner/internal/schema"
	"reasoner/internal/unify"
)

var (
	// Global flags
	configPath string
	schemaPath string
	dbPath     string
	verbose    bool
	timeout    time.Duration

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "reasoner",
	Short: "Typed-atom unification and type inference",
	Long: `reasoner unifies typed query atoms against each other and against rule
conclusions, infers variable types from a schema, and computes the semantic
difference a child query adds over a cached parent.

Queries, rules and answers are read from YAML documents. The schema is read
from a YAML definition or from a SQLite store built with "schema import".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if schemaPath != "" {
			loaded.Schema.Source = config.SchemaSourceYAML
			loaded.Schema.Path = schemaPath
		}
		if dbPath != "" {
			loaded.Schema.Source = config.SchemaSourceSQLite
			loaded.Schema.DatabasePath = dbPath
		}
		if verbose {
			loaded.Logging.Level = "debug"
			loaded.Logging.DebugMode = true
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := logging.Initialize(loaded.Logging.Options()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		logger = logging.Get(logging.CategoryBoot)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "reasoner.yaml", "Config file")
	rootCmd.PersistentFlags().StringVarP(&schemaPath, "schema", "s", "", "YAML schema definition (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite schema store (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Operation timeout")

	unifyCmd.Flags().StringVarP(&unifierType, "type", "t", "", "Unifier type: exact, structural, rule, subsumptive (default from config)")
	unifyCmd.Flags().StringVar(&answersPath, "answers", "", "Parent answers to map back through each unifier")
	diffCmd.Flags().StringVar(&answersPath, "answers", "", "Parent answers to propagate through each difference")
	inferCmd.Flags().BoolVar(&inferRoles, "roles", true, "Use played roles when typing variables")
	materialiseCmd.Flags().StringVar(&answersPath, "answers", "", "Bindings to materialise against")

	schemaCmd.AddCommand(schemaImportCmd)
	schemaCmd.AddCommand(schemaShowCmd)
	schemaCmd.AddCommand(schemaWatchCmd)

	rootCmd.AddCommand(unifyCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(equivCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(materialiseCmd)
	rootCmd.AddCommand(schemaCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// commandContext bounds a command by the --timeout flag.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, timeout)
}

// openHierarchy builds the schema hierarchy from the configured source. The
// returned close function releases the SQLite store, if any.
func openHierarchy() (*schema.Hierarchy, func(), error) {
	var (
		base    schema.Oracle
		closeFn = func() {}
	)
	switch cfg.Schema.Source {
	case config.SchemaSourceSQLite:
		store, err := schema.OpenSQLStore(cfg.Schema.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		base = store
		closeFn = func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close schema store", zap.Error(err))
			}
		}
	default:
		g, err := schema.LoadYAML(cfg.Schema.Path)
		if err != nil {
			return nil, nil, err
		}
		base = g
	}

	snap, err := schema.NewSnapshot(base, cfg.Schema.CacheSize, cfg.Schema.PinShardCounts)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	logger.Debug("Schema loaded", zap.String("source", cfg.Schema.Source))
	return schema.NewHierarchy(snap), closeFn, nil
}

// resolveType parses the --type flag, falling back to the configured default.
func resolveType(flag string) (unify.Type, error) {
	if flag == "" {
		flag = cfg.Unification.DefaultType
	}
	return unify.ParseType(flag)
}
