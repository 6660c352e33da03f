package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reasoner/internal/schema"
)

// schemaCmd groups schema store commands
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and persist the schema",
}

// schemaImportCmd loads a YAML schema into the SQLite store
var schemaImportCmd = &cobra.Command{
	Use:   "import SCHEMA.yaml",
	Short: "Import a YAML schema definition into the SQLite store",
	Long: `Replaces the contents of the SQLite schema store (--db, or
schema.database_path from the config) with the given YAML definition.

Example:
  reasoner schema import schema.yaml --db schema.db`,
	Args: cobra.ExactArgs(1),
	RunE: runSchemaImport,
}

// schemaWatchCmd reloads a YAML schema on change
var schemaWatchCmd = &cobra.Command{
	Use:   "watch SCHEMA.yaml",
	Short: "Watch a YAML schema definition and report each reload",
	Long: `Keeps the schema loaded and reparses it whenever the file changes,
printing the concept count after each reload. A definition that fails to
parse is reported and the previous schema stays in effect. Runs until
interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runSchemaWatch,
}

// schemaShowCmd prints a schema concept
var schemaShowCmd = &cobra.Command{
	Use:   "show LABEL...",
	Short: "Show schema concepts with their sub and super types",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSchemaShow,
}

func runSchemaImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	g, err := schema.LoadYAML(args[0])
	if err != nil {
		return err
	}
	store, err := schema.OpenSQLStore(cfg.Schema.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Import(ctx, g); err != nil {
		return err
	}
	logger.Info("Schema imported",
		zap.String("source", args[0]),
		zap.String("db", store.Path()),
		zap.Int("concepts", len(g.Concepts())))
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d concepts into %s\n", len(g.Concepts()), store.Path())
	return nil
}

func runSchemaWatch(cmd *cobra.Command, args []string) error {
	g, err := schema.LoadYAML(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "loaded %d concepts from %s\n", len(g.Concepts()), args[0])

	w := schema.NewWatcher(args[0], schema.NewLive(g), func(g *schema.Graph, err error) {
		if err != nil {
			fmt.Fprintf(out, "reload failed: %v\n", err)
			return
		}
		fmt.Fprintf(out, "reloaded %d concepts\n", len(g.Concepts()))
	})
	return w.Run(cmd.Context())
}

func runSchemaShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	h, closeSchema, err := openHierarchy()
	if err != nil {
		return err
	}
	defer closeSchema()

	out := cmd.OutOrStdout()
	for _, arg := range args {
		l := schema.Label(arg)
		c, err := h.Concept(ctx, l)
		if err != nil {
			return err
		}
		sups, err := h.Sups(ctx, l)
		if err != nil {
			return err
		}
		subs, err := h.Subs(ctx, l)
		if err != nil {
			return err
		}
		shards, err := h.ShardCount(ctx, l)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (%s)\n", c.Label, c.Kind)
		fmt.Fprintf(out, "  sups:    %s\n", joinLabels(sups))
		fmt.Fprintf(out, "  subs:    %s\n", joinLabels(subs))
		if c.IsRole() {
			fmt.Fprintf(out, "  related: %s\n", joinLabels(c.RelatedBy))
			fmt.Fprintf(out, "  played:  %s\n", joinLabels(c.PlayedBy))
		} else {
			fmt.Fprintf(out, "  plays:   %s\n", joinLabels(c.Plays))
			fmt.Fprintf(out, "  relates: %s\n", joinLabels(c.Relates))
		}
		fmt.Fprintf(out, "  shards:  %d\n", shards)
	}
	return nil
}
