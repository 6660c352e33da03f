package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reasoner/internal/answer"
	"reasoner/internal/document"
	"reasoner/internal/instance"
	"reasoner/internal/rules"
	"reasoner/internal/unify"
)

// rulesCmd lists the rules applicable to a query atom
var rulesCmd = &cobra.Command{
	Use:   "rules RULES QUERY",
	Short: "List the rules whose conclusion can answer a query atom",
	Long: `Validates every rule in the RULES document and prints those whose
conclusion unifies with the focus atom of QUERY, with their unifiers.`,
	Args: cobra.ExactArgs(2),
	RunE: runRules,
}

// materialiseCmd inserts the atoms of a query into an in-memory store
var materialiseCmd = &cobra.Command{
	Use:   "materialise QUERY",
	Short: "Materialise the atoms of a query as instance facts",
	Long: `Materialises each atom of QUERY in order into an in-memory instance
store, threading the bindings from one atom to the next, and prints the
resulting answer.`,
	Args: cobra.ExactArgs(1),
	RunE: runMaterialise,
}

func loadRules(path string) ([]*rules.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	defs, err := document.DecodeRules(data)
	if err != nil {
		return nil, err
	}
	out := make([]*rules.Rule, 0, len(defs))
	for _, d := range defs {
		r, err := rules.NewRule(d.Label, d.When, d.Then)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func readAnswers(path string) ([]answer.Answer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers: %w", err)
	}
	return document.DecodeAnswers(data)
}

func runRules(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	rs, err := loadRules(args[0])
	if err != nil {
		return err
	}
	doc, err := document.LoadQuery(args[1])
	if err != nil {
		return err
	}
	s, err := doc.Scoped()
	if err != nil {
		return err
	}
	h, closeSchema, err := openHierarchy()
	if err != nil {
		return err
	}
	defer closeSchema()

	m := rules.NewMatcher(unify.New(h),
		rules.WithParallelism(cfg.Rules.Parallelism),
		rules.WithMaxUnifiers(cfg.Unification.MaxUnifiers),
	)
	matches, err := m.Applicable(ctx, s, rs)
	if err != nil {
		return err
	}
	logger.Info("Rule scan complete", zap.Int("rules", len(rs)), zap.Int("applicable", len(matches)))

	out := cmd.OutOrStdout()
	if len(matches) == 0 {
		fmt.Fprintf(out, "no rule applies to %s\n", s)
		return nil
	}
	for _, match := range matches {
		fmt.Fprintln(out, match.Rule)
		for _, u := range match.Unifiers {
			fmt.Fprintf(out, "  %s\n", u)
		}
	}
	return nil
}

func runMaterialise(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := document.LoadQuery(args[0])
	if err != nil {
		return err
	}
	q, err := doc.Build()
	if err != nil {
		return err
	}
	sub := answer.Answer{}
	if answersPath != "" {
		answers, err := readAnswers(answersPath)
		if err != nil {
			return err
		}
		if len(answers) > 0 {
			sub = answers[0]
		}
	}
	h, closeSchema, err := openHierarchy()
	if err != nil {
		return err
	}
	defer closeSchema()

	store := instance.NewStore(h, instance.WithFactLimit(cfg.Instance.FactLimit))
	for i := range q.Len() {
		if sub, err = store.Materialise(ctx, q.Scoped(i), sub); err != nil {
			return fmt.Errorf("atom %d: %w", i, err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, sub.Returned())
	fmt.Fprintf(out, "%d facts\n", store.Facts())
	return nil
}
