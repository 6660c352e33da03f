package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reasoner/internal/answer"
	"reasoner/internal/atom"
	"reasoner/internal/document"
	"reasoner/internal/semantic"
	"reasoner/internal/unify"
)

var (
	unifierType string
	answersPath string
)

// unifyCmd enumerates the unifiers between two query atoms
var unifyCmd = &cobra.Command{
	Use:   "unify CHILD PARENT",
	Short: "Enumerate the unifiers of a child atom against a parent atom",
	Long: `Unifies the focus atom of the CHILD query document with the focus atom
of the PARENT query document and prints every unifier.

With --answers, each parent answer is mapped back through every unifier.

Examples:
  reasoner unify child.yaml parent.yaml --type subsumptive
  reasoner unify query.yaml rule-head.yaml -t rule --answers answers.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runUnify,
}

// diffCmd computes the semantic difference for each unifier
var diffCmd = &cobra.Command{
	Use:   "diff CHILD PARENT",
	Short: "Compute what a child atom adds over a subsuming parent",
	Long: `Unifies CHILD against PARENT subsumptively and prints, for each
unifier, the semantic difference: the constraints parent answers must
additionally satisfy to answer the child.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

type unifyInputs struct {
	child, parent atom.Scoped
	answers       []answer.Answer
}

func loadUnifyInputs(args []string) (unifyInputs, error) {
	var in unifyInputs
	for i, dst := range []*atom.Scoped{&in.child, &in.parent} {
		doc, err := document.LoadQuery(args[i])
		if err != nil {
			return in, err
		}
		if *dst, err = doc.Scoped(); err != nil {
			return in, fmt.Errorf("%s: %w", args[i], err)
		}
	}
	if answersPath != "" {
		answers, err := readAnswers(answersPath)
		if err != nil {
			return in, err
		}
		in.answers = answers
	}
	return in, nil
}

func runUnify(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	t, err := resolveType(unifierType)
	if err != nil {
		return err
	}
	in, err := loadUnifyInputs(args)
	if err != nil {
		return err
	}
	h, closeSchema, err := openHierarchy()
	if err != nil {
		return err
	}
	defer closeSchema()

	engine := unify.New(h)
	mu, err := engine.Unify(ctx, in.child, in.parent, t)
	if err != nil {
		return fmt.Errorf("unification failed: %w", err)
	}
	unifiers := mu.Collect(cfg.Unification.MaxUnifiers)
	logger.Info("Unified", zap.Stringer("type", t), zap.Int("unifiers", len(unifiers)))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s unification of %s with %s\n", t, in.child, in.parent)
	switch {
	case mu.IsNonExistent():
		fmt.Fprintln(out, "no unifier")
		return nil
	case mu.IsTrivial():
		fmt.Fprintln(out, "trivial unifier")
	}
	fmt.Fprintf(out, "%d unifier(s)\n", len(unifiers))
	for i, u := range unifiers {
		fmt.Fprintf(out, "  [%d] %s\n", i, u)
		for _, a := range in.answers {
			printMapped(out, a, func(a answer.Answer) (answer.Answer, bool) { return u.UnUnify(a) })
		}
	}
	return nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	in, err := loadUnifyInputs(args)
	if err != nil {
		return err
	}
	h, closeSchema, err := openHierarchy()
	if err != nil {
		return err
	}
	defer closeSchema()

	engine := unify.New(h)
	computer := semantic.NewComputer(h)
	mu, err := engine.Unify(ctx, in.child, in.parent, unify.Subsumptive)
	if err != nil {
		return fmt.Errorf("unification failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if !mu.Exists() {
		fmt.Fprintf(out, "%s is not subsumed by %s\n", in.child, in.parent)
		return nil
	}
	for i, u := range mu.Collect(cfg.Unification.MaxUnifiers) {
		d, err := computer.Compute(ctx, in.child, in.parent, u)
		if err != nil {
			return fmt.Errorf("semantic difference failed: %w", err)
		}
		fmt.Fprintf(out, "[%d] %s\n", i, u)
		fmt.Fprintf(out, "    difference %s\n", d)
		for _, a := range in.answers {
			printMapped(out, a, func(a answer.Answer) (answer.Answer, bool) { return semantic.Propagate(a, u, d) })
		}
	}
	return nil
}

func printMapped(out io.Writer, a answer.Answer, f func(answer.Answer) (answer.Answer, bool)) {
	if mapped, ok := f(a); ok {
		fmt.Fprintf(out, "      %s -> %s\n", a, mapped)
		return
	}
	fmt.Fprintf(out, "      %s rejected\n", a)
}
