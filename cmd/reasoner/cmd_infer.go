package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reasoner/internal/document"
	"reasoner/internal/equivalence"
	"reasoner/internal/inference"
	"reasoner/internal/typing"
)

var inferRoles bool

// inferCmd infers the types of the focus atom
var inferCmd = &cobra.Command{
	Use:   "infer QUERY",
	Short: "Infer the type and roles of a query's focus atom",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfer,
}

// typesCmd prints the variable types of a query
var typesCmd = &cobra.Command{
	Use:   "types QUERY",
	Short: "Print the types the schema allows for each query variable",
	Args:  cobra.ExactArgs(1),
	RunE:  runTypes,
}

// equivCmd compares two atoms under alpha and structural equivalence
var equivCmd = &cobra.Command{
	Use:   "equiv A B",
	Short: "Compare the focus atoms of two queries for equivalence",
	Args:  cobra.ExactArgs(2),
	RunE:  runEquiv,
}

func runInfer(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := document.LoadQuery(args[0])
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

	engine := inference.New(h)
	possible, err := engine.PossibleTypes(ctx, s, nil)
	if err != nil {
		return err
	}
	inferred, err := engine.InferTypes(ctx, s, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "atom:     %s\n", s.Atom)
	fmt.Fprintf(out, "possible: %s\n", joinLabels(possible))
	fmt.Fprintf(out, "inferred: %s\n", inferred)
	return nil
}

func runTypes(cmd *cobra.Command, args []string) error {
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
	h, closeSchema, err := openHierarchy()
	if err != nil {
		return err
	}
	defer closeSchema()

	types, err := typing.NewSchemaOracle(h).VarTypes(ctx, q, inferRoles)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, v := range types.Vars() {
		fmt.Fprintf(out, "%s: %s\n", v, joinLabels(types.Get(v)))
	}
	return nil
}

func runEquiv(cmd *cobra.Command, args []string) error {
	var docs [2]document.Query
	for i := range docs {
		doc, err := document.LoadQuery(args[i])
		if err != nil {
			return err
		}
		docs[i] = doc
	}
	a, err := docs[0].Scoped()
	if err != nil {
		return err
	}
	b, err := docs[1].Scoped()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, e := range []*equivalence.Equivalence{equivalence.Alpha, equivalence.Structural} {
		fmt.Fprintf(out, "%-10s equivalent=%t hash=%016x/%016x\n", e, e.Equivalent(a, b), e.Hash(a), e.Hash(b))
	}
	return nil
}

func joinLabels[L ~string](ls []L) string {
	if len(ls) == 0 {
		return "-"
	}
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}
