package atom

import (
	"fmt"
	"slices"
	"strings"

	"reasoner/internal/schema"
)

// Predicate constrains a single variable of an atom.
type Predicate interface {
	// Var is the constrained variable.
	Var() Variable
	// Key is a canonical form used for ordering and equality.
	Key() string
	String() string

	predicate()
}

// IDPredicate fixes a variable to a concept id.
type IDPredicate struct {
	V  Variable
	ID string
}

func (p IDPredicate) Var() Variable  { return p.V }
func (p IDPredicate) Key() string    { return "id|" + string(p.V) + "|" + p.ID }
func (p IDPredicate) String() string { return fmt.Sprintf("%s id %s", p.V, p.ID) }
func (IDPredicate) predicate()       {}

// NeqPredicate requires two variables to bind different concepts.
type NeqPredicate struct {
	V     Variable
	Other Variable
}

func (p NeqPredicate) Var() Variable  { return p.V }
func (p NeqPredicate) Key() string    { return "neq|" + string(p.V) + "|" + string(p.Other) }
func (p NeqPredicate) String() string { return fmt.Sprintf("%s != %s", p.V, p.Other) }
func (NeqPredicate) predicate()       {}

// LabelPredicate binds a type or role variable to a schema label.
type LabelPredicate struct {
	V     Variable
	Label schema.Label
}

func (p LabelPredicate) Var() Variable  { return p.V }
func (p LabelPredicate) Key() string    { return "label|" + string(p.V) + "|" + string(p.Label) }
func (p LabelPredicate) String() string { return fmt.Sprintf("%s type %s", p.V, p.Label) }
func (LabelPredicate) predicate()       {}

func (p ValuePredicate) Var() Variable { return p.V }
func (p ValuePredicate) Key() string {
	return "value|" + string(p.V) + "|" + string(p.Op) + "|" + valueKey(p.Value)
}
func (p ValuePredicate) String() string {
	return fmt.Sprintf("%s %s %s", p.V, p.Op, formatValue(p.Value))
}
func (ValuePredicate) predicate() {}

// sortPredicates returns ps ordered by key without duplicates.
func sortPredicates(ps []Predicate) []Predicate {
	out := slices.Clone(ps)
	slices.SortFunc(out, func(a, b Predicate) int { return strings.Compare(a.Key(), b.Key()) })
	return slices.CompactFunc(out, func(a, b Predicate) bool { return a.Key() == b.Key() })
}

// IDs returns the sorted ids fixed for v among ps.
func IDs(ps []Predicate, v Variable) []string {
	var out []string
	for _, p := range ps {
		if id, ok := p.(IDPredicate); ok && id.V == v {
			out = append(out, id.ID)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Values returns the value predicates on v among ps, in key order.
func Values(ps []Predicate, v Variable) []ValuePredicate {
	var out []ValuePredicate
	for _, p := range ps {
		if vp, ok := p.(ValuePredicate); ok && vp.V == v {
			out = append(out, vp)
		}
	}
	return out
}

// Neqs returns the inequality predicates on v among ps.
func Neqs(ps []Predicate, v Variable) []NeqPredicate {
	var out []NeqPredicate
	for _, p := range ps {
		if n, ok := p.(NeqPredicate); ok && n.V == v {
			out = append(out, n)
		}
	}
	return out
}

// mentions reports whether p constrains one of vars.
func mentions(p Predicate, vars []Variable) bool {
	if slices.Contains(vars, p.Var()) {
		return true
	}
	if n, ok := p.(NeqPredicate); ok {
		return slices.Contains(vars, n.Other)
	}
	return false
}
