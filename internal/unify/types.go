// Package unify computes the variable mappings under which one atom (the
// child) can be answered from another (the parent).
//
// Four unifier types trade precision for reach. EXACT and STRUCTURAL find
// renamings between equivalent atoms. RULE matches a query atom against a
// rule conclusion and records the type and role checks parent answers must
// pass. SUBSUMPTIVE accepts a parent only when every child answer is also a
// parent answer, so cached parent answers can be filtered down to the child.
package unify

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"reasoner/internal/atom"
	"reasoner/internal/equivalence"
	"reasoner/internal/schema"
)

// Type selects the compatibility rules of a unification.
type Type int

const (
	Exact Type = iota
	Structural
	Rule
	Subsumptive
)

var typeNames = map[Type]string{
	Exact:       "exact",
	Structural:  "structural",
	Rule:        "rule",
	Subsumptive: "subsumptive",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("unifier(%d)", int(t))
}

// ParseType parses a unifier type name, case-insensitively.
func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown unifier type %q", s)
}

// Equivalence is the atom equivalence the type requires, or nil.
func (t Type) Equivalence() *equivalence.Equivalence {
	switch t {
	case Exact:
		return equivalence.Alpha
	case Structural:
		return equivalence.Structural
	default:
		return nil
	}
}

// InferTypes reports whether atoms are type-inferred before unifying.
func (t Type) InferTypes() bool { return t == Exact || t == Rule }

// AllowsNonInjective reports whether two child variables may map onto one
// parent variable.
func (t Type) AllowsNonInjective() bool { return t == Rule }

// AllowsOntological reports whether schema atoms take part.
func (t Type) AllowsOntological() bool { return t != Rule }

// fastPath reports whether literally equal atoms unify trivially.
func (t Type) fastPath() bool { return t == Exact || t == Structural }

// typeCompatible compares the types of two corresponding variables.
func (t Type) typeCompatible(ctx context.Context, h *schema.Hierarchy, child, parent []schema.Label) (bool, error) {
	child, parent = schema.StripMeta(child), schema.StripMeta(parent)
	switch t {
	case Exact, Structural:
		return schema.SameSet(child, parent), nil
	case Rule:
		if len(child) == 0 || len(parent) == 0 {
			return true, nil
		}
		disjoint, err := h.Disjoint(ctx, child, parent)
		return !disjoint, err
	default:
		return everyCovered(ctx, h, child, parent)
	}
}

// everyCovered reports whether every parent type has a child type below it.
func everyCovered(ctx context.Context, h *schema.Hierarchy, child, parent []schema.Label) (bool, error) {
	for _, p := range parent {
		covered := false
		for _, c := range child {
			ok, err := h.IsSub(ctx, c, p)
			if err != nil {
				return false, err
			}
			if ok {
				covered = true
				break
			}
		}
		if !covered {
			return false, nil
		}
	}
	return true, nil
}

// roleCompatible compares the role labels of two role players.
func (t Type) roleCompatible(ctx context.Context, h *schema.Hierarchy, child, parent schema.Label) (bool, error) {
	cm, pm := schema.IsMeta(child), schema.IsMeta(parent)
	switch t {
	case Exact, Structural:
		if cm || pm {
			return cm == pm, nil
		}
		return child == parent, nil
	case Rule:
		if cm || pm {
			return true, nil
		}
		return h.Comparable(ctx, child, parent)
	default:
		if pm {
			return true, nil
		}
		if cm {
			return false, nil
		}
		return h.IsSub(ctx, child, parent)
	}
}

// roleVarCompatible compares whether role variables are user variables.
func (t Type) roleVarCompatible(child, parent atom.Variable) bool {
	switch t {
	case Exact, Structural:
		return child.IsReturned() == parent.IsReturned()
	case Subsumptive:
		return !parent.IsReturned() || child.IsReturned()
	default:
		return true
	}
}

// idCompatible compares the ids fixed for two corresponding variables.
func (t Type) idCompatible(child, parent []string) bool {
	switch t {
	case Exact:
		return slices.Equal(child, parent)
	case Structural:
		return len(child) == len(parent)
	case Rule:
		return len(child) == 0 || len(parent) == 0 || slices.Equal(child, parent)
	default:
		for _, id := range parent {
			if !slices.Contains(child, id) {
				return false
			}
		}
		return true
	}
}

// valueCompatible compares the value predicates of two corresponding variables.
func (t Type) valueCompatible(child, parent []atom.ValuePredicate) bool {
	switch t {
	case Exact, Structural:
		return slices.Equal(valueKeys(child), valueKeys(parent))
	case Rule:
		for _, c := range child {
			for _, p := range parent {
				if !c.CompatibleWith(p) {
					return false
				}
			}
		}
		return true
	default:
		for _, p := range parent {
			if !slices.ContainsFunc(child, p.Subsumes) {
				return false
			}
		}
		return true
	}
}

func valueKeys(ps []atom.ValuePredicate) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Key()
	}
	slices.Sort(out)
	return out
}

// attached is an attribute an owner variable has within its query.
type attached struct {
	label  schema.Label
	values []atom.ValuePredicate
}

func attachedTo(q *atom.Query, v atom.Variable) []attached {
	var out []attached
	for _, a := range q.Atoms() {
		attr, ok := a.(*atom.AttributeAtom)
		if !ok || attr.Var() != v {
			continue
		}
		out = append(out, attached{label: attr.TypeLabel(), values: attr.ValuePredicates()})
	}
	return out
}

func (a attached) key() string {
	return string(a.label) + "[" + strings.Join(valueKeys(a.values), ";") + "]"
}

// attributesCompatible compares the attributes attached to two corresponding
// owner variables.
func (t Type) attributesCompatible(ctx context.Context, h *schema.Hierarchy, child, parent []attached) (bool, error) {
	switch t {
	case Exact, Structural:
		return slices.Equal(attachedKeys(child), attachedKeys(parent)), nil
	case Rule:
		return true, nil
	default:
		for _, p := range parent {
			found := false
			for _, c := range child {
				sub, err := h.IsSub(ctx, c.label, p.label)
				if err != nil {
					return false, err
				}
				if sub && Subsumptive.valueCompatible(c.values, p.values) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		}
		return true, nil
	}
}

func attachedKeys(as []attached) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.key()
	}
	slices.Sort(out)
	return out
}
