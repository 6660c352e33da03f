// Package typing answers which types each variable of a query may take.
package typing

import (
	"context"
	"maps"
	"slices"

	"reasoner/internal/answer"
	"reasoner/internal/atom"
	"reasoner/internal/schema"
)

// Map holds the known types per variable. Label sets are sorted.
type Map map[atom.Variable][]schema.Label

// Get returns the types of v.
func (m Map) Get(v atom.Variable) []schema.Label { return m[v] }

// Vars returns the typed variables, sorted.
func (m Map) Vars() []atom.Variable { return slices.Sorted(maps.Keys(m)) }

// Clone returns a deep copy.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for v, ls := range m {
		out[v] = slices.Clone(ls)
	}
	return out
}

// Oracle returns the types of the variables of a query. With infer set,
// variables without an explicit type get the types able to play their roles.
type Oracle interface {
	VarTypes(ctx context.Context, q *atom.Query, infer bool) (Map, error)
}

// SchemaOracle derives variable types from the atoms of a query and the
// schema hierarchy.
type SchemaOracle struct {
	h *schema.Hierarchy
}

var _ Oracle = (*SchemaOracle)(nil)

// NewSchemaOracle returns an Oracle over h.
func NewSchemaOracle(h *schema.Hierarchy) *SchemaOracle {
	return &SchemaOracle{h: h}
}

// VarTypes implements Oracle. Explicit types are reduced to the most specific
// ones; inferred types are the most general types able to play every role
// the variable plays.
func (o *SchemaOracle) VarTypes(ctx context.Context, q *atom.Query, infer bool) (Map, error) {
	explicit := make(map[atom.Variable][]schema.Label)
	for _, a := range q.Atoms() {
		l := a.TypeLabel()
		if schema.IsMeta(l) {
			continue
		}
		switch x := a.(type) {
		case *atom.IsaAtom:
			explicit[x.Var()] = append(explicit[x.Var()], l)
		case *atom.RelationAtom:
			explicit[x.Var()] = append(explicit[x.Var()], l)
		case *atom.AttributeAtom:
			explicit[x.AttributeVar()] = append(explicit[x.AttributeVar()], l)
		}
	}

	out := make(Map, len(explicit))
	for v, ls := range explicit {
		bottom, err := o.h.Bottom(ctx, schema.Sorted(ls))
		if err != nil {
			return nil, err
		}
		out[v] = schema.Sorted(bottom)
	}
	if !infer {
		return out, nil
	}

	for v, roles := range playedRoles(q) {
		if _, typed := out[v]; typed {
			continue
		}
		var candidates []schema.Label
		for i, role := range roles {
			players, err := o.h.Players(ctx, role)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				candidates = players
			} else {
				candidates = schema.Intersect(candidates, players)
			}
		}
		top, err := o.h.Top(ctx, candidates)
		if err != nil {
			return nil, err
		}
		if len(top) > 0 {
			out[v] = schema.Sorted(top)
		}
	}
	return out, nil
}

// playedRoles collects the explicit roles of every player variable, counting
// attribute ownership as playing the implicit owner role.
func playedRoles(q *atom.Query) map[atom.Variable][]schema.Label {
	roles := make(map[atom.Variable][]schema.Label)
	for _, a := range q.Atoms() {
		switch x := a.(type) {
		case *atom.RelationAtom:
			for _, rp := range x.RolePlayers() {
				if !rp.Role.IsMeta() {
					roles[rp.Player] = append(roles[rp.Player], rp.Role.Label)
				}
			}
		case *atom.AttributeAtom:
			if !schema.IsMeta(x.TypeLabel()) {
				roles[x.Var()] = append(roles[x.Var()], schema.HasOwner(x.TypeLabel()))
			}
		}
	}
	for v, ls := range roles {
		roles[v] = schema.Sorted(ls)
	}
	return roles
}

// RolesOf returns the explicit roles v plays in q, sorted.
func RolesOf(q *atom.Query, v atom.Variable) []schema.Label {
	var out []schema.Label
	for _, r := range q.RelationAtoms() {
		out = append(out, r.RolesOf(v)...)
	}
	return schema.StripMeta(out)
}

// WithSubstitution returns m with the types of instances bound in sub. A
// bound instance's own type replaces whatever was known for the variable.
func WithSubstitution(m Map, sub answer.Answer) Map {
	out := m.Clone()
	for v, c := range sub {
		if !c.IsSchemaConcept() && c.Type != "" {
			out[v] = []schema.Label{c.Type}
		}
	}
	return out
}
