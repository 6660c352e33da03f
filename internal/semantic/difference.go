// Package semantic computes what a child atom demands beyond what a parent
// atom already guarantees, so that answers to the parent can be checked
// and turned into answers to the child.
package semantic

import (
	"slices"
	"strings"

	"reasoner/internal/answer"
	"reasoner/internal/atom"
	"reasoner/internal/schema"
	"reasoner/internal/unify"
)

// PlayedRole requires a variable to play Role, or one of its sub-roles, in
// the relation bound to the difference's relation variable.
type PlayedRole struct {
	Role schema.Label
	Subs []schema.Label
}

// VariableDefinition is the residual constraint on one parent variable.
type VariableDefinition struct {
	Var atom.Variable

	// Type is the child's type for the variable; Types is its subtree.
	Type  schema.Label
	Types []schema.Label

	// Role is the role label the child names for a role variable; RoleSubs
	// is its subtree.
	Role     schema.Label
	RoleSubs []schema.Label

	Roles  []PlayedRole
	IDs    []string
	Values []atom.ValuePredicate
}

// IsEmpty reports whether the definition adds no constraint.
func (d VariableDefinition) IsEmpty() bool {
	return len(d.Types) == 0 && len(d.RoleSubs) == 0 && len(d.Roles) == 0 &&
		len(d.IDs) == 0 && len(d.Values) == 0
}

func (d VariableDefinition) String() string {
	var parts []string
	if d.Type != "" {
		parts = append(parts, "isa "+string(d.Type))
	}
	if d.Role != "" {
		parts = append(parts, "role "+string(d.Role))
	}
	for _, r := range d.Roles {
		parts = append(parts, "plays "+string(r.Role))
	}
	for _, id := range d.IDs {
		parts = append(parts, "id "+id)
	}
	for _, v := range d.Values {
		parts = append(parts, v.String())
	}
	return d.Var.String() + " {" + strings.Join(parts, "; ") + "}"
}

// satisfied checks the definition against the concept bound to its variable.
// rel is the concept bound to the relation variable, if any.
func (d VariableDefinition) satisfied(c answer.Concept, rel answer.Concept, hasRel bool) bool {
	if len(d.Types) > 0 && !slices.Contains(d.Types, label(c)) {
		return false
	}
	if len(d.RoleSubs) > 0 && (!c.IsSchemaConcept() || !slices.Contains(d.RoleSubs, c.Label)) {
		return false
	}
	for _, id := range d.IDs {
		if c.ID != id {
			return false
		}
	}
	for _, v := range d.Values {
		if c.Value == nil || !v.Satisfies(c.Value) {
			return false
		}
	}
	if len(d.Roles) > 0 && hasRel {
		for _, r := range d.Roles {
			if !playsAny(rel, c.ID, r.Subs) {
				return false
			}
		}
	}
	return true
}

func label(c answer.Concept) schema.Label {
	if c.IsSchemaConcept() {
		return c.Label
	}
	return c.Type
}

func playsAny(rel answer.Concept, id string, roles []schema.Label) bool {
	for _, r := range roles {
		if slices.Contains(rel.PlayersOf(r), id) {
			return true
		}
	}
	return false
}

// Difference is the set of residual constraints of a child over a parent.
type Difference struct {
	// Definitions are sorted by variable.
	Definitions []VariableDefinition
	// RelationVar is the parent relation variable played-role checks refer
	// to; empty when the atoms are not relations.
	RelationVar atom.Variable
}

// IsEmpty reports whether every parent answer satisfies the difference.
func (d Difference) IsEmpty() bool {
	for _, def := range d.Definitions {
		if !def.IsEmpty() {
			return false
		}
	}
	return true
}

// Get returns the definition of v.
func (d Difference) Get(v atom.Variable) (VariableDefinition, bool) {
	i := slices.IndexFunc(d.Definitions, func(def VariableDefinition) bool { return def.Var == v })
	if i < 0 {
		return VariableDefinition{}, false
	}
	return d.Definitions[i], true
}

// Satisfied reports whether a parent answer meets every residual constraint.
// Variables the answer leaves unbound are not checked.
func (d Difference) Satisfied(a answer.Answer) bool {
	rel, hasRel := a[d.RelationVar]
	if d.RelationVar == "" {
		hasRel = false
	}
	for _, def := range d.Definitions {
		c, ok := a[def.Var]
		if !ok {
			continue
		}
		if len(def.Roles) > 0 && hasRel && rel.RolePlayers == nil {
			// Role players of the relation are unknown.
			return false
		}
		if !def.satisfied(c, rel, hasRel) {
			return false
		}
	}
	return true
}

func (d Difference) String() string {
	parts := make([]string, 0, len(d.Definitions))
	for _, def := range d.Definitions {
		if !def.IsEmpty() {
			parts = append(parts, def.String())
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Propagate turns an answer to the parent into an answer to the child. ok is
// false when the answer misses a residual constraint or the unifier rejects
// it.
func Propagate(parent answer.Answer, u unify.Unifier, d Difference) (answer.Answer, bool) {
	if !d.Satisfied(parent) {
		return nil, false
	}
	return u.UnUnify(parent)
}
