// Package answer holds concrete bindings of query variables to concepts.
package answer

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"reasoner/internal/atom"
	"reasoner/internal/schema"
)

// Concept is a bound concept. Schema concepts carry a Label; things carry an
// ID and their Type, plus a Value for attributes and RolePlayers for
// relations.
type Concept struct {
	ID          string
	Label       schema.Label
	Type        schema.Label
	Value       any
	RolePlayers map[schema.Label][]string
}

// SchemaConcept binds a type or role label.
func SchemaConcept(l schema.Label) Concept { return Concept{Label: l} }

// Thing binds an instance.
func Thing(id string, t schema.Label) Concept { return Concept{ID: id, Type: t} }

// IsSchemaConcept reports whether c is a type or role.
func (c Concept) IsSchemaConcept() bool { return c.Label != "" }

// Key identifies the concept.
func (c Concept) Key() string {
	if c.IsSchemaConcept() {
		return "label:" + string(c.Label)
	}
	return "id:" + c.ID
}

// Same reports whether a and b denote the same concept.
func (c Concept) Same(o Concept) bool { return c.Key() == o.Key() }

// PlayersOf returns the ids playing role in a relation concept.
func (c Concept) PlayersOf(role schema.Label) []string {
	return c.RolePlayers[role]
}

// Roles returns the role labels with players, sorted.
func (c Concept) Roles() []schema.Label {
	return slices.Sorted(maps.Keys(c.RolePlayers))
}

func (c Concept) String() string {
	if c.IsSchemaConcept() {
		return string(c.Label)
	}
	if c.Value != nil {
		return fmt.Sprintf("%s:%s=%v", c.ID, c.Type, c.Value)
	}
	return c.ID + ":" + string(c.Type)
}

// Answer binds query variables to concepts.
type Answer map[atom.Variable]Concept

// Vars returns the bound variables, sorted.
func (a Answer) Vars() []atom.Variable {
	return slices.Sorted(maps.Keys(a))
}

// Merge combines a and b. ok is false when they bind a variable to different
// concepts.
func (a Answer) Merge(b Answer) (Answer, bool) {
	out := maps.Clone(a)
	if out == nil {
		out = make(Answer, len(b))
	}
	for v, c := range b {
		if prev, ok := out[v]; ok && !prev.Same(c) {
			return nil, false
		}
		out[v] = c
	}
	return out, true
}

// Project keeps only vars.
func (a Answer) Project(vars ...atom.Variable) Answer {
	out := make(Answer, len(vars))
	for _, v := range vars {
		if c, ok := a[v]; ok {
			out[v] = c
		}
	}
	return out
}

// Returned drops anonymous variables.
func (a Answer) Returned() Answer {
	out := make(Answer, len(a))
	for v, c := range a {
		if v.IsReturned() {
			out[v] = c
		}
	}
	return out
}

// Equal reports whether a and b bind the same variables to the same concepts.
func (a Answer) Equal(b Answer) bool {
	if len(a) != len(b) {
		return false
	}
	for v, c := range a {
		o, ok := b[v]
		if !ok || !o.Same(c) {
			return false
		}
	}
	return true
}

// Key is a canonical form of the answer.
func (a Answer) Key() string {
	parts := make([]string, 0, len(a))
	for _, v := range a.Vars() {
		parts = append(parts, string(v)+"="+a[v].Key())
	}
	return strings.Join(parts, ",")
}

func (a Answer) String() string {
	parts := make([]string, 0, len(a))
	for _, v := range a.Vars() {
		parts = append(parts, v.String()+"="+a[v].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
