// Package atom defines the query atoms the reasoner unifies: isa, relation,
// attribute and ontological constraints over query variables, together with
// the predicates attached to those variables.
//
// Atoms are immutable. Every rewrite returns a new atom, and each atom's
// canonical Key is computed once at construction.
package atom

import (
	"slices"
	"strings"
)

// Variable names a slot in a query. Names starting with an underscore are
// anonymous: generated by the reasoner and never returned to users.
type Variable string

// IsAnonymous reports whether v was generated rather than written by a user.
func (v Variable) IsAnonymous() bool {
	return strings.HasPrefix(string(v), "_")
}

// IsReturned reports whether v is a user-visible variable.
func (v Variable) IsReturned() bool {
	return v != "" && !v.IsAnonymous()
}

func (v Variable) String() string {
	return "$" + string(v)
}

// Anonymous returns the anonymous variable with the given name.
func Anonymous(name string) Variable {
	if strings.HasPrefix(name, "_") {
		return Variable(name)
	}
	return Variable("_" + name)
}

// SortVars returns a sorted copy of vs without duplicates or empty names.
func SortVars(vs []Variable) []Variable {
	out := make([]Variable, 0, len(vs))
	for _, v := range vs {
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
