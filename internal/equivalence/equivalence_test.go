package equivalence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasoner/internal/atom"
)

func withID(a atom.Atom, v atom.Variable, id string) atom.Atom {
	return a.WithPredicates(atom.IDPredicate{V: v, ID: id})
}

func withValue(t *testing.T, a atom.Atom, v atom.Variable, op atom.Op, value any) atom.Atom {
	t.Helper()
	p, err := atom.NewValuePredicate(v, op, value)
	require.NoError(t, err)
	return a.WithPredicates(p)
}

func corpus(t *testing.T) []atom.Scoped {
	emp := func(x, y atom.Variable) *atom.RelationAtom {
		return atom.NewRelation("r", "employment", atom.Plays("employee", x), atom.Plays("employer", y))
	}
	atoms := []atom.Atom{
		atom.NewIsa("x", "person"),
		atom.NewIsa("y", "person"),
		atom.NewIsa("x", "company"),
		withID(atom.NewIsa("x", "person"), "x", "V1"),
		withID(atom.NewIsa("y", "person"), "y", "V1"),
		withID(atom.NewIsa("x", "person"), "x", "V2"),
		emp("x", "y"),
		emp("a", "b"),
		emp("a", "a"),
		withID(emp("x", "y"), "x", "V1"),
		withID(emp("x", "y"), "x", "V2"),
		withID(emp("x", "y"), "y", "V1"),
		emp("x", "y").WithPredicates(atom.NeqPredicate{V: "x", Other: "y"}),
		atom.NewRelation("", "friendship", atom.Plays("friend", "x"), atom.Plays("friend", "y")),
		atom.NewRelation("", "friendship", atom.Plays("friend", "x"), atom.Plays("friend", "x")),
		atom.NewRelation("r", "employment"),
		withValue(t, atom.NewAttribute("x", "name", "n", ""), "n", atom.OpEq, "acme"),
		withValue(t, atom.NewAttribute("y", "name", "m", ""), "m", atom.OpEq, "acme"),
		withValue(t, atom.NewAttribute("x", "name", "n", ""), "n", atom.OpEq, "other"),
		atom.NewAttribute("x", "name", "n", ""),
		atom.NewSubAtom("t", "employment"),
		atom.NewSubAtom("u", "employment"),
		atom.NewOntological(atom.OpPlays, "t", "", "employment"),
	}
	out := make([]atom.Scoped, len(atoms))
	for i, a := range atoms {
		out[i] = atom.Standalone(a)
	}
	return out
}

func TestReflexiveSymmetricAndHashConsistent(t *testing.T) {
	atoms := corpus(t)
	for _, e := range []*Equivalence{Alpha, Structural} {
		t.Run(e.Name, func(t *testing.T) {
			for _, a := range atoms {
				assert.True(t, e.Equivalent(a, a), "%s not reflexive", a)
				assert.Equal(t, e.Hash(a), e.Hash(a))
				for _, b := range atoms {
					ab, ba := e.Equivalent(a, b), e.Equivalent(b, a)
					assert.Equal(t, ab, ba, "%s vs %s not symmetric", a, b)
					if ab {
						assert.Equal(t, e.Hash(a), e.Hash(b), "%s ~ %s but hashes differ", a, b)
					}
				}
			}
		})
	}
}

func TestAlphaImpliesStructural(t *testing.T) {
	atoms := corpus(t)
	for _, a := range atoms {
		for _, b := range atoms {
			if Alpha.Equivalent(a, b) {
				assert.True(t, Structural.Equivalent(a, b), "%s ~alpha %s", a, b)
			}
		}
	}
}

func TestEquivalence_PerPredicateKind(t *testing.T) {
	s := atom.Standalone
	emp := func(x, y atom.Variable) *atom.RelationAtom {
		return atom.NewRelation("r", "employment", atom.Plays("employee", x), atom.Plays("employer", y))
	}
	tests := []struct {
		name       string
		a, b       atom.Atom
		alpha      bool
		structural bool
	}{
		{"renamed isa", atom.NewIsa("x", "person"), atom.NewIsa("y", "person"), true, true},
		{"different type", atom.NewIsa("x", "person"), atom.NewIsa("x", "company"), false, false},
		{"same id", withID(atom.NewIsa("x", "person"), "x", "V1"), withID(atom.NewIsa("y", "person"), "y", "V1"), true, true},
		{"different id", withID(atom.NewIsa("x", "person"), "x", "V1"), withID(atom.NewIsa("x", "person"), "x", "V2"), false, true},
		{"id versus none", withID(atom.NewIsa("x", "person"), "x", "V1"), atom.NewIsa("x", "person"), false, false},
		{"id on other player", withID(emp("x", "y"), "x", "V1"), withID(emp("x", "y"), "y", "V1"), false, false},
		{"same value", withValue(t, atom.NewAttribute("x", "name", "n", ""), "n", atom.OpEq, "acme"),
			withValue(t, atom.NewAttribute("y", "name", "m", ""), "m", atom.OpEq, "acme"), true, true},
		{"different value", withValue(t, atom.NewAttribute("x", "name", "n", ""), "n", atom.OpEq, "acme"),
			withValue(t, atom.NewAttribute("x", "name", "n", ""), "n", atom.OpEq, "other"), false, false},
		{"different operator", withValue(t, atom.NewAttribute("x", "name", "n", ""), "n", atom.OpEq, "acme"),
			withValue(t, atom.NewAttribute("x", "name", "n", ""), "n", atom.OpContains, "acme"), false, false},
		{"neq versus none", emp("x", "y").WithPredicates(atom.NeqPredicate{V: "x", Other: "y"}), emp("x", "y"), false, false},
		{"neq renamed", emp("x", "y").WithPredicates(atom.NeqPredicate{V: "x", Other: "y"}),
			emp("a", "b").WithPredicates(atom.NeqPredicate{V: "a", Other: "b"}), true, true},
		{"neq reversed", emp("x", "y").WithPredicates(atom.NeqPredicate{V: "x", Other: "y"}),
			emp("x", "y").WithPredicates(atom.NeqPredicate{V: "y", Other: "x"}), true, true},
		{"renamed relation", emp("x", "y"), emp("a", "b"), true, true},
		{"repeated player", emp("x", "y"), emp("a", "a"), false, false},
		{"isa versus relation", atom.NewIsa("r", "employment"), atom.NewRelation("r", "employment"), false, false},
		{"sub versus plays", atom.NewSubAtom("t", "employment"), atom.NewOntological(atom.OpPlays, "t", "", "employment"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.alpha, Alpha.Equivalent(s(tt.a), s(tt.b)), "alpha")
			assert.Equal(t, tt.structural, Structural.Equivalent(s(tt.a), s(tt.b)), "structural")
		})
	}
}

func TestEquivalence_UsesQueryTypes(t *testing.T) {
	rel := atom.NewRelation("r", "employment", atom.Plays("employee", "x"))
	q1 := atom.NewQuery([]atom.Atom{rel, atom.NewIsa("x", "person")})
	q2 := atom.NewQuery([]atom.Atom{rel, atom.NewIsa("x", "student")})
	q3 := atom.NewQuery([]atom.Atom{
		atom.NewRelation("s", "employment", atom.Plays("employee", "y")),
		atom.NewIsa("y", "person"),
	})

	assert.False(t, Alpha.Equivalent(q1.Scoped(0), q2.Scoped(0)))
	assert.True(t, Alpha.Equivalent(q1.Scoped(0), q3.Scoped(0)))
	assert.Equal(t, Alpha.Hash(q1.Scoped(0)), Alpha.Hash(q3.Scoped(0)))
}

func TestQueriesEquivalent(t *testing.T) {
	q1 := atom.NewQuery([]atom.Atom{
		atom.NewIsa("x", "person"),
		atom.NewRelation("r", "employment", atom.Plays("employee", "x"), atom.Plays("employer", "c")),
	}, atom.IDPredicate{V: "c", ID: "C1"})
	q2 := atom.NewQuery([]atom.Atom{
		atom.NewRelation("s", "employment", atom.Plays("employee", "p"), atom.Plays("employer", "d")),
		atom.NewIsa("p", "person"),
	}, atom.IDPredicate{V: "d", ID: "C2"})
	q3 := atom.NewQuery([]atom.Atom{
		atom.NewIsa("p", "person"),
		atom.NewIsa("p", "person"),
	})

	assert.False(t, Alpha.QueriesEquivalent(q1, q2))
	assert.True(t, Structural.QueriesEquivalent(q1, q2))
	assert.Equal(t, Structural.QueryHash(q1), Structural.QueryHash(q2))
	assert.False(t, Structural.QueriesEquivalent(q1, q3))
	assert.NotEqual(t, Alpha.QueryHash(q1), Alpha.QueryHash(q2))
}
