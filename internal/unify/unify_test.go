package unify

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasoner/internal/answer"
	"reasoner/internal/atom"
	"reasoner/internal/schema"
)

const workSchema = `
entities:
  - label: person
    plays: [employee, part-time-employee, friend]
    has: [name]
  - label: student
    sub: person
  - label: company
    plays: [employer, part-time-employer]
relations:
  - label: employment
    relates: [employee, employer]
  - label: part-time-employment
    sub: employment
    relates:
      - {role: part-time-employee, as: employee}
      - {role: part-time-employer, as: employer}
  - label: friendship
    relates: [friend]
attributes:
  - {label: name, value: string}
`

func newEngine(t *testing.T) *Engine {
	t.Helper()
	g, err := schema.ParseYAML([]byte(workSchema))
	require.NoError(t, err)
	return New(schema.NewHierarchy(g))
}

func standalone(a atom.Atom) atom.Scoped { return atom.Standalone(a) }

func collect(t *testing.T, mu MultiUnifier) []Unifier {
	t.Helper()
	return mu.Collect(0)
}

func TestUnify_RuleRoleSubtypes(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	child := atom.NewRelation("", "employment", atom.Plays("employee", "y"))
	parent := atom.NewRelation("", "employment", atom.Plays("employee", "x"))

	mu, err := e.Unify(ctx, standalone(child), standalone(parent), Rule)
	require.NoError(t, err)
	us := collect(t, mu)
	require.Len(t, us, 1)

	u := us[0]
	assert.Equal(t, []atom.Variable{"x"}, u.Get("y"))
	req := u.Requirements()
	assert.Equal(t, []schema.Label{"employment", "part-time-employment"}, req.Types[parent.TypeVar()])
	roleVar := parent.RolePlayers()[0].Role.Var
	assert.Equal(t, []schema.Label{"employee", "part-time-employee"}, req.Roles[roleVar])
}

func TestUnify_RepeatedPlayerAgainstRoleVariables(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	child := atom.NewRelation("", "", atom.Plays("employee", "p"), atom.Plays("employee", "p"))
	parent := atom.NewRelation("", "", atom.PlaysVar("employee", "x"), atom.PlaysVar("employee", "y"))

	mu, err := e.Unify(ctx, standalone(child), standalone(parent), Rule)
	require.NoError(t, err)
	us := collect(t, mu)
	require.Len(t, us, 1, "symmetric assignments collapse into one unifier")

	u := us[0]
	assert.Equal(t, []atom.Variable{"x", "y"}, u.Get("p"))
	assert.Equal(t, []schema.Label{"employee", "part-time-employee"}, u.Requirements().Roles["employee"])

	_, ok := u.UnUnify(answer.Answer{"x": answer.Thing("V1", "person"), "y": answer.Thing("V2", "person")})
	assert.False(t, ok, "$x and $y must bind the same concept")

	got, ok := u.UnUnify(answer.Answer{"x": answer.Thing("V1", "person"), "y": answer.Thing("V1", "person")})
	require.True(t, ok)
	assert.Equal(t, "V1", got["p"].ID)

	_, ok = u.UnUnify(answer.Answer{
		"x":        answer.Thing("V1", "person"),
		"y":        answer.Thing("V1", "person"),
		"employee": answer.SchemaConcept("employer"),
	})
	assert.False(t, ok, "role requirement rejects employer")

	_, ok = u.UnUnify(answer.Answer{
		"x":        answer.Thing("V1", "person"),
		"y":        answer.Thing("V1", "person"),
		"employee": answer.SchemaConcept("part-time-employee"),
	})
	assert.True(t, ok)
}

func TestUnify_KindsNeverMix(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	isa := atom.NewIsa("x", "person")
	rel := atom.NewRelation("x", "friendship", atom.Plays("friend", "y"))
	for _, typ := range []Type{Exact, Structural, Rule, Subsumptive} {
		t.Run(typ.String(), func(t *testing.T) {
			mu, err := e.Unify(ctx, standalone(isa), standalone(rel), typ)
			require.NoError(t, err)
			assert.True(t, mu.IsNonExistent())
			assert.False(t, mu.Exists())
		})
	}
}

func TestUnify_TrivialFastPath(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	a := atom.NewRelation("r", "friendship", atom.Plays("friend", "x"), atom.Plays("friend", "y"))
	mu, err := e.Unify(ctx, standalone(a), standalone(a), Exact)
	require.NoError(t, err)
	assert.True(t, mu.IsTrivial())
	u, ok := mu.First()
	require.True(t, ok)
	assert.Equal(t, []atom.Variable{"x"}, u.Get("x"))

	mu, err = e.Unify(ctx, standalone(a), standalone(a), Subsumptive)
	require.NoError(t, err)
	assert.False(t, mu.IsTrivial(), "subsumptive always runs the full routine")
	assert.True(t, mu.Exists())
}

func TestUnify_ExactRenaming(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	child := atom.NewRelation("r", "friendship", atom.Plays("friend", "a"), atom.Plays("friend", "b"))
	parent := atom.NewRelation("s", "friendship", atom.Plays("friend", "x"), atom.Plays("friend", "y"))

	mu, err := e.Unify(ctx, standalone(child), standalone(parent), Exact)
	require.NoError(t, err)
	us := collect(t, mu)
	require.Len(t, us, 2)
	for _, u := range us {
		assert.Equal(t, []atom.Variable{"s"}, u.Get("r"))
		assert.False(t, u.IsNonInjective())
	}

	// Enumeration restarts from the beginning.
	assert.Len(t, mu.Collect(1), 1)
	assert.Len(t, mu.Collect(0), 2)
}

func TestUnify_IDs(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	child := atom.NewIsaTyped("x", atom.TypeVarFor("x", "person"), "person", atom.IDPredicate{V: "x", ID: "V1"})
	parent := atom.NewIsaTyped("y", atom.TypeVarFor("y", "person"), "person", atom.IDPredicate{V: "y", ID: "V2"})
	bare := atom.NewIsa("y", "person")

	tests := []struct {
		name   string
		parent atom.Atom
		typ    Type
		want   bool
	}{
		{"exact differing ids", parent, Exact, false},
		{"structural differing ids", parent, Structural, true},
		{"rule differing ids", parent, Rule, false},
		{"rule unconstrained parent", bare, Rule, true},
		{"subsumptive unconstrained parent", bare, Subsumptive, true},
		{"subsumptive differing ids", parent, Subsumptive, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mu, err := e.Unify(ctx, standalone(child), standalone(tt.parent), tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mu.Exists())
		})
	}
}

func TestUnify_SubsumptiveTypes(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	student := atom.NewIsa("x", "student")
	person := atom.NewIsa("y", "person")

	mu, err := e.Unify(ctx, standalone(student), standalone(person), Subsumptive)
	require.NoError(t, err)
	u, ok := mu.First()
	require.True(t, ok)
	assert.Equal(t, []schema.Label{"student"}, u.Requirements().Isa["y"])

	got, ok := u.UnUnify(answer.Answer{"y": answer.Thing("V1", "student")})
	require.True(t, ok)
	assert.Equal(t, "V1", got["x"].ID)
	_, ok = u.UnUnify(answer.Answer{"y": answer.Thing("V2", "person")})
	assert.False(t, ok, "a plain person is not a student answer")

	mu, err = e.Unify(ctx, standalone(person), standalone(student), Subsumptive)
	require.NoError(t, err)
	assert.False(t, mu.Exists(), "a more specific parent cannot answer a general child")

	mu, err = e.Unify(ctx, standalone(person), standalone(student), Rule)
	require.NoError(t, err)
	assert.True(t, mu.Exists(), "rule unification only needs overlapping types")
}

func TestUnify_SubsumptiveValues(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	bob, err := atom.NewValuePredicate("n", atom.OpEq, "Bob")
	require.NoError(t, err)
	specific := atom.NewAttribute("x", "name", "n", "", bob)
	general := atom.NewAttribute("y", "name", "m", "")

	mu, err := e.Unify(ctx, standalone(specific), standalone(general), Subsumptive)
	require.NoError(t, err)
	u, ok := mu.First()
	require.True(t, ok)
	assert.Equal(t, []atom.Variable{"y"}, u.Get("x"))
	assert.Equal(t, []atom.Variable{"m"}, u.Get("n"))

	mu, err = e.Unify(ctx, standalone(general), standalone(specific), Subsumptive)
	require.NoError(t, err)
	assert.False(t, mu.Exists())

	alice, err := atom.NewValuePredicate("m", atom.OpEq, "Alice")
	require.NoError(t, err)
	other := atom.NewAttribute("y", "name", "m", "", alice)
	mu, err = e.Unify(ctx, standalone(specific), standalone(other), Rule)
	require.NoError(t, err)
	assert.False(t, mu.Exists(), "incompatible values never unify")
}

func TestUnify_NonInjective(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	child := atom.NewRelation("r", "friendship", atom.Plays("friend", "a"), atom.Plays("friend", "b"))
	parent := atom.NewRelation("s", "friendship", atom.Plays("friend", "x"), atom.Plays("friend", "x"))

	mu, err := e.Unify(ctx, standalone(child), standalone(parent), Subsumptive)
	require.NoError(t, err)
	assert.True(t, mu.IsNonExistent())

	mu, err = e.Unify(ctx, standalone(child), standalone(parent), Rule)
	require.NoError(t, err)
	u, ok := mu.First()
	require.True(t, ok)
	assert.True(t, u.IsNonInjective())
}

func TestUnify_SameRoleDistinctPlayers(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	child := atom.NewRelation("r", "employment", atom.Plays("employee", "a"), atom.Plays("part-time-employee", "b"))
	parent := atom.NewRelation("s", "employment", atom.Plays("employee", "x"), atom.Plays("employee", "y"))

	mu, err := e.Unify(ctx, standalone(child), standalone(parent), Subsumptive)
	require.NoError(t, err)
	us := collect(t, mu)
	require.Len(t, us, 2)
	for _, u := range us {
		assert.False(t, u.IsNonInjective(), u.String())
	}

	mu, err = e.Unify(ctx, standalone(child), standalone(parent), Rule)
	require.NoError(t, err)
	us = collect(t, mu)
	require.Len(t, us, 2)

	var straight Unifier
	for _, u := range us {
		assert.False(t, u.IsNonInjective(), u.String())
		if slices.Equal(u.Get("a"), []atom.Variable{"x"}) {
			straight = u
		}
	}
	require.Equal(t, []atom.Variable{"y"}, straight.Get("b"))

	// Each parent role position is constrained by its own child role player.
	prps := parent.RolePlayers()
	roles := straight.Requirements().Roles
	assert.Equal(t, []schema.Label{"employee", "part-time-employee"}, roles[prps[0].Role.Var])
	assert.Equal(t, []schema.Label{"part-time-employee"}, roles[prps[1].Role.Var])
}

func TestUnify_IdenticalRolePlayersEnumeratedOnce(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	child := atom.NewRelation("r", "friendship",
		atom.Plays("friend", "a"), atom.Plays("friend", "a"), atom.Plays("friend", "b"))
	parent := atom.NewRelation("s", "friendship",
		atom.Plays("friend", "x"), atom.Plays("friend", "x"), atom.Plays("friend", "y"))

	mu, err := e.Unify(ctx, standalone(child), standalone(parent), Rule)
	require.NoError(t, err)
	us := collect(t, mu)

	keys := make(map[string]bool)
	for _, u := range us {
		assert.False(t, keys[u.Key()], "duplicate unifier %s", u)
		keys[u.Key()] = true
	}
	// $y receives either $b or one of the interchangeable $a players.
	assert.Len(t, us, 2)
}

func TestUnify_AtomWithoutQuery(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	child := atom.Scoped{Atom: atom.NewIsa("x", "person")}
	parent := atom.Scoped{Atom: atom.NewIsa("y", "person")}

	for _, typ := range []Type{Exact, Structural, Rule, Subsumptive} {
		mu, err := e.Unify(ctx, child, parent, typ)
		require.NoError(t, err, typ.String())
		u, ok := mu.First()
		require.True(t, ok, typ.String())
		assert.Equal(t, []atom.Variable{"y"}, u.Get("x"))
	}

	rel := atom.Scoped{Atom: atom.NewRelation("r", "", atom.Plays("employee", "a"))}
	mu, err := e.Unify(ctx, rel, rel, Rule)
	require.NoError(t, err)
	assert.True(t, mu.Exists())
}

func TestUnify_MoreParentRolePlayers(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	child := atom.NewRelation("r", "employment", atom.Plays("employee", "x"))
	parent := atom.NewRelation("s", "employment", atom.Plays("employee", "x"), atom.Plays("employer", "y"))

	for _, typ := range []Type{Rule, Subsumptive} {
		mu, err := e.Unify(ctx, standalone(child), standalone(parent), typ)
		require.NoError(t, err)
		assert.False(t, mu.Exists(), typ.String())
	}

	// The reverse direction only asks the child for more.
	mu, err := e.Unify(ctx, standalone(parent), standalone(child), Subsumptive)
	require.NoError(t, err)
	assert.True(t, mu.Exists())
}

func TestUnify_RuleRoleHierarchy(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	child := atom.NewRelation("r", "", atom.Plays("part-time-employee", "x"))
	parent := atom.NewRelation("s", "employment", atom.Plays("employee", "y"))

	mu, err := e.Unify(ctx, standalone(child), standalone(parent), Rule)
	require.NoError(t, err)
	assert.True(t, mu.Exists())

	mu, err = e.Unify(ctx, standalone(child), standalone(parent), Subsumptive)
	require.NoError(t, err)
	assert.False(t, mu.Exists(), "child relation type is unknown so the parent type is not covered")

	friend := atom.NewRelation("s", "friendship", atom.Plays("friend", "y"))
	mu, err = e.Unify(ctx, standalone(child), standalone(friend), Rule)
	require.NoError(t, err)
	assert.False(t, mu.Exists())
}

func TestUnify_OntologicalAtoms(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	a := atom.NewSubAtom("x", "person")
	b := atom.NewSubAtom("y", "person")

	mu, err := e.Unify(ctx, standalone(a), standalone(b), Rule)
	require.NoError(t, err)
	assert.True(t, mu.IsNonExistent())

	mu, err = e.Unify(ctx, standalone(a), standalone(b), Exact)
	require.NoError(t, err)
	u, ok := mu.First()
	require.True(t, ok)
	assert.Equal(t, []atom.Variable{"y"}, u.Get("x"))
}

func TestUnify_Errors(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	t.Run("unknown role", func(t *testing.T) {
		child := atom.NewRelation("r", "", atom.Plays("boss", "x"))
		parent := atom.NewRelation("s", "employment", atom.Plays("employee", "y"))
		_, err := e.Unify(ctx, standalone(child), standalone(parent), Rule)
		require.Error(t, err)
		assert.True(t, errors.Is(err, schema.ErrSchemaReferenceNotFound))
	})

	t.Run("ambiguous conclusion role", func(t *testing.T) {
		child := atom.NewRelation("r", "employment", atom.Plays("employee", "a"), atom.Plays("employer", "b"))
		parent := atom.NewRelation("s", "employment", atom.Player("x"), atom.Player("y"))
		_, err := e.Unify(ctx, standalone(child), standalone(parent), Rule)
		require.Error(t, err)
		assert.True(t, errors.Is(err, atom.ErrAmbiguousRolePattern))
	})
}

func TestParseType(t *testing.T) {
	for _, typ := range []Type{Exact, Structural, Rule, Subsumptive} {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	got, err := ParseType("RULE")
	require.NoError(t, err)
	assert.Equal(t, Rule, got)
	_, err = ParseType("fuzzy")
	assert.Error(t, err)
}
