package instance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasoner/internal/answer"
	"reasoner/internal/atom"
	"reasoner/internal/schema"
)

const marriageSchema = `
entities:
  - label: person
    plays: [spouse, employee]
    has: [name, age]
  - label: company
    plays: [employer]
relations:
  - label: marriage
    relates: [spouse]
  - label: employment
    relates: [employee, employer]
attributes:
  - {label: name, value: string}
  - {label: age, value: long}
`

func newStore(t *testing.T, opts ...Option) (*Store, *schema.Graph) {
	t.Helper()
	g, err := schema.ParseYAML([]byte(marriageSchema))
	require.NoError(t, err)
	opts = append([]Option{WithIDs(SequentialIDs("V"))}, opts...)
	return NewStore(schema.NewHierarchy(g), opts...), g
}

func TestMaterialise_Isa(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	isa := atom.NewIsa("x", "person")
	got, err := s.Materialise(ctx, atom.Standalone(isa), nil)
	require.NoError(t, err)
	assert.Equal(t, answer.Thing("V1", "person"), got["x"])
	assert.Equal(t, answer.SchemaConcept("person"), got[isa.TypeVar()])

	// A bound variable is looked up, not created.
	again, err := s.Materialise(ctx, atom.Standalone(isa), answer.Answer{"x": answer.Thing("V1", "")})
	require.NoError(t, err)
	assert.Equal(t, "V1", again["x"].ID)
	assert.Equal(t, schema.Label("person"), again["x"].Type)
	assert.Equal(t, 1, s.Facts())

	n, err := s.Count("person")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMaterialise_AttributeReuse(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	sub := answer.Answer{"x": answer.Thing("P1", "person"), "y": answer.Thing("P2", "person")}
	tom, err := atom.NewValuePredicate("n", atom.OpEq, "Tom")
	require.NoError(t, err)

	first, err := s.Materialise(ctx, atom.Standalone(atom.NewAttribute("x", "name", "n", "", tom)), sub)
	require.NoError(t, err)
	tom2, err := atom.NewValuePredicate("m", atom.OpEq, "Tom")
	require.NoError(t, err)
	second, err := s.Materialise(ctx, atom.Standalone(atom.NewAttribute("y", "name", "m", "", tom2)), sub)
	require.NoError(t, err)

	assert.Equal(t, first["n"].ID, second["m"].ID, "same type and value is one attribute")
	assert.Equal(t, "Tom", second["m"].Value)

	c, ok, err := s.Concept(ctx, first["n"].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Tom", c.Value)
	assert.Equal(t, schema.Label("name"), c.Type)

	age, err := atom.NewValuePredicate("a", atom.OpEq, 42)
	require.NoError(t, err)
	got, err := s.Materialise(ctx, atom.Standalone(atom.NewAttribute("x", "age", "a", "", age)), sub)
	require.NoError(t, err)
	c, ok, err = s.Concept(ctx, got["a"].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), c.Value)
}

func TestMaterialise_RelationReuse(t *testing.T) {
	ctx := context.Background()
	s, g := newStore(t)
	g.AttachCounter(s)

	sub := answer.Answer{"x": answer.Thing("P1", "person"), "y": answer.Thing("P2", "person")}
	a := atom.NewRelation("r", "marriage", atom.Plays("spouse", "x"), atom.Plays("spouse", "y"))
	b := atom.NewRelation("s", "marriage", atom.Plays("spouse", "y"), atom.Plays("spouse", "x"))

	first, err := s.Materialise(ctx, atom.Standalone(a), sub)
	require.NoError(t, err)
	second, err := s.Materialise(ctx, atom.Standalone(b), sub)
	require.NoError(t, err)
	assert.Equal(t, first["r"].ID, second["s"].ID)
	assert.ElementsMatch(t, []string{"P1", "P2"}, first["r"].PlayersOf("spouse"))

	rel, ok, err := s.Concept(ctx, first["r"].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"P1", "P2"}, rel.PlayersOf("spouse"))

	n, err := g.ShardCount(ctx, "marriage")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "the graph reads live counts from the store")

	things, err := s.Instances(ctx, "marriage")
	require.NoError(t, err)
	assert.Len(t, things, 1)
}

func TestMaterialise_Errors(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	tests := []struct {
		name string
		a    atom.Atom
		sub  answer.Answer
		want error
	}{
		{"untyped", atom.NewIsa("x", ""), nil, ErrUnresolved},
		{"schema atom", atom.NewSubAtom("x", "person"), nil, ErrNotMaterialisable},
		{"unknown type", atom.NewIsa("x", "robot"), nil, schema.ErrSchemaReferenceNotFound},
		{"unbound player", atom.NewRelation("r", "marriage", atom.Plays("spouse", "x")), nil, ErrUnbound},
		{"missing role", atom.NewRelation("r", "employment", atom.Player("x")),
			answer.Answer{"x": answer.Thing("P1", "person")}, atom.ErrAmbiguousRolePattern},
		{"owner unbound", atom.NewAttribute("x", "name", "n", ""), nil, ErrUnbound},
		{"no value", atom.NewAttribute("x", "name", "n", ""),
			answer.Answer{"x": answer.Thing("P1", "person")}, ErrUnbound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Materialise(ctx, atom.Standalone(tt.a), tt.sub)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestFactLimit(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, WithFactLimit(1))

	_, err := s.Materialise(ctx, atom.Standalone(atom.NewIsa("x", "person")), nil)
	require.NoError(t, err)
	_, err = s.Materialise(ctx, atom.Standalone(atom.NewIsa("y", "person")), nil)
	assert.ErrorIs(t, err, ErrFactLimit)
}
