package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasoner/internal/answer"
	"reasoner/internal/atom"
	"reasoner/internal/schema"
)

const employmentQuery = `
focus: 0
match:
  - relation:
      var: $r
      type: employment
      players:
        - {role: employee, player: $x}
        - {role_var: $role, player: $y}
  - isa: {var: x, type: person}
  - has: {owner: x, type: name, attr: n}
where:
  - {var: n, op: "==", value: Bob}
  - {var: y, id: V1}
  - {var: x, neq: y}
`

func TestDecodeQuery(t *testing.T) {
	doc, err := DecodeQuery([]byte(employmentQuery))
	require.NoError(t, err)

	q, err := doc.Build()
	require.NoError(t, err)
	require.Equal(t, 3, q.Len())

	eq, err := atom.NewValuePredicate("n", atom.OpEq, "Bob")
	require.NoError(t, err)
	want := atom.NewQuery([]atom.Atom{
		atom.NewRelationTyped("r", "", "employment", []atom.RolePlayer{
			atom.Plays("employee", "x"),
			atom.PlaysVar("role", "y"),
		}),
		atom.NewIsa("x", "person"),
		atom.NewAttribute("x", "name", "n", ""),
	}, eq, atom.IDPredicate{V: "y", ID: "V1"}, atom.NeqPredicate{V: "x", Other: "y"})

	assert.Equal(t, want.Key(), q.Key())
	for i := range q.Len() {
		assert.True(t, atom.Equal(want.Atom(i), q.Atom(i)), "atom %d: %s", i, q.Atom(i))
	}

	s, err := doc.Scoped()
	require.NoError(t, err)
	assert.Equal(t, atom.KindRelation, s.Atom.Kind())
	assert.Equal(t, atom.Variable("r"), s.Atom.Var())
}

func TestDecodeQuery_Ontological(t *testing.T) {
	doc, err := DecodeQuery([]byte(`
match:
  - sub: {var: t, type: person}
  - plays: {var: t, type: employee}
  - relates: {var: u, type: employee}
`))
	require.NoError(t, err)
	q, err := doc.Build()
	require.NoError(t, err)

	ops := make([]atom.OntologicalOp, q.Len())
	for i, a := range q.Atoms() {
		o, ok := a.(*atom.OntologicalAtom)
		require.True(t, ok)
		ops[i] = o.Op()
	}
	assert.Equal(t, []atom.OntologicalOp{atom.OpSub, atom.OpPlays, atom.OpRelates}, ops)
}

func TestDecodeQuery_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty match", `match: []`},
		{"two statements", `match: [{isa: {var: x, type: person}, sub: {var: x, type: person}}]`},
		{"no statement", `match: [{}]`},
		{"missing player", `match: [{relation: {players: [{role: employee}]}}]`},
		{"has without type", `match: [{has: {owner: x}}]`},
		{"bad operator", "match: [{isa: {var: x}}]\nwhere: [{var: x, op: \"~\", value: 1}]"},
		{"empty predicate", "match: [{isa: {var: x}}]\nwhere: [{var: x}]"},
		{"focus out of range", "focus: 3\nmatch: [{isa: {var: x}}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := DecodeQuery([]byte(tt.doc))
			require.NoError(t, err)
			_, err = doc.Scoped()
			assert.Error(t, err)
		})
	}

	_, err := DecodeQuery([]byte("match: ["))
	assert.Error(t, err)
}

func TestLoadQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	require.NoError(t, os.WriteFile(path, []byte(employmentQuery), 0o644))

	doc, err := LoadQuery(path)
	require.NoError(t, err)
	assert.Len(t, doc.Match, 3)

	_, err = LoadQuery(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDecodeRules(t *testing.T) {
	rules, err := DecodeRules([]byte(`
rules:
  - label: colleagues
    when:
      match:
        - relation: {type: employment, players: [{role: employee, player: x}, {role: employer, player: c}]}
        - relation: {type: employment, players: [{role: employee, player: y}, {role: employer, player: c}]}
      where:
        - {var: x, neq: y}
    then:
      relation: {type: colleagueship, players: [{role: colleague, player: x}, {role: colleague, player: y}]}
`))
	require.NoError(t, err)
	require.Len(t, rules, 1)

	r := rules[0]
	assert.Equal(t, "colleagues", r.Label)
	assert.Equal(t, 2, r.When.Len())
	rel, ok := r.Then.(*atom.RelationAtom)
	require.True(t, ok)
	assert.Equal(t, []atom.Variable{"x", "y"}, rel.Players())

	_, err = DecodeRules([]byte("rules:\n  - label: broken\n    when: {match: []}\n"))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestDecodeAnswers(t *testing.T) {
	answers, err := DecodeAnswers([]byte(`
- x: {id: V1, type: person}
  $n: {id: V9, type: name, value: Bob}
  t: {label: person}
- r:
    id: V3
    type: employment
    players: {employee: [V1], employer: [V2]}
`))
	require.NoError(t, err)

	name := answer.Thing("V9", "name")
	name.Value = "Bob"
	rel := answer.Thing("V3", "employment")
	rel.RolePlayers = map[schema.Label][]string{"employee": {"V1"}, "employer": {"V2"}}
	want := []answer.Answer{
		{"x": answer.Thing("V1", "person"), "n": name, "t": answer.SchemaConcept("person")},
		{"r": rel},
	}
	if diff := cmp.Diff(want, answers); diff != "" {
		t.Errorf("answers mismatch (-want +got):\n%s", diff)
	}

	_, err = DecodeAnswers([]byte("- x: {type: person}"))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}
