package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reasoner/internal/atom"
	"reasoner/internal/schema"
)

func TestAnswer_Merge(t *testing.T) {
	a := Answer{"x": Thing("V1", "person")}
	b := Answer{"y": Thing("V2", "company"), "x": Thing("V1", "person")}

	merged, ok := a.Merge(b)
	assert.True(t, ok)
	assert.Equal(t, []atom.Variable{"x", "y"}, merged.Vars())
	assert.Len(t, a, 1, "merge must not mutate its receiver")

	_, ok = a.Merge(Answer{"x": Thing("V9", "person")})
	assert.False(t, ok)

	var empty Answer
	merged, ok = empty.Merge(a)
	assert.True(t, ok)
	assert.True(t, merged.Equal(a))
}

func TestAnswer_ProjectAndReturned(t *testing.T) {
	a := Answer{
		"x":          Thing("V1", "person"),
		"_employment": SchemaConcept("employment"),
	}
	assert.Equal(t, Answer{"x": Thing("V1", "person")}, a.Project("x", "missing"))
	assert.Equal(t, []atom.Variable{"x"}, a.Returned().Vars())
	assert.Equal(t, "{$_employment=employment, $x=V1:person}", a.String())
	assert.Equal(t, "_employment=label:employment,x=id:V1", a.Key())
}

func TestConcept(t *testing.T) {
	rel := Concept{ID: "R1", Type: "employment", RolePlayers: map[schema.Label][]string{
		"employer": {"C1"},
		"employee": {"P1", "P2"},
	}}
	assert.False(t, rel.IsSchemaConcept())
	assert.Equal(t, []schema.Label{"employee", "employer"}, rel.Roles())
	assert.Equal(t, []string{"P1", "P2"}, rel.PlayersOf("employee"))
	assert.True(t, SchemaConcept("person").Same(Concept{Label: "person"}))
	assert.False(t, Thing("V1", "person").Same(Thing("V2", "person")))
	assert.Equal(t, "A1:name=acme", Concept{ID: "A1", Type: "name", Value: "acme"}.String())
}
