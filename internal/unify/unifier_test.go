package unify

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasoner/internal/answer"
	"reasoner/internal/atom"
	"reasoner/internal/schema"
)

func TestUnifier_ApplyAndUnUnify(t *testing.T) {
	u := NewUnifier(map[atom.Variable][]atom.Variable{
		"a": {"x"},
		"b": {"y", "z"},
	}, Requirements{Isa: map[atom.Variable][]schema.Label{"x": {"person", "student"}}})

	parent, ok := u.Apply(answer.Answer{"a": answer.Thing("V1", "person"), "b": answer.Thing("V2", "company")})
	require.True(t, ok)
	want := answer.Answer{
		"x": answer.Thing("V1", "person"),
		"y": answer.Thing("V2", "company"),
		"z": answer.Thing("V2", "company"),
	}
	if diff := cmp.Diff(want, parent); diff != "" {
		t.Errorf("Apply mismatch (-want +got):\n%s", diff)
	}

	child, ok := u.UnUnify(parent)
	require.True(t, ok)
	assert.True(t, child.Equal(answer.Answer{"a": answer.Thing("V1", "person"), "b": answer.Thing("V2", "company")}))

	_, ok = u.UnUnify(answer.Answer{"x": answer.Thing("V1", "company")})
	assert.False(t, ok, "isa requirement")

	_, ok = u.UnUnify(answer.Answer{"y": answer.Thing("V2", "company"), "z": answer.Thing("V3", "company")})
	assert.False(t, ok, "both parents of b must agree")
}

func TestUnifier_ApplyConflict(t *testing.T) {
	u := NewUnifier(map[atom.Variable][]atom.Variable{"a": {"x"}, "b": {"x"}}, Requirements{})
	assert.True(t, u.IsNonInjective())

	_, ok := u.Apply(answer.Answer{"a": answer.Thing("V1", "person"), "b": answer.Thing("V2", "person")})
	assert.False(t, ok)
	got, ok := u.Apply(answer.Answer{"a": answer.Thing("V1", "person"), "b": answer.Thing("V1", "person")})
	require.True(t, ok)
	assert.Equal(t, "V1", got["x"].ID)
}

func TestUnifier_MergeAndInverse(t *testing.T) {
	a := NewUnifier(map[atom.Variable][]atom.Variable{"a": {"x"}},
		Requirements{Types: map[atom.Variable][]schema.Label{"t": {"employment", "part-time-employment"}}})
	b := NewUnifier(map[atom.Variable][]atom.Variable{"a": {"y"}, "b": {"z"}},
		Requirements{Types: map[atom.Variable][]schema.Label{"t": {"part-time-employment"}}})

	m := a.Merge(b)
	assert.Equal(t, []atom.Variable{"x", "y"}, m.Get("a"))
	assert.Equal(t, []atom.Variable{"z"}, m.Get("b"))
	assert.Equal(t, []schema.Label{"part-time-employment"}, m.Requirements().Types["t"])
	assert.Equal(t, []atom.Variable{"a", "b"}, m.ChildVars())
	assert.Equal(t, []atom.Variable{"x", "y", "z"}, m.ParentVars())

	inv := m.Inverse()
	assert.Equal(t, []atom.Variable{"a"}, inv.Get("x"))
	assert.Equal(t, []atom.Variable{"a"}, inv.Get("y"))
	assert.True(t, inv.IsNonInjective())
	assert.True(t, inv.Requirements().IsEmpty())

	assert.Equal(t, "{$a->{$x,$y}, $b->$z} types[$t∈{part-time-employment}]", m.String())
}

func TestUnifier_Immutable(t *testing.T) {
	mapping := map[atom.Variable][]atom.Variable{"a": {"x"}}
	u := NewUnifier(mapping, Requirements{})
	mapping["a"][0] = "y"
	mapping["b"] = []atom.Variable{"z"}
	assert.Equal(t, []atom.Variable{"x"}, u.Get("a"))
	assert.Empty(t, u.Get("b"))

	got := u.Get("a")
	got[0] = "q"
	assert.Equal(t, []atom.Variable{"x"}, u.Get("a"))
}

func TestMultiUnifier(t *testing.T) {
	assert.False(t, NonExistent().Exists())
	assert.Empty(t, NonExistent().Collect(0))

	tr := Trivial("x", "y")
	assert.True(t, tr.IsTrivial())
	u, ok := tr.First()
	require.True(t, ok)
	assert.Equal(t, []atom.Variable{"y"}, u.Get("y"))

	calls := 0
	lazy := Lazy(func(yield func(Unifier) bool) {
		for _, p := range []atom.Variable{"x", "y", "z"} {
			calls++
			if !yield(NewUnifier(map[atom.Variable][]atom.Variable{"a": {p}}, Requirements{})) {
				return
			}
		}
	})
	assert.True(t, lazy.Exists())
	assert.Equal(t, 1, calls, "Exists pulls a single unifier")
	assert.Len(t, lazy.Collect(2), 2)
	assert.Len(t, lazy.Collect(0), 3)
}

func TestRequirements_Satisfied(t *testing.T) {
	req := Requirements{
		Types: map[atom.Variable][]schema.Label{"t": {"employment"}},
		Roles: map[atom.Variable][]schema.Label{"r": {"employee"}},
		Isa:   map[atom.Variable][]schema.Label{"x": {"person"}},
	}
	tests := []struct {
		name string
		a    answer.Answer
		want bool
	}{
		{"unbound", answer.Answer{}, true},
		{"all met", answer.Answer{
			"t": answer.SchemaConcept("employment"),
			"r": answer.SchemaConcept("employee"),
			"x": answer.Thing("V1", "person"),
		}, true},
		{"wrong type", answer.Answer{"t": answer.SchemaConcept("friendship")}, false},
		{"wrong role", answer.Answer{"r": answer.SchemaConcept("employer")}, false},
		{"wrong isa", answer.Answer{"x": answer.Thing("V1", "company")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, req.Satisfied(tt.a))
		})
	}
}
