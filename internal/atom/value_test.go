package atom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vp(op Op, value any) ValuePredicate {
	p, err := NewValuePredicate("v", op, value)
	if err != nil {
		panic(err)
	}
	return p
}

func TestNewValuePredicate(t *testing.T) {
	p, err := NewValuePredicate("a", OpGt, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Value)

	_, err = NewValuePredicate("a", OpLike, 5)
	assert.Error(t, err)
	_, err = NewValuePredicate("a", OpLike, "([")
	assert.Error(t, err)
	_, err = NewValuePredicate("a", OpEq, []int{1})
	assert.Error(t, err)

	op, err := ParseOp("=")
	require.NoError(t, err)
	assert.Equal(t, OpEq, op)
	_, err = ParseOp("~")
	assert.Error(t, err)
}

func TestValuePredicate_Satisfies(t *testing.T) {
	tests := []struct {
		name  string
		pred  ValuePredicate
		value any
		want  bool
	}{
		{"eq int", vp(OpEq, 5), 5, true},
		{"eq int float", vp(OpEq, 5), 5.0, true},
		{"eq mismatch", vp(OpEq, 5), 6, false},
		{"neq", vp(OpNeq, 5), 6, true},
		{"neq other family", vp(OpNeq, 5), "five", true},
		{"gt", vp(OpGt, 5), 6, true},
		{"gt boundary", vp(OpGt, 5), 5, false},
		{"gte boundary", vp(OpGte, 5), 5, true},
		{"lt", vp(OpLt, 5), 4.5, true},
		{"lte boundary", vp(OpLte, 5), 5, true},
		{"string order", vp(OpLt, "b"), "a", true},
		{"contains", vp(OpContains, "Ac"), "bigacme", true},
		{"like", vp(OpLike, "^ac.e$"), "acme", true},
		{"like miss", vp(OpLike, "^ac.e$"), "acmes", false},
		{"incomparable", vp(OpGt, 5), "six", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pred.Satisfies(tt.value))
		})
	}
}

func TestValuePredicate_CompatibleWith(t *testing.T) {
	tests := []struct {
		name string
		a, b ValuePredicate
		want bool
	}{
		{"same eq", vp(OpEq, 5), vp(OpEq, 5), true},
		{"different eq", vp(OpEq, 5), vp(OpEq, 6), false},
		{"eq inside range", vp(OpEq, 5), vp(OpGt, 3), true},
		{"eq outside range", vp(OpLt, 3), vp(OpEq, 5), false},
		{"overlapping range", vp(OpGt, 3), vp(OpLt, 5), true},
		{"disjoint range", vp(OpGt, 5), vp(OpLt, 3), false},
		{"touching closed", vp(OpGte, 5), vp(OpLte, 5), true},
		{"touching open", vp(OpGt, 5), vp(OpLte, 5), false},
		{"same direction", vp(OpGt, 5), vp(OpGt, 100), true},
		{"neq and range", vp(OpNeq, 5), vp(OpGt, 5), true},
		{"contains and eq", vp(OpContains, "ac"), vp(OpEq, "acme"), true},
		{"contains and eq miss", vp(OpContains, "zz"), vp(OpEq, "acme"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.CompatibleWith(tt.b))
			assert.Equal(t, tt.want, tt.b.CompatibleWith(tt.a), "compatibility is symmetric")
		})
	}
}

func TestValuePredicate_Subsumes(t *testing.T) {
	tests := []struct {
		name            string
		general, narrow ValuePredicate
		want            bool
	}{
		{"identical", vp(OpGt, 5), vp(OpGt, 5), true},
		{"gt wider", vp(OpGt, 5), vp(OpGt, 10), true},
		{"gt narrower", vp(OpGt, 10), vp(OpGt, 5), false},
		{"gt by gte", vp(OpGt, 5), vp(OpGte, 6), true},
		{"gt by gte boundary", vp(OpGt, 5), vp(OpGte, 5), false},
		{"gte by gt", vp(OpGte, 5), vp(OpGt, 5), true},
		{"lt wider", vp(OpLt, 10), vp(OpLt, 5), true},
		{"lte by lt", vp(OpLte, 5), vp(OpLt, 5), true},
		{"range by eq", vp(OpGt, 5), vp(OpEq, 7), true},
		{"eq by range", vp(OpEq, 7), vp(OpGt, 5), false},
		{"neq by range", vp(OpNeq, 5), vp(OpGt, 5), true},
		{"neq by range containing", vp(OpNeq, 5), vp(OpGt, 4), false},
		{"neq by other neq", vp(OpNeq, 5), vp(OpNeq, 6), false},
		{"contains by contains", vp(OpContains, "ac"), vp(OpContains, "acme"), true},
		{"contains by eq", vp(OpContains, "ac"), vp(OpEq, "acme"), true},
		{"contains by like", vp(OpContains, "ac"), vp(OpLike, "ac.*"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.general.Subsumes(tt.narrow))
		})
	}
}

func TestPredicateAccessors(t *testing.T) {
	ps := []Predicate{
		IDPredicate{V: "x", ID: "V2"},
		IDPredicate{V: "x", ID: "V1"},
		IDPredicate{V: "y", ID: "V3"},
		NeqPredicate{V: "x", Other: "y"},
		vp(OpGt, 1),
	}
	assert.Equal(t, []string{"V1", "V2"}, IDs(ps, "x"))
	assert.Len(t, Neqs(ps, "x"), 1)
	assert.Len(t, Values(ps, "v"), 1)
	assert.True(t, mentions(NeqPredicate{V: "x", Other: "y"}, []Variable{"y"}))
}
