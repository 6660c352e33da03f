package atom

import (
	"slices"
	"strings"
)

// Query is an ordered conjunction of atoms plus the query-level predicates
// attached to them. Queries own their atoms; atoms never point back.
type Query struct {
	atoms []Atom
	preds []Predicate
	key   string
}

// NewQuery builds a query. Each predicate is attached to every atom that
// mentions its variable.
func NewQuery(atoms []Atom, ps ...Predicate) *Query {
	ps = sortPredicates(ps)
	q := &Query{atoms: make([]Atom, len(atoms)), preds: ps}
	for i, a := range atoms {
		attached := predicatesOn(ps, a.VarNames()...)
		if len(attached) > 0 {
			a = a.WithPredicates(attached...)
		}
		q.atoms[i] = a
	}
	q.key = queryKey(q.atoms)
	return q
}

func queryKey(atoms []Atom) string {
	keys := make([]string, len(atoms))
	for i, a := range atoms {
		keys[i] = a.Key()
	}
	slices.Sort(keys)
	return strings.Join(keys, "&")
}

// Len returns the number of atoms.
func (q *Query) Len() int { return len(q.atoms) }

// Atoms returns the atoms in query order. A nil query has none.
func (q *Query) Atoms() []Atom {
	if q == nil {
		return nil
	}
	return slices.Clone(q.atoms)
}

// Atom returns the i-th atom.
func (q *Query) Atom(i int) Atom { return q.atoms[i] }

// Predicates returns the query-level predicates.
func (q *Query) Predicates() []Predicate { return slices.Clone(q.preds) }

// Key is the order-independent canonical form of the query.
func (q *Query) Key() string { return q.key }

// Scoped returns the handle of the i-th atom.
func (q *Query) Scoped(i int) Scoped { return Scoped{Atom: q.atoms[i], Query: q} }

// Index returns the position of an atom equal to a, or -1.
func (q *Query) Index(a Atom) int {
	for i, b := range q.atoms {
		if Equal(a, b) {
			return i
		}
	}
	return -1
}

// VarNames returns every variable of the query, sorted.
func (q *Query) VarNames() []Variable {
	var vs []Variable
	for _, a := range q.atoms {
		vs = append(vs, a.VarNames()...)
	}
	return SortVars(vs)
}

// AtomsWith returns the atoms mentioning v, in query order.
func (q *Query) AtomsWith(v Variable) []Atom {
	var out []Atom
	for _, a := range q.atoms {
		if slices.Contains(a.VarNames(), v) {
			out = append(out, a)
		}
	}
	return out
}

// RelationAtoms returns the relation atoms, in query order.
func (q *Query) RelationAtoms() []*RelationAtom {
	var out []*RelationAtom
	for _, a := range q.Atoms() {
		if r, ok := a.(*RelationAtom); ok {
			out = append(out, r)
		}
	}
	return out
}

// Neighbours returns the atoms other than a that share a variable with it.
func (q *Query) Neighbours(a Atom) []Atom {
	vars := a.VarNames()
	var out []Atom
	for _, b := range q.atoms {
		if Equal(a, b) {
			continue
		}
		for _, v := range b.VarNames() {
			if slices.Contains(vars, v) {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// Rewrite returns a copy of q with the i-th atom replaced by a.
func (q *Query) Rewrite(i int, a Atom) *Query {
	atoms := slices.Clone(q.atoms)
	atoms[i] = a
	return NewQuery(atoms, q.preds...)
}

func (q *Query) String() string {
	parts := make([]string, len(q.atoms))
	for i, a := range q.atoms {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// Scoped is an atom together with the query it belongs to. The query is a
// non-owning handle used to consult sibling atoms.
type Scoped struct {
	Atom  Atom
	Query *Query
}

// Standalone scopes a in a query of its own.
func Standalone(a Atom) Scoped {
	q := NewQuery([]Atom{a})
	return Scoped{Atom: q.atoms[0], Query: q}
}

// Of finds a in q and scopes it there. Atoms absent from q are scoped
// standalone.
func Of(q *Query, a Atom) Scoped {
	if q != nil {
		if i := q.Index(a); i >= 0 {
			return q.Scoped(i)
		}
	}
	return Standalone(a)
}

// Normalized returns s, scoping the atom standalone when s has no query.
func (s Scoped) Normalized() Scoped {
	if s.Query == nil && s.Atom != nil {
		return Standalone(s.Atom)
	}
	return s
}

func (s Scoped) String() string { return s.Atom.String() }
