// Package equivalence decides whether two atoms, or two queries, are the same
// up to variable renaming (alpha equivalence) or additionally up to the
// concrete ids they fix (structural equivalence), with hash codes consistent
// with each relation.
package equivalence

import (
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"reasoner/internal/atom"
	"reasoner/internal/logging"
	"reasoner/internal/schema"
)

// Equivalence is one equivalence relation over atoms. The predicate
// functions compare the per-variable predicate bindings of each kind.
type Equivalence struct {
	Name string
	// IDs compares the sorted ids fixed for a pair of corresponding variables.
	IDs func(a, b []string) bool
	// Values compares the value predicates of corresponding variables.
	Values func(a, b []atom.ValuePredicate) bool
	// Neqs compares the sorted signatures of the variables a variable must
	// differ from.
	Neqs func(a, b []string) bool
	// idKey folds ids into the hash consistently with IDs.
	idKey func(ids []string) string
}

// Alpha equates atoms that differ only in variable names.
var Alpha = &Equivalence{
	Name:   "alpha",
	IDs:    slices.Equal[[]string],
	Values: sameValues,
	Neqs:   slices.Equal[[]string],
	idKey:  func(ids []string) string { return strings.Join(ids, ",") },
}

// Structural additionally equates atoms fixing different concept ids in the
// same places. Value and inequality predicates compare as under Alpha.
var Structural = &Equivalence{
	Name:   "structural",
	IDs:    func(a, b []string) bool { return len(a) == len(b) },
	Values: sameValues,
	Neqs:   slices.Equal[[]string],
	idKey:  func(ids []string) string { return strconv.Itoa(len(ids)) },
}

func (e *Equivalence) String() string { return e.Name }

func sameValues(a, b []atom.ValuePredicate) bool {
	return slices.Equal(valueKeys(a), valueKeys(b))
}

// valueKeys renders value predicates without their variable, sorted by
// operator then value.
func valueKeys(ps []atom.ValuePredicate) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = strings.TrimPrefix(p.Key(), "value|"+string(p.V)+"|")
	}
	slices.Sort(out)
	return out
}

// descriptor is what a variable looks like from inside its atom: where it
// occurs, what its types are, and what predicates constrain it.
type descriptor struct {
	v      atom.Variable
	pos    string
	types  []schema.Label
	ids    []string
	values []atom.ValuePredicate
	neqs   []string
}

// signature identifies the variable without its predicates.
func (d descriptor) signature() string {
	return d.pos + "|" + joinLabels(d.types)
}

func (e *Equivalence) key(d descriptor) string {
	return d.signature() + "|" + e.idKey(d.ids) + "|" + strings.Join(valueKeys(d.values), ";") + "|" + strings.Join(d.neqs, ";")
}

func (e *Equivalence) matches(a, b descriptor) bool {
	return a.signature() == b.signature() &&
		e.IDs(a.ids, b.ids) &&
		e.Values(a.values, b.values) &&
		e.Neqs(a.neqs, b.neqs)
}

func joinLabels(ls []schema.Label) string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = string(l)
	}
	return strings.Join(parts, ",")
}

// baseKey combines the atom kind, its type label and its role-label multiset.
func baseKey(a atom.Atom) string {
	var sb strings.Builder
	sb.WriteString(a.Kind().String())
	sb.WriteString("|")
	if o, ok := a.(*atom.OntologicalAtom); ok {
		sb.WriteString(string(o.Op()))
		sb.WriteString("|")
	}
	sb.WriteString(string(a.TypeLabel()))
	if r, ok := a.(*atom.RelationAtom); ok {
		roles := r.Roles()
		slices.Sort(roles)
		sb.WriteString("|")
		sb.WriteString(joinLabels(roles))
	}
	return sb.String()
}

// queryTypes returns the labels the isa atoms of q give v.
func queryTypes(q *atom.Query, v atom.Variable) []schema.Label {
	var out []schema.Label
	if q == nil {
		return nil
	}
	for _, a := range q.Atoms() {
		if isa, ok := a.(*atom.IsaAtom); ok && isa.Var() == v && !schema.IsMeta(isa.TypeLabel()) {
			out = append(out, isa.TypeLabel())
		}
	}
	return schema.Sorted(out)
}

// positions maps every variable of a to its structural position.
func positions(a atom.Atom) map[atom.Variable][]string {
	pos := make(map[atom.Variable][]string)
	add := func(v atom.Variable, p string) {
		if v != "" {
			pos[v] = append(pos[v], p)
		}
	}
	add(a.Var(), "self")
	add(a.TypeVar(), "type")
	switch x := a.(type) {
	case *atom.AttributeAtom:
		add(x.AttributeVar(), "attr")
		add(x.RelationVar(), "via")
	case *atom.RelationAtom:
		for _, rp := range x.RolePlayers() {
			add(rp.Role.Var, "role:"+string(rp.Role.Label))
			add(rp.Player, "player:"+string(rp.Role.Label))
		}
	}
	for v := range pos {
		slices.Sort(pos[v])
		// A role variable shared by several players occupies one position.
		pos[v] = slices.Compact(pos[v])
	}
	return pos
}

func describe(s atom.Scoped) []descriptor {
	a := s.Atom
	ps := a.Predicates()
	pos := positions(a)

	base := make(map[atom.Variable]descriptor, len(pos))
	for v, p := range pos {
		d := descriptor{
			v:      v,
			pos:    strings.Join(p, "+"),
			ids:    atom.IDs(ps, v),
			values: atom.Values(ps, v),
		}
		if a.Kind() != atom.KindOntological && v != a.TypeVar() {
			d.types = queryTypes(s.Query, v)
		}
		base[v] = d
	}

	// Inequality is symmetric: both ends record the other's signature.
	neqs := make(map[atom.Variable][]string)
	link := func(v, other atom.Variable) {
		if _, ok := base[v]; !ok {
			return
		}
		if o, ok := base[other]; ok {
			neqs[v] = append(neqs[v], o.signature())
		} else {
			neqs[v] = append(neqs[v], "free")
		}
	}
	for _, p := range ps {
		if n, ok := p.(atom.NeqPredicate); ok {
			link(n.V, n.Other)
			link(n.Other, n.V)
		}
	}

	out := make([]descriptor, 0, len(base))
	for v, d := range base {
		d.neqs = neqs[v]
		slices.Sort(d.neqs)
		out = append(out, d)
	}
	slices.SortFunc(out, func(x, y descriptor) int { return strings.Compare(string(x.v), string(y.v)) })
	return out
}

// Equivalent reports whether a and b are equivalent atoms.
func (e *Equivalence) Equivalent(a, b atom.Scoped) bool {
	if a.Atom.Kind() != b.Atom.Kind() || baseKey(a.Atom) != baseKey(b.Atom) {
		return false
	}
	da, db := describe(a), describe(b)
	if len(da) != len(db) {
		return false
	}
	used := make([]bool, len(db))
	for _, x := range da {
		found := false
		for j, y := range db {
			if !used[j] && e.matches(x, y) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	logging.Get(logging.CategoryEquivalence).Debug("atoms equivalent",
		zap.String("equivalence", e.Name),
		zap.Stringer("a", a),
		zap.Stringer("b", b))
	return true
}

// Hash returns a hash code such that equivalent atoms hash equal.
func (e *Equivalence) Hash(a atom.Scoped) uint64 {
	ds := describe(a)
	keys := make([]string, len(ds))
	for i, d := range ds {
		keys[i] = e.key(d)
	}
	slices.Sort(keys)

	h := xxhash.New()
	_, _ = h.WriteString(e.Name)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(baseKey(a.Atom))
	for _, k := range keys {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(k)
	}
	return h.Sum64()
}

// QueriesEquivalent reports whether the atoms of a and b can be paired off
// into equivalent atoms.
func (e *Equivalence) QueriesEquivalent(a, b *atom.Query) bool {
	if a.Len() != b.Len() {
		return false
	}
	used := make([]bool, b.Len())
	for i := range a.Len() {
		found := false
		for j := range b.Len() {
			if !used[j] && e.Equivalent(a.Scoped(i), b.Scoped(j)) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// QueryHash hashes a query consistently with QueriesEquivalent.
func (e *Equivalence) QueryHash(q *atom.Query) uint64 {
	hashes := make([]uint64, q.Len())
	for i := range q.Len() {
		hashes[i] = e.Hash(q.Scoped(i))
	}
	slices.Sort(hashes)

	h := xxhash.New()
	buf := make([]byte, 0, 8*len(hashes))
	for _, x := range hashes {
		buf = strconv.AppendUint(buf, x, 16)
		buf = append(buf, ',')
	}
	_, _ = h.Write(buf)
	return h.Sum64()
}
