package unify

import (
	"iter"
	"maps"
	"slices"
	"strings"

	"reasoner/internal/answer"
	"reasoner/internal/atom"
	"reasoner/internal/schema"
)

// Requirements are conditions a parent answer must meet before it can be
// mapped back onto the child. Each entry restricts the concept bound to a
// parent variable to a set of labels; unbound variables are not checked.
type Requirements struct {
	// Types restricts type variables to schema labels.
	Types map[atom.Variable][]schema.Label
	// Roles restricts role variables to role labels.
	Roles map[atom.Variable][]schema.Label
	// Isa restricts instance variables to instances of the given types.
	Isa map[atom.Variable][]schema.Label
}

func (r Requirements) clone() Requirements {
	return Requirements{
		Types: cloneLabelMap(r.Types),
		Roles: cloneLabelMap(r.Roles),
		Isa:   cloneLabelMap(r.Isa),
	}
}

func cloneLabelMap(m map[atom.Variable][]schema.Label) map[atom.Variable][]schema.Label {
	if len(m) == 0 {
		return nil
	}
	out := make(map[atom.Variable][]schema.Label, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

// restrict adds the requirement v ∈ labels, intersecting with any existing one.
func restrict(m map[atom.Variable][]schema.Label, v atom.Variable, labels []schema.Label) map[atom.Variable][]schema.Label {
	if m == nil {
		m = make(map[atom.Variable][]schema.Label)
	}
	labels = schema.Sorted(labels)
	if prev, ok := m[v]; ok {
		labels = schema.Intersect(prev, labels)
	}
	m[v] = labels
	return m
}

func mergeRequirements(a, b Requirements) Requirements {
	out := a.clone()
	for v, ls := range b.Types {
		out.Types = restrict(out.Types, v, ls)
	}
	for v, ls := range b.Roles {
		out.Roles = restrict(out.Roles, v, ls)
	}
	for v, ls := range b.Isa {
		out.Isa = restrict(out.Isa, v, ls)
	}
	return out
}

// IsEmpty reports whether there is nothing to check.
func (r Requirements) IsEmpty() bool {
	return len(r.Types) == 0 && len(r.Roles) == 0 && len(r.Isa) == 0
}

// Satisfied checks the requirements against a parent answer.
func (r Requirements) Satisfied(a answer.Answer) bool {
	for v, ls := range r.Types {
		if c, ok := a[v]; ok && !slices.Contains(ls, conceptLabel(c)) {
			return false
		}
	}
	for v, ls := range r.Roles {
		if c, ok := a[v]; ok && !slices.Contains(ls, conceptLabel(c)) {
			return false
		}
	}
	for v, ls := range r.Isa {
		if c, ok := a[v]; ok && !c.IsSchemaConcept() && !slices.Contains(ls, c.Type) {
			return false
		}
	}
	return true
}

// conceptLabel is the label of a schema concept or the type of a thing.
func conceptLabel(c answer.Concept) schema.Label {
	if c.IsSchemaConcept() {
		return c.Label
	}
	return c.Type
}

func requirementsString(name string, m map[atom.Variable][]schema.Label) string {
	if len(m) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m))
	for _, v := range slices.Sorted(maps.Keys(m)) {
		ls := make([]string, len(m[v]))
		for i, l := range m[v] {
			ls[i] = string(l)
		}
		parts = append(parts, v.String()+"∈{"+strings.Join(ls, ",")+"}")
	}
	return " " + name + "[" + strings.Join(parts, ", ") + "]"
}

// =============================================================================
// UNIFIER
// =============================================================================

// Unifier maps child variables to parent variables. A child variable may map
// to several parent variables, each of which must then bind the same concept.
type Unifier struct {
	mapping map[atom.Variable][]atom.Variable
	req     Requirements
	key     string
}

// NewUnifier builds a unifier from child → parents pairs.
func NewUnifier(mapping map[atom.Variable][]atom.Variable, req Requirements) Unifier {
	m := make(map[atom.Variable][]atom.Variable, len(mapping))
	for c, ps := range mapping {
		if len(ps) > 0 {
			m[c] = atom.SortVars(ps)
		}
	}
	u := Unifier{mapping: m, req: req.clone()}
	u.key = u.render()
	return u
}

// Identity maps every variable to itself.
func Identity(vars ...atom.Variable) Unifier {
	m := make(map[atom.Variable][]atom.Variable, len(vars))
	for _, v := range vars {
		m[v] = []atom.Variable{v}
	}
	return NewUnifier(m, Requirements{})
}

// Get returns the parent variables c maps to.
func (u Unifier) Get(c atom.Variable) []atom.Variable { return slices.Clone(u.mapping[c]) }

// Mapping returns a copy of the child → parents map.
func (u Unifier) Mapping() map[atom.Variable][]atom.Variable {
	out := make(map[atom.Variable][]atom.Variable, len(u.mapping))
	for c, ps := range u.mapping {
		out[c] = slices.Clone(ps)
	}
	return out
}

// Requirements returns the checks parent answers must pass.
func (u Unifier) Requirements() Requirements { return u.req.clone() }

// ChildVars returns the mapped child variables, sorted.
func (u Unifier) ChildVars() []atom.Variable { return slices.Sorted(maps.Keys(u.mapping)) }

// ParentVars returns the parent variables mapped onto, sorted.
func (u Unifier) ParentVars() []atom.Variable {
	var out []atom.Variable
	for _, ps := range u.mapping {
		out = append(out, ps...)
	}
	return atom.SortVars(out)
}

// IsEmpty reports whether nothing is mapped.
func (u Unifier) IsEmpty() bool { return len(u.mapping) == 0 }

// IsNonInjective reports whether two child variables map to one parent variable.
func (u Unifier) IsNonInjective() bool {
	seen := make(map[atom.Variable]atom.Variable)
	for c, ps := range u.mapping {
		for _, p := range ps {
			if prev, ok := seen[p]; ok && prev != c {
				return true
			}
			seen[p] = c
		}
	}
	return false
}

// Merge combines two unifiers. Requirements on a shared variable intersect.
func (u Unifier) Merge(o Unifier) Unifier {
	m := u.Mapping()
	for c, ps := range o.mapping {
		m[c] = append(m[c], ps...)
	}
	return NewUnifier(m, mergeRequirements(u.req, o.req))
}

// Inverse maps parent variables back to child variables. Requirements refer
// to parent variables and are not carried over.
func (u Unifier) Inverse() Unifier {
	m := make(map[atom.Variable][]atom.Variable)
	for c, ps := range u.mapping {
		for _, p := range ps {
			m[p] = append(m[p], c)
		}
	}
	return NewUnifier(m, Requirements{})
}

// Apply maps an answer to the child onto the parent's variables. ok is
// false when two child variables mapped to one parent variable disagree.
func (u Unifier) Apply(child answer.Answer) (answer.Answer, bool) {
	out := make(answer.Answer, len(child))
	for c, concept := range child {
		for _, p := range u.mapping[c] {
			if prev, ok := out[p]; ok && !prev.Same(concept) {
				return nil, false
			}
			out[p] = concept
		}
	}
	return out, true
}

// UnUnify maps an answer to the parent back onto the child's variables. The
// answer is rejected when it fails a requirement or binds the parent
// variables of one child variable to different concepts.
func (u Unifier) UnUnify(parent answer.Answer) (answer.Answer, bool) {
	if !u.req.Satisfied(parent) {
		return nil, false
	}
	out := make(answer.Answer, len(u.mapping))
	for c, ps := range u.mapping {
		for _, p := range ps {
			concept, ok := parent[p]
			if !ok {
				continue
			}
			if prev, bound := out[c]; bound && !prev.Same(concept) {
				return nil, false
			}
			out[c] = concept
		}
	}
	return out, true
}

// Key is a canonical form of the unifier.
func (u Unifier) Key() string { return u.key }

func (u Unifier) String() string { return u.key }

func (u Unifier) render() string {
	parts := make([]string, 0, len(u.mapping))
	for _, c := range u.ChildVars() {
		ps := u.mapping[c]
		names := make([]string, len(ps))
		for i, p := range ps {
			names[i] = p.String()
		}
		target := names[0]
		if len(names) > 1 {
			target = "{" + strings.Join(names, ",") + "}"
		}
		parts = append(parts, c.String()+"->"+target)
	}
	return "{" + strings.Join(parts, ", ") + "}" +
		requirementsString("types", u.req.Types) +
		requirementsString("roles", u.req.Roles) +
		requirementsString("isa", u.req.Isa)
}

// =============================================================================
// MULTI-UNIFIER
// =============================================================================

type multiKind int

const (
	multiLazy multiKind = iota
	multiTrivial
	multiNonExistent
)

// MultiUnifier is a lazily enumerated set of unifiers. Enumeration can stop
// early and can be restarted; each pass recomputes its results.
type MultiUnifier struct {
	kind multiKind
	seq  iter.Seq[Unifier]
}

// NonExistent is the result of a unification with no valid mapping.
func NonExistent() MultiUnifier {
	return MultiUnifier{kind: multiNonExistent, seq: func(func(Unifier) bool) {}}
}

// Trivial is the identity result for atoms unified with themselves.
func Trivial(vars ...atom.Variable) MultiUnifier {
	u := Identity(vars...)
	return MultiUnifier{kind: multiTrivial, seq: func(yield func(Unifier) bool) { yield(u) }}
}

// Lazy wraps a sequence of unifiers.
func Lazy(seq iter.Seq[Unifier]) MultiUnifier {
	return MultiUnifier{kind: multiLazy, seq: seq}
}

// All enumerates the unifiers.
func (m MultiUnifier) All() iter.Seq[Unifier] {
	if m.seq == nil {
		return func(func(Unifier) bool) {}
	}
	return m.seq
}

// First returns the first unifier.
func (m MultiUnifier) First() (Unifier, bool) {
	for u := range m.All() {
		return u, true
	}
	return Unifier{}, false
}

// Exists reports whether at least one unifier exists.
func (m MultiUnifier) Exists() bool {
	if m.kind == multiNonExistent {
		return false
	}
	_, ok := m.First()
	return ok
}

// IsTrivial reports whether m is the identity result of the fast path.
func (m MultiUnifier) IsTrivial() bool { return m.kind == multiTrivial }

// IsNonExistent reports whether m is the explicit no-match result.
func (m MultiUnifier) IsNonExistent() bool { return m.kind == multiNonExistent }

// Collect materialises up to limit unifiers; limit <= 0 means all.
func (m MultiUnifier) Collect(limit int) []Unifier {
	var out []Unifier
	for u := range m.All() {
		out = append(out, u)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
