package atom

import (
	"slices"
	"strings"

	"reasoner/internal/schema"
)

// Kind is the concrete variant of an atom.
type Kind int

const (
	KindIsa Kind = iota
	KindRelation
	KindAttribute
	KindOntological
)

func (k Kind) String() string {
	switch k {
	case KindIsa:
		return "isa"
	case KindRelation:
		return "relation"
	case KindAttribute:
		return "attribute"
	case KindOntological:
		return "ontological"
	}
	return "unknown"
}

// Atom is a typed constraint pattern over query variables. The set of
// implementations is closed: *IsaAtom, *RelationAtom, *AttributeAtom and
// *OntologicalAtom.
type Atom interface {
	Kind() Kind
	// Var is the atom's own identity variable.
	Var() Variable
	// TypeVar is the variable bound to the atom's type.
	TypeVar() Variable
	// TypeLabel is the resolved type label, empty when unknown.
	TypeLabel() schema.Label
	Predicates() []Predicate
	// VarNames lists every variable of the atom, sorted.
	VarNames() []Variable
	// IsRuleResolvable reports whether the atom may match a rule conclusion.
	IsRuleResolvable() bool
	Key() string
	String() string

	// WithPredicates returns a copy with ps added.
	WithPredicates(ps ...Predicate) Atom
	// WithType returns a copy typed with l. Generated type and role
	// variables are renamed to follow the new label.
	WithType(l schema.Label) Atom

	sealed()
}

// base holds what every atom variant carries.
type base struct {
	v       Variable
	typeVar Variable
	label   schema.Label
	preds   []Predicate
	key     string
}

func (b *base) Var() Variable               { return b.v }
func (b *base) TypeVar() Variable           { return b.typeVar }
func (b *base) TypeLabel() schema.Label     { return b.label }
func (b *base) Predicates() []Predicate     { return slices.Clone(b.preds) }
func (b *base) Key() string                 { return b.key }
func (*base) sealed()                       {}
func (b *base) predicatesKey() string       { return joinKeys(b.preds) }
func (b *base) predicatesSuffix() string    { return joinStrings(b.preds) }
func (b *base) addPredicates(ps []Predicate) { b.preds = sortPredicates(append(slices.Clone(b.preds), ps...)) }

func joinKeys(ps []Predicate) string {
	keys := make([]string, len(ps))
	for i, p := range ps {
		keys[i] = p.Key()
	}
	return strings.Join(keys, ";")
}

func joinStrings(ps []Predicate) string {
	if len(ps) == 0 {
		return ""
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return "; " + strings.Join(parts, "; ")
}

// TypeVarFor returns the generated type variable of an atom over v typed
// with label.
func TypeVarFor(v Variable, label schema.Label) Variable {
	if label == "" {
		return Variable("_" + strings.TrimPrefix(string(v), "_") + ":type")
	}
	return Variable("_" + string(label))
}

// typeString renders the type position of an atom.
func typeString(typeVar Variable, label schema.Label) string {
	if typeVar.IsReturned() || label == "" {
		return typeVar.String()
	}
	return string(label)
}

// Equal reports whether a and b are the same atom, variable names included.
func Equal(a, b Atom) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Key() == b.Key()
}

// LabelPredicates lists the label bindings an atom carries for its type and
// role variables.
func LabelPredicates(a Atom) []LabelPredicate {
	var out []LabelPredicate
	if a.TypeLabel() != "" {
		out = append(out, LabelPredicate{V: a.TypeVar(), Label: a.TypeLabel()})
	}
	if r, ok := a.(*RelationAtom); ok {
		for _, rp := range r.rps {
			if rp.Role.Label != "" {
				out = append(out, LabelPredicate{V: rp.Role.Var, Label: rp.Role.Label})
			}
		}
	}
	return out
}

// =============================================================================
// ISA
// =============================================================================

// IsaAtom is `$x isa <type>`.
type IsaAtom struct {
	base
}

var _ Atom = (*IsaAtom)(nil)

// NewIsa builds `$v isa label` with a generated type variable.
func NewIsa(v Variable, label schema.Label) *IsaAtom {
	return NewIsaTyped(v, TypeVarFor(v, label), label)
}

// NewIsaTyped builds an isa atom with an explicit type variable.
func NewIsaTyped(v, typeVar Variable, label schema.Label, ps ...Predicate) *IsaAtom {
	a := &IsaAtom{base: base{v: v, typeVar: typeVar, label: label}}
	a.addPredicates(ps)
	a.key = "isa(" + string(v) + "," + string(typeVar) + "," + string(label) + ")" + a.predicatesKey()
	return a
}

func (a *IsaAtom) Kind() Kind             { return KindIsa }
func (a *IsaAtom) IsRuleResolvable() bool { return true }

func (a *IsaAtom) VarNames() []Variable {
	return SortVars([]Variable{a.v, a.typeVar})
}

func (a *IsaAtom) String() string {
	return a.v.String() + " isa " + typeString(a.typeVar, a.label) + a.predicatesSuffix()
}

func (a *IsaAtom) WithPredicates(ps ...Predicate) Atom {
	return NewIsaTyped(a.v, a.typeVar, a.label, append(a.Predicates(), ps...)...)
}

func (a *IsaAtom) WithType(l schema.Label) Atom {
	tv := a.typeVar
	if tv.IsAnonymous() {
		tv = TypeVarFor(a.v, l)
	}
	return NewIsaTyped(a.v, tv, l, a.preds...)
}
