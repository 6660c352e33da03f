package atom

import (
	"reasoner/internal/schema"
)

// OntologicalOp names the schema constraint of an ontological atom.
type OntologicalOp string

const (
	OpSub     OntologicalOp = "sub"
	OpPlays   OntologicalOp = "plays"
	OpRelates OntologicalOp = "relates"
)

// OntologicalAtom constrains schema concepts rather than instances:
// `$t sub <type>`, `$t plays <role>` or `$t relates <role>`. It never
// matches a rule conclusion.
type OntologicalAtom struct {
	base
	op OntologicalOp
}

var _ Atom = (*OntologicalAtom)(nil)

// NewSubAtom builds `$v sub label`.
func NewSubAtom(v Variable, label schema.Label) *OntologicalAtom {
	return NewOntological(OpSub, v, "", label)
}

// NewOntological builds an ontological atom. An empty typeVar is generated.
func NewOntological(op OntologicalOp, v, typeVar Variable, label schema.Label, ps ...Predicate) *OntologicalAtom {
	if typeVar == "" {
		typeVar = TypeVarFor(v, label)
	}
	a := &OntologicalAtom{base: base{v: v, typeVar: typeVar, label: label}, op: op}
	a.addPredicates(ps)
	a.key = string(op) + "(" + string(v) + "," + string(typeVar) + "," + string(label) + ")" + a.predicatesKey()
	return a
}

func (a *OntologicalAtom) Kind() Kind             { return KindOntological }
func (a *OntologicalAtom) IsRuleResolvable() bool { return false }

// Op returns the schema constraint.
func (a *OntologicalAtom) Op() OntologicalOp { return a.op }

func (a *OntologicalAtom) VarNames() []Variable {
	return SortVars([]Variable{a.v, a.typeVar})
}

func (a *OntologicalAtom) String() string {
	return a.v.String() + " " + string(a.op) + " " + typeString(a.typeVar, a.label) + a.predicatesSuffix()
}

func (a *OntologicalAtom) WithPredicates(ps ...Predicate) Atom {
	return NewOntological(a.op, a.v, a.typeVar, a.label, append(a.Predicates(), ps...)...)
}

func (a *OntologicalAtom) WithType(l schema.Label) Atom {
	tv := a.typeVar
	if tv.IsAnonymous() {
		tv = TypeVarFor(a.v, l)
	}
	return NewOntological(a.op, a.v, tv, l, a.preds...)
}
