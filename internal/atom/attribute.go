package atom

import (
	"reasoner/internal/schema"
)

// AttributeAtom is `$x has <type> $a [via $r]`. Value predicates on the
// attribute variable constrain the attribute's value.
type AttributeAtom struct {
	base
	attrVar Variable
	relVar  Variable
}

var _ Atom = (*AttributeAtom)(nil)

// NewAttribute builds `$owner has label $attr`. Empty attr and via variables
// are generated.
func NewAttribute(owner Variable, label schema.Label, attr, via Variable, ps ...Predicate) *AttributeAtom {
	return NewAttributeTyped(owner, "", label, attr, via, ps...)
}

// NewAttributeTyped builds an attribute atom with an explicit type variable.
func NewAttributeTyped(owner, typeVar Variable, label schema.Label, attr, via Variable, ps ...Predicate) *AttributeAtom {
	if attr == "" {
		attr = Variable("_" + string(label) + ":" + string(owner))
	}
	if via == "" {
		via = Variable("_" + string(schema.HasRelation(label)) + "(" + string(owner) + "," + string(attr) + ")")
	}
	if typeVar == "" {
		typeVar = TypeVarFor(attr, label)
	}
	a := &AttributeAtom{
		base:    base{v: owner, typeVar: typeVar, label: label},
		attrVar: attr,
		relVar:  via,
	}
	a.addPredicates(ps)
	a.key = "has(" + string(owner) + "," + string(typeVar) + "," + string(label) + "," + string(attr) + "," + string(via) + ")" + a.predicatesKey()
	return a
}

func (a *AttributeAtom) Kind() Kind             { return KindAttribute }
func (a *AttributeAtom) IsRuleResolvable() bool { return true }

// AttributeVar is the variable bound to the attribute instance.
func (a *AttributeAtom) AttributeVar() Variable { return a.attrVar }

// RelationVar is the variable bound to the implicit ownership relation.
func (a *AttributeAtom) RelationVar() Variable { return a.relVar }

// ValuePredicates returns the value predicates on the attribute variable.
func (a *AttributeAtom) ValuePredicates() []ValuePredicate {
	return Values(a.preds, a.attrVar)
}

func (a *AttributeAtom) VarNames() []Variable {
	return SortVars([]Variable{a.v, a.typeVar, a.attrVar, a.relVar})
}

func (a *AttributeAtom) String() string {
	s := a.v.String() + " has " + typeString(a.typeVar, a.label) + " " + a.attrVar.String()
	if a.relVar.IsReturned() {
		s += " via " + a.relVar.String()
	}
	return s + a.predicatesSuffix()
}

func (a *AttributeAtom) WithPredicates(ps ...Predicate) Atom {
	return NewAttributeTyped(a.v, a.typeVar, a.label, a.attrVar, a.relVar, append(a.Predicates(), ps...)...)
}

func (a *AttributeAtom) WithType(l schema.Label) Atom {
	tv := a.typeVar
	if tv.IsAnonymous() {
		tv = TypeVarFor(a.attrVar, l)
	}
	return NewAttributeTyped(a.v, tv, l, a.attrVar, a.relVar, a.preds...)
}
