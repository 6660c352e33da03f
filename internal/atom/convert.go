package atom

import (
	"strings"

	"reasoner/internal/schema"
)

// predicatesOn keeps the predicates of ps that mention one of vars.
func predicatesOn(ps []Predicate, vars ...Variable) []Predicate {
	var out []Predicate
	for _, p := range ps {
		if mentions(p, vars) {
			out = append(out, p)
		}
	}
	return out
}

// ToIsa converts a to an isa atom over its identity variable. Attribute atoms
// convert to the isa of their attribute variable.
func ToIsa(a Atom) (*IsaAtom, error) {
	switch x := a.(type) {
	case *IsaAtom:
		return x, nil
	case *RelationAtom:
		return NewIsaTyped(x.v, x.typeVar, x.label, predicatesOn(x.preds, x.v, x.typeVar)...), nil
	case *AttributeAtom:
		return NewIsaTyped(x.attrVar, x.typeVar, x.label, predicatesOn(x.preds, x.attrVar, x.typeVar)...), nil
	default:
		return nil, &ConversionError{From: a.Kind(), To: KindIsa, Atom: a.String(), Reason: "schema constraints have no instances"}
	}
}

// ToRelation converts a to a relation atom. An isa atom becomes a relation
// without role players; an attribute atom becomes its implicit ownership
// relation.
func ToRelation(a Atom) (*RelationAtom, error) {
	switch x := a.(type) {
	case *RelationAtom:
		return x, nil
	case *IsaAtom:
		return NewRelationTyped(x.v, x.typeVar, x.label, nil, x.preds...), nil
	case *AttributeAtom:
		rps := []RolePlayer{
			Plays(schema.HasOwner(x.label), x.v),
			Plays(schema.HasValue(x.label), x.attrVar),
		}
		return NewRelationTyped(x.relVar, "", schema.HasRelation(x.label), rps, x.preds...), nil
	default:
		return nil, &ConversionError{From: a.Kind(), To: KindRelation, Atom: a.String(), Reason: "schema constraints have no instances"}
	}
}

// ToAttribute converts a to an attribute atom. Only implicit ownership
// relations with exactly an owner and a value role player convert.
func ToAttribute(a Atom) (*AttributeAtom, error) {
	fail := func(reason string) error {
		return &ConversionError{From: a.Kind(), To: KindAttribute, Atom: a.String(), Reason: reason}
	}
	switch x := a.(type) {
	case *AttributeAtom:
		return x, nil
	case *RelationAtom:
		attr, ok := strings.CutPrefix(string(x.label), "@has-")
		if !ok {
			return nil, fail("relation is not an implicit ownership relation")
		}
		if len(x.rps) != 2 {
			return nil, fail("ownership relation needs exactly an owner and a value")
		}
		var owner, value Variable
		for _, rp := range x.rps {
			switch rp.Role.Label {
			case schema.HasOwner(schema.Label(attr)):
				owner = rp.Player
			case schema.HasValue(schema.Label(attr)):
				value = rp.Player
			}
		}
		if owner == "" || value == "" {
			return nil, fail("ownership relation needs exactly an owner and a value")
		}
		return NewAttributeTyped(owner, "", schema.Label(attr), value, x.v, x.preds...), nil
	case *IsaAtom:
		return nil, fail("isa atom has no owner")
	default:
		return nil, fail("schema constraints have no instances")
	}
}
