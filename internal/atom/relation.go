package atom

import (
	"slices"
	"strings"

	"reasoner/internal/schema"
)

// RoleRef is the role position of a role player: a role variable and, when
// known, its label.
type RoleRef struct {
	Var   Variable
	Label schema.Label
}

// IsMeta reports whether the role carries no constraint.
func (r RoleRef) IsMeta() bool { return schema.IsMeta(r.Label) }

// RolePlayer pairs a role with the variable playing it.
type RolePlayer struct {
	Role   RoleRef
	Player Variable
}

// Plays builds a role player with a labelled role and a generated role variable.
func Plays(role schema.Label, player Variable) RolePlayer {
	return RolePlayer{Role: RoleRef{Label: role}, Player: player}
}

// PlaysVar builds a role player whose role is the variable role.
func PlaysVar(role Variable, player Variable) RolePlayer {
	return RolePlayer{Role: RoleRef{Var: role}, Player: player}
}

// Player builds a role player without a role statement.
func Player(player Variable) RolePlayer {
	return RolePlayer{Player: player}
}

func (rp RolePlayer) String() string {
	switch {
	case rp.Role.Var.IsReturned():
		return rp.Role.Var.String() + ": " + rp.Player.String()
	case rp.Role.Label != "" && rp.Role.Label != schema.Role:
		return string(rp.Role.Label) + ": " + rp.Player.String()
	default:
		return rp.Player.String()
	}
}

func (rp RolePlayer) key() string {
	return string(rp.Role.Label) + "/" + string(rp.Role.Var) + "/" + string(rp.Player)
}

func compareRolePlayers(a, b RolePlayer) int {
	if c := strings.Compare(string(a.Role.Label), string(b.Role.Label)); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.Role.Var), string(b.Role.Var)); c != 0 {
		return c
	}
	return strings.Compare(string(a.Player), string(b.Player))
}

// RoleVarFor returns the generated role variable for a role player of a
// relation typed relLabel. Each distinct role player gets its own variable;
// only identical role players share one.
func RoleVarFor(relLabel schema.Label, rp RolePlayer) Variable {
	rel := relLabel
	if rel == "" {
		rel = schema.Relation
	}
	role := rp.Role.Label
	if role == "" {
		role = schema.Role
	}
	return Variable("_" + string(rel) + ":" + string(role) + ":" + string(rp.Player))
}

// RelationAtom is `(role: $a, ...) isa <type>`. Role players are kept in
// canonical order; repeated players and repeated roles are allowed.
type RelationAtom struct {
	base
	rps []RolePlayer
}

var _ Atom = (*RelationAtom)(nil)

// NewRelation builds a relation atom with a generated type variable. An empty
// v is replaced by a generated anonymous variable.
func NewRelation(v Variable, label schema.Label, rps ...RolePlayer) *RelationAtom {
	return NewRelationTyped(v, "", label, rps)
}

// NewRelationTyped builds a relation atom. An empty typeVar is generated from
// the label.
func NewRelationTyped(v, typeVar Variable, label schema.Label, rps []RolePlayer, ps ...Predicate) *RelationAtom {
	canon := make([]RolePlayer, len(rps))
	for i, rp := range rps {
		if rp.Role.Var == "" {
			rp.Role.Var = RoleVarFor(label, rp)
		}
		canon[i] = rp
	}
	slices.SortFunc(canon, compareRolePlayers)

	if v == "" {
		players := make([]string, len(canon))
		for i, rp := range canon {
			players[i] = rp.key()
		}
		rel := label
		if rel == "" {
			rel = schema.Relation
		}
		v = Variable("_" + string(rel) + "(" + strings.Join(players, ",") + ")")
	}
	if typeVar == "" {
		typeVar = TypeVarFor(v, label)
	}

	a := &RelationAtom{base: base{v: v, typeVar: typeVar, label: label}, rps: canon}
	a.addPredicates(ps)

	parts := make([]string, len(canon))
	for i, rp := range canon {
		parts[i] = rp.key()
	}
	a.key = "rel(" + string(v) + "," + string(typeVar) + "," + string(label) + ",[" + strings.Join(parts, ",") + "])" + a.predicatesKey()
	return a
}

func (a *RelationAtom) Kind() Kind             { return KindRelation }
func (a *RelationAtom) IsRuleResolvable() bool { return true }

// RolePlayers returns the canonically ordered role players.
func (a *RelationAtom) RolePlayers() []RolePlayer { return slices.Clone(a.rps) }

// Roles returns the labels of the role players, in role player order.
func (a *RelationAtom) Roles() []schema.Label {
	out := make([]schema.Label, len(a.rps))
	for i, rp := range a.rps {
		out[i] = rp.Role.Label
	}
	return out
}

// ExplicitRoles returns the sorted non-meta role labels.
func (a *RelationAtom) ExplicitRoles() []schema.Label {
	return schema.StripMeta(a.Roles())
}

// Players returns the sorted distinct player variables.
func (a *RelationAtom) Players() []Variable {
	vs := make([]Variable, len(a.rps))
	for i, rp := range a.rps {
		vs[i] = rp.Player
	}
	return SortVars(vs)
}

// RolesOf returns the role labels v plays in the atom, sorted.
func (a *RelationAtom) RolesOf(v Variable) []schema.Label {
	var out []schema.Label
	for _, rp := range a.rps {
		if rp.Player == v {
			out = append(out, rp.Role.Label)
		}
	}
	return schema.Sorted(out)
}

func (a *RelationAtom) VarNames() []Variable {
	vs := []Variable{a.v, a.typeVar}
	for _, rp := range a.rps {
		vs = append(vs, rp.Role.Var, rp.Player)
	}
	return SortVars(vs)
}

func (a *RelationAtom) String() string {
	var sb strings.Builder
	if a.v.IsReturned() {
		sb.WriteString(a.v.String())
		sb.WriteString(" = ")
	}
	if a.label != "" || a.typeVar.IsReturned() {
		sb.WriteString(typeString(a.typeVar, a.label))
	} else {
		sb.WriteString(string(schema.Relation))
	}
	sb.WriteString("(")
	for i, rp := range a.rps {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(rp.String())
	}
	sb.WriteString(")")
	sb.WriteString(a.predicatesSuffix())
	return sb.String()
}

func (a *RelationAtom) WithPredicates(ps ...Predicate) Atom {
	return NewRelationTyped(a.v, a.typeVar, a.label, a.rps, append(a.Predicates(), ps...)...)
}

func (a *RelationAtom) WithType(l schema.Label) Atom {
	return a.withTypeAndRoles(l, nil)
}

// WithRoles returns a copy whose role players, taken in RolePlayers order,
// are labelled with roles. Empty entries keep the existing label.
func (a *RelationAtom) WithRoles(roles []schema.Label) *RelationAtom {
	return a.withTypeAndRoles(a.label, roles)
}

// WithTypeAndRoles combines WithType and WithRoles.
func (a *RelationAtom) WithTypeAndRoles(l schema.Label, roles []schema.Label) *RelationAtom {
	return a.withTypeAndRoles(l, roles)
}

func (a *RelationAtom) withTypeAndRoles(l schema.Label, roles []schema.Label) *RelationAtom {
	tv := a.typeVar
	if tv.IsAnonymous() {
		tv = TypeVarFor(a.v, l)
	}
	rps := make([]RolePlayer, len(a.rps))
	for i, rp := range a.rps {
		if i < len(roles) && roles[i] != "" {
			rp.Role.Label = roles[i]
		}
		if rp.Role.Var.IsAnonymous() {
			rp.Role.Var = ""
		}
		rps[i] = rp
	}
	return NewRelationTyped(a.v, tv, l, rps, a.preds...)
}
