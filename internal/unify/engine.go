package unify

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"reasoner/internal/atom"
	"reasoner/internal/inference"
	"reasoner/internal/logging"
	"reasoner/internal/schema"
	"reasoner/internal/typing"
)

// Engine unifies atoms against a schema.
type Engine struct {
	h      *schema.Hierarchy
	inf    *inference.Engine
	typing typing.Oracle
	log    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithInference replaces the engine used to infer atom types.
func WithInference(inf *inference.Engine) Option {
	return func(e *Engine) { e.inf = inf }
}

// WithTyping replaces the variable-typing oracle.
func WithTyping(o typing.Oracle) Option {
	return func(e *Engine) { e.typing = o }
}

// WithLogger replaces the unify category logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns an Engine over h.
func New(h *schema.Hierarchy, opts ...Option) *Engine {
	e := &Engine{h: h}
	for _, o := range opts {
		o(e)
	}
	if e.typing == nil {
		e.typing = typing.NewSchemaOracle(h)
	}
	if e.inf == nil {
		e.inf = inference.New(h, inference.WithTyping(e.typing))
	}
	if e.log == nil {
		e.log = logging.Get(logging.CategoryUnify)
	}
	return e
}

// Hierarchy returns the schema hierarchy the engine consults.
func (e *Engine) Hierarchy() *schema.Hierarchy { return e.h }

// Inference returns the engine used for type inference.
func (e *Engine) Inference() *inference.Engine { return e.inf }

// side is one atom of a unification together with the types of its query.
type side struct {
	s     atom.Scoped
	types typing.Map
	preds []atom.Predicate
}

// identity is the variable an atom's own type label applies to.
func identity(a atom.Atom) atom.Variable {
	if attr, ok := a.(*atom.AttributeAtom); ok {
		return attr.AttributeVar()
	}
	return a.Var()
}

func (sd side) typesOf(v atom.Variable) []schema.Label {
	ts := sd.types.Get(v)
	if l := sd.s.Atom.TypeLabel(); v == identity(sd.s.Atom) && !schema.IsMeta(l) {
		ts = schema.Union(ts, []schema.Label{l})
	}
	return schema.StripMeta(ts)
}

func (e *Engine) side(ctx context.Context, s atom.Scoped, t Type) (side, error) {
	types, err := e.typing.VarTypes(ctx, s.Query, t == Rule)
	if err != nil {
		return side{}, err
	}
	return side{s: s, types: types, preds: s.Atom.Predicates()}, nil
}

// Unify computes the unifiers under which child can be answered from parent.
// Atoms of different kinds never unify. Errors report schema references
// that do not resolve and role patterns that cannot be matched; a
// unification that merely fails yields NonExistent.
func (e *Engine) Unify(ctx context.Context, child, parent atom.Scoped, t Type) (MultiUnifier, error) {
	timer := logging.StartTimer(logging.CategoryUnify, "Unify")
	defer timer.Stop()

	child, parent = child.Normalized(), parent.Normalized()
	ca, pa := child.Atom, parent.Atom
	if ca.Kind() != pa.Kind() {
		return NonExistent(), nil
	}
	if ca.Kind() == atom.KindOntological && !t.AllowsOntological() {
		return NonExistent(), nil
	}
	if t.fastPath() && atom.Equal(ca, pa) {
		return Trivial(ca.VarNames()...), nil
	}
	if eq := t.Equivalence(); eq != nil && !eq.Equivalent(child, parent) {
		return NonExistent(), nil
	}

	if t.InferTypes() {
		var err error
		if child, err = e.infer(ctx, child); err != nil {
			return MultiUnifier{}, err
		}
		if parent, err = e.infer(ctx, parent); err != nil {
			return MultiUnifier{}, err
		}
	}
	c, err := e.side(ctx, child, t)
	if err != nil {
		return MultiUnifier{}, err
	}
	p, err := e.side(ctx, parent, t)
	if err != nil {
		return MultiUnifier{}, err
	}

	var mu MultiUnifier
	switch ca.Kind() {
	case atom.KindRelation:
		mu, err = e.unifyRelation(ctx, t, c, p)
	case atom.KindAttribute:
		mu, err = e.unifyAttribute(ctx, t, c, p)
	case atom.KindOntological:
		mu, err = e.unifyOntological(ctx, t, c, p)
	default:
		mu, err = e.single(e.base(ctx, t, c, p))
	}
	if err != nil {
		return MultiUnifier{}, err
	}
	if _, ok := mu.First(); !ok {
		mu = NonExistent()
	}
	e.log.Debug("unified",
		zap.Stringer("type", t),
		zap.Stringer("child", child),
		zap.Stringer("parent", parent),
		zap.Bool("exists", !mu.IsNonExistent()))
	return mu, nil
}

func (e *Engine) infer(ctx context.Context, s atom.Scoped) (atom.Scoped, error) {
	a, err := e.inf.InferTypes(ctx, s, nil)
	if err != nil {
		return atom.Scoped{}, err
	}
	return atom.Scoped{Atom: a, Query: s.Query}, nil
}

// single wraps the result of a routine producing at most one unifier.
func (e *Engine) single(u Unifier, ok bool, err error) (MultiUnifier, error) {
	if err != nil || !ok {
		return NonExistent(), err
	}
	return Lazy(func(yield func(Unifier) bool) { yield(u) }), nil
}

// varCompatible checks the types, ids and values of two corresponding
// variables.
func (e *Engine) varCompatible(ctx context.Context, t Type, c, p side, cv, pv atom.Variable) (bool, error) {
	ok, err := t.typeCompatible(ctx, e.h, c.typesOf(cv), p.typesOf(pv))
	if err != nil || !ok {
		return false, err
	}
	if !t.idCompatible(atom.IDs(c.preds, cv), atom.IDs(p.preds, pv)) {
		return false, nil
	}
	return t.valueCompatible(atom.Values(c.preds, cv), atom.Values(p.preds, pv)), nil
}

// base maps the identity and type variables shared by every atom kind and
// records the type requirements implied by the child's label.
func (e *Engine) base(ctx context.Context, t Type, c, p side) (Unifier, bool, error) {
	ca, pa := c.s.Atom, p.s.Atom
	cv, pv := identity(ca), identity(pa)
	if ca.Kind() == atom.KindOntological {
		// The identity of a schema atom is a type; its label is not a
		// statement about instances.
		cv, pv = ca.Var(), pa.Var()
	}
	ok, err := e.varCompatible(ctx, t, c, p, cv, pv)
	if err != nil || !ok {
		return Unifier{}, false, err
	}

	m := map[atom.Variable][]atom.Variable{cv: {pv}}
	if ca.TypeVar() != "" && pa.TypeVar() != "" {
		m[ca.TypeVar()] = []atom.Variable{pa.TypeVar()}
	}
	var req Requirements
	if l := ca.TypeLabel(); !schema.IsMeta(l) {
		subs, err := e.h.Subs(ctx, l)
		if err != nil {
			return Unifier{}, false, err
		}
		if pa.TypeVar() != "" {
			req.Types = restrict(req.Types, pa.TypeVar(), subs)
		}
		if ca.Kind() == atom.KindOntological {
			req.Types = restrict(req.Types, pv, subs)
		} else {
			req.Isa = restrict(req.Isa, pv, subs)
		}
	}
	return NewUnifier(m, req), true, nil
}

func (e *Engine) unifyAttribute(ctx context.Context, t Type, c, p side) (MultiUnifier, error) {
	ca, pa := c.s.Atom.(*atom.AttributeAtom), p.s.Atom.(*atom.AttributeAtom)
	u, ok, err := e.base(ctx, t, c, p)
	if err != nil || !ok {
		return NonExistent(), err
	}
	ok, err = e.varCompatible(ctx, t, c, p, ca.Var(), pa.Var())
	if err != nil || !ok {
		return NonExistent(), err
	}
	u = u.Merge(NewUnifier(map[atom.Variable][]atom.Variable{
		ca.Var():         {pa.Var()},
		ca.RelationVar(): {pa.RelationVar()},
	}, Requirements{}))
	return e.single(u, true, nil)
}

func (e *Engine) unifyOntological(ctx context.Context, t Type, c, p side) (MultiUnifier, error) {
	co, po := c.s.Atom.(*atom.OntologicalAtom), p.s.Atom.(*atom.OntologicalAtom)
	if co.Op() != po.Op() {
		return NonExistent(), nil
	}
	return e.single(e.base(ctx, t, c, p))
}

func (e *Engine) unifyRelation(ctx context.Context, t Type, c, p side) (MultiUnifier, error) {
	cr, pr := c.s.Atom.(*atom.RelationAtom), p.s.Atom.(*atom.RelationAtom)
	crps, prps := cr.RolePlayers(), pr.RolePlayers()
	if len(prps) > len(crps) {
		return NonExistent(), nil
	}
	base, ok, err := e.base(ctx, t, c, p)
	if err != nil || !ok {
		return NonExistent(), err
	}

	// Role requirements depend only on the child role player.
	roleSubs := make([][]schema.Label, len(crps))
	for i, crp := range crps {
		if crp.Role.IsMeta() {
			continue
		}
		if _, err := e.h.Role(ctx, crp.Role.Label); err != nil {
			return NonExistent(), err
		}
		if roleSubs[i], err = e.h.Subs(ctx, crp.Role.Label); err != nil {
			return NonExistent(), err
		}
	}

	candidates := make([][]int, len(prps))
	for j, prp := range prps {
		if !prp.Role.IsMeta() {
			if _, err := e.h.Role(ctx, prp.Role.Label); err != nil {
				return NonExistent(), err
			}
		} else if t == Rule && !prp.Role.Var.IsReturned() {
			return NonExistent(), &atom.RolePatternError{
				Atom:   pr.String(),
				Player: prp.Player,
				Reason: "rule conclusion role player has neither a role label nor a role variable",
			}
		}
		for i, crp := range crps {
			ok, err := e.rolePlayerCompatible(ctx, t, c, p, crp, prp)
			if err != nil {
				return NonExistent(), err
			}
			if ok {
				candidates[j] = append(candidates[j], i)
			}
		}
		if len(candidates[j]) == 0 {
			return NonExistent(), nil
		}
	}

	return Lazy(func(yield func(Unifier) bool) {
		assignments(candidates, twins(crps), twins(prps), func(pick []int) bool {
			m := make(map[atom.Variable][]atom.Variable)
			var req Requirements
			for j, i := range pick {
				crp, prp := crps[i], prps[j]
				m[crp.Player] = append(m[crp.Player], prp.Player)
				m[crp.Role.Var] = append(m[crp.Role.Var], prp.Role.Var)
				if roleSubs[i] != nil {
					req.Roles = restrict(req.Roles, prp.Role.Var, roleSubs[i])
				}
			}
			u := base.Merge(NewUnifier(m, req))
			if !t.AllowsNonInjective() && u.IsNonInjective() {
				return true
			}
			return yield(u)
		})
	}), nil
}

func (e *Engine) rolePlayerCompatible(ctx context.Context, t Type, c, p side, crp, prp atom.RolePlayer) (bool, error) {
	ok, err := t.roleCompatible(ctx, e.h, crp.Role.Label, prp.Role.Label)
	if err != nil || !ok {
		return false, err
	}
	if !t.roleVarCompatible(crp.Role.Var, prp.Role.Var) {
		return false, nil
	}
	ok, err = e.varCompatible(ctx, t, c, p, crp.Player, prp.Player)
	if err != nil || !ok {
		return false, err
	}
	ok, err = t.attributesCompatible(ctx, e.h,
		attachedTo(c.s.Query, crp.Player), attachedTo(p.s.Query, prp.Player))
	if err != nil || !ok {
		return false, err
	}
	if t == Rule && !prp.Role.IsMeta() {
		return e.canPlay(ctx, c.typesOf(crp.Player), prp.Role.Label)
	}
	return true, nil
}

// canPlay reports whether some type in types plays a role comparable with
// role. Untyped variables can play anything.
func (e *Engine) canPlay(ctx context.Context, types []schema.Label, role schema.Label) (bool, error) {
	if len(types) == 0 {
		return true, nil
	}
	for _, tl := range types {
		plays, err := e.h.Plays(ctx, tl)
		if err != nil {
			return false, err
		}
		for _, r := range plays {
			ok, err := e.h.Comparable(ctx, r, role)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// twins returns, for every role player, the index of the previous identical
// role player, or -1.
func twins(rps []atom.RolePlayer) []int {
	out := make([]int, len(rps))
	for i, rp := range rps {
		out[i] = slices.Index(rps[:i], rp)
	}
	return out
}

// assignments enumerates the ways of giving every parent role player a
// distinct child role player from its candidates. pick[j] is the child index
// chosen for parent j. It stops when visit returns false.
//
// Identical role players are interchangeable, so an assignment is visited
// only in its canonical form: identical children are used in index order and
// identical parents take increasing child indices. Every visited assignment
// then yields a distinct unifier and nothing has to be remembered between
// visits.
func assignments(candidates [][]int, childTwins, parentTwins []int, visit func(pick []int) bool) {
	pick := make([]int, len(candidates))
	used := make([]bool, len(childTwins))
	var walk func(j int) bool
	walk = func(j int) bool {
		if j == len(candidates) {
			return visit(pick)
		}
		for _, i := range candidates[j] {
			if used[i] {
				continue
			}
			if prev := childTwins[i]; prev >= 0 && !used[prev] {
				continue
			}
			if prev := parentTwins[j]; prev >= 0 && i < pick[prev] {
				continue
			}
			used[i], pick[j] = true, i
			cont := walk(j + 1)
			used[i] = false
			if !cont {
				return false
			}
		}
		return true
	}
	walk(0)
}
