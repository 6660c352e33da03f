package semantic

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"reasoner/internal/atom"
	"reasoner/internal/logging"
	"reasoner/internal/schema"
	"reasoner/internal/typing"
	"reasoner/internal/unify"
)

// Computer derives semantic differences against a schema.
type Computer struct {
	h      *schema.Hierarchy
	typing typing.Oracle
	log    *zap.Logger
}

// Option configures a Computer.
type Option func(*Computer)

// WithTyping replaces the variable-typing oracle.
func WithTyping(o typing.Oracle) Option {
	return func(c *Computer) { c.typing = o }
}

// WithLogger replaces the semantic category logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Computer) { c.log = l }
}

// NewComputer returns a Computer over h.
func NewComputer(h *schema.Hierarchy, opts ...Option) *Computer {
	c := &Computer{h: h}
	for _, o := range opts {
		o(c)
	}
	if c.typing == nil {
		c.typing = typing.NewSchemaOracle(h)
	}
	if c.log == nil {
		c.log = logging.Get(logging.CategorySemantic)
	}
	return c
}

// view is one atom with the explicit types of its query.
type view struct {
	s     atom.Scoped
	types typing.Map
	preds []atom.Predicate
	// roleLabels maps role variables to the role label they stand for.
	roleLabels map[atom.Variable]schema.Label
}

func (c *Computer) view(ctx context.Context, s atom.Scoped) (view, error) {
	types, err := c.typing.VarTypes(ctx, s.Query, false)
	if err != nil {
		return view{}, err
	}
	v := view{s: s, types: types, preds: s.Atom.Predicates(), roleLabels: make(map[atom.Variable]schema.Label)}
	if r, ok := s.Atom.(*atom.RelationAtom); ok {
		for _, rp := range r.RolePlayers() {
			if !rp.Role.IsMeta() {
				v.roleLabels[rp.Role.Var] = rp.Role.Label
			}
		}
	}
	return v, nil
}

func (v view) typesOf(x atom.Variable) []schema.Label {
	ts := v.types.Get(x)
	a := v.s.Atom
	id := a.Var()
	if attr, ok := a.(*atom.AttributeAtom); ok {
		id = attr.AttributeVar()
	}
	if l := a.TypeLabel(); x == id && a.Kind() != atom.KindOntological && !schema.IsMeta(l) {
		ts = schema.Union(ts, []schema.Label{l})
	}
	return schema.StripMeta(ts)
}

func (v view) rolesOf(x atom.Variable) []schema.Label {
	r, ok := v.s.Atom.(*atom.RelationAtom)
	if !ok {
		return nil
	}
	return schema.StripMeta(r.RolesOf(x))
}

// Compute returns the constraints child places on the parent variables of u
// that parent does not already guarantee.
func (c *Computer) Compute(ctx context.Context, child, parent atom.Scoped, u unify.Unifier) (Difference, error) {
	child, parent = child.Normalized(), parent.Normalized()
	cv, err := c.view(ctx, child)
	if err != nil {
		return Difference{}, err
	}
	pv, err := c.view(ctx, parent)
	if err != nil {
		return Difference{}, err
	}

	defs := make(map[atom.Variable]*VariableDefinition)
	get := func(p atom.Variable) *VariableDefinition {
		if d, ok := defs[p]; ok {
			return d
		}
		d := &VariableDefinition{Var: p}
		defs[p] = d
		return d
	}

	for _, x := range u.ChildVars() {
		for _, p := range u.Get(x) {
			d := get(p)
			if err := c.types(ctx, d, cv.typesOf(x), pv.typesOf(p)); err != nil {
				return Difference{}, err
			}
			if err := c.role(ctx, d, cv.roleLabels[x], pv.roleLabels[p]); err != nil {
				return Difference{}, err
			}
			if err := c.played(ctx, d, cv.rolesOf(x), pv.rolesOf(p)); err != nil {
				return Difference{}, err
			}
			addIDs(d, atom.IDs(cv.preds, x), atom.IDs(pv.preds, p))
			addValues(d, p, atom.Values(cv.preds, x), atom.Values(pv.preds, p))
		}
	}

	var out Difference
	if r, ok := parent.Atom.(*atom.RelationAtom); ok {
		out.RelationVar = r.Var()
	}
	for _, p := range u.ParentVars() {
		if d, ok := defs[p]; ok && !d.IsEmpty() {
			out.Definitions = append(out.Definitions, *d)
		}
	}
	c.log.Debug("semantic difference",
		zap.Stringer("child", child),
		zap.Stringer("parent", parent),
		zap.Stringer("difference", out))
	return out, nil
}

// covered reports whether every label of below lies under some label of above.
func (c *Computer) covered(ctx context.Context, below, above []schema.Label) (bool, error) {
	for _, b := range below {
		found := false
		for _, a := range above {
			ok, err := c.h.IsSub(ctx, b, a)
			if err != nil {
				return false, err
			}
			if ok {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

func (c *Computer) subsOf(ctx context.Context, ls []schema.Label) ([]schema.Label, error) {
	var out []schema.Label
	for _, l := range ls {
		subs, err := c.h.Subs(ctx, l)
		if err != nil {
			return nil, err
		}
		out = schema.Union(out, subs)
	}
	return out, nil
}

// types restricts the variable to the child's types when the parent's types
// admit instances outside them.
func (c *Computer) types(ctx context.Context, d *VariableDefinition, child, parent []schema.Label) error {
	if len(child) == 0 {
		return nil
	}
	if len(parent) > 0 {
		ok, err := c.covered(ctx, parent, child)
		if err != nil || ok {
			return err
		}
	}
	subs, err := c.subsOf(ctx, child)
	if err != nil {
		return err
	}
	if d.Type == "" {
		d.Type = child[0]
	}
	if len(d.Types) > 0 {
		subs = schema.Intersect(d.Types, subs)
	}
	d.Types = subs
	return nil
}

// role restricts a role variable when the child names a role the parent
// leaves open or names more generally.
func (c *Computer) role(ctx context.Context, d *VariableDefinition, child, parent schema.Label) error {
	if child == "" {
		return nil
	}
	if parent != "" {
		ok, err := c.h.IsSub(ctx, parent, child)
		if err != nil || ok {
			return err
		}
	}
	subs, err := c.h.Subs(ctx, child)
	if err != nil {
		return err
	}
	d.Role, d.RoleSubs = child, subs
	return nil
}

// played requires the child roles of a player that the parent does not
// already require at least as specifically.
func (c *Computer) played(ctx context.Context, d *VariableDefinition, child, parent []schema.Label) error {
	for _, r := range child {
		supplied := false
		for _, pr := range parent {
			ok, err := c.h.IsSub(ctx, pr, r)
			if err != nil {
				return err
			}
			if ok {
				supplied = true
				break
			}
		}
		if supplied || slices.ContainsFunc(d.Roles, func(p PlayedRole) bool { return p.Role == r }) {
			continue
		}
		subs, err := c.h.Subs(ctx, r)
		if err != nil {
			return err
		}
		d.Roles = append(d.Roles, PlayedRole{Role: r, Subs: subs})
	}
	return nil
}

// addIDs keeps the child's ids when the parent does not fix all of them.
func addIDs(d *VariableDefinition, child, parent []string) {
	for _, id := range child {
		if !slices.Contains(parent, id) {
			ids := append(slices.Clone(d.IDs), child...)
			slices.Sort(ids)
			d.IDs = slices.Compact(ids)
			return
		}
	}
}

// addValues keeps the child's value predicates the parent does not imply,
// renamed onto the parent variable.
func addValues(d *VariableDefinition, p atom.Variable, child, parent []atom.ValuePredicate) {
	for _, cv := range child {
		if slices.ContainsFunc(parent, cv.Subsumes) {
			continue
		}
		cv.V = p
		if !slices.ContainsFunc(d.Values, func(v atom.ValuePredicate) bool { return v.Key() == cv.Key() }) {
			d.Values = append(d.Values, cv)
		}
	}
}
