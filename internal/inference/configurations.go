package inference

import (
	"cmp"
	"context"
	"slices"

	"go.uber.org/zap"

	"reasoner/internal/answer"
	"reasoner/internal/atom"
	"reasoner/internal/schema"
	"reasoner/internal/typing"
)

// configurations maps candidate relation types to the roles role players
// could take in them. order keeps keys in schema declaration order.
type configurations struct {
	order []schema.Label
	roles map[schema.Label][]schema.Label
}

func newConfigurations() *configurations {
	return &configurations{roles: make(map[schema.Label][]schema.Label)}
}

func (c *configurations) add(rel schema.Label, roles ...schema.Label) {
	if _, ok := c.roles[rel]; !ok {
		c.order = append(c.order, rel)
	}
	c.roles[rel] = schema.Union(c.roles[rel], roles)
}

func (c *configurations) labels() []schema.Label { return slices.Clone(c.order) }

func (c *configurations) empty() bool { return c == nil || len(c.order) == 0 }

// combine intersects the keys of c and o and unites their roles.
func (c *configurations) combine(o *configurations) *configurations {
	out := newConfigurations()
	for _, rel := range c.order {
		if roles, ok := o.roles[rel]; ok {
			out.add(rel, schema.Union(c.roles[rel], roles)...)
		}
	}
	return out
}

// relationIndex lists every relation type with the roles it relates,
// inherited roles included.
func (e *Engine) relationIndex(ctx context.Context) (*configurations, error) {
	rels, err := e.h.Oracle().Labels(ctx, schema.KindRelationType)
	if err != nil {
		return nil, err
	}
	idx := newConfigurations()
	for _, rel := range rels {
		roles, err := e.h.Relates(ctx, rel)
		if err != nil {
			return nil, err
		}
		idx.add(rel, roles...)
	}
	return idx, nil
}

// configurations computes the relation types compatible with the explicit
// roles and the typed role players of r.
func (e *Engine) configurations(ctx context.Context, s atom.Scoped, r *atom.RelationAtom, sub answer.Answer) (*configurations, error) {
	explicit := r.ExplicitRoles()
	for _, role := range explicit {
		if _, err := e.h.Role(ctx, role); err != nil {
			return nil, err
		}
	}
	types, err := e.VarTypes(ctx, s.Query, sub)
	if err != nil {
		return nil, err
	}
	var typed []atom.Variable
	for _, v := range r.Players() {
		if len(types.Get(v)) > 0 {
			typed = append(typed, v)
		}
	}

	idx, err := e.relationIndex(ctx)
	if err != nil {
		return nil, err
	}
	if len(explicit) == 0 && len(typed) == 0 {
		return idx, nil
	}

	var byRoles, byTypes *configurations
	if len(explicit) > 0 {
		if byRoles, err = e.roleConfigurations(ctx, idx, explicit); err != nil {
			return nil, err
		}
	}
	if len(typed) > 0 {
		if byTypes, err = e.typeConfigurations(ctx, idx, types, typed); err != nil {
			return nil, err
		}
	}

	out := newConfigurations()
	switch {
	case !byRoles.empty() && !byTypes.empty():
		out = byRoles.combine(byTypes)
	case !byRoles.empty():
		out = byRoles
	case !byTypes.empty():
		out = byTypes
	}
	e.log.Debug("relation configurations",
		zap.Stringer("atom", r),
		zap.Int("candidates", len(out.order)))
	return out, nil
}

// roleConfigurations keeps relation types relating every explicit role or a
// subrole of it.
func (e *Engine) roleConfigurations(ctx context.Context, idx *configurations, explicit []schema.Label) (*configurations, error) {
	var out *configurations
	for _, role := range explicit {
		forRole := newConfigurations()
		for _, rel := range idx.order {
			for _, r := range idx.roles[rel] {
				ok, err := e.h.IsSub(ctx, r, role)
				if err != nil {
					return nil, err
				}
				if ok {
					forRole.add(rel, r)
				}
			}
		}
		if out == nil {
			out = forRole
		} else {
			out = out.combine(forRole)
		}
	}
	return out, nil
}

// typeConfigurations keeps relation types in which every typed player can
// play some role.
func (e *Engine) typeConfigurations(ctx context.Context, idx *configurations, types typing.Map, typed []atom.Variable) (*configurations, error) {
	var out *configurations
	for _, v := range typed {
		var playable []schema.Label
		for _, t := range types.Get(v) {
			ps, err := e.h.Plays(ctx, t)
			if err != nil {
				return nil, err
			}
			playable = append(playable, ps...)
		}
		forVar := newConfigurations()
		for _, rel := range idx.order {
			if roles := schema.Intersect(idx.roles[rel], playable); len(roles) > 0 {
				forVar.add(rel, roles...)
			}
		}
		if out == nil {
			out = forVar
		} else {
			out = out.combine(forVar)
		}
	}
	return out, nil
}

type ranked struct {
	label     schema.Label
	explicit  int
	arity     bool
	shards    int64
	neighbour int
	implicit  bool
}

// rank orders candidate relation types by explicit role overlap, arity match,
// instance count, compatible untyped neighbours and explicitness, then drops
// candidates that are supertypes of one already retained.
func (e *Engine) rank(ctx context.Context, s atom.Scoped, r *atom.RelationAtom, cfg *configurations) ([]schema.Label, error) {
	explicit := r.ExplicitRoles()
	untyped, err := e.untypedNeighbourTypes(ctx, s, r)
	if err != nil {
		return nil, err
	}

	rs := make([]ranked, 0, len(cfg.order))
	for _, rel := range cfg.order {
		c, err := e.h.Concept(ctx, rel)
		if err != nil {
			return nil, err
		}
		relates, err := e.h.Relates(ctx, rel)
		if err != nil {
			return nil, err
		}
		shards, err := e.h.ShardCount(ctx, rel)
		if err != nil {
			return nil, err
		}
		neighbours, err := e.compatibleNeighbours(ctx, relates, untyped)
		if err != nil {
			return nil, err
		}
		rs = append(rs, ranked{
			label:     rel,
			explicit:  len(schema.Intersect(relates, explicit)),
			arity:     len(relates) == len(r.RolePlayers()),
			shards:    shards,
			neighbour: neighbours,
			implicit:  c.Implicit,
		})
	}
	slices.SortStableFunc(rs, func(a, b ranked) int {
		if c := cmp.Compare(b.explicit, a.explicit); c != 0 {
			return c
		}
		if a.arity != b.arity {
			if a.arity {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.shards, a.shards); c != 0 {
			return c
		}
		if c := cmp.Compare(b.neighbour, a.neighbour); c != 0 {
			return c
		}
		if a.implicit != b.implicit {
			if !a.implicit {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.label, b.label)
	})

	var out []schema.Label
	for _, c := range rs {
		superOfRetained := false
		for _, kept := range out {
			if kept == c.label {
				continue
			}
			ok, err := e.h.IsSub(ctx, kept, c.label)
			if err != nil {
				return nil, err
			}
			if ok {
				superOfRetained = true
				break
			}
		}
		if !superOfRetained {
			out = append(out, c.label)
		}
	}
	return out, nil
}

// untypedNeighbourTypes returns, for each untyped player of r that plays
// explicit roles in neighbouring relation atoms, the types able to play all
// of those roles.
func (e *Engine) untypedNeighbourTypes(ctx context.Context, s atom.Scoped, r *atom.RelationAtom) ([][]schema.Label, error) {
	if s.Query == nil {
		return nil, nil
	}
	types, err := e.typing.VarTypes(ctx, s.Query, false)
	if err != nil {
		return nil, err
	}
	var out [][]schema.Label
	for _, v := range r.Players() {
		if len(types.Get(v)) > 0 {
			continue
		}
		var roles []schema.Label
		for _, n := range s.Query.Neighbours(r) {
			nr, ok := n.(*atom.RelationAtom)
			if !ok || schema.IsMeta(nr.TypeLabel()) {
				continue
			}
			roles = append(roles, schema.StripMeta(nr.RolesOf(v))...)
		}
		if len(roles) == 0 {
			continue
		}
		var players []schema.Label
		for i, role := range schema.Sorted(roles) {
			ps, err := e.h.Players(ctx, role)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				players = ps
			} else {
				players = schema.Intersect(players, ps)
			}
		}
		out = append(out, players)
	}
	return out, nil
}

// compatibleNeighbours counts the untyped players whose neighbour-derived
// types can play one of relates.
func (e *Engine) compatibleNeighbours(ctx context.Context, relates []schema.Label, untyped [][]schema.Label) (int, error) {
	n := 0
	for _, types := range untyped {
		for _, role := range relates {
			ps, err := e.h.Players(ctx, role)
			if err != nil {
				return 0, err
			}
			if len(schema.Intersect(ps, types)) > 0 {
				n++
				break
			}
		}
	}
	return n, nil
}
