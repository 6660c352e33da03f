package schema

import (
	"context"
	"slices"
)

// Hierarchy answers type and role hierarchy questions over an Oracle.
type Hierarchy struct {
	oracle Oracle
}

// NewHierarchy wraps o.
func NewHierarchy(o Oracle) *Hierarchy {
	return &Hierarchy{oracle: o}
}

// Oracle returns the wrapped oracle.
func (h *Hierarchy) Oracle() Oracle { return h.oracle }

// Concept returns the concept labelled l or a ReferenceError.
func (h *Hierarchy) Concept(ctx context.Context, l Label) (Concept, error) {
	c, ok, err := h.oracle.Lookup(ctx, l)
	if err != nil {
		return Concept{}, err
	}
	if !ok {
		return Concept{}, NotFound(l, KindMeta)
	}
	return c, nil
}

// Role returns the role labelled l. Labels that resolve to something other
// than a role are reported as not found.
func (h *Hierarchy) Role(ctx context.Context, l Label) (Concept, error) {
	c, ok, err := h.oracle.Lookup(ctx, l)
	if err != nil {
		return Concept{}, err
	}
	if !ok || !c.IsRole() {
		return Concept{}, NotFound(l, KindRole)
	}
	return c, nil
}

// Kind returns the kind of l.
func (h *Hierarchy) Kind(ctx context.Context, l Label) (Kind, error) {
	c, err := h.Concept(ctx, l)
	if err != nil {
		return KindMeta, err
	}
	return c.Kind, nil
}

// Sup returns the direct super of l, false for roots.
func (h *Hierarchy) Sup(ctx context.Context, l Label) (Label, bool, error) {
	c, err := h.Concept(ctx, l)
	if err != nil {
		return "", false, err
	}
	return c.Sup, c.Sup != "", nil
}

// Sups returns the transitive supers of l, nearest first, excluding l.
func (h *Hierarchy) Sups(ctx context.Context, l Label) ([]Label, error) {
	var out []Label
	seen := map[Label]bool{l: true}
	for cur := l; ; {
		sup, ok, err := h.Sup(ctx, cur)
		if err != nil {
			return nil, err
		}
		if !ok || seen[sup] {
			return out, nil
		}
		seen[sup] = true
		out = append(out, sup)
		cur = sup
	}
}

// Subs returns l and all its transitive subs in breadth-first order.
func (h *Hierarchy) Subs(ctx context.Context, l Label) ([]Label, error) {
	out := []Label{l}
	seen := map[Label]bool{l: true}
	for i := 0; i < len(out); i++ {
		c, err := h.Concept(ctx, out[i])
		if err != nil {
			return nil, err
		}
		for _, s := range c.Subs {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// IsSub reports whether child equals parent or descends from it.
func (h *Hierarchy) IsSub(ctx context.Context, child, parent Label) (bool, error) {
	if child == parent {
		return true, nil
	}
	sups, err := h.Sups(ctx, child)
	if err != nil {
		return false, err
	}
	return slices.Contains(sups, parent), nil
}

// Comparable reports whether one of a and b is a sub of the other.
func (h *Hierarchy) Comparable(ctx context.Context, a, b Label) (bool, error) {
	ok, err := h.IsSub(ctx, a, b)
	if err != nil || ok {
		return ok, err
	}
	return h.IsSub(ctx, b, a)
}

// Plays returns the roles t can play, including those inherited from its
// supers, sorted.
func (h *Hierarchy) Plays(ctx context.Context, t Label) ([]Label, error) {
	c, err := h.Concept(ctx, t)
	if err != nil {
		return nil, err
	}
	roles := slices.Clone(c.Plays)
	sups, err := h.Sups(ctx, t)
	if err != nil {
		return nil, err
	}
	for _, s := range sups {
		sc, err := h.Concept(ctx, s)
		if err != nil {
			return nil, err
		}
		roles = append(roles, sc.Plays...)
	}
	return Sorted(roles), nil
}

// Relates returns the roles of relation type rel. A relation declaring no
// roles inherits those of its nearest ancestor that does.
func (h *Hierarchy) Relates(ctx context.Context, rel Label) ([]Label, error) {
	for cur := rel; cur != ""; {
		c, err := h.Concept(ctx, cur)
		if err != nil {
			return nil, err
		}
		if len(c.Relates) > 0 {
			return Sorted(c.Relates), nil
		}
		cur = c.Sup
	}
	return nil, nil
}

// RelationsOf returns the relation types relating role or any of its subroles,
// together with their subtypes that inherit those roles, sorted.
func (h *Hierarchy) RelationsOf(ctx context.Context, role Label) ([]Label, error) {
	roles, err := h.Subs(ctx, role)
	if err != nil {
		return nil, err
	}
	var rels []Label
	for _, r := range roles {
		c, err := h.Concept(ctx, r)
		if err != nil {
			return nil, err
		}
		for _, rel := range c.RelatedBy {
			subs, err := h.Subs(ctx, rel)
			if err != nil {
				return nil, err
			}
			for _, s := range subs {
				sc, err := h.Concept(ctx, s)
				if err != nil {
					return nil, err
				}
				if s == rel || len(sc.Relates) == 0 {
					rels = append(rels, s)
				}
			}
		}
	}
	return Sorted(rels), nil
}

// Players returns the thing types able to play role: the types declaring it
// and their subtypes, sorted.
func (h *Hierarchy) Players(ctx context.Context, role Label) ([]Label, error) {
	c, err := h.Role(ctx, role)
	if err != nil {
		return nil, err
	}
	var out []Label
	for _, t := range c.PlayedBy {
		subs, err := h.Subs(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, subs...)
	}
	return Sorted(out), nil
}

// Top keeps the labels of ls that have no ancestor in ls. Order is preserved.
func (h *Hierarchy) Top(ctx context.Context, ls []Label) ([]Label, error) {
	return h.filter(ctx, ls, func(a, b Label) (bool, error) { return h.IsSub(ctx, a, b) })
}

// Bottom keeps the labels of ls that have no descendant in ls. Order is preserved.
func (h *Hierarchy) Bottom(ctx context.Context, ls []Label) ([]Label, error) {
	return h.filter(ctx, ls, func(a, b Label) (bool, error) { return h.IsSub(ctx, b, a) })
}

// filter drops a when dominated(a, b) holds for some other b in ls.
func (h *Hierarchy) filter(ctx context.Context, ls []Label, dominated func(a, b Label) (bool, error)) ([]Label, error) {
	ls = uniqueInOrder(ls)
	var out []Label
	for _, a := range ls {
		keep := true
		for _, b := range ls {
			if a == b {
				continue
			}
			d, err := dominated(a, b)
			if err != nil {
				return nil, err
			}
			if d {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, a)
		}
	}
	return out, nil
}

// Disjoint reports whether no label of a is comparable with a label of b.
func (h *Hierarchy) Disjoint(ctx context.Context, a, b []Label) (bool, error) {
	for _, x := range a {
		for _, y := range b {
			ok, err := h.Comparable(ctx, x, y)
			if err != nil {
				return false, err
			}
			if ok {
				return false, nil
			}
		}
	}
	return true, nil
}

// ShardCount returns the instance-count heuristic for l.
func (h *Hierarchy) ShardCount(ctx context.Context, l Label) (int64, error) {
	return h.oracle.ShardCount(ctx, l)
}

// IsMeta reports whether l is a meta label.
func (h *Hierarchy) IsMeta(l Label) bool { return IsMeta(l) }

func uniqueInOrder(ls []Label) []Label {
	seen := make(map[Label]bool, len(ls))
	out := make([]Label, 0, len(ls))
	for _, l := range ls {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}
