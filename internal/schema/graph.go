package schema

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Graph is an in-memory schema. It is immutable once built, except for the
// shard counts, which can be overridden or fed by a ShardCounter.
type Graph struct {
	concepts map[Label]*Concept
	order    []Label

	mu      sync.RWMutex
	shards  map[Label]int64
	counter ShardCounter
}

var _ Oracle = (*Graph)(nil)

// Lookup implements Oracle.
func (g *Graph) Lookup(_ context.Context, label Label) (Concept, bool, error) {
	c, ok := g.concepts[label]
	if !ok {
		return Concept{}, false, nil
	}
	return c.Clone(), true, nil
}

// Labels implements Oracle. Labels are returned in declaration order.
func (g *Graph) Labels(_ context.Context, kind Kind) ([]Label, error) {
	var out []Label
	for _, l := range g.order {
		if g.concepts[l].Kind == kind {
			out = append(out, l)
		}
	}
	return out, nil
}

// Concepts returns every concept in declaration order.
func (g *Graph) Concepts() []Concept {
	out := make([]Concept, 0, len(g.order))
	for _, l := range g.order {
		out = append(out, g.concepts[l].Clone())
	}
	return out
}

// ShardCount implements Oracle. An attached ShardCounter wins over the
// declared counts.
func (g *Graph) ShardCount(ctx context.Context, label Label) (int64, error) {
	g.mu.RLock()
	counter := g.counter
	n := g.shards[label]
	g.mu.RUnlock()
	if counter != nil {
		return counter.ShardCount(ctx, label)
	}
	return n, nil
}

// SetShardCount overrides the declared shard count of a type.
func (g *Graph) SetShardCount(label Label, n int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shards[label] = n
}

// ShardCounts returns a copy of the declared shard counts.
func (g *Graph) ShardCounts() map[Label]int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[Label]int64, len(g.shards))
	for k, v := range g.shards {
		out[k] = v
	}
	return out
}

// AttachCounter routes ShardCount through c. Pass nil to detach.
func (g *Graph) AttachCounter(c ShardCounter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter = c
}

// =============================================================================
// BUILDER
// =============================================================================

type typeDecl struct {
	label     Label
	sup       Label
	implicit  bool
	valueType string
	plays     []Label
	relates   []roleDecl
}

type roleDecl struct {
	role Label
	as   Label
}

// Builder accumulates schema declarations. Build validates and indexes them.
type Builder struct {
	decls  []*typeDecl
	byName map[Label]*typeDecl
	has    [][2]Label
	shards map[Label]int64
	err    error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		byName: make(map[Label]*typeDecl),
		shards: make(map[Label]int64),
	}
}

func (b *Builder) declare(label, sup Label) *typeDecl {
	if b.err != nil {
		return &typeDecl{}
	}
	if IsMeta(label) {
		b.err = fmt.Errorf("cannot redefine meta label %q", label)
		return &typeDecl{}
	}
	if _, dup := b.byName[label]; dup {
		b.err = fmt.Errorf("duplicate type %q", label)
		return &typeDecl{}
	}
	d := &typeDecl{label: label, sup: sup}
	b.decls = append(b.decls, d)
	b.byName[label] = d
	return d
}

// Entity declares an entity type. An empty sup means entity.
func (b *Builder) Entity(label, sup Label) *Builder {
	if sup == "" {
		sup = Entity
	}
	b.declare(label, sup)
	return b
}

// Relation declares a relation type. An empty sup means relation.
func (b *Builder) Relation(label, sup Label) *Builder {
	if sup == "" {
		sup = Relation
	}
	b.declare(label, sup)
	return b
}

// Attribute declares an attribute type. An empty sup means attribute.
func (b *Builder) Attribute(label, sup Label, valueType string) *Builder {
	if sup == "" {
		sup = Attribute
	}
	b.declare(label, sup).valueType = valueType
	return b
}

// Relates declares that relation relates role. A non-empty as makes role a
// subrole of as.
func (b *Builder) Relates(relation, role, as Label) *Builder {
	if b.err != nil {
		return b
	}
	d, ok := b.byName[relation]
	if !ok {
		b.err = fmt.Errorf("relates: unknown relation %q", relation)
		return b
	}
	d.relates = append(d.relates, roleDecl{role: role, as: as})
	return b
}

// Plays declares that thing type t plays role.
func (b *Builder) Plays(t, role Label) *Builder {
	if b.err != nil {
		return b
	}
	d, ok := b.byName[t]
	if !ok {
		b.err = fmt.Errorf("plays: unknown type %q", t)
		return b
	}
	d.plays = append(d.plays, role)
	return b
}

// Has declares that owner has attribute. Build turns it into the implicit
// relation @has-<attribute>.
func (b *Builder) Has(owner, attribute Label) *Builder {
	b.has = append(b.has, [2]Label{owner, attribute})
	return b
}

// ShardCount sets the declared instance count of a type.
func (b *Builder) ShardCount(label Label, n int64) *Builder {
	b.shards[label] = n
	return b
}

// HasRelation returns the implicit relation label for ownership of attribute.
func HasRelation(attribute Label) Label { return "@has-" + attribute }

// HasOwner returns the owner role of the implicit relation for attribute.
func HasOwner(attribute Label) Label { return "@has-" + attribute + "-owner" }

// HasValue returns the value role of the implicit relation for attribute.
func HasValue(attribute Label) Label { return "@has-" + attribute + "-value" }

func (b *Builder) expandHas() {
	for _, h := range b.has {
		owner, attr := h[0], h[1]
		if _, ok := b.byName[attr]; !ok {
			b.err = fmt.Errorf("has: unknown attribute %q", attr)
			return
		}
		rel := HasRelation(attr)
		if _, ok := b.byName[rel]; !ok {
			d := b.declare(rel, Relation)
			d.implicit = true
			d.relates = []roleDecl{{role: HasOwner(attr)}, {role: HasValue(attr)}}
			b.byName[attr].plays = append(b.byName[attr].plays, HasValue(attr))
		}
		if _, ok := b.byName[owner]; !ok {
			b.err = fmt.Errorf("has: unknown owner %q", owner)
			return
		}
		b.byName[owner].plays = append(b.byName[owner].plays, HasOwner(attr))
	}
}

// Build validates the declarations and returns the schema.
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.expandHas()
	if b.err != nil {
		return nil, b.err
	}

	g := &Graph{
		concepts: make(map[Label]*Concept),
		shards:   make(map[Label]int64, len(b.shards)),
	}
	add := func(c *Concept) {
		g.concepts[c.Label] = c
		g.order = append(g.order, c.Label)
	}
	add(&Concept{Label: Thing, Kind: KindMeta})
	add(&Concept{Label: Entity, Kind: KindMeta, Sup: Thing})
	add(&Concept{Label: Relation, Kind: KindMeta, Sup: Thing})
	add(&Concept{Label: Attribute, Kind: KindMeta, Sup: Thing})
	add(&Concept{Label: Role, Kind: KindMeta})

	for _, d := range b.decls {
		add(&Concept{
			Label:     d.label,
			Sup:       d.sup,
			Implicit:  d.implicit,
			ValueType: d.valueType,
		})
	}

	// Roles are declared through relates clauses. A role may be related by
	// several relations but is created once.
	for _, d := range b.decls {
		for _, r := range d.relates {
			role, ok := g.concepts[r.role]
			if !ok {
				sup := Role
				if r.as != "" {
					sup = r.as
				}
				role = &Concept{Label: r.role, Kind: KindRole, Sup: sup, Implicit: d.implicit}
				add(role)
			} else if role.Kind != KindRole {
				return nil, fmt.Errorf("%q is already declared as a %s", r.role, role.Kind)
			} else if r.as != "" && role.Sup != r.as {
				return nil, fmt.Errorf("role %q declared with conflicting supers %q and %q", r.role, role.Sup, r.as)
			}
			g.concepts[d.label].Relates = appendUnique(g.concepts[d.label].Relates, r.role)
			role.RelatedBy = appendUnique(role.RelatedBy, d.label)
		}
	}

	for _, d := range b.decls {
		for _, role := range d.plays {
			r, ok := g.concepts[role]
			if !ok || r.Kind != KindRole {
				return nil, fmt.Errorf("type %q plays unknown role %q", d.label, role)
			}
			g.concepts[d.label].Plays = appendUnique(g.concepts[d.label].Plays, role)
			r.PlayedBy = appendUnique(r.PlayedBy, d.label)
		}
	}

	for _, l := range g.order {
		c := g.concepts[l]
		if c.Sup == "" {
			continue
		}
		sup, ok := g.concepts[c.Sup]
		if !ok {
			return nil, fmt.Errorf("%q has unknown super %q", l, c.Sup)
		}
		sup.Subs = append(sup.Subs, l)
	}

	for _, l := range g.order {
		c := g.concepts[l]
		slices.Sort(c.Subs)
		if !IsMeta(l) && c.Kind != KindRole {
			kind, err := g.rootKind(l)
			if err != nil {
				return nil, err
			}
			c.Kind = kind
		}
	}
	for _, l := range g.order {
		c := g.concepts[l]
		if c.Kind == KindRole && c.Sup != Role {
			if sup := g.concepts[c.Sup]; sup.Kind != KindRole {
				return nil, fmt.Errorf("role %q has non-role super %q", l, c.Sup)
			}
		}
		if len(c.Relates) > 0 && c.Kind != KindRelationType {
			return nil, fmt.Errorf("%q relates roles but is a %s", l, c.Kind)
		}
	}

	for l, n := range b.shards {
		if _, ok := g.concepts[l]; !ok {
			return nil, fmt.Errorf("shard count for unknown type %q", l)
		}
		g.shards[l] = n
	}
	return g, nil
}

// rootKind walks the super chain of a declared type to the meta type it
// descends from, rejecting cycles.
func (g *Graph) rootKind(label Label) (Kind, error) {
	seen := make(map[Label]bool)
	for cur := label; ; {
		if seen[cur] {
			return KindMeta, fmt.Errorf("cyclic type hierarchy at %q", cur)
		}
		seen[cur] = true
		c := g.concepts[cur]
		switch c.Sup {
		case Entity:
			return KindEntityType, nil
		case Relation:
			return KindRelationType, nil
		case Attribute:
			return KindAttributeType, nil
		case "", Thing, Role:
			return KindMeta, fmt.Errorf("type %q does not descend from entity, relation or attribute", label)
		}
		cur = c.Sup
	}
}

func appendUnique(s []Label, l Label) []Label {
	if slices.Contains(s, l) {
		return s
	}
	return append(s, l)
}
