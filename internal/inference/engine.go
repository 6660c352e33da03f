// Package inference narrows the types and roles of atoms using the schema
// and the other atoms of their query.
//
// Inference never mutates its input: every call returns a new atom, and
// results depend only on the atom, its query, the substitution and the
// schema oracle.
package inference

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"reasoner/internal/answer"
	"reasoner/internal/atom"
	"reasoner/internal/logging"
	"reasoner/internal/schema"
	"reasoner/internal/typing"
)

// Engine infers atom types and role assignments.
type Engine struct {
	h      *schema.Hierarchy
	typing typing.Oracle
	log    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTyping replaces the variable-typing oracle.
func WithTyping(o typing.Oracle) Option {
	return func(e *Engine) { e.typing = o }
}

// WithLogger replaces the inference category logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns an Engine over h. By default variables are typed by a
// typing.SchemaOracle over the same hierarchy.
func New(h *schema.Hierarchy, opts ...Option) *Engine {
	e := &Engine{h: h}
	for _, o := range opts {
		o(e)
	}
	if e.typing == nil {
		e.typing = typing.NewSchemaOracle(h)
	}
	if e.log == nil {
		e.log = logging.Get(logging.CategoryInference)
	}
	return e
}

// Hierarchy returns the schema hierarchy the engine consults.
func (e *Engine) Hierarchy() *schema.Hierarchy { return e.h }

// VarTypes returns the inferred variable types of q refined by sub.
func (e *Engine) VarTypes(ctx context.Context, q *atom.Query, sub answer.Answer) (typing.Map, error) {
	m, err := e.typing.VarTypes(ctx, q, true)
	if err != nil {
		return nil, err
	}
	return typing.WithSubstitution(m, sub), nil
}

// boundLabel returns the schema label sub binds to v, if any.
func boundLabel(sub answer.Answer, v atom.Variable) (schema.Label, bool) {
	c, ok := sub[v]
	if !ok || !c.IsSchemaConcept() {
		return "", false
	}
	return c.Label, true
}

// PossibleTypes returns the candidate types of the atom, most promising first.
func (e *Engine) PossibleTypes(ctx context.Context, s atom.Scoped, sub answer.Answer) ([]schema.Label, error) {
	s = s.Normalized()
	a := s.Atom
	if l, ok := boundLabel(sub, a.TypeVar()); ok {
		return []schema.Label{l}, nil
	}
	if !schema.IsMeta(a.TypeLabel()) {
		if _, err := e.h.Concept(ctx, a.TypeLabel()); err != nil {
			return nil, err
		}
		return []schema.Label{a.TypeLabel()}, nil
	}

	switch x := a.(type) {
	case *atom.RelationAtom:
		cfg, err := e.configurations(ctx, s, x, sub)
		if err != nil {
			return nil, err
		}
		return e.rank(ctx, s, x, cfg)
	case *atom.IsaAtom:
		types, err := e.VarTypes(ctx, s.Query, sub)
		if err != nil {
			return nil, err
		}
		if ts := types.Get(x.Var()); len(ts) > 0 {
			return ts, nil
		}
		return e.allTypes(ctx, schema.KindEntityType, schema.KindRelationType, schema.KindAttributeType)
	case *atom.AttributeAtom:
		return e.allTypes(ctx, schema.KindAttributeType)
	default:
		return nil, nil
	}
}

func (e *Engine) allTypes(ctx context.Context, kinds ...schema.Kind) ([]schema.Label, error) {
	var out []schema.Label
	for _, k := range kinds {
		ls, err := e.h.Oracle().Labels(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, ls...)
	}
	return out, nil
}

// InferTypes returns the atom with as much type and role information
// resolved as the schema allows without ambiguity.
func (e *Engine) InferTypes(ctx context.Context, s atom.Scoped, sub answer.Answer) (atom.Atom, error) {
	s = s.Normalized()
	a := s.Atom
	switch x := a.(type) {
	case *atom.RelationAtom:
		return e.inferRelation(ctx, s, x, sub)
	case *atom.IsaAtom:
		if l, ok := boundLabel(sub, x.TypeVar()); ok {
			return x.WithType(l), nil
		}
		if !schema.IsMeta(x.TypeLabel()) {
			return x, nil
		}
		types, err := e.VarTypes(ctx, s.Query, sub)
		if err != nil {
			return nil, err
		}
		if ts := types.Get(x.Var()); len(ts) == 1 {
			return x.WithType(ts[0]), nil
		}
		return x, nil
	case *atom.AttributeAtom:
		if l, ok := boundLabel(sub, x.TypeVar()); ok {
			return x.WithType(l), nil
		}
		return x, nil
	default:
		return a, nil
	}
}

func (e *Engine) inferRelation(ctx context.Context, s atom.Scoped, r *atom.RelationAtom, sub answer.Answer) (atom.Atom, error) {
	label := r.TypeLabel()
	if l, ok := boundLabel(sub, r.TypeVar()); ok {
		label = l
	}

	var possibleRoles []schema.Label
	if schema.IsMeta(label) {
		cfg, err := e.configurations(ctx, s, r, sub)
		if err != nil {
			return nil, err
		}
		// Commit only when the candidates share a single most general type,
		// so the committed label covers every candidate.
		top, err := e.h.Top(ctx, cfg.labels())
		if err != nil {
			return nil, err
		}
		if len(top) == 1 {
			label = top[0]
		} else {
			for _, rel := range cfg.order {
				possibleRoles = append(possibleRoles, cfg.roles[rel]...)
			}
			possibleRoles = schema.Sorted(possibleRoles)
		}
	} else if _, err := e.h.Concept(ctx, label); err != nil {
		return nil, err
	}
	if !schema.IsMeta(label) {
		roles, err := e.h.Relates(ctx, label)
		if err != nil {
			return nil, err
		}
		possibleRoles = roles
	}

	roles, err := e.assignRoles(ctx, s, r, sub, possibleRoles)
	if err != nil {
		return nil, err
	}
	out := r.WithTypeAndRoles(label, roles)
	if !atom.Equal(out, r) {
		e.log.Debug("relation inferred",
			zap.Stringer("from", r),
			zap.Stringer("to", out))
	}
	return out, nil
}

// assignRoles fixes explicit roles first and then gives every other role
// player the single most general role its types can play, falling back to
// the meta role.
func (e *Engine) assignRoles(ctx context.Context, s atom.Scoped, r *atom.RelationAtom, sub answer.Answer, possible []schema.Label) ([]schema.Label, error) {
	rps := r.RolePlayers()
	out := make([]schema.Label, len(rps))

	var types typing.Map
	for i, rp := range rps {
		if !rp.Role.IsMeta() {
			if _, err := e.h.Role(ctx, rp.Role.Label); err != nil {
				return nil, err
			}
			out[i] = rp.Role.Label
			continue
		}
		if l, ok := boundLabel(sub, rp.Role.Var); ok {
			out[i] = l
			continue
		}
		if len(possible) == 0 {
			out[i] = schema.Role
			continue
		}
		if types == nil {
			var err error
			if types, err = e.VarTypes(ctx, s.Query, sub); err != nil {
				return nil, err
			}
		}

		candidates := possible
		if ts := types.Get(rp.Player); len(ts) > 0 {
			compatible, err := e.compatibleRoles(ctx, ts, possible)
			if err != nil {
				return nil, err
			}
			candidates = compatible
		}
		top, err := e.h.Top(ctx, candidates)
		if err != nil {
			return nil, err
		}
		if len(top) == 1 {
			out[i] = top[0]
		} else {
			out[i] = schema.Role
		}
	}
	return out, nil
}

// compatibleRoles keeps the roles of possible that one of types can play.
func (e *Engine) compatibleRoles(ctx context.Context, types, possible []schema.Label) ([]schema.Label, error) {
	var playable []schema.Label
	for _, t := range types {
		ps, err := e.h.Plays(ctx, t)
		if err != nil {
			return nil, err
		}
		playable = append(playable, ps...)
	}
	var out []schema.Label
	for _, role := range possible {
		if slices.Contains(playable, role) {
			out = append(out, role)
		}
	}
	return out, nil
}

// InferQuery infers every atom of q until nothing changes.
func (e *Engine) InferQuery(ctx context.Context, q *atom.Query, sub answer.Answer) (*atom.Query, error) {
	timer := logging.StartTimer(logging.CategoryInference, "InferQuery")
	defer timer.Stop()

	cur := q
	for range q.Len() + 1 {
		next := cur
		for i := range cur.Len() {
			a, err := e.InferTypes(ctx, next.Scoped(i), sub)
			if err != nil {
				return nil, err
			}
			if !atom.Equal(a, next.Atom(i)) {
				next = next.Rewrite(i, a)
			}
		}
		if next.Key() == cur.Key() {
			return next, nil
		}
		cur = next
	}
	return cur, nil
}
