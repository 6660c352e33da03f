package instance

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/mangle/ast"
	"go.uber.org/zap"

	"reasoner/internal/answer"
	"reasoner/internal/atom"
	"reasoner/internal/schema"
)

var (
	// ErrUnresolved is returned for atoms whose type is not known.
	ErrUnresolved = errors.New("atom is not resolved")
	// ErrUnbound is returned when a variable the atom needs is not bound.
	ErrUnbound = errors.New("variable is not bound")
	// ErrNotMaterialisable is returned for schema atoms.
	ErrNotMaterialisable = errors.New("atom cannot be materialised")
)

// Materialise finds or creates the instances satisfying a resolved atom and
// returns sub extended with their bindings. Relations with the same type and
// role players and attributes with the same type and value are reused.
func (s *Store) Materialise(ctx context.Context, sc atom.Scoped, sub answer.Answer) (answer.Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sc = sc.Normalized()
	a := sc.Atom
	label := a.TypeLabel()
	if c, ok := sub[a.TypeVar()]; ok && c.IsSchemaConcept() {
		label = c.Label
	}
	if a.Kind() == atom.KindOntological {
		return nil, fmt.Errorf("%w: %s", ErrNotMaterialisable, a)
	}
	if schema.IsMeta(label) {
		return nil, fmt.Errorf("%w: %s has no type", ErrUnresolved, a)
	}
	if _, err := s.h.Concept(ctx, label); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := maps.Clone(sub)
	if out == nil {
		out = make(answer.Answer)
	}
	out[a.TypeVar()] = answer.SchemaConcept(label)

	var err error
	switch x := a.(type) {
	case *atom.IsaAtom:
		err = s.materialiseIsa(x, label, out)
	case *atom.AttributeAtom:
		err = s.materialiseAttribute(x, label, out)
	case *atom.RelationAtom:
		err = s.materialiseRelation(ctx, x, label, out)
	}
	if err != nil {
		return nil, err
	}
	s.log.Debug("materialised", zap.Stringer("atom", a), zap.Stringer("answer", out))
	return out, nil
}

func (s *Store) materialiseIsa(a *atom.IsaAtom, label schema.Label, out answer.Answer) error {
	if c, ok := out[a.Var()]; ok {
		t, found, err := s.typeOf(c.ID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s bound to unknown thing %s", ErrUnbound, a.Var(), c.ID)
		}
		out[a.Var()] = answer.Thing(c.ID, t)
		return nil
	}
	id := s.newID()
	if err := s.add(isaPred, ast.String(id), ast.String(string(label))); err != nil {
		return err
	}
	out[a.Var()] = answer.Thing(id, label)
	return nil
}

// attributeValue returns the value an attribute atom fixes, from the answer
// or from an equality predicate.
func attributeValue(a *atom.AttributeAtom, out answer.Answer) (any, error) {
	if c, ok := out[a.AttributeVar()]; ok && c.Value != nil {
		return atom.NormalizeValue(c.Value)
	}
	for _, vp := range a.ValuePredicates() {
		if vp.Op == atom.OpEq {
			return vp.Value, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no value", ErrUnbound, a.AttributeVar())
}

func (s *Store) materialiseAttribute(a *atom.AttributeAtom, label schema.Label, out answer.Answer) error {
	owner, ok := out[a.Var()]
	if !ok {
		return fmt.Errorf("%w: owner %s", ErrUnbound, a.Var())
	}
	value, err := attributeValue(a, out)
	if err != nil {
		return err
	}
	kind, c, err := encodeValue(value)
	if err != nil {
		return err
	}

	id, err := s.findAttribute(label, kind, c)
	if err != nil {
		return err
	}
	if id == "" {
		id = s.newID()
		if err := s.add(isaPred, ast.String(id), ast.String(string(label))); err != nil {
			return err
		}
		if err := s.add(valuePred, ast.String(id), ast.String(kind), c); err != nil {
			return err
		}
	}
	if err := s.add(hasPred, ast.String(owner.ID), ast.String(id)); err != nil {
		return err
	}
	out[a.AttributeVar()] = answer.Concept{ID: id, Type: label, Value: value}
	return nil
}

func (s *Store) findAttribute(label schema.Label, kind string, c ast.Constant) (string, error) {
	want := valueKey(kind, c)
	var ids []string
	err := s.scan(valuePred, nil, func(args []ast.Constant) bool {
		if valueKey(args[1].Symbol, args[2]) == want {
			ids = append(ids, args[0].Symbol)
		}
		return true
	})
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		t, ok, err := s.typeOf(id)
		if err != nil {
			return "", err
		}
		if ok && t == label {
			return id, nil
		}
	}
	return "", nil
}

func (s *Store) materialiseRelation(ctx context.Context, r *atom.RelationAtom, label schema.Label, out answer.Answer) error {
	players := make(map[schema.Label][]string)
	for _, rp := range r.RolePlayers() {
		role := rp.Role.Label
		if c, ok := out[rp.Role.Var]; ok && c.IsSchemaConcept() {
			role = c.Label
		}
		if schema.IsMeta(role) {
			return &atom.RolePatternError{Atom: r.String(), Player: rp.Player, Reason: "cannot materialise a role player without a role"}
		}
		if _, err := s.h.Role(ctx, role); err != nil {
			return err
		}
		p, ok := out[rp.Player]
		if !ok {
			return fmt.Errorf("%w: role player %s", ErrUnbound, rp.Player)
		}
		players[role] = append(players[role], p.ID)
		out[rp.Role.Var] = answer.SchemaConcept(role)
	}
	for role := range players {
		slices.Sort(players[role])
	}

	id, err := s.findRelation(label, players)
	if err != nil {
		return err
	}
	if id == "" {
		id = s.newID()
		if err := s.add(isaPred, ast.String(id), ast.String(string(label))); err != nil {
			return err
		}
		for _, role := range slices.Sorted(maps.Keys(players)) {
			for _, p := range players[role] {
				if err := s.add(rolePlayerPred, ast.String(id), ast.String(string(role)), ast.String(p)); err != nil {
					return err
				}
			}
		}
	}
	out[r.Var()] = answer.Concept{ID: id, Type: label, RolePlayers: players}
	return nil
}

// findRelation returns a relation of type label with exactly the given role
// players. Repeated players of one role are stored once.
func (s *Store) findRelation(label schema.Label, players map[schema.Label][]string) (string, error) {
	want := dedupe(players)
	var candidates []string
	err := s.scan(isaPred, []string{"", string(label)}, func(args []ast.Constant) bool {
		candidates = append(candidates, args[0].Symbol)
		return true
	})
	if err != nil {
		return "", err
	}
	for _, id := range candidates {
		got := make(map[schema.Label][]string)
		err := s.scan(rolePlayerPred, []string{id}, func(args []ast.Constant) bool {
			role := schema.Label(args[1].Symbol)
			got[role] = append(got[role], args[2].Symbol)
			return true
		})
		if err != nil {
			return "", err
		}
		if maps.EqualFunc(dedupe(got), want, slices.Equal[[]string]) {
			return id, nil
		}
	}
	return "", nil
}

func dedupe(m map[schema.Label][]string) map[schema.Label][]string {
	out := make(map[schema.Label][]string, len(m))
	for k, v := range m {
		v = slices.Clone(v)
		slices.Sort(v)
		out[k] = slices.Compact(v)
	}
	return out
}
