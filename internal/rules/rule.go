// Package rules finds the rules whose conclusion can answer a query atom.
package rules

import (
	"errors"
	"fmt"
	"slices"

	"reasoner/internal/atom"
)

// ErrInvalidRule is returned for rules that cannot conclude anything.
var ErrInvalidRule = errors.New("invalid rule")

// Rule concludes Head from Body.
type Rule struct {
	Label string
	Body  *atom.Query
	head  atom.Scoped
}

// NewRule validates a rule. The head must be a rule-resolvable atom whose
// role players name their roles and whose variables all occur in the body.
func NewRule(label string, body *atom.Query, head atom.Atom) (*Rule, error) {
	if body == nil || body.Len() == 0 {
		return nil, fmt.Errorf("%w %s: empty body", ErrInvalidRule, label)
	}
	if !head.IsRuleResolvable() {
		return nil, fmt.Errorf("%w %s: %s cannot be concluded", ErrInvalidRule, label, head)
	}
	if r, ok := head.(*atom.RelationAtom); ok {
		for _, rp := range r.RolePlayers() {
			if rp.Role.IsMeta() && !rp.Role.Var.IsReturned() {
				return nil, &atom.RolePatternError{Atom: head.String(), Player: rp.Player, Reason: "rule conclusion needs a role"}
			}
		}
	}
	bodyVars := body.VarNames()
	for _, v := range head.VarNames() {
		if v.IsAnonymous() {
			continue
		}
		if !slices.Contains(bodyVars, v) {
			return nil, fmt.Errorf("%w %s: %s does not occur in the body", ErrInvalidRule, label, v)
		}
	}
	// The head is scoped together with the body so its variables are typed
	// by what the body says about them.
	q := atom.NewQuery(append([]atom.Atom{head}, body.Atoms()...), body.Predicates()...)
	return &Rule{Label: label, Body: body, head: q.Scoped(0)}, nil
}

// Head returns the conclusion scoped in the rule.
func (r *Rule) Head() atom.Scoped { return r.head }

func (r *Rule) String() string {
	return r.Label + ": when {" + r.Body.String() + "} then {" + r.head.Atom.String() + "}"
}
