// Package document decodes queries, rules and answers from YAML.
//
// A query document lists atoms and the predicates on their variables:
//
//	focus: 0
//	match:
//	  - relation: {var: r, type: employment, players: [{role: employee, player: x}]}
//	  - isa: {var: x, type: person}
//	  - has: {owner: x, type: name, attr: n}
//	  - sub: {var: t, type: person}
//	where:
//	  - {var: n, op: "==", value: Bob}
//	  - {var: x, id: V1}
//	  - {var: x, neq: y}
//
// Variables may be written with or without the leading "$".
package document

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"reasoner/internal/answer"
	"reasoner/internal/atom"
	"reasoner/internal/schema"
)

// ErrInvalidDocument is returned for documents that do not describe a
// query, rule or answer.
var ErrInvalidDocument = errors.New("invalid document")

// Query is the YAML form of a query.
type Query struct {
	Focus int         `yaml:"focus,omitempty"`
	Match []Atom      `yaml:"match"`
	Where []Predicate `yaml:"where,omitempty"`
}

// Atom holds exactly one atom statement.
type Atom struct {
	Isa      *Isa      `yaml:"isa,omitempty"`
	Relation *Relation `yaml:"relation,omitempty"`
	Has      *Has      `yaml:"has,omitempty"`
	Sub      *Schema   `yaml:"sub,omitempty"`
	Plays    *Schema   `yaml:"plays,omitempty"`
	Relates  *Schema   `yaml:"relates,omitempty"`
}

type Isa struct {
	Var     string       `yaml:"var"`
	TypeVar string       `yaml:"type_var,omitempty"`
	Type    schema.Label `yaml:"type,omitempty"`
}

type Relation struct {
	Var     string       `yaml:"var,omitempty"`
	TypeVar string       `yaml:"type_var,omitempty"`
	Type    schema.Label `yaml:"type,omitempty"`
	Players []RolePlayer `yaml:"players"`
}

type RolePlayer struct {
	Role    schema.Label `yaml:"role,omitempty"`
	RoleVar string       `yaml:"role_var,omitempty"`
	Player  string       `yaml:"player"`
}

type Has struct {
	Owner   string       `yaml:"owner"`
	TypeVar string       `yaml:"type_var,omitempty"`
	Type    schema.Label `yaml:"type"`
	Attr    string       `yaml:"attr,omitempty"`
	Via     string       `yaml:"via,omitempty"`
}

type Schema struct {
	Var     string       `yaml:"var"`
	TypeVar string       `yaml:"type_var,omitempty"`
	Type    schema.Label `yaml:"type,omitempty"`
}

// Predicate holds one predicate on Var: an id, an inequality, a label or a
// value comparison.
type Predicate struct {
	Var   string       `yaml:"var"`
	ID    string       `yaml:"id,omitempty"`
	Neq   string       `yaml:"neq,omitempty"`
	Label schema.Label `yaml:"label,omitempty"`
	Op    string       `yaml:"op,omitempty"`
	Value any          `yaml:"value,omitempty"`
}

func variable(s string) atom.Variable {
	return atom.Variable(strings.TrimPrefix(strings.TrimSpace(s), "$"))
}

// Build converts the statement into an atom.
func (a Atom) Build() (atom.Atom, error) {
	var out []atom.Atom
	if x := a.Isa; x != nil {
		typeVar := variable(x.TypeVar)
		if typeVar == "" {
			typeVar = atom.TypeVarFor(variable(x.Var), x.Type)
		}
		out = append(out, atom.NewIsaTyped(variable(x.Var), typeVar, x.Type))
	}
	if x := a.Relation; x != nil {
		rps := make([]atom.RolePlayer, len(x.Players))
		for i, p := range x.Players {
			if p.Player == "" {
				return nil, fmt.Errorf("%w: role player without a player", ErrInvalidDocument)
			}
			rps[i] = atom.RolePlayer{
				Role:   atom.RoleRef{Var: variable(p.RoleVar), Label: p.Role},
				Player: variable(p.Player),
			}
		}
		out = append(out, atom.NewRelationTyped(variable(x.Var), variable(x.TypeVar), x.Type, rps))
	}
	if x := a.Has; x != nil {
		if x.Type == "" {
			return nil, fmt.Errorf("%w: has statement without a type", ErrInvalidDocument)
		}
		out = append(out, atom.NewAttributeTyped(variable(x.Owner), variable(x.TypeVar), x.Type, variable(x.Attr), variable(x.Via)))
	}
	for op, x := range map[atom.OntologicalOp]*Schema{atom.OpSub: a.Sub, atom.OpPlays: a.Plays, atom.OpRelates: a.Relates} {
		if x != nil {
			out = append(out, atom.NewOntological(op, variable(x.Var), variable(x.TypeVar), x.Type))
		}
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: an atom needs exactly one statement, got %d", ErrInvalidDocument, len(out))
	}
	return out[0], nil
}

// Build converts the predicate.
func (p Predicate) Build() (atom.Predicate, error) {
	v := variable(p.Var)
	if v == "" {
		return nil, fmt.Errorf("%w: predicate without a variable", ErrInvalidDocument)
	}
	switch {
	case p.ID != "":
		return atom.IDPredicate{V: v, ID: p.ID}, nil
	case p.Neq != "":
		return atom.NeqPredicate{V: v, Other: variable(p.Neq)}, nil
	case p.Label != "":
		return atom.LabelPredicate{V: v, Label: p.Label}, nil
	case p.Op != "":
		op, err := atom.ParseOp(p.Op)
		if err != nil {
			return nil, err
		}
		return atom.NewValuePredicate(v, op, p.Value)
	default:
		return nil, fmt.Errorf("%w: predicate on %s constrains nothing", ErrInvalidDocument, v)
	}
}

// Build converts the query document.
func (q Query) Build() (*atom.Query, error) {
	if len(q.Match) == 0 {
		return nil, fmt.Errorf("%w: empty match", ErrInvalidDocument)
	}
	atoms := make([]atom.Atom, len(q.Match))
	for i, a := range q.Match {
		built, err := a.Build()
		if err != nil {
			return nil, fmt.Errorf("atom %d: %w", i, err)
		}
		atoms[i] = built
	}
	preds := make([]atom.Predicate, len(q.Where))
	for i, p := range q.Where {
		built, err := p.Build()
		if err != nil {
			return nil, fmt.Errorf("predicate %d: %w", i, err)
		}
		preds[i] = built
	}
	return atom.NewQuery(atoms, preds...), nil
}

// Scoped builds the query and scopes its focus atom.
func (q Query) Scoped() (atom.Scoped, error) {
	built, err := q.Build()
	if err != nil {
		return atom.Scoped{}, err
	}
	if q.Focus < 0 || q.Focus >= built.Len() {
		return atom.Scoped{}, fmt.Errorf("%w: focus %d out of range", ErrInvalidDocument, q.Focus)
	}
	return built.Scoped(q.Focus), nil
}

// DecodeQuery decodes a query document.
func DecodeQuery(data []byte) (Query, error) {
	var q Query
	if err := yaml.Unmarshal(data, &q); err != nil {
		return Query{}, fmt.Errorf("failed to parse query: %w", err)
	}
	return q, nil
}

// LoadQuery reads a query document from a file.
func LoadQuery(path string) (Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Query{}, fmt.Errorf("failed to read query: %w", err)
	}
	return DecodeQuery(data)
}

// =============================================================================
// RULES
// =============================================================================

// Rule is the YAML form of a rule.
type Rule struct {
	Label string `yaml:"label"`
	When  Query  `yaml:"when"`
	Then  Atom   `yaml:"then"`
}

// RuleDefinition is a decoded rule ready for validation.
type RuleDefinition struct {
	Label string
	When  *atom.Query
	Then  atom.Atom
}

// DecodeRules decodes a `rules:` document.
func DecodeRules(data []byte) ([]RuleDefinition, error) {
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	out := make([]RuleDefinition, 0, len(doc.Rules))
	for _, r := range doc.Rules {
		when, err := r.When.Build()
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Label, err)
		}
		then, err := r.Then.Build()
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Label, err)
		}
		out = append(out, RuleDefinition{Label: r.Label, When: when, Then: then})
	}
	return out, nil
}

// =============================================================================
// ANSWERS
// =============================================================================

// Concept is the YAML form of a concept binding.
type Concept struct {
	ID      string                    `yaml:"id,omitempty"`
	Type    schema.Label              `yaml:"type,omitempty"`
	Label   schema.Label              `yaml:"label,omitempty"`
	Value   any                       `yaml:"value,omitempty"`
	Players map[schema.Label][]string `yaml:"players,omitempty"`
}

func (c Concept) build() (answer.Concept, error) {
	if c.Label != "" {
		return answer.SchemaConcept(c.Label), nil
	}
	if c.ID == "" {
		return answer.Concept{}, fmt.Errorf("%w: concept needs an id or a label", ErrInvalidDocument)
	}
	out := answer.Thing(c.ID, c.Type)
	out.RolePlayers = c.Players
	if c.Value != nil {
		v, err := atom.NormalizeValue(c.Value)
		if err != nil {
			return answer.Concept{}, err
		}
		out.Value = v
	}
	return out, nil
}

// DecodeAnswers decodes a list of variable → concept maps.
func DecodeAnswers(data []byte) ([]answer.Answer, error) {
	var doc []map[string]Concept
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse answers: %w", err)
	}
	out := make([]answer.Answer, len(doc))
	for i, m := range doc {
		a := make(answer.Answer, len(m))
		for v, c := range m {
			built, err := c.build()
			if err != nil {
				return nil, fmt.Errorf("answer %d, %s: %w", i, v, err)
			}
			a[variable(v)] = built
		}
		out[i] = a
	}
	return out, nil
}
