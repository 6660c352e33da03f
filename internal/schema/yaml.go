package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition is the YAML form of a schema.
//
//	entities:
//	  - label: person
//	    plays: [employee]
//	    has: [name]
//	relations:
//	  - label: part-time-employment
//	    sub: employment
//	    relates:
//	      - {role: part-time-employee, as: employee}
//	attributes:
//	  - {label: name, value: string}
//	shards:
//	  employment: 10
type Definition struct {
	Entities   []TypeDefinition `yaml:"entities"`
	Relations  []TypeDefinition `yaml:"relations"`
	Attributes []TypeDefinition `yaml:"attributes"`
	Shards     map[Label]int64  `yaml:"shards,omitempty"`
}

// TypeDefinition declares one thing type.
type TypeDefinition struct {
	Label   Label            `yaml:"label"`
	Sub     Label            `yaml:"sub,omitempty"`
	Value   string           `yaml:"value,omitempty"`
	Plays   []Label          `yaml:"plays,omitempty"`
	Has     []Label          `yaml:"has,omitempty"`
	Relates []RoleDefinition `yaml:"relates,omitempty"`
}

// RoleDefinition declares a role of a relation. It decodes from either a
// bare role label or a {role, as} mapping.
type RoleDefinition struct {
	Role Label `yaml:"role"`
	As   Label `yaml:"as,omitempty"`
}

// UnmarshalYAML accepts the scalar shorthand.
func (r *RoleDefinition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Role = Label(node.Value)
		return nil
	}
	type plain RoleDefinition
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = RoleDefinition(p)
	return nil
}

// LoadYAML reads and builds a schema from a YAML file.
func LoadYAML(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML builds a schema from YAML.
func ParseYAML(data []byte) (*Graph, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return def.Build()
}

// Build turns the definition into a Graph.
func (d *Definition) Build() (*Graph, error) {
	b := NewBuilder()
	for _, t := range d.Entities {
		b.Entity(t.Label, t.Sub)
	}
	for _, t := range d.Relations {
		b.Relation(t.Label, t.Sub)
	}
	for _, t := range d.Attributes {
		b.Attribute(t.Label, t.Sub, t.Value)
	}

	all := make([]TypeDefinition, 0, len(d.Entities)+len(d.Relations)+len(d.Attributes))
	all = append(all, d.Entities...)
	all = append(all, d.Relations...)
	all = append(all, d.Attributes...)
	for _, t := range all {
		for _, r := range t.Relates {
			b.Relates(t.Label, r.Role, r.As)
		}
	}
	for _, t := range all {
		for _, p := range t.Plays {
			b.Plays(t.Label, p)
		}
		for _, a := range t.Has {
			b.Has(t.Label, a)
		}
	}
	for l, n := range d.Shards {
		b.ShardCount(l, n)
	}
	return b.Build()
}

// Definition converts the graph back to its YAML form. Implicit relations
// are folded back into has declarations.
func (g *Graph) Definition() *Definition {
	d := &Definition{Shards: g.ShardCounts()}
	for _, l := range g.order {
		c := g.concepts[l]
		if IsMeta(l) || c.Kind == KindRole || c.Implicit {
			continue
		}
		td := TypeDefinition{Label: l, Value: c.ValueType}
		switch c.Sup {
		case Entity, Relation, Attribute:
		default:
			td.Sub = c.Sup
		}
		for _, p := range c.Plays {
			if g.concepts[p].Implicit {
				if attr, ok := strings.CutSuffix(strings.TrimPrefix(string(p), "@has-"), "-owner"); ok {
					td.Has = append(td.Has, Label(attr))
				}
				continue
			}
			td.Plays = append(td.Plays, p)
		}
		for _, r := range c.Relates {
			rd := RoleDefinition{Role: r}
			if sup := g.concepts[r].Sup; sup != Role {
				rd.As = sup
			}
			td.Relates = append(td.Relates, rd)
		}
		switch c.Kind {
		case KindEntityType:
			d.Entities = append(d.Entities, td)
		case KindRelationType:
			d.Relations = append(d.Relations, td)
		case KindAttributeType:
			d.Attributes = append(d.Attributes, td)
		}
	}
	return d
}
