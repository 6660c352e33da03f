// Package schema provides the type and role hierarchy the reasoner consults
// while inferring and unifying atoms.
//
// The hierarchy is read through the Oracle interface. Implementations may be
// in memory (Graph), persistent (SQLStore) or cached (Snapshot); every call
// takes a context and may fail, so callers never assume synchronous access.
package schema

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Label identifies a schema type or role.
type Label string

func (l Label) String() string { return string(l) }

// Meta labels. They root the type and role hierarchies, match anything and
// contribute no constraint.
const (
	Thing     Label = "thing"
	Entity    Label = "entity"
	Relation  Label = "relation"
	Attribute Label = "attribute"
	Role      Label = "role"
)

// MetaLabels lists every meta label.
var MetaLabels = []Label{Thing, Entity, Relation, Attribute, Role}

// IsMeta reports whether l is a meta label. The empty label counts as meta.
func IsMeta(l Label) bool {
	switch l {
	case "", Thing, Entity, Relation, Attribute, Role:
		return true
	}
	return false
}

// Kind classifies a schema concept.
type Kind int

const (
	KindMeta Kind = iota
	KindEntityType
	KindRelationType
	KindAttributeType
	KindRole
)

var kindNames = map[Kind]string{
	KindMeta:          "meta",
	KindEntityType:    "entity",
	KindRelationType:  "relation",
	KindAttributeType: "attribute",
	KindRole:          "role",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindMeta, fmt.Errorf("unknown concept kind %q", s)
}

// IsType reports whether the kind denotes a (non-meta) thing type.
func (k Kind) IsType() bool {
	return k == KindEntityType || k == KindRelationType || k == KindAttributeType
}

// Concept is a node of the type or role hierarchy.
type Concept struct {
	Label     Label
	Kind      Kind
	Sup       Label   // empty for hierarchy roots
	Subs      []Label // direct children, sorted
	Implicit  bool    // generated, e.g. @has-<attribute> relations
	Relates   []Label // relation types: declared roles
	RelatedBy []Label // roles: relation types declaring them
	Plays     []Label // thing types: declared roles
	PlayedBy  []Label // roles: thing types declaring them
	ValueType string  // attribute types only
}

// IsRole reports whether c is a role (including the meta role).
func (c Concept) IsRole() bool {
	return c.Kind == KindRole || c.Label == Role
}

// IsRelationType reports whether c is the meta relation type or one of its subtypes.
func (c Concept) IsRelationType() bool {
	return c.Kind == KindRelationType || c.Label == Relation
}

// Clone returns a deep copy of c.
func (c Concept) Clone() Concept {
	c.Subs = slices.Clone(c.Subs)
	c.Relates = slices.Clone(c.Relates)
	c.RelatedBy = slices.Clone(c.RelatedBy)
	c.Plays = slices.Clone(c.Plays)
	c.PlayedBy = slices.Clone(c.PlayedBy)
	return c
}

// Oracle is read access to a schema. Lookups may block on storage and may
// fail; a missing label is reported through the bool, not an error.
type Oracle interface {
	Lookup(ctx context.Context, label Label) (Concept, bool, error)
	Labels(ctx context.Context, kind Kind) ([]Label, error)
	ShardCount(ctx context.Context, label Label) (int64, error)
}

// ShardCounter supplies live instance counts per type.
type ShardCounter interface {
	ShardCount(ctx context.Context, label Label) (int64, error)
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrSchemaReferenceNotFound indicates a label that does not resolve in the schema.
var ErrSchemaReferenceNotFound = errors.New("schema reference not found")

// ReferenceError carries the label that failed to resolve and the kind that was expected.
type ReferenceError struct {
	Label Label
	Kind  Kind
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrSchemaReferenceNotFound, e.Kind, e.Label)
}

func (e *ReferenceError) Unwrap() error { return ErrSchemaReferenceNotFound }

// NotFound builds a ReferenceError.
func NotFound(label Label, kind Kind) error {
	return &ReferenceError{Label: label, Kind: kind}
}
