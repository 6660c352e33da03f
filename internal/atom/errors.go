package atom

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalAtomConversion indicates a conversion between atom kinds that
	// the source atom cannot represent.
	ErrIllegalAtomConversion = errors.New("illegal atom conversion")

	// ErrAmbiguousRolePattern indicates a role player without the role
	// statement an operation requires.
	ErrAmbiguousRolePattern = errors.New("ambiguous role pattern")
)

// ConversionError describes a failed ToIsa, ToRelation or ToAttribute call.
type ConversionError struct {
	From   Kind
	To     Kind
	Atom   string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s for %q: %s", ErrIllegalAtomConversion, e.From, e.To, e.Atom, e.Reason)
}

func (e *ConversionError) Unwrap() error { return ErrIllegalAtomConversion }

// RolePatternError identifies the role player that lacks a usable role.
type RolePatternError struct {
	Atom   string
	Player Variable
	Reason string
}

func (e *RolePatternError) Error() string {
	return fmt.Sprintf("%s: player %s in %q: %s", ErrAmbiguousRolePattern, e.Player, e.Atom, e.Reason)
}

func (e *RolePatternError) Unwrap() error { return ErrAmbiguousRolePattern }
