// Package scope tracks the range variables visible while a filter expression is built.
//
// The root scope binds the implicit iterator ($it) to an entity set. Every lambda opens a
// child scope for its own variable and closes it once the lambda body is complete; a name
// may not be reused while any ancestor scope binding it is still open, but sibling scopes
// may bind the same name.
package scope

import (
	"errors"
	"fmt"

	"github.com/nlstn/go-odata-filter/internal/metadata"
)

// RootName is the name of the implicit root range variable.
const RootName = "$it"

var (
	// ErrInvalidName is returned for lambda variable names that are not identifiers.
	ErrInvalidName = errors.New("invalid range variable name")
	// ErrScopeClosed is returned when opening under, or closing, a scope that is already closed.
	ErrScopeClosed = errors.New("scope is closed")
	// ErrOpenChildren is returned when a scope is closed before its nested scopes.
	ErrOpenChildren = errors.New("scope has open nested scopes")
)

// DuplicateRangeVariableError reports a variable name already bound by an enclosing scope.
type DuplicateRangeVariableError struct {
	Name string
}

func (e *DuplicateRangeVariableError) Error() string {
	return fmt.Sprintf("range variable '%s' is already declared in an enclosing scope", e.Name)
}

// DanglingVariableError reports a reference to a variable whose scope is closed.
type DanglingVariableError struct {
	Name string
}

func (e *DanglingVariableError) Error() string {
	return fmt.Sprintf("range variable '%s' is referenced outside of its scope", e.Name)
}

// Variable is a named iterator bound to an entity type.
type Variable struct {
	name      string
	typ       *metadata.EntityType
	entitySet *metadata.EntitySet
	source    int
	scope     *Scope
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Type returns the entity type the variable ranges over.
func (v *Variable) Type() *metadata.EntityType { return v.typ }

// EntitySet returns the entity set the variable ranges over, or nil when the set is unknown
// (a collection navigation without a bound target set).
func (v *Variable) EntitySet() *metadata.EntitySet { return v.entitySet }

// Source returns the opaque handle of the collection the variable was introduced over, or
// -1 for the root variable.
func (v *Variable) Source() int { return v.source }

// IsRoot reports whether v is the implicit root variable.
func (v *Variable) IsRoot() bool { return v.scope.parent == nil }

// Depth returns the nesting depth of the variable's scope; the root is at depth 0.
func (v *Variable) Depth() int { return v.scope.depth }

// Live reports whether the variable's scope is still open.
func (v *Variable) Live() bool { return !v.scope.closed }

// Scope is one link of the chain of open range variable scopes.
type Scope struct {
	parent   *Scope
	variable *Variable
	depth    int
	open     int
	closed   bool
}

// NewRoot creates the root scope binding RootName to the members of set.
func NewRoot(set *metadata.EntitySet) *Scope {
	s := &Scope{}
	s.variable = &Variable{
		name:      RootName,
		typ:       set.EntityType(),
		entitySet: set,
		source:    -1,
		scope:     s,
	}
	return s
}

// Open creates a nested scope binding name. It fails with DuplicateRangeVariableError when
// name is bound by s or any of its ancestors.
func (s *Scope) Open(name string, typ *metadata.EntityType, set *metadata.EntitySet, source int) (*Scope, error) {
	if s.closed {
		return nil, ErrScopeClosed
	}
	if !isIdentifier(name) {
		return nil, fmt.Errorf("%w: '%s'", ErrInvalidName, name)
	}
	if _, bound := s.Lookup(name); bound {
		return nil, &DuplicateRangeVariableError{Name: name}
	}
	child := &Scope{parent: s, depth: s.depth + 1}
	child.variable = &Variable{
		name:      name,
		typ:       typ,
		entitySet: set,
		source:    source,
		scope:     child,
	}
	s.open++
	return child, nil
}

// Close discards the scope's variable. The root scope is never closed.
func (s *Scope) Close() error {
	if s.closed {
		return ErrScopeClosed
	}
	if s.open > 0 {
		return fmt.Errorf("%w: '%s'", ErrOpenChildren, s.variable.name)
	}
	if s.parent == nil {
		return fmt.Errorf("%w: the root scope cannot be closed", ErrScopeClosed)
	}
	s.closed = true
	s.parent.open--
	return nil
}

// Parent returns the enclosing scope, or nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Variable returns the variable bound by this scope.
func (s *Scope) Variable() *Variable { return s.variable }

// Depth returns the nesting depth; the root is at depth 0.
func (s *Scope) Depth() int { return s.depth }

// Closed reports whether Close has been called.
func (s *Scope) Closed() bool { return s.closed }

// Lookup finds the variable named name in s or its ancestors.
func (s *Scope) Lookup(name string) (*Variable, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.variable.name == name {
			return cur.variable, true
		}
	}
	return nil, false
}

// Visible reports whether v is bound by s or one of its ancestors.
func (s *Scope) Visible(v *Variable) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.variable == v {
			return true
		}
	}
	return false
}

// Check returns DanglingVariableError unless v is live and visible from s.
func (s *Scope) Check(v *Variable) error {
	if v == nil {
		return nil
	}
	if !v.Live() || !s.Visible(v) {
		return &DanglingVariableError{Name: v.name}
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
