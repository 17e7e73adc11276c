package metadata

import (
	"errors"
	"fmt"
)

var (
	// ErrModelFrozen is returned by ModelBuilder calls made after Build.
	ErrModelFrozen = errors.New("model is frozen")
	// ErrDuplicateType is returned when a type name is declared twice.
	ErrDuplicateType = errors.New("duplicate type")
	// ErrDuplicateEntitySet is returned when an entity set name is declared twice.
	ErrDuplicateEntitySet = errors.New("duplicate entity set")
	// ErrInvalidName is returned for empty or malformed identifiers.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidDeclaration is returned when a declaration contradicts the model.
	ErrInvalidDeclaration = errors.New("invalid declaration")
)

// SchemaNotFoundError reports a type, property, navigation or entity set that is not declared.
type SchemaNotFoundError struct {
	// Kind names what was looked up, e.g. "property" or "entity type".
	Kind string
	// Name is the missing identifier.
	Name string
	// Owner is the qualified name of the type searched, empty for model-level lookups.
	Owner string
}

func (e *SchemaNotFoundError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("%s '%s' not found on type '%s'", e.Kind, e.Name, e.Owner)
	}
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.Name)
}

// DuplicatePropertyError reports a structural property declared twice on one type.
type DuplicatePropertyError struct {
	Type string
	Name string
}

func (e *DuplicatePropertyError) Error() string {
	return fmt.Sprintf("property '%s' is already declared on type '%s'", e.Name, e.Type)
}

// DuplicateNavigationError reports a navigation property whose name is already taken on its type.
type DuplicateNavigationError struct {
	Type string
	Name string
}

func (e *DuplicateNavigationError) Error() string {
	return fmt.Sprintf("navigation property '%s' is already declared on type '%s'", e.Name, e.Type)
}
