package query

import (
	"errors"
	"fmt"

	"github.com/nlstn/go-odata-filter/internal/metadata"
)

var (
	// ErrBuilderFinalized is returned by Builder calls made after Finalize.
	ErrBuilderFinalized = errors.New("filter builder is finalized")
	// ErrForeignNode is returned when a NodeRef from another builder is passed in.
	ErrForeignNode = errors.New("node does not belong to this builder")
	// ErrNotStructured is returned when a property or navigation is applied to a node that does
	// not resolve to a single entity or complex value.
	ErrNotStructured = errors.New("source is not a single entity or complex value")
	// ErrNotCollection is returned when a lambda source is not a collection navigation.
	ErrNotCollection = errors.New("lambda source is not a collection navigation")
	// ErrNotBoolean is returned when a lambda body or filter root is not a predicate.
	ErrNotBoolean = errors.New("expression is not boolean")
	// ErrNestedComparison is returned when a comparison or lambda is used as a comparison operand.
	ErrNestedComparison = errors.New("comparison cannot be nested in a comparison")
	// ErrOpenScope is returned when Finalize is called inside a lambda body.
	ErrOpenScope = errors.New("lambda scope still open")
	// ErrLambdaDepth is returned when lambdas nest deeper than the configured limit.
	ErrLambdaDepth = errors.New("lambda nesting too deep")
	// ErrUnsupportedOperator is returned for unknown comparison operators.
	ErrUnsupportedOperator = errors.New("unsupported comparison operator")
	// ErrUnsupportedLiteral is returned for constant values without an OData literal form.
	ErrUnsupportedLiteral = errors.New("unsupported literal value")
)

// MultiplicityMismatchError reports a navigation traversed with the operation that does not
// match its multiplicity.
type MultiplicityMismatchError struct {
	Navigation string
	Actual     metadata.Multiplicity
	Operation  string
}

func (e *MultiplicityMismatchError) Error() string {
	return fmt.Sprintf("navigation property '%s' has multiplicity %s and cannot be used with %s",
		e.Navigation, e.Actual, e.Operation)
}

// TypeMismatchError reports comparison operands of incomparable kinds.
type TypeMismatchError struct {
	Operator ComparisonOperator
	Left     metadata.ValueKind
	Right    metadata.ValueKind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("cannot compare %s with %s using '%s'", e.Left, e.Right, e.Operator)
}

// SerializationError reports a tree that cannot be rendered.
type SerializationError struct {
	Reason string
}

func (e *SerializationError) Error() string {
	return "cannot serialize filter: " + e.Reason
}
