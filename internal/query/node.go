package query

import (
	"fmt"

	"github.com/nlstn/go-odata-filter/internal/metadata"
	"github.com/nlstn/go-odata-filter/internal/scope"
)

// NodeKind identifies the variant of an expression node.
type NodeKind int

const (
	// KindConstant is a literal value.
	KindConstant NodeKind = iota + 1
	// KindRangeVariable references the root iterator or a lambda variable.
	KindRangeVariable
	// KindPropertyAccess reads a structural property of its source.
	KindPropertyAccess
	// KindSingleNavigation follows a One or ZeroOrOne navigation property.
	KindSingleNavigation
	// KindCollectionNavigation follows a Many navigation property; only valid as a lambda source.
	KindCollectionNavigation
	// KindBinaryComparison compares two operands.
	KindBinaryComparison
	// KindLambda is an any/all predicate over a collection navigation.
	KindLambda
)

func (k NodeKind) String() string {
	switch k {
	case KindConstant:
		return "Constant"
	case KindRangeVariable:
		return "RangeVariableReference"
	case KindPropertyAccess:
		return "PropertyAccess"
	case KindSingleNavigation:
		return "SingleNavigation"
	case KindCollectionNavigation:
		return "CollectionNavigation"
	case KindBinaryComparison:
		return "BinaryComparison"
	case KindLambda:
		return "Lambda"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// ComparisonOperator is a binary comparison operator of the filter grammar.
type ComparisonOperator string

const (
	OpEqual              ComparisonOperator = "eq"
	OpNotEqual           ComparisonOperator = "ne"
	OpGreaterThan        ComparisonOperator = "gt"
	OpGreaterThanOrEqual ComparisonOperator = "ge"
	OpLessThan           ComparisonOperator = "lt"
	OpLessThanOrEqual    ComparisonOperator = "le"
)

func (op ComparisonOperator) valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return true
	default:
		return false
	}
}

// LambdaKind distinguishes any from all.
type LambdaKind string

const (
	LambdaAny LambdaKind = "any"
	LambdaAll LambdaKind = "all"
)

type nodeID int32

const noNode nodeID = -1

// node is one arena slot. Which fields are meaningful depends on kind.
type node struct {
	kind NodeKind

	value    interface{}
	literal  string
	edmType  string
	variable *scope.Variable
	property *metadata.Property
	nav      *metadata.NavigationProperty
	op       ComparisonOperator
	lambda   LambdaKind

	source nodeID
	left   nodeID
	right  nodeID
	body   nodeID

	// structured is the entity or complex type a node resolves to (the element type for
	// collection navigations); nil for scalar and boolean nodes.
	structured *metadata.EntityType
	entitySet  *metadata.EntitySet
	valueKind  metadata.ValueKind
	// depends is the innermost range variable the node references, nil for constants.
	depends *scope.Variable
}

func newNode(kind NodeKind) node {
	return node{kind: kind, source: noNode, left: noNode, right: noNode, body: noNode}
}

// arena owns every node built for one filter. Nodes only ever reference lower indices.
type arena struct {
	nodes []node
}

func (a *arena) add(n node) nodeID {
	a.nodes = append(a.nodes, n)
	return nodeID(len(a.nodes) - 1)
}

func (a *arena) get(id nodeID) *node {
	return &a.nodes[id]
}

// NodeRef is a handle to a node under construction. It is only meaningful for the Builder
// that returned it.
type NodeRef struct {
	arena *arena
	id    nodeID
}

// IsZero reports whether the reference was never assigned.
func (r NodeRef) IsZero() bool { return r.arena == nil }

// Kind returns the kind of the referenced node, or 0 for a zero reference.
func (r NodeRef) Kind() NodeKind {
	if r.arena == nil || int(r.id) >= len(r.arena.nodes) {
		return 0
	}
	return r.arena.get(r.id).kind
}

func deeper(a, b *scope.Variable) *scope.Variable {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Depth() > a.Depth():
		return b
	default:
		return a
	}
}
