package query

import (
	"github.com/cespare/xxhash/v2"
	"github.com/nlstn/go-odata-filter/internal/metadata"
	"github.com/nlstn/go-odata-filter/internal/scope"
)

// FilterClause is a finalized expression tree together with the root range variable it is
// evaluated against. It is immutable and safe for concurrent readers.
type FilterClause struct {
	nodes    []node
	root     nodeID
	variable *scope.Variable
	set      *metadata.EntitySet
	model    *metadata.Model
	frozen   bool
}

// Root returns a read-only view of the root expression.
func (c *FilterClause) Root() Node {
	if c == nil || !c.frozen {
		return Node{}
	}
	return Node{clause: c, id: c.root}
}

// RangeVariable returns the root range variable ($it).
func (c *FilterClause) RangeVariable() *scope.Variable { return c.variable }

// EntitySet returns the entity set the root range variable iterates over.
func (c *FilterClause) EntitySet() *metadata.EntitySet { return c.set }

// Model returns the schema the clause was validated against.
func (c *FilterClause) Model() *metadata.Model { return c.model }

// String returns the canonical filter text, or an empty string if the clause cannot be rendered.
func (c *FilterClause) String() string {
	text, err := Render(c)
	if err != nil {
		return ""
	}
	return text
}

// Fingerprint returns a 64-bit hash of the canonical rendering. Identical trees always have
// identical fingerprints, which makes it usable as a cache key.
func (c *FilterClause) Fingerprint() (uint64, error) {
	text, err := Render(c)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64String(text), nil
}

// Node is a read-only view of one node of a FilterClause. The zero Node is invalid.
type Node struct {
	clause *FilterClause
	id     nodeID
}

// Valid reports whether the view refers to a node.
func (n Node) Valid() bool { return n.clause != nil }

func (n Node) get() *node {
	if n.clause == nil {
		return nil
	}
	return &n.clause.nodes[n.id]
}

func (n Node) child(id nodeID) Node {
	if n.clause == nil || id == noNode {
		return Node{}
	}
	return Node{clause: n.clause, id: id}
}

// Kind returns the node variant, or 0 for an invalid view.
func (n Node) Kind() NodeKind {
	if nd := n.get(); nd != nil {
		return nd.kind
	}
	return 0
}

// Source returns the source of a property access, navigation or lambda.
func (n Node) Source() Node {
	if nd := n.get(); nd != nil {
		return n.child(nd.source)
	}
	return Node{}
}

// Left returns the left operand of a comparison.
func (n Node) Left() Node {
	if nd := n.get(); nd != nil {
		return n.child(nd.left)
	}
	return Node{}
}

// Right returns the right operand of a comparison.
func (n Node) Right() Node {
	if nd := n.get(); nd != nil {
		return n.child(nd.right)
	}
	return Node{}
}

// Body returns the predicate of a lambda.
func (n Node) Body() Node {
	if nd := n.get(); nd != nil {
		return n.child(nd.body)
	}
	return Node{}
}

// Property returns the property read by a property access.
func (n Node) Property() *metadata.Property {
	if nd := n.get(); nd != nil {
		return nd.property
	}
	return nil
}

// Navigation returns the navigation property followed by a navigation node.
func (n Node) Navigation() *metadata.NavigationProperty {
	if nd := n.get(); nd != nil {
		return nd.nav
	}
	return nil
}

// Variable returns the referenced variable, or the variable bound by a lambda.
func (n Node) Variable() *scope.Variable {
	if nd := n.get(); nd != nil {
		return nd.variable
	}
	return nil
}

// Operator returns the operator of a comparison.
func (n Node) Operator() ComparisonOperator {
	if nd := n.get(); nd != nil {
		return nd.op
	}
	return ""
}

// LambdaKind returns any or all for lambda nodes.
func (n Node) LambdaKind() LambdaKind {
	if nd := n.get(); nd != nil {
		return nd.lambda
	}
	return ""
}

// Literal returns the literal text of a constant.
func (n Node) Literal() string {
	if nd := n.get(); nd != nil {
		return nd.literal
	}
	return ""
}

// Value returns the Go value of a constant.
func (n Node) Value() interface{} {
	if nd := n.get(); nd != nil {
		return nd.value
	}
	return nil
}

// EdmType returns the EDM type of a constant or property access.
func (n Node) EdmType() string {
	if nd := n.get(); nd != nil {
		return nd.edmType
	}
	return ""
}

// ValueKind returns the value family the node evaluates to.
func (n Node) ValueKind() metadata.ValueKind {
	if nd := n.get(); nd != nil {
		return nd.valueKind
	}
	return metadata.KindUnknown
}

// StructuredType returns the entity or complex type the node resolves to, if any.
func (n Node) StructuredType() *metadata.EntityType {
	if nd := n.get(); nd != nil {
		return nd.structured
	}
	return nil
}

// EntitySet returns the entity set an entity-valued node resolves into, when known.
func (n Node) EntitySet() *metadata.EntitySet {
	if nd := n.get(); nd != nil {
		return nd.entitySet
	}
	return nil
}
