package query

import (
	"fmt"
	"strings"
)

// position tells the renderer how a node's text will be consumed.
type position int

const (
	// positionOperand is a standalone operand or predicate.
	positionOperand position = iota
	// positionPathPrefix is the source of a property access or navigation; the root variable
	// renders as nothing here.
	positionPathPrefix
	// positionLambdaSource is the collection a lambda ranges over.
	positionLambdaSource
)

// Render returns the canonical $filter text of a finalized clause. It either returns the
// complete text or an error; partial output is never produced.
func Render(clause *FilterClause) (string, error) {
	if clause == nil || !clause.frozen {
		return "", &SerializationError{Reason: "filter clause is not finalized"}
	}
	var sb strings.Builder
	if err := renderNode(&sb, clause, clause.root, positionOperand); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func renderNode(sb *strings.Builder, c *FilterClause, id nodeID, pos position) error {
	if id < 0 || int(id) >= len(c.nodes) {
		return &SerializationError{Reason: fmt.Sprintf("node %d is out of range", id)}
	}
	n := &c.nodes[id]

	switch n.kind {
	case KindConstant:
		sb.WriteString(n.literal)

	case KindRangeVariable:
		if n.variable.IsRoot() && pos == positionPathPrefix {
			return nil
		}
		sb.WriteString(n.variable.Name())

	case KindPropertyAccess:
		return renderSegment(sb, c, n.source, n.property.Name())

	case KindSingleNavigation:
		return renderSegment(sb, c, n.source, n.nav.Name())

	case KindCollectionNavigation:
		if pos != positionLambdaSource {
			return &SerializationError{Reason: fmt.Sprintf("collection navigation '%s' can only be rendered as the source of any or all", n.nav.Name())}
		}
		return renderSegment(sb, c, n.source, n.nav.Name())

	case KindBinaryComparison:
		if err := renderNode(sb, c, n.left, positionOperand); err != nil {
			return err
		}
		sb.WriteByte(' ')
		sb.WriteString(string(n.op))
		sb.WriteByte(' ')
		return renderNode(sb, c, n.right, positionOperand)

	case KindLambda:
		if err := renderNode(sb, c, n.source, positionLambdaSource); err != nil {
			return err
		}
		sb.WriteByte('/')
		sb.WriteString(string(n.lambda))
		sb.WriteByte('(')
		sb.WriteString(n.variable.Name())
		sb.WriteByte(':')
		if err := renderNode(sb, c, n.body, positionOperand); err != nil {
			return err
		}
		sb.WriteByte(')')

	default:
		return &SerializationError{Reason: fmt.Sprintf("unknown node kind %s", n.kind)}
	}
	return nil
}

// renderSegment writes source followed by "/name", or just name when source is the root.
func renderSegment(sb *strings.Builder, c *FilterClause, source nodeID, name string) error {
	before := sb.Len()
	if err := renderNode(sb, c, source, positionPathPrefix); err != nil {
		return err
	}
	if sb.Len() > before {
		sb.WriteByte('/')
	}
	sb.WriteString(name)
	return nil
}
