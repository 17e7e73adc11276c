package query

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nlstn/go-odata-filter/internal/metadata"
	"github.com/nlstn/go-odata-filter/internal/scope"
)

// DefaultMaxLambdaDepth is the nesting limit used when Config.MaxLambdaDepth is unset.
const DefaultMaxLambdaDepth = 16

// Config controls optional Builder behaviour.
type Config struct {
	// Logger receives debug output about scopes and finalization. Defaults to slog.Default().
	Logger *slog.Logger

	// MaxLambdaDepth limits how deeply any/all predicates may nest.
	// If set to 0 or left unset, DefaultMaxLambdaDepth is used.
	MaxLambdaDepth int
}

// BodyFunc builds a lambda predicate. it references the lambda's range variable.
type BodyFunc func(it NodeRef) (NodeRef, error)

// Builder constructs a type-checked filter expression over one entity set.
// Every edge is validated against the model as it is added. A Builder is single-use and
// not safe for concurrent use; Finalize turns its nodes into an immutable FilterClause.
type Builder struct {
	model    *metadata.Model
	set      *metadata.EntitySet
	arena    *arena
	root     *scope.Scope
	current  *scope.Scope
	rootRef  NodeRef
	logger   *slog.Logger
	maxDepth int
	done     bool
}

// NewBuilder creates a builder whose root range variable iterates over set.
func NewBuilder(model *metadata.Model, set *metadata.EntitySet, cfg Config) (*Builder, error) {
	if model == nil {
		return nil, errors.New("model cannot be nil")
	}
	if set == nil {
		return nil, &metadata.SchemaNotFoundError{Kind: "entity set"}
	}
	if found, err := model.FindEntitySet(set.Name()); err != nil || found != set {
		return nil, &metadata.SchemaNotFoundError{Kind: "entity set", Name: set.Name()}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxDepth := cfg.MaxLambdaDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxLambdaDepth
	}

	root := scope.NewRoot(set)
	b := &Builder{
		model:    model,
		set:      set,
		arena:    &arena{},
		root:     root,
		current:  root,
		logger:   logger,
		maxDepth: maxDepth,
	}
	b.rootRef = b.variableRef(root.Variable())
	return b, nil
}

// Model returns the schema the builder validates against.
func (b *Builder) Model() *metadata.Model { return b.model }

// Root returns a reference to the root range variable ($it).
func (b *Builder) Root() NodeRef { return b.rootRef }

// RootVariable returns the root range variable.
func (b *Builder) RootVariable() *scope.Variable { return b.root.Variable() }

// Constant adds a literal node for a Go value. Supported values are nil, bool, integers,
// floats, strings, decimal.Decimal, uuid.UUID, time.Time, time.Duration and []byte.
func (b *Builder) Constant(value interface{}) (NodeRef, error) {
	if err := b.checkOpen(); err != nil {
		return NodeRef{}, err
	}
	literal, edmType, err := literalFor(value)
	if err != nil {
		return NodeRef{}, err
	}
	return b.constant(value, literal, edmType), nil
}

// ConstantLiteral adds a literal node whose text is rendered verbatim. edmType must be a
// primitive EDM type, or empty for the null literal.
func (b *Builder) ConstantLiteral(value interface{}, literal, edmType string) (NodeRef, error) {
	if err := b.checkOpen(); err != nil {
		return NodeRef{}, err
	}
	if strings.TrimSpace(literal) == "" {
		return NodeRef{}, fmt.Errorf("%w: empty literal text", ErrUnsupportedLiteral)
	}
	if edmType != "" && !metadata.IsPrimitive(edmType) {
		return NodeRef{}, fmt.Errorf("%w: unknown EDM type '%s'", ErrUnsupportedLiteral, edmType)
	}
	return b.constant(value, literal, edmType), nil
}

func (b *Builder) constant(value interface{}, literal, edmType string) NodeRef {
	n := newNode(KindConstant)
	n.value = value
	n.literal = literal
	n.edmType = edmType
	n.valueKind = metadata.KindNull
	if edmType != "" {
		n.valueKind = metadata.KindOf(edmType)
	}
	return b.add(n)
}

// AccessProperty reads prop from source. prop must be declared on the entity or complex
// type that source resolves to.
func (b *Builder) AccessProperty(source NodeRef, prop *metadata.Property) (NodeRef, error) {
	src, err := b.use(source)
	if err != nil {
		return NodeRef{}, err
	}
	owner, err := singleStructured(src)
	if err != nil {
		return NodeRef{}, err
	}
	if prop == nil {
		return NodeRef{}, &metadata.SchemaNotFoundError{Kind: "property", Owner: owner.QualifiedName()}
	}
	if !owner.Declares(prop) {
		return NodeRef{}, &metadata.SchemaNotFoundError{Kind: "property", Name: prop.Name(), Owner: owner.QualifiedName()}
	}

	n := newNode(KindPropertyAccess)
	n.source = source.id
	n.property = prop
	n.edmType = prop.Type()
	n.structured = prop.ComplexType()
	n.valueKind = prop.Kind()
	n.depends = src.depends
	return b.add(n), nil
}

// AccessPropertyNamed resolves name on the type of source and reads it.
func (b *Builder) AccessPropertyNamed(source NodeRef, name string) (NodeRef, error) {
	src, err := b.use(source)
	if err != nil {
		return NodeRef{}, err
	}
	owner, err := singleStructured(src)
	if err != nil {
		return NodeRef{}, err
	}
	prop, err := owner.FindProperty(name)
	if err != nil {
		return NodeRef{}, err
	}
	return b.AccessProperty(source, prop)
}

// NavigateSingle follows a One or ZeroOrOne navigation property.
func (b *Builder) NavigateSingle(source NodeRef, nav *metadata.NavigationProperty) (NodeRef, error) {
	return b.navigate(source, nav, KindSingleNavigation)
}

// NavigateCollection follows a Many navigation property. The result may only be used as the
// source of Any or All.
func (b *Builder) NavigateCollection(source NodeRef, nav *metadata.NavigationProperty) (NodeRef, error) {
	return b.navigate(source, nav, KindCollectionNavigation)
}

func (b *Builder) navigate(source NodeRef, nav *metadata.NavigationProperty, kind NodeKind) (NodeRef, error) {
	src, err := b.use(source)
	if err != nil {
		return NodeRef{}, err
	}
	owner, err := singleStructured(src)
	if err != nil {
		return NodeRef{}, err
	}
	if nav == nil {
		return NodeRef{}, &metadata.SchemaNotFoundError{Kind: "navigation property", Owner: owner.QualifiedName()}
	}
	if !owner.DeclaresNavigation(nav) {
		return NodeRef{}, &metadata.SchemaNotFoundError{Kind: "navigation property", Name: nav.Name(), Owner: owner.QualifiedName()}
	}

	collection := kind == KindCollectionNavigation
	if collection != (nav.Multiplicity() == metadata.MultiplicityMany) {
		op := "NavigateSingle"
		if collection {
			op = "NavigateCollection"
		}
		return NodeRef{}, &MultiplicityMismatchError{Navigation: nav.Name(), Actual: nav.Multiplicity(), Operation: op}
	}

	n := newNode(kind)
	n.source = source.id
	n.nav = nav
	n.structured = nav.Target()
	n.valueKind = metadata.KindEntity
	if collection {
		n.valueKind = metadata.KindCollection
	}
	if src.entitySet != nil {
		if target, ok := src.entitySet.NavigationTarget(nav); ok {
			n.entitySet = target
		}
	}
	n.depends = src.depends
	return b.add(n), nil
}

// Path follows a slash-separated chain of property and navigation names from source, e.g.
// "Employee/Address/City". Collection navigations are only allowed as the last segment.
func (b *Builder) Path(source NodeRef, path string) (NodeRef, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return NodeRef{}, &metadata.SchemaNotFoundError{Kind: "property path"}
	}
	segments := strings.Split(trimmed, "/")
	current := source
	for i, segment := range segments {
		segment = strings.TrimSpace(segment)
		src, err := b.use(current)
		if err != nil {
			return NodeRef{}, err
		}
		owner, err := singleStructured(src)
		if err != nil {
			return NodeRef{}, fmt.Errorf("segment '%s' of path '%s': %w", segment, trimmed, err)
		}

		if prop, err := owner.FindProperty(segment); err == nil {
			current, err = b.AccessProperty(current, prop)
			if err != nil {
				return NodeRef{}, err
			}
			continue
		}
		nav, err := owner.FindNavigation(segment)
		if err != nil {
			return NodeRef{}, &metadata.SchemaNotFoundError{Kind: "property or navigation property", Name: segment, Owner: owner.QualifiedName()}
		}
		if nav.Multiplicity() == metadata.MultiplicityMany {
			if i != len(segments)-1 {
				return NodeRef{}, &MultiplicityMismatchError{Navigation: nav.Name(), Actual: nav.Multiplicity(), Operation: "a path segment"}
			}
			return b.NavigateCollection(current, nav)
		}
		current, err = b.NavigateSingle(current, nav)
		if err != nil {
			return NodeRef{}, err
		}
	}
	return current, nil
}

// Compare builds a binary comparison. Operands must resolve to comparable value kinds;
// entity-valued operands compare as their single key property.
func (b *Builder) Compare(op ComparisonOperator, left, right NodeRef) (NodeRef, error) {
	if !op.valid() {
		if err := b.checkOpen(); err != nil {
			return NodeRef{}, err
		}
		return NodeRef{}, fmt.Errorf("%w: '%s'", ErrUnsupportedOperator, op)
	}
	l, err := b.use(left)
	if err != nil {
		return NodeRef{}, err
	}
	r, err := b.use(right)
	if err != nil {
		return NodeRef{}, err
	}
	if isPredicate(l) || isPredicate(r) {
		return NodeRef{}, ErrNestedComparison
	}

	lk, rk := operandKind(l), operandKind(r)
	if !metadata.Comparable(lk, rk) {
		return NodeRef{}, &TypeMismatchError{Operator: op, Left: lk, Right: rk}
	}

	n := newNode(KindBinaryComparison)
	n.op = op
	n.left = left.id
	n.right = right.id
	n.valueKind = metadata.KindBoolean
	n.depends = deeper(l.depends, r.depends)
	return b.add(n), nil
}

// Any builds collection/any(variable:body).
func (b *Builder) Any(collection NodeRef, variable string, body BodyFunc) (NodeRef, error) {
	return b.lambda(LambdaAny, collection, variable, body)
}

// All builds collection/all(variable:body).
func (b *Builder) All(collection NodeRef, variable string, body BodyFunc) (NodeRef, error) {
	return b.lambda(LambdaAll, collection, variable, body)
}

func (b *Builder) lambda(kind LambdaKind, collection NodeRef, variable string, body BodyFunc) (NodeRef, error) {
	src, err := b.use(collection)
	if err != nil {
		return NodeRef{}, err
	}
	switch src.kind {
	case KindCollectionNavigation:
	case KindSingleNavigation:
		return NodeRef{}, &MultiplicityMismatchError{Navigation: src.nav.Name(), Actual: src.nav.Multiplicity(), Operation: string(kind)}
	default:
		return NodeRef{}, fmt.Errorf("%w: got %s", ErrNotCollection, src.kind)
	}
	if body == nil {
		return NodeRef{}, fmt.Errorf("%w: %s body builder is nil", ErrNotBoolean, kind)
	}
	if b.current.Depth()+1 > b.maxDepth {
		return NodeRef{}, fmt.Errorf("%w: limit is %d", ErrLambdaDepth, b.maxDepth)
	}

	child, err := b.current.Open(variable, src.structured, src.entitySet, int(collection.id))
	if err != nil {
		return NodeRef{}, err
	}
	b.logger.Debug("Opened lambda scope", "kind", string(kind), "variable", variable, "depth", child.Depth())

	bodyRef, err := b.buildBody(child, body)
	if err != nil {
		return NodeRef{}, err
	}

	n := newNode(KindLambda)
	n.lambda = kind
	n.variable = child.Variable()
	n.source = collection.id
	n.body = bodyRef.id
	n.valueKind = metadata.KindBoolean
	n.depends = src.depends
	return b.add(n), nil
}

// buildBody runs body inside child and closes child afterwards, whatever the outcome.
func (b *Builder) buildBody(child *scope.Scope, body BodyFunc) (ref NodeRef, err error) {
	parent := b.current
	b.current = child
	defer func() {
		b.current = parent
		if closeErr := child.Close(); closeErr != nil && err == nil {
			ref, err = NodeRef{}, closeErr
		}
		b.logger.Debug("Closed lambda scope", "variable", child.Variable().Name())
	}()

	ref, err = body(b.variableRef(child.Variable()))
	if err != nil {
		return NodeRef{}, err
	}
	n, err := b.use(ref)
	if err != nil {
		return NodeRef{}, err
	}
	if !isPredicate(n) {
		return NodeRef{}, fmt.Errorf("%w: lambda body is %s", ErrNotBoolean, n.kind)
	}
	return ref, nil
}

// Finalize freezes the tree rooted at root into a FilterClause evaluated against the root
// range variable. The builder cannot be used afterwards.
func (b *Builder) Finalize(root NodeRef) (*FilterClause, error) {
	n, err := b.use(root)
	if err != nil {
		return nil, err
	}
	if b.current != b.root {
		return nil, ErrOpenScope
	}
	if !isPredicate(n) {
		return nil, fmt.Errorf("%w: filter root is %s", ErrNotBoolean, n.kind)
	}

	b.done = true
	clause := &FilterClause{
		nodes:    b.arena.nodes,
		root:     root.id,
		variable: b.root.Variable(),
		set:      b.set,
		model:    b.model,
		frozen:   true,
	}
	b.logger.Debug("Filter clause finalized", "entity_set", b.set.Name(), "nodes", len(clause.nodes))
	return clause, nil
}

func (b *Builder) variableRef(v *scope.Variable) NodeRef {
	n := newNode(KindRangeVariable)
	n.variable = v
	n.structured = v.Type()
	n.entitySet = v.EntitySet()
	n.valueKind = metadata.KindEntity
	if !v.IsRoot() {
		n.depends = v
	}
	return b.add(n)
}

func (b *Builder) add(n node) NodeRef {
	return NodeRef{arena: b.arena, id: b.arena.add(n)}
}

func (b *Builder) checkOpen() error {
	if b.done {
		return ErrBuilderFinalized
	}
	return nil
}

// use validates that ref may become a child of a new node right now.
func (b *Builder) use(ref NodeRef) (*node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	if ref.arena != b.arena || ref.id < 0 || int(ref.id) >= len(b.arena.nodes) {
		return nil, ErrForeignNode
	}
	n := b.arena.get(ref.id)
	if err := b.current.Check(n.depends); err != nil {
		return nil, err
	}
	return n, nil
}

// singleStructured returns the entity or complex type of a single-valued structured node.
// isPredicate reports whether n is a comparison or a lambda. Boolean constants and
// properties are operands only.
func isPredicate(n *node) bool {
	return n.kind == KindBinaryComparison || n.kind == KindLambda
}

func singleStructured(n *node) (*metadata.EntityType, error) {
	switch n.kind {
	case KindRangeVariable, KindSingleNavigation:
		return n.structured, nil
	case KindPropertyAccess:
		if n.structured != nil {
			return n.structured, nil
		}
	case KindCollectionNavigation:
		return nil, fmt.Errorf("%w: collection navigation '%s' must be used through any or all", ErrNotStructured, n.nav.Name())
	}
	return nil, fmt.Errorf("%w: got %s", ErrNotStructured, n.kind)
}

// operandKind is the kind a node contributes to a comparison.
func operandKind(n *node) metadata.ValueKind {
	if n.valueKind == metadata.KindEntity && n.structured != nil {
		if key, ok := n.structured.SingleKey(); ok {
			return key.Kind()
		}
	}
	return n.valueKind
}
