package metadata

import (
	"fmt"
	"log/slog"
	"strings"
)

// ModelBuilder collects schema declarations and produces a frozen Model.
// A builder is not safe for concurrent use; once Build returns, every further call fails
// with ErrModelFrozen and the builder should be discarded.
type ModelBuilder struct {
	namespace string
	types     []*EntityType
	typeIndex map[string]*EntityType
	sets      []*EntitySet
	setIndex  map[string]*EntitySet
	// pending holds properties whose complex type was not declared yet when added.
	pending []*Property
	logger  *slog.Logger
	frozen  bool
}

// NewModelBuilder creates a builder whose types live in the given namespace.
func NewModelBuilder(namespace string) *ModelBuilder {
	return &ModelBuilder{
		namespace: strings.TrimSpace(namespace),
		typeIndex: make(map[string]*EntityType),
		setIndex:  make(map[string]*EntitySet),
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger used while building. If logger is nil, slog.Default() is used.
func (b *ModelBuilder) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	b.logger = logger
}

// AddEntityType declares a new entity type.
func (b *ModelBuilder) AddEntityType(name string) (*EntityType, error) {
	return b.addType(name, false)
}

// AddComplexType declares a new complex type. Complex types have no keys and cannot be the
// source or target of a navigation property.
func (b *ModelBuilder) AddComplexType(name string) (*EntityType, error) {
	return b.addType(name, true)
}

func (b *ModelBuilder) addType(name string, complex bool) (*EntityType, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	if !isIdentifier(name) {
		return nil, fmt.Errorf("%w: type name '%s'", ErrInvalidName, name)
	}
	t := newEntityType(b.namespace, name, complex)
	if _, exists := b.typeIndex[t.QualifiedName()]; exists {
		return nil, fmt.Errorf("%w: '%s'", ErrDuplicateType, t.QualifiedName())
	}
	b.types = append(b.types, t)
	b.typeIndex[t.QualifiedName()] = t
	return t, nil
}

// AddProperty declares a structural property on t. typeName is either a primitive EDM type
// (e.g. Edm.Int32) or the name of a complex type of this model; complex types may be declared
// after the properties that use them.
func (b *ModelBuilder) AddProperty(t *EntityType, name, typeName string, nullable bool) (*Property, error) {
	if err := b.checkOwned(t); err != nil {
		return nil, err
	}
	if !isIdentifier(name) {
		return nil, fmt.Errorf("%w: property name '%s'", ErrInvalidName, name)
	}
	if t.hasMember(name) {
		return nil, &DuplicatePropertyError{Type: t.QualifiedName(), Name: name}
	}
	typeName = strings.TrimSpace(typeName)
	if typeName == "" {
		return nil, fmt.Errorf("%w: property '%s' has no type", ErrInvalidDeclaration, name)
	}

	prop := &Property{
		name:       name,
		typeName:   typeName,
		nullable:   nullable,
		columnName: toSnakeCase(name),
		owner:      t,
	}
	if !IsPrimitive(typeName) {
		complexType, ok := b.lookupType(typeName)
		switch {
		case !ok:
			b.pending = append(b.pending, prop)
		case !complexType.complex:
			return nil, fmt.Errorf("%w: property '%s' uses entity type '%s'; use a navigation property", ErrInvalidDeclaration, name, typeName)
		default:
			prop.complex = complexType
			prop.typeName = complexType.QualifiedName()
		}
	}

	t.properties = append(t.properties, prop)
	t.propertyIndex[name] = prop
	return prop, nil
}

// AddKey appends key properties to an entity type. Keys must be non-nullable primitive
// properties declared on t.
func (b *ModelBuilder) AddKey(t *EntityType, props ...*Property) error {
	if err := b.checkOwned(t); err != nil {
		return err
	}
	if t.complex {
		return fmt.Errorf("%w: complex type '%s' cannot declare keys", ErrInvalidDeclaration, t.QualifiedName())
	}
	for _, prop := range props {
		if !t.Declares(prop) {
			return &SchemaNotFoundError{Kind: "key property", Name: propertyName(prop), Owner: t.QualifiedName()}
		}
		if prop.nullable || prop.complex != nil || !IsPrimitive(prop.typeName) {
			return fmt.Errorf("%w: key property '%s' must be a non-nullable primitive", ErrInvalidDeclaration, prop.name)
		}
		for _, existing := range t.keys {
			if existing == prop {
				return fmt.Errorf("%w: '%s' is already part of the key of '%s'", ErrInvalidDeclaration, prop.name, t.QualifiedName())
			}
		}
		t.keys = append(t.keys, prop)
	}
	return nil
}

// SetTableName overrides the table used for t by the SQL projection.
func (b *ModelBuilder) SetTableName(t *EntityType, table string) error {
	if err := b.checkOwned(t); err != nil {
		return err
	}
	if strings.TrimSpace(table) == "" {
		return fmt.Errorf("%w: empty table name for '%s'", ErrInvalidName, t.QualifiedName())
	}
	t.tableName = table
	return nil
}

// AddEntitySet declares a named set of entities of type t.
func (b *ModelBuilder) AddEntitySet(name string, t *EntityType) (*EntitySet, error) {
	if err := b.checkOwned(t); err != nil {
		return nil, err
	}
	if !isIdentifier(name) {
		return nil, fmt.Errorf("%w: entity set name '%s'", ErrInvalidName, name)
	}
	if t.complex {
		return nil, fmt.Errorf("%w: entity set '%s' cannot hold complex type '%s'", ErrInvalidDeclaration, name, t.QualifiedName())
	}
	if _, exists := b.setIndex[name]; exists {
		return nil, fmt.Errorf("%w: '%s'", ErrDuplicateEntitySet, name)
	}
	set := &EntitySet{
		name:     name,
		typ:      t,
		bindings: make(map[*NavigationProperty]*EntitySet),
	}
	b.sets = append(b.sets, set)
	b.setIndex[name] = set
	return set, nil
}

// AddNavigation declares a unidirectional navigation property from source to target.
// Cycles between types are allowed.
func (b *ModelBuilder) AddNavigation(source *EntityType, name string, target *EntityType, multiplicity Multiplicity) (*NavigationProperty, error) {
	if err := b.checkOwned(source); err != nil {
		return nil, err
	}
	if err := b.checkOwned(target); err != nil {
		return nil, err
	}
	if !isIdentifier(name) {
		return nil, fmt.Errorf("%w: navigation name '%s'", ErrInvalidName, name)
	}
	if source.complex || target.complex {
		return nil, fmt.Errorf("%w: navigation '%s' must connect entity types", ErrInvalidDeclaration, name)
	}
	if !multiplicity.valid() {
		return nil, fmt.Errorf("%w: navigation '%s' has unknown multiplicity %s", ErrInvalidDeclaration, name, multiplicity)
	}
	if source.hasMember(name) {
		return nil, &DuplicateNavigationError{Type: source.QualifiedName(), Name: name}
	}

	nav := &NavigationProperty{
		name:         name,
		source:       source,
		target:       target,
		multiplicity: multiplicity,
	}
	source.navigations = append(source.navigations, nav)
	source.navigationIndex[name] = nav
	return nav, nil
}

// AddReferentialConstraint records which property holds the foreign key of nav.
// For single-valued navigations the dependent property is declared on the source type and
// references a property of the target; for collection navigations the dependent property is
// declared on the target type and references a property of the source.
func (b *ModelBuilder) AddReferentialConstraint(nav *NavigationProperty, dependent, principal *Property) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if nav == nil || !b.owns(nav.source) {
		return &SchemaNotFoundError{Kind: "navigation property", Name: navigationName(nav)}
	}
	dependentType, principalType := nav.source, nav.target
	if nav.multiplicity == MultiplicityMany {
		dependentType, principalType = nav.target, nav.source
	}
	if !dependentType.Declares(dependent) {
		return &SchemaNotFoundError{Kind: "dependent property", Name: propertyName(dependent), Owner: dependentType.QualifiedName()}
	}
	if !principalType.Declares(principal) {
		return &SchemaNotFoundError{Kind: "principal property", Name: propertyName(principal), Owner: principalType.QualifiedName()}
	}
	if dependent.Kind() != principal.Kind() || !dependent.Kind().IsScalar() {
		return fmt.Errorf("%w: constraint on '%s' pairs %s with %s", ErrInvalidDeclaration, nav.name, dependent.Kind(), principal.Kind())
	}
	nav.constraint = &ReferentialConstraint{Dependent: dependent, Principal: principal}
	return nil
}

// BindNavigationTarget records the entity set that nav resolves into when navigated from set.
func (b *ModelBuilder) BindNavigationTarget(set *EntitySet, nav *NavigationProperty, target *EntitySet) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if set == nil || b.setIndex[set.name] != set {
		return &SchemaNotFoundError{Kind: "entity set", Name: setName(set)}
	}
	if target == nil || b.setIndex[target.name] != target {
		return &SchemaNotFoundError{Kind: "entity set", Name: setName(target)}
	}
	if !set.typ.DeclaresNavigation(nav) {
		return &SchemaNotFoundError{Kind: "navigation property", Name: navigationName(nav), Owner: set.typ.QualifiedName()}
	}
	if target.typ != nav.target {
		return fmt.Errorf("%w: navigation '%s' targets '%s' but entity set '%s' holds '%s'",
			ErrInvalidDeclaration, nav.name, nav.target.QualifiedName(), target.name, target.typ.QualifiedName())
	}
	if existing, ok := set.bindings[nav]; ok && existing != target {
		return fmt.Errorf("%w: navigation '%s' of '%s' is already bound to '%s'", ErrInvalidDeclaration, nav.name, set.name, existing.name)
	}
	set.bindings[nav] = target
	return nil
}

// FindEntityType looks up a type declared so far by qualified or simple name.
func (b *ModelBuilder) FindEntityType(name string) (*EntityType, error) {
	if t, ok := b.lookupType(name); ok {
		return t, nil
	}
	return nil, &SchemaNotFoundError{Kind: "entity type", Name: name}
}

// Build resolves forward references and freezes the declarations into a Model.
func (b *ModelBuilder) Build() (*Model, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	for _, prop := range b.pending {
		complexType, ok := b.lookupType(prop.typeName)
		if !ok {
			return nil, &SchemaNotFoundError{Kind: "complex type", Name: prop.typeName, Owner: prop.owner.QualifiedName()}
		}
		if !complexType.complex {
			return nil, fmt.Errorf("%w: property '%s' uses entity type '%s'; use a navigation property", ErrInvalidDeclaration, prop.name, prop.typeName)
		}
		prop.complex = complexType
		prop.typeName = complexType.QualifiedName()
	}
	b.pending = nil
	b.frozen = true

	model := newModel(b.namespace, b.types, b.sets)
	b.logger.Info("Schema model built",
		"namespace", b.namespace,
		"types", len(b.types),
		"entity_sets", len(b.sets),
	)
	return model, nil
}

func (b *ModelBuilder) checkOpen() error {
	if b.frozen {
		return ErrModelFrozen
	}
	return nil
}

func (b *ModelBuilder) checkOwned(t *EntityType) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if !b.owns(t) {
		name := ""
		if t != nil {
			name = t.QualifiedName()
		}
		return &SchemaNotFoundError{Kind: "entity type", Name: name}
	}
	return nil
}

func (b *ModelBuilder) owns(t *EntityType) bool {
	return t != nil && b.typeIndex[t.QualifiedName()] == t
}

func (b *ModelBuilder) lookupType(name string) (*EntityType, bool) {
	name = strings.TrimSpace(name)
	if t, ok := b.typeIndex[name]; ok {
		return t, true
	}
	if b.namespace != "" {
		if t, ok := b.typeIndex[b.namespace+"."+name]; ok {
			return t, true
		}
	}
	return nil, false
}

func propertyName(p *Property) string {
	if p == nil {
		return ""
	}
	return p.name
}

func navigationName(n *NavigationProperty) string {
	if n == nil {
		return ""
	}
	return n.name
}

func setName(s *EntitySet) string {
	if s == nil {
		return ""
	}
	return s.name
}

// isIdentifier reports whether s is a simple OData identifier.
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
