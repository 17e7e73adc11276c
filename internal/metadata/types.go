package metadata

import (
	"fmt"
	"strings"
)

// Multiplicity is the cardinality of a navigation property's target.
type Multiplicity int

const (
	// MultiplicityOne navigates to exactly one target entity.
	MultiplicityOne Multiplicity = iota + 1
	// MultiplicityZeroOrOne navigates to at most one target entity.
	MultiplicityZeroOrOne
	// MultiplicityMany navigates to a collection of target entities.
	MultiplicityMany
)

func (m Multiplicity) String() string {
	switch m {
	case MultiplicityOne:
		return "One"
	case MultiplicityZeroOrOne:
		return "ZeroOrOne"
	case MultiplicityMany:
		return "Many"
	default:
		return fmt.Sprintf("Multiplicity(%d)", int(m))
	}
}

// IsSingle reports whether the multiplicity addresses a single entity.
func (m Multiplicity) IsSingle() bool {
	return m == MultiplicityOne || m == MultiplicityZeroOrOne
}

func (m Multiplicity) valid() bool {
	return m >= MultiplicityOne && m <= MultiplicityMany
}

// Primitive EDM type names accepted as property types.
const (
	EdmString         = "Edm.String"
	EdmBoolean        = "Edm.Boolean"
	EdmByte           = "Edm.Byte"
	EdmSByte          = "Edm.SByte"
	EdmInt16          = "Edm.Int16"
	EdmInt32          = "Edm.Int32"
	EdmInt64          = "Edm.Int64"
	EdmSingle         = "Edm.Single"
	EdmDouble         = "Edm.Double"
	EdmDecimal        = "Edm.Decimal"
	EdmGuid           = "Edm.Guid"
	EdmDate           = "Edm.Date"
	EdmDateTimeOffset = "Edm.DateTimeOffset"
	EdmTimeOfDay      = "Edm.TimeOfDay"
	EdmDuration       = "Edm.Duration"
	EdmBinary         = "Edm.Binary"
)

// ValueKind groups EDM types into families that may be compared with each other.
type ValueKind int

const (
	KindUnknown ValueKind = iota
	KindNumeric
	KindString
	KindBoolean
	KindGuid
	KindDate
	KindDateTimeOffset
	KindTimeOfDay
	KindDuration
	KindBinary
	KindNull
	KindComplex
	KindEntity
	KindCollection
)

var valueKindNames = map[ValueKind]string{
	KindUnknown:        "Unknown",
	KindNumeric:        "Numeric",
	KindString:         "String",
	KindBoolean:        "Boolean",
	KindGuid:           "Guid",
	KindDate:           "Date",
	KindDateTimeOffset: "DateTimeOffset",
	KindTimeOfDay:      "TimeOfDay",
	KindDuration:       "Duration",
	KindBinary:         "Binary",
	KindNull:           "Null",
	KindComplex:        "Complex",
	KindEntity:         "Entity",
	KindCollection:     "Collection",
}

func (k ValueKind) String() string {
	if name, ok := valueKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// IsScalar reports whether values of the kind can appear in a comparison.
func (k ValueKind) IsScalar() bool {
	switch k {
	case KindUnknown, KindComplex, KindEntity, KindCollection:
		return false
	default:
		return true
	}
}

// Comparable reports whether two operand kinds may be compared.
// Null compares with every scalar kind.
func Comparable(left, right ValueKind) bool {
	if !left.IsScalar() || !right.IsScalar() {
		return false
	}
	if left == KindNull || right == KindNull {
		return true
	}
	return left == right
}

// KindOf returns the value kind of a primitive EDM type name.
func KindOf(edmType string) ValueKind {
	switch edmType {
	case EdmByte, EdmSByte, EdmInt16, EdmInt32, EdmInt64, EdmSingle, EdmDouble, EdmDecimal:
		return KindNumeric
	case EdmString:
		return KindString
	case EdmBoolean:
		return KindBoolean
	case EdmGuid:
		return KindGuid
	case EdmDate:
		return KindDate
	case EdmDateTimeOffset:
		return KindDateTimeOffset
	case EdmTimeOfDay:
		return KindTimeOfDay
	case EdmDuration:
		return KindDuration
	case EdmBinary:
		return KindBinary
	default:
		return KindUnknown
	}
}

// IsPrimitive reports whether name is one of the supported primitive EDM types.
func IsPrimitive(name string) bool {
	return KindOf(name) != KindUnknown
}

// Property is a structural property declared on an entity or complex type.
type Property struct {
	name       string
	typeName   string
	nullable   bool
	columnName string
	owner      *EntityType
	complex    *EntityType
}

// Name returns the declared property name.
func (p *Property) Name() string { return p.name }

// Type returns the EDM type name or the qualified complex type name.
func (p *Property) Type() string { return p.typeName }

// Nullable reports whether the property accepts null.
func (p *Property) Nullable() bool { return p.nullable }

// ColumnName returns the database column used by the SQL projection.
func (p *Property) ColumnName() string { return p.columnName }

// Owner returns the type declaring the property.
func (p *Property) Owner() *EntityType { return p.owner }

// ComplexType returns the complex type of a complex-valued property, or nil.
func (p *Property) ComplexType() *EntityType { return p.complex }

// Kind returns the comparison family of the property's values.
func (p *Property) Kind() ValueKind {
	if p.complex != nil {
		return KindComplex
	}
	return KindOf(p.typeName)
}

// NavigationProperty is a unidirectional relationship between two entity types.
type NavigationProperty struct {
	name         string
	source       *EntityType
	target       *EntityType
	multiplicity Multiplicity
	constraint   *ReferentialConstraint
}

// ReferentialConstraint pairs the dependent property holding the foreign key with the
// principal property it references.
type ReferentialConstraint struct {
	Dependent *Property
	Principal *Property
}

// Name returns the navigation property name.
func (n *NavigationProperty) Name() string { return n.name }

// Source returns the declaring entity type.
func (n *NavigationProperty) Source() *EntityType { return n.source }

// Target returns the entity type the navigation leads to.
func (n *NavigationProperty) Target() *EntityType { return n.target }

// Multiplicity returns the target cardinality.
func (n *NavigationProperty) Multiplicity() Multiplicity { return n.multiplicity }

// Constraint returns the referential constraint, or nil when none was declared.
func (n *NavigationProperty) Constraint() *ReferentialConstraint { return n.constraint }

// EntityType describes an entity type or, when IsComplex reports true, a complex type.
// Declarations are only added through a ModelBuilder.
type EntityType struct {
	namespace       string
	name            string
	complex         bool
	tableName       string
	properties      []*Property
	propertyIndex   map[string]*Property
	navigations     []*NavigationProperty
	navigationIndex map[string]*NavigationProperty
	keys            []*Property
}

func newEntityType(namespace, name string, complex bool) *EntityType {
	return &EntityType{
		namespace:       namespace,
		name:            name,
		complex:         complex,
		tableName:       toSnakeCase(pluralize(name)),
		propertyIndex:   make(map[string]*Property),
		navigationIndex: make(map[string]*NavigationProperty),
	}
}

// Name returns the unqualified type name.
func (t *EntityType) Name() string { return t.name }

// Namespace returns the schema namespace of the type.
func (t *EntityType) Namespace() string { return t.namespace }

// QualifiedName returns Namespace.Name.
func (t *EntityType) QualifiedName() string {
	if t.namespace == "" {
		return t.name
	}
	return t.namespace + "." + t.name
}

// IsComplex reports whether the type is a complex (keyless, embedded) type.
func (t *EntityType) IsComplex() bool { return t.complex }

// TableName returns the database table backing the type.
func (t *EntityType) TableName() string { return t.tableName }

// Properties returns the declared structural properties in declaration order.
func (t *EntityType) Properties() []*Property {
	return append([]*Property(nil), t.properties...)
}

// NavigationProperties returns the declared navigation properties in declaration order.
func (t *EntityType) NavigationProperties() []*NavigationProperty {
	return append([]*NavigationProperty(nil), t.navigations...)
}

// Keys returns the key properties in declaration order.
func (t *EntityType) Keys() []*Property {
	return append([]*Property(nil), t.keys...)
}

// SingleKey returns the key property when the key is not composite.
func (t *EntityType) SingleKey() (*Property, bool) {
	if len(t.keys) != 1 {
		return nil, false
	}
	return t.keys[0], true
}

// FindProperty returns the structural property with the given name.
func (t *EntityType) FindProperty(name string) (*Property, error) {
	if prop, ok := t.propertyIndex[strings.TrimSpace(name)]; ok {
		return prop, nil
	}
	return nil, &SchemaNotFoundError{Kind: "property", Name: name, Owner: t.QualifiedName()}
}

// FindNavigation returns the navigation property with the given name.
func (t *EntityType) FindNavigation(name string) (*NavigationProperty, error) {
	if nav, ok := t.navigationIndex[strings.TrimSpace(name)]; ok {
		return nav, nil
	}
	return nil, &SchemaNotFoundError{Kind: "navigation property", Name: name, Owner: t.QualifiedName()}
}

// Declares reports whether prop is one of the type's own properties.
func (t *EntityType) Declares(prop *Property) bool {
	return prop != nil && prop.owner == t
}

// DeclaresNavigation reports whether nav is declared on the type.
func (t *EntityType) DeclaresNavigation(nav *NavigationProperty) bool {
	return nav != nil && nav.source == t
}

func (t *EntityType) hasMember(name string) bool {
	_, isProp := t.propertyIndex[name]
	_, isNav := t.navigationIndex[name]
	return isProp || isNav
}

// EntitySet is a named collection of entities of one entity type.
type EntitySet struct {
	name     string
	typ      *EntityType
	bindings map[*NavigationProperty]*EntitySet
}

// Name returns the entity set name used as the URI path segment.
func (s *EntitySet) Name() string { return s.name }

// EntityType returns the type of the set's members.
func (s *EntitySet) EntityType() *EntityType { return s.typ }

// NavigationTarget returns the entity set a navigation from this set resolves into.
func (s *EntitySet) NavigationTarget(nav *NavigationProperty) (*EntitySet, bool) {
	target, ok := s.bindings[nav]
	return target, ok
}
