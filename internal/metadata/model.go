package metadata

import "strings"

// Model is a frozen schema: entity and complex types, their properties and navigations,
// and the entity sets exposing them. A Model is read-only and safe for concurrent use.
type Model struct {
	namespace string
	types     []*EntityType
	typeIndex map[string]*EntityType
	sets      []*EntitySet
	setIndex  map[string]*EntitySet
}

func newModel(namespace string, types []*EntityType, sets []*EntitySet) *Model {
	m := &Model{
		namespace: namespace,
		types:     append([]*EntityType(nil), types...),
		typeIndex: make(map[string]*EntityType, len(types)),
		sets:      append([]*EntitySet(nil), sets...),
		setIndex:  make(map[string]*EntitySet, len(sets)),
	}
	for _, t := range m.types {
		m.typeIndex[t.QualifiedName()] = t
	}
	for _, s := range m.sets {
		m.setIndex[s.name] = s
	}
	return m
}

// Namespace returns the schema namespace.
func (m *Model) Namespace() string { return m.namespace }

// EntityTypes returns all declared entity and complex types in declaration order.
func (m *Model) EntityTypes() []*EntityType {
	return append([]*EntityType(nil), m.types...)
}

// EntitySets returns all declared entity sets in declaration order.
func (m *Model) EntitySets() []*EntitySet {
	return append([]*EntitySet(nil), m.sets...)
}

// Contains reports whether t was declared in this model.
func (m *Model) Contains(t *EntityType) bool {
	return t != nil && m.typeIndex[t.QualifiedName()] == t
}

// FindEntityType returns the type with the given qualified or simple name.
func (m *Model) FindEntityType(name string) (*EntityType, error) {
	name = strings.TrimSpace(name)
	if t, ok := m.typeIndex[name]; ok {
		return t, nil
	}
	if m.namespace != "" {
		if t, ok := m.typeIndex[m.namespace+"."+name]; ok {
			return t, nil
		}
	}
	return nil, &SchemaNotFoundError{Kind: "entity type", Name: name}
}

// FindEntitySet returns the entity set with the given name.
func (m *Model) FindEntitySet(name string) (*EntitySet, error) {
	if s, ok := m.setIndex[strings.TrimSpace(name)]; ok {
		return s, nil
	}
	return nil, &SchemaNotFoundError{Kind: "entity set", Name: name}
}

// FindProperty returns the structural property name declared on t.
func (m *Model) FindProperty(t *EntityType, name string) (*Property, error) {
	if !m.Contains(t) {
		return nil, &SchemaNotFoundError{Kind: "entity type", Name: typeName(t)}
	}
	return t.FindProperty(name)
}

// FindNavigation returns the navigation property name declared on t.
func (m *Model) FindNavigation(t *EntityType, name string) (*NavigationProperty, error) {
	if !m.Contains(t) {
		return nil, &SchemaNotFoundError{Kind: "entity type", Name: typeName(t)}
	}
	return t.FindNavigation(name)
}

func typeName(t *EntityType) string {
	if t == nil {
		return ""
	}
	return t.QualifiedName()
}
