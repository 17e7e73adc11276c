package metadata

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	durationTyp = reflect.TypeOf(time.Duration(0))
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	bytesType   = reflect.TypeOf([]byte(nil))
)

// fieldTags holds the parsed odata struct tag of a field.
type fieldTags struct {
	skip     bool
	key      bool
	nullable *bool
	column   string
}

// AddEntityTypeFromStruct declares an entity type named after the Go struct of entity and
// adds one property per exported scalar field. Fields tagged `odata:"key"` form the key;
// without any key tag a field named ID is used. Navigation properties are not inferred and
// must be declared with AddNavigation.
func (b *ModelBuilder) AddEntityTypeFromStruct(entity interface{}) (*EntityType, error) {
	return b.addStructType(entity, false)
}

// AddComplexTypeFromStruct declares a complex type from a Go struct.
func (b *ModelBuilder) AddComplexTypeFromStruct(value interface{}) (*EntityType, error) {
	return b.addStructType(value, true)
}

func (b *ModelBuilder) addStructType(value interface{}, complex bool) (*EntityType, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: nil struct value", ErrInvalidDeclaration)
	}
	structType := dereferenceType(reflect.TypeOf(value))
	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: entity must be a struct, got %s", ErrInvalidDeclaration, structType.Kind())
	}

	t, err := b.addType(structType.Name(), complex)
	if err != nil {
		return nil, err
	}
	if !complex {
		t.tableName = getTableNameFromReflectType(structType)
	}

	var keys []*Property
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}
		prop, isKey, err := b.analyzeField(t, field)
		if err != nil {
			return nil, fmt.Errorf("error analyzing field %s: %w", field.Name, err)
		}
		if prop != nil && isKey {
			keys = append(keys, prop)
		}
	}

	if complex {
		return t, nil
	}
	if len(keys) == 0 {
		if id, ok := t.propertyIndex["ID"]; ok {
			keys = append(keys, id)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: entity %s must have at least one key property (use `odata:\"key\"` tag or name field 'ID')", ErrInvalidDeclaration, t.name)
	}
	if err := b.AddKey(t, keys...); err != nil {
		return nil, err
	}
	return t, nil
}

// analyzeField adds the property for one struct field. It returns a nil property for fields
// that do not map to a structural property.
func (b *ModelBuilder) analyzeField(t *EntityType, field reflect.StructField) (*Property, bool, error) {
	tags := parseODataTag(field.Tag.Get("odata"))
	if tags.skip {
		return nil, false, nil
	}

	fieldType := field.Type
	pointer := fieldType.Kind() == reflect.Ptr
	base := dereferenceType(fieldType)

	typeName, ok := edmTypeOf(base)
	if !ok {
		complexType, isComplex := b.lookupType(base.Name())
		if base.Kind() != reflect.Struct || !isComplex || !complexType.complex {
			// Slices, maps and entity structs are relationships, not structural properties.
			return nil, false, nil
		}
		typeName = complexType.QualifiedName()
	}

	nullable := isTypeNullable(fieldType)
	if tags.nullable != nil {
		if *tags.nullable && !pointer && base != bytesType {
			return nil, false, fmt.Errorf("property %s is marked as nullable with odata:\"nullable\" tag, but has non-nullable Go type %s (use *%s to make it nullable)",
				field.Name, fieldType, fieldType)
		}
		nullable = *tags.nullable
	}

	prop, err := b.AddProperty(t, field.Name, typeName, nullable && !tags.key)
	if err != nil {
		return nil, false, err
	}
	if tags.column != "" {
		prop.columnName = tags.column
	}
	return prop, tags.key, nil
}

func parseODataTag(tag string) fieldTags {
	var tags fieldTags
	if strings.TrimSpace(tag) == "-" {
		tags.skip = true
		return tags
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "key":
			tags.key = true
		case part == "nullable", part == "nullable=true":
			v := true
			tags.nullable = &v
		case part == "nullable=false":
			v := false
			tags.nullable = &v
		case strings.HasPrefix(part, "column:"):
			tags.column = strings.TrimPrefix(part, "column:")
		}
	}
	return tags
}

// edmTypeOf maps a dereferenced Go type to its primitive EDM type.
func edmTypeOf(t reflect.Type) (string, bool) {
	switch t {
	case timeType:
		return EdmDateTimeOffset, true
	case durationTyp:
		return EdmDuration, true
	case decimalType:
		return EdmDecimal, true
	case uuidType:
		return EdmGuid, true
	case bytesType:
		return EdmBinary, true
	}
	switch t.Kind() {
	case reflect.String:
		return EdmString, true
	case reflect.Bool:
		return EdmBoolean, true
	case reflect.Uint8:
		return EdmByte, true
	case reflect.Int8:
		return EdmSByte, true
	case reflect.Int16:
		return EdmInt16, true
	case reflect.Int32, reflect.Uint16:
		return EdmInt32, true
	case reflect.Int, reflect.Int64, reflect.Uint32, reflect.Uint, reflect.Uint64:
		return EdmInt64, true
	case reflect.Float32:
		return EdmSingle, true
	case reflect.Float64:
		return EdmDouble, true
	default:
		return "", false
	}
}

// isTypeNullable checks if a Go type can represent null values
func isTypeNullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	default:
		return false
	}
}

// dereferenceType unwraps pointer types to obtain the underlying type.
func dereferenceType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// getTableNameFromReflectType honors a TableName() method on the struct and otherwise falls
// back to snake_case pluralization.
func getTableNameFromReflectType(entityType reflect.Type) string {
	instance := reflect.New(dereferenceType(entityType)).Interface()
	if tabler, ok := instance.(interface{ TableName() string }); ok {
		return tabler.TableName()
	}
	return toSnakeCase(pluralize(entityType.Name()))
}

// pluralize creates a simple pluralized form of the entity name
func pluralize(word string) string {
	if word == "" {
		return word
	}

	switch {
	case strings.HasSuffix(word, "y") && len(word) > 1 && !isVowel(rune(word[len(word)-2])):
		// "Category" -> "Categories", but "Key" -> "Keys"
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(word, "s") || strings.HasSuffix(word, "x") || strings.HasSuffix(word, "z") ||
		strings.HasSuffix(word, "ch") || strings.HasSuffix(word, "sh"):
		return word + "es"
	default:
		return word + "s"
	}
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return true
	default:
		return false
	}
}

// toSnakeCase converts a camelCase or PascalCase string to snake_case
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			// "ProductID" -> "product_id", "XMLParser" -> "xml_parser"
			prevRune := rune(s[i-1])
			if prevRune >= 'a' && prevRune <= 'z' {
				result.WriteRune('_')
			} else if i < len(s)-1 {
				nextRune := rune(s[i+1])
				if nextRune >= 'a' && nextRune <= 'z' {
					result.WriteRune('_')
				}
			}
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
