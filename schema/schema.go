// Package schema generates JSON Schema documents from Go types.
//
// Struct fields are described with the jsonschema tag:
//
//	type Input struct {
//	    Limit *int `json:"limit,omitempty" jsonschema:"minimum=1,description=The number of items to return"`
//	}
//
// Recognized tag parts are required, minimum=N and description=TEXT. The
// description part consumes the rest of the tag, so it may contain commas
// and must come last.
//
// Types whose JSON form is not derivable from their Go shape implement
// [Schemer] and supply their own schema. Value and pointer receivers are
// both honored; JSONSchema is called on a zero value.
package schema

import (
	"reflect"
	"strconv"
	"strings"
)

// Schema is a JSON Schema document.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Description string             `json:"description,omitempty"`
	Default     any                `json:"default,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	OneOf       []*Schema          `json:"oneOf,omitempty"`
}

// Schemer is implemented by types that describe their own JSON Schema.
type Schemer interface {
	JSONSchema() *Schema
}

var schemerType = reflect.TypeOf((*Schemer)(nil)).Elem()

// Generate creates a JSON Schema from a Go value.
func Generate(v any) *Schema {
	return GenerateFromType(reflect.TypeOf(v))
}

// GenerateFromType creates a JSON Schema from a reflect.Type.
func GenerateFromType(t reflect.Type) *Schema {
	if t == nil {
		return &Schema{}
	}
	if t.Kind() == reflect.Ptr {
		return GenerateFromType(t.Elem())
	}
	if t.Implements(schemerType) {
		return reflect.Zero(t).Interface().(Schemer).JSONSchema()
	}
	if reflect.PointerTo(t).Implements(schemerType) {
		return reflect.New(t).Interface().(Schemer).JSONSchema()
	}

	switch t.Kind() {
	case reflect.Struct:
		return generateStructSchema(t)
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: GenerateFromType(t.Elem())}
	case reflect.Map:
		return &Schema{Type: "object"}
	default:
		return &Schema{}
	}
}

func generateStructSchema(t reflect.Type) *Schema {
	s := &Schema{
		Type:       "object",
		Properties: make(map[string]*Schema),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" {
			if tag == "-" {
				continue
			}
			if n, _, _ := strings.Cut(tag, ","); n != "" {
				name = n
			}
		}

		fieldSchema := GenerateFromType(field.Type)
		if parseTag(field.Tag.Get("jsonschema"), fieldSchema) {
			s.Required = append(s.Required, name)
		}
		s.Properties[name] = fieldSchema
	}

	return s
}

// parseTag applies a jsonschema tag to s and reports whether the field is required.
func parseTag(tag string, s *Schema) (required bool) {
	for tag != "" {
		var part string
		if strings.HasPrefix(tag, "description=") {
			s.Description = strings.TrimPrefix(tag, "description=")
			return required
		}
		part, tag, _ = strings.Cut(tag, ",")
		part = strings.TrimSpace(part)
		tag = strings.TrimLeft(tag, " ")

		switch {
		case part == "required":
			required = true
		case strings.HasPrefix(part, "minimum="):
			if v, err := strconv.ParseFloat(strings.TrimPrefix(part, "minimum="), 64); err == nil {
				s.Minimum = &v
			}
		}
	}
	return required
}
