// Package schema provides lightweight field schema builders for agent node
// inputs and outputs. Schemas double as tool parameter descriptors for LLM
// nodes: JSONSchema() emits a plain JSON Schema document, and Validate()
// checks a value against it.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Kind identifies the primitive shape of a schema.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindAny     Kind = "any"
)

// Fields maps field names to their schemas, for Object().
type Fields map[string]*Schema

// Schema describes the shape of a single value. Builders return the receiver,
// so annotations chain: schema.String().Label("User query").Optional().
type Schema struct {
	kind     Kind
	label    string
	desc     string
	optional bool
	enum     []any
	fields   Fields  // object
	item     *Schema // array

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// String creates a string schema.
func String() *Schema { return &Schema{kind: KindString} }

// Number creates a numeric schema.
func Number() *Schema { return &Schema{kind: KindNumber} }

// Boolean creates a boolean schema.
func Boolean() *Schema { return &Schema{kind: KindBoolean} }

// Any creates a schema that accepts any value.
func Any() *Schema { return &Schema{kind: KindAny} }

// Object creates an object schema with the given named fields.
func Object(fields Fields) *Schema {
	if fields == nil {
		fields = Fields{}
	}
	return &Schema{kind: KindObject, fields: fields}
}

// Array creates an array schema whose items match the given schema.
func Array(item *Schema) *Schema { return &Schema{kind: KindArray, item: item} }

// Label annotates the schema with a human-readable name, surfaced to UIs
// under the JSON Schema "title" keyword.
func (s *Schema) Label(label string) *Schema {
	s.label = label
	return s
}

// Describe annotates the schema with a description.
func (s *Schema) Describe(desc string) *Schema {
	s.desc = desc
	return s
}

// Optional marks the schema as not required by its enclosing object.
func (s *Schema) Optional() *Schema {
	s.optional = true
	return s
}

// Enum restricts the schema to the given values.
func (s *Schema) Enum(values ...any) *Schema {
	s.enum = values
	return s
}

// Kind returns the schema's primitive shape.
func (s *Schema) Kind() Kind { return s.kind }

// IsOptional reports whether the schema was marked Optional.
func (s *Schema) IsOptional() bool { return s.optional }

// GetLabel returns the label annotation, or the empty string.
func (s *Schema) GetLabel() string { return s.label }

// Field returns the schema of a named object field, or nil.
func (s *Schema) Field(name string) *Schema {
	if s.fields == nil {
		return nil
	}
	return s.fields[name]
}

// Keys returns the field names of an object schema. The order is not
// specified. Non-object schemas return nil.
func (s *Schema) Keys() []string {
	if s.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(s.fields))
	for name := range s.fields {
		keys = append(keys, name)
	}
	return keys
}

// HasField reports whether an object schema declares the given field.
func (s *Schema) HasField(name string) bool {
	if s.kind != KindObject {
		return false
	}
	_, ok := s.fields[name]
	return ok
}

// JSONSchema emits the schema as a plain JSON Schema document.
func (s *Schema) JSONSchema() map[string]any {
	doc := map[string]any{}

	switch s.kind {
	case KindString:
		doc["type"] = "string"
	case KindNumber:
		doc["type"] = "number"
	case KindBoolean:
		doc["type"] = "boolean"
	case KindArray:
		doc["type"] = "array"
		if s.item != nil {
			doc["items"] = s.item.JSONSchema()
		}
	case KindObject:
		doc["type"] = "object"
		props := map[string]any{}
		var required []string
		for name, field := range s.fields {
			props[name] = field.JSONSchema()
			if !field.optional {
				required = append(required, name)
			}
		}
		doc["properties"] = props
		if len(required) > 0 {
			doc["required"] = required
		}
	case KindAny:
		// no "type" keyword: matches anything
	}

	if s.label != "" {
		doc["title"] = s.label
	}
	if s.desc != "" {
		doc["description"] = s.desc
	}
	if len(s.enum) > 0 {
		doc["enum"] = s.enum
	}

	return doc
}

// Validate checks a value against the schema. The JSON Schema compilation is
// cached on first use. The value is round-tripped through encoding/json so
// arbitrary Go structs validate the same way their wire form would.
func (s *Schema) Validate(value any) error {
	s.compileOnce.Do(func() {
		// Round-trip the document so the compiler sees plain JSON types.
		raw, err := json.Marshal(s.JSONSchema())
		if err != nil {
			s.compileErr = fmt.Errorf("failed to encode schema: %w", err)
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			s.compileErr = fmt.Errorf("failed to decode schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("schema.json", doc); err != nil {
			s.compileErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		s.compiled, s.compileErr = compiler.Compile("schema.json")
	})
	if s.compileErr != nil {
		return s.compileErr
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("value is not JSON-encodable: %w", err)
	}
	decoded, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}

	if err := s.compiled.Validate(decoded); err != nil {
		return &ValidationError{Schema: s, cause: err}
	}
	return nil
}

// ValidationError reports a value that failed schema validation.
type ValidationError struct {
	Schema *Schema
	cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %v", e.cause)
}

func (e *ValidationError) Unwrap() error { return e.cause }
