// Package schema describes structured-output shapes, renders them as JSON Schema
// documents and validates raw model output against them.
package schema

import (
	"fmt"
	"regexp"
)

// Kind is the JSON type of a field.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

const defaultName = "response"

// response_format names must match this for OpenAI-style backends
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Field describes one property of an object.
type Field struct {
	Name        string
	Kind        Kind
	Description string
	Required    bool

	// Enum restricts string fields to a fixed set of values
	Enum []string

	// Object is the nested shape for KindObject fields
	Object *Descriptor

	// Items is the element shape for KindArray fields; its Name is ignored
	Items *Field

	// Minimum and Maximum bound KindInteger fields, inclusive
	Minimum *int64
	Maximum *int64
}

// Descriptor is an immutable object schema. Build one with New or derive it
// from a Go type with For / FromType.
type Descriptor struct {
	name        string
	description string
	fields      []Field
}

// String returns a required string field.
func String(name string) Field { return Field{Name: name, Kind: KindString, Required: true} }

// Integer returns a required integer field.
func Integer(name string) Field { return Field{Name: name, Kind: KindInteger, Required: true} }

// Number returns a required number field.
func Number(name string) Field { return Field{Name: name, Kind: KindNumber, Required: true} }

// Boolean returns a required boolean field.
func Boolean(name string) Field { return Field{Name: name, Kind: KindBoolean, Required: true} }

// Object returns a required field holding a nested object.
func Object(name string, d *Descriptor) Field {
	return Field{Name: name, Kind: KindObject, Required: true, Object: d}
}

// Array returns a required field holding a sequence of items.
func Array(name string, items Field) Field {
	return Field{Name: name, Kind: KindArray, Required: true, Items: &items}
}

// Optional marks the field as optional: it may be absent or null.
func (f Field) Optional() Field {
	f.Required = false
	return f
}

// Describe attaches a human readable description, rendered into the schema.
func (f Field) Describe(desc string) Field {
	f.Description = desc
	return f
}

// OneOf restricts a string field to the given values.
func (f Field) OneOf(values ...string) Field {
	f.Enum = append([]string(nil), values...)
	return f
}

// AtLeast sets an inclusive lower bound on an integer field.
func (f Field) AtLeast(n int64) Field {
	f.Minimum = &n
	return f
}

// AtMost sets an inclusive upper bound on an integer field.
func (f Field) AtMost(n int64) Field {
	f.Maximum = &n
	return f
}

// New builds a descriptor from fields. The name is used as the schema name on
// the wire and defaults to "response".
func New(name string, fields ...Field) (*Descriptor, error) {
	if name == "" {
		name = defaultName
	}
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid schema name %q: must match %s", name, namePattern.String())
	}

	copied, err := checkFields(name, fields)
	if err != nil {
		return nil, err
	}

	return &Descriptor{name: name, fields: copied}, nil
}

// MustNew is like New but panics on error. Intended for package-level schemas.
func MustNew(name string, fields ...Field) *Descriptor {
	d, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return d
}

// WithDescription returns a copy of d carrying a top-level description.
func (d *Descriptor) WithDescription(desc string) *Descriptor {
	c := *d
	c.description = desc
	return &c
}

// Name returns the schema name.
func (d *Descriptor) Name() string { return d.name }

// Description returns the top-level description, if any.
func (d *Descriptor) Description() string { return d.description }

// Fields returns a copy of the fields in declaration order.
func (d *Descriptor) Fields() []Field {
	return append([]Field(nil), d.fields...)
}

// Field looks up a field by name.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func checkFields(owner string, fields []Field) ([]Field, error) {
	seen := make(map[string]bool, len(fields))
	out := make([]Field, 0, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%s: field at index %d has empty name", owner, i)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("%s: duplicate field %q", owner, f.Name)
		}
		seen[f.Name] = true

		checked, err := checkField(owner+"."+f.Name, f)
		if err != nil {
			return nil, err
		}
		out = append(out, checked)
	}
	return out, nil
}

func checkField(path string, f Field) (Field, error) {
	switch f.Kind {
	case KindString, KindInteger, KindNumber, KindBoolean:
	case KindObject:
		if f.Object == nil {
			return f, fmt.Errorf("%s: object field has no nested schema", path)
		}
	case KindArray:
		if f.Items == nil {
			return f, fmt.Errorf("%s: array field has no item schema", path)
		}
		items, err := checkField(path+"[]", *f.Items)
		if err != nil {
			return f, err
		}
		items.Name = ""
		items.Required = true
		f.Items = &items
	default:
		return f, fmt.Errorf("%s: unsupported kind %q", path, f.Kind)
	}

	if f.Minimum != nil || f.Maximum != nil {
		if f.Kind != KindInteger {
			return f, fmt.Errorf("%s: bounds are only supported on integer fields", path)
		}
		if f.Minimum != nil && f.Maximum != nil && *f.Minimum > *f.Maximum {
			return f, fmt.Errorf("%s: minimum %d exceeds maximum %d", path, *f.Minimum, *f.Maximum)
		}
		if f.Minimum != nil {
			f = f.AtLeast(*f.Minimum)
		}
		if f.Maximum != nil {
			f = f.AtMost(*f.Maximum)
		}
	}

	if len(f.Enum) > 0 {
		if f.Kind != KindString {
			return f, fmt.Errorf("%s: enum is only supported on string fields", path)
		}
		f.Enum = append([]string(nil), f.Enum...)
	}

	return f, nil
}
