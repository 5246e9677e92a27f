package main

import (
	"fmt"
	"strings"

	"github.com/dan-solli/one/pkg/schema"
)

// parseFields builds a flat schema from --field values of the form
//
//	name:type[][?][=a|b|c]
//
// where type is string, integer (int), number (float) or boolean (bool).
// A trailing [] makes an array of that type, ? makes the field optional and
// =a|b|c restricts a string field to the listed values.
func parseFields(name string, defs []string) (*schema.Descriptor, error) {
	fields := make([]schema.Field, 0, len(defs))
	for _, def := range defs {
		f, err := parseField(def)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return schema.New(name, fields...)
}

func parseField(def string) (schema.Field, error) {
	fieldName, typ, ok := strings.Cut(def, ":")
	fieldName = strings.TrimSpace(fieldName)
	if !ok || fieldName == "" {
		return schema.Field{}, fmt.Errorf("field %q: want name:type", def)
	}

	var enum []string
	if t, values, found := strings.Cut(typ, "="); found {
		typ = t
		for _, v := range strings.Split(values, "|") {
			if v = strings.TrimSpace(v); v != "" {
				enum = append(enum, v)
			}
		}
	}

	typ = strings.TrimSpace(typ)
	optional := strings.HasSuffix(typ, "?")
	typ = strings.TrimSuffix(typ, "?")
	array := strings.HasSuffix(typ, "[]")
	typ = strings.TrimSuffix(typ, "[]")

	var f schema.Field
	switch strings.ToLower(typ) {
	case "string", "str":
		f = schema.String(fieldName)
	case "integer", "int":
		f = schema.Integer(fieldName)
	case "number", "float":
		f = schema.Number(fieldName)
	case "boolean", "bool":
		f = schema.Boolean(fieldName)
	default:
		return schema.Field{}, fmt.Errorf("field %q: unknown type %q", fieldName, typ)
	}

	if len(enum) > 0 {
		if f.Kind != schema.KindString {
			return schema.Field{}, fmt.Errorf("field %q: allowed values need a string type", fieldName)
		}
		f = f.OneOf(enum...)
	}
	if array {
		f = schema.Array(fieldName, f)
	}
	if optional {
		f = f.Optional()
	}
	return f, nil
}
