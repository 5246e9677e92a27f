package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strings"
)

// Violation is a single mismatch between a value and the schema.
type Violation struct {
	// Path locates the offending value, e.g. "address.city" or "tags[2]".
	// Empty for the top-level value.
	Path    string
	Message string
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// ValidationError carries every violation found in one value.
type ValidationError struct {
	Schema     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	noun := "violations"
	if len(parts) == 1 {
		noun = "violation"
	}
	return fmt.Sprintf("schema %q validation failed with %d %s: %s", e.Schema, len(parts), noun, strings.Join(parts, "; "))
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Validate checks raw JSON against the descriptor and returns the decoded object.
// All violations are collected before returning. Integers decode as int64 and
// numbers as float64; unknown fields are rejected.
func (d *Descriptor) Validate(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, d.fail(Violation{Message: fmt.Sprintf("invalid JSON: %v", err)})
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, d.fail(Violation{Message: "unexpected data after top-level value"})
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, d.fail(Violation{Message: fmt.Sprintf("expected object but got %s", describe(value))})
	}

	v := &validator{}
	out := v.object("", d, obj)
	if len(v.violations) > 0 {
		return nil, d.fail(v.violations...)
	}
	return out, nil
}

// Decode validates raw and then unmarshals it into out, which must be a pointer.
func (d *Descriptor) Decode(raw []byte, out any) error {
	value, err := d.Validate(raw)
	if err != nil {
		return err
	}
	// re-encode the normalized value so 30.0 lands in an int field
	normalized, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode validated value: %w", err)
	}
	if err := json.Unmarshal(normalized, out); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			return d.fail(Violation{Path: ute.Field, Message: fmt.Sprintf("cannot hold %s in Go type %s", ute.Value, ute.Type)})
		}
		return fmt.Errorf("decode into %T: %w", out, err)
	}
	return nil
}

func (d *Descriptor) fail(violations ...Violation) *ValidationError {
	return &ValidationError{Schema: d.name, Violations: violations}
}

type validator struct {
	violations []Violation
}

func (v *validator) add(path, format string, args ...any) {
	v.violations = append(v.violations, Violation{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) object(path string, d *Descriptor, obj map[string]any) map[string]any {
	out := make(map[string]any, len(d.fields))
	known := make(map[string]bool, len(d.fields))

	for _, f := range d.fields {
		known[f.Name] = true
		fieldPath := join(path, f.Name)

		value, present := obj[f.Name]
		if !present {
			if f.Required {
				v.add(fieldPath, "missing required field")
			}
			continue
		}
		if value == nil {
			if f.Required {
				v.add(fieldPath, "must not be null")
			} else {
				out[f.Name] = nil
			}
			continue
		}

		if converted, ok := v.value(fieldPath, f, value); ok {
			out[f.Name] = converted
		}
	}

	unknown := make([]string, 0)
	for key := range obj {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		v.add(join(path, key), "unknown field")
	}

	return out
}

func (v *validator) value(path string, f Field, value any) (any, bool) {
	switch f.Kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			v.add(path, "expected string but got %s", describe(value))
			return nil, false
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, s) {
			v.add(path, "value %q is not one of [%s]", s, strings.Join(f.Enum, ", "))
			return nil, false
		}
		return s, true

	case KindInteger:
		n, ok := value.(json.Number)
		if !ok {
			v.add(path, "expected integer but got %s", describe(value))
			return nil, false
		}
		i, err := n.Int64()
		if err != nil {
			// 30.0 is an integer in JSON Schema terms
			fl, ferr := n.Float64()
			if ferr != nil || math.Trunc(fl) != fl || math.Abs(fl) > 1<<53 {
				v.add(path, "expected integer but got number %s", n.String())
				return nil, false
			}
			i = int64(fl)
		}
		if f.Minimum != nil && i < *f.Minimum {
			v.add(path, "value %d is below minimum %d", i, *f.Minimum)
			return nil, false
		}
		if f.Maximum != nil && i > *f.Maximum {
			v.add(path, "value %d is above maximum %d", i, *f.Maximum)
			return nil, false
		}
		return i, true

	case KindNumber:
		n, ok := value.(json.Number)
		if !ok {
			v.add(path, "expected number but got %s", describe(value))
			return nil, false
		}
		fl, err := n.Float64()
		if err != nil {
			v.add(path, "number %s out of range", n.String())
			return nil, false
		}
		return fl, true

	case KindBoolean:
		b, ok := value.(bool)
		if !ok {
			v.add(path, "expected boolean but got %s", describe(value))
			return nil, false
		}
		return b, true

	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			v.add(path, "expected object but got %s", describe(value))
			return nil, false
		}
		before := len(v.violations)
		out := v.object(path, f.Object, obj)
		return out, len(v.violations) == before

	case KindArray:
		items, ok := value.([]any)
		if !ok {
			v.add(path, "expected array but got %s", describe(value))
			return nil, false
		}
		before := len(v.violations)
		out := make([]any, 0, len(items))
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			if item == nil {
				v.add(itemPath, "must not be null")
				continue
			}
			if converted, ok := v.value(itemPath, *f.Items, item); ok {
				out = append(out, converted)
			}
		}
		return out, len(v.violations) == before
	}

	v.add(path, "unsupported kind %q", f.Kind)
	return nil, false
}

func describe(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", value)
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
