package schema

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	typeCache sync.Map // reflect.Type -> *Descriptor

	timeType          = reflect.TypeFor[time.Time]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()

	invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// For derives a descriptor from the struct type T.
//
// Field names follow encoding/json tags. A field is optional when its tag has
// omitempty or its type is a pointer. The `desc` tag sets a description and the
// `enum` tag (comma separated) restricts string values:
//
//	type Person struct {
//		Name       string `json:"name" desc:"full name"`
//		Age        int    `json:"age"`
//		Occupation string `json:"occupation,omitempty" enum:"engineer,doctor"`
//	}
func For[T any]() (*Descriptor, error) {
	return FromType(reflect.TypeFor[T]())
}

// FromValue derives a descriptor from the dynamic type of v, usually a pointer to
// the struct the caller wants filled in.
func FromValue(v any) (*Descriptor, error) {
	if v == nil {
		return nil, fmt.Errorf("cannot derive schema from nil")
	}
	return FromType(reflect.TypeOf(v))
}

// FromType derives a descriptor from a struct type (or pointer to one). Results
// are cached per type.
func FromType(t reflect.Type) (*Descriptor, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*Descriptor), nil
	}

	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema root must be a struct, got %s", t.Kind())
	}

	d, err := descriptorFor(t, map[reflect.Type]bool{})
	if err != nil {
		return nil, err
	}

	actual, _ := typeCache.LoadOrStore(t, d)
	return actual.(*Descriptor), nil
}

func descriptorFor(t reflect.Type, visiting map[reflect.Type]bool) (*Descriptor, error) {
	if visiting[t] {
		return nil, fmt.Errorf("recursive type %s cannot be described", t)
	}
	visiting[t] = true
	defer delete(visiting, t)

	fields, err := structFields(t, visiting)
	if err != nil {
		return nil, err
	}

	return New(typeName(t), fields...)
}

func structFields(t reflect.Type, visiting map[reflect.Type]bool) ([]Field, error) {
	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)

		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, tagged := parseJSONTag(tag)

		// untagged embedded structs are flattened, as encoding/json does
		if sf.Anonymous && !tagged {
			et := sf.Type
			if et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				embedded, err := embeddedFields(et, visiting)
				if err != nil {
					return nil, err
				}
				fields = append(fields, embedded...)
				continue
			}
		}

		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}

		f, err := fieldFor(name, sf.Type, visiting)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), sf.Name, err)
		}

		if sf.Type.Kind() == reflect.Pointer || strings.Contains(opts, "omitempty") {
			f.Required = false
		}
		if desc := sf.Tag.Get("desc"); desc != "" {
			f.Description = desc
		}
		if enum := sf.Tag.Get("enum"); enum != "" {
			f.Enum = strings.Split(enum, ",")
		}

		fields = append(fields, f)
	}
	return fields, nil
}

func embeddedFields(t reflect.Type, visiting map[reflect.Type]bool) ([]Field, error) {
	if visiting[t] {
		return nil, fmt.Errorf("recursive type %s cannot be described", t)
	}
	visiting[t] = true
	defer delete(visiting, t)
	return structFields(t, visiting)
}

func fieldFor(name string, t reflect.Type, visiting map[reflect.Type]bool) (Field, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == timeType || reflect.PointerTo(t).Implements(textMarshalerType) {
		return String(name), nil
	}

	switch t.Kind() {
	case reflect.String:
		return String(name), nil
	case reflect.Bool:
		return Boolean(name), nil
	case reflect.Int, reflect.Int64:
		return Integer(name), nil
	case reflect.Int8:
		return Integer(name).AtLeast(math.MinInt8).AtMost(math.MaxInt8), nil
	case reflect.Int16:
		return Integer(name).AtLeast(math.MinInt16).AtMost(math.MaxInt16), nil
	case reflect.Int32:
		return Integer(name).AtLeast(math.MinInt32).AtMost(math.MaxInt32), nil
	case reflect.Uint8:
		return Integer(name).AtLeast(0).AtMost(math.MaxUint8), nil
	case reflect.Uint16:
		return Integer(name).AtLeast(0).AtMost(math.MaxUint16), nil
	case reflect.Uint32:
		return Integer(name).AtLeast(0).AtMost(math.MaxUint32), nil
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return Integer(name).AtLeast(0), nil
	case reflect.Float32, reflect.Float64:
		return Number(name), nil
	case reflect.Struct:
		nested, err := descriptorFor(t, visiting)
		if err != nil {
			return Field{}, err
		}
		return Object(name, nested), nil
	case reflect.Slice, reflect.Array:
		// encoding/json writes []byte as a base64 string, but [N]byte as an array
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			return String(name), nil
		}
		items, err := fieldFor("", t.Elem(), visiting)
		if err != nil {
			return Field{}, err
		}
		return Array(name, items), nil
	}

	return Field{}, fmt.Errorf("unsupported field type %s", t)
}

func parseJSONTag(tag string) (name, opts string, tagged bool) {
	if tag == "" {
		return "", "", false
	}
	name, opts, _ = strings.Cut(tag, ",")
	return name, opts, name != ""
}

func typeName(t reflect.Type) string {
	name := invalidNameChars.ReplaceAllString(t.Name(), "_")
	if name == "" {
		return defaultName
	}
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
