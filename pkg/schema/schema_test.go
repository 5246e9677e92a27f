package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Occupation string `json:"occupation"`
}

func personSchema(t *testing.T) *Descriptor {
	t.Helper()
	d, err := New("Person", String("name"), Integer("age"), String("occupation"))
	require.NoError(t, err)
	return d
}

func TestJSONSchema_Deterministic(t *testing.T) {
	a := personSchema(t)
	b := personSchema(t)

	first, err := a.JSONSchema()
	require.NoError(t, err)
	second, err := a.JSONSchema()
	require.NoError(t, err)
	other, err := b.JSONSchema()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, other)
}

func TestJSONSchema_Document(t *testing.T) {
	d := MustNew("Person",
		String("name").Describe("full name"),
		Integer("age"),
		String("occupation").Optional().OneOf("engineer", "doctor"),
	)

	raw, err := d.JSONSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.Equal(t, []any{"name", "age", "occupation"}, doc["required"])

	props := doc["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string", "description": "full name"}, props["name"])
	assert.Equal(t, map[string]any{"type": "integer"}, props["age"])
	assert.Equal(t, map[string]any{
		"type": []any{"string", "null"},
		"enum": []any{"engineer", "doctor", nil},
	}, props["occupation"])
}

func TestJSONSchema_NestedAndArrays(t *testing.T) {
	address := MustNew("Address", String("city"))
	d := MustNew("Profile", Object("address", address), Array("tags", String("")))

	doc := d.Document()
	props := doc["properties"].(map[string]any)

	addr := props["address"].(map[string]any)
	assert.Equal(t, "object", addr["type"])
	assert.Equal(t, []string{"city"}, addr["required"])

	tags := props["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])
	assert.Equal(t, map[string]any{"type": "string"}, tags["items"])
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		fields []Field
		errMsg string
	}{
		{"duplicate field", "P", []Field{String("a"), Integer("a")}, "duplicate field"},
		{"empty field name", "P", []Field{String("")}, "empty name"},
		{"object without schema", "P", []Field{{Name: "o", Kind: KindObject}}, "no nested schema"},
		{"array without items", "P", []Field{{Name: "xs", Kind: KindArray}}, "no item schema"},
		{"unknown kind", "P", []Field{{Name: "x", Kind: "date"}}, "unsupported kind"},
		{"enum on integer", "P", []Field{Integer("n").OneOf("1")}, "enum is only supported"},
		{"bounds on number", "P", []Field{Number("x").AtLeast(0)}, "bounds are only supported"},
		{"inverted bounds", "P", []Field{Integer("n").AtLeast(5).AtMost(1)}, "exceeds maximum"},
		{"bad name", "has space", []Field{String("a")}, "invalid schema name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.schema, tt.fields...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNew_DefaultName(t *testing.T) {
	d, err := New("", String("a"))
	require.NoError(t, err)
	assert.Equal(t, "response", d.Name())
}

func TestValidate_RoundTrip(t *testing.T) {
	d := personSchema(t)

	var p person
	err := d.Decode([]byte(`{"name":"John","age":30,"occupation":"engineer"}`), &p)
	require.NoError(t, err)
	assert.Equal(t, person{Name: "John", Age: 30, Occupation: "engineer"}, p)

	value, err := d.Validate([]byte(`{"name":"John","age":30,"occupation":"engineer"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "John", "age": int64(30), "occupation": "engineer"}, value)
}

func TestValidate_MissingFieldSingleViolation(t *testing.T) {
	d := personSchema(t)

	_, err := d.Validate([]byte(`{"name":"John","occupation":"engineer"}`))
	require.Error(t, err)

	ve, ok := AsValidationError(err)
	require.True(t, ok)
	require.Len(t, ve.Violations, 1)
	assert.Equal(t, Violation{Path: "age", Message: "missing required field"}, ve.Violations[0])
	assert.Equal(t, "Person", ve.Schema)
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	d := personSchema(t)

	_, err := d.Validate([]byte(`{"name":42,"age":"thirty","nickname":"JJ"}`))
	ve, ok := AsValidationError(err)
	require.True(t, ok)

	assert.Equal(t, []Violation{
		{Path: "name", Message: "expected string but got number"},
		{Path: "age", Message: "expected integer but got string"},
		{Path: "occupation", Message: "missing required field"},
		{Path: "nickname", Message: "unknown field"},
	}, ve.Violations)
	assert.Contains(t, err.Error(), "4 violations")
}

func TestValidate_IntegerForms(t *testing.T) {
	d := MustNew("N", Integer("n"))

	value, err := d.Validate([]byte(`{"n":30.0}`))
	require.NoError(t, err)
	assert.Equal(t, int64(30), value["n"])

	_, err = d.Validate([]byte(`{"n":30.5}`))
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "expected integer but got number 30.5", ve.Violations[0].Message)
}

func TestValidate_NestedPaths(t *testing.T) {
	address := MustNew("Address", String("city"), String("zip").Optional())
	d := MustNew("Profile",
		Object("address", address),
		Array("scores", Number("")),
		String("level").OneOf("low", "high"),
	)

	_, err := d.Validate([]byte(`{"address":{"zip":null,"street":"x"},"scores":[1.5,"a",null],"level":"mid"}`))
	ve, ok := AsValidationError(err)
	require.True(t, ok)

	assert.Equal(t, []Violation{
		{Path: "address.city", Message: "missing required field"},
		{Path: "address.street", Message: "unknown field"},
		{Path: "scores[1]", Message: "expected number but got string"},
		{Path: "scores[2]", Message: "must not be null"},
		{Path: "level", Message: `value "mid" is not one of [low, high]`},
	}, ve.Violations)
}

func TestValidate_OptionalFields(t *testing.T) {
	d := MustNew("P", String("name"), Integer("age").Optional())

	value, err := d.Validate([]byte(`{"name":"Ann"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ann"}, value)

	value, err = d.Validate([]byte(`{"name":"Ann","age":null}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ann", "age": nil}, value)

	_, err = d.Validate([]byte(`{"name":null}`))
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "must not be null", ve.Violations[0].Message)
}

func TestValidate_TopLevel(t *testing.T) {
	d := personSchema(t)

	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"not json", `not json`, "invalid JSON"},
		{"array", `[1,2]`, "expected object but got array"},
		{"trailing data", `{"name":"a","age":1,"occupation":"b"} {}`, "unexpected data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Validate([]byte(tt.input))
			ve, ok := AsValidationError(err)
			require.True(t, ok)
			require.Len(t, ve.Violations, 1)
			assert.Contains(t, ve.Violations[0].Message, tt.msg)
		})
	}
}
