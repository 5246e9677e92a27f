package schema

import "encoding/json"

// Document renders the descriptor as a JSON Schema object.
//
// Every property is listed in "required" and objects disallow additional
// properties; optional fields are expressed as nullable types instead. This keeps
// one rendering valid for strict native structured modes as well as for
// prompt-guided ones.
func (d *Descriptor) Document() map[string]any {
	doc := objectDocument(d)
	if d.description != "" {
		doc["description"] = d.description
	}
	return doc
}

// JSONSchema renders the descriptor as compact JSON. The output is deterministic:
// encoding/json writes object keys in sorted order and field order is fixed at
// construction.
func (d *Descriptor) JSONSchema() ([]byte, error) {
	return json.Marshal(d.Document())
}

// JSONSchemaIndent renders the descriptor as indented JSON, for prompts.
func (d *Descriptor) JSONSchemaIndent() ([]byte, error) {
	return json.MarshalIndent(d.Document(), "", "  ")
}

func objectDocument(d *Descriptor) map[string]any {
	props := make(map[string]any, len(d.fields))
	required := make([]string, 0, len(d.fields))
	for _, f := range d.fields {
		props[f.Name] = fieldDocument(f)
		required = append(required, f.Name)
	}

	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func fieldDocument(f Field) map[string]any {
	var doc map[string]any
	switch f.Kind {
	case KindObject:
		doc = objectDocument(f.Object)
		if f.Object.description != "" && f.Description == "" {
			doc["description"] = f.Object.description
		}
	case KindArray:
		doc = map[string]any{
			"type":  "array",
			"items": fieldDocument(*f.Items),
		}
	default:
		doc = map[string]any{"type": string(f.Kind)}
	}

	if f.Description != "" {
		doc["description"] = f.Description
	}
	if f.Minimum != nil {
		doc["minimum"] = *f.Minimum
	}
	if f.Maximum != nil {
		doc["maximum"] = *f.Maximum
	}

	if len(f.Enum) > 0 {
		values := make([]any, 0, len(f.Enum)+1)
		for _, v := range f.Enum {
			values = append(values, v)
		}
		if !f.Required {
			values = append(values, nil)
		}
		doc["enum"] = values
	}

	if !f.Required {
		doc["type"] = []string{doc["type"].(string), "null"}
	}

	return doc
}
