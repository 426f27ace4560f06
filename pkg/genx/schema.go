package genx

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// OutputSchema describes the shape of a structured generation result.
type OutputSchema struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// SchemaFor derives an OutputSchema from a Go type.
func SchemaFor[T any](name, description string) (*OutputSchema, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("genx: schema for %s: %w", name, err)
	}
	return &OutputSchema{Name: name, Description: description, Schema: s}, nil
}

// MustSchemaFor is SchemaFor for package-level schema variables.
func MustSchemaFor[T any](name, description string) *OutputSchema {
	s, err := SchemaFor[T](name, description)
	if err != nil {
		panic(err)
	}
	return s
}

// Unmarshal decodes structured-generation output into v. Models
// occasionally emit near-miss JSON (trailing commas, unquoted keys); a
// syntax error triggers one repair attempt before giving up.
func Unmarshal(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

// formatStrictSchema rewrites a schema for OpenAI strict structured
// outputs: every object gets additionalProperties:false and all
// properties become required (optional ones made nullable).
//
// See https://platform.openai.com/docs/guides/structured-outputs
func formatStrictSchema(m *jsonschema.Schema) *jsonschema.Schema {
	if m == nil {
		return nil
	}

	if m.Type != "" && len(m.Types) > 0 {
		m.Types = append(m.Types, m.Type)
		m.Type = ""
	}
	typ := m.Type
	if typ == "" {
		for _, t := range m.Types {
			if t != "null" && t != "" {
				typ = t
				break
			}
		}
	}

	switch typ {
	case "array":
		m.Items = formatStrictSchema(m.Items)
	case "object":
		m.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}

		required := make(map[string]struct{})
		for _, v := range m.Required {
			required[v] = struct{}{}
		}
		for k, v := range m.Properties {
			if _, ok := required[k]; !ok {
				required[k] = struct{}{}
				if !slices.Contains(v.Types, "null") {
					v.Types = append(v.Types, "null")
				}
			}
			m.Properties[k] = formatStrictSchema(v)
		}
		m.Required = slices.Collect(maps.Keys(required))
	}
	return m
}
