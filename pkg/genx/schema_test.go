package genx

import (
	"testing"
)

func TestUnmarshal_Valid(t *testing.T) {
	data := []byte(`{"descriptions": ["a", "b", "c"]}`)
	var result struct {
		Descriptions []string `json:"descriptions"`
	}

	if err := Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if len(result.Descriptions) != 3 {
		t.Fatalf("len(Descriptions) = %d, want 3", len(result.Descriptions))
	}
}

func TestUnmarshal_RepairsTrailingComma(t *testing.T) {
	data := []byte(`{"caption": "Boil smarter", "tags": ["kettle", "kitchen",],}`)
	var result struct {
		Caption string   `json:"caption"`
		Tags    []string `json:"tags"`
	}

	if err := Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal should repair trailing commas: %v", err)
	}
	if result.Caption != "Boil smarter" {
		t.Errorf("Caption = %q, want %q", result.Caption, "Boil smarter")
	}
	if len(result.Tags) != 2 {
		t.Errorf("len(Tags) = %d, want 2", len(result.Tags))
	}
}

func TestUnmarshal_TypeErrorNotRepaired(t *testing.T) {
	data := []byte(`{"caption": 42}`)
	var result struct {
		Caption string `json:"caption"`
	}

	if err := Unmarshal(data, &result); err == nil {
		t.Fatal("Unmarshal should fail on a type mismatch")
	}
}

func TestSchemaFor(t *testing.T) {
	type imageDescriptions struct {
		Descriptions []string `json:"descriptions"`
	}

	out, err := SchemaFor[imageDescriptions]("image_descriptions", "three image descriptions")
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}
	if out.Name != "image_descriptions" {
		t.Errorf("Name = %q", out.Name)
	}
	if out.Schema == nil || out.Schema.Properties["descriptions"] == nil {
		t.Fatal("schema missing descriptions property")
	}
}

func TestFormatStrictSchema(t *testing.T) {
	type captionResult struct {
		Caption string   `json:"caption"`
		Tags    []string `json:"tags,omitempty"`
	}

	out := MustSchemaFor[captionResult]("caption_result", "")
	s := formatStrictSchema(out.Schema.CloneSchemas())

	if s.AdditionalProperties == nil {
		t.Fatal("additionalProperties not pinned to false")
	}
	if len(s.Required) != 2 {
		t.Fatalf("Required = %v, want both properties required", s.Required)
	}
}
