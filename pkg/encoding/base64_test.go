package encoding

import (
	"encoding/json"
	"testing"
)

func TestStdBase64Data_MarshalJSON(t *testing.T) {
	data := StdBase64Data([]byte("hello world"))

	b, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("MarshalJSON error: %v", err)
	}

	expected := `"aGVsbG8gd29ybGQ="`
	if string(b) != expected {
		t.Errorf("MarshalJSON = %s; want %s", b, expected)
	}
}

func TestStdBase64Data_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{
			name:  "valid base64",
			input: `"aGVsbG8gd29ybGQ="`,
			want:  []byte("hello world"),
		},
		{
			name:  "empty base64",
			input: `""`,
			want:  []byte{},
		},
		{
			name:  "null",
			input: `null`,
			want:  nil,
		},
		{
			name:    "invalid - number",
			input:   `123`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var data StdBase64Data
			err := json.Unmarshal([]byte(tc.input), &data)

			if tc.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("UnmarshalJSON error: %v", err)
			}

			if string(data) != string(tc.want) {
				t.Errorf("UnmarshalJSON = %v; want %v", data, tc.want)
			}
		})
	}
}

func TestStdBase64Data_RoundTrip(t *testing.T) {
	original := StdBase64Data([]byte("test data for round trip"))

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var restored StdBase64Data
	if err := json.Unmarshal(b, &restored); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if string(original) != string(restored) {
		t.Errorf("RoundTrip: original=%v, restored=%v", original, restored)
	}
}

func TestStdBase64Data_String(t *testing.T) {
	data := StdBase64Data([]byte("hello"))
	expected := "aGVsbG8="

	if data.String() != expected {
		t.Errorf("String() = %s; want %s", data.String(), expected)
	}
}

