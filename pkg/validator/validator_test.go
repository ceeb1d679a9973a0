package validator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type joinPayload struct {
	DisplayName string `validate:"required,max=8"`
	Kind        string `validate:"omitempty,oneof=text file image"`
}

func TestValidator_ValidateStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name  string
		input any
		want  []ValidationError
	}{
		{
			name:  "Valid",
			input: joinPayload{DisplayName: "alice", Kind: "text"},
		},
		{
			name:  "Missing",
			input: joinPayload{},
			want:  []ValidationError{{Field: "DisplayName", Rule: "required"}},
		},
		{
			name:  "TooLong",
			input: joinPayload{DisplayName: "abcdefghij"},
			want:  []ValidationError{{Field: "DisplayName", Rule: "max", Param: "8"}},
		},
		{
			name:  "BadKind",
			input: joinPayload{DisplayName: "bob", Kind: "video"},
			want:  []ValidationError{{Field: "Kind", Rule: "oneof", Param: "text file image"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.ValidateStruct(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ValidateStruct() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	v := New()

	if errs := v.Validate("", "required"); len(errs) != 1 {
		t.Errorf("Validate(\"\", required) = %v, want one error", errs)
	}
	if errs := v.Validate("x", "required"); errs != nil {
		t.Errorf("Validate(\"x\", required) = %v, want none", errs)
	}
}

func TestValidationError_String(t *testing.T) {
	got := ValidationError{Field: "Body", Rule: "max", Param: "4000"}.String()
	if got != "Body: max=4000" {
		t.Errorf("String() = %q", got)
	}
	got = ValidationError{Field: "Body", Rule: "required"}.String()
	if got != "Body: required" {
		t.Errorf("String() = %q", got)
	}
}
