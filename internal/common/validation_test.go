package common

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatorRules(t *testing.T) {
	tests := []struct {
		name  string
		v     *Validator
		valid bool
		want  string
	}{
		{"pdf ok", NewValidator().Field("file", "Report.PDF", Required, Extension("pdf")), true, ""},
		{"wrong ext", NewValidator().Field("file", "notes.txt", Extension("pdf")), false, "must have extension pdf"},
		{"blank name", NewValidator().Field("file", "  ", Required), false, "is required"},
		{"empty bytes", NewValidator().Field("file", []byte{}, Required), false, "is required"},
		{"under limit", NewValidator().Field("file", []byte("abc"), MaxBytes(3)), true, ""},
		{"over limit", NewValidator().Field("file", []byte("abcd"), MaxBytes(3)), false, "at most 3 bytes"},
		{"manual", NewValidator().Add("provider", "x", "unknown provider"), false, "unknown provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAndReturnError(tt.v)
			if tt.valid {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
			if !strings.Contains(UserMessage(err), tt.want) {
				t.Fatalf("message %q does not contain %q", UserMessage(err), tt.want)
			}
		})
	}
}
