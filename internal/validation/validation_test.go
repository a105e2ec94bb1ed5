package validation_test

import (
	"testing"

	"tenderfinder/internal/apperror"
	"tenderfinder/internal/validation"

	"github.com/stretchr/testify/require"
)

type request struct {
	Username string   `json:"username" validate:"required,max=10"`
	Email    string   `json:"email" validate:"required,email"`
	Items    []string `json:"items" validate:"min=1"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name    string
		req     request
		message string
	}{
		{"ok", request{Username: "bob", Email: "bob@example.com", Items: []string{"a"}}, ""},
		{"missing username", request{Email: "bob@example.com", Items: []string{"a"}}, "username is required"},
		{"bad email", request{Username: "bob", Email: "bob", Items: []string{"a"}}, "email must be a valid email"},
		{"too long", request{Username: "abcdefghijk", Email: "bob@example.com", Items: []string{"a"}}, "username must be at most 10"},
		{"empty items", request{Username: "bob", Email: "bob@example.com"}, "items must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Struct(tt.req)
			if tt.message == "" {
				require.NoError(t, err)
				return
			}
			require.Equal(t, apperror.KindValidation, apperror.KindOf(err))
			require.Equal(t, tt.message, apperror.Message(err))
		})
	}
}
