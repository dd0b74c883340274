package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"plain integer", "123456789", true},
		{"negative integer", "-42", true},
		{"decimal", "3.14", true},
		{"scientific notation", "1e6", true},
		{"fullwidth digits", "１２３", true},
		{"han numerals", "一二三", true},
		{"empty", "", false},
		{"letters", "abc", false},
		{"mixed digits and letters", "123abc", false},
		{"infinity", "Inf", false},
		{"nan", "NaN", false},
		{"whitespace", " 123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.token))
		})
	}
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "123", Canonical("123"))
	assert.Equal(t, "123", Canonical("0123"))
	assert.Equal(t, "-7", Canonical("-7"))
	// Non-integer tokens pass through unchanged.
	assert.Equal(t, "３", Canonical("３"))
}
