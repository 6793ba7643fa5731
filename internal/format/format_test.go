package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bullets", "- walls\n* keys", "• walls\n• keys"},
		{"indented bullet", "  - nested", "• nested"},
		{"bold stripped", "a **bold** word", "a bold word"},
		{"header stripped", "## Features\n\n- walls", "Features\n\n• walls"},
		{"whitespace trimmed", "  \n hello \n ", "hello"},
		{"plain text untouched", "just a sentence", "just a sentence"},
		{"dash inside a line kept", "up-down movement", "up-down movement"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Plain(tt.in))
		})
	}
}
