package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSSE(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "message.appended", want: "message.appended"},
		{in: "line one\nline two", want: `line one\nline two`},
		{in: "crlf\r\nbreak", want: `crlf\nbreak`},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeSSE(tt.in))
	}
}
