package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-ai/internal/ai"
	"companion-ai/internal/pkg/docdecode"
	"companion-ai/internal/session"
)

func newTestREPL(t *testing.T, input string) (*repl, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true

	ctrl, err := session.New(session.Options{
		ID:            "terminal",
		Authenticated: true,
		Generator:     ai.NewStubGenerator(0),
		Decoder:       docdecode.New(0),
		Greeting:      "Hello!",
	})
	require.NoError(t, err)

	var out bytes.Buffer
	r := newREPL(ctrl, strings.NewReader(input), &out)
	r.readFile = func(path string) ([]byte, error) {
		if path == "docs/manual.txt" {
			return []byte("Hold the reset button for five seconds."), nil
		}
		return nil, errors.New("open " + path + ": no such file or directory")
	}
	return r, &out
}

func TestREPLConversation(t *testing.T) {
	r, out := newTestREPL(t, strings.Join([]string{
		"fridge not cooling",
		"/attach docs/manual.txt",
		"/list",
		"/detach 1",
		"/quit",
		"never read",
	}, "\n"))

	require.NoError(t, r.run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "assistant: Hello!")
	assert.Contains(t, text, `assistant: I understand you're asking about "fridge not cooling".`)
	assert.Contains(t, text, `I've uploaded "manual.txt" for analysis.`)
	assert.Contains(t, text, `assistant: Great! I've received your document "manual.txt".`)
	assert.Contains(t, text, "1. manual.txt (0.0 KB)")
	assert.Contains(t, text, "no attachments")
	assert.Empty(t, r.ctrl.Attachments())
	assert.Len(t, r.ctrl.Messages(), 5)
}

func TestREPLReportsErrors(t *testing.T) {
	r, out := newTestREPL(t, "   \n/attach missing.pdf\n/detach 4\n/attach\n")

	require.NoError(t, r.run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "error: "+session.ErrEmptyInput.Error())
	assert.Contains(t, text, "error: open missing.pdf: no such file or directory")
	assert.Contains(t, text, "error: no attachment number 4")
	assert.Contains(t, text, "error: usage: /attach <path>")
	assert.Len(t, r.ctrl.Messages(), 1)
}

func TestREPLRejectsOversizedFile(t *testing.T) {
	r, out := newTestREPL(t, "/attach docs/manual.txt\n")
	r.maxUploadBytes = 8

	require.NoError(t, r.run(context.Background()))

	assert.Contains(t, out.String(), "error: manual.txt is larger than 8 bytes")
	assert.Empty(t, r.ctrl.Attachments())
}
