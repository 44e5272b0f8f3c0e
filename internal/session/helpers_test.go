package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"companion-ai/internal/model"
)

type textDecoder struct{}

func (textDecoder) Decode(data []byte, _ string) (string, error) {
	if string(data) == "corrupt" {
		return "", errors.New("cannot read document")
	}
	return string(data), nil
}

// gatedGenerator blocks every call until release is closed or ctx ends.
type gatedGenerator struct {
	release chan struct{}
	reply   string
	err     error

	mu   sync.Mutex
	reqs []GenerateRequest
}

func newGatedGenerator(reply string) *gatedGenerator {
	return &gatedGenerator{release: make(chan struct{}), reply: reply}
}

func (g *gatedGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()

	select {
	case <-g.release:
		return g.reply, g.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gatedGenerator) requests() []GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GenerateRequest, len(g.reqs))
	copy(out, g.reqs)
	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Notify(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func newController(t *testing.T, gen Generator, opts ...func(*Options)) *Controller {
	t.Helper()
	o := Options{
		ID:              "s-test",
		Authenticated:   true,
		Generator:       gen,
		Decoder:         textDecoder{},
		ResponseTimeout: 2 * time.Second,
	}
	for _, fn := range opts {
		fn(&o)
	}
	c, err := New(o)
	require.NoError(t, err)
	return c
}

func waitTurn(t *testing.T, turn *Turn) (model.Message, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := turn.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "turn did not resolve")
	return msg, err
}

func manual() model.RawFile {
	return model.RawFile{Name: "manual.txt", MediaType: "text/plain", Data: []byte("Reset the compressor relay.")}
}
