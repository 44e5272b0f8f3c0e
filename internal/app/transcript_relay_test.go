package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-ai/internal/model"
	"companion-ai/internal/session"
)

type publisherSpy struct {
	mu    sync.Mutex
	lines []model.ArchivedMessage
	err   error
}

func (p *publisherSpy) Publish(_ context.Context, line model.ArchivedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, line)
	return p.err
}

func (p *publisherSpy) published() []model.ArchivedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.ArchivedMessage(nil), p.lines...)
}

func TestRelayPublishesAppendedMessages(t *testing.T) {
	pub := &publisherSpy{}
	relay := NewTranscriptRelay(pub, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		relay.Run(context.Background())
		close(done)
	}()

	relay.Notify(session.Event{Type: session.EventPendingChanged, SessionID: "s1", Pending: true})
	relay.Notify(session.Event{
		Type:      session.EventMessageAppended,
		SessionID: "s1",
		Message:   &model.Message{ID: "m1", Seq: 1, Sender: model.SenderUser, Content: "hi"},
	})
	relay.Close()
	relay.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}

	lines := pub.published()
	require.Len(t, lines, 1)
	assert.Equal(t, "s1", lines[0].SessionID)
	assert.Equal(t, "m1", lines[0].MessageID)
}

func TestRelayDropsWhenFull(t *testing.T) {
	relay := NewTranscriptRelay(&publisherSpy{}, zerolog.Nop())
	msg := &model.Message{ID: "m", Sender: model.SenderUser}

	assert.NotPanics(t, func() {
		for i := 0; i < transcriptBuffer+10; i++ {
			relay.Notify(session.Event{Type: session.EventMessageAppended, SessionID: "s1", Message: msg})
		}
	})
	assert.Len(t, relay.lines, transcriptBuffer)
}

func TestRelaySurvivesPublishErrors(t *testing.T) {
	pub := &publisherSpy{err: errors.New("broker down")}
	relay := NewTranscriptRelay(pub, zerolog.Nop())
	relay.Notify(session.Event{Type: session.EventMessageAppended, SessionID: "s1", Message: &model.Message{ID: "m"}})
	relay.Close()

	relay.Run(context.Background())
	assert.Len(t, pub.published(), 1)
}
