package events

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-ai/internal/model"
	"companion-ai/internal/session"
)

func receive(t *testing.T, ch <-chan session.Event) session.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return session.Event{}
	}
}

func TestBusDeliversPerSession(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine, err := bus.Subscribe(ctx, "s1")
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, "s2")
	require.NoError(t, err)

	bus.Notify(session.Event{
		Type:      session.EventMessageAppended,
		SessionID: "s1",
		Message:   &model.Message{ID: "m1", Seq: 1, Sender: model.SenderUser, Content: "hi"},
	})

	ev := receive(t, mine)
	assert.Equal(t, session.EventMessageAppended, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "hi", ev.Message.Content)

	select {
	case ev := <-other:
		t.Fatalf("unexpected event for s2: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusCarriesControllerEvents(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := bus.Subscribe(ctx, "s1")
	require.NoError(t, err)

	c, err := session.New(session.Options{
		ID:            "s1",
		Authenticated: true,
		Generator: session.GeneratorFunc(func(context.Context, session.GenerateRequest) (string, error) {
			return "reply", nil
		}),
		Decoder:  nopDecoder{},
		Notifier: bus,
	})
	require.NoError(t, err)

	turn, err := c.SubmitUserMessage(context.Background(), "fridge not cooling")
	require.NoError(t, err)
	_, err = turn.Wait(ctx)
	require.NoError(t, err)

	var appended []string
	for i := 0; i < 4; i++ {
		ev := receive(t, stream)
		if ev.Type == session.EventMessageAppended {
			appended = append(appended, string(ev.Message.Sender))
		}
	}
	assert.ElementsMatch(t, []string{"user", "assistant"}, appended)
}

func TestSubscribeEndsWithContext(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := bus.Subscribe(ctx, "s1")
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-stream:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

type nopDecoder struct{}

func (nopDecoder) Decode(data []byte, _ string) (string, error) { return string(data), nil }
