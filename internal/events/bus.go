// Package events fans session events out to in-process subscribers such as
// SSE streams.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"companion-ai/internal/session"
)

const subscriberBuffer = 64

// Bus publishes every session event on a per-session topic. Delivery order
// between two events is not guaranteed; consumers order messages by Seq.
type Bus struct {
	pubsub *gochannel.GoChannel
	log    zerolog.Logger
}

func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: subscriberBuffer},
			NewWatermillLogger(log),
		),
		log: log,
	}
}

// Notify never blocks the session that emitted ev.
func (b *Bus) Notify(ev session.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Error().Err(err).Str("session_id", ev.SessionID).Msg("marshal session event failed")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", string(ev.Type))
	if err := b.pubsub.Publish(topic(ev.SessionID), msg); err != nil {
		b.log.Warn().Err(err).Str("session_id", ev.SessionID).Msg("publish session event failed")
	}
}

// Subscribe streams events of one session until ctx ends or the bus closes.
func (b *Bus) Subscribe(ctx context.Context, sessionID string) (<-chan session.Event, error) {
	messages, err := b.pubsub.Subscribe(ctx, topic(sessionID))
	if err != nil {
		return nil, fmt.Errorf("subscribe session events failed: %w", err)
	}

	out := make(chan session.Event, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range messages {
			var ev session.Event
			err := json.Unmarshal(msg.Payload, &ev)
			msg.Ack()
			if err != nil {
				b.log.Warn().Err(err).Msg("decode session event failed")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}

func topic(sessionID string) string {
	return "session." + sessionID
}
