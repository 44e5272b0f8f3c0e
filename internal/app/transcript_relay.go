package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"companion-ai/internal/model"
	"companion-ai/internal/session"
)

const transcriptBuffer = 256

type TranscriptPublisher interface {
	Publish(ctx context.Context, line model.ArchivedMessage) error
}

// TranscriptRelay forwards appended messages to the archive queue off the
// session lock. Lines are dropped, not blocked on, when the buffer is full.
type TranscriptRelay struct {
	publisher TranscriptPublisher
	log       zerolog.Logger
	lines     chan model.ArchivedMessage

	closeOnce sync.Once
	done      chan struct{}
}

func NewTranscriptRelay(publisher TranscriptPublisher, log zerolog.Logger) *TranscriptRelay {
	return &TranscriptRelay{
		publisher: publisher,
		log:       log.With().Str("component", "transcript_relay").Logger(),
		lines:     make(chan model.ArchivedMessage, transcriptBuffer),
		done:      make(chan struct{}),
	}
}

func (r *TranscriptRelay) Notify(ev session.Event) {
	if ev.Type != session.EventMessageAppended || ev.Message == nil {
		return
	}
	line := model.NewArchivedMessage(ev.SessionID, *ev.Message)
	select {
	case r.lines <- line:
	default:
		r.log.Warn().Str("session_id", ev.SessionID).Str("message_id", line.MessageID).Msg("transcript buffer full, line dropped")
	}
}

// Run publishes lines until Close is called, then drains what is buffered.
func (r *TranscriptRelay) Run(ctx context.Context) {
	for {
		select {
		case line := <-r.lines:
			r.publish(ctx, line)
		case <-r.done:
			for {
				select {
				case line := <-r.lines:
					r.publish(ctx, line)
				default:
					return
				}
			}
		}
	}
}

func (r *TranscriptRelay) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

func (r *TranscriptRelay) publish(ctx context.Context, line model.ArchivedMessage) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.publisher.Publish(pubCtx, line); err != nil {
		r.log.Error().Err(err).Str("session_id", line.SessionID).Str("message_id", line.MessageID).Msg("publish transcript line failed")
	}
}
