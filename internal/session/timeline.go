package session

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/oklog/ulid/v2"

	"companion-ai/internal/model"
)

// Timeline is the append-only, ordered log of a session's messages. It is not
// safe for concurrent use; the Controller serializes access.
type Timeline struct {
	now      func() time.Time
	entropy  io.Reader
	messages []model.Message
}

func NewTimeline(now func() time.Time) *Timeline {
	if now == nil {
		now = time.Now
	}
	return &Timeline{
		now:     now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Append records a new message at the end of the log and returns it.
func (t *Timeline) Append(sender model.Sender, content string, attachments []model.AttachmentRef) model.Message {
	ts := t.now()
	msg := model.Message{
		ID:          t.newID(ts),
		Seq:         uint64(len(t.messages)) + 1,
		Sender:      sender,
		Content:     content,
		Timestamp:   ts,
		Attachments: cloneRefs(attachments),
	}
	t.messages = append(t.messages, msg)
	return cloneMessage(msg)
}

// All returns every message, oldest first.
func (t *Timeline) All() []model.Message {
	out := make([]model.Message, len(t.messages))
	for i, msg := range t.messages {
		out[i] = cloneMessage(msg)
	}
	return out
}

// Recent returns the last n messages, oldest first. n <= 0 returns all.
func (t *Timeline) Recent(n int) []model.Message {
	if n <= 0 || n >= len(t.messages) {
		return t.All()
	}
	tail := t.messages[len(t.messages)-n:]
	out := make([]model.Message, len(tail))
	for i, msg := range tail {
		out[i] = cloneMessage(msg)
	}
	return out
}

func (t *Timeline) Len() int {
	return len(t.messages)
}

func (t *Timeline) newID(ts time.Time) string {
	id, err := ulid.New(ulid.Timestamp(ts), t.entropy)
	if err != nil {
		// monotonic entropy overflowed within one millisecond
		return ulid.Make().String()
	}
	return id.String()
}

// cloneRefs keeps nil as nil so "no attachments" and "zero attachments" stay distinct.
func cloneRefs(refs []model.AttachmentRef) []model.AttachmentRef {
	if refs == nil {
		return nil
	}
	out := make([]model.AttachmentRef, len(refs))
	copy(out, refs)
	return out
}

func cloneMessage(msg model.Message) model.Message {
	msg.Attachments = cloneRefs(msg.Attachments)
	return msg
}
