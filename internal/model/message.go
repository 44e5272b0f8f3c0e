package model

import "time"

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one turn in the conversation. Seq is the authoritative order;
// Timestamp is for display only.
type Message struct {
	ID          string          `json:"id"`
	Seq         uint64          `json:"seq"`
	Sender      Sender          `json:"sender"`
	Content     string          `json:"content"`
	Timestamp   time.Time       `json:"timestamp"`
	Attachments []AttachmentRef `json:"attachments"`
}

// HasAttachments reports whether the message references at least one document.
func (m Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}
