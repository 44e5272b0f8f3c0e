package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewArchivedMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	line := NewArchivedMessage("sess-1", Message{
		ID:        "01HXYZ",
		Seq:       3,
		Sender:    SenderUser,
		Content:   "compare these",
		Timestamp: at,
		Attachments: []AttachmentRef{
			{Name: "a.pdf", MediaType: "application/pdf", SizeBytes: 10},
			{Name: "b.txt", MediaType: "text/plain", SizeBytes: 2},
		},
	})

	assert.Equal(t, ArchivedMessage{
		SessionID:       "sess-1",
		MessageID:       "01HXYZ",
		Seq:             3,
		Sender:          "user",
		Content:         "compare these",
		AttachmentNames: "a.pdf\nb.txt",
		SentAt:          at,
	}, line)
}

func TestNewArchivedMessageWithoutAttachments(t *testing.T) {
	line := NewArchivedMessage("sess-1", Message{ID: "x", Sender: SenderAssistant, Content: "hi"})
	assert.Empty(t, line.AttachmentNames)
	assert.False(t, Message{}.HasAttachments())
}
