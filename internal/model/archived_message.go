package model

import (
	"strings"
	"time"
)

// ArchivedMessage is one transcript line written by the archive worker.
type ArchivedMessage struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SessionID       string    `gorm:"size:64;not null;index" json:"session_id"`
	MessageID       string    `gorm:"size:32;not null;uniqueIndex" json:"message_id"`
	Seq             uint64    `gorm:"not null" json:"seq"`
	Sender          string    `gorm:"size:16;not null;index" json:"sender"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	AttachmentNames string    `gorm:"type:text" json:"attachment_names"`
	SentAt          time.Time `gorm:"not null" json:"sent_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewArchivedMessage flattens a timeline message into a transcript line.
func NewArchivedMessage(sessionID string, msg Message) ArchivedMessage {
	names := make([]string, len(msg.Attachments))
	for i, ref := range msg.Attachments {
		names[i] = ref.Name
	}
	return ArchivedMessage{
		SessionID:       sessionID,
		MessageID:       msg.ID,
		Seq:             msg.Seq,
		Sender:          string(msg.Sender),
		Content:         msg.Content,
		AttachmentNames: strings.Join(names, "\n"),
		SentAt:          msg.Timestamp,
	}
}
