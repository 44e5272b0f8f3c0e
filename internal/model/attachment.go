package model

import "time"

// RawFile is an upload as received, before decoding.
type RawFile struct {
	Name      string
	MediaType string
	Data      []byte
}

// Attachment is an ingested document. Content is the decoded text and never
// leaves the registry through a Message.
type Attachment struct {
	Name      string    `json:"name"`
	MediaType string    `json:"media_type"`
	SizeBytes int64     `json:"size_bytes"`
	Content   string    `json:"-"`
	AddedAt   time.Time `json:"added_at"`
}

// AttachmentRef is the metadata-only reference a Message carries.
type AttachmentRef struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	SizeBytes int64  `json:"size_bytes"`
}

func (a Attachment) Ref() AttachmentRef {
	return AttachmentRef{
		Name:      a.Name,
		MediaType: a.MediaType,
		SizeBytes: a.SizeBytes,
	}
}
