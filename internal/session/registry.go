package session

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"companion-ai/internal/model"
)

const (
	MediaTypePDF  = "application/pdf"
	MediaTypeDOC  = "application/msword"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Decoder turns raw upload bytes into text.
type Decoder interface {
	Decode(data []byte, mediaType string) (string, error)
}

// Registry tracks the documents available to one session. It is not safe for
// concurrent use; the Controller serializes access.
type Registry struct {
	decoder Decoder
	now     func() time.Time
	docs    []model.Attachment
}

func NewRegistry(decoder Decoder, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		decoder: decoder,
		now:     now,
	}
}

// NormalizeMediaType strips parameters and lowercases a declared media type.
func NormalizeMediaType(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		if i := strings.IndexByte(declared, ';'); i >= 0 {
			declared = declared[:i]
		}
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return mediaType
}

// IsSupportedMediaType reports whether uploads of this type are accepted.
func IsSupportedMediaType(declared string) bool {
	mediaType := NormalizeMediaType(declared)
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch mediaType {
	case MediaTypePDF, MediaTypeDOC, MediaTypeDOCX:
		return true
	}
	return false
}

// Ingest decodes and stores an upload. Nothing is stored on failure.
func (r *Registry) Ingest(_ context.Context, file model.RawFile) (model.Attachment, error) {
	if !IsSupportedMediaType(file.MediaType) {
		return model.Attachment{}, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, file.MediaType)
	}
	mediaType := NormalizeMediaType(file.MediaType)

	content, err := r.decoder.Decode(file.Data, mediaType)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("%w: %s: %w", ErrDocumentDecodeFailed, file.Name, err)
	}

	doc := model.Attachment{
		Name:      file.Name,
		MediaType: mediaType,
		SizeBytes: int64(len(file.Data)),
		Content:   content,
		AddedAt:   r.now(),
	}
	r.docs = append(r.docs, doc)
	return doc, nil
}

func (r *Registry) List() []model.Attachment {
	out := make([]model.Attachment, len(r.docs))
	copy(out, r.docs)
	return out
}

func (r *Registry) Len() int {
	return len(r.docs)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.docs))
	for i, doc := range r.docs {
		names[i] = doc.Name
	}
	return names
}

func (r *Registry) Refs() []model.AttachmentRef {
	refs := make([]model.AttachmentRef, len(r.docs))
	for i, doc := range r.docs {
		refs[i] = doc.Ref()
	}
	return refs
}

// Remove drops the first attachment with the given name. Absent names are a no-op.
func (r *Registry) Remove(name string) (model.Attachment, bool) {
	for i, doc := range r.docs {
		if doc.Name == name {
			r.removeAt(i)
			return doc, true
		}
	}
	return model.Attachment{}, false
}

// RemoveAt drops the attachment at the given registry position.
func (r *Registry) RemoveAt(index int) (model.Attachment, bool) {
	if index < 0 || index >= len(r.docs) {
		return model.Attachment{}, false
	}
	doc := r.docs[index]
	r.removeAt(index)
	return doc, true
}

// removeAt builds a fresh slice so snapshots handed out earlier never see the shift.
func (r *Registry) removeAt(index int) {
	next := make([]model.Attachment, 0, len(r.docs)-1)
	next = append(next, r.docs[:index]...)
	next = append(next, r.docs[index+1:]...)
	r.docs = next
}
