package session

import "errors"

var (
	ErrEmptyInput               = errors.New("message content is empty")
	ErrUnsupportedMediaType     = errors.New("unsupported media type")
	ErrDocumentDecodeFailed     = errors.New("document decode failed")
	ErrResponseAlreadyPending   = errors.New("response already pending")
	ErrResponseGenerationFailed = errors.New("response generation failed")
	ErrNotAuthenticated         = errors.New("session is not authenticated")
)
