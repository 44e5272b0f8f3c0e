// Package docdecode turns uploaded document bytes into plain text.
package docdecode

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	mediaTypePDF  = "application/pdf"
	mediaTypeDOC  = "application/msword"
	mediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// maxExpandedBytes bounds how much a compressed part may inflate to.
var maxExpandedBytes int64 = 32 << 20

var (
	ErrUnsupported = errors.New("document type not supported")
	ErrEmptyFile   = errors.New("document is empty")
	ErrNotText     = errors.New("document is binary, not text")
	ErrTooLarge    = errors.New("document expands beyond the size limit")
)

// Decoder dispatches on normalized media type.
type Decoder struct {
	// MaxChars caps the decoded text; zero keeps everything.
	MaxChars int
}

func New(maxChars int) *Decoder {
	return &Decoder{MaxChars: maxChars}
}

// Decode never panics: a parser panic on malformed input is returned as an
// error so the caller can reject the upload.
func (d *Decoder) Decode(data []byte, mediaType string) (text string, err error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	defer recoverDecode(&err, mediaType)

	switch {
	case strings.HasPrefix(mediaType, "text/"):
		text, err = decodeText(data)
	case mediaType == mediaTypePDF:
		text, err = ExtractPDF(data)
	case mediaType == mediaTypeDOCX:
		text, err = ExtractDOCX(data, d.maxTextBytes())
	case mediaType == mediaTypeDOC:
		text, err = ExtractDOC(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, mediaType)
	}
	if err != nil {
		return "", err
	}
	return d.clip(strings.TrimSpace(text)), nil
}

// decodeText accepts any 8-bit text; invalid UTF-8 runs become U+FFFD.
// NUL bytes mark the payload as binary.
func decodeText(data []byte) (string, error) {
	data = trimBOM(data)
	if bytes.IndexByte(data, 0) >= 0 {
		return "", ErrNotText
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// maxTextBytes is the most bytes of text that can survive clip.
func (d *Decoder) maxTextBytes() int {
	if d.MaxChars <= 0 {
		return 0
	}
	return d.MaxChars * utf8.UTFMax
}

func recoverDecode(err *error, mediaType string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("decode %s failed: %v", mediaType, r)
	}
}

func (d *Decoder) clip(text string) string {
	if d.MaxChars <= 0 || utf8.RuneCountInString(text) <= d.MaxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:d.MaxChars])
}
