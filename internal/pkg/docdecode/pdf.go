package docdecode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ExtractPDF returns the plain text of every page. A PDF without a text layer
// yields an empty string and no error. The pdf package panics on some
// malformed files; those panics come back as errors.
func ExtractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract pdf text failed: %v", r)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	return string(out), nil
}
