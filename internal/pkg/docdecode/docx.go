package docdecode

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errNoDocumentPart = errors.New("docx has no word/document.xml")

// ExtractDOCX reads the main document part and keeps paragraph breaks. It
// stops collecting after maxTextBytes of text (zero means no text cap) and
// fails with ErrTooLarge once the part inflates past maxExpandedBytes.
func ExtractDOCX(data []byte, maxTextBytes int) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx failed: %w", err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return "", errNoDocumentPart
	}

	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("open docx part failed: %w", err)
	}
	defer rc.Close()

	text, err := wordprocessingText(&capReader{r: rc, left: maxExpandedBytes}, maxTextBytes)
	if err != nil {
		return "", fmt.Errorf("parse docx xml failed: %w", err)
	}
	return text, nil
}

// wordprocessingText collects w:t runs, turning w:p ends into newlines and
// w:tab / w:br into their whitespace.
func wordprocessingText(r io.Reader, maxTextBytes int) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b      strings.Builder
		inText bool
	)
	for maxTextBytes <= 0 || b.Len() < maxTextBytes {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

// capReader fails with ErrTooLarge instead of reading past its budget.
type capReader struct {
	r    io.Reader
	left int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.left <= 0 {
		var next [1]byte
		if n, err := c.r.Read(next[:]); n == 0 && err != nil {
			return 0, err
		}
		return 0, ErrTooLarge
	}
	if int64(len(p)) > c.left {
		p = p[:c.left]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	return n, err
}
