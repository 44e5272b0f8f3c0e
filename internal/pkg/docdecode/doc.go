package docdecode

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf16"
)

const minRunLength = 4

var errNoText = errors.New("no readable text in legacy word document")

// ExtractDOC recovers readable text from a legacy binary .doc by scanning for
// runs of printable characters, trying UTF-16LE first (how Word stores
// most text) and single-byte runs after. Formatting is lost.
func ExtractDOC(data []byte) (string, error) {
	if text := utf16Runs(data); text != "" {
		return text, nil
	}
	if text := byteRuns(data); text != "" {
		return text, nil
	}
	return "", errNoText
}

func utf16Runs(data []byte) string {
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		units = append(units, uint16(data[i])|uint16(data[i+1])<<8)
	}
	return collectRuns(utf16.Decode(units))
}

func byteRuns(data []byte) string {
	runes := make([]rune, len(data))
	for i, c := range data {
		runes[i] = rune(c)
	}
	return collectRuns(runes)
}

func collectRuns(runes []rune) string {
	var (
		out []string
		run []rune
	)
	flush := func() {
		if letters(run) >= minRunLength {
			out = append(out, strings.TrimSpace(string(run)))
		}
		run = run[:0]
	}
	for _, r := range runes {
		if r == '\r' || r == '\n' {
			flush()
			continue
		}
		if r < 0x80 && (unicode.IsPrint(r) || r == '\t') || r >= 0xA0 && r < 0x250 && unicode.IsLetter(r) {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()
	return strings.Join(out, "\n")
}

func letters(run []rune) int {
	n := 0
	for _, r := range run {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
