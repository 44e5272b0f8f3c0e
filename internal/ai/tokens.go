package ai

import (
	"unicode/utf8"

	"github.com/weaviate/tiktoken-go"
)

// TokenCounter measures and trims text in model tokens.
type TokenCounter interface {
	Count(text string) int
	Truncate(text string, maxTokens int) string
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter returns a cl100k_base counter, or a byte-length estimate
// when the encoding cannot be loaded.
func NewTokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return approxCounter{}
	}
	return tiktokenCounter{enc: enc}
}

func (c tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (c tiktokenCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return c.enc.Decode(tokens[:maxTokens])
}

// approxCounter assumes four bytes per token.
type approxCounter struct{}

const bytesPerToken = 4

func (approxCounter) Count(text string) int {
	return (len(text) + bytesPerToken - 1) / bytesPerToken
}

func (approxCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	limit := maxTokens * bytesPerToken
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}
