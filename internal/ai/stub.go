package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"companion-ai/internal/session"
)

const DefaultStubDelay = time.Second

// StubGenerator answers every turn from fixed templates after a delay. It
// stands in for a model backend in demos and tests.
type StubGenerator struct {
	Delay time.Duration
}

func NewStubGenerator(delay time.Duration) *StubGenerator {
	if delay < 0 {
		delay = 0
	}
	return &StubGenerator{Delay: delay}
}

func (g *StubGenerator) Generate(ctx context.Context, req session.GenerateRequest) (string, error) {
	if g.Delay > 0 {
		timer := time.NewTimer(g.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if req.Kind == session.TurnUpload && req.Upload != nil {
		return uploadReply(req.Upload.Name), nil
	}
	return textReply(req.Content, req.AttachmentNames), nil
}

func uploadReply(name string) string {
	return fmt.Sprintf("Great! I've received your document \"%s\". I can now help you with questions about this manual or document. What specific information are you looking for?", name)
}

func textReply(text string, names []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I understand you're asking about \"%s\". ", text)
	if len(names) > 0 {
		fmt.Fprintf(&b, "Based on the documents you've uploaded (%s), I can provide more specific guidance. ", strings.Join(names, ", "))
	}
	b.WriteString("As your Companion AI, I can help you troubleshoot appliances, provide maintenance tips, and guide you through repairs. Could you tell me more about the specific appliance or issue you're experiencing?")
	return b.String()
}
