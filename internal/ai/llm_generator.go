package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"companion-ai/internal/model"
	"companion-ai/internal/session"
)

const (
	DefaultSystemPrompt        = "You are Companion AI, a concise assistant for appliance troubleshooting and maintenance. Ground your answers in the user's documents when they are relevant."
	DefaultDocumentTokenBudget = 6000
)

type LLMOptions struct {
	SystemPrompt        string
	DocumentTokenBudget int
	Counter             TokenCounter
	Logger              zerolog.Logger
}

// LLMGenerator grounds an OpenAI-compatible chat completion on the session
// history and the documents staged when the turn was submitted.
type LLMGenerator struct {
	client       *OpenAICompatibleClient
	cfg          ChatConfig
	systemPrompt string
	budget       int
	counter      TokenCounter
	log          zerolog.Logger
}

func NewLLMGenerator(client *OpenAICompatibleClient, cfg ChatConfig, opts LLMOptions) (*LLMGenerator, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client is nil", ErrLLMConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.DocumentTokenBudget <= 0 {
		opts.DocumentTokenBudget = DefaultDocumentTokenBudget
	}
	if opts.Counter == nil {
		opts.Counter = NewTokenCounter()
	}
	return &LLMGenerator{
		client:       client,
		cfg:          cfg,
		systemPrompt: opts.SystemPrompt,
		budget:       opts.DocumentTokenBudget,
		counter:      opts.Counter,
		log:          opts.Logger,
	}, nil
}

func (g *LLMGenerator) Generate(ctx context.Context, req session.GenerateRequest) (string, error) {
	messages := g.buildPromptMessages(req)
	g.log.Debug().
		Str("session_id", req.SessionID).
		Str("model", g.cfg.Model).
		Str("api_key", MaskSecret(g.cfg.APIKey)).
		Int("prompt_messages", len(messages)).
		Msg("llm request")
	return g.client.Complete(ctx, g.cfg, messages)
}

func (g *LLMGenerator) buildPromptMessages(req session.GenerateRequest) []ChatMessage {
	messages := make([]ChatMessage, 0, len(req.History)+3)
	messages = append(messages, ChatMessage{Role: RoleSystem, Content: g.systemPrompt})
	if docs := g.documentContext(req.Documents); docs != "" {
		messages = append(messages, ChatMessage{Role: RoleSystem, Content: docs})
	}

	for _, item := range req.History {
		role := RoleUser
		if item.Sender == model.SenderAssistant {
			role = RoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: renderTurn(item)})
	}
	// History is taken after the user turn is appended; fall back to the
	// request content when the caller sent none.
	if len(req.History) == 0 {
		messages = append(messages, ChatMessage{Role: RoleUser, Content: req.Content})
	}
	return messages
}

// documentContext packs documents in registry order until the token budget is
// spent; the document that crosses the budget is truncated.
func (g *LLMGenerator) documentContext(docs []model.Attachment) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("The user has shared these documents:\n")
	remaining := g.budget
	for _, doc := range docs {
		if remaining <= 0 {
			fmt.Fprintf(&b, "\n### %s\n(omitted, context budget exhausted)\n", doc.Name)
			continue
		}
		content := g.counter.Truncate(doc.Content, remaining)
		remaining -= g.counter.Count(content)
		fmt.Fprintf(&b, "\n### %s (%s)\n%s\n", doc.Name, doc.MediaType, content)
	}
	return b.String()
}

func renderTurn(msg model.Message) string {
	if !msg.HasAttachments() {
		return msg.Content
	}
	names := make([]string, len(msg.Attachments))
	for i, ref := range msg.Attachments {
		names[i] = ref.Name
	}
	note := "[attached: " + strings.Join(names, ", ") + "]"
	if strings.TrimSpace(msg.Content) == "" {
		return note
	}
	return msg.Content + "\n" + note
}
