package bootstrap

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"companion-ai/internal/ai"
	"companion-ai/internal/config"
	"companion-ai/internal/session"
)

// NewGenerator picks the reply backend named by llm.provider.
func NewGenerator(cfg *config.Config, log zerolog.Logger) (session.Generator, error) {
	switch cfg.LLM.Provider {
	case "", "stub":
		return ai.NewStubGenerator(cfg.Session.StubDelay.Duration), nil
	case "openai":
		// The transport timeout stays above the session deadline so the
		// scheduler reports the timeout, not the HTTP client.
		client := ai.NewOpenAICompatibleClient(cfg.Session.ResponseTimeout.Duration + 30*time.Second)
		generator, err := ai.NewLLMGenerator(client, ai.ChatConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
		}, ai.LLMOptions{
			SystemPrompt:        cfg.LLM.SystemPrompt,
			DocumentTokenBudget: cfg.LLM.DocumentTokenBudget,
			Logger:              log,
		})
		if err != nil {
			return nil, fmt.Errorf("build llm generator failed: %w", err)
		}
		return generator, nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", config.ErrInvalidConfig, cfg.LLM.Provider)
	}
}
