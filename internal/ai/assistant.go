// Package ai wraps the external text-generation endpoint. It is consumed as
// a plain request/response call: no streaming, no retry.
package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Turn is a single role/content entry of the conversation sent to the
// endpoint.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	Provider string // "openai" or "ollama"
	Model    string
	APIKey   string
	BaseURL  string // ollama server URL
}

type Assistant struct {
	llm llms.Model
}

func NewAssistant(cfg Config) (*Assistant, error) {
	var model llms.Model
	var err error

	switch cfg.Provider {
	case "ollama":
		model, err = ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported AI provider: %q", cfg.Provider)
	}

	return &Assistant{llm: model}, nil
}

// Complete sends the ordered conversation turns to the endpoint and returns
// the single completion turn.
func (a *Assistant) Complete(ctx context.Context, turns []Turn) (string, error) {
	messages := make([]llms.MessageContent, 0, len(turns))
	for _, t := range turns {
		role := llms.ChatMessageTypeHuman
		switch t.Role {
		case "system":
			role = llms.ChatMessageTypeSystem
		case "assistant", "ai":
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, t.Content))
	}

	resp, err := a.llm.GenerateContent(ctx, messages, llms.WithMaxTokens(500))
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}
	return resp.Choices[0].Content, nil
}
