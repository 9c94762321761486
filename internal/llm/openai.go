package llm

import (
	"context"

	"github.com/cloo-solutions/ragdesk/internal/openai"
)

type openAIModel struct {
	chat   Completer
	params Params
}

func (m *openAIModel) Generate(ctx context.Context, prompt string) (string, error) {
	return m.chat.Complete(ctx, openai.ChatRequest{
		Model:       m.params.Model,
		Prompt:      prompt,
		Temperature: m.params.Temperature,
		TopP:        m.params.TopP,
		MaxTokens:   m.params.MaxTokens,
	})
}
