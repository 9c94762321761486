package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// claudeMaxTemperature is the upper bound the Messages API accepts.
const claudeMaxTemperature = 1.0

var errEmptyClaudeResponse = errors.New("claude returned no text content")

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type claudeModel struct {
	messages messageCreator
	params   Params
}

func newClaudeModel(apiKey string, p Params) *claudeModel {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &claudeModel{messages: &client.Messages, params: p}
}

func (m *claudeModel) request(prompt string) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.params.Model),
		MaxTokens: int64(m.params.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	// Newer Claude models reject requests that set both sampling controls, so
	// a narrowed top_p is sent instead of temperature.
	if m.params.TopP > 0 && m.params.TopP < 1 {
		params.TopP = anthropic.Float(m.params.TopP)
	} else {
		params.Temperature = anthropic.Float(min(m.params.Temperature, claudeMaxTemperature))
	}
	return params
}

func (m *claudeModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.messages.New(ctx, m.request(prompt))
	if err != nil {
		return "", fmt.Errorf("claude request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errEmptyClaudeResponse
	}
	return text.String(), nil
}
