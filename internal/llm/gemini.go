package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

var errEmptyGeminiResponse = errors.New("gemini returned no text content")

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type geminiModel struct {
	models contentGenerator
	params Params
}

func newGeminiModel(ctx context.Context, apiKey string, p Params) (*geminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &geminiModel{models: client.Models, params: p}, nil
}

func (m *geminiModel) config() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(m.params.Temperature)),
		TopP:            genai.Ptr(float32(m.params.TopP)),
		MaxOutputTokens: int32(m.params.MaxTokens),
	}
}

func (m *geminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.models.GenerateContent(ctx, m.params.Model, genai.Text(prompt), m.config())
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if resp == nil {
		return "", errEmptyGeminiResponse
	}

	text := resp.Text()
	if text == "" {
		return "", errEmptyGeminiResponse
	}
	return text, nil
}
