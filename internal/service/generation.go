package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/cloo-solutions/ragdesk/internal/llm"
	"github.com/cloo-solutions/ragdesk/internal/telemetry"
	"github.com/phuslu/log"
)

const unknownSource = "Unknown"

const promptTemplate = `You are a helpful AI assistant that answers questions based on provided documents.

Use the following context to answer the user's question. If the context doesn't contain relevant information, say so clearly.

Context:
%s

Question: %s

Answer:`

// ModelFactory builds a language model for one call.
type ModelFactory interface {
	New(ctx context.Context, p llm.Params) (llm.Model, error)
}

type AskInput struct {
	Query      string
	PolicyOnly bool
	// DocumentID optionally narrows retrieval to one document.
	DocumentID string
}

type AskResult struct {
	Answer  string
	Sources []string
}

// GenerationService answers questions from retrieved chunks.
type GenerationService struct {
	settings SettingsResolver
	models   ModelFactory
	embedder Embedder
	store    VectorStore
	timeout  time.Duration
}

func NewGenerationService(settings SettingsResolver, models ModelFactory, embedder Embedder, store VectorStore, timeout time.Duration) *GenerationService {
	return &GenerationService{
		settings: settings,
		models:   models,
		embedder: embedder,
		store:    store,
		timeout:  timeout,
	}
}

// Answer never fails. Any error while resolving settings, building the
// model, retrieving or generating becomes an "Error: <cause>" answer with no
// sources.
func (s *GenerationService) Answer(ctx context.Context, in AskInput) *AskResult {
	ctx, span := telemetry.StartSpan(ctx, "GenerationService.Answer", telemetry.SpanAttributes{
		DocumentID: in.DocumentID,
		Operation:  "chat",
	})
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	answer, sources, err := s.answer(ctx, in)
	if err != nil {
		span.SetError(err)
		log.Error().Err(err).Bool("policy_only", in.PolicyOnly).Msg("chat failed")
		return &AskResult{Answer: "Error: " + err.Error(), Sources: []string{}}
	}
	return &AskResult{Answer: answer, Sources: sources}
}

func (s *GenerationService) answer(ctx context.Context, in AskInput) (string, []string, error) {
	if strings.TrimSpace(in.Query) == "" {
		return "", nil, domain.ErrEmptyQuery
	}

	settings, err := s.settings.Resolve(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve settings: %w", err)
	}

	model, err := s.models.New(ctx, llm.Params{
		Model:       settings.ModelName,
		Temperature: settings.Temperature,
		TopP:        settings.TopP,
	})
	if err != nil {
		return "", nil, err
	}

	r := retriever{
		embedder: s.embedder,
		store:    s.store,
		k:        settings.TopK,
		filter:   domain.ChunkFilter{DocumentID: in.DocumentID, PolicyOnly: in.PolicyOnly},
	}
	chunks, err := r.Retrieve(ctx, in.Query)
	if err != nil {
		return "", nil, err
	}

	log.Debug().
		Str("model", settings.ModelName).
		Int("top_k", settings.TopK).
		Int("retrieved", len(chunks)).
		Msg("context retrieved")

	out, err := model.Generate(ctx, RenderPrompt(chunks, in.Query))
	if err != nil {
		return "", nil, domain.ErrGenerationFailed.Wrap(err)
	}

	return out, Sources(chunks), nil
}

// retriever is bound to one call's top_k and filter.
type retriever struct {
	embedder Embedder
	store    VectorStore
	k        int
	filter   domain.ChunkFilter
}

func (r retriever) Retrieve(ctx context.Context, query string) ([]domain.Chunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.store.Search(ctx, vec, r.k, r.filter)
}

// RenderPrompt joins chunk texts with blank lines in retrieval order.
func RenderPrompt(chunks []domain.Chunk, query string) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return fmt.Sprintf(promptTemplate, strings.Join(texts, "\n\n"), query)
}

// Sources returns the distinct source filenames in first-occurrence order.
func Sources(chunks []domain.Chunk) []string {
	sources := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		name := c.Metadata.Filename
		if name == "" {
			name = unknownSource
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		sources = append(sources, name)
	}
	return sources
}
