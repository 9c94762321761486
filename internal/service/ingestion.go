package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/cloo-solutions/ragdesk/internal/loader"
	"github.com/cloo-solutions/ragdesk/internal/pagination"
	"github.com/cloo-solutions/ragdesk/internal/telemetry"
	"github.com/phuslu/log"
)

// statusWriteTimeout bounds the final status write, which runs even when the
// ingestion context has expired.
const statusWriteTimeout = 10 * time.Second

// DocumentRepositoryInterface persists Document records.
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.Page[*domain.Document], error)
	// UpdateStatus moves a document forward. It returns
	// domain.ErrInvalidStatusTransition when the stored status is not a
	// predecessor of to and domain.ErrDocumentNotFound when the row is gone.
	UpdateStatus(ctx context.Context, id string, to domain.DocumentStatus, errMsg string) error
	Delete(ctx context.Context, id string) error
}

// VectorStore persists and searches chunk vectors.
type VectorStore interface {
	Add(ctx context.Context, chunks []domain.Chunk) error
	// Search returns at most k chunks by descending similarity. Ties keep
	// insertion order.
	Search(ctx context.Context, embedding []float32, k int, filter domain.ChunkFilter) ([]domain.Chunk, error)
	// Delete removes every chunk matching filter. An empty filter is rejected.
	Delete(ctx context.Context, filter domain.ChunkFilter) error
}

// DocumentLoader extracts text sections from raw file bytes.
type DocumentLoader interface {
	Load(ctx context.Context, content []byte, ext string) ([]loader.Section, error)
}

// SettingsResolver returns the effective settings for one operation.
type SettingsResolver interface {
	Resolve(ctx context.Context) (domain.EffectiveSettings, error)
}

// IngestRequest is one document handed to background ingestion.
type IngestRequest struct {
	DocumentID      string
	Filename        string
	IsCompanyPolicy bool
	Content         []byte
}

// IngestionService drives documents through pending -> processing ->
// completed | failed while loading, chunking, embedding and storing them.
type IngestionService struct {
	docs      DocumentRepositoryInterface
	settings  SettingsResolver
	loader    DocumentLoader
	embedder  Embedder
	store     VectorStore
	batchSize int
}

func NewIngestionService(
	docs DocumentRepositoryInterface,
	settings SettingsResolver,
	loader DocumentLoader,
	embedder Embedder,
	store VectorStore,
	batchSize int,
) *IngestionService {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &IngestionService{
		docs:      docs,
		settings:  settings,
		loader:    loader,
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
	}
}

// Ingest processes req and records the terminal status on the Document. The
// returned error is the ingestion failure, already recorded as failed.
// Documents that are missing or already terminal are skipped.
func (s *IngestionService) Ingest(ctx context.Context, req IngestRequest) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Ingest", telemetry.SpanAttributes{
		DocumentID: req.DocumentID,
		Operation:  "ingest",
	})
	defer span.End()

	doc, err := s.docs.GetByID(ctx, req.DocumentID)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		log.Info().Str("document_id", req.DocumentID).Msg("document deleted before ingestion, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load document %s: %w", req.DocumentID, err)
	}
	if doc.Status.IsTerminal() {
		log.Info().Str("document_id", doc.ID).Str("status", string(doc.Status)).Msg("document already ingested, skipping")
		return nil
	}
	if doc.Status == domain.DocumentStatusPending {
		if err := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing, ""); err != nil {
			return fmt.Errorf("failed to mark document %s processing: %w", doc.ID, err)
		}
	}

	start := time.Now()
	count, runErr := s.runRecovered(ctx, req)

	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	if runErr != nil {
		span.SetError(runErr)
		log.Error().Err(runErr).Str("document_id", doc.ID).Msg("ingestion failed")
		if err := s.docs.UpdateStatus(statusCtx, doc.ID, domain.DocumentStatusFailed, runErr.Error()); err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
			log.Error().Err(err).Str("document_id", doc.ID).Msg("failed to record ingestion failure")
		}
		return runErr
	}

	err = s.docs.UpdateStatus(statusCtx, doc.ID, domain.DocumentStatusCompleted, "")
	if errors.Is(err, domain.ErrDocumentNotFound) {
		log.Warn().Str("document_id", doc.ID).Msg("document deleted during ingestion, removing its chunks")
		if err := s.store.Delete(statusCtx, domain.ChunkFilter{DocumentID: doc.ID}); err != nil {
			return fmt.Errorf("failed to remove chunks of deleted document %s: %w", doc.ID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark document %s completed: %w", doc.ID, err)
	}

	log.Info().
		Str("document_id", doc.ID).
		Int("chunks", count).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("document ingested")
	return nil
}

// runRecovered is run with any panic turned into an ordinary failure, so the
// document still reaches failed.
func (s *IngestionService) runRecovered(ctx context.Context, req IngestRequest) (count int, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("document_id", req.DocumentID).Str("stack", string(debug.Stack())).Msg("ingestion panicked")
			count, err = 0, fmt.Errorf("ingestion panicked: %v", p)
		}
	}()
	return s.run(ctx, req)
}

// run executes load -> chunk -> embed/store and returns the number of chunks
// stored.
func (s *IngestionService) run(ctx context.Context, req IngestRequest) (int, error) {
	settings, err := s.settings.Resolve(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve settings: %w", err)
	}
	chunker, err := NewChunkerFromSettings(settings)
	if err != nil {
		return 0, err
	}

	sections, err := s.loader.Load(ctx, req.Content, loader.ExtensionOf(req.Filename))
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", req.Filename, err)
	}

	var chunks []domain.Chunk
	for _, section := range sections {
		meta := domain.ChunkMetadata{
			DocumentID:      req.DocumentID,
			Filename:        req.Filename,
			IsCompanyPolicy: req.IsCompanyPolicy,
			Section:         section.Index,
		}
		for c := range chunker.Split(section.Text, meta) {
			chunks = append(chunks, c)
		}
	}

	// Re-ingesting replaces whatever an earlier attempt left behind.
	if err := s.store.Delete(ctx, domain.ChunkFilter{DocumentID: req.DocumentID}); err != nil {
		return 0, fmt.Errorf("failed to clear previous chunks: %w", err)
	}

	for start := 0; start < len(chunks); start += s.batchSize {
		batch := chunks[start:min(start+s.batchSize, len(chunks))]
		for i := range batch {
			vec, err := s.embedder.Embed(ctx, batch[i].Text)
			if err != nil {
				return start, err
			}
			batch[i].Embedding = vec
		}
		if err := s.store.Add(ctx, batch); err != nil {
			return start, err
		}
	}

	return len(chunks), nil
}

// Delete removes every chunk of the document, whatever its status.
func (s *IngestionService) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return domain.ErrMissingRequiredField.Wrap(fmt.Errorf("document id"))
	}
	if err := s.store.Delete(ctx, domain.ChunkFilter{DocumentID: documentID}); err != nil {
		return err
	}
	log.Debug().Str("document_id", documentID).Msg("document chunks deleted")
	return nil
}
