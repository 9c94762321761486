package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/cloo-solutions/ragdesk/internal/loader"
	"github.com/cloo-solutions/ragdesk/internal/pagination"
	"github.com/cloo-solutions/ragdesk/internal/storage"
	"github.com/cloo-solutions/ragdesk/internal/telemetry"
	"github.com/phuslu/log"
)

// IngestJobRepositoryInterface persists queued ingestion work.
type IngestJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestJob) error
}

// IngestQueue hands a job to an external broker.
type IngestQueue interface {
	Enqueue(ctx context.Context, job *domain.IngestJob) error
}

// ArchiveStorage keeps the original uploaded bytes.
type ArchiveStorage interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
	GenerateDownloadURL(ctx context.Context, key, filename string) (string, error)
}

// ChunkRemover deletes a document's chunks from the vector store.
type ChunkRemover interface {
	Delete(ctx context.Context, documentID string) error
}

// JobSubmitter records a new document and schedules its ingestion.
type JobSubmitter interface {
	Submit(ctx context.Context, doc *domain.Document, job *domain.IngestJob) error
}

// TxRepositories are the repositories bound to one open transaction.
type TxRepositories interface {
	Documents() DocumentRepositoryInterface
	IngestJobs() IngestJobRepositoryInterface
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// TxSubmitter writes the document and its job in one transaction, so a
// document is never visible without queued work.
type TxSubmitter struct {
	tx TxRunner
}

func NewTxSubmitter(tx TxRunner) *TxSubmitter {
	return &TxSubmitter{tx: tx}
}

func (s *TxSubmitter) Submit(ctx context.Context, doc *domain.Document, job *domain.IngestJob) error {
	return s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.IngestJobs().Create(ctx, job)
	})
}

// QueueSubmitter creates the document, then enqueues the job on a broker. A
// failed enqueue marks the document failed.
type QueueSubmitter struct {
	docs  DocumentRepositoryInterface
	queue IngestQueue
}

func NewQueueSubmitter(docs DocumentRepositoryInterface, queue IngestQueue) *QueueSubmitter {
	return &QueueSubmitter{docs: docs, queue: queue}
}

func (s *QueueSubmitter) Submit(ctx context.Context, doc *domain.Document, job *domain.IngestJob) error {
	if err := s.docs.Create(ctx, doc); err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		msg := fmt.Sprintf("failed to enqueue ingestion: %v", err)
		if uerr := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusFailed, msg); uerr != nil {
			log.Error().Err(uerr).Str("document_id", doc.ID).Msg("failed to mark document failed after enqueue error")
		} else {
			doc.Status = domain.DocumentStatusFailed
			doc.Error = msg
		}
		return fmt.Errorf("failed to enqueue ingestion for %s: %w", doc.ID, err)
	}
	return nil
}

type UploadInput struct {
	Filename        string
	ContentType     string
	Content         []byte
	IsCompanyPolicy bool
	UploadedBy      string
}

// DocumentService handles uploads and the document records around ingestion.
type DocumentService struct {
	docs      DocumentRepositoryInterface
	settings  SettingsResolver
	submitter JobSubmitter
	chunks    ChunkRemover
	archive   ArchiveStorage
	uuidGen   UUIDGenerator
}

// NewDocumentService creates a DocumentService. archive may be nil.
func NewDocumentService(
	docs DocumentRepositoryInterface,
	settings SettingsResolver,
	submitter JobSubmitter,
	chunks ChunkRemover,
	archive ArchiveStorage,
) *DocumentService {
	return NewDocumentServiceWithUUIDGen(docs, settings, submitter, chunks, archive, &DefaultUUIDGenerator{})
}

func NewDocumentServiceWithUUIDGen(
	docs DocumentRepositoryInterface,
	settings SettingsResolver,
	submitter JobSubmitter,
	chunks ChunkRemover,
	archive ArchiveStorage,
	uuidGen UUIDGenerator,
) *DocumentService {
	return &DocumentService{
		docs:      docs,
		settings:  settings,
		submitter: submitter,
		chunks:    chunks,
		archive:   archive,
		uuidGen:   uuidGen,
	}
}

// Upload validates the file and the chunking configuration, records the
// Document with status processing and schedules ingestion. It returns
// without waiting for ingestion.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Upload", telemetry.SpanAttributes{
		UserID:    in.UploadedBy,
		Operation: "upload",
	})
	defer span.End()

	name := filepath.Base(strings.ReplaceAll(in.Filename, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, domain.ErrMissingRequiredField.Wrap(fmt.Errorf("filename"))
	}
	ext := loader.ExtensionOf(name)
	if !loader.Supported(ext) {
		return nil, domain.ErrUnsupportedFormat.Wrap(fmt.Errorf("%q, supported: %s", name, strings.Join(loader.SupportedExtensions, ", ")))
	}

	settings, err := s.settings.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings: %w", err)
	}
	if _, err := NewChunkerFromSettings(settings); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id := s.uuidGen.NewString()
	doc := domain.NewDocument(id, id+"."+ext, name, ext, int64(len(in.Content)), in.IsCompanyPolicy, in.UploadedBy, now)
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	if s.archive != nil {
		if err := s.archive.PutObject(ctx, storage.DocumentKey(doc.ID, doc.Filename), in.Content, in.ContentType); err != nil {
			return nil, fmt.Errorf("failed to archive upload: %w", err)
		}
	}

	job := domain.NewIngestJob(s.uuidGen.NewString(), doc, in.Content, now)
	if err := s.submitter.Submit(ctx, doc, job); err != nil {
		span.SetError(err)
		return nil, err
	}

	log.Info().
		Str("document_id", doc.ID).
		Str("file_type", doc.FileType).
		Int64("file_size", doc.FileSize).
		Bool("is_company_policy", doc.IsCompanyPolicy).
		Msg("document accepted for ingestion")

	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.docs.GetByID(ctx, id)
}

// List returns documents newest first.
func (s *DocumentService) List(ctx context.Context, cursor string, limit int) (*pagination.Page[*domain.Document], error) {
	c, err := pagination.Decode(cursor)
	if err != nil {
		return nil, err
	}
	return s.docs.ListWithCursor(ctx, c, pagination.ClampLimit(limit))
}

// Delete removes the document's chunks, its archived original and finally
// the record. Vector store errors abort before the record is touched.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.chunks.Delete(ctx, doc.ID); err != nil {
		span.SetError(err)
		return err
	}

	if s.archive != nil {
		if err := s.archive.DeleteObject(ctx, storage.DocumentKey(doc.ID, doc.Filename)); err != nil {
			log.Warn().Err(err).Str("document_id", doc.ID).Msg("failed to delete archived original")
		}
	}

	if err := s.docs.Delete(ctx, doc.ID); err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return err
	}

	log.Info().Str("document_id", doc.ID).Msg("document deleted")
	return nil
}

// DownloadURL returns a presigned link to the archived original.
func (s *DocumentService) DownloadURL(ctx context.Context, id string) (string, error) {
	if s.archive == nil {
		return "", domain.ErrArchiveNotConfigured
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.archive.GenerateDownloadURL(ctx, storage.DocumentKey(doc.ID, doc.Filename), doc.OriginalFilename)
}
