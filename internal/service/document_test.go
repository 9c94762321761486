package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/cloo-solutions/ragdesk/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testTxRepos struct {
	documents  DocumentRepositoryInterface
	ingestJobs IngestJobRepositoryInterface
}

func (t *testTxRepos) Documents() DocumentRepositoryInterface   { return t.documents }
func (t *testTxRepos) IngestJobs() IngestJobRepositoryInterface { return t.ingestJobs }

// testTxRunner runs fn directly and records that a transaction was asked for.
type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}

func newTxDocumentService(docs DocumentRepositoryInterface, jobs IngestJobRepositoryInterface, archive ArchiveStorage, settings SettingsResolver) (*DocumentService, *testTxRunner) {
	runner := &testTxRunner{repos: &testTxRepos{documents: docs, ingestJobs: jobs}}
	svc := NewDocumentServiceWithUUIDGen(docs, settings, NewTxSubmitter(runner), new(MockChunkRemover), archive, NewMockUUIDGenerator("doc-1", "job-1"))
	return svc, runner
}

func TestDocumentService_UploadCreatesDocumentAndJob(t *testing.T) {
	docs := newFakeDocumentRepository()
	jobs := new(MockIngestJobRepository)
	jobs.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.IngestJob) bool {
		return j.ID == "job-1" && j.DocumentID == "doc-1" && j.Filename == "Leave Policy.PDF" && string(j.Content) == "%PDF" && j.IsCompanyPolicy
	})).Return(nil)

	svc, runner := newTxDocumentService(docs, jobs, nil, staticSettings{settings: domain.DefaultSettings()})

	doc, err := svc.Upload(context.Background(), UploadInput{
		Filename:        "C:\\Users\\me\\Leave Policy.PDF",
		Content:         []byte("%PDF"),
		IsCompanyPolicy: true,
		UploadedBy:      "user-1",
	})

	require.NoError(t, err)
	assert.True(t, runner.called)
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "doc-1.pdf", doc.Filename)
	assert.Equal(t, "Leave Policy.PDF", doc.OriginalFilename)
	assert.Equal(t, "pdf", doc.FileType)
	assert.Equal(t, int64(4), doc.FileSize)
	assert.Equal(t, domain.DocumentStatusProcessing, doc.Status)

	stored, err := docs.GetByID(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.UploadedBy)
	jobs.AssertExpectations(t)
}

func TestDocumentService_UploadRejectsUnsupportedType(t *testing.T) {
	docs := new(MockDocumentRepository)
	svc, runner := newTxDocumentService(docs, new(MockIngestJobRepository), nil, staticSettings{settings: domain.DefaultSettings()})

	_, err := svc.Upload(context.Background(), UploadInput{Filename: "slides.pptx", Content: []byte("x")})

	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "pdf, docx, doc, txt")
	assert.False(t, runner.called)
	docs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDocumentService_UploadRejectsInvalidChunking(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.ChunkOverlap = settings.ChunkSize + 1
	svc, runner := newTxDocumentService(new(MockDocumentRepository), new(MockIngestJobRepository), nil, staticSettings{settings: settings})

	_, err := svc.Upload(context.Background(), UploadInput{Filename: "a.txt", Content: []byte("x")})

	assert.ErrorIs(t, err, domain.ErrInvalidChunking)
	assert.False(t, runner.called)
}

func TestDocumentService_UploadMissingFilename(t *testing.T) {
	svc, _ := newTxDocumentService(new(MockDocumentRepository), new(MockIngestJobRepository), nil, staticSettings{settings: domain.DefaultSettings()})

	_, err := svc.Upload(context.Background(), UploadInput{Filename: "", Content: []byte("x")})

	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
}

func TestDocumentService_UploadArchivesOriginal(t *testing.T) {
	archive := new(MockArchive)
	archive.On("PutObject", mock.Anything, "documents/doc-1/doc-1.docx", []byte("PK"), "application/vnd.openxmlformats-officedocument.wordprocessingml.document").Return(nil)
	jobs := new(MockIngestJobRepository)
	jobs.On("Create", mock.Anything, mock.Anything).Return(nil)

	svc, _ := newTxDocumentService(newFakeDocumentRepository(), jobs, archive, staticSettings{settings: domain.DefaultSettings()})
	_, err := svc.Upload(context.Background(), UploadInput{
		Filename:    "handbook.docx",
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Content:     []byte("PK"),
	})

	require.NoError(t, err)
	archive.AssertExpectations(t)
}

func TestDocumentService_UploadArchiveFailureAborts(t *testing.T) {
	archive := new(MockArchive)
	archive.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket missing"))
	svc, runner := newTxDocumentService(new(MockDocumentRepository), new(MockIngestJobRepository), archive, staticSettings{settings: domain.DefaultSettings()})

	_, err := svc.Upload(context.Background(), UploadInput{Filename: "a.txt", Content: []byte("x")})

	assert.ErrorContains(t, err, "bucket missing")
	assert.False(t, runner.called)
}

func TestQueueSubmitter_EnqueueFailureMarksDocumentFailed(t *testing.T) {
	docs := newFakeDocumentRepository()
	queue := new(MockIngestQueue)
	queue.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("redis: connection refused"))

	svc := NewDocumentServiceWithUUIDGen(docs, staticSettings{settings: domain.DefaultSettings()}, NewQueueSubmitter(docs, queue), new(MockChunkRemover), nil, NewMockUUIDGenerator("doc-1", "job-1"))
	_, err := svc.Upload(context.Background(), UploadInput{Filename: "a.txt", Content: []byte("x")})

	require.ErrorContains(t, err, "connection refused")
	stored, getErr := docs.GetByID(context.Background(), "doc-1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.DocumentStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "failed to enqueue ingestion")
}

func TestQueueSubmitter_Enqueues(t *testing.T) {
	docs := newFakeDocumentRepository()
	queue := new(MockIngestQueue)
	queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(j *domain.IngestJob) bool { return j.DocumentID == "doc-1" })).Return(nil)

	svc := NewDocumentServiceWithUUIDGen(docs, staticSettings{settings: domain.DefaultSettings()}, NewQueueSubmitter(docs, queue), new(MockChunkRemover), nil, NewMockUUIDGenerator("doc-1", "job-1"))
	doc, err := svc.Upload(context.Background(), UploadInput{Filename: "notes.txt", Content: []byte("x")})

	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusProcessing, doc.Status)
	queue.AssertExpectations(t)
}

func TestDocumentService_ListClampsLimitAndDecodesCursor(t *testing.T) {
	docs := new(MockDocumentRepository)
	page := &pagination.Page[*domain.Document]{Items: []*domain.Document{}}
	docs.On("ListWithCursor", mock.Anything, (*pagination.Cursor)(nil), pagination.MaxLimit).Return(page, nil)

	svc := NewDocumentService(docs, staticSettings{}, nil, new(MockChunkRemover), nil)

	got, err := svc.List(context.Background(), "", 10_000)
	require.NoError(t, err)
	assert.Same(t, page, got)

	_, err = svc.List(context.Background(), "!!not-a-cursor", 10)
	assert.ErrorIs(t, err, pagination.ErrInvalidCursor)
}

func TestDocumentService_DeleteOrder(t *testing.T) {
	doc := domain.NewDocument("doc-1", "doc-1.txt", "a.txt", "txt", 1, false, "u", time.Now())
	docs := new(MockDocumentRepository)
	chunks := new(MockChunkRemover)
	archive := new(MockArchive)

	var order []string
	docs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)
	chunks.On("Delete", mock.Anything, "doc-1").Run(func(mock.Arguments) { order = append(order, "chunks") }).Return(nil)
	archive.On("DeleteObject", mock.Anything, "documents/doc-1/doc-1.txt").Run(func(mock.Arguments) { order = append(order, "archive") }).Return(errors.New("gone"))
	docs.On("Delete", mock.Anything, "doc-1").Run(func(mock.Arguments) { order = append(order, "record") }).Return(nil)

	svc := NewDocumentService(docs, staticSettings{}, nil, chunks, archive)

	require.NoError(t, svc.Delete(context.Background(), "doc-1"))
	assert.Equal(t, []string{"chunks", "archive", "record"}, order)
}

func TestDocumentService_DeleteStopsOnVectorStoreError(t *testing.T) {
	doc := domain.NewDocument("doc-1", "doc-1.txt", "a.txt", "txt", 1, false, "u", time.Now())
	docs := new(MockDocumentRepository)
	chunks := new(MockChunkRemover)
	docs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)
	chunks.On("Delete", mock.Anything, "doc-1").Return(domain.ErrVectorStoreFailed)

	svc := NewDocumentService(docs, staticSettings{}, nil, chunks, nil)

	err := svc.Delete(context.Background(), "doc-1")

	assert.ErrorIs(t, err, domain.ErrVectorStoreFailed)
	docs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDocumentService_DeleteUnknown(t *testing.T) {
	docs := new(MockDocumentRepository)
	docs.On("GetByID", mock.Anything, "nope").Return(nil, domain.ErrDocumentNotFound)
	chunks := new(MockChunkRemover)

	svc := NewDocumentService(docs, staticSettings{}, nil, chunks, nil)

	assert.ErrorIs(t, svc.Delete(context.Background(), "nope"), domain.ErrDocumentNotFound)
	chunks.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDocumentService_DownloadURL(t *testing.T) {
	doc := domain.NewDocument("doc-1", "doc-1.pdf", "Handbook.pdf", "pdf", 1, false, "u", time.Now())
	docs := new(MockDocumentRepository)
	docs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)
	archive := new(MockArchive)
	archive.On("GenerateDownloadURL", mock.Anything, "documents/doc-1/doc-1.pdf", "Handbook.pdf").Return("https://s3/presigned", nil)

	withArchive := NewDocumentService(docs, staticSettings{}, nil, new(MockChunkRemover), archive)
	url, err := withArchive.DownloadURL(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "https://s3/presigned", url)

	withoutArchive := NewDocumentService(docs, staticSettings{}, nil, new(MockChunkRemover), nil)
	_, err = withoutArchive.DownloadURL(context.Background(), "doc-1")
	assert.ErrorIs(t, err, domain.ErrArchiveNotConfigured)
}
