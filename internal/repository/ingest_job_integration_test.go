//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/cloo-solutions/ragdesk/internal/loader"
	"github.com/cloo-solutions/ragdesk/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestJobRepository_ClaimCompleteLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	docs := NewDocumentRepository(pool)
	jobs := NewIngestJobRepository(pool)

	doc := newTestDocument("a.txt", time.Now())
	require.NoError(t, docs.Create(ctx, doc))
	job := domain.NewIngestJob(uuid.NewString(), doc, []byte("hello"), time.Now().UTC())
	require.NoError(t, jobs.Create(ctx, job))

	claimed, err := jobs.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, []byte("hello"), claimed[0].Content)
	assert.Equal(t, domain.IngestJobStatusProcessing, claimed[0].Status)
	assert.NotNil(t, claimed[0].ClaimedAt)

	again, err := jobs.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, jobs.Complete(ctx, job.ID, "loader failed"))
	done, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestJobStatusFailed, done.Status)
	assert.Nil(t, done.Content)
	assert.NotNil(t, done.ProcessedAt)
}

func TestIngestJobRepository_ResetStale(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	docs := NewDocumentRepository(pool)
	jobs := NewIngestJobRepository(pool)

	doc := newTestDocument("a.txt", time.Now())
	require.NoError(t, docs.Create(ctx, doc))
	require.NoError(t, jobs.Create(ctx, domain.NewIngestJob(uuid.NewString(), doc, []byte("x"), time.Now().UTC())))

	_, err := jobs.ClaimPending(ctx, 1)
	require.NoError(t, err)

	n, err := jobs.ResetStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = jobs.ResetStale(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	reclaimed, err := jobs.ClaimPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, reclaimed, 1)
}

func TestTxRunner_RollsBackDocumentWhenJobFails(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	runner := NewTxRunner(pool)

	doc := newTestDocument("a.txt", time.Now())
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		// A job for a missing document violates the foreign key.
		orphan := domain.NewIngestJob(uuid.NewString(), newTestDocument("b.txt", time.Now()), nil, time.Now())
		return repos.IngestJobs().Create(ctx, orphan)
	})
	require.Error(t, err)

	_, err = NewDocumentRepository(pool).GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestIngestionService_WithPostgres(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool)

	doc := newTestDocument("policy.txt", time.Now())
	doc.Status = domain.DocumentStatusPending
	require.NoError(t, docs.Create(ctx, doc))

	settings := service.NewSettingsService(NewSettingsRepository(pool), domain.DefaultSettings())
	svc := service.NewIngestionService(docs, settings, loader.New(), axisEmbedder{}, chunks, 8)

	require.NoError(t, svc.Ingest(ctx, service.IngestRequest{DocumentID: doc.ID, Filename: "policy.txt", Content: []byte("Remote work is allowed on Fridays.")}))

	got, err := docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusCompleted, got.Status)

	n, err := chunks.Count(ctx, domain.ChunkFilter{DocumentID: doc.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
