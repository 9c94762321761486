package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IngestJobRepository is the Postgres task table behind the default queue.
type IngestJobRepository struct {
	db dbtx
}

func NewIngestJobRepository(pool *pgxpool.Pool) *IngestJobRepository {
	return &IngestJobRepository{db: pool}
}

func NewIngestJobRepositoryWithTx(tx pgx.Tx) *IngestJobRepository {
	return &IngestJobRepository{db: tx}
}

func (r *IngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ingest_jobs (id, document_id, filename, is_company_policy, content, status, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.DocumentID, job.Filename, job.IsCompanyPolicy, job.Content, job.Status,
		nullableString(job.Error), job.CreatedAt,
	)
	return err
}

// ClaimPending marks up to limit pending jobs as processing, oldest first.
// Concurrent claimers never receive the same job.
func (r *IngestJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error) {
	if limit <= 0 {
		limit = 1
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM ingest_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE ingest_jobs
		 SET status = $3,
		     claimed_at = $4
		 FROM cte
		 WHERE ingest_jobs.id = cte.id
		 RETURNING ingest_jobs.id, ingest_jobs.document_id, ingest_jobs.filename, ingest_jobs.is_company_policy,
		           ingest_jobs.content, ingest_jobs.status, ingest_jobs.error, ingest_jobs.created_at,
		           ingest_jobs.claimed_at, ingest_jobs.processed_at`,
		domain.IngestJobStatusPending, limit, domain.IngestJobStatusProcessing, time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.IngestJob
	for rows.Next() {
		var job domain.IngestJob
		var errMsg *string
		if err := rows.Scan(&job.ID, &job.DocumentID, &job.Filename, &job.IsCompanyPolicy, &job.Content, &job.Status,
			&errMsg, &job.CreatedAt, &job.ClaimedAt, &job.ProcessedAt); err != nil {
			return nil, err
		}
		if errMsg != nil {
			job.Error = *errMsg
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// Complete records the outcome and drops the stored upload bytes.
func (r *IngestJobRepository) Complete(ctx context.Context, id string, errMsg string) error {
	status := domain.IngestJobStatusCompleted
	if errMsg != "" {
		status = domain.IngestJobStatusFailed
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs SET status = $1, error = $2, processed_at = $3, content = NULL WHERE id = $4`,
		status, nullableString(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

// ResetStale returns jobs claimed longer than olderThan ago to pending, so
// work abandoned by a crashed worker is picked up again.
func (r *IngestJobRepository) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs SET status = $1, claimed_at = NULL
		 WHERE status = $2 AND claimed_at < $3`,
		domain.IngestJobStatusPending, domain.IngestJobStatusProcessing, time.Now().UTC().Add(-olderThan),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *IngestJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	if !isUUID(id) {
		return nil, domain.ErrIngestJobNotFound
	}
	var job domain.IngestJob
	var errMsg *string
	err := r.db.QueryRow(ctx,
		`SELECT id, document_id, filename, is_company_policy, content, status, error, created_at, claimed_at, processed_at
		 FROM ingest_jobs WHERE id = $1`, id,
	).Scan(&job.ID, &job.DocumentID, &job.Filename, &job.IsCompanyPolicy, &job.Content, &job.Status,
		&errMsg, &job.CreatedAt, &job.ClaimedAt, &job.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrIngestJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if errMsg != nil {
		job.Error = *errMsg
	}
	return &job, nil
}
