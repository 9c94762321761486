package jobs

import (
	"context"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/phuslu/log"
)

// IngestJobStore is the ingest_jobs table.
type IngestJobStore interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error)
	Complete(ctx context.Context, id string, errMsg string) error
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// PostgresQueue is the default TaskSource. Jobs are written by the upload
// transaction, so there is no Enqueue.
type PostgresQueue struct {
	store      IngestJobStore
	staleAfter time.Duration
}

// NewPostgresQueue returns a queue that reclaims jobs held longer than
// staleAfter. Zero disables reclaiming.
func NewPostgresQueue(store IngestJobStore, staleAfter time.Duration) *PostgresQueue {
	return &PostgresQueue{store: store, staleAfter: staleAfter}
}

func (q *PostgresQueue) Claim(ctx context.Context, max int) ([]*domain.IngestJob, error) {
	if q.staleAfter > 0 {
		n, err := q.store.ResetStale(ctx, q.staleAfter)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			log.Warn().Int64("jobs", n).Msg("reclaimed stale ingest jobs")
		}
	}
	return q.store.ClaimPending(ctx, max)
}

func (q *PostgresQueue) Complete(ctx context.Context, job *domain.IngestJob, runErr error) error {
	var errMsg string
	if runErr != nil {
		errMsg = runErr.Error()
	}
	return q.store.Complete(ctx, job.ID, errMsg)
}
