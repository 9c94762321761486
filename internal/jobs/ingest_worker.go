package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/cloo-solutions/ragdesk/internal/service"
	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"
)

// completeTimeout bounds recording a job outcome after its own deadline.
const completeTimeout = 10 * time.Second

// TaskSource hands out claimed ingestion jobs and records their outcome.
type TaskSource interface {
	// Claim returns up to max jobs that no other worker holds.
	Claim(ctx context.Context, max int) ([]*domain.IngestJob, error)
	// Complete acknowledges a job. runErr is nil on success.
	Complete(ctx context.Context, job *domain.IngestJob, runErr error) error
}

// Ingester runs one document through the ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, req service.IngestRequest) error
}

// IngestWorker fans claimed jobs out to at most concurrency goroutines, each
// bounded by timeout.
type IngestWorker struct {
	source      TaskSource
	ingester    Ingester
	concurrency int
	timeout     time.Duration
}

func NewIngestWorker(source TaskSource, ingester Ingester, concurrency int, timeout time.Duration) *IngestWorker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &IngestWorker{
		source:      source,
		ingester:    ingester,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// Drain claims one batch, runs it to completion and reports how many jobs
// it handled.
func (w *IngestWorker) Drain(ctx context.Context) (int, error) {
	jobs, err := w.source.Claim(ctx, w.concurrency)
	if err != nil {
		return 0, fmt.Errorf("failed to claim ingest jobs: %w", err)
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	log.Debug().Int("jobs", len(jobs)).Msg("processing ingest jobs")

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			w.processJob(ctx, job)
			return nil
		})
	}
	return len(jobs), g.Wait()
}

func (w *IngestWorker) processJob(ctx context.Context, job *domain.IngestJob) {
	jobCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	runErr := w.ingest(jobCtx, job)

	completeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completeTimeout)
	defer cancel()
	if err := w.source.Complete(completeCtx, job, runErr); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Str("document_id", job.DocumentID).Msg("failed to complete ingest job")
	}
}

// ingest never panics: a panicking ingester becomes the job's error, so the
// outcome is still completed and the process survives.
func (w *IngestWorker) ingest(ctx context.Context, job *domain.IngestJob) (err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("job_id", job.ID).Str("document_id", job.DocumentID).Str("stack", string(debug.Stack())).Msg("ingest job panicked")
			err = fmt.Errorf("ingest job %s panicked: %v", job.ID, p)
		}
	}()
	return w.ingester.Ingest(ctx, service.IngestRequest{
		DocumentID:      job.DocumentID,
		Filename:        job.Filename,
		IsCompanyPolicy: job.IsCompanyPolicy,
		Content:         job.Content,
	})
}
