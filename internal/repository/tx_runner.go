package repository

import (
	"context"

	"github.com/cloo-solutions/ragdesk/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner gives the upload path a document and ingest job repository that
// share one read-committed transaction. fn's error rolls it back.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	return pgx.BeginTxFunc(ctx, r.pool, opts, func(tx pgx.Tx) error {
		return fn(boundRepos{tx: tx})
	})
}

type boundRepos struct {
	tx pgx.Tx
}

func (b boundRepos) Documents() service.DocumentRepositoryInterface {
	return NewDocumentRepositoryWithTx(b.tx)
}

func (b boundRepos) IngestJobs() service.IngestJobRepositoryInterface {
	return NewIngestJobRepositoryWithTx(b.tx)
}
