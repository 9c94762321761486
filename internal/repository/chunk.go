package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository is the pgvector-backed vector store.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

// Add inserts chunks in one batch. Chunks without an ID get a new one.
func (r *ChunkRepository) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return domain.ErrVectorStoreFailed.Wrap(fmt.Errorf("chunk for document %s has no embedding", c.Metadata.DocumentID))
		}
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		batch.Queue(
			`INSERT INTO chunks (id, document_id, filename, is_company_policy, section, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, c.Metadata.DocumentID, c.Metadata.Filename, c.Metadata.IsCompanyPolicy, c.Metadata.Section,
			c.Text, pgvector.NewVector(c.Embedding), now,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return domain.ErrVectorStoreFailed.Wrap(fmt.Errorf("failed to insert chunk: %w", err))
		}
	}
	if err := br.Close(); err != nil {
		return domain.ErrVectorStoreFailed.Wrap(err)
	}
	return nil
}

// defaultEFSearch is pgvector's hnsw.ef_search default. An HNSW scan yields at
// most that many candidates before the WHERE clause is applied.
const defaultEFSearch = 40

// Search returns the k chunks nearest to embedding by cosine distance. Equal
// distances keep insertion order.
func (r *ChunkRepository) Search(ctx context.Context, embedding []float32, k int, filter domain.ChunkFilter) ([]domain.Chunk, error) {
	if k <= 0 {
		return []domain.Chunk{}, nil
	}

	where, args := chunkFilterClause(filter, 2)
	query := `SELECT id, document_id, filename, is_company_policy, section, content, 1 - (embedding <=> $1) AS score
		FROM chunks` + where + `
		ORDER BY embedding <=> $1, seq
		LIMIT ` + fmt.Sprint(k)
	args = append([]any{pgvector.NewVector(embedding)}, args...)

	if filter.IsEmpty() && k <= defaultEFSearch {
		results, err := scanChunks(ctx, r.db, query, args, k)
		if err != nil {
			return nil, domain.ErrVectorStoreFailed.Wrap(err)
		}
		return results, nil
	}

	// Filtered or wide searches keep scanning the index until k rows pass, so
	// a filter that rejects the nearest candidates still fills the result.
	var results []domain.Chunk
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SET LOCAL hnsw.iterative_scan = strict_order`); err != nil {
			return err
		}
		if k > defaultEFSearch {
			if _, err := tx.Exec(ctx, `SET LOCAL hnsw.ef_search = `+fmt.Sprint(min(k, 1000))); err != nil {
				return err
			}
		}
		var err error
		results, err = scanChunks(ctx, tx, query, args, k)
		return err
	})
	if err != nil {
		return nil, domain.ErrVectorStoreFailed.Wrap(err)
	}
	return results, nil
}

func scanChunks(ctx context.Context, db dbtx, query string, args []any, k int) ([]domain.Chunk, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Chunk, 0, k)
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.Metadata.DocumentID, &c.Metadata.Filename, &c.Metadata.IsCompanyPolicy,
			&c.Metadata.Section, &c.Text, &c.Score); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Delete removes every chunk matching filter. Deleting nothing is not an error.
func (r *ChunkRepository) Delete(ctx context.Context, filter domain.ChunkFilter) error {
	if filter.IsEmpty() {
		return domain.ErrEmptyChunkFilter
	}

	where, args := chunkFilterClause(filter, 1)
	if _, err := r.db.Exec(ctx, `DELETE FROM chunks`+where, args...); err != nil {
		return domain.ErrVectorStoreFailed.Wrap(err)
	}
	return nil
}

// Count returns the number of chunks matching filter.
func (r *ChunkRepository) Count(ctx context.Context, filter domain.ChunkFilter) (int, error) {
	where, args := chunkFilterClause(filter, 1)
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM chunks`+where, args...).Scan(&n); err != nil {
		return 0, domain.ErrVectorStoreFailed.Wrap(err)
	}
	return n, nil
}

// chunkFilterClause renders filter as a WHERE clause whose placeholders start
// at $next.
func chunkFilterClause(filter domain.ChunkFilter, next int) (string, []any) {
	var conds []string
	var args []any
	if filter.DocumentID != "" {
		conds = append(conds, fmt.Sprintf("document_id = $%d", next))
		args = append(args, filter.DocumentID)
	}
	if filter.PolicyOnly {
		conds = append(conds, "is_company_policy")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
