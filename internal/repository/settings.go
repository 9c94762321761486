package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsRepository stores the single settings row. Null columns are
// overrides that are not set.
type SettingsRepository struct {
	db dbtx
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{db: pool}
}

func (r *SettingsRepository) Get(ctx context.Context) (*domain.SettingsRecord, error) {
	var rec domain.SettingsRecord
	p := &rec.Overrides
	err := r.db.QueryRow(ctx,
		`SELECT id, chunk_size, chunk_overlap, temperature, top_p, top_k, model_name, created_at, updated_at
		 FROM settings WHERE singleton`,
	).Scan(&rec.ID, &p.ChunkSize, &p.ChunkOverlap, &p.Temperature, &p.TopP, &p.TopK, &p.ModelName, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Insert creates the row unless one exists already.
func (r *SettingsRepository) Insert(ctx context.Context, rec *domain.SettingsRecord) error {
	p := rec.Overrides
	tag, err := r.db.Exec(ctx,
		`INSERT INTO settings (id, chunk_size, chunk_overlap, temperature, top_p, top_k, model_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (singleton) DO NOTHING`,
		rec.ID, p.ChunkSize, p.ChunkOverlap, p.Temperature, p.TopP, p.TopK, p.ModelName, rec.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSettingsAlreadyExist
	}
	return nil
}

// Update writes only the non-nil fields of patch.
func (r *SettingsRepository) Update(ctx context.Context, id string, patch domain.SettingsPatch) error {
	if !isUUID(id) {
		return domain.ErrSettingsNotFound
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE settings SET
			chunk_size    = COALESCE($1, chunk_size),
			chunk_overlap = COALESCE($2, chunk_overlap),
			temperature   = COALESCE($3, temperature),
			top_p         = COALESCE($4, top_p),
			top_k         = COALESCE($5, top_k),
			model_name    = COALESCE($6, model_name),
			updated_at    = $7
		 WHERE id = $8`,
		patch.ChunkSize, patch.ChunkOverlap, patch.Temperature, patch.TopP, patch.TopK, patch.ModelName,
		time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSettingsNotFound
	}
	return nil
}
