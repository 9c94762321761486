//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/cloo-solutions/ragdesk/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const testDimensions = 1536

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	return testutil.NewTestPool(t, testutil.StartPostgres(t))
}

// unitVector returns a vector pointing along axis.
func unitVector(axis int) []float32 {
	v := make([]float32, testDimensions)
	v[axis] = 1
	return v
}

func newTestDocument(name string, createdAt time.Time) *domain.Document {
	id := uuid.NewString()
	return domain.NewDocument(id, id+".txt", name, "txt", 10, false, "user-1", createdAt.UTC().Truncate(time.Microsecond))
}

// axisEmbedder maps every text onto the first axis.
type axisEmbedder struct{}

func (axisEmbedder) Embed(context.Context, string) ([]float32, error) {
	return unitVector(0), nil
}
