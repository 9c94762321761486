// Package testutil starts the backing services used by integration and e2e
// tests. Containers are removed by t.Cleanup.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/database"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "pgvector/pgvector:0.8.1-pg18"
	rustfsImage   = "rustfs/rustfs:latest"

	dbUser     = "ragdesk"
	dbPassword = "ragdesk"
	dbName     = "ragdesk"

	// RustFSAccessKey and RustFSSecretKey are the archive test credentials.
	RustFSAccessKey = "rustfsadmin"
	RustFSSecretKey = "rustfsadmin"
)

// Postgres is a pgvector-enabled database.
type Postgres struct {
	URL string
}

// RustFS is an S3-compatible object store.
type RustFS struct {
	Endpoint string
}

// StartPostgres runs a pgvector container for the lifetime of t.
func StartPostgres(t testing.TB) *Postgres {
	t.Helper()

	host, port := start(t, testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     dbUser,
			"POSTGRES_PASSWORD": dbPassword,
			"POSTGRES_DB":       dbName,
		},
		// The entrypoint restarts the server once after init.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}, "5432")

	return &Postgres{
		URL: fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, host, port, dbName),
	}
}

// StartRustFS runs a RustFS container for the lifetime of t.
func StartRustFS(t testing.TB) *RustFS {
	t.Helper()

	host, port := start(t, testcontainers.ContainerRequest{
		Image:        rustfsImage,
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": RustFSAccessKey,
			"RUSTFS_SECRET_KEY": RustFSSecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}, "9000")

	return &RustFS{Endpoint: fmt.Sprintf("http://%s:%s", host, port)}
}

func start(t testing.TB, req testcontainers.ContainerRequest, port string) (string, string) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if container != nil {
		t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })
	}
	if err != nil {
		t.Fatalf("failed to start %s: %v", req.Image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get %s host: %v", req.Image, err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("failed to get %s port: %v", req.Image, err)
	}
	return host, mapped.Port()
}

// NewTestPool migrates pg and returns a pool that is closed with t.
func NewTestPool(t testing.TB, pg *Postgres) *pgxpool.Pool {
	t.Helper()

	pool, err := database.NewPool(context.Background(), database.Config{
		URL:             pg.URL,
		ApplicationName: "ragdesk-test",
		ConnectTimeout:  10 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.RunMigrations(pg.URL); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return pool
}
