package admin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/config"
	"github.com/cloo-solutions/ragdesk/internal/database"
	"github.com/cloo-solutions/ragdesk/internal/jobs"
	"github.com/cloo-solutions/ragdesk/internal/llm"
	"github.com/cloo-solutions/ragdesk/internal/loader"
	"github.com/cloo-solutions/ragdesk/internal/logging"
	"github.com/cloo-solutions/ragdesk/internal/openai"
	"github.com/cloo-solutions/ragdesk/internal/repository"
	"github.com/cloo-solutions/ragdesk/internal/service"
	"github.com/cloo-solutions/ragdesk/internal/storage"
	"github.com/cloo-solutions/ragdesk/internal/telemetry"
	"github.com/cloo-solutions/ragdesk/internal/vectorstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phuslu/log"
	"github.com/redis/go-redis/v9"
)

// app holds everything a daemon process shares between the API and the
// ingest worker.
type app struct {
	cfg   *config.Config
	pool  *pgxpool.Pool
	redis *redis.Client

	documents *repository.DocumentRepository
	users     *repository.UserRepository
	ingestJob *repository.IngestJobRepository
	store     service.VectorStore
	archive   service.ArchiveStorage
	queue     *jobs.RedisQueue

	settings   *service.SettingsService
	ingestion  *service.IngestionService
	generation *service.GenerationService
	auth       *service.AuthService
	docs       *service.DocumentService

	closers []func()
}

// loadConfig loads configuration and sets up logging and error tracking.
// The returned func flushes telemetry.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}
	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Warn().Err(err).Msg("telemetry init failed, continuing without tracing")
		shutdown = func() {}
	}
	return cfg, shutdown, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		ConnectTimeout: cfg.DatabaseConnectTimeout,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Msg("connected to database")
	return pool, nil
}

// newApp wires repositories and services from cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if !cfg.HasOpenAI() {
		return nil, errors.New("RAGDESK_OPENAI_API_KEY is required for embeddings")
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, pool: pool}
	a.closers = append(a.closers, pool.Close)

	a.documents = repository.NewDocumentRepository(pool)
	a.users = repository.NewUserRepository(pool)
	a.ingestJob = repository.NewIngestJobRepository(pool)

	switch cfg.VectorStore {
	case config.VectorStoreMemory:
		log.Warn().Msg("using in-memory vector store; chunks are lost on restart")
		a.store = vectorstore.NewMemoryStore()
	default:
		a.store = repository.NewChunkRepository(pool)
	}

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Info().Str("bucket", cfg.S3Bucket).Msg("document archive ready")
		a.archive = s3Client
	}

	var submitter service.JobSubmitter
	if cfg.QueueBackend == config.QueueBackendRedis {
		if err := a.connectRedis(ctx); err != nil {
			a.close()
			return nil, err
		}
		submitter = service.NewQueueSubmitter(a.documents, a.queue)
	} else {
		submitter = service.NewTxSubmitter(repository.NewTxRunner(pool))
	}

	openaiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})
	embedder := service.NewDeadlineEmbedder(
		service.NewRateLimitedEmbedder(openaiClient, cfg.EmbeddingRateLimit),
		cfg.EmbeddingTimeout,
	)
	models := llm.NewFactory(llm.Config{
		AnthropicAPIKey:  cfg.AnthropicAPIKey,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		DefaultMaxTokens: cfg.GenerationMaxTokens,
	}, openaiClient)

	a.settings = service.NewSettingsService(repository.NewSettingsRepository(pool), cfg.DefaultSettings())
	a.ingestion = service.NewIngestionService(a.documents, a.settings, loader.New(), embedder, a.store, cfg.IngestBatchSize)
	a.generation = service.NewGenerationService(a.settings, models, embedder, a.store, cfg.GenerationTimeout)
	a.auth = service.NewAuthService(a.users, cfg.JWTSecret, cfg.AccessTokenTTL, &service.DefaultUUIDGenerator{})
	a.docs = service.NewDocumentService(a.documents, a.settings, submitter, a.ingestion, a.archive)

	return a, nil
}

func (a *app) connectRedis(ctx context.Context) error {
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid RAGDESK_REDIS_URL: %w", err)
	}
	a.redis = redis.NewClient(opts)
	a.closers = append(a.closers, func() { _ = a.redis.Close() })

	if err := a.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	a.queue, err = jobs.NewRedisQueue(ctx, a.redis, consumerName(),
		jobs.WithReclaimAfter(staleAfter(a.cfg.IngestTimeout)))
	if err != nil {
		return err
	}
	log.Info().Msg("redis ingest queue ready")
	return nil
}

// taskSource is the queue the ingest worker drains.
func (a *app) taskSource() jobs.TaskSource {
	if a.queue != nil {
		return a.queue
	}
	return jobs.NewPostgresQueue(a.ingestJob, staleAfter(a.cfg.IngestTimeout))
}

func (a *app) newWorker() *jobs.Poller {
	drainer := jobs.NewIngestWorker(a.taskSource(), a.ingestion, a.cfg.IngestConcurrency, a.cfg.IngestTimeout)
	return jobs.NewPoller(drainer, a.cfg.WorkerPollInterval)
}

func (a *app) healthCheck(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return err
	}
	if a.redis != nil {
		return a.redis.Ping(ctx).Err()
	}
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// staleAfter is how long a claimed task may go unfinished before another
// worker takes it over. It leaves room for one full ingest timeout.
func staleAfter(ingestTimeout time.Duration) time.Duration {
	if ingestTimeout <= 0 {
		return 0
	}
	return 2 * ingestTimeout
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "ragdeskd"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
