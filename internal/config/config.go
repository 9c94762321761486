package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
)

const (
	QueueBackendPostgres = "postgres"
	QueueBackendRedis    = "redis"

	VectorStorePostgres = "postgres"
	VectorStoreMemory   = "memory"
)

type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	Debug     bool   `envconfig:"DEBUG" default:"false"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	DatabaseURL            string        `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConns       int32         `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseConnectTimeout time.Duration `envconfig:"DATABASE_CONNECT_TIMEOUT" default:"30s"`

	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`

	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbeddingRateLimit  float64       `envconfig:"EMBEDDING_RATE_LIMIT" default:"0"`
	EmbeddingTimeout    time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"30s"`

	GenerationTimeout   time.Duration `envconfig:"GENERATION_TIMEOUT" default:"60s"`
	GenerationMaxTokens int           `envconfig:"GENERATION_MAX_TOKENS" default:"1024"`

	IngestTimeout      time.Duration `envconfig:"INGEST_TIMEOUT" default:"10m"`
	IngestConcurrency  int           `envconfig:"INGEST_CONCURRENCY" default:"4"`
	IngestBatchSize    int           `envconfig:"INGEST_BATCH_SIZE" default:"32"`
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"2s"`

	QueueBackend string `envconfig:"QUEUE_BACKEND" default:"postgres"`
	RedisURL     string `envconfig:"REDIS_URL"`
	VectorStore  string `envconfig:"VECTOR_STORE" default:"postgres"`

	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"20971520"`

	JWTSecret      string        `envconfig:"JWT_SECRET"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"30m"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"ragdesk-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Bootstrap: create the initial superuser on startup
	InitAdminEmail    string `envconfig:"INIT_ADMIN_EMAIL"`
	InitAdminUsername string `envconfig:"INIT_ADMIN_USERNAME" default:"admin"`
	InitAdminPassword string `envconfig:"INIT_ADMIN_PASSWORD"`

	// Built-in RAG settings used when no override is stored
	DefaultChunkSize    int     `envconfig:"DEFAULT_CHUNK_SIZE" default:"1000"`
	DefaultChunkOverlap int     `envconfig:"DEFAULT_CHUNK_OVERLAP" default:"200"`
	DefaultTemperature  float64 `envconfig:"DEFAULT_TEMPERATURE" default:"0.7"`
	DefaultTopP         float64 `envconfig:"DEFAULT_TOP_P" default:"1.0"`
	DefaultTopK         int     `envconfig:"DEFAULT_TOP_K" default:"4"`
	DefaultModel        string  `envconfig:"DEFAULT_MODEL" default:"gpt-3.5-turbo"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RAGDESK", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	switch cfg.QueueBackend {
	case QueueBackendPostgres, QueueBackendRedis:
	default:
		return nil, fmt.Errorf("invalid RAGDESK_QUEUE_BACKEND %q (expected postgres or redis)", cfg.QueueBackend)
	}
	if cfg.QueueBackend == QueueBackendRedis && cfg.RedisURL == "" {
		return nil, fmt.Errorf("RAGDESK_REDIS_URL is required when RAGDESK_QUEUE_BACKEND=redis")
	}

	switch cfg.VectorStore {
	case VectorStorePostgres, VectorStoreMemory:
	default:
		return nil, fmt.Errorf("invalid RAGDESK_VECTOR_STORE %q (expected postgres or memory)", cfg.VectorStore)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		os.Exit(1)
	}
	return cfg
}

// DefaultSettings returns the built-in RAG settings.
func (c *Config) DefaultSettings() domain.EffectiveSettings {
	return domain.EffectiveSettings{
		ChunkSize:    c.DefaultChunkSize,
		ChunkOverlap: c.DefaultChunkOverlap,
		Temperature:  c.DefaultTemperature,
		TopP:         c.DefaultTopP,
		TopK:         c.DefaultTopK,
		ModelName:    c.DefaultModel,
	}
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasAnthropic() bool {
	return c.AnthropicAPIKey != ""
}

func (c *Config) HasGemini() bool {
	return c.GeminiAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

func (c *Config) HasInitAdmin() bool {
	return c.InitAdminEmail != "" && c.InitAdminPassword != ""
}
