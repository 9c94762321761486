package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/phuslu/log"
	"github.com/redis/go-redis/v9"
)

const (
	ingestStream   = "ragdesk:ingest"
	ingestGroup    = "ragdesk:workers"
	jobKeyPrefix   = "ragdesk:ingest:job:"
	jobPayloadTTL  = 24 * time.Hour
	defaultBlock   = 500 * time.Millisecond
	defaultReclaim = 15 * time.Minute
)

// RedisQueue is a TaskSource on a Redis Stream with one consumer group.
// Job payloads live under their own key so the stream entries stay small.
type RedisQueue struct {
	client     *redis.Client
	consumer   string
	block      time.Duration
	reclaimAge time.Duration

	mu       sync.Mutex
	inflight map[string]string // job id -> stream entry id
}

type RedisQueueOption func(*RedisQueue)

// WithBlock sets how long a claim waits for new entries.
func WithBlock(d time.Duration) RedisQueueOption {
	return func(q *RedisQueue) { q.block = d }
}

// WithReclaimAfter sets the idle time after which another consumer's entry
// is taken over.
func WithReclaimAfter(d time.Duration) RedisQueueOption {
	return func(q *RedisQueue) { q.reclaimAge = d }
}

// NewRedisQueue creates the consumer group if needed. An empty consumer name
// is derived from the hostname and pid.
func NewRedisQueue(ctx context.Context, client *redis.Client, consumer string, opts ...RedisQueueOption) (*RedisQueue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumer == "" {
		host, _ := os.Hostname()
		consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	q := &RedisQueue{
		client:     client,
		consumer:   consumer,
		block:      defaultBlock,
		reclaimAge: defaultReclaim,
		inflight:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(q)
	}

	err := client.XGroupCreateMkStream(ctx, ingestStream, ingestGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}
	return q, nil
}

// Enqueue stores the job payload and appends it to the stream in one pipeline.
func (q *RedisQueue) Enqueue(ctx context.Context, job *domain.IngestJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal ingest job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, data, jobPayloadTTL)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: ingestStream,
		Values: map[string]any{
			"job_id":      job.ID,
			"document_id": job.DocumentID,
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue ingest job: %w", err)
	}
	return nil
}

// Claim first takes over entries abandoned by other consumers, then reads
// new ones.
func (q *RedisQueue) Claim(ctx context.Context, max int) ([]*domain.IngestJob, error) {
	if max <= 0 {
		max = 1
	}

	var messages []redis.XMessage
	if q.reclaimAge > 0 {
		claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   ingestStream,
			Group:    ingestGroup,
			Consumer: q.consumer,
			MinIdle:  q.reclaimAge,
			Start:    "0-0",
			Count:    int64(max),
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to reclaim ingest jobs: %w", err)
		}
		if len(claimed) > 0 {
			log.Warn().Int("jobs", len(claimed)).Str("consumer", q.consumer).Msg("reclaimed abandoned ingest jobs")
		}
		messages = append(messages, claimed...)
	}

	if remaining := max - len(messages); remaining > 0 {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    ingestGroup,
			Consumer: q.consumer,
			Streams:  []string{ingestStream, ">"},
			Count:    int64(remaining),
			Block:    q.block,
		}).Result()
		switch {
		case errors.Is(err, redis.Nil), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		case err != nil:
			return nil, fmt.Errorf("failed to read ingest stream: %w", err)
		default:
			for _, s := range streams {
				messages = append(messages, s.Messages...)
			}
		}
	}

	jobs := make([]*domain.IngestJob, 0, len(messages))
	for _, msg := range messages {
		job, err := q.load(ctx, msg)
		if err != nil {
			return jobs, err
		}
		if job == nil {
			continue
		}
		q.mu.Lock()
		q.inflight[job.ID] = msg.ID
		q.mu.Unlock()
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// load returns nil for entries whose payload is gone; those are dropped.
func (q *RedisQueue) load(ctx context.Context, msg redis.XMessage) (*domain.IngestJob, error) {
	jobID, _ := msg.Values["job_id"].(string)
	if jobID != "" {
		data, err := q.client.Get(ctx, jobKeyPrefix+jobID).Bytes()
		switch {
		case err == nil:
			var job domain.IngestJob
			if err := json.Unmarshal(data, &job); err == nil {
				return &job, nil
			}
		case !errors.Is(err, redis.Nil):
			return nil, fmt.Errorf("failed to load ingest job %s: %w", jobID, err)
		}
	}

	log.Warn().Str("entry_id", msg.ID).Str("job_id", jobID).Msg("dropping ingest entry without payload")
	_ = q.ack(ctx, msg.ID, jobID)
	return nil, nil
}

// Complete acknowledges and deletes the entry and its payload. Failed jobs
// are not redelivered; the failure is already on the document.
func (q *RedisQueue) Complete(ctx context.Context, job *domain.IngestJob, runErr error) error {
	q.mu.Lock()
	entryID, ok := q.inflight[job.ID]
	delete(q.inflight, job.ID)
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("ingest job %s is not held by consumer %s", job.ID, q.consumer)
	}
	if runErr != nil {
		log.Debug().Str("job_id", job.ID).Str("error", runErr.Error()).Msg("acknowledging failed ingest job")
	}
	return q.ack(ctx, entryID, job.ID)
}

func (q *RedisQueue) ack(ctx context.Context, entryID, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.XAck(ctx, ingestStream, ingestGroup, entryID)
	pipe.XDel(ctx, ingestStream, entryID)
	if jobID != "" {
		pipe.Del(ctx, jobKeyPrefix+jobID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to acknowledge ingest entry %s: %w", entryID, err)
	}
	return nil
}

func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
