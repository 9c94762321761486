package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"golang.org/x/time/rate"
)

// Embedder maps text to a vector. Failures carry EMBEDDING_PROVIDER_ERROR.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RateLimitedEmbedder throttles calls to the wrapped embedder. Waiting for a
// token honours ctx.
type RateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder returns next unchanged when perSecond is not positive.
func NewRateLimitedEmbedder(next Embedder, perSecond float64) Embedder {
	if perSecond <= 0 {
		return next
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedEmbedder{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (e *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, domain.ErrEmbeddingFailed.Wrap(err)
	}
	return e.next.Embed(ctx, text)
}

// DeadlineEmbedder bounds every call with its own timeout.
type DeadlineEmbedder struct {
	next    Embedder
	timeout time.Duration
}

// NewDeadlineEmbedder returns next unchanged when timeout is not positive.
func NewDeadlineEmbedder(next Embedder, timeout time.Duration) Embedder {
	if timeout <= 0 {
		return next
	}
	return &DeadlineEmbedder{next: next, timeout: timeout}
}

func (e *DeadlineEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.next.Embed(ctx, text)
}
