// Package telemetry wraps Sentry tracing for the ingestion, document and
// chat services.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/getsentry/sentry-go"
	"github.com/phuslu/log"
)

const (
	serverName   = "ragdesk"
	flushTimeout = 5 * time.Second
)

type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init configures the global Sentry client. It returns a flush func; with
// an empty DSN, or when Sentry rejects the options, tracing stays off and
// the func does nothing.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		ServerName:       serverName,
		Debug:            cfg.Debug,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		TracesSampler: func(ctx sentry.SamplingContext) float64 {
			if ctx.Span.Name == "GET /health" {
				return 0
			}
			return cfg.TracesSampleRate
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("sentry: failed to initialize, continuing without tracing")
		return func() {}, nil
	}

	log.Info().Str("environment", cfg.Environment).Float64("sample_rate", cfg.TracesSampleRate).Msg("sentry: tracing initialized")
	return func() { sentry.Flush(flushTimeout) }, nil
}

// SpanAttributes become tags on the span. Empty fields are skipped.
type SpanAttributes struct {
	DocumentID string
	UserID     string
	Model      string
	Operation  string
}

type Span struct {
	inner *sentry.Span
}

// StartSpan continues the span on ctx, or starts a transaction when there
// is none, as happens for ingestion run by the worker.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	for key, value := range map[string]string{
		"document_id": attrs.DocumentID,
		"user_id":     attrs.UserID,
		"model":       attrs.Model,
		"operation":   attrs.Operation,
	} {
		if value != "" {
			span.SetTag(key, value)
		}
	}

	return span.Context(), &Span{inner: span}
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

func (s *Span) SetData(key string, value any) {
	if s.inner != nil {
		s.inner.SetData(key, value)
	}
}

// SetError marks the span failed. Only errors that Reportable accepts are
// sent to Sentry as events.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = spanStatus(err)
	if !Reportable(err) {
		return
	}
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
}

// clientCodes are domain error codes caused by the caller's input.
var clientCodes = []string{
	domain.ErrCodeValidation,
	domain.ErrCodeNotFound,
	domain.ErrCodeAlreadyExists,
	domain.ErrCodeUnauthorized,
	domain.ErrCodeForbidden,
	domain.ErrCodeUnsupportedFormat,
}

// Reportable reports whether err points at a fault in ragdesk or one of
// its providers rather than at a bad request or an abandoned one.
func Reportable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	for _, code := range clientCodes {
		if domain.HasCode(err, code) {
			return false
		}
	}
	return true
}

func spanStatus(err error) sentry.SpanStatus {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return sentry.SpanStatusDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return sentry.SpanStatusCanceled
	case domain.HasCode(err, domain.ErrCodeNotFound):
		return sentry.SpanStatusNotFound
	case !Reportable(err):
		return sentry.SpanStatusInvalidArgument
	default:
		return sentry.SpanStatusInternalError
	}
}
