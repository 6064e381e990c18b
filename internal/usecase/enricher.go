package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/metrics"
	"NewsAtlas/internal/normalizer"
	"NewsAtlas/internal/ports"
)

var (
	// ErrCountryUnresolved means no candidate matched the reference table; the item is dropped.
	ErrCountryUnresolved = errors.New("country unresolved")
	// ErrClassifier wraps the last classifier error once retries are exhausted.
	ErrClassifier = errors.New("classifier failed")
	// ErrStore wraps record store failures.
	ErrStore = errors.New("store failed")
	// ErrMalformedMessage means the queue payload is not a feed item.
	ErrMalformedMessage = errors.New("malformed message")
)

// RetryPolicy bounds classifier attempts for a single message.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// EnricherDeps wires all driven adapters into the enrichment worker.
type EnricherDeps struct {
	Resolver   ports.CountryResolver
	Classifier ports.Classifier
	Store      ports.RecordStore
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Retry      RetryPolicy
	// Timeout caps each classifier attempt; zero means no cap.
	Timeout time.Duration
}

// Enricher resolves, classifies, normalizes and persists one feed item at a time.
type Enricher struct {
	resolver   ports.CountryResolver
	classifier ports.Classifier
	store      ports.RecordStore
	metrics    *metrics.Metrics
	logger     *slog.Logger
	retry      RetryPolicy
	timeout    time.Duration
}

// NewEnricher constructs the worker.
func NewEnricher(deps EnricherDeps) *Enricher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	retry := deps.Retry
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = time.Second
	}
	if retry.MaxInterval < retry.InitialInterval {
		retry.MaxInterval = retry.InitialInterval
	}

	return &Enricher{
		resolver:   deps.Resolver,
		classifier: deps.Classifier,
		store:      deps.Store,
		metrics:    deps.Metrics,
		logger:     logger,
		retry:      retry,
		timeout:    deps.Timeout,
	}
}

// Process runs one item through resolve, classify, normalize and persist.
// It returns ErrCountryUnresolved for items that carry no known country, and errors
// wrapping ErrClassifier or ErrStore for terminal failures.
func (e *Enricher) Process(ctx context.Context, item domain.FeedItem) (domain.EnrichedRecord, error) {
	if e.resolver == nil || e.classifier == nil || e.store == nil {
		return domain.EnrichedRecord{}, fmt.Errorf("enricher is not fully configured")
	}

	content := BuildContent(item.Title, item.Summary)

	country, ok := e.resolver.Resolve(item.Countries)
	if !ok {
		return domain.EnrichedRecord{}, ErrCountryUnresolved
	}

	raw, attempts, err := e.classify(ctx, content)
	if err != nil {
		if ctx.Err() != nil {
			return domain.EnrichedRecord{}, ctx.Err()
		}
		return domain.EnrichedRecord{}, fmt.Errorf("%w after %d attempt(s): %w", ErrClassifier, attempts, err)
	}

	analysis := normalizer.Normalize(raw)

	record, err := e.store.Append(ctx, domain.EnrichedRecord{
		Content:   content,
		Country:   country,
		Sentiment: analysis.Sentiment,
		Themes:    analysis.Themes,
	})
	if err != nil {
		return domain.EnrichedRecord{}, fmt.Errorf("%w: %w", ErrStore, err)
	}

	return record, nil
}

// Handle decodes a queue delivery, processes it and decides its disposition.
func (e *Enricher) Handle(ctx context.Context, d ports.Delivery) ports.Verdict {
	var item domain.FeedItem
	if err := json.Unmarshal(d.Data, &item); err != nil {
		e.metrics.IncOutcome(metrics.OutcomeMalformed)
		e.logger.Error("message dropped", "reason", "malformed", "error", err, "bytes", len(d.Data))
		return ports.Verdict{Disposition: ports.DeadLetter, Reason: fmt.Errorf("%w: %w", ErrMalformedMessage, err).Error()}
	}

	title := shorten(item.Title, 80)
	record, err := e.Process(ctx, item)
	switch {
	case err == nil:
		e.metrics.IncOutcome(metrics.OutcomeStored)
		e.logger.Info("message stored",
			"id", record.ID,
			"title", title,
			"country", record.Country,
			"sentiment", record.Sentiment,
			"themes", len(record.Themes),
		)
		return ports.Verdict{Disposition: ports.Ack}

	case errors.Is(err, ErrCountryUnresolved):
		e.metrics.IncOutcome(metrics.OutcomeSkipped)
		e.logger.Info("message skipped", "reason", "no country", "title", title, "candidates", item.Countries)
		return ports.Verdict{Disposition: ports.Ack}

	case ctx.Err() != nil:
		e.metrics.IncOutcome(metrics.OutcomeInterrupted)
		e.logger.Warn("message interrupted", "title", title, "error", err)
		return ports.Verdict{Disposition: ports.Requeue}

	default:
		e.metrics.IncOutcome(metrics.OutcomeFailed)
		e.logger.Error("message failed", "title", title, "error", err, "redelivery", d.Redelivery)
		return ports.Verdict{Disposition: ports.DeadLetter, Reason: err.Error()}
	}
}

func (e *Enricher) classify(ctx context.Context, content string) (string, int, error) {
	var (
		reply    string
		attempts int
	)

	op := func() error {
		attempts++
		callCtx, cancel := e.attemptContext(ctx)
		defer cancel()

		start := time.Now()
		out, err := e.classifier.Classify(callCtx, content)
		e.metrics.ObserveClassify(time.Since(start), err)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if errors.Is(err, ports.ErrRejected) {
				return backoff.Permanent(err)
			}
			e.logger.Warn("classifier attempt failed", "attempt", attempts, "max_attempts", e.retry.MaxAttempts, "error", err)
			return err
		}
		reply = out
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(e.newBackOff(), uint64(e.retry.MaxAttempts-1)),
		ctx,
	))
	return reply, attempts, err
}

func (e *Enricher) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

func (e *Enricher) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retry.InitialInterval
	b.MaxInterval = e.retry.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// BuildContent joins title and summary on a newline, skipping empty parts.
func BuildContent(title, summary string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{title, summary} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
