package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsAtlas/internal/metrics"
	"NewsAtlas/internal/ports"
)

// Poller wires the schedule driver with the fetch-and-publish step of the feeder.
type Poller struct {
	driver    ports.Scheduler
	source    ports.FeedSource
	publisher ports.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewPoller returns a helper to start/stop recurring feed polls.
func NewPoller(driver ports.Scheduler, source ports.FeedSource, publisher ports.Publisher, m *metrics.Metrics, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Poller{
		driver:    driver,
		source:    source,
		publisher: publisher,
		metrics:   m,
		logger:    log.With("component", "poller"),
	}
}

// RunOnce fetches all feeds and publishes every item. Fetch errors of single
// feeds are logged and the remaining items are still published. It returns the
// number of published items.
func (p *Poller) RunOnce(ctx context.Context) (int, error) {
	if p.source == nil || p.publisher == nil {
		return 0, fmt.Errorf("poller is not fully configured")
	}

	started := time.Now()
	items, fetchErr := p.source.Fetch(ctx)
	if fetchErr != nil {
		p.logger.Warn("feed fetch incomplete", "error", fetchErr, "items", len(items))
	}

	perFeed := map[string]int{}
	published := 0
	for _, item := range items {
		if err := p.publisher.Publish(ctx, item); err != nil {
			p.recordPublished(perFeed)
			return published, fmt.Errorf("publish %q: %w", shorten(item.Title, 80), err)
		}
		published++
		perFeed[item.Source]++
		p.logger.Debug("published", "title", shorten(item.Title, 50), "countries", len(item.Countries))
	}
	p.recordPublished(perFeed)

	p.logger.Info("poll finished", "published", published, "duration", time.Since(started))
	if published == 0 && fetchErr != nil {
		return 0, fetchErr
	}
	return published, nil
}

// Start registers RunOnce with the schedule driver.
func (p *Poller) Start(ctx context.Context) error {
	if p.driver == nil {
		return fmt.Errorf("poller has no scheduler")
	}

	job := func(trigger time.Time) {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("poll failed", "trigger", trigger.Format(time.RFC3339), "error", err)
		}
	}

	return p.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (p *Poller) Stop(ctx context.Context) error {
	if p.driver == nil {
		return nil
	}

	return p.driver.Stop(ctx)
}

func (p *Poller) recordPublished(perFeed map[string]int) {
	for feed, n := range perFeed {
		p.metrics.IncPublished(feed, n)
	}
}
