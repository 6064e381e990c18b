package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/geotag"
	"NewsAtlas/internal/ports"
)

type entryReader interface {
	Read(ctx context.Context, feedURL string) ([]Entry, error)
}

// FeedSource implements ports.FeedSource over the configured feeds and their taggers.
type FeedSource struct {
	reader   entryReader
	registry *geotag.Registry
	feeds    []config.FeedConfig
	logger   *slog.Logger
}

var _ ports.FeedSource = (*FeedSource)(nil)

// NewFeedSource wires a reader and tagger registry with config-defined feeds.
func NewFeedSource(reader entryReader, reg *geotag.Registry, feeds []config.FeedConfig, log *slog.Logger) *FeedSource {
	return &FeedSource{
		reader:   reader,
		registry: reg,
		feeds:    feeds,
		logger:   log,
	}
}

// Fetch reads every feed and tags its items. A failing feed does not stop the
// others: the items gathered so far are returned together with the joined errors.
func (s *FeedSource) Fetch(ctx context.Context) ([]domain.FeedItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("tagger registry is not configured")
	}

	var (
		aggregated []domain.FeedItem
		errs       []error
	)
	for _, feed := range s.feeds {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		tagger, err := s.registry.Resolve(feed.Tagger)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.Name, err))
			continue
		}

		entries, err := s.reader.Read(ctx, feed.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("read feed %s: %w", feed.Name, err))
			continue
		}

		for _, e := range entries {
			item := e.Item
			item.Countries = tagger.Tag(e.Categories, feed.Options)
			item.Source = feed.Name
			aggregated = append(aggregated, item)
		}
		s.debug("feed read", "feed", feed.Name, "tagger", tagger.Name(), "items", len(entries))
	}

	return aggregated, errors.Join(errs...)
}

func (s *FeedSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
