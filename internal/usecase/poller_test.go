package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/metrics"
)

type fakeSource struct {
	items []domain.FeedItem
	err   error
}

func (f *fakeSource) Fetch(context.Context) ([]domain.FeedItem, error) {
	return f.items, f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	published []domain.FeedItem
	failAt    int
}

func (f *fakePublisher) Publish(_ context.Context, item domain.FeedItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt > 0 && len(f.published)+1 == f.failAt {
		return errors.New("queue unavailable")
	}
	f.published = append(f.published, item)
	return nil
}

type manualScheduler struct {
	job     func(time.Time)
	stopped bool
}

func (m *manualScheduler) Start(_ context.Context, job func(time.Time)) error {
	m.job = job
	return nil
}

func (m *manualScheduler) Stop(context.Context) error {
	m.stopped = true
	return nil
}

func feedItems() []domain.FeedItem {
	return []domain.FeedItem{
		{Title: "Trade talks stall", Countries: []string{"Japan"}, Source: "nyt"},
		{Title: "Harvest beats forecasts", Countries: []string{"Brazil"}, Source: "nyt"},
		{Title: "Chip exports rise", Countries: []string{}, Source: "wire"},
	}
}

func TestPollerRunOncePublishesEverything(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	pub := &fakePublisher{}
	p := NewPoller(nil, &fakeSource{items: feedItems()}, pub, m, nil)

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, pub.published, 3)
	assert.Equal(t, "Trade talks stall", pub.published[0].Title)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Published.WithLabelValues("nyt")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Published.WithLabelValues("wire")), 0)
}

func TestPollerRunOncePublishesPartialFetch(t *testing.T) {
	pub := &fakePublisher{}
	src := &fakeSource{items: feedItems()[:1], err: errors.New("feed wire: 502")}
	p := NewPoller(nil, src, pub, nil, nil)

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPollerRunOnceFetchFailure(t *testing.T) {
	p := NewPoller(nil, &fakeSource{err: errors.New("dns failure")}, &fakePublisher{}, nil, nil)

	n, err := p.RunOnce(context.Background())
	require.ErrorContains(t, err, "dns failure")
	assert.Zero(t, n)
}

func TestPollerRunOnceStopsOnPublishError(t *testing.T) {
	pub := &fakePublisher{failAt: 2}
	p := NewPoller(nil, &fakeSource{items: feedItems()}, pub, nil, nil)

	n, err := p.RunOnce(context.Background())
	require.ErrorContains(t, err, "queue unavailable")
	assert.Equal(t, 1, n)
}

func TestPollerStartRegistersJob(t *testing.T) {
	driver := &manualScheduler{}
	pub := &fakePublisher{}
	p := NewPoller(driver, &fakeSource{items: feedItems()}, pub, nil, nil)

	require.NoError(t, p.Start(context.Background()))
	require.NotNil(t, driver.job)

	driver.job(time.Now())
	assert.Len(t, pub.published, 3)

	require.NoError(t, p.Stop(context.Background()))
	assert.True(t, driver.stopped)
}
