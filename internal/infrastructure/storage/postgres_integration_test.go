//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"NewsAtlas/internal/domain"
)

func TestPostgresRepositoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("newsatlas"),
		tcpostgres.WithUsername("newsatlas"),
		tcpostgres.WithPassword("newsatlas"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewPostgresRepository(db)
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx))

	first, err := repo.Append(ctx, domain.EnrichedRecord{
		Content:   "Trade talks stall\nTariff dispute continues.",
		Country:   "Japan",
		Sentiment: domain.SentimentNegative,
		Themes:    []string{"Trade", "Tariffs"},
	})
	require.NoError(t, err)
	assert.Positive(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := repo.Append(ctx, domain.EnrichedRecord{
		Content:   "Harvest beats forecasts",
		Country:   "Brazil",
		Sentiment: domain.SentimentPositive,
		Themes:    []string{},
	})
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	got, err := repo.ListAll(ctx, domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, []string{}, got[0].Themes)
	assert.Equal(t, "Japan", got[1].Country)
	assert.Equal(t, domain.SentimentNegative, got[1].Sentiment)
	assert.Equal(t, []string{"Trade", "Tariffs"}, got[1].Themes)

	limited, err := repo.ListAll(ctx, domain.ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}
