package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/domain"
)

func record(content, country string) domain.EnrichedRecord {
	return domain.EnrichedRecord{
		Content:   content,
		Country:   country,
		Sentiment: domain.SentimentNeutral,
		Themes:    []string{"Trade"},
	}
}

func TestMemoryRepositoryAppendAssignsIncreasingIDs(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first, err := repo.Append(ctx, record("a", "Japan"))
	require.NoError(t, err)
	second, err := repo.Append(ctx, record("b", "Brazil"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.False(t, first.CreatedAt.IsZero())
}

func TestMemoryRepositoryListsNewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, c := range []string{"a", "b", "c"} {
		_, err := repo.Append(ctx, record(c, "Japan"))
		require.NoError(t, err)
	}

	got, err := repo.ListAll(ctx, domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Content)
	assert.Equal(t, "a", got[2].Content)
	assert.Equal(t, []string{"Trade"}, got[1].Themes)
}

func TestMemoryRepositoryListFilters(t *testing.T) {
	repo := NewMemoryRepository()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}
	ctx := context.Background()

	for _, c := range []string{"a", "b", "c", "d"} {
		_, err := repo.Append(ctx, record(c, "Japan"))
		require.NoError(t, err)
	}

	limited, err := repo.ListAll(ctx, domain.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "d", limited[0].Content)
	assert.Equal(t, "c", limited[1].Content)

	recent, err := repo.ListAll(ctx, domain.ListOptions{Since: base.Add(3 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "d", recent[0].Content)
	assert.Equal(t, "c", recent[1].Content)
}

func TestMemoryRepositoryRejectsInvalidRecords(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.Append(ctx, record("a", ""))
	require.Error(t, err)

	bad := record("a", "Japan")
	bad.Sentiment = "Ecstatic"
	_, err = repo.Append(ctx, bad)
	require.Error(t, err)

	got, err := repo.ListAll(ctx, domain.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryRepositoryDoesNotShareThemes(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	rec := record("a", "Japan")
	_, err := repo.Append(ctx, rec)
	require.NoError(t, err)
	rec.Themes[0] = "Mutated"

	got, err := repo.ListAll(ctx, domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Trade"}, got[0].Themes)
}

func TestOpenMemoryDriver(t *testing.T) {
	store, closeFn, err := Open(context.Background(), config.DatabaseConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	defer func() { require.NoError(t, closeFn()) }()

	assert.IsType(t, &MemoryRepository{}, store)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, _, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite"})
	require.ErrorContains(t, err, "sqlite")
}

func TestThemesCodec(t *testing.T) {
	raw, err := encodeThemes(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	themes, err := decodeThemes(`["Trade","Energy"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Trade", "Energy"}, themes)

	_, err = decodeThemes("not json")
	require.Error(t, err)
}
