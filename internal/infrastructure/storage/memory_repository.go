package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/ports"
)

// MemoryRepository keeps records in process memory. Used for local runs and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []domain.EnrichedRecord
	nextID  int64
	now     func() time.Time
}

var _ ports.RecordStore = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1, now: time.Now}
}

// EnsureSchema is a no-op.
func (m *MemoryRepository) EnsureSchema(context.Context) error { return nil }

// Append stores a copy of record with the next id.
func (m *MemoryRepository) Append(_ context.Context, record domain.EnrichedRecord) (domain.EnrichedRecord, error) {
	if err := validate(record); err != nil {
		return domain.EnrichedRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record.ID = m.nextID
	record.CreatedAt = m.now().UTC()
	record.Themes = slices.Clone(record.Themes)
	if record.Themes == nil {
		record.Themes = []string{}
	}
	m.nextID++
	m.records = append(m.records, record)
	return record, nil
}

// ListAll returns records newest id first.
func (m *MemoryRepository) ListAll(_ context.Context, opts domain.ListOptions) ([]domain.EnrichedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.EnrichedRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		if !opts.Since.IsZero() && rec.CreatedAt.Before(opts.Since) {
			continue
		}
		rec.Themes = slices.Clone(rec.Themes)
		result = append(result, rec)
		if opts.Limit > 0 && len(result) == opts.Limit {
			break
		}
	}
	return result, nil
}
