package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/ports"
)

const schemaDDL = `CREATE TABLE IF NOT EXISTS messages (
    id         BIGSERIAL PRIMARY KEY,
    content    TEXT        NOT NULL,
    country    TEXT,
    sentiment  TEXT        NOT NULL,
    themes     TEXT        NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists enriched records into the messages table.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.RecordStore = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres opens a pooled connection and checks it is reachable.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	// One consumer writes at a time; a small pool is enough for the dashboard readers.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the messages table if it is missing. Safe to call repeatedly.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Append inserts a record and returns it with the store-assigned id and timestamp.
func (r *PostgresRepository) Append(ctx context.Context, record domain.EnrichedRecord) (domain.EnrichedRecord, error) {
	if err := validate(record); err != nil {
		return domain.EnrichedRecord{}, err
	}

	themes, err := encodeThemes(record.Themes)
	if err != nil {
		return domain.EnrichedRecord{}, err
	}

	query, args, err := psql.Insert("messages").
		Columns("content", "country", "sentiment", "themes").
		Values(record.Content, record.Country, string(record.Sentiment), themes).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return domain.EnrichedRecord{}, fmt.Errorf("build insert: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&record.ID, &record.CreatedAt); err != nil {
		return domain.EnrichedRecord{}, fmt.Errorf("insert message: %w", err)
	}

	return record, nil
}

// ListAll returns records newest id first.
func (r *PostgresRepository) ListAll(ctx context.Context, opts domain.ListOptions) ([]domain.EnrichedRecord, error) {
	builder := psql.Select("id", "content", "COALESCE(country, '')", "sentiment", "themes", "created_at").
		From("messages").
		OrderBy("id DESC")
	if !opts.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"created_at": opts.Since})
	}
	if opts.Limit > 0 {
		builder = builder.Limit(uint64(opts.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	var result []domain.EnrichedRecord
	for rows.Next() {
		var (
			rec       domain.EnrichedRecord
			sentiment string
			themes    string
		)
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Country, &sentiment, &themes, &rec.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan message: %w", err)
		}
		rec.Sentiment = domain.Sentiment(sentiment)
		if rec.Themes, err = decodeThemes(themes); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("message %d: %w", rec.ID, err)
		}
		result = append(result, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

func validate(record domain.EnrichedRecord) error {
	if record.Country == "" {
		return fmt.Errorf("record without country")
	}
	if !record.Sentiment.Valid() {
		return fmt.Errorf("record sentiment %q is outside the vocabulary", record.Sentiment)
	}
	return nil
}

func encodeThemes(themes []string) (string, error) {
	if themes == nil {
		themes = []string{}
	}
	raw, err := json.Marshal(themes)
	if err != nil {
		return "", fmt.Errorf("encode themes: %w", err)
	}
	return string(raw), nil
}

func decodeThemes(raw string) ([]string, error) {
	themes := []string{}
	if raw == "" {
		return themes, nil
	}
	if err := json.Unmarshal([]byte(raw), &themes); err != nil {
		return nil, fmt.Errorf("decode themes: %w", err)
	}
	return themes, nil
}
