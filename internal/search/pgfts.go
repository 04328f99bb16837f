package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"citeme/api/internal/util"
)

// PgFTS stores the library in the source_library table and searches it with
// PostgreSQL full-text search.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

func (p *PgFTS) Name() string { return "postgres" }

// Healthy always returns true; if Postgres is down the storage layer fails
// first.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) ReplaceSources(ctx context.Context, profile, formType string, records []SourceRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgfts begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM source_library WHERE profile_id = $1 AND form_type = $2`, profile, formType); err != nil {
		return fmt.Errorf("pgfts clear: %w", err)
	}
	for _, r := range records {
		if r.ID == "" {
			r.ID = util.NewID("src")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO source_library (id, profile_id, form_type, title, authors, url, source_type, published_date, saved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			r.ID, profile, formType, r.Title, r.Authors, r.URL, r.SourceType, r.PublishedDate, r.SavedAt,
		); err != nil {
			return fmt.Errorf("pgfts insert: %w", err)
		}
	}
	return tx.Commit()
}

// Search ranks with ts_rank over plainto_tsquery and highlights authors as the
// snippet.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `
		SELECT count(*) FROM source_library
		WHERE profile_id = $1 AND fts @@ plainto_tsquery('english', $2)`,
		q.ProfileID, q.Text,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, form_type, title, authors, url, source_type, published_date,
			ts_headline('english', coalesce(authors, ''), plainto_tsquery('english', $2), 'MaxFragments=1,MaxWords=20') AS snippet
		FROM source_library
		WHERE profile_id = $1 AND fts @@ plainto_tsquery('english', $2)
		ORDER BY ts_rank(fts, plainto_tsquery('english', $2)) DESC, saved_at DESC
		LIMIT %d OFFSET %d`, normalizeLimit(q.Limit), offset),
		q.ProfileID, q.Text,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.FormType, &r.Title, &r.Authors, &r.URL, &r.SourceType, &r.PublishedDate, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every record for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]SourceRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, profile_id, form_type, title, authors, url, source_type, published_date, saved_at
		FROM source_library
	`)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	defer rows.Close()

	records := make([]SourceRecord, 0)
	for rows.Next() {
		var r SourceRecord
		if err := rows.Scan(&r.ID, &r.ProfileID, &r.FormType, &r.Title, &r.Authors, &r.URL, &r.SourceType, &r.PublishedDate, &r.SavedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return records, nil
}
