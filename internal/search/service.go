package search

import (
	"context"
	"time"

	"citeme/api/internal/logging"
	"citeme/api/internal/util"
)

// Service stores records in the primary backend and mirrors them into
// Meilisearch when configured. Queries try Meilisearch first.
type Service struct {
	meili   *Meili
	primary Backend
}

// NewService creates a search service. meili may be nil.
func NewService(meili *Meili, primary Backend) *Service {
	if primary == nil {
		primary = NewMemoryIndex()
	}
	return &Service{meili: meili, primary: primary}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: s.meili.Name()}
		}
		logging.Warn("search: meilisearch error, falling back", "backend", s.primary.Name(), "err", err)
	}

	results, total, err := s.primary.Search(ctx, q)
	if err != nil {
		logging.Error("search: primary backend error", "backend", s.primary.Name(), "err", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Backend: s.primary.Name()}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: s.primary.Name()}
}

// IndexSources replaces the library entries of one form. The primary write is
// synchronous; Meilisearch is updated in the background.
func (s *Service) IndexSources(ctx context.Context, profile, formType string, records []SourceRecord) error {
	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = util.NewID("src")
		}
		records[i].ProfileID = profile
		records[i].FormType = formType
		if records[i].SavedAt.IsZero() {
			records[i].SavedAt = now
		}
	}
	if err := s.primary.ReplaceSources(ctx, profile, formType, records); err != nil {
		return err
	}
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	go func() {
		if err := s.meili.ReplaceSources(context.Background(), profile, formType, records); err != nil {
			logging.Warn("search: meilisearch index", "profile", profile, "formType", formType, "err", err)
		}
	}()
	return nil
}

// ReindexAllFromPG pushes every Postgres record into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	pg, ok := s.primary.(*PgFTS)
	if s.meili == nil || !s.meili.Healthy() || !ok {
		return
	}
	records, err := pg.LoadAllRecords(ctx)
	if err != nil {
		logging.Warn("search: reindex load failed", "err", err)
		return
	}
	if err := s.meili.IndexSources(records); err != nil {
		logging.Warn("search: reindex sources", "err", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
