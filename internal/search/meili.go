package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"citeme/api/internal/logging"
)

const idxSources = "citeme_sources"

// Meili indexes the library in Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the index. An
// unreachable server leaves it unhealthy; a background probe recovers it.
func NewMeili(url, apiKey string) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		logging.Warn("search: meilisearch unavailable", "url", url, "err", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) Name() string { return "meilisearch" }

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idxSources, PrimaryKey: "id"}); err != nil {
		logging.Debug("search: create index (may already exist)", "index", idxSources, "err", err)
	}
	index := m.client.Index(idxSources)
	filterable := []interface{}{"profileId", "formType"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		logging.Warn("search: update filterable attrs", "index", idxSources, "err", err)
	}
	searchable := []string{"title", "authors"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		logging.Warn("search: update searchable attrs", "index", idxSources, "err", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				logging.Info("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID:              idxSources,
			Query:                 q.Text,
			Limit:                 int64(normalizeLimit(q.Limit)),
			Offset:                int64(q.Offset),
			Filter:                fmt.Sprintf("profileId = %q", q.ProfileID),
			AttributesToHighlight: []string{"title", "authors"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

// ReplaceSources drops the form's previous records and adds the new ones.
// Meilisearch applies the two tasks in enqueue order.
func (m *Meili) ReplaceSources(_ context.Context, profile, formType string, records []SourceRecord) error {
	index := m.client.Index(idxSources)
	filter := fmt.Sprintf("profileId = %q AND formType = %q", profile, formType)
	if _, err := index.DeleteDocumentsByFilter(filter, nil); err != nil {
		return fmt.Errorf("meilisearch delete by filter: %w", err)
	}
	return m.IndexSources(records)
}

// IndexSources bulk-indexes records.
func (m *Meili) IndexSources(records []SourceRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxSources).AddDocuments(records, nil)
	return err
}

func hitToResult(hit meili.Hit) Result {
	return Result{
		ID:            decodeString(hit, "id"),
		FormType:      decodeString(hit, "formType"),
		Title:         firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title")),
		Authors:       decodeString(hit, "authors"),
		URL:           decodeString(hit, "url"),
		SourceType:    decodeString(hit, "sourceType"),
		PublishedDate: decodeString(hit, "publishedDate"),
		Snippet:       firstNonBlank(decodeFormattedString(hit, "authors"), decodeString(hit, "authors")),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
