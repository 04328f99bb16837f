package search

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryIndex is the in-process backend used when no database is configured.
// A record matches when every query term occurs in its title or authors.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string][]SourceRecord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string][]SourceRecord)}
}

func (m *MemoryIndex) Name() string  { return "memory" }
func (m *MemoryIndex) Healthy() bool { return true }

func (m *MemoryIndex) ReplaceSources(_ context.Context, profile, formType string, records []SourceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]SourceRecord, 0, len(m.records[profile])+len(records))
	for _, r := range m.records[profile] {
		if r.FormType != formType {
			kept = append(kept, r)
		}
	}
	m.records[profile] = append(kept, records...)
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 {
		return nil, 0, nil
	}

	type scored struct {
		record SourceRecord
		score  int
	}
	m.mu.RLock()
	var hits []scored
	for _, r := range m.records[q.ProfileID] {
		title := strings.ToLower(r.Title)
		authors := strings.ToLower(r.Authors)
		score := 0
		for _, term := range terms {
			switch {
			case strings.Contains(title, term):
				score += 2
			case strings.Contains(authors, term):
				score++
			default:
				score = -1
			}
			if score < 0 {
				break
			}
		}
		if score > 0 {
			hits = append(hits, scored{record: r, score: score})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].record.SavedAt.After(hits[j].record.SavedAt)
	})

	total := len(hits)
	offset := q.Offset
	if offset < 0 || offset > total {
		offset = total
	}
	end := offset + normalizeLimit(q.Limit)
	if end > total {
		end = total
	}
	results := make([]Result, 0, end-offset)
	for _, h := range hits[offset:end] {
		results = append(results, recordToResult(h.record, h.record.Authors))
	}
	return results, total, nil
}

func recordToResult(r SourceRecord, snippet string) Result {
	return Result{
		ID:            r.ID,
		FormType:      r.FormType,
		Title:         r.Title,
		Authors:       r.Authors,
		URL:           r.URL,
		SourceType:    r.SourceType,
		PublishedDate: r.PublishedDate,
		Snippet:       snippet,
	}
}
