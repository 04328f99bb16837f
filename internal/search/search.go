// Package search keeps a per-profile library of saved sources and answers
// full-text queries over it.
package search

import (
	"context"
	"time"
)

// SourceRecord is one indexed source.
type SourceRecord struct {
	ID            string    `json:"id"`
	ProfileID     string    `json:"profileId"`
	FormType      string    `json:"formType"`
	Title         string    `json:"title"`
	Authors       string    `json:"authors"`
	URL           string    `json:"url"`
	SourceType    string    `json:"sourceType"`
	PublishedDate string    `json:"publishedDate"`
	SavedAt       time.Time `json:"savedAt"`
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID            string `json:"id"`
	FormType      string `json:"formType"`
	Title         string `json:"title"`
	Authors       string `json:"authors"`
	URL           string `json:"url"`
	SourceType    string `json:"sourceType"`
	PublishedDate string `json:"publishedDate"`
	Snippet       string `json:"snippet"`
}

// Query describes a search request. Results never cross profiles.
type Query struct {
	ProfileID string
	Text      string
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer replaces the sources saved from one form of a profile.
type Indexer interface {
	ReplaceSources(ctx context.Context, profile, formType string, records []SourceRecord) error
}

// Backend is a searcher that also owns the records.
type Backend interface {
	Searcher
	Indexer
	Name() string
}

const defaultLimit = 20

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return defaultLimit
	}
	return limit
}
