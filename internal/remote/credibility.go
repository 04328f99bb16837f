package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"citeme/api/internal/citation"
	"citeme/api/internal/httputil"
)

// ServiceCredibility names the credibility service in Error.
const ServiceCredibility = "credibility service"

// CredibilityRequest describes one source to score.
type CredibilityRequest struct {
	Domain          string `json:"domain,omitempty"`
	CitationDOI     string `json:"citation_doi,omitempty"`
	Journal         string `json:"journal,omitempty"`
	PublicationDate string `json:"publication_date,omitempty"`
	AuthorID        string `json:"author_id,omitempty"`
	AuthorName      string `json:"author_name,omitempty"`
	Title           string `json:"title,omitempty"`
	Type            string `json:"type,omitempty"`
	URL             string `json:"url,omitempty"`
}

// CredibilityScore is one scored source. Components is only filled when the
// detail flag was set.
type CredibilityScore struct {
	Status           string                     `json:"status"`
	CredibilityScore float64                    `json:"credibilityScore"`
	URL              string                     `json:"url,omitempty"`
	Title            string                     `json:"title,omitempty"`
	Type             string                     `json:"type,omitempty"`
	Error            string                     `json:"error,omitempty"`
	Components       map[string]json.RawMessage `json:"components,omitempty"`
}

type credibilityEnvelope struct {
	Status string `json:"status"`
	Data   struct {
		CredibilityScore *float64                   `json:"credibility_score"`
		TotalScore       *float64                   `json:"total_score"`
		URL              string                     `json:"url"`
		Title            string                     `json:"title"`
		Type             string                     `json:"type"`
		Error            string                     `json:"error"`
		Component        map[string]json.RawMessage `json:"component"`
	} `json:"data"`
}

func (e credibilityEnvelope) score() CredibilityScore {
	out := CredibilityScore{
		Status:     e.Status,
		URL:        e.Data.URL,
		Title:      e.Data.Title,
		Type:       e.Data.Type,
		Error:      e.Data.Error,
		Components: e.Data.Component,
	}
	switch {
	case e.Data.CredibilityScore != nil:
		out.CredibilityScore = *e.Data.CredibilityScore
	case e.Data.TotalScore != nil:
		out.CredibilityScore = *e.Data.TotalScore
	}
	return out
}

// CredibilityClient calls the metrics service. Requests are rate limited and
// retried on HTTP 429.
type CredibilityClient struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

func NewCredibilityClient(baseURL string, timeout time.Duration) *CredibilityClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CredibilityClient{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v1/credibility",
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		maxRetries: 3,
	}
}

// Compute scores a single source.
func (c *CredibilityClient) Compute(ctx context.Context, in CredibilityRequest, detail bool) (CredibilityScore, error) {
	var env credibilityEnvelope
	if err := c.post(ctx, "/compute_credibility", in, detail, &env); err != nil {
		return CredibilityScore{}, err
	}
	return env.score(), nil
}

// ComputeBatch scores several sources in one call. Per-source failures come
// back with status "error" rather than failing the batch.
func (c *CredibilityClient) ComputeBatch(ctx context.Context, in []CredibilityRequest, detail bool) ([]CredibilityScore, error) {
	body := struct {
		Sources []CredibilityRequest `json:"sources"`
	}{Sources: in}
	var envs []credibilityEnvelope
	if err := c.post(ctx, "/compute_credibility_batch", body, detail, &envs); err != nil {
		return nil, err
	}
	out := make([]CredibilityScore, len(envs))
	for i, env := range envs {
		out[i] = env.score()
	}
	return out, nil
}

// Health checks the liveness endpoint.
func (c *CredibilityClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return &Error{Service: ServiceCredibility, Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Service: ServiceCredibility, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &Error{Service: ServiceCredibility, Status: resp.StatusCode}
	}
	return nil
}

func (c *CredibilityClient) post(ctx context.Context, path string, in any, detail bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode credibility request: %w", err)
	}

	endpoint := c.baseURL + path
	if detail {
		endpoint += "?" + url.Values{"detail": {"true"}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &Error{Service: ServiceCredibility, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.maxRetries)
	if err != nil {
		return &Error{Service: ServiceCredibility, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &Error{Service: ServiceCredibility, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Service: ServiceCredibility, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// RequestFor maps a form source onto a credibility request.
func RequestFor(src citation.Source) CredibilityRequest {
	base := src.Base()
	req := CredibilityRequest{
		AuthorName:      base.Authors,
		Title:           base.Title,
		Type:            base.Type,
		PublicationDate: base.PublishedDate,
		URL:             citation.SourceURL(src),
	}
	if u, err := url.Parse(req.URL); err == nil {
		req.Domain = u.Hostname()
	}
	if web, ok := src.(citation.WebSource); ok {
		req.CitationDOI = web.DOI
	}
	return req
}
