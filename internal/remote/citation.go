package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"citeme/api/internal/citation"
)

// ServiceCitation names the citation generator in Error.
const ServiceCitation = "citation generator"

// CitationClient calls the citation generation endpoint. It never retries.
type CitationClient struct {
	baseURL string
	client  *http.Client
}

func NewCitationClient(baseURL string, timeout time.Duration) *CitationClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &CitationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type citationResponse struct {
	Result struct {
		FormattedText string `json:"formatted_text"`
		References    string `json:"references"`
	} `json:"result"`
	OverallScore float64 `json:"overall_score"`
	Sources      []struct {
		Title            string  `json:"title"`
		URL              string  `json:"url"`
		Type             string  `json:"type"`
		CredibilityScore float64 `json:"credibility_score"`
	} `json:"sources"`
}

// Generate posts the payload to /citation/get_citation.
func (c *CitationClient) Generate(ctx context.Context, payload citation.Payload) (citation.Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return citation.Result{}, fmt.Errorf("encode citation payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/citation/get_citation", bytes.NewReader(body))
	if err != nil {
		return citation.Result{}, &Error{Service: ServiceCitation, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return citation.Result{}, &Error{Service: ServiceCitation, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return citation.Result{}, &Error{Service: ServiceCitation, Status: resp.StatusCode}
	}

	var decoded citationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return citation.Result{}, &Error{Service: ServiceCitation, Err: fmt.Errorf("decode response: %w", err)}
	}

	result := citation.Result{
		FormattedText: decoded.Result.FormattedText,
		References:    decoded.Result.References,
		OverallScore:  decoded.OverallScore,
		Sources:       make([]citation.ScoredSource, 0, len(decoded.Sources)),
	}
	for _, s := range decoded.Sources {
		result.Sources = append(result.Sources, citation.ScoredSource{
			Title:            s.Title,
			URL:              s.URL,
			Type:             s.Type,
			CredibilityScore: s.CredibilityScore,
		})
	}
	return result, nil
}
