package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"citeme/api/internal/citation"
	"citeme/api/internal/export"
	"citeme/api/internal/gitrepo"
	"citeme/api/internal/remote"
	"citeme/api/internal/search"
	"citeme/api/internal/store"
	"citeme/api/internal/workspace"
)

type fakeGenerator struct {
	mu     sync.Mutex
	calls  int
	last   citation.Payload
	result citation.Result
	err    error
}

func (g *fakeGenerator) Generate(_ context.Context, payload citation.Payload) (citation.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = payload
	return g.result, g.err
}

type fakePrinter struct {
	err error
}

func (p fakePrinter) Print(context.Context, string) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []byte("%PDF-1.7"), nil
}

type fakeConverter struct{}

func (fakeConverter) Convert(context.Context, string) ([]byte, error) {
	return []byte("docx-bytes"), nil
}

type testServer struct {
	handler http.Handler
	gen     *fakeGenerator
	kv      *store.MemoryStore
}

func newTestServer(t *testing.T, printer export.Printer) *testServer {
	t.Helper()
	gen := &fakeGenerator{result: citation.Result{
		FormattedText: "X",
		References:    "Y",
		OverallScore:  0.82,
		Sources: []citation.ScoredSource{
			{Title: "Paper", URL: "https://doi.org/1", Type: "journal", CredibilityScore: 0.9},
		},
	}}
	kv := store.NewMemoryStore()
	library := search.NewService(nil, nil)
	reg := workspace.NewRegistry(workspace.Deps{
		KV:        kv,
		Generator: gen,
		Library:   library,
		History:   gitrepo.New(t.TempDir()),
	}, workspace.Options{Limits: citation.DefaultLimits})
	svc := New(Deps{
		Workspaces: reg,
		Storage:    kv,
		Exporter:   export.NewService(printer, fakeConverter{}),
		Library:    library,
	})
	return &testServer{handler: NewHTTPServer(svc, "*").Handler(), gen: gen, kv: kv}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(ProfileHeader, "profile-1")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

var webSource = map[string]any{
	"authors":       "Doe, Jane",
	"title":         "Climate Signals",
	"type":          "journal",
	"publishedDate": "2023-05-01",
	"url":           "https://example.org/climate",
}

func TestProfileHeaderRequired(t *testing.T) {
	ts := newTestServer(t, fakePrinter{})
	req := httptest.NewRequest(http.MethodGet, "/api/workspace", nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if code := decode(t, rr)["code"]; code != "PROFILE_REQUIRED" {
		t.Fatalf("expected PROFILE_REQUIRED, got %v", code)
	}
}

func TestGenerateWithoutTitleIsValidationError(t *testing.T) {
	ts := newTestServer(t, fakePrinter{})
	ts.do(t, http.MethodPut, "/api/document", map[string]any{"content": "<p>Body</p>"})

	rr := ts.do(t, http.MethodPost, "/api/citation/generate", map[string]any{"formType": "auto"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := decode(t, rr)["code"]; code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", code)
	}
	if ts.gen.calls != 0 {
		t.Fatalf("generator should not be called, got %d calls", ts.gen.calls)
	}
}

func TestGenerateRequiresFormType(t *testing.T) {
	ts := newTestServer(t, fakePrinter{})
	ts.do(t, http.MethodPut, "/api/document", map[string]any{"title": "Essay"})

	rr := ts.do(t, http.MethodPost, "/api/citation/generate", map[string]any{"citationStyle": "MLA"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := decode(t, rr)["code"]; code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", code)
	}
	if ts.gen.calls != 0 {
		t.Fatalf("generator should not be called, got %d calls", ts.gen.calls)
	}
}

func TestCitationFlow(t *testing.T) {
	ts := newTestServer(t, fakePrinter{})

	rr := ts.do(t, http.MethodPut, "/api/document", map[string]any{"title": "Essay", "content": "<p>Warming trends</p>"})
	if rr.Code != http.StatusOK {
		t.Fatalf("set document: %d %s", rr.Code, rr.Body.String())
	}
	doc := decode(t, rr)
	if doc["wordCount"] != float64(2) {
		t.Fatalf("expected 2 words, got %v", doc["wordCount"])
	}

	rr = ts.do(t, http.MethodPut, "/api/forms/web", map[string]any{
		"sources":       []any{webSource},
		"citationStyle": "MLA",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("replace form: %d %s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodPost, "/api/forms/web/sources/0/toggle", map[string]any{"field": "showMetadata"})
	if rr.Code != http.StatusOK {
		t.Fatalf("toggle: %d %s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodPost, "/api/forms/web/save", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rr.Code, rr.Body.String())
	}
	if status := decode(t, rr)["status"]; status != "saved" {
		t.Fatalf("expected saved, got %v", status)
	}
	stored, err := ts.kv.Get(context.Background(), "profile-1", citation.StorageKey(citation.FormWeb))
	if err != nil {
		t.Fatalf("stored form: %v", err)
	}
	if strings.Contains(stored, "showMetadata") {
		t.Fatalf("presentation state leaked into storage: %s", stored)
	}

	rr = ts.do(t, http.MethodPost, "/api/citation/generate", map[string]any{"formType": "web"})
	if rr.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", rr.Code, rr.Body.String())
	}
	snap := decode(t, rr)
	if snap["view"] != "preview" {
		t.Fatalf("expected preview view, got %v", snap["view"])
	}
	if snap["credibilityScore"] != 0.82 {
		t.Fatalf("expected score 0.82, got %v", snap["credibilityScore"])
	}
	preview := snap["preview"].(map[string]any)
	content := preview["content"].([]any)
	if len(content) != 2 || content[0] != "X" || content[1] != "Y" {
		t.Fatalf("unexpected preview %v", content)
	}
	if ts.gen.last["citationStyle"] != "MLA" {
		t.Fatalf("expected stored style MLA in payload, got %v", ts.gen.last["citationStyle"])
	}
	raw, _ := json.Marshal(ts.gen.last)
	if strings.Contains(string(raw), "showMetadata") {
		t.Fatalf("presentation state leaked into payload: %s", raw)
	}

	rr = ts.do(t, http.MethodGet, "/api/citation/sources", nil)
	groups := decode(t, rr)["groups"].([]any)
	academic := groups[0].(map[string]any)
	if academic["name"] != "academic" || academic["count"] != float64(1) {
		t.Fatalf("unexpected academic group %v", academic)
	}

	rr = ts.do(t, http.MethodPost, "/api/export/markdown", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("markdown export: %d %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, `filename="Essay.md"`) {
		t.Fatalf("unexpected disposition %q", got)
	}
	if !strings.HasPrefix(rr.Body.String(), "# Essay") {
		t.Fatalf("unexpected markdown %q", rr.Body.String())
	}

	rr = ts.do(t, http.MethodPost, "/api/view/edit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", rr.Code, rr.Body.String())
	}
	snap = decode(t, rr)
	if snap["view"] != "editor" {
		t.Fatalf("expected editor view, got %v", snap["view"])
	}
	document := snap["document"].(map[string]any)
	if document["editorContent"] != "X<h2>References</h2>Y" {
		t.Fatalf("unexpected editor content %v", document["editorContent"])
	}

	rr = ts.do(t, http.MethodGet, "/api/library/search?q=climate", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("library search: %d %s", rr.Code, rr.Body.String())
	}
	if total := decode(t, rr)["total"]; total != float64(1) {
		t.Fatalf("expected one library hit, got %v", total)
	}

	rr = ts.do(t, http.MethodGet, "/api/history", nil)
	commits := decode(t, rr)["commits"].([]any)
	if len(commits) < 2 {
		t.Fatalf("expected snapshots in history, got %v", commits)
	}
}

func TestSaveInvalidFormReturnsProblems(t *testing.T) {
	ts := newTestServer(t, fakePrinter{})

	rr := ts.do(t, http.MethodPost, "/api/forms/web/save", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	body := decode(t, rr)
	problems, ok := body["details"].([]any)
	if !ok || len(problems) != 5 {
		t.Fatalf("expected five missing fields, got %v", body["details"])
	}
	if _, err := ts.kv.Get(context.Background(), "profile-1", citation.StorageKey(citation.FormWeb)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("invalid form must not be stored, got %v", err)
	}
}

func TestGenerationFailureIsBadGateway(t *testing.T) {
	ts := newTestServer(t, fakePrinter{})
	ts.gen.err = &remote.Error{Service: remote.ServiceCitation, Status: http.StatusInternalServerError}
	ts.do(t, http.MethodPut, "/api/document", map[string]any{"title": "Essay", "content": "<p>Body</p>"})

	rr := ts.do(t, http.MethodPost, "/api/citation/generate", map[string]any{"formType": "auto"})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	if code := decode(t, rr)["code"]; code != "GENERATION_FAILED" {
		t.Fatalf("expected GENERATION_FAILED, got %v", code)
	}

	rr = ts.do(t, http.MethodGet, "/api/workspace", nil)
	snap := decode(t, rr)
	if snap["view"] != "editor" || snap["loading"] != false {
		t.Fatalf("failed generation changed state: %v", snap)
	}
}

func TestPrintSurfaceUnavailable(t *testing.T) {
	ts := newTestServer(t, fakePrinter{err: export.ErrPrintSurfaceUnavailable})
	ts.do(t, http.MethodPut, "/api/document", map[string]any{"title": "Essay", "content": "<p>Body</p>"})

	rr := ts.do(t, http.MethodPost, "/api/export/print", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/api/export/download", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("download: %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, `filename="Essay.docx"`) {
		t.Fatalf("unexpected disposition %q", got)
	}
}

func TestFormRoutes(t *testing.T) {
	ts := newTestServer(t, fakePrinter{})

	rr := ts.do(t, http.MethodGet, "/api/forms/journal", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown form type, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodPut, "/api/forms/source/supplement", map[string]any{"enabled": true})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for supplement on free text, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/api/forms/freeText/sources", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("add source: %d %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if body["changed"] != true {
		t.Fatalf("expected source added, got %v", body)
	}

	rr = ts.do(t, http.MethodDelete, "/api/forms/source/sources/9", nil)
	body = decode(t, rr)
	if body["changed"] != false {
		t.Fatalf("expected no-op removal, got %v", body)
	}

	rr = ts.do(t, http.MethodPut, "/api/forms/web/sources/0", webSource)
	if rr.Code != http.StatusOK {
		t.Fatalf("update source: %d %s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodGet, "/api/forms/web/csl", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("csl: %d %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Climate Signals") {
		t.Fatalf("csl output missing title: %s", rr.Body.String())
	}

	rr = ts.do(t, http.MethodPost, "/api/forms/web/sources/0/credibility", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a scorer, got %d", rr.Code)
	}
}

func TestDocumentFromProseMirror(t *testing.T) {
	ts := newTestServer(t, fakePrinter{})
	rr := ts.do(t, http.MethodPut, "/api/document", map[string]any{
		"doc": map[string]any{
			"type": "doc",
			"content": []any{
				map[string]any{"type": "paragraph", "content": []any{map[string]any{"type": "text", "text": "Hello"}}},
			},
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("set document: %d %s", rr.Code, rr.Body.String())
	}
	if got := decode(t, rr)["editorContent"]; got != "<p>Hello</p>" {
		t.Fatalf("unexpected content %v", got)
	}

	rr = ts.do(t, http.MethodDelete, "/api/document/content", nil)
	if got := decode(t, rr)["editorContent"]; got != "" {
		t.Fatalf("expected cleared content, got %v", got)
	}
}

func TestEditorCommands(t *testing.T) {
	ts := newTestServer(t, fakePrinter{})
	rr := ts.do(t, http.MethodPost, "/api/editor/commands", map[string]any{"command": "italic"})
	if rr.Code != http.StatusOK {
		t.Fatalf("command: %d %s", rr.Code, rr.Body.String())
	}
	rr = ts.do(t, http.MethodPost, "/api/editor/commands", map[string]any{"command": "sparkle"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown command, got %d", rr.Code)
	}
}
