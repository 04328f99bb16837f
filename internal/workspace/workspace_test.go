package workspace

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citeme/api/internal/citation"
	"citeme/api/internal/editor"
	"citeme/api/internal/gitrepo"
	"citeme/api/internal/markup"
	"citeme/api/internal/navigation"
	"citeme/api/internal/remote"
	"citeme/api/internal/search"
	"citeme/api/internal/store"
)

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	payloads []citation.Payload
	result   citation.Result
	err      error
	block    chan struct{}
	started  chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, payload citation.Payload) (citation.Result, error) {
	g.mu.Lock()
	g.calls++
	g.payloads = append(g.payloads, payload)
	g.mu.Unlock()
	if g.started != nil {
		close(g.started)
	}
	if g.block != nil {
		<-g.block
	}
	return g.result, g.err
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeLibrary struct {
	profile  string
	formType string
	records  []search.SourceRecord
}

func (l *fakeLibrary) IndexSources(_ context.Context, profile, formType string, records []search.SourceRecord) error {
	l.profile, l.formType, l.records = profile, formType, records
	return nil
}

type fakeScorer struct {
	req remote.CredibilityRequest
}

func (s *fakeScorer) Compute(_ context.Context, req remote.CredibilityRequest, _ bool) (remote.CredibilityScore, error) {
	s.req = req
	return remote.CredibilityScore{Status: "success", CredibilityScore: 0.7, URL: req.URL}, nil
}

func successResult() citation.Result {
	return citation.Result{
		FormattedText: "X",
		References:    "Y",
		OverallScore:  0.82,
		Sources: []citation.ScoredSource{
			{Title: "Paper", Type: "journal", CredibilityScore: 0.9},
			{Title: "Site", Type: "website", CredibilityScore: 0.7},
		},
	}
}

func newTestWorkspace(t *testing.T, gen Generator, deps Deps) (*Workspace, *store.MemoryStore) {
	t.Helper()
	kv := store.NewMemoryStore()
	deps.KV = kv
	deps.Generator = gen
	reg := NewRegistry(deps, Options{Limits: citation.DefaultLimits})
	ws, err := reg.Get(context.Background(), "profile-1")
	require.NoError(t, err)
	return ws, kv
}

func ptr(s string) *string { return &s }

func TestRegistryRequiresProfile(t *testing.T) {
	reg := NewRegistry(Deps{KV: store.NewMemoryStore()}, Options{})
	_, err := reg.Get(context.Background(), "  ")
	require.ErrorIs(t, err, ErrProfileRequired)

	a, err := reg.Get(context.Background(), "p")
	require.NoError(t, err)
	b, err := reg.Get(context.Background(), "p")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, reg.Len())
}

func TestGenerateWithoutTitleNeverCallsGenerator(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	ws, _ := newTestWorkspace(t, gen, Deps{})
	_, err := ws.SetDocument(context.Background(), nil, ptr("<p>Body</p>"))
	require.NoError(t, err)

	_, err = ws.Generate(context.Background(), citation.FormAuto, "")
	require.ErrorIs(t, err, ErrTitleRequired)
	assert.Equal(t, 0, gen.Calls())
	assert.False(t, ws.Snapshot().Loading)
}

func TestGenerateRequiresContentAndSavedForm(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	ws, _ := newTestWorkspace(t, gen, Deps{})
	ctx := context.Background()
	_, err := ws.SetDocument(ctx, ptr("Essay"), nil)
	require.NoError(t, err)

	_, err = ws.Generate(ctx, citation.FormWeb, "")
	require.ErrorIs(t, err, ErrContentRequired)

	_, err = ws.SetDocument(ctx, nil, ptr("<p>Body</p>"))
	require.NoError(t, err)
	_, err = ws.Generate(ctx, citation.FormWeb, "")
	require.ErrorIs(t, err, ErrFormNotSaved)
	assert.Equal(t, 0, gen.Calls())
}

func TestGenerateSuccessPopulatesPreview(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	ws, _ := newTestWorkspace(t, gen, Deps{})
	ctx := context.Background()
	_, err := ws.SetDocument(ctx, ptr("Essay"), ptr("<p>Body</p>"))
	require.NoError(t, err)

	snap, err := ws.Generate(ctx, citation.FormAuto, "MLA")
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, snap.Preview.Content)
	assert.Equal(t, "Essay", snap.Preview.Title)
	require.NotNil(t, snap.CredibilityScore)
	assert.InDelta(t, 0.82, *snap.CredibilityScore, 1e-9)
	assert.Equal(t, navigation.ViewPreview, snap.View)
	assert.False(t, snap.Loading)
	assert.Len(t, snap.Sources, 2)

	require.Len(t, gen.payloads, 1)
	assert.Equal(t, "auto", gen.payloads[0]["formType"])
	assert.Equal(t, "MLA", gen.payloads[0]["citationStyle"])
	assert.Equal(t, "Essay", gen.payloads[0]["title"])

	groups := snap.Summary.Groups
	require.Len(t, groups, 3)
	assert.Equal(t, 1, groups[0].Count)
	assert.Equal(t, citation.StatusVerified, groups[0].Status)
}

func TestGenerateUsesSavedWebForm(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	ws, kv := newTestWorkspace(t, gen, Deps{})
	ctx := context.Background()
	_, err := ws.SetDocument(ctx, ptr("Essay"), ptr("<p>Body</p>"))
	require.NoError(t, err)

	src := citation.WebSource{
		BaseFields: citation.BaseFields{Authors: "Doe, J.", Title: "Page", Type: "website", PublishedDate: "2024-01-01"},
		URL:        "https://example.com/page",
	}
	_, err = ws.ReplaceForm(citation.FormWeb, []citation.Source{src}, ptr("Chicago"))
	require.NoError(t, err)
	_, err = ws.TogglePresentation(citation.FormWeb, 0, "showMetadata")
	require.NoError(t, err)
	view, err := ws.SaveForm(ctx, citation.FormWeb)
	require.NoError(t, err)
	assert.Equal(t, citation.StatusSaved, view.Status)

	raw, err := kv.Get(ctx, "profile-1", citation.StorageKey(citation.FormWeb))
	require.NoError(t, err)
	assert.NotContains(t, raw, "showMetadata")

	_, err = ws.Generate(ctx, citation.FormWeb, "")
	require.NoError(t, err)
	payload := gen.payloads[0]
	assert.Equal(t, "Chicago", payload["citationStyle"])
	assert.Equal(t, "<p>Body</p>", payload["content"])
	assert.Contains(t, payload, "sources")
}

func TestGenerateRejectsConcurrentCalls(t *testing.T) {
	gen := &fakeGenerator{
		result:  successResult(),
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	ws, _ := newTestWorkspace(t, gen, Deps{})
	ctx := context.Background()
	_, err := ws.SetDocument(ctx, ptr("Essay"), ptr("<p>Body</p>"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := ws.Generate(ctx, citation.FormAuto, "")
		done <- err
	}()

	select {
	case <-gen.started:
	case <-time.After(2 * time.Second):
		t.Fatal("generator was not called")
	}
	assert.True(t, ws.Snapshot().Loading)

	gen.started = nil
	_, err = ws.Generate(ctx, citation.FormAuto, "")
	require.ErrorIs(t, err, ErrGenerationInProgress)

	close(gen.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, gen.Calls())
	assert.False(t, ws.Snapshot().Loading)
}

func TestGenerateFailureLeavesStateUntouched(t *testing.T) {
	gen := &fakeGenerator{err: &remote.Error{Service: "citation", Status: 503, Err: errors.New("unavailable")}}
	ws, _ := newTestWorkspace(t, gen, Deps{})
	ctx := context.Background()
	_, err := ws.SetDocument(ctx, ptr("Essay"), ptr("<p>Body</p>"))
	require.NoError(t, err)
	before := ws.Snapshot()

	_, err = ws.Generate(ctx, citation.FormAuto, "")
	var remoteErr *remote.Error
	require.ErrorAs(t, err, &remoteErr)

	after := ws.Snapshot()
	assert.Equal(t, before.Preview, after.Preview)
	assert.Equal(t, before.View, after.View)
	assert.Equal(t, before.Document, after.Document)
	assert.Nil(t, after.CredibilityScore)
	assert.False(t, after.Loading)
}

func TestEditJoinsPreviewIntoEditor(t *testing.T) {
	gen := &fakeGenerator{result: citation.Result{FormattedText: "<p>A</p>", References: "<p>B</p>"}}
	history := gitrepo.New(t.TempDir())
	ws, kv := newTestWorkspace(t, gen, Deps{History: history})
	ctx := context.Background()
	_, err := ws.SetDocument(ctx, ptr("Essay"), ptr("<p>Draft</p>"))
	require.NoError(t, err)
	_, err = ws.Generate(ctx, citation.FormAuto, "")
	require.NoError(t, err)

	snap, err := ws.Edit(ctx)
	require.NoError(t, err)
	assert.Equal(t, navigation.ViewEditor, snap.View)
	assert.Empty(t, snap.Preview.Content)
	assert.Equal(t, "<p>A</p><h2>References</h2><p>B</p>", snap.Document.Content)

	stored, err := kv.Get(ctx, "profile-1", store.KeyEditorContent)
	require.NoError(t, err)
	assert.Equal(t, snap.Document.Content, stored)

	commits, err := ws.History(0)
	require.NoError(t, err)
	require.NotEmpty(t, commits)

	var draftHash string
	for _, c := range commits {
		if strings.HasPrefix(c.Message, "Before editing") {
			draftHash = c.Hash
		}
	}
	require.NotEmpty(t, draftHash)

	restored, err := ws.Restore(ctx, draftHash)
	require.NoError(t, err)
	assert.Equal(t, "<p>Draft</p>", restored.Document.Content)
	assert.Equal(t, navigation.ViewEditor, restored.View)
}

func TestEditAcceptsPreviewBeyondCharacterLimit(t *testing.T) {
	body := "<p>" + strings.Repeat("a", 8) + "</p>"
	gen := &fakeGenerator{result: citation.Result{FormattedText: body, References: "<p>refs</p>"}}
	reg := NewRegistry(Deps{KV: store.NewMemoryStore(), Generator: gen}, Options{Limits: citation.DefaultLimits, CharacterLimit: 10})
	ws, err := reg.Get(context.Background(), "profile-1")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = ws.SetDocument(ctx, ptr("Essay"), ptr("<p>Draft</p>"))
	require.NoError(t, err)
	_, err = ws.Generate(ctx, citation.FormAuto, "")
	require.NoError(t, err)

	snap, err := ws.Edit(ctx)
	require.NoError(t, err)
	assert.Equal(t, navigation.ViewEditor, snap.View)
	assert.Empty(t, snap.Preview.Content)
	assert.Equal(t, body+markup.ReferencesHeading+"<p>refs</p>", snap.Document.Content)

	_, err = ws.SetDocument(ctx, nil, ptr(snap.Document.Content+"<p>more</p>"))
	require.ErrorIs(t, err, editor.ErrContentTooLong)
	assert.Equal(t, body+markup.ReferencesHeading+"<p>refs</p>", ws.Snapshot().Document.Content)
}

func TestApplyCommandsAndLimit(t *testing.T) {
	ws, _ := newTestWorkspace(t, &fakeGenerator{}, Deps{})
	ctx := context.Background()

	state, err := ws.Apply(ctx, Command{Name: "bold"})
	require.NoError(t, err)
	assert.True(t, state.Active["bold"])

	state, err = ws.Apply(ctx, Command{Name: "heading", Level: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, state.Heading)

	_, err = ws.Apply(ctx, Command{Name: "align", Align: "diagonal"})
	require.ErrorIs(t, err, ErrUnknownCommand)
	_, err = ws.Apply(ctx, Command{Name: "explode"})
	require.ErrorIs(t, err, ErrUnknownCommand)

	_, err = ws.SetDocument(ctx, nil, ptr("<p>one</p>"))
	require.NoError(t, err)
	_, err = ws.SetDocument(ctx, nil, ptr("<p>two</p>"))
	require.NoError(t, err)
	_, err = ws.Apply(ctx, Command{Name: "undo"})
	require.NoError(t, err)
	assert.Equal(t, "<p>one</p>", ws.Snapshot().Document.Content)
}

func TestSaveFormIndexesLibrary(t *testing.T) {
	lib := &fakeLibrary{}
	ws, _ := newTestWorkspace(t, &fakeGenerator{}, Deps{Library: lib})
	ctx := context.Background()

	src := citation.TextSource{
		BaseFields: citation.BaseFields{Authors: "Roe, A.", Title: "Notes", Type: "book", PublishedDate: "2020"},
		Content:    "pasted text",
	}
	_, err := ws.ReplaceForm(citation.FormFreeText, []citation.Source{src}, nil)
	require.NoError(t, err)
	_, err = ws.SaveForm(ctx, citation.FormFreeText)
	require.NoError(t, err)

	assert.Equal(t, "profile-1", lib.profile)
	assert.Equal(t, "source", lib.formType)
	require.Len(t, lib.records, 1)
	assert.Equal(t, "Notes", lib.records[0].Title)
}

func TestSaveFormValidationLeavesLibraryAlone(t *testing.T) {
	lib := &fakeLibrary{}
	ws, _ := newTestWorkspace(t, &fakeGenerator{}, Deps{Library: lib})

	_, err := ws.SaveForm(context.Background(), citation.FormWeb)
	var verr *citation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Nil(t, lib.records)
}

func TestFormCapAndSupplement(t *testing.T) {
	ws, _ := newTestWorkspace(t, &fakeGenerator{}, Deps{})
	for i := 0; i < 4; i++ {
		_, added, err := ws.AddSource(citation.FormWeb)
		require.NoError(t, err)
		assert.True(t, added)
	}
	view, added, err := ws.AddSource(citation.FormWeb)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, view.Entries, 5)

	view, err = ws.SetSupplementURLs(true)
	require.NoError(t, err)
	assert.Len(t, view.Entries, 3)
	assert.Equal(t, 3, view.MaxSources)

	_, err = ws.Form(citation.FormType("bogus"))
	require.ErrorIs(t, err, citation.ErrUnknownFormType)
}

func TestScoreSource(t *testing.T) {
	ws, _ := newTestWorkspace(t, &fakeGenerator{}, Deps{})
	_, err := ws.ScoreSource(context.Background(), citation.FormWeb, 0, false)
	require.ErrorIs(t, err, ErrScorerUnavailable)

	scorer := &fakeScorer{}
	ws, _ = newTestWorkspace(t, &fakeGenerator{}, Deps{Scorer: scorer})
	src := citation.WebSource{URL: "https://journals.example.org/a"}
	_, err = ws.UpdateSource(citation.FormWeb, 0, src)
	require.NoError(t, err)

	score, err := ws.ScoreSource(context.Background(), citation.FormWeb, 0, true)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, score.CredibilityScore, 1e-9)
	assert.Equal(t, "journals.example.org", scorer.req.Domain)

	_, err = ws.ScoreSource(context.Background(), citation.FormWeb, 3, false)
	require.ErrorIs(t, err, citation.ErrIndexOutOfRange)
}
