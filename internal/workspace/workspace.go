// Package workspace binds one profile's document, editor, citation forms and
// preview together and runs the citation request against them.
package workspace

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"citeme/api/internal/citation"
	"citeme/api/internal/document"
	"citeme/api/internal/editor"
	"citeme/api/internal/gitrepo"
	"citeme/api/internal/logging"
	"citeme/api/internal/markup"
	"citeme/api/internal/navigation"
	"citeme/api/internal/remote"
	"citeme/api/internal/search"
	"citeme/api/internal/store"
)

// Generator produces citations for a request payload.
type Generator interface {
	Generate(ctx context.Context, payload citation.Payload) (citation.Result, error)
}

// Scorer rates the credibility of a single source.
type Scorer interface {
	Compute(ctx context.Context, req remote.CredibilityRequest, detail bool) (remote.CredibilityScore, error)
}

// Library indexes saved sources.
type Library interface {
	IndexSources(ctx context.Context, profile, formType string, records []search.SourceRecord) error
}

// History snapshots the document.
type History interface {
	Commit(profile string, content gitrepo.Content, message string) (gitrepo.CommitInfo, bool, error)
	History(profile string, limit int) ([]gitrepo.CommitInfo, error)
	GetContentByHash(profile, hash string) (gitrepo.Content, error)
}

// Deps are the collaborators shared by every workspace. Only KV and
// Generator are required.
type Deps struct {
	KV        store.KV
	Generator Generator
	Scorer    Scorer
	Library   Library
	History   History
}

type Options struct {
	Limits            citation.Limits
	CharacterLimit    int
	GenerationTimeout time.Duration
}

var formTypes = []citation.FormType{citation.FormWeb, citation.FormFreeText, citation.FormAuto}

// Workspace is the state of one profile. Its mutex serializes every
// operation; Generate releases it while the generator runs.
type Workspace struct {
	mu      sync.Mutex
	profile string
	deps    Deps
	opts    Options

	doc     *document.Model
	buffer  *editor.Buffer
	surface *editor.Surface
	forms   map[citation.FormType]*citation.Form
	preview *document.Preview
	nav     *navigation.Coordinator

	result  *citation.Result
	summary citation.Summary
	loading bool
}

// PreviewView is the preview as the API presents it.
type PreviewView struct {
	Title   string   `json:"title"`
	Content []string `json:"content"`
}

// Snapshot is the full workspace state.
type Snapshot struct {
	Profile          string                  `json:"profile"`
	Document         document.State          `json:"document"`
	View             navigation.View         `json:"view"`
	Preview          PreviewView             `json:"preview"`
	Toolbar          editor.ToolbarState     `json:"toolbar"`
	Loading          bool                    `json:"loading"`
	CredibilityScore *float64                `json:"credibilityScore"`
	Sources          []citation.ScoredSource `json:"sources"`
	Summary          citation.Summary        `json:"summary"`
}

func newWorkspace(profile string, deps Deps, opts Options) *Workspace {
	w := &Workspace{
		profile: profile,
		deps:    deps,
		opts:    opts,
		doc:     document.NewModel(profile, deps.KV),
		buffer:  editor.NewBuffer(opts.CharacterLimit),
		surface: editor.NewSurface(opts.CharacterLimit),
		forms:   make(map[citation.FormType]*citation.Form, len(formTypes)),
		preview: &document.Preview{},
		summary: citation.Summarize(0, nil),
	}
	w.nav = navigation.NewCoordinator(w.preview)
	w.surface.Attach(w.buffer)
	w.nav.Subscribe(func(from, to navigation.View) {
		logging.Debug("workspace: view changed", "profile", profile, "from", from, "to", to)
	})
	return w
}

// hydrate loads the document and every stored form.
func (w *Workspace) hydrate(ctx context.Context) error {
	if err := w.doc.Load(ctx); err != nil {
		return err
	}
	w.buffer.Load(w.doc.Content())
	for _, kind := range formTypes {
		form, err := citation.LoadForm(ctx, w.deps.KV, w.profile, kind, w.opts.Limits)
		if err != nil {
			logging.Warn("workspace: stored form unreadable, starting fresh", "profile", w.profile, "form", kind, "err", err)
			form = citation.NewForm(kind, w.opts.Limits)
		}
		w.forms[kind] = form
	}
	return nil
}

func (w *Workspace) Profile() string { return w.profile }

func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workspace) snapshotLocked() Snapshot {
	snap := Snapshot{
		Profile:  w.profile,
		Document: w.doc.State(),
		View:     w.nav.View(),
		Preview:  PreviewView{Title: w.doc.Title(), Content: w.preview.Content()},
		Toolbar:  w.toolbarLocked(),
		Loading:  w.loading,
		Sources:  []citation.ScoredSource{},
		Summary:  w.summary,
	}
	if w.result != nil {
		score := w.result.OverallScore
		snap.CredibilityScore = &score
		snap.Sources = append(snap.Sources, w.result.Sources...)
	}
	return snap
}

// SetDocument updates the title and/or the content. Content goes through the
// editor first so the character limit applies.
func (w *Workspace) SetDocument(ctx context.Context, title, content *string) (document.State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if content != nil {
		if err := w.surface.ReplaceContent(*content); err != nil {
			return w.doc.State(), err
		}
		if err := w.syncDocumentLocked(ctx); err != nil {
			return w.doc.State(), err
		}
	}
	if title != nil {
		if err := w.doc.SetTitle(ctx, strings.TrimSpace(*title)); err != nil {
			return w.doc.State(), err
		}
	}
	return w.doc.State(), nil
}

func (w *Workspace) ClearContent(ctx context.Context) (document.State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.surface.ReplaceContent(""); err != nil {
		return w.doc.State(), err
	}
	if err := w.doc.Clear(ctx); err != nil {
		return w.doc.State(), err
	}
	return w.doc.State(), nil
}

// syncDocumentLocked copies the editor content into the document model when
// they differ.
func (w *Workspace) syncDocumentLocked(ctx context.Context) error {
	content := w.buffer.Content()
	if content == w.doc.Content() {
		return nil
	}
	return w.doc.SetContent(ctx, content)
}

func (w *Workspace) Generate(ctx context.Context, kind citation.FormType, style string) (Snapshot, error) {
	w.mu.Lock()
	if w.loading {
		w.mu.Unlock()
		return Snapshot{}, ErrGenerationInProgress
	}
	payload, err := w.buildPayloadLocked(ctx, kind, style)
	if err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}
	w.loading = true
	generator := w.deps.Generator
	w.mu.Unlock()

	timeout := w.opts.GenerationTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	result, genErr := generator.Generate(callCtx, payload)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.loading = false
	if genErr != nil {
		logging.Warn("workspace: citation generation failed", "profile", w.profile, "form", kind, "err", genErr)
		return Snapshot{}, genErr
	}

	w.preview.Set(result.FormattedText, result.References)
	w.result = &result
	w.summary = citation.Summarize(result.OverallScore, result.Sources)
	w.nav.ToPreview()
	w.recordLocked("Generate citations", gitrepo.Content{
		Title:   w.doc.Title(),
		Content: markup.JoinReferences(result.FormattedText, result.References),
	})
	return w.snapshotLocked(), nil
}

// buildPayloadLocked runs the fail-fast checks. Nothing is sent and loading is
// untouched when any of them fails.
func (w *Workspace) buildPayloadLocked(ctx context.Context, kind citation.FormType, style string) (citation.Payload, error) {
	if strings.TrimSpace(w.doc.Title()) == "" {
		return nil, ErrTitleRequired
	}
	if kind != citation.FormAuto && markup.IsBlank(w.doc.Content()) {
		return nil, ErrContentRequired
	}

	var stored []byte
	if kind != citation.FormAuto {
		raw, err := w.deps.KV.Get(ctx, w.profile, citation.StorageKey(kind))
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrFormNotSaved
		}
		if err != nil {
			return nil, err
		}
		stored = []byte(raw)
	}
	if kind == citation.FormAuto && strings.TrimSpace(style) == "" {
		if form, ok := w.forms[kind]; ok {
			style = form.CitationStyle()
		}
	}
	return citation.BuildPayload(kind, stored, w.doc.Title(), w.doc.Content(), style)
}

// Summary returns the credibility summary of the last generation.
func (w *Workspace) Summary() citation.Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summary
}

func (w *Workspace) ToPreview() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.ToPreview()
	return w.snapshotLocked()
}

func (w *Workspace) ToEditor() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.ToEditor()
	return w.snapshotLocked()
}

func (w *Workspace) Toggle() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.Toggle()
	return w.snapshotLocked()
}

// Edit turns the preview back into editor content. The previous editor
// content is snapshotted first. A storage failure does not stop the
// transition; it is returned after the view has switched.
func (w *Workspace) Edit(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.nav.Joined(); ok {
		w.recordLocked("Before editing generated citations", gitrepo.Content{Title: w.doc.Title(), Content: w.doc.Content()})
	}

	var storageErr error
	err := w.nav.Edit(func(joined string) error {
		w.surface.OverwriteContent(joined)
		storageErr = w.syncDocumentLocked(ctx)
		return nil
	})
	if err != nil {
		return w.snapshotLocked(), err
	}
	return w.snapshotLocked(), storageErr
}

// ExportParts returns what an export renders: the preview when there is one,
// otherwise the editor content.
func (w *Workspace) ExportParts() (title, body, references string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.preview.Empty() {
		body, references = w.preview.Parts()
		return w.doc.Title(), body, references
	}
	return w.doc.Title(), w.doc.Content(), ""
}

func (w *Workspace) History(limit int) ([]gitrepo.CommitInfo, error) {
	if w.deps.History == nil {
		return nil, ErrHistoryUnavailable
	}
	return w.deps.History.History(w.profile, limit)
}

// Restore loads a snapshot back into the document and shows the editor.
func (w *Workspace) Restore(ctx context.Context, hash string) (Snapshot, error) {
	if w.deps.History == nil {
		return Snapshot{}, ErrHistoryUnavailable
	}
	content, err := w.deps.History.GetContentByHash(w.profile, hash)
	if err != nil {
		return Snapshot{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.surface.OverwriteContent(content.Content)
	if err := w.syncDocumentLocked(ctx); err != nil {
		return w.snapshotLocked(), err
	}
	if err := w.doc.SetTitle(ctx, content.Title); err != nil {
		return w.snapshotLocked(), err
	}
	w.nav.ToEditor()
	return w.snapshotLocked(), nil
}

// recordLocked commits a history snapshot. Failures are logged only.
func (w *Workspace) recordLocked(message string, content gitrepo.Content) {
	if w.deps.History == nil {
		return
	}
	if _, _, err := w.deps.History.Commit(w.profile, content, message); err != nil {
		logging.Warn("workspace: history snapshot failed", "profile", w.profile, "err", err)
	}
}

// WriteCSL writes the sources of a form as CSL-YAML.
func (w *Workspace) WriteCSL(kind citation.FormType, out io.Writer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	form, err := w.formLocked(kind)
	if err != nil {
		return err
	}
	return citation.WriteCSL(form, out)
}
