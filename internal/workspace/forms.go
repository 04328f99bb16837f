package workspace

import (
	"context"
	"fmt"

	"citeme/api/internal/citation"
	"citeme/api/internal/logging"
	"citeme/api/internal/remote"
	"citeme/api/internal/search"
)

func (w *Workspace) formLocked(kind citation.FormType) (*citation.Form, error) {
	form, ok := w.forms[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", citation.ErrUnknownFormType, kind)
	}
	return form, nil
}

func (w *Workspace) Form(kind citation.FormType) (citation.View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	form, err := w.formLocked(kind)
	if err != nil {
		return citation.View{}, err
	}
	return form.View(), nil
}

// withForm runs fn against the form under the workspace lock and returns the
// resulting view.
func (w *Workspace) withForm(kind citation.FormType, fn func(*citation.Form) error) (citation.View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	form, err := w.formLocked(kind)
	if err != nil {
		return citation.View{}, err
	}
	if err := fn(form); err != nil {
		return form.View(), err
	}
	return form.View(), nil
}

// ReplaceForm sets the sources and, when style is non-nil, the citation style.
func (w *Workspace) ReplaceForm(kind citation.FormType, sources []citation.Source, style *string) (citation.View, error) {
	return w.withForm(kind, func(f *citation.Form) error {
		if sources != nil {
			if err := f.SetSources(sources); err != nil {
				return err
			}
		}
		if style != nil {
			f.SetCitationStyle(*style)
		}
		return nil
	})
}

// AddSource reports false when the form was already at its cap.
func (w *Workspace) AddSource(kind citation.FormType) (citation.View, bool, error) {
	var added bool
	view, err := w.withForm(kind, func(f *citation.Form) error {
		added = f.AddSource()
		return nil
	})
	return view, added, err
}

// RemoveSource reports false when nothing was removed.
func (w *Workspace) RemoveSource(kind citation.FormType, index int) (citation.View, bool, error) {
	var removed bool
	view, err := w.withForm(kind, func(f *citation.Form) error {
		removed = f.RemoveSource(index)
		return nil
	})
	return view, removed, err
}

func (w *Workspace) UpdateSource(kind citation.FormType, index int, src citation.Source) (citation.View, error) {
	return w.withForm(kind, func(f *citation.Form) error {
		return f.UpdateSource(index, src)
	})
}

func (w *Workspace) TogglePresentation(kind citation.FormType, index int, field string) (citation.View, error) {
	return w.withForm(kind, func(f *citation.Form) error {
		return f.TogglePresentation(index, field)
	})
}

func (w *Workspace) SetSupplementURLs(on bool) (citation.View, error) {
	return w.withForm(citation.FormWeb, func(f *citation.Form) error {
		return f.SetSupplementURLs(on)
	})
}

// SaveForm validates and persists the form, then indexes its sources into
// the library. Indexing failures are logged only.
func (w *Workspace) SaveForm(ctx context.Context, kind citation.FormType) (citation.View, error) {
	var records []search.SourceRecord
	view, err := w.withForm(kind, func(f *citation.Form) error {
		if err := f.Save(ctx, w.deps.KV, w.profile, citation.StorageKey(kind)); err != nil {
			return err
		}
		records = libraryRecords(f)
		return nil
	})
	if err != nil {
		return view, err
	}
	if w.deps.Library != nil && kind != citation.FormAuto {
		if err := w.deps.Library.IndexSources(ctx, w.profile, string(kind), records); err != nil {
			logging.Warn("workspace: library indexing failed", "profile", w.profile, "form", kind, "err", err)
		}
	}
	return view, nil
}

func libraryRecords(f *citation.Form) []search.SourceRecord {
	sources := f.Sources()
	records := make([]search.SourceRecord, 0, len(sources))
	for _, src := range sources {
		base := src.Base()
		records = append(records, search.SourceRecord{
			Title:         base.Title,
			Authors:       base.Authors,
			URL:           citation.SourceURL(src),
			SourceType:    base.Type,
			PublishedDate: base.PublishedDate,
		})
	}
	return records
}

// ScoreSource asks the credibility service about one source of a form. The
// workspace lock is not held during the call.
func (w *Workspace) ScoreSource(ctx context.Context, kind citation.FormType, index int, detail bool) (remote.CredibilityScore, error) {
	if w.deps.Scorer == nil {
		return remote.CredibilityScore{}, ErrScorerUnavailable
	}
	w.mu.Lock()
	form, err := w.formLocked(kind)
	if err != nil {
		w.mu.Unlock()
		return remote.CredibilityScore{}, err
	}
	sources := form.Sources()
	w.mu.Unlock()

	if index < 0 || index >= len(sources) {
		return remote.CredibilityScore{}, citation.ErrIndexOutOfRange
	}
	return w.deps.Scorer.Compute(ctx, remote.RequestFor(sources[index]), detail)
}
