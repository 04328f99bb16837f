// Package document holds the editable document state and the generated
// preview that replaces it while citations are reviewed.
package document

import (
	"context"
	"errors"

	"citeme/api/internal/markup"
	"citeme/api/internal/store"
)

// State is a read-only snapshot of the document.
type State struct {
	Title     string `json:"title"`
	Content   string `json:"editorContent"`
	WordCount int    `json:"wordCount"`
	CharCount int    `json:"charCount"`
}

// Observer is called synchronously after every mutation.
type Observer func(State)

// Model owns the editable document. Counts are derived on write so that a
// read after SetContent always sees counts for the latest content.
type Model struct {
	profile   string
	kv        store.KV
	title     string
	content   string
	counts    markup.Counts
	observers []Observer
}

func NewModel(profile string, kv store.KV) *Model {
	return &Model{profile: profile, kv: kv}
}

// Load hydrates the model from durable storage. Missing entries leave the
// model empty.
func (m *Model) Load(ctx context.Context) error {
	content, err := m.kv.Get(ctx, m.profile, store.KeyEditorContent)
	switch {
	case err == nil:
		m.content = content
		m.counts = markup.Count(content)
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	title, err := m.kv.Get(ctx, m.profile, store.KeyDocumentTitle)
	switch {
	case err == nil:
		m.title = title
	case !errors.Is(err, store.ErrNotFound):
		return err
	}
	m.notify()
	return nil
}

func (m *Model) State() State {
	return State{
		Title:     m.title,
		Content:   m.content,
		WordCount: m.counts.Words,
		CharCount: m.counts.Chars,
	}
}

func (m *Model) Title() string   { return m.title }
func (m *Model) Content() string { return m.content }

// SetContent replaces the content and recomputes counts. Empty content
// removes the durable entry. A storage failure is returned but the in-memory
// state keeps the new content.
func (m *Model) SetContent(ctx context.Context, content string) error {
	m.content = content
	m.counts = markup.Count(content)
	m.notify()

	if content == "" {
		return m.kv.Delete(ctx, m.profile, store.KeyEditorContent)
	}
	return m.kv.Set(ctx, m.profile, store.KeyEditorContent, content)
}

// Clear empties the document and resets both counts.
func (m *Model) Clear(ctx context.Context) error {
	return m.SetContent(ctx, "")
}

func (m *Model) SetTitle(ctx context.Context, title string) error {
	m.title = title
	m.notify()

	if title == "" {
		return m.kv.Delete(ctx, m.profile, store.KeyDocumentTitle)
	}
	return m.kv.Set(ctx, m.profile, store.KeyDocumentTitle, title)
}

// Subscribe registers an observer and returns a function that removes it.
func (m *Model) Subscribe(fn Observer) func() {
	m.observers = append(m.observers, fn)
	idx := len(m.observers) - 1
	return func() {
		if idx < len(m.observers) {
			m.observers[idx] = nil
		}
	}
}

func (m *Model) notify() {
	state := m.State()
	for _, fn := range m.observers {
		if fn != nil {
			fn(state)
		}
	}
}
