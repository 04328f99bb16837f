// Package navigation switches a workspace between the editor and the
// generated preview.
package navigation

import (
	"fmt"

	"citeme/api/internal/document"
	"citeme/api/internal/markup"
)

type View string

const (
	ViewEditor  View = "editor"
	ViewPreview View = "preview"
)

// Listener is called after every view change.
type Listener func(from, to View)

// Coordinator owns the current view and the preview it shows.
type Coordinator struct {
	view      View
	preview   *document.Preview
	listeners []Listener
}

func NewCoordinator(preview *document.Preview) *Coordinator {
	return &Coordinator{view: ViewEditor, preview: preview}
}

func (c *Coordinator) View() View { return c.view }

// ToPreview shows the preview as it is. An empty preview renders empty.
func (c *Coordinator) ToPreview() { c.switchTo(ViewPreview) }

func (c *Coordinator) ToEditor() { c.switchTo(ViewEditor) }

func (c *Coordinator) Toggle() {
	if c.view == ViewEditor {
		c.switchTo(ViewPreview)
		return
	}
	c.switchTo(ViewEditor)
}

// Joined returns the editor content the preview turns into on Edit.
func (c *Coordinator) Joined() (string, bool) {
	if c.preview.Empty() {
		return "", false
	}
	body, refs := c.preview.Parts()
	return markup.JoinReferences(body, refs), true
}

// Edit writes body and references back into the editor through setContent,
// discards the preview and shows the editor. With an empty preview it only
// switches views. When setContent fails nothing changes.
func (c *Coordinator) Edit(setContent func(markup string) error) error {
	if joined, ok := c.Joined(); ok {
		if err := setContent(joined); err != nil {
			return fmt.Errorf("edit preview: %w", err)
		}
		c.preview.Reset()
	}
	c.switchTo(ViewEditor)
	return nil
}

func (c *Coordinator) Subscribe(fn Listener) {
	c.listeners = append(c.listeners, fn)
}

func (c *Coordinator) switchTo(view View) {
	from := c.view
	c.view = view
	for _, fn := range c.listeners {
		fn(from, view)
	}
}
