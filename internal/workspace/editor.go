package workspace

import (
	"context"
	"fmt"

	"citeme/api/internal/editor"
	"citeme/api/internal/markup"
)

// Command is one toolbar action.
type Command struct {
	Name  string `json:"command"`
	Level int    `json:"level,omitempty"`
	Align string `json:"align,omitempty"`
}

func (w *Workspace) Toolbar() editor.ToolbarState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.toolbarLocked()
}

func (w *Workspace) toolbarLocked() editor.ToolbarState {
	return w.surface.State(markup.TextLength(w.buffer.Content()))
}

// Apply runs a toolbar command and syncs any content change into the
// document.
func (w *Workspace) Apply(ctx context.Context, cmd Command) (editor.ToolbarState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch cmd.Name {
	case "bold":
		w.surface.ToggleBold()
	case "italic":
		w.surface.ToggleItalic()
	case "underline":
		w.surface.ToggleUnderline()
	case "strike":
		w.surface.ToggleStrike()
	case "heading":
		w.surface.SetHeading(cmd.Level)
	case "paragraph":
		w.surface.SetHeading(editor.Paragraph)
	case "align":
		align, ok := editor.ParseAlign(cmd.Align)
		if !ok {
			return w.toolbarLocked(), fmt.Errorf("%w: align %q", ErrUnknownCommand, cmd.Align)
		}
		w.surface.SetAlign(align)
	case "undo":
		w.surface.Undo()
	case "redo":
		w.surface.Redo()
	case "focus":
		w.surface.Focus()
	default:
		return w.toolbarLocked(), fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}

	if err := w.syncDocumentLocked(ctx); err != nil {
		return w.toolbarLocked(), err
	}
	return w.toolbarLocked(), nil
}
