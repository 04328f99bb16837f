package navigation

import (
	"errors"
	"testing"

	"citeme/api/internal/document"
)

func TestToggleDoesNotTouchContent(t *testing.T) {
	preview := &document.Preview{}
	preview.Set("<p>A</p>", "<p>B</p>")
	c := NewCoordinator(preview)

	c.Toggle()
	if c.View() != ViewPreview {
		t.Fatalf("view = %s, want preview", c.View())
	}
	c.Toggle()
	if c.View() != ViewEditor {
		t.Fatalf("view = %s, want editor", c.View())
	}
	if preview.Empty() {
		t.Fatal("toggle must not clear the preview")
	}
}

func TestEditJoinsBodyAndReferences(t *testing.T) {
	preview := &document.Preview{}
	preview.Set("<p>A</p>", "<p>B</p>")
	c := NewCoordinator(preview)
	c.ToPreview()

	var got string
	if err := c.Edit(func(m string) error { got = m; return nil }); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if got != "<p>A</p><h2>References</h2><p>B</p>" {
		t.Errorf("editor content = %q", got)
	}
	if !preview.Empty() {
		t.Error("preview must be discarded after edit")
	}
	if c.View() != ViewEditor {
		t.Errorf("view = %s, want editor", c.View())
	}
}

func TestEditWithEmptyPreviewOnlySwitches(t *testing.T) {
	c := NewCoordinator(&document.Preview{})
	c.ToPreview()
	called := false
	if err := c.Edit(func(string) error { called = true; return nil }); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("empty preview must not overwrite the editor")
	}
	if c.View() != ViewEditor {
		t.Errorf("view = %s, want editor", c.View())
	}
}

func TestEditFailureKeepsPreview(t *testing.T) {
	preview := &document.Preview{}
	preview.Set("x", "y")
	c := NewCoordinator(preview)
	c.ToPreview()

	boom := errors.New("too long")
	if err := c.Edit(func(string) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Edit() error = %v", err)
	}
	if preview.Empty() || c.View() != ViewPreview {
		t.Error("failed edit must leave preview and view unchanged")
	}
}

func TestSubscribersSeeTransitions(t *testing.T) {
	c := NewCoordinator(&document.Preview{})
	var seen []View
	c.Subscribe(func(_, to View) { seen = append(seen, to) })
	c.ToPreview()
	c.ToEditor()
	if len(seen) != 2 || seen[0] != ViewPreview || seen[1] != ViewEditor {
		t.Errorf("seen = %v", seen)
	}
}
