// Package editor is the rich-text command surface. It forwards toolbar
// commands to an attached editing capability and answers the active-state
// queries the toolbar binds to.
package editor

import "errors"

// DefaultCharacterLimit caps the tag-free content length.
const DefaultCharacterLimit = 12000

// ErrContentTooLong is returned by a capability that rejects content over
// its character limit.
var ErrContentTooLong = errors.New("content exceeds character limit")

// Mark is an inline formatting kind.
type Mark string

const (
	MarkBold      Mark = "bold"
	MarkItalic    Mark = "italic"
	MarkUnderline Mark = "underline"
	MarkStrike    Mark = "strike"
)

// Align is a block alignment.
type Align string

const (
	AlignLeft    Align = "left"
	AlignCenter  Align = "center"
	AlignRight   Align = "right"
	AlignJustify Align = "justify"
)

// Paragraph is the heading level that means "no heading".
const Paragraph = 0

func ParseMark(value string) (Mark, bool) {
	switch Mark(value) {
	case MarkBold, MarkItalic, MarkUnderline, MarkStrike:
		return Mark(value), true
	default:
		return "", false
	}
}

func ParseAlign(value string) (Align, bool) {
	switch Align(value) {
	case AlignLeft, AlignCenter, AlignRight, AlignJustify:
		return Align(value), true
	default:
		return "", false
	}
}

// Capability is the editing engine the surface drives.
type Capability interface {
	Content() string
	SetContent(markup string) error
	Overwrite(markup string)
	Focus()
	ToggleMark(mark Mark)
	SetHeading(level int)
	SetAlign(align Align)
	Undo() bool
	Redo() bool
	IsActive(mark Mark) bool
	HeadingLevel() int
	Alignment() Align
	CanUndo() bool
	CanRedo() bool
	OnChange(fn func(markup string))
}

// ToolbarState is what the toolbar renders.
type ToolbarState struct {
	Attached bool          `json:"attached"`
	Active   map[Mark]bool `json:"active"`
	Heading  int           `json:"heading"`
	Align    Align         `json:"align"`
	CanUndo  bool          `json:"canUndo"`
	CanRedo  bool          `json:"canRedo"`
	Limit    int           `json:"characterLimit"`
	Length   int           `json:"characterCount"`
}

// Surface guards every command behind an attached capability.
type Surface struct {
	cap   Capability
	limit int
}

func NewSurface(limit int) *Surface {
	if limit <= 0 {
		limit = DefaultCharacterLimit
	}
	return &Surface{limit: limit}
}

func (s *Surface) Attach(c Capability) { s.cap = c }
func (s *Surface) Detach()             { s.cap = nil }
func (s *Surface) Attached() bool      { return s.cap != nil }
func (s *Surface) Limit() int          { return s.limit }

func (s *Surface) ToggleBold()      { s.toggle(MarkBold) }
func (s *Surface) ToggleItalic()    { s.toggle(MarkItalic) }
func (s *Surface) ToggleUnderline() { s.toggle(MarkUnderline) }
func (s *Surface) ToggleStrike()    { s.toggle(MarkStrike) }

func (s *Surface) toggle(mark Mark) {
	if s.cap == nil {
		return
	}
	s.cap.ToggleMark(mark)
}

// SetHeading applies a heading level 1-6, or Paragraph.
func (s *Surface) SetHeading(level int) {
	if s.cap == nil || level < Paragraph || level > 6 {
		return
	}
	s.cap.SetHeading(level)
}

func (s *Surface) SetAlign(align Align) {
	if s.cap == nil {
		return
	}
	s.cap.SetAlign(align)
}

func (s *Surface) Undo() {
	if s.cap == nil {
		return
	}
	s.cap.Undo()
}

func (s *Surface) Redo() {
	if s.cap == nil {
		return
	}
	s.cap.Redo()
}

func (s *Surface) Focus() {
	if s.cap == nil {
		return
	}
	s.cap.Focus()
}

// ReplaceContent pushes content into the capability. Without a capability
// the content is accepted as-is.
func (s *Surface) ReplaceContent(markup string) error {
	if s.cap == nil {
		return nil
	}
	return s.cap.SetContent(markup)
}

// OverwriteContent replaces the content without the length check. Later
// edits are checked against the limit as usual.
func (s *Surface) OverwriteContent(markup string) {
	if s.cap == nil {
		return
	}
	s.cap.Overwrite(markup)
}

func (s *Surface) IsActive(mark Mark) bool {
	return s.cap != nil && s.cap.IsActive(mark)
}

func (s *Surface) IsHeading(level int) bool {
	return s.cap != nil && s.cap.HeadingLevel() == level
}

func (s *Surface) IsAligned(align Align) bool {
	return s.cap != nil && s.cap.Alignment() == align
}

func (s *Surface) CanUndo() bool { return s.cap != nil && s.cap.CanUndo() }
func (s *Surface) CanRedo() bool { return s.cap != nil && s.cap.CanRedo() }

func (s *Surface) State(length int) ToolbarState {
	state := ToolbarState{
		Attached: s.cap != nil,
		Active:   map[Mark]bool{},
		Align:    AlignLeft,
		Limit:    s.limit,
		Length:   length,
	}
	for _, mark := range []Mark{MarkBold, MarkItalic, MarkUnderline, MarkStrike} {
		state.Active[mark] = s.IsActive(mark)
	}
	if s.cap == nil {
		return state
	}
	state.Heading = s.cap.HeadingLevel()
	state.Align = s.cap.Alignment()
	state.CanUndo = s.cap.CanUndo()
	state.CanRedo = s.cap.CanRedo()
	return state
}
