package editor

import "citeme/api/internal/markup"

const defaultHistoryDepth = 100

type format struct {
	marks   map[Mark]bool
	heading int
	align   Align
}

func (f format) clone() format {
	marks := make(map[Mark]bool, len(f.marks))
	for k, v := range f.marks {
		marks[k] = v
	}
	return format{marks: marks, heading: f.heading, align: f.align}
}

type snapshot struct {
	content string
	format  format
}

// Buffer is an in-process Capability. It keeps the document markup, the
// formatting state at the cursor and a bounded undo history of both.
type Buffer struct {
	content   string
	format    format
	limit     int
	depth     int
	undo      []snapshot
	redo      []snapshot
	listeners []func(string)
	focused   bool
}

func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultCharacterLimit
	}
	return &Buffer{
		limit:  limit,
		depth:  defaultHistoryDepth,
		format: format{marks: map[Mark]bool{}, align: AlignLeft},
	}
}

func (b *Buffer) Content() string { return b.content }
func (b *Buffer) Focused() bool   { return b.focused }

// SetContent replaces the document. Content whose tag-free length exceeds the
// limit is rejected and leaves the buffer unchanged.
func (b *Buffer) SetContent(content string) error {
	if markup.TextLength(content) > b.limit {
		return ErrContentTooLong
	}
	if content == b.content {
		return nil
	}
	b.record()
	b.content = content
	b.emit()
	return nil
}

// Overwrite replaces the document like SetContent but ignores the limit.
func (b *Buffer) Overwrite(content string) {
	if content == b.content {
		return
	}
	b.record()
	b.content = content
	b.emit()
}

// Load sets content without recording history, used when hydrating.
func (b *Buffer) Load(content string) {
	b.content = content
	b.undo = nil
	b.redo = nil
}

func (b *Buffer) Focus() { b.focused = true }

func (b *Buffer) ToggleMark(mark Mark) {
	b.record()
	b.format.marks[mark] = !b.format.marks[mark]
}

func (b *Buffer) SetHeading(level int) {
	if b.format.heading == level {
		return
	}
	b.record()
	b.format.heading = level
}

func (b *Buffer) SetAlign(align Align) {
	if b.format.align == align {
		return
	}
	b.record()
	b.format.align = align
}

func (b *Buffer) Undo() bool {
	if len(b.undo) == 0 {
		return false
	}
	prev := b.undo[len(b.undo)-1]
	b.undo = b.undo[:len(b.undo)-1]
	b.redo = append(b.redo, b.current())
	b.restore(prev)
	return true
}

func (b *Buffer) Redo() bool {
	if len(b.redo) == 0 {
		return false
	}
	next := b.redo[len(b.redo)-1]
	b.redo = b.redo[:len(b.redo)-1]
	b.undo = append(b.undo, b.current())
	b.restore(next)
	return true
}

func (b *Buffer) IsActive(mark Mark) bool { return b.format.marks[mark] }
func (b *Buffer) HeadingLevel() int       { return b.format.heading }
func (b *Buffer) Alignment() Align        { return b.format.align }
func (b *Buffer) CanUndo() bool           { return len(b.undo) > 0 }
func (b *Buffer) CanRedo() bool           { return len(b.redo) > 0 }

func (b *Buffer) OnChange(fn func(string)) {
	b.listeners = append(b.listeners, fn)
}

func (b *Buffer) current() snapshot {
	return snapshot{content: b.content, format: b.format.clone()}
}

// record pushes the current state and drops any redo branch.
func (b *Buffer) record() {
	b.undo = append(b.undo, b.current())
	if len(b.undo) > b.depth {
		b.undo = b.undo[len(b.undo)-b.depth:]
	}
	b.redo = nil
}

func (b *Buffer) restore(s snapshot) {
	changed := s.content != b.content
	b.content = s.content
	b.format = s.format
	if changed {
		b.emit()
	}
}

func (b *Buffer) emit() {
	for _, fn := range b.listeners {
		fn(b.content)
	}
}
