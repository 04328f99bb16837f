package document

import "errors"

// ErrPreviewShape is returned when preview content is not exactly a body and
// a references part.
var ErrPreviewShape = errors.New("preview content must have a body and references")

// Preview is the generated two-part view. Content is empty or holds exactly
// [body, references].
type Preview struct {
	content []string
}

func (p *Preview) Set(body, references string) {
	p.content = []string{body, references}
}

// SetContent accepts the wire form of the preview.
func (p *Preview) SetContent(content []string) error {
	switch len(content) {
	case 0:
		p.content = nil
		return nil
	case 2:
		p.Set(content[0], content[1])
		return nil
	default:
		return ErrPreviewShape
	}
}

func (p *Preview) Empty() bool {
	return len(p.content) == 0
}

// Parts returns body and references; both are empty for an empty preview.
func (p *Preview) Parts() (body, references string) {
	if p.Empty() {
		return "", ""
	}
	return p.content[0], p.content[1]
}

// Content returns a copy of the preview content.
func (p *Preview) Content() []string {
	out := make([]string, len(p.content))
	copy(out, p.content)
	return out
}

func (p *Preview) Reset() {
	p.content = nil
}
