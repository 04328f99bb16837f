package citation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"citeme/api/internal/store"
)

// DefaultCitationStyle is used when neither the form nor the request names one.
const DefaultCitationStyle = "APA"

// Status tracks a form through empty -> editing -> valid -> saved.
type Status string

const (
	StatusEmpty   Status = "empty"
	StatusEditing Status = "editing"
	StatusValid   Status = "valid"
	StatusSaved   Status = "saved"
)

// Limits caps the number of sources per variant.
type Limits struct {
	Web        int
	FreeText   int
	Supplement int
}

var DefaultLimits = Limits{Web: 5, FreeText: 7, Supplement: 3}

func (l Limits) normalized() Limits {
	if l.Web <= 0 {
		l.Web = DefaultLimits.Web
	}
	if l.FreeText <= 0 {
		l.FreeText = DefaultLimits.FreeText
	}
	if l.Supplement <= 0 {
		l.Supplement = DefaultLimits.Supplement
	}
	if l.Supplement > l.Web {
		l.Supplement = l.Web
	}
	return l
}

// Form is one citation form instance. Its variant is fixed at creation.
type Form struct {
	kind       FormType
	entries    []Entry
	style      string
	supplement bool
	limits     Limits
	status     Status
}

// NewForm creates a form holding a single default source (none for auto).
func NewForm(kind FormType, limits Limits) *Form {
	f := &Form{
		kind:   kind,
		style:  DefaultCitationStyle,
		limits: limits.normalized(),
		status: StatusEmpty,
	}
	if src := NewSource(kind); src != nil {
		f.entries = []Entry{{Source: src}}
	}
	if kind == FormAuto {
		f.status = StatusValid
	}
	return f
}

func (f *Form) Kind() FormType        { return f.kind }
func (f *Form) Status() Status        { return f.status }
func (f *Form) CitationStyle() string { return f.style }
func (f *Form) SupplementURLs() bool  { return f.supplement }
func (f *Form) Len() int              { return len(f.entries) }

// Sources returns the records in order.
func (f *Form) Sources() []Source {
	out := make([]Source, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Source
	}
	return out
}

func (f *Form) Entries() []Entry {
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// MaxSources is the current cap, reduced for web forms while supplement URLs
// is on.
func (f *Form) MaxSources() int {
	switch f.kind {
	case FormWeb:
		if f.supplement {
			return f.limits.Supplement
		}
		return f.limits.Web
	case FormFreeText:
		return f.limits.FreeText
	case FormAuto:
		return 0
	}
	return 0
}

// AddSource appends a default record. It reports false when the form is
// already at its cap.
func (f *Form) AddSource() bool {
	if len(f.entries) >= f.MaxSources() {
		return false
	}
	f.entries = append(f.entries, Entry{Source: NewSource(f.kind)})
	f.touch()
	return true
}

// RemoveSource removes the entry at index. The last remaining source is never
// removed.
func (f *Form) RemoveSource(index int) bool {
	if len(f.entries) <= 1 || index < 0 || index >= len(f.entries) {
		return false
	}
	f.entries = append(f.entries[:index], f.entries[index+1:]...)
	f.touch()
	return true
}

// UpdateSource replaces the record at index, keeping its presentation state.
func (f *Form) UpdateSource(index int, src Source) error {
	if index < 0 || index >= len(f.entries) {
		return ErrIndexOutOfRange
	}
	if src == nil || src.Kind() != f.kind {
		return ErrVariantMismatch
	}
	f.entries[index].Source = src
	f.touch()
	return nil
}

// SetSources replaces every record. Presentation state is kept for indexes
// that survive.
func (f *Form) SetSources(sources []Source) error {
	if f.kind == FormAuto {
		if len(sources) > 0 {
			return ErrNoSourcesForAuto
		}
		return nil
	}
	if len(sources) == 0 {
		return ErrNoSources
	}
	if len(sources) > f.MaxSources() {
		return fmt.Errorf("%w: %d > %d", ErrTooManySources, len(sources), f.MaxSources())
	}
	entries := make([]Entry, len(sources))
	for i, src := range sources {
		if src == nil || src.Kind() != f.kind {
			return ErrVariantMismatch
		}
		entries[i].Source = src
		if i < len(f.entries) {
			entries[i].Presentation = f.entries[i].Presentation
		}
	}
	f.entries = entries
	f.touch()
	return nil
}

// SetSupplementURLs toggles related-URL supplementation on a web form.
// Enabling it truncates the sources down to the reduced cap.
func (f *Form) SetSupplementURLs(on bool) error {
	if f.kind != FormWeb {
		return ErrSupplementWebOnly
	}
	f.supplement = on
	if max := f.MaxSources(); len(f.entries) > max {
		f.entries = f.entries[:max]
	}
	f.touch()
	return nil
}

func (f *Form) SetCitationStyle(style string) {
	style = strings.TrimSpace(style)
	if style == "" {
		style = DefaultCitationStyle
	}
	f.style = style
	f.touch()
}

// TogglePresentation flips one UI flag of an entry. Presentation changes do
// not move the form out of its current status.
func (f *Form) TogglePresentation(index int, field string) error {
	if index < 0 || index >= len(f.entries) {
		return ErrIndexOutOfRange
	}
	p := &f.entries[index].Presentation
	switch field {
	case "showOptionalFields":
		p.ShowOptionalFields = !p.ShowOptionalFields
	case "showMetadata":
		p.ShowMetadata = !p.ShowMetadata
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPresentationField, field)
	}
	return nil
}

// Validate checks every source for the base fields and the variant's own
// required field.
func (f *Form) Validate() error {
	var problems []Problem
	for i, e := range f.entries {
		for _, field := range e.Source.Missing() {
			problems = append(problems, Problem{Index: i, Field: field})
		}
	}
	if len(problems) > 0 {
		f.status = StatusEditing
		return &ValidationError{Problems: problems}
	}
	if f.status != StatusSaved {
		f.status = StatusValid
	}
	return nil
}

// Save validates the form and writes it under key. Storage is not touched
// when validation fails.
func (f *Form) Save(ctx context.Context, kv store.KV, profile, key string) error {
	if err := f.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode form: %w", err)
	}
	if err := kv.Set(ctx, profile, key, string(payload)); err != nil {
		return err
	}
	f.status = StatusSaved
	return nil
}

func (f *Form) touch() {
	f.status = StatusEditing
}

type storedForm struct {
	FormType       FormType          `json:"formType"`
	CitationStyle  string            `json:"citationStyle,omitempty"`
	SupplementURLs *bool             `json:"supplementUrls,omitempty"`
	Sources        []json.RawMessage `json:"sources,omitempty"`
}

// MarshalJSON writes the persisted form: domain records only.
func (f *Form) MarshalJSON() ([]byte, error) {
	out := storedForm{FormType: f.kind, CitationStyle: f.style}
	if f.kind == FormWeb {
		supplement := f.supplement
		out.SupplementURLs = &supplement
	}
	for _, e := range f.entries {
		raw, err := json.Marshal(e.Source)
		if err != nil {
			return nil, err
		}
		out.Sources = append(out.Sources, raw)
	}
	return json.Marshal(out)
}

// DecodeForm rebuilds a form from its stored JSON. Records beyond the cap are
// dropped and an empty source list gets one default record.
func DecodeForm(kind FormType, data []byte, limits Limits) (*Form, error) {
	var stored storedForm
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode stored form: %w", err)
	}
	if stored.FormType != "" && stored.FormType != kind {
		return nil, fmt.Errorf("%w: %s != %s", ErrFormTypeMismatch, stored.FormType, kind)
	}

	f := NewForm(kind, limits)
	if stored.CitationStyle != "" {
		f.style = stored.CitationStyle
	}
	if kind == FormWeb && stored.SupplementURLs != nil {
		f.supplement = *stored.SupplementURLs
	}
	if kind != FormAuto && len(stored.Sources) > 0 {
		entries := make([]Entry, 0, len(stored.Sources))
		for _, raw := range stored.Sources {
			src, err := DecodeSource(kind, raw)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Source: src})
		}
		if max := f.MaxSources(); len(entries) > max {
			entries = entries[:max]
		}
		f.entries = entries
	}
	f.status = StatusSaved
	return f, nil
}

// LoadForm hydrates the form of the given type from storage, or returns a new
// form when nothing is stored.
func LoadForm(ctx context.Context, kv store.KV, profile string, kind FormType, limits Limits) (*Form, error) {
	raw, err := kv.Get(ctx, profile, StorageKey(kind))
	if errors.Is(err, store.ErrNotFound) {
		return NewForm(kind, limits), nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeForm(kind, []byte(raw), limits)
}

// View is the form as the API presents it, presentation state included.
type View struct {
	FormType       FormType `json:"formType"`
	Status         Status   `json:"status"`
	CitationStyle  string   `json:"citationStyle"`
	SupplementURLs bool     `json:"supplementUrls"`
	MaxSources     int      `json:"maxSources"`
	Entries        []Entry  `json:"entries"`
}

func (f *Form) View() View {
	return View{
		FormType:       f.kind,
		Status:         f.status,
		CitationStyle:  f.style,
		SupplementURLs: f.supplement,
		MaxSources:     f.MaxSources(),
		Entries:        f.Entries(),
	}
}
