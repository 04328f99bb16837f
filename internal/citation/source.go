// Package citation models the citation forms a user fills in: the source
// records of each variant, their validation and persistence, and the payload
// sent to the citation generator.
package citation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormType tags the form variant. The values are the wire names.
type FormType string

const (
	FormWeb      FormType = "web"
	FormFreeText FormType = "source"
	FormAuto     FormType = "auto"
)

func ParseFormType(value string) (FormType, error) {
	switch FormType(value) {
	case FormWeb, FormFreeText, FormAuto:
		return FormType(value), nil
	case "freeText":
		return FormFreeText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormType, value)
	}
}

// StorageKey is the durable storage key for a form of the given type.
func StorageKey(kind FormType) string {
	return "Citation" + string(kind) + "Form"
}

// BaseFields are shared by every source variant; all but AccessDate are
// required.
type BaseFields struct {
	Authors       string `json:"authors"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	PublishedDate string `json:"publishedDate"`
	AccessDate    string `json:"accessDate,omitempty"`
}

func (b BaseFields) missing() []string {
	var fields []string
	if blank(b.Authors) {
		fields = append(fields, "authors")
	}
	if blank(b.Title) {
		fields = append(fields, "title")
	}
	if blank(b.Type) {
		fields = append(fields, "type")
	}
	if blank(b.PublishedDate) {
		fields = append(fields, "publishedDate")
	}
	return fields
}

// Source is one bibliographic record. The set of implementations is closed:
// WebSource and TextSource.
type Source interface {
	Kind() FormType
	Base() BaseFields
	// Missing lists the required fields left blank.
	Missing() []string
	sealed()
}

// WebSource is a record backed by a link.
type WebSource struct {
	BaseFields
	URL    string `json:"url"`
	DOI    string `json:"doi,omitempty"`
	Volume string `json:"volume,omitempty"`
}

func (WebSource) Kind() FormType     { return FormWeb }
func (s WebSource) Base() BaseFields { return s.BaseFields }
func (WebSource) sealed()            {}

func (s WebSource) Missing() []string {
	fields := s.BaseFields.missing()
	if blank(s.URL) {
		fields = append(fields, "url")
	}
	return fields
}

// TextSource is a record whose full text the user pasted in.
type TextSource struct {
	BaseFields
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
}

func (TextSource) Kind() FormType     { return FormFreeText }
func (s TextSource) Base() BaseFields { return s.BaseFields }
func (TextSource) sealed()            {}

func (s TextSource) Missing() []string {
	fields := s.BaseFields.missing()
	if blank(s.Content) {
		fields = append(fields, "content")
	}
	return fields
}

// Presentation is UI-only state for one entry. It is never persisted or
// transmitted.
type Presentation struct {
	ShowOptionalFields bool `json:"showOptionalFields"`
	ShowMetadata       bool `json:"showMetadata"`
}

// Entry pairs a record with its presentation state.
type Entry struct {
	Source       Source       `json:"source"`
	Presentation Presentation `json:"presentation"`
}

// NewSource returns a default-valued record of the variant, or nil for the
// auto variant which carries no sources.
func NewSource(kind FormType) Source {
	switch kind {
	case FormWeb:
		return WebSource{}
	case FormFreeText:
		return TextSource{}
	case FormAuto:
		return nil
	}
	return nil
}

// DecodeSource decodes one record of the given variant. Unknown fields,
// including presentation flags, are ignored.
func DecodeSource(kind FormType, raw json.RawMessage) (Source, error) {
	switch kind {
	case FormWeb:
		var s WebSource
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode web source: %w", err)
		}
		return s, nil
	case FormFreeText:
		var s TextSource
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode text source: %w", err)
		}
		return s, nil
	case FormAuto:
		return nil, ErrNoSourcesForAuto
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormType, kind)
}

// SourceURL returns the record's link, if any.
func SourceURL(s Source) string {
	switch v := s.(type) {
	case WebSource:
		return v.URL
	case TextSource:
		return v.URL
	}
	return ""
}

func blank(value string) bool {
	return strings.TrimSpace(value) == ""
}
