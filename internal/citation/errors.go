package citation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownFormType   = errors.New("unknown form type")
	ErrNoSourcesForAuto  = errors.New("auto form carries no sources")
	ErrVariantMismatch   = errors.New("source variant does not match form")
	ErrIndexOutOfRange   = errors.New("source index out of range")
	ErrTooManySources    = errors.New("too many sources for form")
	ErrNoSources         = errors.New("form requires at least one source")
	ErrFormNotSaved      = errors.New("no saved form data")
	ErrFormTypeMismatch  = errors.New("stored form type does not match")
	ErrSupplementWebOnly = errors.New("supplement urls applies to web forms only")

	ErrUnknownPresentationField = errors.New("unknown presentation field")
)

// Problem is one missing required field.
type Problem struct {
	Index int    `json:"index"`
	Field string `json:"field"`
}

// ValidationError lists every missing field across the form's sources.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("source %d: %s", p.Index+1, p.Field))
	}
	return "missing required fields: " + strings.Join(parts, ", ")
}
