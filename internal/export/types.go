// Package export turns the document into printable and downloadable files.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatMarkdown Format = "markdown"
)

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPrintSurfaceUnavailable indicates the headless print surface could not
	// be opened.
	ErrPrintSurfaceUnavailable = errors.New("print surface unavailable")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
