package export

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"citeme/api/internal/logging"
	"citeme/api/internal/markup"
)

const (
	mimePDF      = "application/pdf"
	mimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeMarkdown = "text/markdown; charset=utf-8"
)

// Service renders the document and hands it to the print surface or a
// converter.
type Service struct {
	printer   Printer
	docx      Converter
	converter *md.Converter
}

func NewService(printer Printer, docx Converter) *Service {
	if printer == nil {
		printer = ChromePrinter{}
	}
	if docx == nil {
		docx = Pandoc{}
	}
	return &Service{
		printer:   printer,
		docx:      docx,
		converter: md.NewConverter("", true, nil),
	}
}

// Render builds the standalone HTML document for title and body.
func Render(title, body, references string) (string, error) {
	html, err := RenderDocumentHTML(TemplateData{
		Title:          title,
		BodyHTML:       template.HTML(body),
		ReferencesHTML: template.HTML(references),
	})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return html, nil
}

// Print renders and prints the document. An unavailable print surface is
// logged and returned as ErrPrintSurfaceUnavailable.
func (s *Service) Print(ctx context.Context, title, body, references string) (*Result, error) {
	html, err := Render(title, body, references)
	if err != nil {
		return nil, err
	}
	data, err := s.printer.Print(ctx, html)
	if err != nil {
		if errors.Is(err, ErrPrintSurfaceUnavailable) {
			logging.Warn("export: print surface unavailable", "err", err)
		}
		return nil, err
	}
	return &Result{Data: data, Filename: Filename(title, "pdf"), MimeType: mimePDF}, nil
}

// Download packages the document as ${title}.docx.
func (s *Service) Download(ctx context.Context, title, body, references string) (*Result, error) {
	html, err := Render(title, body, references)
	if err != nil {
		return nil, err
	}
	data, err := s.docx.Convert(ctx, html)
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, Filename: Filename(title, "docx"), MimeType: mimeDOCX}, nil
}

// Markdown converts the document to ${title}.md.
func (s *Service) Markdown(title, body, references string) (*Result, error) {
	html := body
	if references != "" {
		html = markup.JoinReferences(body, references)
	}
	converted, err := s.converter.ConvertString(html)
	if err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	out := converted
	if t := strings.TrimSpace(title); t != "" {
		out = "# " + t + "\n\n" + converted
	}
	return &Result{Data: []byte(out + "\n"), Filename: Filename(title, "md"), MimeType: mimeMarkdown}, nil
}

// Filename keeps the title as typed, dropping path separators and characters
// file systems reject. A blank title becomes "document".
func Filename(title, ext string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r < 0x20 || r == 0x7f:
		case strings.ContainsRune(`/\:*?"<>|`, r):
		default:
			b.WriteRune(r)
		}
	}
	name := strings.TrimSpace(b.String())
	name = strings.Trim(name, ".")
	if runes := []rune(name); len(runes) > 120 {
		name = strings.TrimSpace(string(runes[:120]))
	}
	if name == "" {
		name = "document"
	}
	return name + "." + ext
}
