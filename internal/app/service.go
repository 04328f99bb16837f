package app

import (
	"context"
	"fmt"
	"net/http"

	"citeme/api/internal/export"
	"citeme/api/internal/search"
	"citeme/api/internal/workspace"
)

// Pinger reports whether durable storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports whether the credibility service is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Exporter turns a document into a downloadable file.
type Exporter interface {
	Print(ctx context.Context, title, body, references string) (*export.Result, error)
	Download(ctx context.Context, title, body, references string) (*export.Result, error)
	Markdown(title, body, references string) (*export.Result, error)
}

// LibrarySearcher queries a profile's saved sources.
type LibrarySearcher interface {
	Search(ctx context.Context, q search.Query) search.Response
}

// Deps wires the service. Workspaces and Storage are required.
type Deps struct {
	Workspaces  *workspace.Registry
	Storage     Pinger
	Credibility HealthChecker
	Exporter    Exporter
	Library     LibrarySearcher
}

// Service is the API's view of the workspaces and their collaborators.
type Service struct {
	workspaces  *workspace.Registry
	storage     Pinger
	credibility HealthChecker
	exporter    Exporter
	library     LibrarySearcher
}

func New(deps Deps) *Service {
	exporter := deps.Exporter
	if exporter == nil {
		exporter = export.NewService(nil, nil)
	}
	library := deps.Library
	if library == nil {
		library = search.NewService(nil, nil)
	}
	return &Service{
		workspaces:  deps.Workspaces,
		storage:     deps.Storage,
		credibility: deps.Credibility,
		exporter:    exporter,
		library:     library,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Ping(ctx)
}

// CredibilityConfigured reports whether a credibility service is wired.
func (s *Service) CredibilityConfigured() bool {
	return s.credibility != nil
}

func (s *Service) CredibilityHealth(ctx context.Context) error {
	if s.credibility == nil {
		return nil
	}
	return s.credibility.Health(ctx)
}

func (s *Service) Workspace(ctx context.Context, profile string) (*workspace.Workspace, error) {
	return s.workspaces.Get(ctx, profile)
}

// Export renders the workspace's current document in the given format.
func (s *Service) Export(ctx context.Context, ws *workspace.Workspace, format export.Format) (*export.Result, error) {
	title, body, references := ws.ExportParts()
	switch format {
	case export.FormatPDF:
		return s.exporter.Print(ctx, title, body, references)
	case export.FormatDOCX:
		return s.exporter.Download(ctx, title, body, references)
	case export.FormatMarkdown:
		return s.exporter.Markdown(title, body, references)
	default:
		return nil, domainError(http.StatusBadRequest, "UNSUPPORTED_FORMAT", fmt.Sprintf("unsupported export format %q", format), nil)
	}
}

func (s *Service) SearchLibrary(ctx context.Context, profile, text string, limit, offset int) (search.Response, error) {
	if profile == "" {
		return search.Response{}, workspace.ErrProfileRequired
	}
	return s.library.Search(ctx, search.Query{ProfileID: profile, Text: text, Limit: limit, Offset: offset}), nil
}
