package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"citeme/api/internal/citation"
	"citeme/api/internal/editor"
	"citeme/api/internal/export"
	"citeme/api/internal/gitrepo"
	"citeme/api/internal/logging"
	"citeme/api/internal/markup"
	"citeme/api/internal/remote"
	"citeme/api/internal/store"
	"citeme/api/internal/workspace"
)

// ProfileHeader names the browser profile a request acts for.
const ProfileHeader = "X-Profile-ID"

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}

	ws, err := s.service.Workspace(r.Context(), r.Header.Get(ProfileHeader))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	switch parts[1] {
	case "workspace":
		if len(parts) == 2 && r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, ws.Snapshot())
			return
		}
	case "document":
		s.handleDocument(w, r, ws, parts)
		return
	case "editor":
		s.handleEditor(w, r, ws, parts)
		return
	case "forms":
		s.handleForms(w, r, ws, parts)
		return
	case "citation":
		s.handleCitation(w, r, ws, parts)
		return
	case "view":
		s.handleView(w, r, ws, parts)
		return
	case "export":
		s.handleExport(w, r, ws, parts)
		return
	case "library":
		s.handleLibrary(w, r, ws, parts)
		return
	case "history":
		s.handleHistory(w, r, ws, parts)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"storage": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["storage"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	// The credibility service is optional; its failure is reported but does
	// not make the API unready.
	if s.service.CredibilityConfigured() {
		checks["credibility"] = map[string]any{"status": "ok"}
		if err := s.service.CredibilityHealth(ctx); err != nil {
			checks["credibility"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleDocument(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, ws.Snapshot().Document)
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPut {
		var body struct {
			Title   *string         `json:"title"`
			Content *string         `json:"content"`
			Doc     json.RawMessage `json:"doc"`
		}
		if err := decodeBody(r, &body); err != nil {
			s.fail(w, r, invalidBody(err))
			return
		}
		content := body.Content
		if content == nil && len(body.Doc) > 0 {
			html, err := markup.ProseMirrorJSONToHTML(body.Doc)
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", "doc is not a ProseMirror document", nil)
				return
			}
			content = &html
		}
		state, err := ws.SetDocument(r.Context(), body.Title, content)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
		return
	}

	if len(parts) == 3 && parts[2] == "content" && r.Method == http.MethodDelete {
		state, err := ws.ClearContent(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleEditor(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, ws.Toolbar())
		return
	}

	if len(parts) == 3 && parts[2] == "commands" && r.Method == http.MethodPost {
		var cmd workspace.Command
		if err := decodeBody(r, &cmd); err != nil {
			s.fail(w, r, invalidBody(err))
			return
		}
		state, err := ws.Apply(r.Context(), cmd)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

// handleForms serves /api/forms/{type}[/...].
func (s *HTTPServer) handleForms(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, parts []string) {
	if len(parts) < 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}
	kind, err := citation.ParseFormType(parts[2])
	if err != nil {
		s.fail(w, r, err)
		return
	}

	switch {
	case len(parts) == 3 && r.Method == http.MethodGet:
		s.respondForm(w, r)(ws.Form(kind))
		return

	case len(parts) == 3 && r.Method == http.MethodPut:
		var body struct {
			Sources       []json.RawMessage `json:"sources"`
			CitationStyle *string           `json:"citationStyle"`
		}
		if err := decodeBody(r, &body); err != nil {
			s.fail(w, r, invalidBody(err))
			return
		}
		var sources []citation.Source
		if body.Sources != nil {
			sources = make([]citation.Source, 0, len(body.Sources))
			for _, raw := range body.Sources {
				src, err := citation.DecodeSource(kind, raw)
				if err != nil {
					s.fail(w, r, err)
					return
				}
				sources = append(sources, src)
			}
		}
		s.respondForm(w, r)(ws.ReplaceForm(kind, sources, body.CitationStyle))
		return

	case len(parts) == 4 && parts[3] == "sources" && r.Method == http.MethodPost:
		view, added, err := ws.AddSource(kind)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"form": view, "changed": added})
		return

	case len(parts) == 4 && parts[3] == "supplement" && r.Method == http.MethodPut:
		if kind != citation.FormWeb {
			s.fail(w, r, citation.ErrSupplementWebOnly)
			return
		}
		var body struct {
			Enabled bool `json:"enabled"`
		}
		if err := decodeBody(r, &body); err != nil {
			s.fail(w, r, invalidBody(err))
			return
		}
		s.respondForm(w, r)(ws.SetSupplementURLs(body.Enabled))
		return

	case len(parts) == 4 && parts[3] == "save" && r.Method == http.MethodPost:
		s.respondForm(w, r)(ws.SaveForm(r.Context(), kind))
		return

	case len(parts) == 4 && parts[3] == "csl" && r.Method == http.MethodGet:
		var out strings.Builder
		if err := ws.WriteCSL(kind, &out); err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-sources.yaml"`, kind))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(out.String()))
		return
	}

	if len(parts) >= 5 && parts[3] == "sources" {
		index, err := strconv.Atoi(parts[4])
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INDEX", "source index must be an integer", nil)
			return
		}
		s.handleFormSource(w, r, ws, kind, index, parts[5:])
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

// handleFormSource serves /api/forms/{type}/sources/{i}[/toggle|/credibility].
func (s *HTTPServer) handleFormSource(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, kind citation.FormType, index int, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPut:
		var raw json.RawMessage
		if err := decodeBody(r, &raw); err != nil {
			s.fail(w, r, invalidBody(err))
			return
		}
		src, err := citation.DecodeSource(kind, raw)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.respondForm(w, r)(ws.UpdateSource(kind, index, src))
		return

	case len(rest) == 0 && r.Method == http.MethodDelete:
		view, removed, err := ws.RemoveSource(kind, index)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"form": view, "changed": removed})
		return

	case len(rest) == 1 && rest[0] == "toggle" && r.Method == http.MethodPost:
		var body struct {
			Field string `json:"field"`
		}
		if err := decodeBody(r, &body); err != nil {
			s.fail(w, r, invalidBody(err))
			return
		}
		s.respondForm(w, r)(ws.TogglePresentation(kind, index, body.Field))
		return

	case len(rest) == 1 && rest[0] == "credibility" && r.Method == http.MethodPost:
		detail := r.URL.Query().Get("detail") == "true"
		score, err := ws.ScoreSource(r.Context(), kind, index, detail)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, score)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) respondForm(w http.ResponseWriter, r *http.Request) func(citation.View, error) {
	return func(view citation.View, err error) {
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *HTTPServer) handleCitation(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, parts []string) {
	if len(parts) == 3 && parts[2] == "generate" && r.Method == http.MethodPost {
		var body struct {
			FormType      string `json:"formType"`
			CitationStyle string `json:"citationStyle"`
		}
		if err := decodeBody(r, &body); err != nil {
			s.fail(w, r, invalidBody(err))
			return
		}
		if strings.TrimSpace(body.FormType) == "" {
			s.fail(w, r, workspace.ErrFormTypeRequired)
			return
		}
		kind, err := citation.ParseFormType(body.FormType)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		snap, err := ws.Generate(r.Context(), kind, body.CitationStyle)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	if len(parts) == 3 && parts[2] == "sources" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, ws.Summary())
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleView(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, parts []string) {
	if len(parts) != 3 || r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	switch parts[2] {
	case "preview":
		writeJSON(w, http.StatusOK, ws.ToPreview())
	case "editor":
		writeJSON(w, http.StatusOK, ws.ToEditor())
	case "toggle":
		writeJSON(w, http.StatusOK, ws.Toggle())
	case "edit":
		snap, err := ws.Edit(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, parts []string) {
	if len(parts) != 3 || r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	var format export.Format
	switch parts[2] {
	case "print":
		format = export.FormatPDF
	case "download":
		format = export.FormatDOCX
	case "markdown":
		format = export.FormatMarkdown
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}

	result, err := s.service.Export(r.Context(), ws, format)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleLibrary(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, parts []string) {
	if len(parts) != 3 || parts[2] != "search" || r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	resp, err := s.service.SearchLibrary(r.Context(), ws.Profile(), strings.TrimSpace(query.Get("q")), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		limit := 50
		if rawLimit := strings.TrimSpace(r.URL.Query().Get("limit")); rawLimit != "" {
			if parsedLimit, err := strconv.Atoi(rawLimit); err == nil && parsedLimit > 0 {
				limit = parsedLimit
			}
		}
		commits, err := ws.History(limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
		return
	}

	if len(parts) == 4 && parts[3] == "restore" && r.Method == http.MethodPost {
		snap, err := ws.Restore(r.Context(), parts[2])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

// fail maps err to a response. Server-side failures are logged with the
// request id.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		logging.Error("request failed",
			"request_id", requestID(r.Context()),
			"path", r.URL.Path,
			"code", code,
			"err", err,
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		logging.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"profile", r.Header.Get(ProfileHeader),
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Profile-ID, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var validationErr *citation.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", validationErr.Error(), validationErr.Problems
	}
	switch {
	case errors.Is(err, workspace.ErrTitleRequired),
		errors.Is(err, workspace.ErrContentRequired),
		errors.Is(err, workspace.ErrFormNotSaved),
		errors.Is(err, workspace.ErrFormTypeRequired),
		errors.Is(err, editor.ErrContentTooLong):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, workspace.ErrProfileRequired):
		return http.StatusBadRequest, "PROFILE_REQUIRED", "X-Profile-ID header is required", nil
	case errors.Is(err, workspace.ErrGenerationInProgress):
		return http.StatusConflict, "GENERATION_IN_PROGRESS", err.Error(), nil
	case errors.Is(err, workspace.ErrUnknownCommand):
		return http.StatusBadRequest, "UNKNOWN_COMMAND", err.Error(), nil
	case errors.Is(err, citation.ErrUnknownFormType):
		return http.StatusNotFound, "UNKNOWN_FORM_TYPE", err.Error(), nil
	case errors.Is(err, citation.ErrIndexOutOfRange):
		return http.StatusNotFound, "SOURCE_NOT_FOUND", err.Error(), nil
	case errors.Is(err, citation.ErrVariantMismatch),
		errors.Is(err, citation.ErrTooManySources),
		errors.Is(err, citation.ErrNoSources),
		errors.Is(err, citation.ErrNoSourcesForAuto),
		errors.Is(err, citation.ErrSupplementWebOnly),
		errors.Is(err, citation.ErrUnknownPresentationField):
		return http.StatusBadRequest, "INVALID_FORM_CHANGE", err.Error(), nil
	case errors.Is(err, gitrepo.ErrSnapshotNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Snapshot not found", nil
	case errors.Is(err, workspace.ErrScorerUnavailable),
		errors.Is(err, workspace.ErrHistoryUnavailable),
		errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "UNAVAILABLE", err.Error(), nil
	case errors.Is(err, export.ErrPrintSurfaceUnavailable):
		return http.StatusServiceUnavailable, "PRINT_UNAVAILABLE", "Print surface could not be opened", nil
	}

	var remoteErr *remote.Error
	if errors.As(err, &remoteErr) {
		if remoteErr.Service == remote.ServiceCitation {
			return http.StatusBadGateway, "GENERATION_FAILED", "Citation generation failed", nil
		}
		return http.StatusBadGateway, "UPSTREAM_FAILED", fmt.Sprintf("%s request failed", remoteErr.Service), nil
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return http.StatusBadRequest, "INVALID_BODY", err.Error(), nil
	}

	var storageErr *store.StorageError
	if errors.As(err, &storageErr) {
		return http.StatusInternalServerError, "STORAGE_ERROR", "Storage operation failed", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
