package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/service"
)

// SnippetHandler serves the snippet API.
//
// ROUTES (registered by the server, each also without the trailing slash):
//
//	POST   /snippets/              create          201 / 400 / 409
//	GET    /snippets/{name}/       fetch           200 / 404
//	POST   /snippets/{name}/like/  like            200 / 404
//	POST   /snippets/{name}/       edit            200 / 400 / 403 / 404 / 409
//	DELETE /snippets/{name}/       delete          204 / 400 / 403 / 404
type SnippetHandler struct {
	svc       *service.SnippetService
	publicURL string
	limits    Limits
	logger    *slog.Logger
}

// NewSnippetHandler creates a SnippetHandler. publicURL, when set, replaces
// the scheme and host taken from the request when building locators.
func NewSnippetHandler(svc *service.SnippetService, publicURL string, limits Limits, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{
		svc:       svc,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		limits:    limits,
		logger:    logger,
	}
}

// HandleCreate creates a snippet.
//
// REQUEST BODY:  {"name":"recipe","expires_in":30,"snippet":"...","password":"optional"}
// RESPONSE 201:  the snippet's external view
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	params, err := parseCreate(body, h.limits)
	if err != nil {
		h.logger.Debug("invalid create request", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	snippet, err := h.svc.Create(r.Context(), params, h.baseURL(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snippet.View())
}

// HandleGet returns a snippet and extends its lifetime.
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.svc.Get(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet.View())
}

// HandleLike adds a like to a snippet and extends its lifetime.
func (h *SnippetHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.svc.Like(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet.View())
}

// HandleEdit changes a snippet's content, name or expiry.
//
// REQUEST BODY: {"password":"required","name":"new name","snippet":"new content","expires_in":60}
// Every field except password is optional.
func (h *SnippetHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := h.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	params, err := parseEdit(body, h.limits)
	if err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.svc.Edit(r.Context(), name, params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet.View())
}

// HandleDelete removes a snippet. Secured snippets need {"password": "..."}.
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := h.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	password, err := parseDelete(body)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.Delete(r.Context(), name, password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth reports liveness and the current entry count.
func (h *SnippetHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"snippets": h.svc.Count(),
	})
}

// readBody reads at most limits.MaxBodyBytes of the request body.
func (h *SnippetHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.limits.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.ValidationFailed("", "request body too large")
		}
		return nil, apperror.ValidationFailed("", "could not read request body")
	}
	return body, nil
}

// baseURL is the address a creation request arrived on, e.g.
// "http://localhost:8080/snippets/". It is handed to the service explicitly
// so locator construction never reads request state.
func (h *SnippetHandler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL + "/snippets/"
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/snippets/"
}

// nameParam extracts the {name} path parameter.
//
// chi routes on the raw (still escaped) path whenever the request's escaping
// differs from Go's canonical form, e.g. "a%2Fb" or "a%26b". Only then is
// the parameter still escaped and in need of decoding. Otherwise it is
// already decoded, and decoding again would corrupt names containing "%".
func nameParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return raw, nil
	}
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", apperror.ValidationFailed("name", "name is not a valid path segment")
	}
	return name, nil
}
