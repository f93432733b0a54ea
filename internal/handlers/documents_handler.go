package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/services/documents"
)

const maxSearchLimit = 50

// DocumentsHandler exposes the read and removal surface of the document
// store: library listings, hybrid search and version removal.
type DocumentsHandler struct {
	docs   *documents.Service
	logger arbor.ILogger
}

func NewDocumentsHandler(logger arbor.ILogger, docs *documents.Service) *DocumentsHandler {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &DocumentsHandler{
		docs:   docs,
		logger: logger,
	}
}

// ListLibrariesHandler handles GET /api/libraries
func (h *DocumentsHandler) ListLibrariesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	libraries, err := h.docs.ListLibraries(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("List libraries failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"libraries": libraries,
		"count":     len(libraries),
	})
}

// SearchHandler handles GET /api/search?library=&version=&q=&limit=
// The requested version is resolved to the best indexed match first; an
// empty resolution with unversioned documents falls back to those.
func (h *DocumentsHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	library := r.URL.Query().Get("library")
	query := r.URL.Query().Get("q")
	version := r.URL.Query().Get("version")
	if library == "" {
		WriteError(w, http.StatusBadRequest, "library parameter is required")
		return
	}
	if query == "" {
		WriteError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	ctx := r.Context()
	if err := h.docs.ValidateLibraryExists(ctx, library); err != nil {
		var notFound *documents.LibraryNotFoundError
		if errors.As(err, &notFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("library", library).Msg("Library lookup failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	match, err := h.docs.FindBestVersion(ctx, library, version)
	if err != nil {
		var notFound *documents.VersionNotFoundError
		if errors.As(err, &notFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("library", library).Msg("Version resolution failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results, err := h.docs.SearchStore(ctx, library, match.BestMatch, query, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("library", library).Str("query", query).Msg("Search failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"library": library,
		"version": match.BestMatch,
		"results": results,
		"count":   len(results),
	})
}

// RemoveVersionHandler handles DELETE /api/libraries/{library}/versions/{version}.
// The literal segment "unversioned" addresses documents stored without a
// version.
func (h *DocumentsHandler) RemoveVersionHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/libraries/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "versions" || parts[0] == "" || parts[2] == "" {
		WriteError(w, http.StatusBadRequest, "expected /api/libraries/{library}/versions/{version}")
		return
	}
	library := parts[0]
	version := parts[2]
	if version == "unversioned" {
		version = ""
	}

	report, err := h.docs.RemoveVersion(r.Context(), library, version)
	if err != nil {
		var active *documents.VersionActiveError
		if errors.As(err, &active) {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("library", library).Msg("Remove version failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, report)
}
