// Package handler exposes the search service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/logger"
)

// AuthenticatedUserHeader is set by the fronting proxy for signed-in users.
// Its presence selects the member audience.
const AuthenticatedUserHeader = "X-Authenticated-User"

// SearchService is satisfied by *searcher.Service.
type SearchService interface {
	Search(ctx context.Context, audience pages.Audience, query string, limit int) (*searcher.Outcome, error)
	Rebuild(ctx context.Context) (*searcher.BuildSummary, error)
	Stats() searcher.ServiceStats
}

type Handler struct {
	service SearchService
	cache   *cache.QueryCache
	logger  *slog.Logger
}

// New returns a Handler. queryCache may be nil when caching is disabled.
func New(service SearchService, queryCache *cache.QueryCache) *Handler {
	return &Handler{
		service: service,
		cache:   queryCache,
		logger:  slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type searchResponse struct {
	*searcher.Outcome
	Message string  `json:"message,omitempty"`
	TookMs  float64 `json:"took_ms"`
}

// Search answers GET /api/v1/search?q=...&limit=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	outcome, err := h.service.Search(r.Context(), audienceOf(r), query, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := searchResponse{
		Outcome: outcome,
		TookMs:  float64(outcome.Took.Microseconds()) / 1000,
	}
	if outcome.Empty() {
		resp.Message = "No results found for query: " + outcome.Query
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func audienceOf(r *http.Request) pages.Audience {
	if r.Header.Get(AuthenticatedUserHeader) != "" {
		return pages.AudienceMember
	}
	return pages.AudienceGuest
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Stats())
}

func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Rebuild(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	stats := h.cache.Stats()
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":             stats.Hits,
		"misses":           stats.Misses,
		"errors":           stats.Errors,
		"breaker":          stats.Breaker,
		"breaker_rejected": stats.Rejected,
		"total":            total,
		"hit_rate":         fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status code and a stable kind. Server-side
// failures are logged and their details withheld from the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			message = "internal error"
		}
	}
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"kind":  apperrors.Kind(err),
	})
}
