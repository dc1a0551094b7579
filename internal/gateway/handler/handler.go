// Package handler implements the gateway's proxy and admin endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/logger"
)

// Config holds the URLs of the services the gateway proxies to.
type Config struct {
	SearcherURL  string
	AnalyticsURL string
}

// KeyManager is satisfied by *apikey.Validator.
type KeyManager interface {
	CreateKey(ctx context.Context, req apikey.NewKey) (string, *apikey.KeyInfo, error)
	ListKeys(ctx context.Context) ([]apikey.KeyInfo, error)
	RevokeKey(ctx context.Context, id string) error
}

// PageWriter is satisfied by *pages.PostgresStore.
type PageWriter interface {
	Upsert(ctx context.Context, rec pages.Record) error
	Delete(ctx context.Context, id string) error
}

// ChangeNotifier is satisfied by *pages.Notifier.
type ChangeNotifier interface {
	PageChanged(ctx context.Context, pageID string, action pages.ChangeAction) error
}

// Handler proxies search and analytics traffic and serves the admin API.
type Handler struct {
	searchProxy    *httputil.ReverseProxy
	analyticsProxy *httputil.ReverseProxy
	keys           KeyManager
	pages          PageWriter
	notifier       ChangeNotifier
	logger         *slog.Logger
}

// New creates a gateway Handler. notifier may be nil when Kafka is disabled;
// page edits are then picked up by the search service's next rebuild only.
func New(cfg Config, keys KeyManager, pageWriter PageWriter, notifier ChangeNotifier) (*Handler, error) {
	h := &Handler{
		keys:     keys,
		pages:    pageWriter,
		notifier: notifier,
		logger:   slog.Default().With("component", "gateway-handler"),
	}
	var err error
	if h.searchProxy, err = h.newProxy("searcher", cfg.SearcherURL); err != nil {
		return nil, err
	}
	if h.analyticsProxy, err = h.newProxy("analytics", cfg.AnalyticsURL); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handler) newProxy(name, target string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s url %q", name, target)
	}
	proxy := httputil.NewSingleHostReverseProxy(u)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.FromContext(r.Context()).Error("backend request failed", "backend", name, "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": name + " service unavailable",
			"kind":  "backend_unavailable",
		})
	}
	return proxy, nil
}

// ProxySearch forwards search, index and cache requests to the search
// service.
func (h *Handler) ProxySearch(w http.ResponseWriter, r *http.Request) {
	h.searchProxy.ServeHTTP(w, r)
}

// ProxyAnalytics forwards analytics requests to the analytics service.
func (h *Handler) ProxyAnalytics(w http.ResponseWriter, r *http.Request) {
	h.analyticsProxy.ServeHTTP(w, r)
}

type createKeyRequest struct {
	Member    string `json:"member"`
	Admin     bool   `json:"admin"`
	RateLimit int    `json:"rate_limit"`
	ExpiresIn string `json:"expires_in,omitempty"` // Go duration, e.g. "720h"
}

// CreateKey issues a member key and returns the raw key once.
func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid JSON body"))
		return
	}
	newKey := apikey.NewKey{Member: req.Member, Admin: req.Admin, RateLimit: req.RateLimit}
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid expires_in duration"))
			return
		}
		t := time.Now().Add(d).UTC()
		newKey.ExpiresAt = &t
	}

	raw, info, err := h.keys.CreateKey(r.Context(), newKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"api_key": raw,
		"key":     info,
		"message": "store this key securely, it cannot be retrieved again",
	})
}

// ListKeys returns every active key without hashes.
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListKeys(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "count": len(keys)})
}

// RevokeKey deactivates the key named by the {id} path value.
func (h *Handler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	err := h.keys.RevokeKey(r.Context(), r.PathValue("id"))
	if errors.Is(err, apikey.ErrInvalidKey) {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "api key not found", "kind": "not_found"})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

type pageRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content,omitempty"`
	ContentPath string `json:"content_path,omitempty"`
	Private     bool   `json:"private"`
}

// PutPage inserts or replaces the page named by the {id} path value and
// announces the change so search services rebuild.
func (h *Handler) PutPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid JSON body"))
		return
	}
	rec := pages.Record{
		ID:          r.PathValue("id"),
		Title:       req.Title,
		Content:     req.Content,
		ContentPath: req.ContentPath,
		Private:     req.Private,
	}
	if err := h.pages.Upsert(r.Context(), rec); err != nil {
		h.writeError(w, r, err)
		return
	}

	published := h.publishChange(r, rec.ID, pages.ChangeUpserted)
	h.writeJSON(w, http.StatusOK, map[string]any{"id": rec.ID, "status": "saved", "change_published": published})
}

// DeletePage removes the page named by the {id} path value and announces
// the change. Unknown ids answer 404.
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.pages.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	published := h.publishChange(r, id, pages.ChangeDeleted)
	h.writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "deleted", "change_published": published})
}

// publishChange reports whether the change event went out. The store write
// has already succeeded, so a failed publish is logged and not returned.
func (h *Handler) publishChange(r *http.Request, id string, action pages.ChangeAction) bool {
	if h.notifier == nil {
		return false
	}
	if err := h.notifier.PageChanged(r.Context(), id, action); err != nil {
		logger.FromContext(r.Context()).Warn("page change not published", "page_id", id, "action", action, "error", err)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := "internal error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && status < http.StatusInternalServerError {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("admin request failed", "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": message, "kind": apperrors.Kind(err)})
}
