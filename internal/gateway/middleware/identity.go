// Package middleware provides the gateway's caller identification, admin
// guard, rate limiting and CORS handling.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/logger"
)

type contextKey string

const keyInfoKey contextKey = "api_key_info"

// KeyValidator is satisfied by *apikey.Validator.
type KeyValidator interface {
	Validate(ctx context.Context, rawKey string) (*apikey.KeyInfo, error)
}

// Identify resolves who is calling. Requests without a key continue as
// guests; a valid key makes the caller a member and sets the
// X-Authenticated-User header for the backends; a bad key is rejected. A
// client-supplied X-Authenticated-User header is always discarded so guests
// cannot claim membership. Health endpoints are exempt.
func Identify(validator KeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(handler.AuthenticatedUserHeader)
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}

			key := extractAPIKey(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			info, err := validator.Validate(r.Context(), key)
			switch {
			case err == nil:
			case errors.Is(err, apikey.ErrInvalidKey):
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid api key")
				return
			case errors.Is(err, apikey.ErrExpiredKey):
				writeError(w, http.StatusUnauthorized, "unauthorized", "expired api key")
				return
			default:
				logger.FromContext(r.Context()).Error("api key validation failed", "error", err)
				writeError(w, http.StatusServiceUnavailable, "internal", "authentication unavailable")
				return
			}

			r.Header.Set(handler.AuthenticatedUserHeader, info.Member)
			ctx := context.WithValue(r.Context(), keyInfoKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers whose key is not an admin key.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := GetKeyInfo(r.Context())
		switch {
		case info == nil:
			writeError(w, http.StatusUnauthorized, "unauthorized", "api key required")
		case !info.Admin:
			writeError(w, http.StatusForbidden, "forbidden", "admin key required")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// GetKeyInfo returns the validated key of a member request, or nil for
// guests.
func GetKeyInfo(ctx context.Context) *apikey.KeyInfo {
	info, _ := ctx.Value(keyInfoKey).(*apikey.KeyInfo)
	return info
}

// extractAPIKey reads the key from Authorization: Bearer, then X-API-Key,
// then the api_key query parameter.
func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "kind": kind})
}
