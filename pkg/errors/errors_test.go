package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty query", fmt.Errorf("parsing: %w", ErrEmptyQuery), http.StatusBadRequest},
		{"malformed query", ErrMalformedQuery, http.StatusBadRequest},
		{"page source", fmt.Errorf("listing: %w", ErrPageSourceUnavailable), http.StatusServiceUnavailable},
		{"not found", ErrPageNotFound, http.StatusNotFound},
		{"app error wins", New(ErrEmptyQuery, http.StatusTeapot, "odd"), http.StatusTeapot},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "empty_query", Kind(fmt.Errorf("x: %w", ErrEmptyQuery)))
	assert.Equal(t, "malformed_query", Kind(Newf(ErrMalformedQuery, 400, "unterminated quote at %d", 3)))
	assert.Equal(t, "content_unreadable", Kind(fmt.Errorf("page a: %w", ErrContentUnreadable)))
	assert.Equal(t, "internal", Kind(fmt.Errorf("other")))
}

func TestAppErrorMessage(t *testing.T) {
	err := Newf(ErrMalformedQuery, http.StatusBadRequest, "unterminated quote at offset %d", 4)
	assert.Equal(t, "malformed query: unterminated quote at offset 4", err.Error())
	assert.ErrorIs(t, err, ErrMalformedQuery)
}
