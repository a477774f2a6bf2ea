package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/careline/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Viewer
// ---------------------------------------------------------------------------

func TestViewer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantViewer string
	}{
		{name: "no viewer", wantStatus: http.StatusOK},
		{name: "header normalized", header: " jt ", wantStatus: http.StatusOK, wantViewer: "JT"},
		{name: "query fallback", query: "mk2", wantStatus: http.StatusOK, wantViewer: "MK2"},
		{name: "header wins over query", header: "AB", query: "CD", wantStatus: http.StatusOK, wantViewer: "AB"},
		{name: "too long", header: "ABCDEFGHI", wantStatus: http.StatusBadRequest},
		{name: "punctuation", header: "J.T", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotViewer string
			var gotOK bool
			handler := middleware.Viewer()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotViewer, gotOK = middleware.ViewerFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			target := "/"
			if tt.query != "" {
				target += "?viewer=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set(middleware.ViewerHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantViewer != "" {
				assert.True(t, gotOK)
				assert.Equal(t, tt.wantViewer, gotViewer)
			} else {
				assert.False(t, gotOK)
			}
		})
	}
}

func TestViewerFromContext_Empty(t *testing.T) {
	t.Parallel()

	_, ok := middleware.ViewerFromContext(middleware.WithViewer(context.Background(), ""))
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// RateLimit
// ---------------------------------------------------------------------------

func TestRateLimit_PerKey(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.RateLimit(ctx, 0.001, 2, middleware.ByIP)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2"), "other keys have their own bucket")
}

func TestRateLimit_EmptyKeySkips(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.RateLimit(ctx, 0.001, 1, func(*http.Request) string { return "" })(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestByViewer(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9"
	assert.Equal(t, "10.0.0.9", middleware.ByViewer(req))

	req = req.WithContext(middleware.WithViewer(req.Context(), "JT"))
	assert.Equal(t, "viewer:JT", middleware.ByViewer(req))
}
