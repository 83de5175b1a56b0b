package middleware_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"japa/internal/platform/middleware"
	"japa/internal/platform/token"
	"japa/pkg/requestcontext"
)

func authedHandler(t *testing.T, validator *token.Validator) (http.Handler, *string, *string) {
	t.Helper()

	var gotProfile, gotName string
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotProfile = requestcontext.ProfileID(r.Context()).String()
		gotName = requestcontext.DisplayName(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return middleware.RequireAuth(validator, logger)(next), &gotProfile, &gotName
}

func TestRequireAuth(t *testing.T) {
	validator := token.NewValidator("test-key")

	t.Run("injects the profile from a valid token", func(t *testing.T) {
		handler, gotProfile, gotName := authedHandler(t, validator)

		signed, err := validator.Sign("profile-9", "Mira", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/ledger/stats", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "profile-9", *gotProfile)
		assert.Equal(t, "Mira", *gotName)
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		handler, _, _ := authedHandler(t, validator)

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ledger/stats", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rejects a non-bearer scheme", func(t *testing.T) {
		handler, _, _ := authedHandler(t, validator)

		req := httptest.NewRequest(http.MethodGet, "/ledger/stats", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rejects an invalid token", func(t *testing.T) {
		handler, _, _ := authedHandler(t, validator)

		req := httptest.NewRequest(http.MethodGet, "/ledger/stats", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRequestID(t *testing.T) {
	var captured string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = requestcontext.RequestID(r.Context())
	})
	handler := middleware.RequestID(next)

	t.Run("honors an incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "upstream-42")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, "upstream-42", captured)
		assert.Equal(t, "upstream-42", rr.Header().Get("X-Request-ID"))
	})

	t.Run("generates one when absent", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, captured)
		assert.Equal(t, captured, rr.Header().Get("X-Request-ID"))
	})
}

func TestClientMetadata(t *testing.T) {
	var gotIP, gotUA string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotUA = requestcontext.UserAgent(r.Context())
	})
	handler := middleware.ClientMetadata(next)

	t.Run("prefers the forwarded address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "203.0.113.9", gotIP)
	})

	t.Run("falls back to the remote address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.4:54321"
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "198.51.100.4", gotIP)
	})

	t.Run("summarizes a browser user agent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Contains(t, gotUA, "Chrome")
		assert.Contains(t, gotUA, "Linux")
	})
}
