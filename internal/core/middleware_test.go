package core

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"lexflow/internal/alerts"
	"lexflow/internal/config"
	"lexflow/internal/types"
)

const testSchedulerToken = "scheduler-secret-token"

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testSchedulerToken), bcrypt.MinCost)
	require.NoError(t, err)

	return &config.Config{
		Environment: "local",
		Scheduler:   config.SchedulerConfig{TokenHash: types.SecretString(hash)},
		Build:       config.BuildInfo{Version: "test", Commit: "abc"},
	}
}

func testServer(t *testing.T) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := &alerts.Orchestrator{}
	srv, err := NewServer(testConfig(t), logger, orch, nil, nil)
	require.NoError(t, err)
	return srv
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSchedulerAuth(t *testing.T) {
	srv := testServer(t)
	handler := srv.SchedulerAuth(okHandler())

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", http.StatusUnauthorized, "auth_token_missing"},
		{"malformed header", "Basic abc", http.StatusUnauthorized, "auth_token_invalid"},
		{"empty bearer token", "Bearer ", http.StatusUnauthorized, "auth_token_invalid"},
		{"wrong token", "Bearer wrong-token", http.StatusUnauthorized, "auth_token_invalid"},
		{"valid token", "Bearer " + testSchedulerToken, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/alerts/run", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				var resp APIErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("honors inbound header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-external")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "req-external", seen)
		assert.Equal(t, "req-external", rec.Header().Get("X-Request-ID"))
	})
}

func TestRecovererWrites500(t *testing.T) {
	srv := testServer(t)
	handler := srv.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), resp.Error.Code)
}

func TestErrorResponseMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"app error maps status", types.NewAppError(types.ErrCodeNotFoundDeadline, "deadline not found", nil), http.StatusNotFound, "not_found_deadline"},
		{"upstream maps to 502", types.NewAppError(types.ErrCodeUpstreamUnavailable, "unavailable", nil), http.StatusBadGateway, "upstream_unavailable"},
		{"generic error hides detail", io.ErrUnexpectedEOF, http.StatusInternalServerError, "internal_unexpected_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			Error(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp APIErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			if tt.wantCode == "internal_unexpected_error" {
				assert.NotContains(t, resp.Error.Message, "EOF")
			}
		})
	}
}
