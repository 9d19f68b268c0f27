package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexflow/internal/types"
)

func newTestSendGridClient(t *testing.T, baseURL string) *SendGridClient {
	t.Helper()
	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"sendgrid-test",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"LexFlow/1.0",
		WithSleepFunc(func(time.Duration) {}),
	)
	return NewSendGridClientWithBase(base, SendGridClientConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
	})
}

func sampleInput() types.SendInput {
	return types.SendInput{
		To:          "adv@firm.com",
		From:        types.SenderIdentity{Name: "LexFlow Prazos", Address: "prazos@lexflow.com.br"},
		Subject:     "Prazo vence hoje: Embargos",
		BodyHTML:    "<p>corpo</p>",
		BodyText:    "corpo",
		ReferenceID: "notif-1",
	}
}

func TestSendSuccess(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("X-Message-Id", "sg-msg-123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := newTestSendGridClient(t, srv.URL)

	msgID, err := client.Send(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "sg-msg-123", msgID)

	assert.Equal(t, "Prazo vence hoje: Embargos", captured["subject"])
	content := captured["content"].([]any)
	require.Len(t, content, 2)
	// SendGrid requires text/plain before text/html.
	assert.Equal(t, "text/plain", content[0].(map[string]any)["type"])
	assert.Equal(t, "text/html", content[1].(map[string]any)["type"])
	assert.Equal(t, map[string]any{"reference_id": "notif-1"}, captured["custom_args"])
}

func TestSendForbiddenMapsToEmailBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":[{"message":"recipient is suppressed"}]}`))
	}))
	defer srv.Close()

	client := newTestSendGridClient(t, srv.URL)

	_, err := client.Send(context.Background(), sampleInput())
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeEmailBlocked, appErr.Code)
	assert.Contains(t, appErr.Message, "recipient is suppressed")
}

func TestSendRateLimitMapsToRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestSendGridClient(t, srv.URL)

	_, err := client.Send(context.Background(), sampleInput())
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamRateLimited, appErr.Code)
}

func TestSendServerErrorMapsToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestSendGridClient(t, srv.URL)

	_, err := client.Send(context.Background(), sampleInput())
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, appErr.Code)
}

func TestSendOtherClientErrorMapsToProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"invalid from address"}]}`))
	}))
	defer srv.Close()

	client := newTestSendGridClient(t, srv.URL)

	_, err := client.Send(context.Background(), sampleInput())
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamEmailProvider, appErr.Code)
	assert.Contains(t, appErr.Message, "invalid from address")
}

func TestSendNoRetryOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestSendGridClient(t, srv.URL)

	_, err := client.Send(context.Background(), sampleInput())
	require.Error(t, err)
	// The alert sender owns the retry discipline; the transport layer must
	// not add attempts of its own.
	assert.Equal(t, 1, calls)
}
