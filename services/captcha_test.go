package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTurnstileService(verifyURL string) *TurnstileService {
	return &TurnstileService{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		verifyURL:  verifyURL,
		secretKey:  "test-secret",
	}
}

func TestTurnstileVerify_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-secret", r.PostForm.Get("secret"))
		assert.Equal(t, "valid-token", r.PostForm.Get("response"))
		assert.Equal(t, "203.0.113.1", r.PostForm.Get("remoteip"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	svc := newTestTurnstileService(server.URL)
	assert.NoError(t, svc.Verify(context.Background(), "valid-token", "203.0.113.1"))
}

func TestTurnstileVerify_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response"]}`))
	}))
	defer server.Close()

	svc := newTestTurnstileService(server.URL)
	err := svc.Verify(context.Background(), "forged-token", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid-input-response")
}

func TestTurnstileVerify_EmptyToken(t *testing.T) {
	svc := newTestTurnstileService("http://unused")
	assert.Error(t, svc.Verify(context.Background(), "", ""))
}

func TestTurnstileVerify_Unconfigured(t *testing.T) {
	svc := newTestTurnstileService("http://unused")
	svc.secretKey = ""
	assert.Error(t, svc.Verify(context.Background(), "some-token", ""))
}

func TestTurnstileVerify_ProviderOutage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := newTestTurnstileService(server.URL)
	assert.Error(t, svc.Verify(context.Background(), "some-token", ""))
}
