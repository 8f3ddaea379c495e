package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reel-recap/recap_api/shared"
)

func newTestTranscriptService(apiURL string) *TranscriptService {
	return &TranscriptService{
		httpClient:         &http.Client{Timeout: 5 * time.Second},
		apiURL:             apiURL,
		apiKey:             "test-key",
		cacheExpiry:        time.Minute,
		maxDurationSeconds: 180,
	}
}

func TestTranscriptFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "https://www.tiktok.com/@creator/video/123", r.URL.Query().Get("url"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [
				{"text": "hello", "offset": 0, "duration": 1500},
				{"text": "  ", "offset": 1500, "duration": 500},
				{"text": "world", "offset": 2000, "duration": 2000}
			],
			"lang": "en"
		}`))
	}))
	defer server.Close()

	svc := newTestTranscriptService(server.URL)
	result, err := svc.Fetch(context.Background(), "https://www.tiktok.com/@creator/video/123")
	require.NoError(t, err)

	assert.Equal(t, "tiktok", result.Platform)
	require.Len(t, result.Transcript, 2, "blank segments are dropped")
	assert.Equal(t, "hello", result.Transcript[0].Text)
	assert.Equal(t, "world", result.Transcript[1].Text)
	assert.Equal(t, 4, result.DurationSeconds)
	assert.False(t, result.Cached)
}

func TestTranscriptFetch_UnsupportedURL(t *testing.T) {
	svc := newTestTranscriptService("http://unused")

	_, err := svc.Fetch(context.Background(), "https://example.com/watch?v=123")
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
}

func TestTranscriptFetch_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	svc := newTestTranscriptService(server.URL)
	_, err := svc.Fetch(context.Background(), "https://youtube.com/shorts/missing")
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
}

func TestTranscriptFetch_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := newTestTranscriptService(server.URL)
	_, err := svc.Fetch(context.Background(), "https://youtube.com/shorts/abc")
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, appErr.StatusCode)
}

func TestTranscriptFetch_VideoTooLong(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [{"text": "long video", "offset": 200000, "duration": 5000}],
			"lang": "en"
		}`))
	}))
	defer server.Close()

	svc := newTestTranscriptService(server.URL)
	_, err := svc.Fetch(context.Background(), "https://youtube.com/shorts/long")
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
}

func TestTranscriptFetch_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content": [], "lang": "en"}`))
	}))
	defer server.Close()

	svc := newTestTranscriptService(server.URL)
	_, err := svc.Fetch(context.Background(), "https://youtube.com/shorts/empty")
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
}
