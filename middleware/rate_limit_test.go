package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reel-recap/recap_api/shared"
)

func newTestLimiter(maxRequests int, window, block time.Duration) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		entries: make(map[string]*burstEntry),
		configs: map[string]*burstConfig{
			"extract": {MaxRequests: maxRequests, WindowSize: window, BlockTime: block},
		},
	}
}

func TestBurstLimiter_AllowsUpToMax(t *testing.T) {
	svc := newTestLimiter(3, time.Minute, 5*time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _ := svc.isAllowed("203.0.113.1", "extract")
		assert.True(t, allowed, "request %d should pass", i+1)
	}

	allowed, blockedUntil := svc.isAllowed("203.0.113.1", "extract")
	assert.False(t, allowed)
	assert.True(t, blockedUntil.After(time.Now()))
}

func TestBurstLimiter_BlockPersists(t *testing.T) {
	svc := newTestLimiter(1, time.Minute, 5*time.Minute)

	allowed, _ := svc.isAllowed("203.0.113.2", "extract")
	require.True(t, allowed)

	allowed, first := svc.isAllowed("203.0.113.2", "extract")
	require.False(t, allowed)

	// Retries during the block stay rejected with the same deadline.
	allowed, second := svc.isAllowed("203.0.113.2", "extract")
	assert.False(t, allowed)
	assert.Equal(t, first, second)
}

func TestBurstLimiter_WindowExpiryResets(t *testing.T) {
	svc := newTestLimiter(2, time.Minute, 5*time.Minute)

	require.True(t, func() bool { a, _ := svc.isAllowed("203.0.113.3", "extract"); return a }())
	require.True(t, func() bool { a, _ := svc.isAllowed("203.0.113.3", "extract"); return a }())

	// Age the window past its size.
	svc.mutex.Lock()
	svc.entries["extract:203.0.113.3"].windowStart = time.Now().Add(-2 * time.Minute)
	svc.mutex.Unlock()

	allowed, _ := svc.isAllowed("203.0.113.3", "extract")
	assert.True(t, allowed)
}

func TestBurstLimiter_IdentifiersIsolated(t *testing.T) {
	svc := newTestLimiter(1, time.Minute, 5*time.Minute)

	allowed, _ := svc.isAllowed("203.0.113.4", "extract")
	require.True(t, allowed)
	allowed, _ = svc.isAllowed("203.0.113.4", "extract")
	require.False(t, allowed)

	// A different IP is unaffected by the block.
	allowed, _ = svc.isAllowed("203.0.113.5", "extract")
	assert.True(t, allowed)
}

func TestBurstLimiter_UnknownEndpointTypePasses(t *testing.T) {
	svc := newTestLimiter(1, time.Minute, 5*time.Minute)

	for i := 0; i < 10; i++ {
		allowed, _ := svc.isAllowed("203.0.113.6", "unconfigured")
		assert.True(t, allowed)
	}
}

func TestBurstLimiter_DeniedRequestGets429WithRetryAfter(t *testing.T) {
	svc := newTestLimiter(1, time.Minute, 5*time.Minute)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if appErr, ok := shared.GetAppError(err); ok {
				return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
			}
			return shared.ResponseInternalError(c, err)
		},
	})
	app.Get("/extract", svc.ExtractRateLimit(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/extract", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/extract", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestBurstLimiter_CleanupPrunesStaleEntries(t *testing.T) {
	svc := newTestLimiter(5, time.Minute, 5*time.Minute)

	svc.isAllowed("203.0.113.7", "extract")
	svc.isAllowed("203.0.113.8", "extract")

	svc.mutex.Lock()
	svc.entries["extract:203.0.113.7"].windowStart = time.Now().Add(-2 * time.Hour)
	svc.mutex.Unlock()

	svc.cleanup()

	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	assert.NotContains(t, svc.entries, "extract:203.0.113.7")
	assert.Contains(t, svc.entries, "extract:203.0.113.8")
}
