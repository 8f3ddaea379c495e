package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reel-recap/recap_api/dto"
	"github.com/reel-recap/recap_api/shared"
)

func newUsageTestApp(h *UsageHandler, userID string) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if appErr, ok := shared.GetAppError(err); ok {
				return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
			}
			return shared.ResponseInternalError(c, err)
		},
	})
	app.Use(func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals(shared.UserID, userID)
		}
		c.Locals(shared.ClientIP, "203.0.113.60")
		return c.Next()
	})
	app.Get("/usage", h.GetUsage)
	app.Get("/usage/breakdown", h.GetBreakdown)
	app.Get("/history", h.GetHistory)
	app.Get("/history/:logId/transcript", h.GetArchivedTranscript)
	return app
}

func getJSON(t *testing.T, app *fiber.App, path string) (*http.Response, shared.Response) {
	t.Helper()

	req := httptest.NewRequest("GET", path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var parsed shared.Response
	require.NoError(t, sonic.Unmarshal(raw, &parsed))
	return resp, parsed
}

func TestGetUsage_Anonymous(t *testing.T) {
	quota := &fakeQuotaService{
		stats: &dto.UsageStatsResponse{RemainingRequests: 10, DailyLimit: 10},
	}
	h := NewUsageHandler(quota, &fakeArchiveService{})
	app := newUsageTestApp(h, "")

	resp, parsed := getJSON(t, app, "/usage")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	payload, err := sonic.Marshal(parsed.Data)
	require.NoError(t, err)
	var stats dto.UsageStatsResponse
	require.NoError(t, sonic.Unmarshal(payload, &stats))
	assert.Equal(t, 10, stats.RemainingRequests)
}

func TestGetHistory_RequiresAuth(t *testing.T) {
	h := NewUsageHandler(&fakeQuotaService{}, &fakeArchiveService{})
	app := newUsageTestApp(h, "")

	resp, _ := getJSON(t, app, "/history")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetHistory_ReturnsEntries(t *testing.T) {
	quota := &fakeQuotaService{
		logs: []dto.UsageLogEntry{
			{ID: "log-1", Action: shared.ActionTranscript, Outcome: shared.OutcomeAccepted, ArchiveKey: "transcripts/log-1.json", CreatedAt: time.Now()},
			{ID: "log-2", Action: shared.ActionSummary, Outcome: shared.OutcomeAccepted, CreatedAt: time.Now()},
		},
	}
	archive := &fakeArchiveService{url: "https://archive.example/presigned"}
	h := NewUsageHandler(quota, archive)
	app := newUsageTestApp(h, "user-5")

	resp, parsed := getJSON(t, app, "/history?limit=10")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	payload, err := sonic.Marshal(parsed.Data)
	require.NoError(t, err)
	var history dto.HistoryResponse
	require.NoError(t, sonic.Unmarshal(payload, &history))
	require.Len(t, history.Entries, 2)

	// Only the archived entry carries a link.
	assert.Equal(t, "https://archive.example/presigned", history.Entries[0].ArchiveURL)
	assert.Empty(t, history.Entries[1].ArchiveURL)
	assert.Equal(t, 1, archive.presignCalls)
	assert.Equal(t, "transcripts/log-1.json", archive.presignedKey)
}

func TestGetBreakdown(t *testing.T) {
	quota := &fakeQuotaService{
		breakdown: &dto.UserUsageBreakdown{TranscriptCount: 2, SummaryCount: 1, TotalUsage: 3, RemainingRequests: 17},
	}
	h := NewUsageHandler(quota, &fakeArchiveService{})
	app := newUsageTestApp(h, "user-5")

	resp, parsed := getJSON(t, app, "/usage/breakdown")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	payload, err := sonic.Marshal(parsed.Data)
	require.NoError(t, err)
	var breakdown dto.UserUsageBreakdown
	require.NoError(t, sonic.Unmarshal(payload, &breakdown))
	assert.Equal(t, 3, breakdown.TotalUsage)
	assert.Equal(t, 17, breakdown.RemainingRequests)
}

func TestGetArchivedTranscript_Found(t *testing.T) {
	quota := &fakeQuotaService{
		logs: []dto.UsageLogEntry{{ID: "log-1", Action: shared.ActionTranscript, ArchiveKey: "transcripts/log-1.json"}},
	}
	archive := &fakeArchiveService{url: "https://archive.example/presigned"}
	h := NewUsageHandler(quota, archive)
	app := newUsageTestApp(h, "user-5")

	resp, parsed := getJSON(t, app, "/history/log-1/transcript")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	payload, err := sonic.Marshal(parsed.Data)
	require.NoError(t, err)
	var link map[string]string
	require.NoError(t, sonic.Unmarshal(payload, &link))
	assert.Equal(t, "https://archive.example/presigned", link["url"])
	assert.Equal(t, "transcripts/log-1.json", archive.presignedKey)
}

func TestGetArchivedTranscript_NeverArchived(t *testing.T) {
	// A failed extraction has a log entry but no stored object; the
	// handler must not hand out a link to it.
	quota := &fakeQuotaService{
		logs: []dto.UsageLogEntry{{ID: "log-1", Action: shared.ActionTranscript, Outcome: shared.OutcomeProviderFail}},
	}
	archive := &fakeArchiveService{url: "https://archive.example/presigned"}
	h := NewUsageHandler(quota, archive)
	app := newUsageTestApp(h, "user-5")

	resp, _ := getJSON(t, app, "/history/log-1/transcript")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, archive.presignCalls)
}

func TestGetArchivedTranscript_UnknownLog(t *testing.T) {
	quota := &fakeQuotaService{
		logs: []dto.UsageLogEntry{{ID: "log-1"}},
	}
	h := NewUsageHandler(quota, &fakeArchiveService{})
	app := newUsageTestApp(h, "user-5")

	resp, _ := getJSON(t, app, "/history/other-log/transcript")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
