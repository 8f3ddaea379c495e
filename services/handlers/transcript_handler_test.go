package handlers

import (
	"bytes"
	"context"
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

type fakeQuotaService struct {
	processResult *dto.AtomicRequestResult
	checkResult   *dto.AtomicRequestResult
	commitResult  *dto.AtomicRequestResult
	stats         *dto.UsageStatsResponse
	breakdown     *dto.UserUsageBreakdown
	logs          []dto.UsageLogEntry

	processedWith dto.QuotaRequest
	committedWith string
	outcomes      map[string]string
	archiveKeys   map[string]string
}

func (f *fakeQuotaService) ProcessRequest(_ context.Context, opts dto.QuotaRequest) *dto.AtomicRequestResult {
	f.processedWith = opts
	return f.processResult
}

func (f *fakeQuotaService) CheckOnly(context.Context, string, string) *dto.AtomicRequestResult {
	return f.checkResult
}

func (f *fakeQuotaService) CommitUsage(_ context.Context, _, _, action, _ string) *dto.AtomicRequestResult {
	f.committedWith = action
	return f.commitResult
}

func (f *fakeQuotaService) StatsForDisplay(context.Context, string, string) *dto.UsageStatsResponse {
	return f.stats
}

func (f *fakeQuotaService) UserBreakdown(context.Context, string) (*dto.UserUsageBreakdown, error) {
	return f.breakdown, nil
}

func (f *fakeQuotaService) MarkOutcome(_ context.Context, logID, outcome string) {
	if f.outcomes == nil {
		f.outcomes = make(map[string]string)
	}
	f.outcomes[logID] = outcome
}

func (f *fakeQuotaService) AttachArchiveKey(_ context.Context, logID, key string) {
	if f.archiveKeys == nil {
		f.archiveKeys = make(map[string]string)
	}
	f.archiveKeys[logID] = key
}

func (f *fakeQuotaService) RecentLogs(context.Context, string, int) ([]dto.UsageLogEntry, error) {
	return f.logs, nil
}

func (f *fakeQuotaService) Stats(context.Context) (*dto.QuotaStatsResponse, error) {
	return &dto.QuotaStatsResponse{}, nil
}

func (f *fakeQuotaService) ResetIdentity(context.Context, string, string) error { return nil }
func (f *fakeQuotaService) Cleanup(context.Context) error                       { return nil }

type fakeTranscriptService struct {
	response *dto.TranscriptResponse
	err      error
	calls    int
}

func (f *fakeTranscriptService) Fetch(context.Context, string) (*dto.TranscriptResponse, error) {
	f.calls++
	return f.response, f.err
}

type fakeSummaryService struct {
	summary string
	err     error
	calls   int
}

func (f *fakeSummaryService) Summarize(context.Context, string, string) (string, error) {
	f.calls++
	return f.summary, f.err
}

type fakeArchiveService struct {
	storedKey    string
	url          string
	calls        int
	presignedKey string
	presignCalls int
}

func (f *fakeArchiveService) StoreTranscript(_ context.Context, logID string, _ *dto.TranscriptResponse) (string, error) {
	f.calls++
	f.storedKey = "transcripts/" + logID + ".json"
	return f.storedKey, nil
}

func (f *fakeArchiveService) TranscriptURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	f.presignCalls++
	f.presignedKey = objectName
	return f.url, nil
}

func newHandlerTestApp(h *TranscriptHandler, userID string) *fiber.App {
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
		c.Locals(shared.ClientIP, "203.0.113.50")
		return c.Next()
	})
	app.Post("/transcript", h.ExtractTranscript)
	app.Post("/summarize", h.Summarize)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) (*http.Response, shared.Response) {
	t.Helper()

	body, err := sonic.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var parsed shared.Response
	require.NoError(t, sonic.Unmarshal(raw, &parsed))
	return resp, parsed
}

func TestExtractTranscript_Success(t *testing.T) {
	quota := &fakeQuotaService{
		processResult: &dto.AtomicRequestResult{Success: true, RemainingRequests: 7, LogID: "log-1"},
	}
	transcript := &fakeTranscriptService{
		response: &dto.TranscriptResponse{
			Transcript: []dto.TranscriptSegment{{Text: "hello", Duration: 1000}},
			Platform:   "tiktok",
		},
	}
	archive := &fakeArchiveService{}
	h := NewTranscriptHandler(quota, transcript, &fakeSummaryService{}, archive)
	app := newHandlerTestApp(h, "user-1")

	resp, parsed := postJSON(t, app, "/transcript", dto.TranscriptRequest{
		URL: "https://www.tiktok.com/@a/video/1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 200, parsed.Code)

	assert.Equal(t, "user-1", quota.processedWith.UserID)
	assert.Equal(t, "203.0.113.50", quota.processedWith.IPAddress)
	assert.Equal(t, shared.ActionTranscript, quota.processedWith.Action)
	assert.Equal(t, 1, transcript.calls)

	// Authenticated extractions are archived and linked to the log entry.
	assert.Equal(t, 1, archive.calls)
	assert.Equal(t, "transcripts/log-1.json", quota.archiveKeys["log-1"])
}

func TestExtractTranscript_QuotaDenied(t *testing.T) {
	quota := &fakeQuotaService{
		processResult: &dto.AtomicRequestResult{
			Success: false,
			Reason:  dto.ReasonAnonymousExhausted,
			Message: "Free limit reached",
		},
	}
	transcript := &fakeTranscriptService{}
	h := NewTranscriptHandler(quota, transcript, &fakeSummaryService{}, nil)
	app := newHandlerTestApp(h, "")

	resp, _ := postJSON(t, app, "/transcript", dto.TranscriptRequest{
		URL: "https://youtube.com/shorts/abc",
	})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Zero(t, transcript.calls, "no provider call on a denied request")
}

func TestExtractTranscript_VerificationRequired(t *testing.T) {
	quota := &fakeQuotaService{
		processResult: &dto.AtomicRequestResult{
			Success:              false,
			RequiresVerification: true,
			Reason:               dto.ReasonVerificationRequired,
			Message:              "Please complete the verification challenge to continue",
		},
	}
	h := NewTranscriptHandler(quota, &fakeTranscriptService{}, &fakeSummaryService{}, nil)
	app := newHandlerTestApp(h, "")

	resp, parsed := postJSON(t, app, "/transcript", dto.TranscriptRequest{
		URL: "https://youtube.com/shorts/abc",
	})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	payload, err := sonic.Marshal(parsed.Data)
	require.NoError(t, err)
	var result dto.AtomicRequestResult
	require.NoError(t, sonic.Unmarshal(payload, &result))
	assert.True(t, result.RequiresVerification)
	assert.Equal(t, dto.ReasonVerificationRequired, result.Reason)
}

func TestExtractTranscript_ProviderFailureKeepsUnit(t *testing.T) {
	quota := &fakeQuotaService{
		processResult: &dto.AtomicRequestResult{Success: true, RemainingRequests: 4, LogID: "log-9"},
	}
	transcript := &fakeTranscriptService{err: shared.NewBadGatewayError(nil, "Transcript provider unavailable")}
	h := NewTranscriptHandler(quota, transcript, &fakeSummaryService{}, nil)
	app := newHandlerTestApp(h, "")

	resp, _ := postJSON(t, app, "/transcript", dto.TranscriptRequest{
		URL: "https://youtube.com/shorts/abc",
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, shared.OutcomeProviderFail, quota.outcomes["log-9"])
}

func TestExtractTranscript_InvalidBody(t *testing.T) {
	h := NewTranscriptHandler(&fakeQuotaService{}, &fakeTranscriptService{}, &fakeSummaryService{}, nil)
	app := newHandlerTestApp(h, "")

	req := httptest.NewRequest("POST", "/transcript", bytes.NewReader([]byte(`{"url": "https://example.com/nope"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSummarize_ChecksThenCommits(t *testing.T) {
	quota := &fakeQuotaService{
		checkResult:  &dto.AtomicRequestResult{Success: true, RemainingRequests: 5},
		commitResult: &dto.AtomicRequestResult{Success: true, RemainingRequests: 4},
	}
	summarizer := &fakeSummaryService{summary: "A recap."}
	h := NewTranscriptHandler(quota, &fakeTranscriptService{}, summarizer, nil)
	app := newHandlerTestApp(h, "user-2")

	resp, parsed := postJSON(t, app, "/summarize", dto.SummarizeRequest{
		Transcript: "long transcript",
		Language:   "vi",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, summarizer.calls)
	assert.Equal(t, shared.ActionSummary, quota.committedWith)

	payload, err := sonic.Marshal(parsed.Data)
	require.NoError(t, err)
	var result dto.SummarizeResponse
	require.NoError(t, sonic.Unmarshal(payload, &result))
	assert.Equal(t, "A recap.", result.Summary)
	assert.Equal(t, "vi", result.Language)
	assert.Equal(t, 4, result.RemainingRequests)
}

func TestSummarize_DeniedBeforeProviderCall(t *testing.T) {
	quota := &fakeQuotaService{
		checkResult: &dto.AtomicRequestResult{Success: false, Reason: dto.ReasonAuthenticatedExhausted},
	}
	summarizer := &fakeSummaryService{}
	h := NewTranscriptHandler(quota, &fakeTranscriptService{}, summarizer, nil)
	app := newHandlerTestApp(h, "user-2")

	resp, _ := postJSON(t, app, "/summarize", dto.SummarizeRequest{Transcript: "text"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Zero(t, summarizer.calls)
}

func TestSummarize_ProviderFailureChargesNothing(t *testing.T) {
	quota := &fakeQuotaService{
		checkResult: &dto.AtomicRequestResult{Success: true, RemainingRequests: 5},
	}
	summarizer := &fakeSummaryService{err: shared.NewBadGatewayError(nil, "Summarization provider unavailable")}
	h := NewTranscriptHandler(quota, &fakeTranscriptService{}, summarizer, nil)
	app := newHandlerTestApp(h, "user-2")

	resp, _ := postJSON(t, app, "/summarize", dto.SummarizeRequest{Transcript: "text"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Empty(t, quota.committedWith, "no commit after a failed summary")
}
