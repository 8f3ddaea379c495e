package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/reel-recap/recap_api/dto"
	"github.com/reel-recap/recap_api/shared"
)

type UsageHandler struct {
	quotaSvc   QuotaServiceInterface
	archiveSvc ArchiveServiceInterface
}

func NewUsageHandler(quotaSvc QuotaServiceInterface, archiveSvc ArchiveServiceInterface) *UsageHandler {
	return &UsageHandler{
		quotaSvc:   quotaSvc,
		archiveSvc: archiveSvc,
	}
}

// @Summary Get usage stats
// @Description Remaining allowance for the caller. Reading stats never consumes quota.
// @Tags usage
// @Produce json
// @Success 200 {object} shared.Response{data=dto.UsageStatsResponse}
// @Router /api/v1/usage [get]
func (h *UsageHandler) GetUsage(c *fiber.Ctx) error {
	userID, ip := callerIdentity(c)
	stats := h.quotaSvc.StatsForDisplay(c.Context(), userID, ip)
	return shared.ResponseJSON(c, http.StatusOK, "Usage retrieved", stats)
}

// @Summary Get request history
// @Description Recent extraction and summary requests for the authenticated user, with archive links where available.
// @Tags usage
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Bearer Token" default(Bearer <token>)
// @Param limit query int false "Max entries" default(20)
// @Success 200 {object} shared.Response{data=dto.HistoryResponse}
// @Router /api/v1/history [get]
func (h *UsageHandler) GetHistory(c *fiber.Ctx) error {
	userID, _ := callerIdentity(c)
	if userID == "" {
		return shared.NewUnauthorizedError("Sign in to view request history")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	entries, err := h.quotaSvc.RecentLogs(c.Context(), userID, limit)
	if err != nil {
		return err
	}

	for i, entry := range entries {
		if entry.ArchiveKey == "" {
			continue
		}
		url, urlErr := h.archiveSvc.TranscriptURL(c.Context(), entry.ArchiveKey, time.Hour)
		if urlErr != nil {
			log.WithError(urlErr).WithField("log_id", entry.ID).Warn("Failed to presign archived transcript")
			continue
		}
		entries[i].ArchiveURL = url
	}

	return shared.ResponseJSON(c, http.StatusOK, "History retrieved", &dto.HistoryResponse{Entries: entries})
}

// @Summary Download an archived transcript
// @Description Presigned link to a previously extracted transcript. Does not consume quota.
// @Tags usage
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Bearer Token" default(Bearer <token>)
// @Param logId path string true "Usage log ID"
// @Success 200 {object} shared.Response{data=map[string]string}
// @Router /api/v1/history/{logId}/transcript [get]
func (h *UsageHandler) GetArchivedTranscript(c *fiber.Ctx) error {
	userID, _ := callerIdentity(c)
	if userID == "" {
		return shared.NewUnauthorizedError("Sign in to view request history")
	}

	logID := c.Params("logId")
	if logID == "" {
		return shared.NewBadRequestError(nil, "Log ID is required")
	}

	entries, err := h.quotaSvc.RecentLogs(c.Context(), userID, 100)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.ID != logID {
			continue
		}
		if entry.ArchiveKey == "" {
			break
		}
		url, urlErr := h.archiveSvc.TranscriptURL(c.Context(), entry.ArchiveKey, time.Hour)
		if urlErr != nil {
			log.WithError(urlErr).WithField("log_id", logID).Warn("Failed to presign archived transcript")
			return shared.NewInternalError(urlErr, "Failed to generate archive link")
		}
		return shared.ResponseJSON(c, http.StatusOK, "Archive link generated", map[string]string{
			"url": url,
		})
	}

	return shared.NewNotFoundError("No archived transcript for this request")
}

// @Summary Get usage breakdown
// @Description Per-action usage split for the authenticated user's current window.
// @Tags usage
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Bearer Token" default(Bearer <token>)
// @Success 200 {object} shared.Response{data=dto.UserUsageBreakdown}
// @Router /api/v1/usage/breakdown [get]
func (h *UsageHandler) GetBreakdown(c *fiber.Ctx) error {
	userID, _ := callerIdentity(c)
	if userID == "" {
		return shared.NewUnauthorizedError("Sign in to view usage breakdown")
	}

	breakdown, err := h.quotaSvc.UserBreakdown(c.Context(), userID)
	if err != nil {
		return err
	}
	return shared.ResponseJSON(c, http.StatusOK, "Usage breakdown retrieved", breakdown)
}
