package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/reel-recap/recap_api/dto"
	"github.com/reel-recap/recap_api/shared"
)

type TranscriptHandler struct {
	quotaSvc      QuotaServiceInterface
	transcriptSvc TranscriptServiceInterface
	summarySvc    SummaryServiceInterface
	archiveSvc    ArchiveServiceInterface
}

func NewTranscriptHandler(quotaSvc QuotaServiceInterface, transcriptSvc TranscriptServiceInterface, summarySvc SummaryServiceInterface, archiveSvc ArchiveServiceInterface) *TranscriptHandler {
	return &TranscriptHandler{
		quotaSvc:      quotaSvc,
		transcriptSvc: transcriptSvc,
		summarySvc:    summarySvc,
		archiveSvc:    archiveSvc,
	}
}

func callerIdentity(c *fiber.Ctx) (userID, ip string) {
	if v := c.Locals(shared.UserID); v != nil {
		userID, _ = v.(string)
	}
	if v := c.Locals(shared.ClientIP); v != nil {
		ip, _ = v.(string)
	}
	return userID, ip
}

// denied returns 429 with the full result payload; requires_verification
// tells the client whether to render a challenge or a hard limit message.
func denied(c *fiber.Ctx, result *dto.AtomicRequestResult) error {
	return shared.ResponseJSON(c, http.StatusTooManyRequests, result.Message, result)
}

// @Summary Extract video transcript
// @Description Extract the transcript of a short video. Consumes one quota unit up front; the unit is not refunded if extraction fails.
// @Tags transcript
// @Accept json
// @Produce json
// @Param request body dto.TranscriptRequest true "Video URL and optional CAPTCHA token"
// @Success 200 {object} shared.Response{data=dto.TranscriptResponse}
// @Failure 429 {object} shared.Response{data=dto.AtomicRequestResult}
// @Router /api/v1/transcript [post]
func (h *TranscriptHandler) ExtractTranscript(c *fiber.Ctx) error {
	var req dto.TranscriptRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request body")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	userID, ip := callerIdentity(c)
	outcome := h.quotaSvc.ProcessRequest(c.Context(), dto.QuotaRequest{
		UserID:       userID,
		IPAddress:    ip,
		Action:       shared.ActionTranscript,
		VideoURL:     req.URL,
		CaptchaToken: req.CaptchaToken,
	})
	if !outcome.Success {
		return denied(c, outcome)
	}

	transcript, err := h.transcriptSvc.Fetch(c.Context(), req.URL)
	if err != nil {
		// The reserved unit stays spent.
		h.quotaSvc.MarkOutcome(c.Context(), outcome.LogID, shared.OutcomeProviderFail)
		return err
	}

	if userID != "" && h.archiveSvc != nil && !transcript.Cached {
		key, archiveErr := h.archiveSvc.StoreTranscript(c.Context(), outcome.LogID, transcript)
		if archiveErr != nil {
			log.WithError(archiveErr).Warn("Failed to archive transcript")
		} else {
			h.quotaSvc.AttachArchiveKey(c.Context(), outcome.LogID, key)
		}
	}

	transcript.RemainingRequests = outcome.RemainingRequests
	return shared.ResponseJSON(c, http.StatusOK, outcome.Message, transcript)
}

// @Summary Summarize a transcript
// @Description Produce a short recap of a transcript. The quota unit is charged only after the summary succeeds.
// @Tags summary
// @Accept json
// @Produce json
// @Param request body dto.SummarizeRequest true "Transcript text and target language"
// @Success 200 {object} shared.Response{data=dto.SummarizeResponse}
// @Failure 429 {object} shared.Response{data=dto.AtomicRequestResult}
// @Router /api/v1/summarize [post]
func (h *TranscriptHandler) Summarize(c *fiber.Ctx) error {
	var req dto.SummarizeRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request body")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	language := req.Language
	if language == "" {
		language = "en"
	}

	userID, ip := callerIdentity(c)
	check := h.quotaSvc.CheckOnly(c.Context(), userID, ip)
	if !check.Success {
		return denied(c, check)
	}

	summary, err := h.summarySvc.Summarize(c.Context(), req.Transcript, language)
	if err != nil {
		// Nothing was charged; the caller can retry freely.
		return err
	}

	commit := h.quotaSvc.CommitUsage(c.Context(), userID, ip, shared.ActionSummary, req.VideoURL)

	return shared.ResponseJSON(c, http.StatusOK, "Summary generated", &dto.SummarizeResponse{
		Summary:           summary,
		Language:          language,
		RemainingRequests: commit.RemainingRequests,
	})
}
