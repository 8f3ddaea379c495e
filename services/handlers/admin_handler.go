package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/reel-recap/recap_api/dto"
	"github.com/reel-recap/recap_api/shared"
)

type AdminHandler struct {
	quotaSvc QuotaServiceInterface
}

func NewAdminHandler(quotaSvc QuotaServiceInterface) *AdminHandler {
	return &AdminHandler{
		quotaSvc: quotaSvc,
	}
}

// @Summary Quota statistics (Admin)
// @Description Counter, verification and audit-log totals across the store.
// @Tags admin
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Admin Bearer Token" default(Bearer <admin_token>)
// @Success 200 {object} shared.Response{data=dto.QuotaStatsResponse}
// @Router /api/v1/admin/quota/stats [get]
func (h *AdminHandler) GetQuotaStats(c *fiber.Ctx) error {
	stats, err := h.quotaSvc.Stats(c.Context())
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Quota statistics", stats)
}

// @Summary Reset identity quota (Admin)
// @Description Drop the counter (and verification state) for a user id or IP address.
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Admin Bearer Token" default(Bearer <admin_token>)
// @Param resetRequest body dto.QuotaResetRequest true "Identity to reset"
// @Success 200 {object} shared.Response{data=nil}
// @Router /api/v1/admin/quota/reset [post]
func (h *AdminHandler) ResetQuota(c *fiber.Ctx) error {
	var req dto.QuotaResetRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request body")
	}

	if req.UserID == "" && req.IPAddress == "" {
		return shared.NewBadRequestError(nil, "A user id or an IP address is required")
	}

	if err := h.quotaSvc.ResetIdentity(c.Context(), req.UserID, req.IPAddress); err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Quota reset", nil)
}

// @Summary Prune stale counters (Admin)
// @Description Delete counters whose window lapsed long ago. The audit log is not touched.
// @Tags admin
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Admin Bearer Token" default(Bearer <admin_token>)
// @Success 200 {object} shared.Response{data=nil}
// @Router /api/v1/admin/quota/cleanup [post]
func (h *AdminHandler) CleanupQuota(c *fiber.Ctx) error {
	if err := h.quotaSvc.Cleanup(c.Context()); err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Stale counters pruned", nil)
}
