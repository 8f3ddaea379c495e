package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberSwagger "github.com/gofiber/swagger"

	docs "github.com/reel-recap/recap_api/docs"
	"github.com/reel-recap/recap_api/services/handlers"
	"github.com/reel-recap/recap_api/shared"
)

type HttpService struct {
	context.DefaultService

	port   int
	server *fiber.App

	adminKey string
}

// authProvider is implemented by the auth middleware service. Declared
// here so the HTTP layer can resolve it through the service container
// without importing the middleware package.
type authProvider interface {
	RequiredAuth() fiber.Handler
	OptionalAuth() fiber.Handler
}

type burstLimiter interface {
	IPRateLimit() fiber.Handler
	ExtractRateLimit() fiber.Handler
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *context.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}
	svc.adminKey = os.Getenv("ADMIN_API_KEY")

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	quotaSvc := svc.Service(QUOTA_SVC).(*QuotaService)
	transcriptSvc := svc.Service(TRANSCRIPT_SVC).(*TranscriptService)
	summarySvc := svc.Service(SUMMARY_SVC).(*SummaryService)
	archiveSvc, _ := svc.Service(ARCHIVE_SVC).(*ArchiveService)
	auth := svc.Service("auth").(authProvider)
	limiter := svc.Service("rate_limit").(burstLimiter)

	docs.SwaggerInfo.BasePath = ""

	app := fiber.New(fiber.Config{
		ErrorHandler: svc.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	monitoringSvc, ok := svc.Service(MONITORING_SVC).(*MonitoringService)
	if ok {
		app.Use(MonitoringMiddleware(monitoringSvc))
	}

	app.Get("/ping", svc.ping)
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	transcriptHandler := handlers.NewTranscriptHandler(quotaSvc, transcriptSvc, summarySvc, archiveSvc)
	usageHandler := handlers.NewUsageHandler(quotaSvc, archiveSvc)
	adminHandler := handlers.NewAdminHandler(quotaSvc)

	v1 := app.Group("/api/v1", limiter.IPRateLimit())
	v1.Get("/ping", svc.ping)

	v1.Post("/transcript", limiter.ExtractRateLimit(), auth.OptionalAuth(), transcriptHandler.ExtractTranscript)
	v1.Post("/summarize", limiter.ExtractRateLimit(), auth.OptionalAuth(), transcriptHandler.Summarize)

	v1.Get("/usage", auth.OptionalAuth(), usageHandler.GetUsage)
	v1.Get("/usage/breakdown", auth.RequiredAuth(), usageHandler.GetBreakdown)
	v1.Get("/history", auth.RequiredAuth(), usageHandler.GetHistory)
	v1.Get("/history/:logId/transcript", auth.RequiredAuth(), usageHandler.GetArchivedTranscript)

	admin := v1.Group("/admin", auth.RequiredAuth(), svc.requireAdminKey)
	admin.Get("/quota/stats", adminHandler.GetQuotaStats)
	admin.Post("/quota/reset", adminHandler.ResetQuota)
	admin.Post("/quota/cleanup", adminHandler.CleanupQuota)

	app.Use(func(c *fiber.Ctx) error {
		return shared.ResponseJSON(c, http.StatusNotFound, "Page not found", nil)
	})

	svc.server = app
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")

	return shared.ResponseJSON(c, http.StatusOK, "Success", "pong")
}

// requireAdminKey guards management endpoints with a shared secret. An
// unset key disables the whole admin surface.
func (svc *HttpService) requireAdminKey(c *fiber.Ctx) error {
	if svc.adminKey == "" || c.Get("X-Admin-Key") != svc.adminKey {
		return shared.NewForbiddenError("Admin access denied", nil)
	}
	return c.Next()
}

func (svc *HttpService) handleError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	if appErr, ok := shared.GetAppError(err); ok {
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	return shared.ResponseInternalError(c, err)
}
