package main

import (
	"os"

	"github.com/alphabatem/common/context"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/reel-recap/recap_api/middleware"
	"github.com/reel-recap/recap_api/services"
)

// @title Reel Recap API
// @version 1.0
// @description Transcript extraction and summarization for short videos, with per-identity usage quotas.
// @BasePath /
func main() {
	err := godotenv.Load()
	if err != nil {
		log.Warn().Err(err).Msg("No .env file loaded")
	}

	svcs := []context.Service{
		&services.JWTService{},
		&services.RedisService{},
	}

	if os.Getenv("DB_DRIVER") == "sqlite" {
		svcs = append(svcs, &services.SqliteService{})
	} else {
		svcs = append(svcs, &services.PostgresService{})
	}

	svcs = append(svcs,
		&services.TurnstileService{},
		&services.TranscriptService{},
		&services.SummaryService{},
		&services.ArchiveService{},
		&services.QuotaService{},
		&middleware.AuthMiddleware{},
		&middleware.RateLimitMiddleware{},
		&services.MonitoringService{},
		&services.HttpService{},
	)

	ctx, err := context.NewCtx(svcs...)
	if err != nil {
		log.Fatal().Err(err)
		return
	}

	err = ctx.Run()
	if err != nil {
		log.Fatal().Err(err)
		return
	}
}
