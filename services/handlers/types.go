package handlers

import (
	"context"
	"time"

	"github.com/reel-recap/recap_api/dto"
)

type QuotaServiceInterface interface {
	ProcessRequest(ctx context.Context, opts dto.QuotaRequest) *dto.AtomicRequestResult
	CheckOnly(ctx context.Context, userID, ip string) *dto.AtomicRequestResult
	CommitUsage(ctx context.Context, userID, ip, action, videoURL string) *dto.AtomicRequestResult
	StatsForDisplay(ctx context.Context, userID, ip string) *dto.UsageStatsResponse
	UserBreakdown(ctx context.Context, userID string) (*dto.UserUsageBreakdown, error)
	MarkOutcome(ctx context.Context, logID, outcome string)
	AttachArchiveKey(ctx context.Context, logID, archiveKey string)
	RecentLogs(ctx context.Context, userID string, limit int) ([]dto.UsageLogEntry, error)
	Stats(ctx context.Context) (*dto.QuotaStatsResponse, error)
	ResetIdentity(ctx context.Context, userID, ip string) error
	Cleanup(ctx context.Context) error
}

type TranscriptServiceInterface interface {
	Fetch(ctx context.Context, videoURL string) (*dto.TranscriptResponse, error)
}

type SummaryServiceInterface interface {
	Summarize(ctx context.Context, transcript, language string) (string, error)
}

type ArchiveServiceInterface interface {
	StoreTranscript(ctx context.Context, logID string, transcript *dto.TranscriptResponse) (string, error)
	TranscriptURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}
