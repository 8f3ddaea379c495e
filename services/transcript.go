package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/reel-recap/recap_api/dto"
	"github.com/reel-recap/recap_api/shared"
)

// TranscriptService fetches short-video transcripts from the Supadata
// API. Responses are cached in Redis keyed by the normalized video URL,
// so repeat extractions of a viral clip skip the provider entirely.
type TranscriptService struct {
	appContext.DefaultService

	httpClient *http.Client
	apiURL     string
	apiKey     string

	redisSvc    *RedisService
	cacheExpiry time.Duration

	maxDurationSeconds int64
}

const TRANSCRIPT_SVC = "transcript_svc"

func (svc TranscriptService) Id() string {
	return TRANSCRIPT_SVC
}

func (svc *TranscriptService) Configure(ctx *appContext.Context) error {
	svc.httpClient = &http.Client{
		Timeout: 30 * time.Second,
	}
	svc.apiURL = "https://api.supadata.ai/v1/transcript"
	if u := os.Getenv("SUPADATA_API_URL"); u != "" {
		svc.apiURL = u
	}
	svc.apiKey = os.Getenv("SUPADATA_API_KEY")
	svc.cacheExpiry = 24 * time.Hour
	svc.maxDurationSeconds = 180
	return svc.DefaultService.Configure(ctx)
}

func (svc *TranscriptService) Start() error {
	svc.redisSvc, _ = svc.Service(REDIS_SVC).(*RedisService)
	if svc.apiKey == "" {
		log.Warn("SUPADATA_API_KEY not set, transcript extraction will fail")
	}
	return nil
}

type supadataSegment struct {
	Text     string `json:"text"`
	Offset   int64  `json:"offset"`
	Duration int64  `json:"duration"`
}

type supadataResponse struct {
	Content []supadataSegment `json:"content"`
	Lang    string            `json:"lang"`
}

// Fetch returns the transcript for the given video URL. Videos longer
// than the duration cap are rejected before any text is returned.
func (svc *TranscriptService) Fetch(ctx context.Context, videoURL string) (*dto.TranscriptResponse, error) {
	platform := dto.DetectPlatform(videoURL)
	if platform == "" {
		return nil, shared.NewBadRequestError(nil, "Unsupported video URL")
	}

	cacheKey := "transcript:" + videoURL
	if svc.redisSvc != nil {
		var cached dto.TranscriptResponse
		if err := svc.redisSvc.GetJSON(ctx, cacheKey, &cached); err == nil && len(cached.Transcript) > 0 {
			log.WithField("platform", platform).Debug("Transcript cache hit")
			cached.Cached = true
			return &cached, nil
		}
	}

	reqURL := fmt.Sprintf("%s?url=%s&text=false", svc.apiURL, url.QueryEscape(videoURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to build transcript request")
	}
	req.Header.Set("x-api-key", svc.apiKey)

	start := time.Now()
	resp, err := svc.httpClient.Do(req)
	if err != nil {
		log.WithError(err).WithField("platform", platform).Error("Transcript provider request failed")
		return nil, shared.NewBadGatewayError(err, "Transcript provider unavailable")
	}
	defer resp.Body.Close()
	observeProviderRequest("supadata", resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, shared.NewNotFoundError("No transcript available for this video")
	case resp.StatusCode != http.StatusOK:
		log.WithFields(log.Fields{
			"status":   resp.StatusCode,
			"platform": platform,
		}).Error("Transcript provider returned non-200 status")
		return nil, shared.NewBadGatewayError(nil, fmt.Sprintf("Transcript provider returned status %d", resp.StatusCode))
	}

	var raw supadataResponse
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&raw); err != nil {
		log.WithError(err).Error("Failed to decode transcript response")
		return nil, shared.NewBadGatewayError(err, "Transcript response unreadable")
	}
	if len(raw.Content) == 0 {
		return nil, shared.NewNotFoundError("No transcript available for this video")
	}

	var endMs int64
	segments := make([]dto.TranscriptSegment, 0, len(raw.Content))
	for _, seg := range raw.Content {
		if text := strings.TrimSpace(seg.Text); text != "" {
			segments = append(segments, dto.TranscriptSegment{
				Text:     text,
				Offset:   seg.Offset,
				Duration: seg.Duration,
			})
		}
		if end := seg.Offset + seg.Duration; end > endMs {
			endMs = end
		}
	}

	durationSeconds := endMs / 1000
	if durationSeconds > svc.maxDurationSeconds {
		return nil, shared.NewBadRequestError(nil,
			fmt.Sprintf("Video is too long (%ds). Maximum supported duration is %ds.", durationSeconds, svc.maxDurationSeconds))
	}

	result := &dto.TranscriptResponse{
		Transcript:      segments,
		Platform:        platform,
		DurationSeconds: int(durationSeconds),
	}

	if svc.redisSvc != nil {
		if err := svc.redisSvc.Set(ctx, cacheKey, result, svc.cacheExpiry); err != nil {
			log.WithError(err).Warn("Failed to cache transcript")
		}
	}
	return result, nil
}
