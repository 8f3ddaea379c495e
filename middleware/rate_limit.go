package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/reel-recap/recap_api/shared"
)

// RateLimitMiddleware is a short-window burst limiter in front of the
// quota layer. It only smooths out rapid-fire clients; the daily
// accounting lives in the quota service.
type RateLimitMiddleware struct {
	context.DefaultService

	configs map[string]*burstConfig
	entries map[string]*burstEntry
	mutex   sync.Mutex

	closed chan struct{}
}

type burstConfig struct {
	MaxRequests int
	WindowSize  time.Duration
	BlockTime   time.Duration
}

type burstEntry struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

const RATE_LIMIT_MIDDLEWARE_SVC = "rate_limit"

func (svc *RateLimitMiddleware) Id() string {
	return RATE_LIMIT_MIDDLEWARE_SVC
}

func (svc *RateLimitMiddleware) Configure(ctx *context.Context) error {
	svc.entries = make(map[string]*burstEntry)
	svc.configs = map[string]*burstConfig{
		// Extraction endpoints hit paid providers
		"extract": {
			MaxRequests: 10,
			WindowSize:  time.Minute,
			BlockTime:   5 * time.Minute,
		},

		// General API calls per IP
		"api_general": {
			MaxRequests: 120,
			WindowSize:  time.Minute,
			BlockTime:   10 * time.Minute,
		},
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitMiddleware) Start() error {
	svc.closed = make(chan struct{})
	go svc.startCleanupJob()
	return nil
}

func (svc *RateLimitMiddleware) Shutdown() {
	close(svc.closed)
}

func (svc *RateLimitMiddleware) isAllowed(identifier, endpointType string) (bool, time.Time) {
	config, exists := svc.configs[endpointType]
	if !exists {
		return true, time.Time{}
	}

	now := time.Now()
	key := endpointType + ":" + identifier

	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	entry, found := svc.entries[key]
	if found && now.Before(entry.blockedUntil) {
		return false, entry.blockedUntil
	}

	if !found || now.Sub(entry.windowStart) >= config.WindowSize {
		svc.entries[key] = &burstEntry{count: 1, windowStart: now}
		return true, time.Time{}
	}

	if entry.count >= config.MaxRequests {
		entry.blockedUntil = now.Add(config.BlockTime)
		return false, entry.blockedUntil
	}

	entry.count++
	return true, time.Time{}
}

func (svc *RateLimitMiddleware) limit(endpointType, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowed, blockedUntil := svc.isAllowed(ClientIP(c), endpointType)
		if allowed {
			return c.Next()
		}

		retryAfter := int(time.Until(blockedUntil).Seconds())
		if retryAfter > 0 {
			c.Set("Retry-After", strconv.Itoa(retryAfter))
		}

		return shared.NewTooManyRequestsError(message, map[string]interface{}{
			"retry_after": retryAfter,
		})
	}
}

// IPRateLimit applies the general per-IP burst limit.
func (svc *RateLimitMiddleware) IPRateLimit() fiber.Handler {
	return svc.limit("api_general", "Too many requests. Please slow down.")
}

// ExtractRateLimit guards the provider-backed extraction endpoints.
func (svc *RateLimitMiddleware) ExtractRateLimit() fiber.Handler {
	return svc.limit("extract", "Too many extraction requests. Please wait before trying again.")
}

// startCleanupJob drops entries whose window and block have both lapsed.
func (svc *RateLimitMiddleware) startCleanupJob() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			svc.cleanup()
		case <-svc.closed:
			return
		}
	}
}

func (svc *RateLimitMiddleware) cleanup() {
	now := time.Now()
	removed := 0

	svc.mutex.Lock()
	for key, entry := range svc.entries {
		stale := now.Sub(entry.windowStart) > time.Hour && now.After(entry.blockedUntil)
		if stale {
			delete(svc.entries, key)
			removed++
		}
	}
	svc.mutex.Unlock()

	if removed > 0 {
		log.WithField("removed", removed).Debug("Burst limiter entries pruned")
	}
}
