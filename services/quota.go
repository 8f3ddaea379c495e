package services

import (
	"context"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/reel-recap/recap_api/dto"
)

// QuotaService is the request coordinator: it resolves identity, runs the
// policy engine against the store in one atomic step, and drives the
// CAPTCHA sub-flow for anonymous callers near their limit.
//
// Transcript extraction uses the reserve-first pattern: the unit is
// charged before the provider call and is not refunded on provider
// failure or client abort. Summaries use check-then-commit, accepting the
// over-limit-by-one race for that low-abuse-value action.
type QuotaService struct {
	appContext.DefaultService

	policy     QuotaPolicy
	failClosed bool

	store      QuotaStore
	captcha    CaptchaVerifier
	classifyDB func(error) error
}

// CaptchaVerifier is the pass/fail contract with the external challenge
// provider. The coordinator never sees the provider's wire protocol.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

const QUOTA_SVC = "quota_svc"

func (svc QuotaService) Id() string {
	return QUOTA_SVC
}

func (svc *QuotaService) Configure(ctx *appContext.Context) error {
	svc.policy = QuotaPolicy{
		AnonymousLimit:       envInt("ANONYMOUS_LIMIT", 10),
		AuthenticatedLimit:   envInt("AUTHENTICATED_DAILY_LIMIT", 20),
		ResetInterval:        time.Duration(envInt("RESET_INTERVAL_HOURS", 24)) * time.Hour,
		CaptchaThreshold:     envInt("CAPTCHA_THRESHOLD", 1),
		CaptchaCycleRequests: envInt("CAPTCHA_CYCLE_REQUESTS", 5),
	}
	svc.failClosed = os.Getenv("QUOTA_FAIL_MODE") == "closed"

	return svc.DefaultService.Configure(ctx)
}

func (svc *QuotaService) Start() error {
	if svc.store == nil {
		if os.Getenv("DB_DRIVER") == "sqlite" {
			ds := svc.Service(SQLITE_SVC).(*SqliteService)
			svc.store = NewGormQuotaStore(ds.Db())
			svc.classifyDB = ds.HandleError
		} else {
			ds := svc.Service(POSTGRES_SVC).(*PostgresService)
			svc.store = NewGormQuotaStore(ds.Db())
			svc.classifyDB = ds.HandleError
		}
	}
	if svc.captcha == nil {
		svc.captcha = svc.Service(TURNSTILE_SVC).(*TurnstileService)
	}

	log.WithFields(log.Fields{
		"anonymous_limit":     svc.policy.AnonymousLimit,
		"authenticated_limit": svc.policy.AuthenticatedLimit,
		"reset_interval":      svc.policy.ResetInterval,
		"fail_mode":           map[bool]string{true: "closed", false: "open"}[svc.failClosed],
	}).Info("Quota service started")
	return nil
}

func (svc *QuotaService) Policy() QuotaPolicy {
	return svc.policy
}

// ProcessRequest is the reserve-first entry point. Exactly one unit is
// reserved when the result is successful; the caller proceeds to the
// provider only on success and the unit is kept on provider failure.
func (svc *QuotaService) ProcessRequest(ctx context.Context, opts dto.QuotaRequest) *dto.AtomicRequestResult {
	id := Identity{UserID: opts.UserID, IP: opts.IPAddress}

	if id.Class() == ClassAnonymous {
		outcome, handled := svc.verificationGate(ctx, id, opts)
		if handled {
			return outcome
		}
	}

	var (
		result *ReserveResult
		err    error
	)
	if id.Class() == ClassAnonymous && svc.hasActiveVerification(ctx, id.IP) {
		result, err = svc.store.ReserveVerified(ctx, id, opts.Action, opts.VideoURL, svc.policy)
	} else {
		result, err = svc.store.AtomicReserve(ctx, id, opts.Action, opts.VideoURL, svc.policy)
	}
	if err != nil {
		return svc.storeFailure(id, err)
	}

	observeQuotaDecision(id.Class(), result.Allowed)

	return &dto.AtomicRequestResult{
		Success:           result.Allowed,
		RemainingRequests: result.Remaining,
		IsAuthenticated:   id.Class() == ClassAuthenticated,
		Reason:            result.Reason,
		Message:           result.Message,
		LogID:             result.LogID,
	}
}

// verificationGate enforces the CAPTCHA sub-flow for anonymous callers.
// Returns (outcome, true) when the request is settled here: either a
// challenge is demanded (no unit consumed) or the presented token failed.
func (svc *QuotaService) verificationGate(ctx context.Context, id Identity, opts dto.QuotaRequest) (*dto.AtomicRequestResult, bool) {
	snap, err := svc.store.Snapshot(ctx, id)
	if err != nil {
		return svc.storeFailure(id, err), true
	}

	windowAge := time.Duration(0)
	if snap.Found {
		windowAge = time.Since(snap.WindowStart)
	}
	display := svc.policy.DecideForDisplay(ClassAnonymous, snap.Count, windowAge)

	if !svc.policy.RequiresVerification(ClassAnonymous, display.Remaining) {
		return nil, false
	}

	verified := svc.hasActiveVerification(ctx, id.IP)
	if verified {
		return nil, false
	}

	if opts.CaptchaToken == "" {
		observeQuotaDecision(ClassAnonymous, false)
		return &dto.AtomicRequestResult{
			Success:              false,
			RemainingRequests:    display.Remaining,
			RequiresVerification: true,
			Reason:               dto.ReasonVerificationRequired,
			Message:              "Please complete the verification challenge to continue",
		}, true
	}

	if err := svc.captcha.Verify(ctx, opts.CaptchaToken, id.IP); err != nil {
		log.WithError(err).WithField("ip", id.IP).Warn("CAPTCHA verification rejected")
		observeQuotaDecision(ClassAnonymous, false)
		return &dto.AtomicRequestResult{
			Success:              false,
			RemainingRequests:    display.Remaining,
			RequiresVerification: true,
			Reason:               dto.ReasonVerificationFailed,
			Message:              "Verification failed. Please try again.",
		}, true
	}

	if err := svc.store.MarkVerified(ctx, id.IP); err != nil {
		return svc.storeFailure(id, err), true
	}
	return nil, false
}

func (svc *QuotaService) hasActiveVerification(ctx context.Context, ip string) bool {
	verified, err := svc.store.HasActiveVerification(ctx, ip)
	if err != nil {
		log.WithError(err).WithField("ip", ip).Error("Verification state lookup failed")
		return false
	}
	return verified
}

// CheckOnly is phase one of the check-then-commit pattern: a read-only
// policy evaluation, no unit consumed.
func (svc *QuotaService) CheckOnly(ctx context.Context, userID, ip string) *dto.AtomicRequestResult {
	id := Identity{UserID: userID, IP: ip}

	snap, err := svc.store.Snapshot(ctx, id)
	if err != nil {
		return svc.storeFailure(id, err)
	}

	windowAge := time.Duration(0)
	if snap.Found {
		windowAge = time.Since(snap.WindowStart)
	}
	decision := svc.policy.DecideForDisplay(id.Class(), snap.Count, windowAge)

	return &dto.AtomicRequestResult{
		Success:           decision.Allowed,
		RemainingRequests: decision.Remaining,
		IsAuthenticated:   id.Class() == ClassAuthenticated,
		Reason:            decision.Reason,
		Message:           decision.Message,
	}
}

// CommitUsage is phase two: charge the identity after the provider call
// succeeded. Runs unchecked, so two racing requests can overshoot the
// limit by one.
func (svc *QuotaService) CommitUsage(ctx context.Context, userID, ip, action, videoURL string) *dto.AtomicRequestResult {
	id := Identity{UserID: userID, IP: ip}

	result, err := svc.store.CommitIncrement(ctx, id, action, videoURL, svc.policy)
	if err != nil {
		return svc.storeFailure(id, err)
	}

	observeQuotaDecision(id.Class(), true)
	return &dto.AtomicRequestResult{
		Success:           true,
		RemainingRequests: result.Remaining,
		IsAuthenticated:   id.Class() == ClassAuthenticated,
		Message:           result.Message,
		LogID:             result.LogID,
	}
}

// StatsForDisplay reuses the policy decision without consuming a unit, so
// the UI shows exactly what the next reserve would enforce.
func (svc *QuotaService) StatsForDisplay(ctx context.Context, userID, ip string) *dto.UsageStatsResponse {
	id := Identity{UserID: userID, IP: ip}
	limit := svc.policy.LimitFor(id.Class())

	snap, err := svc.store.Snapshot(ctx, id)
	if err != nil {
		log.WithError(err).WithField("identity", id.Key()).Error("Usage stats lookup failed")
		return &dto.UsageStatsResponse{
			RemainingRequests: limit,
			DailyLimit:        limit,
			IsAuthenticated:   id.Class() == ClassAuthenticated,
			Message:           "Usage check temporarily unavailable",
		}
	}

	windowAge := time.Duration(0)
	if snap.Found {
		windowAge = time.Since(snap.WindowStart)
	}
	decision := svc.policy.DecideForDisplay(id.Class(), snap.Count, windowAge)

	total := limit - decision.Remaining
	return &dto.UsageStatsResponse{
		RemainingRequests: decision.Remaining,
		TotalRequests:     total,
		DailyLimit:        limit,
		IsAuthenticated:   id.Class() == ClassAuthenticated,
		RequiresAuth:      id.Class() == ClassAnonymous && decision.Remaining <= 0,
		Message:           decision.Message,
	}
}

// UserBreakdown splits an authenticated user's window usage by action.
func (svc *QuotaService) UserBreakdown(ctx context.Context, userID string) (*dto.UserUsageBreakdown, error) {
	usage, err := svc.store.UserUsage(ctx, userID)
	if err != nil {
		return nil, svc.dbErr(err)
	}
	if usage == nil {
		return &dto.UserUsageBreakdown{
			RemainingRequests: svc.policy.AuthenticatedLimit,
		}, nil
	}

	decision := svc.policy.DecideForDisplay(ClassAuthenticated, usage.TotalCount(), time.Since(usage.WindowStart))
	breakdown := &dto.UserUsageBreakdown{
		TranscriptCount:   usage.TranscriptCount,
		SummaryCount:      usage.SummaryCount,
		TotalUsage:        usage.TotalCount(),
		RemainingRequests: decision.Remaining,
		WindowStart:       usage.WindowStart,
	}
	if decision.WasReset {
		breakdown.TranscriptCount = 0
		breakdown.SummaryCount = 0
		breakdown.TotalUsage = 0
	}
	return breakdown, nil
}

// MarkOutcome records the provider result on the audit log entry. The
// reserved unit is never refunded; this is bookkeeping only.
func (svc *QuotaService) MarkOutcome(ctx context.Context, logID, outcome string) {
	if logID == "" {
		return
	}
	if err := svc.store.MarkLogOutcome(ctx, logID, outcome); err != nil {
		log.WithError(err).WithField("log_id", logID).Warn("Failed to record usage outcome")
	}
}

func (svc *QuotaService) AttachArchiveKey(ctx context.Context, logID, archiveKey string) {
	if logID == "" || archiveKey == "" {
		return
	}
	if err := svc.store.SetLogArchiveKey(ctx, logID, archiveKey); err != nil {
		log.WithError(err).WithField("log_id", logID).Warn("Failed to attach archive key")
	}
}

func (svc *QuotaService) RecentLogs(ctx context.Context, userID string, limit int) ([]dto.UsageLogEntry, error) {
	logs, err := svc.store.RecentLogs(ctx, userID, limit)
	if err != nil {
		return nil, svc.dbErr(err)
	}

	entries := make([]dto.UsageLogEntry, 0, len(logs))
	for _, entry := range logs {
		entries = append(entries, dto.UsageLogEntry{
			ID:         entry.ID,
			Action:     entry.Action,
			VideoURL:   entry.VideoURL,
			Outcome:    entry.Outcome,
			ArchiveKey: entry.ArchiveKey,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return entries, nil
}

func (svc *QuotaService) Stats(ctx context.Context) (*dto.QuotaStatsResponse, error) {
	stats, err := svc.store.Stats(ctx)
	return stats, svc.dbErr(err)
}

func (svc *QuotaService) ResetIdentity(ctx context.Context, userID, ip string) error {
	return svc.dbErr(svc.store.ResetIdentity(ctx, Identity{UserID: userID, IP: ip}))
}

func (svc *QuotaService) Cleanup(ctx context.Context) error {
	// Counters untouched for twice the reset interval are dead weight.
	return svc.dbErr(svc.store.Cleanup(ctx, 2*svc.policy.ResetInterval))
}

// storeFailure applies the configured failure mode. Fail-open mirrors the
// availability-over-strictness choice: a storage outage should not lock
// out legitimate users, so the request passes with a single-unit
// allowance and an error-severity log line for the operators.
func (svc *QuotaService) storeFailure(id Identity, err error) *dto.AtomicRequestResult {
	log.WithError(svc.dbErr(err)).WithFields(log.Fields{
		"identity": id.Key(),
		"class":    id.Class(),
	}).Error("Quota store unavailable")
	observeStoreFailure()

	if svc.failClosed {
		return &dto.AtomicRequestResult{
			Success:           false,
			RemainingRequests: 0,
			IsAuthenticated:   id.Class() == ClassAuthenticated,
			Message:           "Service temporarily unavailable. Please try again.",
		}
	}
	return &dto.AtomicRequestResult{
		Success:           true,
		RemainingRequests: 1,
		IsAuthenticated:   id.Class() == ClassAuthenticated,
		Message:           "Usage check temporarily unavailable",
	}
}

// dbErr runs a store error through the backing database service's
// classifier so callers see typed errors instead of raw driver strings.
func (svc *QuotaService) dbErr(err error) error {
	if err == nil || svc.classifyDB == nil {
		return err
	}
	return svc.classifyDB(err)
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}
