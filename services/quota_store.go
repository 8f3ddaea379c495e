package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reel-recap/recap_api/dto"
	"github.com/reel-recap/recap_api/model"
	"github.com/reel-recap/recap_api/shared"
)

// Identity is the quota key for a request. User id and IP are disjoint
// namespaces; a user counter and an IP counter never merge, even when the
// same person holds both.
type Identity struct {
	UserID string
	IP     string
}

func (id Identity) Class() string {
	if id.UserID != "" {
		return ClassAuthenticated
	}
	return ClassAnonymous
}

func (id Identity) Key() string {
	if id.UserID != "" {
		return id.UserID
	}
	return id.IP
}

// ReserveResult is the strongly typed outcome of a store mutation.
type ReserveResult struct {
	Allowed   bool
	Remaining int
	WasReset  bool
	LogID     string
	Message   string
	Reason    string
}

// CounterSnapshot is a read-only view of a counter for display decisions.
type CounterSnapshot struct {
	Count       int
	WindowStart time.Time
	Found       bool
}

// QuotaStore is the durable counter store. AtomicReserve and
// ReserveVerified are the only mutation primitives safe under concurrent
// callers sharing an identity: the check and the increment happen in one
// storage-level transaction, never as two application round trips.
// CommitIncrement is the deliberate exception used by the
// check-then-commit call pattern, which accepts over-limit-by-one races.
type QuotaStore interface {
	AtomicReserve(ctx context.Context, id Identity, action, videoURL string, policy QuotaPolicy) (*ReserveResult, error)
	ReserveVerified(ctx context.Context, id Identity, action, videoURL string, policy QuotaPolicy) (*ReserveResult, error)
	CommitIncrement(ctx context.Context, id Identity, action, videoURL string, policy QuotaPolicy) (*ReserveResult, error)
	Snapshot(ctx context.Context, id Identity) (CounterSnapshot, error)
	UserUsage(ctx context.Context, userID string) (*model.UserUsage, error)

	HasActiveVerification(ctx context.Context, ip string) (bool, error)
	MarkVerified(ctx context.Context, ip string) error

	SetLogArchiveKey(ctx context.Context, logID, archiveKey string) error
	MarkLogOutcome(ctx context.Context, logID, outcome string) error
	RecentLogs(ctx context.Context, userID string, limit int) ([]model.UsageLog, error)

	Stats(ctx context.Context) (*dto.QuotaStatsResponse, error)
	ResetIdentity(ctx context.Context, id Identity) error
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// GormQuotaStore implements QuotaStore over GORM. Atomicity comes from a
// serializing transaction per call: upsert-on-absent, row lock on
// Postgres, lazy window reset, then reject or increment. SQLite
// serializes writers on its own, so the explicit lock is Postgres-only.
type GormQuotaStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormQuotaStore(db *gorm.DB) *GormQuotaStore {
	return &GormQuotaStore{db: db, now: time.Now}
}

func (s *GormQuotaStore) lockClause(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (s *GormQuotaStore) AtomicReserve(ctx context.Context, id Identity, action, videoURL string, policy QuotaPolicy) (*ReserveResult, error) {
	if id.Class() == ClassAuthenticated {
		return s.reserveAuthenticated(ctx, id, action, videoURL, policy, false)
	}
	return s.reserveAnonymous(ctx, id, action, videoURL, policy, ClassAnonymous)
}

// ReserveVerified processes a CAPTCHA-verified anonymous request: the
// counter is still incremented for accounting, the limit check is
// bypassed, and one unit of the verified cycle is consumed. Charge and
// cycle consume share one transaction so concurrent verified requests
// cannot overrun the cycle before the flag drops.
func (s *GormQuotaStore) ReserveVerified(ctx context.Context, id Identity, action, videoURL string, policy QuotaPolicy) (*ReserveResult, error) {
	now := s.now()
	var result *ReserveResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.reserveAnonymousTx(tx, now, id, action, videoURL, policy, ClassCaptchaVerified)
		if err != nil {
			return err
		}
		return s.consumeVerifiedUnitTx(tx, now, id.IP, policy.CaptchaCycleRequests)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *GormQuotaStore) reserveAuthenticated(ctx context.Context, id Identity, action, videoURL string, policy QuotaPolicy, skipCheck bool) (*ReserveResult, error) {
	now := s.now()
	var result *ReserveResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.UserUsage{
			UserID:      id.UserID,
			WindowStart: now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}).Error; err != nil {
			return err
		}

		var usage model.UserUsage
		if err := s.lockClause(tx).First(&usage, "user_id = ?", id.UserID).Error; err != nil {
			return err
		}

		decision := policy.Decide(ClassAuthenticated, usage.TotalCount(), now.Sub(usage.WindowStart))
		if decision.WasReset {
			usage.TranscriptCount = 0
			usage.SummaryCount = 0
			usage.WindowStart = now
		}

		if !skipCheck && !decision.Allowed {
			result = deniedResult(decision)
			if decision.WasReset {
				usage.UpdatedAt = now
				return tx.Save(&usage).Error
			}
			return nil
		}

		if action == shared.ActionSummary {
			usage.SummaryCount++
		} else {
			usage.TranscriptCount++
		}
		usage.UpdatedAt = now
		if err := tx.Save(&usage).Error; err != nil {
			return err
		}

		logID, err := appendLogTx(tx, &id, action, videoURL, now)
		if err != nil {
			return err
		}

		remaining := policy.AuthenticatedLimit - usage.TotalCount()
		if remaining < 0 {
			remaining = 0
		}
		result = &ReserveResult{
			Allowed:   true,
			Remaining: remaining,
			WasReset:  decision.WasReset,
			LogID:     logID,
			Message:   allowedMessage(ClassAuthenticated, remaining, decision.WasReset),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *GormQuotaStore) reserveAnonymous(ctx context.Context, id Identity, action, videoURL string, policy QuotaPolicy, class string) (*ReserveResult, error) {
	now := s.now()
	var result *ReserveResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.reserveAnonymousTx(tx, now, id, action, videoURL, policy, class)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *GormQuotaStore) reserveAnonymousTx(tx *gorm.DB, now time.Time, id Identity, action, videoURL string, policy QuotaPolicy, class string) (*ReserveResult, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.AnonymousUsage{
		IPAddress:   id.IP,
		WindowStart: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}).Error; err != nil {
		return nil, err
	}

	var usage model.AnonymousUsage
	if err := s.lockClause(tx).First(&usage, "ip_address = ?", id.IP).Error; err != nil {
		return nil, err
	}

	decision := policy.Decide(class, usage.RequestCount, now.Sub(usage.WindowStart))
	if decision.WasReset {
		usage.RequestCount = 0
		usage.WindowStart = now
	}

	if !decision.Allowed {
		if decision.WasReset {
			usage.UpdatedAt = now
			if err := tx.Save(&usage).Error; err != nil {
				return nil, err
			}
		}
		return deniedResult(decision), nil
	}

	usage.RequestCount++
	usage.UpdatedAt = now
	if err := tx.Save(&usage).Error; err != nil {
		return nil, err
	}

	logID, err := appendLogTx(tx, &id, action, videoURL, now)
	if err != nil {
		return nil, err
	}

	return &ReserveResult{
		Allowed:   true,
		Remaining: decision.Remaining,
		WasReset:  decision.WasReset,
		LogID:     logID,
		Message:   decision.Message,
	}, nil
}

// CommitIncrement is the second phase of the check-then-commit pattern:
// charge the identity after the downstream call succeeded, without
// re-checking the limit.
func (s *GormQuotaStore) CommitIncrement(ctx context.Context, id Identity, action, videoURL string, policy QuotaPolicy) (*ReserveResult, error) {
	if id.Class() == ClassAuthenticated {
		return s.reserveAuthenticated(ctx, id, action, videoURL, policy, true)
	}
	return s.reserveAnonymous(ctx, id, action, videoURL, policy, ClassCaptchaVerified)
}

func (s *GormQuotaStore) Snapshot(ctx context.Context, id Identity) (CounterSnapshot, error) {
	if id.Class() == ClassAuthenticated {
		var usage model.UserUsage
		err := s.db.WithContext(ctx).First(&usage, "user_id = ?", id.UserID).Error
		if err == gorm.ErrRecordNotFound {
			return CounterSnapshot{}, nil
		}
		if err != nil {
			return CounterSnapshot{}, err
		}
		return CounterSnapshot{Count: usage.TotalCount(), WindowStart: usage.WindowStart, Found: true}, nil
	}

	var usage model.AnonymousUsage
	err := s.db.WithContext(ctx).First(&usage, "ip_address = ?", id.IP).Error
	if err == gorm.ErrRecordNotFound {
		return CounterSnapshot{}, nil
	}
	if err != nil {
		return CounterSnapshot{}, err
	}
	return CounterSnapshot{Count: usage.RequestCount, WindowStart: usage.WindowStart, Found: true}, nil
}

func (s *GormQuotaStore) UserUsage(ctx context.Context, userID string) (*model.UserUsage, error) {
	var usage model.UserUsage
	err := s.db.WithContext(ctx).First(&usage, "user_id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

func (s *GormQuotaStore) HasActiveVerification(ctx context.Context, ip string) (bool, error) {
	var v model.IPVerification
	err := s.db.WithContext(ctx).First(&v, "ip_address = ?", ip).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v.IsVerified, nil
}

func (s *GormQuotaStore) MarkVerified(ctx context.Context, ip string) error {
	now := s.now()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip_address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_verified":            true,
			"verified_request_count": 0,
			"verified_at":            now,
			"updated_at":             now,
		}),
	}).Create(&model.IPVerification{
		IPAddress:  ip,
		IsVerified: true,
		VerifiedAt: &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}).Error
}

// consumeVerifiedUnitTx spends one request of the verified cycle inside
// the caller's transaction. When the cycle is used up the flag drops back
// and the next near-limit request has to solve a fresh challenge.
func (s *GormQuotaStore) consumeVerifiedUnitTx(tx *gorm.DB, now time.Time, ip string, cycleRequests int) error {
	var v model.IPVerification
	err := s.lockClause(tx).First(&v, "ip_address = ?", ip).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	v.VerifiedRequestCount++
	if cycleRequests > 0 && v.VerifiedRequestCount >= cycleRequests {
		v.IsVerified = false
		v.VerifiedRequestCount = 0
	}
	v.UpdatedAt = now
	return tx.Save(&v).Error
}

func appendLogTx(tx *gorm.DB, id *Identity, action, videoURL string, now time.Time) (string, error) {
	entry := &model.UsageLog{
		ID:        uuid.New().String(),
		IPAddress: id.IP,
		Action:    action,
		VideoURL:  videoURL,
		Outcome:   shared.OutcomeAccepted,
		CreatedAt: now,
	}
	if id.UserID != "" {
		entry.UserID = &id.UserID
	}
	if err := tx.Create(entry).Error; err != nil {
		return "", err
	}
	return entry.ID, nil
}

func (s *GormQuotaStore) SetLogArchiveKey(ctx context.Context, logID, archiveKey string) error {
	return s.db.WithContext(ctx).Model(&model.UsageLog{}).
		Where("id = ?", logID).
		Update("archive_key", archiveKey).Error
}

func (s *GormQuotaStore) MarkLogOutcome(ctx context.Context, logID, outcome string) error {
	return s.db.WithContext(ctx).Model(&model.UsageLog{}).
		Where("id = ?", logID).
		Update("outcome", outcome).Error
}

func (s *GormQuotaStore) RecentLogs(ctx context.Context, userID string, limit int) ([]model.UsageLog, error) {
	var logs []model.UsageLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (s *GormQuotaStore) Stats(ctx context.Context) (*dto.QuotaStatsResponse, error) {
	stats := &dto.QuotaStatsResponse{Timestamp: s.now()}

	db := s.db.WithContext(ctx)
	if err := db.Model(&model.AnonymousUsage{}).Count(&stats.AnonymousCounters).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.UserUsage{}).Count(&stats.UserCounters).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.IPVerification{}).Where("is_verified = ?", true).Count(&stats.VerifiedIPs).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.UsageLog{}).Count(&stats.LogEntries).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *GormQuotaStore) ResetIdentity(ctx context.Context, id Identity) error {
	if id.Class() == ClassAuthenticated {
		return s.db.WithContext(ctx).Delete(&model.UserUsage{}, "user_id = ?", id.UserID).Error
	}
	if err := s.db.WithContext(ctx).Delete(&model.AnonymousUsage{}, "ip_address = ?", id.IP).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&model.IPVerification{}, "ip_address = ?", id.IP).Error
}

// Cleanup drops counters whose window expired long ago. The audit log is
// never pruned here.
func (s *GormQuotaStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	cutoff := s.now().Add(-olderThan)

	db := s.db.WithContext(ctx)
	if err := db.Delete(&model.AnonymousUsage{}, "window_start < ?", cutoff).Error; err != nil {
		return err
	}
	if err := db.Delete(&model.UserUsage{}, "window_start < ?", cutoff).Error; err != nil {
		return err
	}
	return db.Delete(&model.IPVerification{}, "updated_at < ? AND is_verified = ?", cutoff, false).Error
}

func deniedResult(d Decision) *ReserveResult {
	return &ReserveResult{
		Allowed:   false,
		Remaining: 0,
		WasReset:  d.WasReset,
		Reason:    d.Reason,
		Message:   d.Message,
	}
}
