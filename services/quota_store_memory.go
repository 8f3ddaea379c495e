package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reel-recap/recap_api/dto"
	"github.com/reel-recap/recap_api/model"
	"github.com/reel-recap/recap_api/shared"
)

// MemoryQuotaStore is a mutex-guarded in-process QuotaStore. A process-local
// map cannot back a multi-instance deployment, so this implementation is
// for tests and single-process development runs only; production uses
// GormQuotaStore.
type MemoryQuotaStore struct {
	mu            sync.Mutex
	anonymous     map[string]*model.AnonymousUsage
	users         map[string]*model.UserUsage
	verifications map[string]*model.IPVerification
	logs          []*model.UsageLog

	clock func() time.Time
}

func NewMemoryQuotaStore() *MemoryQuotaStore {
	return &MemoryQuotaStore{
		anonymous:     make(map[string]*model.AnonymousUsage),
		users:         make(map[string]*model.UserUsage),
		verifications: make(map[string]*model.IPVerification),
		clock:         time.Now,
	}
}

// SetClock overrides the time source. Test hook for window-expiry cases.
func (s *MemoryQuotaStore) SetClock(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = fn
}

func (s *MemoryQuotaStore) AtomicReserve(_ context.Context, id Identity, action, videoURL string, policy QuotaPolicy) (*ReserveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.Class() == ClassAuthenticated {
		return s.reserveUserLocked(id, action, videoURL, policy, false), nil
	}
	return s.reserveAnonymousLocked(id, action, videoURL, policy, ClassAnonymous), nil
}

func (s *MemoryQuotaStore) ReserveVerified(_ context.Context, id Identity, action, videoURL string, policy QuotaPolicy) (*ReserveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.reserveAnonymousLocked(id, action, videoURL, policy, ClassCaptchaVerified)

	if v, ok := s.verifications[id.IP]; ok {
		v.VerifiedRequestCount++
		if policy.CaptchaCycleRequests > 0 && v.VerifiedRequestCount >= policy.CaptchaCycleRequests {
			v.IsVerified = false
			v.VerifiedRequestCount = 0
		}
		v.UpdatedAt = s.clock()
	}
	return result, nil
}

func (s *MemoryQuotaStore) CommitIncrement(_ context.Context, id Identity, action, videoURL string, policy QuotaPolicy) (*ReserveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.Class() == ClassAuthenticated {
		return s.reserveUserLocked(id, action, videoURL, policy, true), nil
	}
	return s.reserveAnonymousLocked(id, action, videoURL, policy, ClassCaptchaVerified), nil
}

func (s *MemoryQuotaStore) reserveAnonymousLocked(id Identity, action, videoURL string, policy QuotaPolicy, class string) *ReserveResult {
	now := s.clock()

	usage, ok := s.anonymous[id.IP]
	if !ok {
		usage = &model.AnonymousUsage{IPAddress: id.IP, WindowStart: now, CreatedAt: now}
		s.anonymous[id.IP] = usage
	}

	decision := policy.Decide(class, usage.RequestCount, now.Sub(usage.WindowStart))
	if decision.WasReset {
		usage.RequestCount = 0
		usage.WindowStart = now
	}

	if !decision.Allowed {
		return deniedResult(decision)
	}

	usage.RequestCount++
	usage.UpdatedAt = now
	logID := s.appendLogLocked(id, action, videoURL, now)

	return &ReserveResult{
		Allowed:   true,
		Remaining: decision.Remaining,
		WasReset:  decision.WasReset,
		LogID:     logID,
		Message:   decision.Message,
	}
}

func (s *MemoryQuotaStore) reserveUserLocked(id Identity, action, videoURL string, policy QuotaPolicy, skipCheck bool) *ReserveResult {
	now := s.clock()

	usage, ok := s.users[id.UserID]
	if !ok {
		usage = &model.UserUsage{UserID: id.UserID, WindowStart: now, CreatedAt: now}
		s.users[id.UserID] = usage
	}

	decision := policy.Decide(ClassAuthenticated, usage.TotalCount(), now.Sub(usage.WindowStart))
	if decision.WasReset {
		usage.TranscriptCount = 0
		usage.SummaryCount = 0
		usage.WindowStart = now
	}

	if !skipCheck && !decision.Allowed {
		return deniedResult(decision)
	}

	if action == shared.ActionSummary {
		usage.SummaryCount++
	} else {
		usage.TranscriptCount++
	}
	usage.UpdatedAt = now
	logID := s.appendLogLocked(id, action, videoURL, now)

	remaining := policy.AuthenticatedLimit - usage.TotalCount()
	if remaining < 0 {
		remaining = 0
	}
	return &ReserveResult{
		Allowed:   true,
		Remaining: remaining,
		WasReset:  decision.WasReset,
		LogID:     logID,
		Message:   allowedMessage(ClassAuthenticated, remaining, decision.WasReset),
	}
}

func (s *MemoryQuotaStore) appendLogLocked(id Identity, action, videoURL string, now time.Time) string {
	entry := &model.UsageLog{
		ID:        uuid.New().String(),
		IPAddress: id.IP,
		Action:    action,
		VideoURL:  videoURL,
		Outcome:   shared.OutcomeAccepted,
		CreatedAt: now,
	}
	if id.UserID != "" {
		uid := id.UserID
		entry.UserID = &uid
	}
	s.logs = append(s.logs, entry)
	return entry.ID
}

func (s *MemoryQuotaStore) Snapshot(_ context.Context, id Identity) (CounterSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.Class() == ClassAuthenticated {
		if usage, ok := s.users[id.UserID]; ok {
			return CounterSnapshot{Count: usage.TotalCount(), WindowStart: usage.WindowStart, Found: true}, nil
		}
		return CounterSnapshot{}, nil
	}
	if usage, ok := s.anonymous[id.IP]; ok {
		return CounterSnapshot{Count: usage.RequestCount, WindowStart: usage.WindowStart, Found: true}, nil
	}
	return CounterSnapshot{}, nil
}

func (s *MemoryQuotaStore) UserUsage(_ context.Context, userID string) (*model.UserUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *usage
	return &cp, nil
}

func (s *MemoryQuotaStore) HasActiveVerification(_ context.Context, ip string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.verifications[ip]; ok {
		return v.IsVerified, nil
	}
	return false, nil
}

func (s *MemoryQuotaStore) MarkVerified(_ context.Context, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	v, ok := s.verifications[ip]
	if !ok {
		v = &model.IPVerification{IPAddress: ip, CreatedAt: now}
		s.verifications[ip] = v
	}
	v.IsVerified = true
	v.VerifiedRequestCount = 0
	v.VerifiedAt = &now
	v.UpdatedAt = now
	return nil
}

func (s *MemoryQuotaStore) SetLogArchiveKey(_ context.Context, logID, archiveKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.logs {
		if entry.ID == logID {
			entry.ArchiveKey = archiveKey
			return nil
		}
	}
	return nil
}

func (s *MemoryQuotaStore) MarkLogOutcome(_ context.Context, logID, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.logs {
		if entry.ID == logID {
			entry.Outcome = outcome
			return nil
		}
	}
	return nil
}

func (s *MemoryQuotaStore) RecentLogs(_ context.Context, userID string, limit int) ([]model.UsageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var logs []model.UsageLog
	for _, entry := range s.logs {
		if entry.UserID != nil && *entry.UserID == userID {
			logs = append(logs, *entry)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].CreatedAt.After(logs[j].CreatedAt) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *MemoryQuotaStore) Stats(_ context.Context) (*dto.QuotaStatsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &dto.QuotaStatsResponse{
		AnonymousCounters: int64(len(s.anonymous)),
		UserCounters:      int64(len(s.users)),
		LogEntries:        int64(len(s.logs)),
		Timestamp:         s.clock(),
	}
	for _, v := range s.verifications {
		if v.IsVerified {
			stats.VerifiedIPs++
		}
	}
	return stats, nil
}

func (s *MemoryQuotaStore) ResetIdentity(_ context.Context, id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.Class() == ClassAuthenticated {
		delete(s.users, id.UserID)
		return nil
	}
	delete(s.anonymous, id.IP)
	delete(s.verifications, id.IP)
	return nil
}

func (s *MemoryQuotaStore) Cleanup(_ context.Context, olderThan time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock().Add(-olderThan)
	for ip, usage := range s.anonymous {
		if usage.WindowStart.Before(cutoff) {
			delete(s.anonymous, ip)
		}
	}
	for uid, usage := range s.users {
		if usage.WindowStart.Before(cutoff) {
			delete(s.users, uid)
		}
	}
	for ip, v := range s.verifications {
		if !v.IsVerified && v.UpdatedAt.Before(cutoff) {
			delete(s.verifications, ip)
		}
	}
	return nil
}
