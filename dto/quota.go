package dto

import "time"

// Denial reasons surfaced to clients. The three cases map to different
// UI prompts (sign-in, CAPTCHA, retry tomorrow) and must stay distinct.
const (
	ReasonAnonymousExhausted     = "anonymous-exhausted"
	ReasonAuthenticatedExhausted = "authenticated-exhausted"
	ReasonVerificationRequired   = "verification-required"
	ReasonVerificationFailed     = "verification-failed"
)

// QuotaRequest identifies one inbound action to account for. UserID and
// IPAddress are never combined into one key; a user id takes precedence.
type QuotaRequest struct {
	UserID       string
	IPAddress    string
	Action       string
	VideoURL     string
	CaptchaToken string
}

// AtomicRequestResult is the outcome of a coordinated quota request.
// LogID points at the audit entry for the reserved unit and stays
// server-side.
type AtomicRequestResult struct {
	Success              bool   `json:"success"`
	RemainingRequests    int    `json:"remaining_requests"`
	IsAuthenticated      bool   `json:"is_authenticated"`
	RequiresVerification bool   `json:"requires_verification,omitempty"`
	Reason               string `json:"reason,omitempty"`
	Message              string `json:"message"`
	LogID                string `json:"-"`
}

// UsageStatsResponse is the read-only display surface. Fetching it never
// consumes a unit of quota.
type UsageStatsResponse struct {
	RemainingRequests int    `json:"remaining_requests"`
	TotalRequests     int    `json:"total_requests"`
	DailyLimit        int    `json:"daily_limit"`
	IsAuthenticated   bool   `json:"is_authenticated"`
	RequiresAuth      bool   `json:"requires_auth"`
	Message           string `json:"message"`
}

// UserUsageBreakdown is the authenticated-only split by action.
type UserUsageBreakdown struct {
	TranscriptCount   int       `json:"transcript_count"`
	SummaryCount      int       `json:"summary_count"`
	TotalUsage        int       `json:"total_usage"`
	RemainingRequests int       `json:"remaining_requests"`
	WindowStart       time.Time `json:"window_start"`
}

type UsageLogEntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	VideoURL   string    `json:"video_url"`
	Outcome    string    `json:"outcome"`
	ArchiveKey string    `json:"-"`
	ArchiveURL string    `json:"archive_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Entries []UsageLogEntry `json:"entries"`
}

type QuotaResetRequest struct {
	UserID    string `json:"user_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
}

type QuotaStatsResponse struct {
	AnonymousCounters int64     `json:"anonymous_counters"`
	UserCounters      int64     `json:"user_counters"`
	VerifiedIPs       int64     `json:"verified_ips"`
	LogEntries        int64     `json:"log_entries"`
	Timestamp         time.Time `json:"timestamp"`
}
