package model

import "time"

// AnonymousUsage is the quota counter for an IP-keyed identity.
// Created lazily on the first request from an IP, reset lazily when
// the rolling window expires. Never merged with user counters.
type AnonymousUsage struct {
	IPAddress    string    `json:"ip_address" gorm:"primaryKey;size:64;not null"`
	RequestCount int       `json:"request_count" gorm:"default:0;not null"`
	WindowStart  time.Time `json:"window_start" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"not null"`
}

// UserUsage is the quota counter for an authenticated identity.
// Policy decisions use TranscriptCount + SummaryCount; the split only
// exists so the dashboard can break usage down by action.
type UserUsage struct {
	UserID          string    `json:"user_id" gorm:"primaryKey;size:64;not null"`
	TranscriptCount int       `json:"transcript_count" gorm:"default:0;not null"`
	SummaryCount    int       `json:"summary_count" gorm:"default:0;not null"`
	WindowStart     time.Time `json:"window_start" gorm:"not null"`
	CreatedAt       time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"not null"`
}

func (u *UserUsage) TotalCount() int {
	return u.TranscriptCount + u.SummaryCount
}

// UsageLog is the audit trail. One row per accepted request; only the
// outcome and archive key are updated after insert, and the policy
// engine never reads it.
type UsageLog struct {
	ID         string    `json:"id" gorm:"primaryKey;type:text;not null"`
	UserID     *string   `json:"user_id,omitempty" gorm:"index;size:64"`
	IPAddress  string    `json:"ip_address" gorm:"index;size:64;not null"`
	Action     string    `json:"action" gorm:"size:20;not null"`
	VideoURL   string    `json:"video_url" gorm:"type:text;not null"`
	Outcome    string    `json:"outcome" gorm:"size:20;not null"`
	ArchiveKey string    `json:"archive_key,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null;index"`
}

// IPVerification tracks the CAPTCHA cycle for an anonymous identity.
// Deliberately separate from AnonymousUsage: the verified-request counter
// only decides when to re-challenge, it is not a quota counter.
type IPVerification struct {
	IPAddress            string     `json:"ip_address" gorm:"primaryKey;size:64;not null"`
	IsVerified           bool       `json:"is_verified" gorm:"default:false;not null"`
	VerifiedRequestCount int        `json:"verified_request_count" gorm:"default:0;not null"`
	VerifiedAt           *time.Time `json:"verified_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time  `json:"updated_at" gorm:"not null"`
}
