package services

import (
	"fmt"
	"time"

	"github.com/reel-recap/recap_api/dto"
)

// Identity classes the policy engine distinguishes.
const (
	ClassAnonymous       = "anonymous"
	ClassAuthenticated   = "authenticated"
	ClassCaptchaVerified = "captcha_verified"
)

// QuotaPolicy holds the configured limits. All values come from the
// environment; nothing here is hardcoded at call sites.
type QuotaPolicy struct {
	AnonymousLimit     int
	AuthenticatedLimit int
	ResetInterval      time.Duration

	// CaptchaThreshold is the remaining-quota level at or below which an
	// anonymous caller must present a verification token.
	CaptchaThreshold int

	// CaptchaCycleRequests is how many elevated requests a successful
	// verification grants before the flag cycles back.
	CaptchaCycleRequests int
}

// Decision is the outcome of a single policy evaluation.
type Decision struct {
	Allowed   bool
	Remaining int
	WasReset  bool
	Reason    string
	Message   string
}

func (p QuotaPolicy) LimitFor(class string) int {
	if class == ClassAuthenticated {
		return p.AuthenticatedLimit
	}
	return p.AnonymousLimit
}

// Decide evaluates one prospective request. Pure: callers supply the
// current counter and window age, the engine never touches storage.
//
// A request arriving exactly at window expiry resets first and then
// evaluates, so the resetting request itself runs against the fresh
// window and Remaining reflects the unit it consumes.
func (p QuotaPolicy) Decide(class string, currentCount int, windowAge time.Duration) Decision {
	wasReset := false
	if windowAge >= p.ResetInterval {
		currentCount = 0
		wasReset = true
	}

	if class == ClassCaptchaVerified {
		// Elevated allowance: a verified request is never denied by the
		// counter; remaining is reported against the anonymous limit,
		// floored at zero.
		remaining := p.AnonymousLimit - currentCount - 1
		if remaining < 0 {
			remaining = 0
		}
		return Decision{
			Allowed:   true,
			Remaining: remaining,
			WasReset:  wasReset,
			Message:   "Verified request accepted",
		}
	}

	limit := p.LimitFor(class)
	remaining := limit - currentCount

	if remaining <= 0 {
		return Decision{
			Allowed:   false,
			Remaining: 0,
			WasReset:  wasReset,
			Reason:    denialReason(class),
			Message:   denialMessage(class),
		}
	}

	return Decision{
		Allowed:   true,
		Remaining: remaining - 1,
		WasReset:  wasReset,
		Message:   allowedMessage(class, remaining-1, wasReset),
	}
}

// DecideForDisplay evaluates the counter without charging for an upcoming
// request, so the UI shows exactly the value the next reserve would
// decrement from.
func (p QuotaPolicy) DecideForDisplay(class string, currentCount int, windowAge time.Duration) Decision {
	wasReset := false
	if windowAge >= p.ResetInterval {
		currentCount = 0
		wasReset = true
	}

	limit := p.LimitFor(class)
	remaining := limit - currentCount

	if remaining <= 0 {
		return Decision{
			Allowed:   false,
			Remaining: 0,
			WasReset:  wasReset,
			Reason:    denialReason(class),
			Message:   denialMessage(class),
		}
	}

	return Decision{
		Allowed:   true,
		Remaining: remaining,
		WasReset:  wasReset,
		Message:   allowedMessage(class, remaining, false),
	}
}

// RequiresVerification reports whether an anonymous identity with the
// given remaining quota must solve a challenge before reserving.
func (p QuotaPolicy) RequiresVerification(class string, remaining int) bool {
	return class == ClassAnonymous && remaining <= p.CaptchaThreshold
}

func denialReason(class string) string {
	if class == ClassAuthenticated {
		return dto.ReasonAuthenticatedExhausted
	}
	return dto.ReasonAnonymousExhausted
}

func denialMessage(class string) string {
	if class == ClassAuthenticated {
		return "Daily limit reached. Please try again tomorrow!"
	}
	return "Free limit reached. Sign in or complete verification to continue."
}

func allowedMessage(class string, remaining int, wasReset bool) string {
	if class == ClassAuthenticated {
		if wasReset {
			return fmt.Sprintf("Daily limit reset! %d requests remaining", remaining)
		}
		return fmt.Sprintf("%d requests remaining today", remaining)
	}
	if wasReset {
		return fmt.Sprintf("Daily limit reset! %d free requests remaining", remaining)
	}
	return fmt.Sprintf("%d free requests remaining", remaining)
}
