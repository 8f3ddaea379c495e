package shared

const (
	UserID   = "user_id"
	ClientIP = "client_ip"

	ActionTranscript = "transcript"
	ActionSummary    = "summary"

	OutcomeAccepted     = "accepted"
	OutcomeProviderFail = "provider_fail"
)
