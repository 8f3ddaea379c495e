package dto

type TranscriptRequest struct {
	URL          string `json:"url" validate:"required,video_url"`
	CaptchaToken string `json:"captcha_token,omitempty"`
}

func (r TranscriptRequest) Validate() error {
	return GetValidator().Struct(r)
}

// TranscriptSegment is one timed caption line. Offset and Duration are
// milliseconds, matching the upstream provider.
type TranscriptSegment struct {
	Text     string `json:"text"`
	Offset   int64  `json:"offset"`
	Duration int64  `json:"duration"`
}

type TranscriptResponse struct {
	Transcript        []TranscriptSegment `json:"transcript"`
	Platform          string              `json:"platform"`
	DurationSeconds   int                 `json:"duration_seconds"`
	RemainingRequests int                 `json:"remaining_requests"`
	Cached            bool                `json:"cached,omitempty"`
}
