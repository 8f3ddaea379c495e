package dto

type SummarizeRequest struct {
	Transcript   string `json:"transcript" validate:"required"`
	Language     string `json:"language,omitempty" validate:"omitempty,len=2"`
	VideoURL     string `json:"video_url,omitempty" validate:"omitempty,video_url"`
	CaptchaToken string `json:"captcha_token,omitempty"`
}

func (r SummarizeRequest) Validate() error {
	return GetValidator().Struct(r)
}

type SummarizeResponse struct {
	Summary           string `json:"summary"`
	Language          string `json:"language"`
	RemainingRequests int    `json:"remaining_requests"`
}
