package dto

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("video_url", validateVideoURL)
}

func GetValidator() *validator.Validate {
	return validate
}

// supportedPlatform maps a hostname to the platform identifier used in
// responses and archive keys. Unknown hosts are rejected before any quota
// unit is spent.
func supportedPlatform(hostname string) string {
	host := strings.ToLower(hostname)

	switch {
	case strings.Contains(host, "youtube.com"), strings.Contains(host, "youtu.be"):
		return "youtube"
	case strings.Contains(host, "tiktok.com"):
		return "tiktok"
	case strings.Contains(host, "instagram.com"):
		return "instagram"
	case strings.Contains(host, "facebook.com"), strings.Contains(host, "fb.watch"):
		return "facebook"
	case strings.Contains(host, "twitter.com"), host == "x.com", strings.HasSuffix(host, ".x.com"):
		return "twitter"
	}

	return ""
}

func validateVideoURL(fl validator.FieldLevel) bool {
	return DetectPlatform(fl.Field().String()) != ""
}

// DetectPlatform returns the platform for a video URL, or "" when the URL
// is malformed or the host is not a supported platform.
func DetectPlatform(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return supportedPlatform(u.Hostname())
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors"`
}

func FormatValidationErrors(err error) []ValidationError {
	var errors []ValidationError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			var message string

			switch fieldError.Tag() {
			case "required":
				message = fieldError.Field() + " is required"
			case "len":
				message = fieldError.Field() + " must be exactly " + fieldError.Param() + " characters"
			case "min":
				message = fieldError.Field() + " must be at least " + fieldError.Param() + " characters"
			case "max":
				message = fieldError.Field() + " must be at most " + fieldError.Param() + " characters"
			case "url":
				message = fieldError.Field() + " must be a valid URL"
			case "video_url":
				message = "Unsupported video URL. Supported platforms: YouTube, TikTok, Instagram, Facebook, Twitter/X"
			case "oneof":
				message = fieldError.Field() + " must be one of: " + fieldError.Param()
			default:
				message = fieldError.Field() + " is invalid"
			}

			errors = append(errors, ValidationError{
				Field:   fieldError.Field(),
				Message: message,
			})
		}
	}

	return errors
}

type Validator interface {
	Validate() error
}

func CreateValidationErrorResponse(err error) ValidationErrorResponse {
	return ValidationErrorResponse{
		Code:    400,
		Message: "Validation failed",
		Errors:  FormatValidationErrors(err),
	}
}
