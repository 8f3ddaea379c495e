package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
)

// TurnstileService verifies Cloudflare Turnstile challenge tokens. A miss
// or provider outage counts as a failed verification; the quota flow
// never grants the elevated allowance on an unverifiable token.
type TurnstileService struct {
	appContext.DefaultService

	httpClient *http.Client
	verifyURL  string
	secretKey  string
}

const TURNSTILE_SVC = "turnstile_svc"

func (svc TurnstileService) Id() string {
	return TURNSTILE_SVC
}

func (svc *TurnstileService) Configure(ctx *appContext.Context) error {
	svc.httpClient = &http.Client{
		Timeout: 10 * time.Second,
	}
	svc.verifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	if u := os.Getenv("TURNSTILE_VERIFY_URL"); u != "" {
		svc.verifyURL = u
	}
	svc.secretKey = os.Getenv("TURNSTILE_SECRET_KEY")
	return svc.DefaultService.Configure(ctx)
}

func (svc *TurnstileService) Start() error {
	if svc.secretKey == "" {
		log.Warn("TURNSTILE_SECRET_KEY not set, CAPTCHA verification will reject all tokens")
	}
	return nil
}

func (svc *TurnstileService) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return fmt.Errorf("empty verification token")
	}
	if svc.secretKey == "" {
		return fmt.Errorf("verification not configured")
	}

	form := url.Values{}
	form.Set("secret", svc.secretKey)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Error("Turnstile verification request failed")
		return fmt.Errorf("verification service unavailable")
	}
	defer resp.Body.Close()
	observeProviderRequest("turnstile", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Error("Turnstile returned non-200 status")
		return fmt.Errorf("verification service returned status %d", resp.StatusCode)
	}

	var result struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.WithError(err).Error("Failed to decode Turnstile response")
		return fmt.Errorf("verification response unreadable")
	}

	if !result.Success {
		return fmt.Errorf("token rejected: %s", strings.Join(result.ErrorCodes, ","))
	}
	return nil
}
