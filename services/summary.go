package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/reel-recap/recap_api/shared"
)

// SummaryService condenses a transcript into a short recap via the
// DeepSeek chat completion API.
type SummaryService struct {
	appContext.DefaultService

	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
}

const SUMMARY_SVC = "summary_svc"

// languagePrompts maps ISO 639-1 codes to the summarization instruction
// for that language. Unknown codes fall back to English.
var languagePrompts = map[string]string{
	"en": "Summarize the following video transcript in English. Keep it concise, capture the key points, and write at most 4 sentences.",
	"vi": "Tóm tắt bản ghi video sau bằng tiếng Việt. Ngắn gọn, nêu các ý chính, tối đa 4 câu.",
	"es": "Resume la siguiente transcripción de video en español. Sé conciso, captura los puntos clave y escribe como máximo 4 oraciones.",
	"fr": "Résumez la transcription vidéo suivante en français. Soyez concis, retenez les points clés et écrivez au maximum 4 phrases.",
	"de": "Fassen Sie das folgende Videotranskript auf Deutsch zusammen. Kurz und prägnant, die Kernpunkte, höchstens 4 Sätze.",
	"ja": "次の動画の文字起こしを日本語で要約してください。簡潔に、要点を押さえ、最大4文で書いてください。",
	"ko": "다음 동영상 대본을 한국어로 요약하세요. 간결하게 핵심만 담아 최대 4문장으로 작성하세요.",
	"zh": "请用中文总结以下视频字幕。保持简洁，抓住要点，最多写4句话。",
}

func (svc SummaryService) Id() string {
	return SUMMARY_SVC
}

func (svc *SummaryService) Configure(ctx *appContext.Context) error {
	svc.httpClient = &http.Client{
		Timeout: 60 * time.Second,
	}
	svc.apiURL = "https://api.deepseek.com/chat/completions"
	if u := os.Getenv("DEEPSEEK_API_URL"); u != "" {
		svc.apiURL = u
	}
	svc.apiKey = os.Getenv("DEEPSEEK_API_KEY")
	svc.model = "deepseek-chat"
	return svc.DefaultService.Configure(ctx)
}

func (svc *SummaryService) Start() error {
	if svc.apiKey == "" {
		log.Warn("DEEPSEEK_API_KEY not set, summarization will fail")
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize produces a recap of the transcript in the requested language.
func (svc *SummaryService) Summarize(ctx context.Context, transcript, language string) (string, error) {
	prompt, ok := languagePrompts[strings.ToLower(language)]
	if !ok {
		prompt = languagePrompts["en"]
	}

	body, err := sonic.Marshal(chatRequest{
		Model: svc.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: transcript},
		},
		MaxTokens:   1000,
		Temperature: 0.7,
	})
	if err != nil {
		return "", shared.NewInternalError(err, "Failed to build summarization request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", shared.NewInternalError(err, "Failed to build summarization request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+svc.apiKey)

	start := time.Now()
	resp, err := svc.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Error("Summarization provider request failed")
		return "", shared.NewBadGatewayError(err, "Summarization provider unavailable")
	}
	defer resp.Body.Close()
	observeProviderRequest("deepseek", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Error("Summarization provider returned non-200 status")
		return "", shared.NewBadGatewayError(nil, fmt.Sprintf("Summarization provider returned status %d", resp.StatusCode))
	}

	var raw chatResponse
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&raw); err != nil {
		log.WithError(err).Error("Failed to decode summarization response")
		return "", shared.NewBadGatewayError(err, "Summarization response unreadable")
	}
	if len(raw.Choices) == 0 || strings.TrimSpace(raw.Choices[0].Message.Content) == "" {
		return "", shared.NewBadGatewayError(nil, "Summarization provider returned an empty response")
	}

	return strings.TrimSpace(raw.Choices[0].Message.Content), nil
}
