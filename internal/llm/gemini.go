package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// GeminiConfig holds the Gemini endpoint settings.
type GeminiConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	KeyEnvVar string `yaml:"key_env_var"`
}

// GeminiClient speaks the generateContent API.
type GeminiClient struct {
	cfg    GeminiConfig
	key    string
	guards guards
	http   *http.Client
	log    zerolog.Logger
}

// NewGeminiClient builds a guarded client.
func NewGeminiClient(cfg GeminiConfig, key string, g guards, log zerolog.Logger) *GeminiClient {
	return &GeminiClient{
		cfg:    cfg,
		key:    key,
		guards: g,
		http:   &http.Client{Timeout: 120 * time.Second},
		log:    log.With().Str("provider", "gemini").Str("model", cfg.Model).Logger(),
	}
}

func (c *GeminiClient) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one generateContent call through the breaker and limiter.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	return c.guards.execute(ctx, c.log, func(ctx context.Context) (string, error) {
		payload := geminiRequest{
			Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		}
		if req.System != "" {
			payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
		}
		payload.GenerationConfig.Temperature = req.Temperature
		payload.GenerationConfig.MaxOutputTokens = req.MaxTokens

		body, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("failed to encode gemini request: %w", err)
		}

		url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.key)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to build gemini request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return "", &retryableError{err: fmt.Errorf("gemini request failed: %w", err)}
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return "", &retryableError{err: fmt.Errorf("failed to read gemini response: %w", err)}
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", &retryableError{err: fmt.Errorf("gemini returned %d", resp.StatusCode)}
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("gemini returned %d: %s", resp.StatusCode, truncate(raw, 300))
		}

		var parsed geminiResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return "", fmt.Errorf("failed to decode gemini response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("gemini error: %s", parsed.Error.Message)
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("gemini response had no candidates")
		}

		var out bytes.Buffer
		for _, p := range parsed.Candidates[0].Content.Parts {
			out.WriteString(p.Text)
		}
		return out.String(), nil
	})
}
