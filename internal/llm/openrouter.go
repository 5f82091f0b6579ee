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

// OpenRouterConfig holds the OpenRouter endpoint settings.
type OpenRouterConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	KeyEnvVar string `yaml:"key_env_var"`
}

// OpenRouterClient speaks the OpenAI-style chat completions API.
type OpenRouterClient struct {
	cfg    OpenRouterConfig
	key    string
	guards guards
	http   *http.Client
	log    zerolog.Logger
}

// NewOpenRouterClient builds a guarded client.
func NewOpenRouterClient(cfg OpenRouterConfig, key string, g guards, log zerolog.Logger) *OpenRouterClient {
	return &OpenRouterClient{
		cfg:    cfg,
		key:    key,
		guards: g,
		http:   &http.Client{Timeout: 120 * time.Second},
		log:    log.With().Str("provider", "openrouter").Str("model", cfg.Model).Logger(),
	}
}

func (c *OpenRouterClient) Name() string { return "openrouter" }

type orMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type orRequest struct {
	Model       string      `json:"model"`
	Messages    []orMessage `json:"messages"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Temperature float64     `json:"temperature"`
}

type orResponse struct {
	Choices []struct {
		Message orMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one chat completion through the breaker and limiter.
func (c *OpenRouterClient) Complete(ctx context.Context, req Request) (string, error) {
	return c.guards.execute(ctx, c.log, func(ctx context.Context) (string, error) {
		messages := make([]orMessage, 0, 2)
		if req.System != "" {
			messages = append(messages, orMessage{Role: "system", Content: req.System})
		}
		messages = append(messages, orMessage{Role: "user", Content: req.Prompt})

		body, err := json.Marshal(orRequest{
			Model:       c.cfg.Model,
			Messages:    messages,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
		if err != nil {
			return "", fmt.Errorf("failed to encode openrouter request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to build openrouter request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.key)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return "", &retryableError{err: fmt.Errorf("openrouter request failed: %w", err)}
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return "", &retryableError{err: fmt.Errorf("failed to read openrouter response: %w", err)}
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", &retryableError{err: fmt.Errorf("openrouter returned %d", resp.StatusCode)}
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("openrouter returned %d: %s", resp.StatusCode, truncate(raw, 300))
		}

		var parsed orResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return "", fmt.Errorf("failed to decode openrouter response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("openrouter error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("openrouter response had no choices")
		}
		return parsed.Choices[0].Message.Content, nil
	})
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
