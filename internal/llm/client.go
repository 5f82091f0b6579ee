// Package llm wraps the narrative-generation providers. The engine treats
// generators as untrusted: whatever comes back here still passes the scrub
// and audit layers before a reader sees it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Selection picks which providers a run uses.
type Selection string

const (
	SelectAll        Selection = "ALL"
	SelectOpenRouter Selection = "OPENROUTER"
	SelectGemini     Selection = "GEMINI"
	SelectNone       Selection = "NONE"
)

// Request is one completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Client is one narrative provider.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Config wires the provider stack. API keys come from the environment, not
// the file.
type Config struct {
	Selection      Selection        `yaml:"selection"`
	OpenRouter     OpenRouterConfig `yaml:"openrouter"`
	Gemini         GeminiConfig     `yaml:"gemini"`
	RetryMax       int              `yaml:"retry_max"`
	RetryBackoffMS int              `yaml:"retry_backoff_ms"`
	RatePerSec     float64          `yaml:"rate_per_sec"`
	RateBurst      int              `yaml:"rate_burst"`
}

// DefaultConfig returns the production provider settings.
func DefaultConfig() *Config {
	return &Config{
		Selection: SelectAll,
		OpenRouter: OpenRouterConfig{
			BaseURL:   "https://openrouter.ai/api/v1",
			Model:     "anthropic/claude-sonnet-4",
			KeyEnvVar: "OPENROUTER_API_KEY",
		},
		Gemini: GeminiConfig{
			BaseURL:   "https://generativelanguage.googleapis.com/v1beta",
			Model:     "gemini-2.5-pro",
			KeyEnvVar: "GEMINI_API_KEY",
		},
		RetryMax:       3,
		RetryBackoffMS: 2000,
		RatePerSec:     0.5,
		RateBurst:      1,
	}
}

// LoadConfig reads provider settings from a YAML file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read llm config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse llm config: %w", err)
	}
	switch strings.ToUpper(string(cfg.Selection)) {
	case string(SelectAll), string(SelectOpenRouter), string(SelectGemini), string(SelectNone):
		cfg.Selection = Selection(strings.ToUpper(string(cfg.Selection)))
	default:
		return nil, fmt.Errorf("invalid llm config: unknown selection %q", cfg.Selection)
	}
	return cfg, nil
}

// Select builds the client set for a selection. Providers without an API
// key in the environment are skipped with a log line, never an error: a
// keyless environment just produces a ground-truth-only run.
func Select(cfg *Config, log zerolog.Logger) []Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var clients []Client
	wantOR := cfg.Selection == SelectAll || cfg.Selection == SelectOpenRouter
	wantGem := cfg.Selection == SelectAll || cfg.Selection == SelectGemini

	if wantOR {
		if key := os.Getenv(cfg.OpenRouter.KeyEnvVar); key != "" {
			clients = append(clients, NewOpenRouterClient(cfg.OpenRouter, key, newGuards(cfg, "openrouter"), log))
		} else {
			log.Warn().Str("provider", "openrouter").Msg("no API key in environment, provider skipped")
		}
	}
	if wantGem {
		if key := os.Getenv(cfg.Gemini.KeyEnvVar); key != "" {
			clients = append(clients, NewGeminiClient(cfg.Gemini, key, newGuards(cfg, "gemini"), log))
		} else {
			log.Warn().Str("provider", "gemini").Msg("no API key in environment, provider skipped")
		}
	}
	return clients
}

// guards bundles the per-provider circuit breaker and rate limiter.
type guards struct {
	breaker      *gobreaker.CircuitBreaker
	limiter      *rate.Limiter
	retryMax     int
	retryBackoff time.Duration
}

func newGuards(cfg *Config, name string) guards {
	return guards{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     120 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 4
			},
		}),
		limiter:      rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(cfg.RateBurst, 1)),
		retryMax:     max(cfg.RetryMax, 1),
		retryBackoff: time.Duration(max(cfg.RetryBackoffMS, 1)) * time.Millisecond,
	}
}

// retryable reports whether a provider error is worth another attempt.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// execute runs one guarded, retried provider call.
func (g guards) execute(ctx context.Context, log zerolog.Logger, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.retryMax; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * g.retryBackoff
			log.Debug().Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying provider call")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}

		out, err := g.breaker.Execute(func() (interface{}, error) {
			return call(ctx)
		})
		if err == nil {
			return out.(string), nil
		}
		lastErr = err

		var re *retryableError
		if !errors.As(err, &re) {
			return "", err
		}
	}
	return "", fmt.Errorf("provider call failed after %d attempts: %w", g.retryMax, lastErr)
}
