// Package fetch downloads the source documents (dashboard and bulletin
// PDFs) for a run. A failed source never kills the run; it becomes a
// data-quality note and the affected metrics surface as unavailable.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"gopkg.in/yaml.v3"
)

// Source is one upstream document.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Kind string `yaml:"kind"` // dashboard | bulletin
}

// Config holds the source list and download settings.
type Config struct {
	Sources   []Source `yaml:"sources"`
	OutputDir string   `yaml:"output_dir"`
	TimeoutS  int      `yaml:"timeout_seconds"`
}

// DefaultConfig returns an empty source list writing to ./artifacts.
func DefaultConfig() *Config {
	return &Config{OutputDir: "artifacts", TimeoutS: 60}
}

// LoadConfig reads the source list from a YAML file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sources config: %w", err)
	}
	for _, s := range cfg.Sources {
		if s.Name == "" || s.URL == "" {
			return nil, fmt.Errorf("invalid sources config: source needs name and url")
		}
		if s.Kind != "dashboard" && s.Kind != "bulletin" {
			return nil, fmt.Errorf("invalid sources config: source %q has unknown kind %q", s.Name, s.Kind)
		}
	}
	return cfg, nil
}

// Artifact is one downloaded document.
type Artifact struct {
	Source    Source    `json:"source"`
	Path      string    `json:"path"`
	Bytes     int64     `json:"bytes"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Client downloads source documents behind a shared circuit breaker.
type Client struct {
	cfg     *Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewClient wires a download client.
func NewClient(cfg *Config, log zerolog.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutS) * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "source-fetch",
			Timeout: 90 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		log: log.With().Str("component", "fetch").Logger(),
	}
}

// DownloadAll fetches every configured source, continuing past individual
// failures. The returned notes feed the bundle's data-quality list.
func (c *Client) DownloadAll(ctx context.Context) ([]Artifact, []string) {
	artifacts := make([]Artifact, 0, len(c.cfg.Sources))
	var notes []string
	for _, src := range c.cfg.Sources {
		art, err := c.Download(ctx, src)
		if err != nil {
			c.log.Warn().Err(err).Str("source", src.Name).Msg("source download failed")
			notes = append(notes, fmt.Sprintf("source %s unavailable: %v", src.Name, err))
			continue
		}
		c.log.Info().Str("source", src.Name).Int64("bytes", art.Bytes).Msg("source downloaded")
		artifacts = append(artifacts, art)
	}
	return artifacts, notes
}

// Download fetches one source document to the output directory.
func (c *Client) Download(ctx context.Context, src Source) (Artifact, error) {
	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(c.cfg.OutputDir, src.Name+".pdf")

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("User-Agent", "macrobrief/1.0")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("source returned %d", resp.StatusCode)
		}

		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create artifact file: %w", err)
		}
		defer f.Close()
		n, err := io.Copy(f, resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to write artifact: %w", err)
		}
		return n, nil
	})
	if err != nil {
		return Artifact{}, err
	}

	return Artifact{
		Source:    src,
		Path:      path,
		Bytes:     result.(int64),
		FetchedAt: time.Now().UTC(),
	}, nil
}
