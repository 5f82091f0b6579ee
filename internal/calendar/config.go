package calendar

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Override pins a date's event flags verbatim, beating every derivation
// rule. Used for exchange holiday shifts, auction weeks, rebalances.
type Override struct {
	Date  string   `yaml:"date" json:"date"`
	Flags []string `yaml:"flags" json:"flags"`
	Note  string   `yaml:"note" json:"note"`
}

// Config holds exchange holidays and per-date overrides.
type Config struct {
	Holidays  []string   `yaml:"holidays"`
	Overrides []Override `yaml:"overrides"`
}

// DefaultConfig returns an empty calendar: derivation rules only.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig reads holidays and overrides from a YAML file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse calendar config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid calendar config: %w", err)
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	for _, h := range cfg.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return fmt.Errorf("holiday %q is not YYYY-MM-DD", h)
		}
	}
	seen := make(map[string]bool, len(cfg.Overrides))
	for _, o := range cfg.Overrides {
		if _, err := time.Parse("2006-01-02", o.Date); err != nil {
			return fmt.Errorf("override date %q is not YYYY-MM-DD", o.Date)
		}
		if seen[o.Date] {
			return fmt.Errorf("duplicate override for %s", o.Date)
		}
		seen[o.Date] = true
		if len(o.Flags) == 0 {
			return fmt.Errorf("override for %s has no flags", o.Date)
		}
	}
	return nil
}
