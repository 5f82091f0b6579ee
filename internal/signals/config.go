package signals

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/macrobrief/macrobrief/internal/extract"
)

// Config holds the classifier thresholds. Noise floors are in contracts and
// differ per asset class: rates futures churn more than equity index futures,
// so the same raw delta means less there.
type Config struct {
	DirectionalCutoff float64            `yaml:"directional_cutoff"`
	HedgingCutoff     float64            `yaml:"hedging_cutoff"`
	NoiseFloors       map[string]float64 `yaml:"noise_floors"`
}

// DefaultConfig returns the production classifier thresholds.
func DefaultConfig() *Config {
	return &Config{
		DirectionalCutoff: 0.65,
		HedgingCutoff:     0.50,
		NoiseFloors: map[string]float64{
			string(extract.ClassEquity): 50000,
			string(extract.ClassRates):  75000,
			string(extract.ClassFX):     25000,
		},
	}
}

// NoiseFloor returns the floor for a class, zero when unconfigured.
func (c *Config) NoiseFloor(class extract.AssetClass) float64 {
	return c.NoiseFloors[string(class)]
}

// LoadConfig reads classifier thresholds from a YAML file, falling back to
// defaults when the path is empty.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signals config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse signals config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid signals config: %w", err)
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.HedgingCutoff < 0.5 || cfg.HedgingCutoff > 1.0 {
		return fmt.Errorf("hedging_cutoff must be within [0.5,1.0], got %f", cfg.HedgingCutoff)
	}
	if cfg.DirectionalCutoff < cfg.HedgingCutoff || cfg.DirectionalCutoff > 1.0 {
		return fmt.Errorf("directional_cutoff must be within [hedging_cutoff,1.0], got %f", cfg.DirectionalCutoff)
	}
	for class, floor := range cfg.NoiseFloors {
		if floor < 0 {
			return fmt.Errorf("noise floor for %s must not be negative, got %f", class, floor)
		}
	}
	return nil
}
