package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the per-category formula parameters. The defaults encode the
// production bands; overrides come from config/scoring.yaml.
type Config struct {
	Liquidity    LiquidityParams    `yaml:"liquidity"`
	Valuation    ValuationParams    `yaml:"valuation"`
	Inflation    InflationParams    `yaml:"inflation"`
	Credit       CreditParams       `yaml:"credit"`
	Growth       GrowthParams       `yaml:"growth"`
	RiskAppetite RiskAppetiteParams `yaml:"risk_appetite"`
}

type LiquidityParams struct {
	Base            float64 `yaml:"base"`
	SpreadAnchor    float64 `yaml:"spread_anchor"`
	SpreadWeight    float64 `yaml:"spread_weight"`
	RealYieldAnchor float64 `yaml:"real_yield_anchor"`
	RealYieldWeight float64 `yaml:"real_yield_weight"`
}

type ValuationParams struct {
	Base     float64 `yaml:"base"`
	PEAnchor float64 `yaml:"pe_anchor"`
	PEWeight float64 `yaml:"pe_weight"`
}

type InflationParams struct {
	Base            float64 `yaml:"base"`
	BreakevenAnchor float64 `yaml:"breakeven_anchor"`
	BreakevenWeight float64 `yaml:"breakeven_weight"`
}

type CreditParams struct {
	Base         float64 `yaml:"base"`
	SpreadAnchor float64 `yaml:"spread_anchor"`
	SpreadWeight float64 `yaml:"spread_weight"`
	Floor        float64 `yaml:"floor"`
}

type GrowthParams struct {
	Base        float64 `yaml:"base"`
	CurveAnchor float64 `yaml:"curve_anchor"`
	CurveWeight float64 `yaml:"curve_weight"`
}

type RiskAppetiteParams struct {
	Ceiling   float64 `yaml:"ceiling"`
	VIXAnchor float64 `yaml:"vix_anchor"`
	VIXWeight float64 `yaml:"vix_weight"`
}

// DefaultConfig returns the production formula parameters.
func DefaultConfig() *Config {
	return &Config{
		Liquidity: LiquidityParams{
			Base:            5.0,
			SpreadAnchor:    4.5,
			SpreadWeight:    3.0,
			RealYieldAnchor: 1.5,
			RealYieldWeight: 2.0,
		},
		Valuation: ValuationParams{
			Base:     5.0,
			PEAnchor: 18.0,
			PEWeight: 0.66,
		},
		Inflation: InflationParams{
			Base:            5.0,
			BreakevenAnchor: 2.25,
			BreakevenWeight: 10.0,
		},
		Credit: CreditParams{
			Base:         2.0,
			SpreadAnchor: 3.0,
			SpreadWeight: 1.6,
			Floor:        2.0,
		},
		Growth: GrowthParams{
			Base:        5.0,
			CurveAnchor: 0.50,
			CurveWeight: 3.5,
		},
		RiskAppetite: RiskAppetiteParams{
			Ceiling:   10.0,
			VIXAnchor: 10.0,
			VIXWeight: 0.5,
		},
	}
}

// LoadConfig reads scoring parameters from a YAML file, falling back to
// defaults for the whole file when the path is empty.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scoring config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scoring config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Liquidity.SpreadAnchor <= 0 {
		return fmt.Errorf("liquidity.spread_anchor must be positive, got %f", cfg.Liquidity.SpreadAnchor)
	}
	if cfg.Credit.Floor < 0 || cfg.Credit.Floor > 10 {
		return fmt.Errorf("credit.floor must be within [0,10], got %f", cfg.Credit.Floor)
	}
	if cfg.RiskAppetite.VIXWeight < 0 {
		return fmt.Errorf("risk_appetite.vix_weight must not be negative, got %f", cfg.RiskAppetite.VIXWeight)
	}
	return nil
}
