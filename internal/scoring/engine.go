// Package scoring computes the six deterministic category scores that anchor
// every brief. Scores are pure functions of the extracted metrics: same
// inputs, same card, byte for byte. Anything the narrative layer says about
// a category must be reconcilable against this card.
package scoring

import (
	"fmt"
	"math"

	"github.com/macrobrief/macrobrief/internal/extract"
)

// Category is one of the six fixed score categories.
type Category string

const (
	CategoryGrowth       Category = "Growth Impulse"
	CategoryInflation    Category = "Inflation Pressure"
	CategoryLiquidity    Category = "Liquidity Conditions"
	CategoryCredit       Category = "Credit Stress"
	CategoryValuation    Category = "Valuation Risk"
	CategoryRiskAppetite Category = "Risk Appetite"
)

// Categories returns the fixed category order used everywhere downstream.
func Categories() []Category {
	return []Category{
		CategoryGrowth,
		CategoryInflation,
		CategoryLiquidity,
		CategoryCredit,
		CategoryValuation,
		CategoryRiskAppetite,
	}
}

// CategoryScore is one computed category. Score is nil when the required
// inputs were absent; Detail always says why.
type CategoryScore struct {
	Category Category `json:"category"`
	Score    *float64 `json:"score"`
	Detail   string   `json:"detail"`
}

// Card is the full ordered set of category scores for one run.
type Card struct {
	Scores []CategoryScore `json:"scores"`
}

// Get returns the score entry for a category, if present.
func (c *Card) Get(cat Category) (CategoryScore, bool) {
	for _, s := range c.Scores {
		if s.Category == cat {
			return s, true
		}
	}
	return CategoryScore{}, false
}

// Engine computes category scores from a scoring configuration.
type Engine struct {
	cfg *Config
}

// NewEngine builds an engine; a nil config falls back to defaults.
func NewEngine(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// Compute evaluates all six categories against the extracted metrics.
// Missing inputs never fail the run: the affected category is reported
// unavailable and everything else still computes.
func (e *Engine) Compute(m *extract.Metrics) *Card {
	card := &Card{Scores: make([]CategoryScore, 0, 6)}
	for _, cat := range Categories() {
		card.Scores = append(card.Scores, e.Score(cat, m))
	}
	return card
}

// Score evaluates a single category.
func (e *Engine) Score(cat Category, m *extract.Metrics) CategoryScore {
	cs := CategoryScore{Category: cat}
	if m == nil {
		cs.Detail = "Unavailable: no metrics"
		return cs
	}

	switch cat {
	case CategoryLiquidity:
		if m.HYSpreadCurrent == nil || m.RealYield10Y == nil {
			cs.Detail = unavailable("hy_spread_current", m.HYSpreadCurrent, "real_yield_10y", m.RealYield10Y)
			return cs
		}
		if *m.HYSpreadCurrent <= 0 {
			cs.Detail = "Unavailable: hy_spread_current not positive"
			return cs
		}
		p := e.cfg.Liquidity
		raw := p.Base + math.Log2(p.SpreadAnchor / *m.HYSpreadCurrent)*p.SpreadWeight -
			math.Max(0, (*m.RealYield10Y-p.RealYieldAnchor)*p.RealYieldWeight)
		cs.Score = finalize(raw)

	case CategoryValuation:
		if m.ForwardPECurrent == nil {
			cs.Detail = unavailable("forward_pe_current", m.ForwardPECurrent)
			return cs
		}
		p := e.cfg.Valuation
		cs.Score = finalize(p.Base + (*m.ForwardPECurrent-p.PEAnchor)*p.PEWeight)

	case CategoryInflation:
		if m.InflationExpectations5y5y == nil {
			cs.Detail = unavailable("inflation_expectations_5y5y", m.InflationExpectations5y5y)
			return cs
		}
		p := e.cfg.Inflation
		cs.Score = finalize(p.Base + (*m.InflationExpectations5y5y-p.BreakevenAnchor)*p.BreakevenWeight)

	case CategoryCredit:
		if m.HYSpreadCurrent == nil {
			cs.Detail = unavailable("hy_spread_current", m.HYSpreadCurrent)
			return cs
		}
		p := e.cfg.Credit
		raw := p.Base + (*m.HYSpreadCurrent-p.SpreadAnchor)*p.SpreadWeight
		if raw < p.Floor {
			raw = p.Floor
		}
		cs.Score = finalize(raw)

	case CategoryGrowth:
		if m.Yield10Y == nil || m.Yield2Y == nil {
			cs.Detail = unavailable("yield_10y", m.Yield10Y, "yield_2y", m.Yield2Y)
			return cs
		}
		p := e.cfg.Growth
		curve := *m.Yield10Y - *m.Yield2Y
		cs.Score = finalize(p.Base + (curve-p.CurveAnchor)*p.CurveWeight)

	case CategoryRiskAppetite:
		if m.VIXIndex == nil {
			cs.Detail = unavailable("vix_index", m.VIXIndex)
			return cs
		}
		p := e.cfg.RiskAppetite
		cs.Score = finalize(p.Ceiling - (*m.VIXIndex-p.VIXAnchor)*p.VIXWeight)

	default:
		cs.Detail = fmt.Sprintf("Unavailable: unknown category %q", cat)
		return cs
	}

	cs.Detail = "Computed"
	return cs
}

// finalize clamps to [0,10] then rounds half-up to one decimal.
func finalize(raw float64) *float64 {
	v := raw
	if v < 0 {
		v = 0
	}
	if v > 10 {
		v = 10
	}
	v = math.Floor(v*10+0.5) / 10
	return &v
}

// unavailable names the first missing input in a stable order.
func unavailable(pairs ...interface{}) string {
	for i := 0; i+1 < len(pairs); i += 2 {
		name := pairs[i].(string)
		if pairs[i+1].(*float64) == nil {
			return "Unavailable: missing " + name
		}
	}
	return "Unavailable"
}
