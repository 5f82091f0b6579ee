// Package gates assembles the ground-truth bundle: the single deterministic
// artifact every downstream narrative claim must reconcile against. The
// whitelist is the evidence gate: a category's narrative may only cite the
// metrics that actually feed that category.
package gates

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/macrobrief/macrobrief/internal/extract"
	"github.com/macrobrief/macrobrief/internal/scoring"
)

// CategoryRule binds one score category to its permitted evidence and,
// where applicable, the positioning signal that carries its conviction.
type CategoryRule struct {
	Category       string   `yaml:"category"`
	AllowedMetrics []string `yaml:"allowed_metrics"`
	SignalClass    string   `yaml:"signal_class,omitempty"`
}

// Whitelist is the full evidence map.
type Whitelist struct {
	Rules []CategoryRule `yaml:"rules"`
}

// DefaultWhitelist returns the production evidence map. Metric names are
// disjoint across categories: cross-citing is exactly what the audit layer
// exists to catch.
func DefaultWhitelist() *Whitelist {
	return &Whitelist{Rules: []CategoryRule{
		{
			Category:       string(scoring.CategoryGrowth),
			AllowedMetrics: []string{"10y-2y yield curve", "interest coverage"},
			SignalClass:    string(extract.ClassRates),
		},
		{
			Category:       string(scoring.CategoryInflation),
			AllowedMetrics: []string{"5y5y inflation expectations", "real yields"},
			SignalClass:    string(extract.ClassRates),
		},
		{
			Category:       string(scoring.CategoryLiquidity),
			AllowedMetrics: []string{"exchange volume"},
		},
		{
			Category:       string(scoring.CategoryCredit),
			AllowedMetrics: []string{"HY spreads"},
		},
		{
			Category:       string(scoring.CategoryValuation),
			AllowedMetrics: []string{"forward P/E"},
			SignalClass:    string(extract.ClassEquity),
		},
		{
			Category:       string(scoring.CategoryRiskAppetite),
			AllowedMetrics: []string{"VIX", "participation"},
			SignalClass:    string(extract.ClassEquity),
		},
	}}
}

// Rule returns the rule for a category, if present.
func (w *Whitelist) Rule(cat scoring.Category) (CategoryRule, bool) {
	for _, r := range w.Rules {
		if r.Category == string(cat) {
			return r, true
		}
	}
	return CategoryRule{}, false
}

// LoadWhitelist reads the evidence map from a YAML file.
func LoadWhitelist(path string) (*Whitelist, error) {
	if path == "" {
		return DefaultWhitelist(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read whitelist config: %w", err)
	}
	var w Whitelist
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse whitelist config: %w", err)
	}
	if len(w.Rules) == 0 {
		return DefaultWhitelist(), nil
	}
	if err := validateWhitelist(&w); err != nil {
		return nil, fmt.Errorf("invalid whitelist config: %w", err)
	}
	return &w, nil
}

func validateWhitelist(w *Whitelist) error {
	known := make(map[string]bool, 6)
	for _, cat := range scoring.Categories() {
		known[string(cat)] = true
	}
	seenCat := make(map[string]bool)
	seenMetric := make(map[string]string)
	for _, r := range w.Rules {
		if !known[r.Category] {
			return fmt.Errorf("unknown category %q", r.Category)
		}
		if seenCat[r.Category] {
			return fmt.Errorf("duplicate rule for category %q", r.Category)
		}
		seenCat[r.Category] = true
		if len(r.AllowedMetrics) == 0 {
			return fmt.Errorf("category %q has no allowed metrics", r.Category)
		}
		for _, m := range r.AllowedMetrics {
			if owner, dup := seenMetric[m]; dup {
				return fmt.Errorf("metric %q assigned to both %q and %q", m, owner, r.Category)
			}
			seenMetric[m] = r.Category
		}
		switch r.SignalClass {
		case "", string(extract.ClassEquity), string(extract.ClassRates), string(extract.ClassFX):
		default:
			return fmt.Errorf("category %q has unknown signal class %q", r.Category, r.SignalClass)
		}
	}
	return nil
}
