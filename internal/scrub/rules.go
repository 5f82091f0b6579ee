// Package scrub normalizes narrative text before it can reach a reader.
// Two rule families: actor-attribution language is banned everywhere (no
// dataset here can see who traded), and directional idioms are banned in
// sections whose ground truth carries no directional permission.
package scrub

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scope says where a rule applies.
type Scope string

const (
	// ScopeGlobal rules fire in every section.
	ScopeGlobal Scope = "global"
	// ScopeNeutral rules fire only in sections tagged neutral.
	ScopeNeutral Scope = "neutral"
)

// Rule is one ordered replacement rule. Phrases are matched literally,
// case-insensitively, on word boundaries.
type Rule struct {
	Name        string   `yaml:"name"`
	Scope       Scope    `yaml:"scope"`
	Phrases     []string `yaml:"phrases"`
	Replacement string   `yaml:"replacement"`
}

// Config is the ordered rule set plus the reader-facing notice appended
// when any global rule fired.
type Config struct {
	Rules  []Rule `yaml:"rules"`
	Notice string `yaml:"notice"`
}

// ActorTerms is the banned actor-attribution vocabulary. Flow data never
// identifies who traded; any of these words in a narrative is invention.
var ActorTerms = []string{
	"smart money",
	"whales",
	"insiders",
	"institutions",
	"big players",
	"professionals",
	"strong hands",
	"hedge funds",
	"asset managers",
	"dealers",
	"banks",
	"allocators",
	"real money",
	"pensions",
	"sovereign",
	"macro funds",
	"levered funds",
	"CTAs",
}

// DefaultNotice is appended once when actor language was normalized.
const DefaultNotice = "Language normalization applied."

// DefaultConfig returns the production rule set.
func DefaultConfig() *Config {
	return &Config{
		Notice: DefaultNotice,
		Rules: []Rule{
			{
				Name:        "actor-attribution",
				Scope:       ScopeGlobal,
				Phrases:     ActorTerms,
				Replacement: "market participants",
			},
			{
				Name:  "directional-leakage",
				Scope: ScopeNeutral,
				Phrases: []string{
					"upside bias",
					"downside bias",
					"bullish tilt",
					"bearish tilt",
					"tilted bullish",
					"tilted bearish",
					"risk-on skew",
					"risk-off skew",
					"leaning long",
					"leaning short",
				},
				Replacement: "no directional read",
			},
		},
	}
}

// LoadConfig reads the rule set from a YAML file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scrub config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scrub config: %w", err)
	}
	if len(cfg.Rules) == 0 {
		return DefaultConfig(), nil
	}
	if cfg.Notice == "" {
		cfg.Notice = DefaultNotice
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid scrub config: %w", err)
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if r.Name == "" {
			return fmt.Errorf("rule with empty name")
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate rule %q", r.Name)
		}
		seen[r.Name] = true
		if r.Scope != ScopeGlobal && r.Scope != ScopeNeutral {
			return fmt.Errorf("rule %q has unknown scope %q", r.Name, r.Scope)
		}
		if len(r.Phrases) == 0 {
			return fmt.Errorf("rule %q has no phrases", r.Name)
		}
		if strings.TrimSpace(r.Replacement) == "" {
			return fmt.Errorf("rule %q has no replacement", r.Name)
		}
	}
	return nil
}

// compile turns a rule's phrase list into one case-insensitive, word-bounded
// pattern. Longer phrases come first so "macro funds" wins over any shorter
// overlapping phrase.
func (r Rule) compile() (*regexp.Regexp, error) {
	phrases := make([]string, len(r.Phrases))
	copy(phrases, r.Phrases)
	for i := 0; i < len(phrases); i++ {
		for j := i + 1; j < len(phrases); j++ {
			if len(phrases[j]) > len(phrases[i]) {
				phrases[i], phrases[j] = phrases[j], phrases[i]
			}
		}
	}
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("rule %q does not compile: %w", r.Name, err)
	}
	return re, nil
}
