package scrub

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SectionTag says whether a section's ground truth permits directional
// language. Untagged and unmarked text defaults to neutral: the safe side.
type SectionTag string

const (
	TagDirectional SectionTag = "directional"
	TagNeutral     SectionTag = "neutral"
)

var sectionMarker = regexp.MustCompile(`\[SECTION:([A-Z_]+)\]`)

// Section is one marked span of the narrative.
type Section struct {
	Name  string
	Start int // body start, after the marker
	End   int
}

// SplitSections finds the [SECTION:NAME] spans. Text before the first
// marker belongs to no section.
func SplitSections(text string) []Section {
	locs := sectionMarker.FindAllStringSubmatchIndex(text, -1)
	sections := make([]Section, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		sections = append(sections, Section{
			Name:  text[loc[2]:loc[3]],
			Start: loc[1],
			End:   end,
		})
	}
	return sections
}

// Replacement records one applied substitution.
type Replacement struct {
	Rule     string `json:"rule"`
	Section  string `json:"section"`
	Original string `json:"original"`
	Replaced string `json:"replaced"`
}

// Result is the scrubbed narrative plus its replacement log.
type Result struct {
	Text                 string        `json:"text"`
	Replacements         []Replacement `json:"replacements"`
	NormalizationApplied bool          `json:"normalization_applied"`
}

// Scrubber applies the ordered rule set in a single pass.
type Scrubber struct {
	cfg      *Config
	compiled []*regexp.Regexp
}

// New builds a scrubber; a nil config falls back to defaults.
func New(cfg *Config) (*Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Scrubber{cfg: cfg, compiled: make([]*regexp.Regexp, len(cfg.Rules))}
	for i, r := range cfg.Rules {
		re, err := r.compile()
		if err != nil {
			return nil, err
		}
		s.compiled[i] = re
	}
	return s, nil
}

type span struct {
	start, end int
	ruleIdx    int
	section    string
}

// Scrub applies the rules to the narrative. tags maps section names to
// their directional permission; missing entries default to neutral.
//
// Matching is single-pass with span masking: all rules scan the original
// text, earlier rules claim their spans first, and replacement output is
// never rescanned. A replacement can therefore never trigger another rule.
func (s *Scrubber) Scrub(text string, tags map[string]SectionTag) *Result {
	text = StripCodeFences(text)
	sections := SplitSections(text)

	var accepted []span
	overlaps := func(start, end int) bool {
		for _, a := range accepted {
			if start < a.end && a.start < end {
				return true
			}
		}
		return false
	}

	for i, rule := range s.cfg.Rules {
		for _, loc := range s.compiled[i].FindAllStringIndex(text, -1) {
			name, tag := sectionAt(sections, tags, loc[0])
			if rule.Scope == ScopeNeutral && tag == TagDirectional {
				continue
			}
			if overlaps(loc[0], loc[1]) {
				continue
			}
			accepted = append(accepted, span{start: loc[0], end: loc[1], ruleIdx: i, section: name})
		}
	}

	sort.Slice(accepted, func(a, b int) bool { return accepted[a].start < accepted[b].start })

	res := &Result{}
	var out strings.Builder
	prev := 0
	for _, sp := range accepted {
		rule := s.cfg.Rules[sp.ruleIdx]
		out.WriteString(text[prev:sp.start])
		out.WriteString(rule.Replacement)
		prev = sp.end
		res.Replacements = append(res.Replacements, Replacement{
			Rule:     rule.Name,
			Section:  sp.section,
			Original: text[sp.start:sp.end],
			Replaced: rule.Replacement,
		})
		if rule.Scope == ScopeGlobal {
			res.NormalizationApplied = true
		}
	}
	out.WriteString(text[prev:])
	res.Text = out.String()

	if res.NormalizationApplied && s.cfg.Notice != "" {
		res.Text = strings.TrimRight(res.Text, "\n") + "\n\n" + s.cfg.Notice + "\n"
	}
	return res
}

// sectionAt returns the section name and tag covering an offset.
func sectionAt(sections []Section, tags map[string]SectionTag, off int) (string, SectionTag) {
	for _, sec := range sections {
		if off >= sec.Start && off < sec.End {
			if tag, ok := tags[sec.Name]; ok {
				return sec.Name, tag
			}
			return sec.Name, TagNeutral
		}
	}
	return "", TagNeutral
}

// StripCodeFences removes a wrapping markdown code fence, which some
// generators insist on adding around the whole reply.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return text
	}
	first := strings.TrimSpace(lines[0])
	if !regexp.MustCompile("^```[a-zA-Z]*$").MatchString(first) {
		return text
	}
	last := len(lines) - 1
	if strings.TrimSpace(lines[last]) != "```" {
		return text
	}
	return strings.Join(lines[1:last], "\n")
}

// Describe lists the rule names in order, for logs.
func (s *Scrubber) Describe() string {
	names := make([]string, len(s.cfg.Rules))
	for i, r := range s.cfg.Rules {
		names[i] = fmt.Sprintf("%s(%s)", r.Name, r.Scope)
	}
	return strings.Join(names, ", ")
}
