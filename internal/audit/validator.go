// Package audit fact-checks a scrubbed narrative against its ground-truth
// bundle. It is the second, independent line of defense behind the scrubber:
// a different vocabulary, run after generation, and it rewrites rather than
// rejects. Audit findings are reported and counted but never fail a run.
package audit

import (
	"regexp"
	"sort"
	"strings"

	"github.com/macrobrief/macrobrief/internal/gates"
	"github.com/macrobrief/macrobrief/internal/scoring"
	"github.com/macrobrief/macrobrief/internal/scrub"
)

// FindingKind classifies one audit finding.
type FindingKind string

const (
	// KindWhitelistBreach: a section cited a metric outside its category's
	// permitted evidence.
	KindWhitelistBreach FindingKind = "whitelist-breach"
	// KindLeakageResidual: directional phrasing survived the scrubber in a
	// section with no directional permission.
	KindLeakageResidual FindingKind = "leakage-residual"
)

// RevisionNotice replaces every sentence the audit removes. Fixed text so
// reruns stay byte-identical.
const RevisionNotice = "[Removed during automated review: claim not supported by ground truth.]"

// Finding is one audit hit.
type Finding struct {
	Kind    FindingKind `json:"kind"`
	Section string      `json:"section"`
	Metric  string      `json:"metric,omitempty"`
	Excerpt string      `json:"excerpt"`
	Action  string      `json:"action"`
}

// metricVocabulary recognizes metric citations in prose. Keys are the
// canonical whitelist metric names; phrases are matched case-insensitively
// on word boundaries. Deliberately broader than the whitelist strings so a
// paraphrased citation still gets caught.
var metricVocabulary = map[string][]string{
	"HY spreads":                  {"hy spread", "hy spreads", "high yield spread", "high-yield spread", "high yield spreads", "hy oas", "credit spreads"},
	"forward P/E":                 {"forward p/e", "forward pe", "forward multiple", "forward price-to-earnings", "earnings multiple"},
	"10y-2y yield curve":          {"10y-2y", "2s10s", "yield curve", "curve steepness", "curve inversion"},
	"interest coverage":           {"interest coverage"},
	"5y5y inflation expectations": {"5y5y", "5-year 5-year", "forward inflation expectations", "inflation breakevens"},
	"real yields":                 {"real yield", "real yields", "real rates"},
	"exchange volume":             {"exchange volume", "total volume", "futures volume", "total exchange volume"},
	"VIX":                         {"vix"},
	"participation":               {"participation", "open interest expansion", "open interest contraction"},
}

// leakagePatterns is the residual directional vocabulary. Intentionally
// disjoint from the scrubber's phrase list: this net catches what the first
// one was never shaped for.
var leakagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\blean(?:s|ing)?\s+(?:bullish|bearish)\b`),
	regexp.MustCompile(`(?i)\bbias\s+(?:to|toward|towards)\s+the\s+(?:upside|downside)\b`),
	regexp.MustCompile(`(?i)\bpositioned\s+for\s+(?:a\s+)?(?:rally|sell-?off|squeeze|breakdown)\b`),
	regexp.MustCompile(`(?i)\b(?:buy|sell)\s+signal\b`),
	regexp.MustCompile(`(?i)\bpath\s+of\s+least\s+resistance\s+is\s+(?:higher|lower|up|down)\b`),
	regexp.MustCompile(`(?i)\bexpect(?:s|ing)?\s+(?:higher|lower)\s+prices\b`),
}

// defaultSectionCategories maps narrative sections to the categories whose
// whitelists govern them. Unmapped sections get no citation check.
var defaultSectionCategories = map[string][]scoring.Category{
	"RATES":     {scoring.CategoryGrowth, scoring.CategoryInflation},
	"CREDIT":    {scoring.CategoryCredit},
	"EQUITIES":  {scoring.CategoryRiskAppetite},
	"VALUATION": {scoring.CategoryValuation},
	"GROWTH":    {scoring.CategoryGrowth},
	"INFLATION": {scoring.CategoryInflation},
	"LIQUIDITY": {scoring.CategoryLiquidity},
}

// Validator audits narratives against bundles.
type Validator struct {
	sectionCategories map[string][]scoring.Category
	vocab             map[string]*regexp.Regexp
}

// New builds a validator with the default section mapping and vocabulary.
func New() *Validator {
	v := &Validator{
		sectionCategories: defaultSectionCategories,
		vocab:             make(map[string]*regexp.Regexp, len(metricVocabulary)),
	}
	for metric, phrases := range metricVocabulary {
		quoted := make([]string, len(phrases))
		for i, p := range phrases {
			quoted[i] = regexp.QuoteMeta(p)
		}
		v.vocab[metric] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return v
}

// Audit checks every section of the narrative against the bundle and
// returns the revised text plus all findings. It never returns an error:
// the worst possible narrative audits down to a page of revision notices.
func (v *Validator) Audit(text string, bundle *gates.Bundle, tags map[string]scrub.SectionTag) (string, []Finding) {
	sections := scrub.SplitSections(text)
	var findings []Finding
	removed := make([]sentenceSpan, 0)

	for _, sec := range sections {
		body := text[sec.Start:sec.End]

		// Citation check: metrics named in this section must belong to the
		// whitelist of one of its governing categories.
		if cats, ok := v.sectionCategories[sec.Name]; ok && bundle != nil {
			allowed := allowedMetrics(bundle, cats)
			for _, metric := range sortedMetrics(v.vocab) {
				re := v.vocab[metric]
				for _, loc := range re.FindAllStringIndex(body, -1) {
					if allowed[metric] {
						continue
					}
					sent := sentenceAround(body, loc[0], loc[1])
					findings = append(findings, Finding{
						Kind:    KindWhitelistBreach,
						Section: sec.Name,
						Metric:  metric,
						Excerpt: strings.TrimSpace(body[sent.start:sent.end]),
						Action:  "sentence replaced",
					})
					removed = append(removed, sentenceSpan{start: sec.Start + sent.start, end: sec.Start + sent.end})
				}
			}
		}

		// Residual directional leakage in sections without permission.
		if tag, ok := tags[sec.Name]; !ok || tag != scrub.TagDirectional {
			for _, re := range leakagePatterns {
				for _, loc := range re.FindAllStringIndex(body, -1) {
					sent := sentenceAround(body, loc[0], loc[1])
					findings = append(findings, Finding{
						Kind:    KindLeakageResidual,
						Section: sec.Name,
						Excerpt: strings.TrimSpace(body[sent.start:sent.end]),
						Action:  "sentence replaced",
					})
					removed = append(removed, sentenceSpan{start: sec.Start + sent.start, end: sec.Start + sent.end})
				}
			}
		}
	}

	return replaceSpans(text, removed), findings
}

type sentenceSpan struct{ start, end int }

// sentenceAround expands a match to the containing sentence. Sentence
// boundaries are ., !, ? or a newline.
func sentenceAround(body string, start, end int) sentenceSpan {
	s := start
	for s > 0 {
		c := body[s-1]
		if c == '.' || c == '!' || c == '?' || c == '\n' {
			break
		}
		s--
	}
	e := end
	for e < len(body) {
		c := body[e]
		e++
		if c == '.' || c == '!' || c == '?' || c == '\n' {
			break
		}
	}
	return sentenceSpan{start: s, end: e}
}

// replaceSpans swaps every removed sentence for the revision notice,
// merging overlaps so a doubly-flagged sentence is replaced once.
func replaceSpans(text string, spans []sentenceSpan) string {
	if len(spans) == 0 {
		return text
	}
	sort.Slice(spans, func(a, b int) bool { return spans[a].start < spans[b].start })
	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	var out strings.Builder
	prev := 0
	for _, sp := range merged {
		out.WriteString(text[prev:sp.start])
		out.WriteString(RevisionNotice)
		prev = sp.end
	}
	out.WriteString(text[prev:])
	return out.String()
}

// allowedMetrics unions the whitelists of the governing categories.
func allowedMetrics(bundle *gates.Bundle, cats []scoring.Category) map[string]bool {
	allowed := make(map[string]bool)
	for _, cat := range cats {
		d, ok := bundle.DirectiveFor(cat)
		if !ok {
			continue
		}
		for _, m := range d.AllowedMetrics {
			allowed[m] = true
		}
	}
	return allowed
}

// sortedMetrics keeps vocabulary scanning order deterministic.
func sortedMetrics(vocab map[string]*regexp.Regexp) []string {
	names := make([]string, 0, len(vocab))
	for name := range vocab {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
