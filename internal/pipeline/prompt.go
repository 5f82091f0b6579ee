package pipeline

import (
	"fmt"
	"strings"

	"github.com/macrobrief/macrobrief/internal/gates"
)

// narrativeSystemPrompt is the fixed contract every provider writes under.
// The ground truth arrives as JSON in the user message; the system prompt
// only explains the rules, never the numbers.
const narrativeSystemPrompt = `You are the writer of a daily macro market brief. You receive a ground-truth JSON bundle and must write prose that is fully reconcilable against it.

Rules, in order of priority:
1. Never attribute flow to any actor type. You do not know who traded. Refer only to "market participants" if attribution is unavoidable.
2. Each section may cite ONLY the metrics listed in that category's "allowed_metrics". Citing any other metric is a violation.
3. Directional language (bullish, bearish, upside, downside) is permitted only where the bundle grants it: a signal with "direction_allowed": true, or a directive with "conviction": "full". Where conviction is "provisional", you may describe the flow but must attach the event caveat. Where it is "none", stay strictly descriptive.
4. Never contradict a score, signal label, participation read, or event flag in the bundle.
5. Structure the brief with these exact markers, each on its own line:
[SECTION:DASHBOARD] [SECTION:SUMMARY] [SECTION:FISCAL] [SECTION:RATES] [SECTION:CREDIT] [SECTION:EQUITIES] [SECTION:VALUATION] [SECTION:CONCLUSION]
6. Plain prose only. No markdown code fences, no tables.`

// buildNarrativePrompt renders the user message for one bundle.
func buildNarrativePrompt(bundle *gates.Bundle) (string, error) {
	rendered, err := bundle.Render()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Write the daily brief for %s from this ground truth:\n\n", bundle.RunDate)
	b.Write(rendered)
	if len(bundle.BannedTerms) > 0 {
		b.WriteString("\nBanned vocabulary (rule 1): ")
		b.WriteString(strings.Join(bundle.BannedTerms, ", "))
		b.WriteString("\n")
	}
	return b.String(), nil
}
