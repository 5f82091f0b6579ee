// Package report renders the daily brief: an HTML page for mail delivery
// plus raw markdown artifacts per provider. Rendering is presentation only;
// nothing here may alter a score, a signal or a narrative.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/macrobrief/macrobrief/internal/audit"
	"github.com/macrobrief/macrobrief/internal/extract"
	"github.com/macrobrief/macrobrief/internal/gates"
	"github.com/macrobrief/macrobrief/internal/scoring"
)

// Narrative is one provider's final (scrubbed and audited) text.
type Narrative struct {
	Provider string          `json:"provider"`
	Text     string          `json:"text"`
	Findings []audit.Finding `json:"findings,omitempty"`
}

// Input is everything the renderer needs for one brief.
type Input struct {
	Bundle     *gates.Bundle
	Narratives []Narrative
	Staleness  map[string]int // source name -> days behind the run date
}

// riskCategories score "hot" when high; their color scale inverts against
// the health categories.
var riskCategories = map[scoring.Category]bool{
	scoring.CategoryInflation: true,
	scoring.CategoryCredit:    true,
	scoring.CategoryValuation: true,
}

// scoreClass picks the color bucket for one category score.
func scoreClass(cat scoring.Category, score *float64) string {
	if score == nil {
		return "na"
	}
	v := *score
	if riskCategories[cat] {
		v = 10 - v
	}
	switch {
	case v >= 6.5:
		return "good"
	case v >= 3.5:
		return "mid"
	default:
		return "bad"
	}
}

var htmlTmpl = template.Must(template.New("brief").Funcs(template.FuncMap{
	"scoreClass": scoreClass,
	"fmtScore": func(s *float64) string {
		if s == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.1f", *s)
	},
	"fmtDelta": func(v *float64) string {
		if v == nil {
			return "—"
		}
		return fmt.Sprintf("%+.0f", *v)
	},
	"nl2br": func(s string) template.HTML {
		return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
	},
}).Parse(htmlLayout))

const htmlLayout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: -apple-system, Segoe UI, sans-serif; color: #1a1a2e; max-width: 860px; margin: 0 auto; padding: 16px; }
h1 { font-size: 20px; } h2 { font-size: 16px; border-bottom: 1px solid #ddd; padding-bottom: 4px; }
table { border-collapse: collapse; width: 100%; } td, th { padding: 6px 10px; text-align: left; border-bottom: 1px solid #eee; }
.badge { display: inline-block; padding: 2px 8px; border-radius: 10px; font-size: 12px; }
.good { background: #e6f4ea; color: #137333; } .mid { background: #fef7e0; color: #b06000; }
.bad { background: #fce8e6; color: #c5221f; } .na { background: #f1f3f4; color: #5f6368; }
.stale { background: #fce8e6; color: #c5221f; }
.event { background: #fff3cd; border: 1px solid #ffe69c; padding: 8px 12px; border-radius: 6px; margin: 8px 0; }
.narrative { background: #fafafa; border: 1px solid #eee; padding: 12px; border-radius: 6px; margin: 8px 0; font-size: 14px; }
.meta { color: #5f6368; font-size: 12px; }
</style>
</head>
<body>
<h1>MacroBrief Daily — {{.Bundle.RunDate}}</h1>
{{- range $name, $days := .Staleness}}{{if gt $days 3}}
<span class="badge stale">{{$name}}: data {{$days}} days behind</span>
{{end}}{{end}}

{{- if .Bundle.Events.Active}}
<div class="event">
{{- range .Bundle.Events.Flags}}<strong>{{.Name}}</strong> — {{.Note}}<br>{{end}}
{{- if .Bundle.Events.Undetermined}}<strong>UNDETERMINED</strong> — event status could not be resolved; conviction capped.<br>{{end}}
</div>
{{- end}}

<h2>Scores</h2>
<table>
{{- range .Bundle.Scores}}
<tr>
<td>{{.Category}}</td>
<td><span class="badge {{scoreClass .Category .Score}}">{{fmtScore .Score}}</span></td>
<td class="meta">{{.Detail}}</td>
</tr>
{{- end}}
</table>

<h2>Positioning</h2>
<table>
<tr><th>Class</th><th>Futures Δ</th><th>Options Δ</th><th>Read</th><th>Direction</th></tr>
{{- range .Bundle.Signals}}
<tr>
<td>{{.Class}}</td>
<td>{{fmtDelta .FuturesDelta}}</td>
<td>{{fmtDelta .OptionsDelta}}</td>
<td>{{.Label}}{{if .Provisional}} (provisional){{end}}</td>
<td>{{if .DirectionAllowed}}permitted{{else}}not permitted{{end}}</td>
</tr>
{{- end}}
</table>
<p class="meta">Participation: {{.Bundle.Participation}}</p>

{{- if .Bundle.Curve}}
<h2>Rates Curve</h2>
<table>
{{- range .Bundle.Curve.Clusters}}
<tr><td>{{.Cluster}}</td><td>{{fmtDelta .NetOIChange}}</td></tr>
{{- end}}
</table>
<p class="meta">Most active: {{.Bundle.Curve.ActiveCluster}} — {{.Bundle.Curve.Regime}}</p>
{{- end}}

{{- if .Bundle.Live}}
<h2>Live Context</h2>
<p>S&amp;P trend: <strong>{{.Bundle.Live.TrendStatus}}</strong> <span class="meta">{{.Bundle.Live.TrendAudit}}</span></p>
{{- end}}

{{- range .Narratives}}
<h2>Narrative ({{.Provider}})</h2>
<div class="narrative">{{nl2br .Text}}</div>
{{- if .Findings}}<p class="meta">{{len .Findings}} audit finding(s) applied.</p>{{end}}
{{- end}}

{{- if .Bundle.DataQuality}}
<h2>Data Quality</h2>
<ul>{{range .Bundle.DataQuality}}<li class="meta">{{.}}</li>{{end}}</ul>
{{- end}}

<p class="meta">Generated {{.Bundle.RunDate}}. Scores and signals are deterministic; narratives are machine-generated and reviewed automatically.</p>
</body>
</html>
`

// RenderHTML produces the mailable brief.
func RenderHTML(in Input) ([]byte, error) {
	if in.Bundle == nil {
		return nil, fmt.Errorf("cannot render report: nil bundle")
	}
	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, in); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderMarkdown produces the raw artifact for one provider narrative.
func RenderMarkdown(bundle *gates.Bundle, n Narrative) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# MacroBrief Daily — %s (%s)\n\n", bundle.RunDate, n.Provider)
	b.WriteString("## Ground Truth\n\n")
	for _, s := range bundle.Scores {
		if s.Score != nil {
			fmt.Fprintf(&b, "- %s: %.1f\n", s.Category, *s.Score)
		} else {
			fmt.Fprintf(&b, "- %s: n/a (%s)\n", s.Category, s.Detail)
		}
	}
	b.WriteString("\n## Narrative\n\n")
	b.WriteString(n.Text)
	b.WriteString("\n")
	return []byte(b.String())
}

// StalenessBadges computes the per-source staleness map for the header.
func StalenessBadges(m *extract.Metrics, runDate time.Time) map[string]int {
	badges := make(map[string]int, 2)
	if d := extract.StalenessDays(m.DashboardAsOfDate, runDate); d >= 0 {
		badges["dashboard"] = d
	}
	if d := extract.StalenessDays(m.BulletinDate, runDate); d >= 0 {
		badges["bulletin"] = d
	}
	return badges
}
