package gates

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/macrobrief/macrobrief/internal/calendar"
	"github.com/macrobrief/macrobrief/internal/extract"
	"github.com/macrobrief/macrobrief/internal/scoring"
	"github.com/macrobrief/macrobrief/internal/signals"
)

// Conviction caps how strongly a narrative may lean on a positioning read.
// Caps only ever move down: an event day can turn full into provisional,
// nothing turns provisional back into full.
type Conviction string

const (
	ConvictionFull        Conviction = "full"
	ConvictionProvisional Conviction = "provisional"
	ConvictionNone        Conviction = "none"
)

// capConviction returns the lower of two caps.
func capConviction(a, b Conviction) Conviction {
	rank := map[Conviction]int{ConvictionFull: 2, ConvictionProvisional: 1, ConvictionNone: 0}
	if rank[b] < rank[a] {
		return b
	}
	return a
}

// SignalGate is one asset class's classified signal plus the gate verdict
// on whether directional language is permitted for it.
type SignalGate struct {
	signals.Signal
	DirectionAllowed bool     `json:"direction_allowed"`
	Provisional      bool     `json:"provisional"`
	GateReasons      []string `json:"gate_reasons,omitempty"`
}

// Directive is the per-category instruction block handed to the narrative
// layer: the score, the only metrics it may cite, and its conviction cap.
type Directive struct {
	Category       string     `json:"category"`
	Score          *float64   `json:"score"`
	Detail         string     `json:"detail"`
	AllowedMetrics []string   `json:"allowed_metrics"`
	SignalClass    string     `json:"signal_class,omitempty"`
	Conviction     Conviction `json:"conviction"`
	Reasons        []string   `json:"reasons,omitempty"`
}

// Bundle is the full deterministic ground truth for one run date. Rendering
// it twice from the same document yields byte-identical output: every
// collection is an ordered slice, there are no timestamps and no run IDs.
type Bundle struct {
	RunDate       string                 `json:"run_date"`
	Scores        []scoring.CategoryScore `json:"scores"`
	Signals       []SignalGate           `json:"signals"`
	Participation signals.Participation  `json:"participation"`
	Curve         *signals.CurveAnalysis `json:"curve,omitempty"`
	Events        *calendar.Context      `json:"events"`
	Directives    []Directive            `json:"directives"`
	BannedTerms   []string               `json:"banned_terms"`
	DataQuality   []string               `json:"data_quality,omitempty"`
	Live          *extract.LiveSnapshot  `json:"live,omitempty"`
}

// Render serializes the bundle into its canonical JSON form.
func (b *Bundle) Render() ([]byte, error) {
	out, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render bundle: %w", err)
	}
	return append(out, '\n'), nil
}

// SignalFor returns the gated signal for an asset class, if present.
func (b *Bundle) SignalFor(class extract.AssetClass) (SignalGate, bool) {
	for _, s := range b.Signals {
		if s.Class == class {
			return s, true
		}
	}
	return SignalGate{}, false
}

// DirectiveFor returns the directive for a category, if present.
func (b *Bundle) DirectiveFor(cat scoring.Category) (Directive, bool) {
	for _, d := range b.Directives {
		if d.Category == string(cat) {
			return d, true
		}
	}
	return Directive{}, false
}

// Builder assembles ground-truth bundles.
type Builder struct {
	engine      *scoring.Engine
	classifier  *signals.Classifier
	calendar    *calendar.Calendar
	whitelist   *Whitelist
	bannedTerms []string
}

// NewBuilder wires a builder; nil collaborators fall back to defaults.
func NewBuilder(engine *scoring.Engine, classifier *signals.Classifier, cal *calendar.Calendar, wl *Whitelist, bannedTerms []string) *Builder {
	if engine == nil {
		engine = scoring.NewEngine(nil)
	}
	if classifier == nil {
		classifier = signals.NewClassifier(nil)
	}
	if cal == nil {
		cal = calendar.New(nil)
	}
	if wl == nil {
		wl = DefaultWhitelist()
	}
	return &Builder{
		engine:      engine,
		classifier:  classifier,
		calendar:    cal,
		whitelist:   wl,
		bannedTerms: bannedTerms,
	}
}

// Build computes the full bundle for one validated document. The document
// must already have passed extract.ValidateDocument; Build itself cannot
// fail on missing numbers, only on a nil document.
func (bld *Builder) Build(runDate time.Time, doc *extract.Document) (*Bundle, error) {
	if doc == nil {
		return nil, fmt.Errorf("cannot build bundle: nil document")
	}

	events := bld.calendar.Evaluate(runDate)
	card := bld.engine.Compute(&doc.Metrics)

	bundle := &Bundle{
		RunDate:       runDate.UTC().Format("2006-01-02"),
		Scores:        card.Scores,
		Participation: signals.ClassifyParticipation(doc.Metrics.TotalOINetChange),
		Curve:         signals.AnalyzeCurve(doc.Tenors),
		Events:        events,
		BannedTerms:   append([]string(nil), bld.bannedTerms...),
		DataQuality:   append([]string(nil), doc.Quality...),
		Live:          doc.Live,
	}

	// Fixed class order keeps the rendering canonical regardless of map
	// iteration order in the input document.
	for _, class := range []extract.AssetClass{extract.ClassEquity, extract.ClassRates, extract.ClassFX} {
		delta, ok := doc.OIDeltas[class]
		if !ok {
			continue
		}
		bundle.Signals = append(bundle.Signals, bld.gateSignal(class, delta, events))
	}

	for _, cs := range card.Scores {
		bundle.Directives = append(bundle.Directives, bld.directive(cs, bundle, events))
	}

	return bundle, nil
}

// gateSignal applies the event gate to one classified signal. A Directional
// label survives an event day, but it is demoted to provisional and loses
// its permission to drive directional language.
func (bld *Builder) gateSignal(class extract.AssetClass, delta extract.OIDelta, events *calendar.Context) SignalGate {
	sig := bld.classifier.Classify(class, delta)
	gate := SignalGate{Signal: sig}

	if sig.Label != signals.LabelDirectional {
		gate.GateReasons = append(gate.GateReasons, "signal not directional: "+sig.Detail)
		return gate
	}
	if events.Active() {
		gate.Provisional = true
		for _, flag := range events.Flags {
			gate.GateReasons = append(gate.GateReasons, "event gate: "+flag.Name)
		}
		if events.Undetermined {
			gate.GateReasons = append(gate.GateReasons, "event gate: expiry status undetermined")
		}
		return gate
	}
	gate.DirectionAllowed = true
	return gate
}

// directive builds the per-category narrative instruction block.
func (bld *Builder) directive(cs scoring.CategoryScore, bundle *Bundle, events *calendar.Context) Directive {
	d := Directive{
		Category: string(cs.Category),
		Score:    cs.Score,
		Detail:   cs.Detail,
	}

	rule, ok := bld.whitelist.Rule(cs.Category)
	if !ok {
		d.Conviction = ConvictionNone
		d.Reasons = append(d.Reasons, "no evidence rule configured")
		return d
	}
	d.AllowedMetrics = rule.AllowedMetrics
	d.SignalClass = rule.SignalClass

	if cs.Score == nil {
		d.Conviction = ConvictionNone
		d.Reasons = append(d.Reasons, "score unavailable")
		return d
	}

	if rule.SignalClass == "" {
		// Score-only category: no positioning read, no directional claims.
		d.Conviction = ConvictionNone
		d.Reasons = append(d.Reasons, "no positioning signal linked")
		return d
	}

	sig, ok := bundle.SignalFor(extract.AssetClass(rule.SignalClass))
	if !ok || sig.Label != signals.LabelDirectional {
		d.Conviction = ConvictionNone
		d.Reasons = append(d.Reasons, "linked signal not directional")
		return d
	}

	d.Conviction = ConvictionFull
	if events.Active() {
		d.Conviction = capConviction(d.Conviction, ConvictionProvisional)
		d.Reasons = append(d.Reasons, "event flag active: conviction capped")
	}
	return d
}
