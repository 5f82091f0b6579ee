package gates

import (
	"bytes"
	"testing"
	"time"

	"github.com/macrobrief/macrobrief/internal/calendar"
	"github.com/macrobrief/macrobrief/internal/extract"
	"github.com/macrobrief/macrobrief/internal/scoring"
)

func f(v float64) *float64 { return &v }

func testDoc() *extract.Document {
	return &extract.Document{
		Metrics: extract.Metrics{
			HYSpreadCurrent:           f(3.2),
			ForwardPECurrent:          f(21.0),
			RealYield10Y:              f(1.9),
			InflationExpectations5y5y: f(2.40),
			Yield10Y:                  f(4.30),
			Yield2Y:                   f(4.00),
			VIXIndex:                  f(18.5),
			TotalOINetChange:          f(42000),
		},
		OIDeltas: map[extract.AssetClass]extract.OIDelta{
			extract.ClassEquity: {FuturesDelta: f(120000), OptionsDelta: f(10000)},
			extract.ClassRates:  {FuturesDelta: f(40000), OptionsDelta: f(38000)},
		},
		Tenors: map[string]extract.TenorRow{
			"2y": {OIChange: f(12000)},
			"5y": {OIChange: f(-40000)},
		},
	}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBuildQuietDay(t *testing.T) {
	b := NewBuilder(nil, nil, nil, nil, []string{"smart money"})
	bundle, err := b.Build(day("2025-03-07"), testDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bundle.Events.Active() {
		t.Fatalf("2025-03-07 should carry no event flags: %+v", bundle.Events)
	}

	eq, ok := bundle.SignalFor(extract.ClassEquity)
	if !ok {
		t.Fatal("missing equity signal")
	}
	if !eq.DirectionAllowed || eq.Provisional {
		t.Errorf("directional equity signal on a quiet day should allow direction: %+v", eq)
	}

	rates, _ := bundle.SignalFor(extract.ClassRates)
	if rates.DirectionAllowed {
		t.Errorf("hedging-vol rates signal must not allow direction: %+v", rates)
	}

	val, ok := bundle.DirectiveFor(scoring.CategoryValuation)
	if !ok {
		t.Fatal("missing valuation directive")
	}
	if val.Conviction != ConvictionFull {
		t.Errorf("valuation conviction = %s, want full", val.Conviction)
	}

	growth, _ := bundle.DirectiveFor(scoring.CategoryGrowth)
	if growth.Conviction != ConvictionNone {
		t.Errorf("growth conviction = %s, want none (rates signal is hedging)", growth.Conviction)
	}

	credit, _ := bundle.DirectiveFor(scoring.CategoryCredit)
	if credit.Conviction != ConvictionNone {
		t.Errorf("score-only category conviction = %s, want none", credit.Conviction)
	}
	if len(credit.AllowedMetrics) == 0 {
		t.Error("credit directive must carry its allowed metrics")
	}

	if bundle.Participation != "Expanding" {
		t.Errorf("participation = %s, want Expanding", bundle.Participation)
	}
	if len(bundle.BannedTerms) != 1 || bundle.BannedTerms[0] != "smart money" {
		t.Errorf("banned terms not carried: %v", bundle.BannedTerms)
	}
}

func TestBuildEventDayCapsConviction(t *testing.T) {
	b := NewBuilder(nil, nil, nil, nil, nil)
	bundle, err := b.Build(day("2025-03-21"), testDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !bundle.Events.MonthlyOPEX || !bundle.Events.TripleWitching {
		t.Fatalf("2025-03-21 should flag OPEX and triple witching: %+v", bundle.Events)
	}

	eq, _ := bundle.SignalFor(extract.ClassEquity)
	if eq.DirectionAllowed {
		t.Error("event day must revoke direction permission")
	}
	if !eq.Provisional {
		t.Error("directional signal on event day should be provisional, not erased")
	}
	if eq.Label != "Directional" {
		t.Errorf("label must survive the gate, got %s", eq.Label)
	}

	val, _ := bundle.DirectiveFor(scoring.CategoryValuation)
	if val.Conviction != ConvictionProvisional {
		t.Errorf("valuation conviction = %s, want provisional", val.Conviction)
	}
	// Scores themselves are untouched by events.
	if val.Score == nil {
		t.Error("event day must not blank scores")
	}
}

func TestBuildRenderIsByteIdentical(t *testing.T) {
	b := NewBuilder(nil, nil, calendar.New(&calendar.Config{
		Overrides: []calendar.Override{{Date: "2025-03-24", Flags: []string{"AUCTION_WEEK"}, Note: "3y/10y/30y supply"}},
	}), nil, []string{"smart money", "whales"})

	var first []byte
	for i := 0; i < 5; i++ {
		bundle, err := b.Build(day("2025-03-24"), testDoc())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out, err := bundle.Render()
		if err != nil {
			t.Fatalf("render failed: %v", err)
		}
		if first == nil {
			first = out
			continue
		}
		if !bytes.Equal(first, out) {
			t.Fatalf("render %d differs from first render", i)
		}
	}
}

func TestBuildNilDocument(t *testing.T) {
	b := NewBuilder(nil, nil, nil, nil, nil)
	if _, err := b.Build(day("2025-03-07"), nil); err == nil {
		t.Fatal("expected error for nil document")
	}
}

func TestWhitelistValidation(t *testing.T) {
	t.Run("default is disjoint", func(t *testing.T) {
		if err := validateWhitelist(DefaultWhitelist()); err != nil {
			t.Fatalf("default whitelist invalid: %v", err)
		}
	})

	t.Run("rejects shared metric", func(t *testing.T) {
		w := &Whitelist{Rules: []CategoryRule{
			{Category: string(scoring.CategoryGrowth), AllowedMetrics: []string{"HY spreads"}},
			{Category: string(scoring.CategoryCredit), AllowedMetrics: []string{"HY spreads"}},
		}}
		if err := validateWhitelist(w); err == nil {
			t.Fatal("expected error for metric in two categories")
		}
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		w := &Whitelist{Rules: []CategoryRule{
			{Category: "Momentum", AllowedMetrics: []string{"RSI"}},
		}}
		if err := validateWhitelist(w); err == nil {
			t.Fatal("expected error for unknown category")
		}
	})
}
