package signals

import (
	"testing"

	"github.com/macrobrief/macrobrief/internal/extract"
)

func TestAnalyzeCurve(t *testing.T) {
	tenors := map[string]extract.TenorRow{
		"2y":    {OIChange: f(12000)},
		"3y":    {OIChange: f(3000)},
		"5y":    {OIChange: f(-40000)},
		"10y":   {OIChange: f(8000)},
		"TN":    {OIChange: f(2000)},
		"30y":   {OIChange: f(-1000)},
		"ultra": {OIChange: nil},
	}

	a := AnalyzeCurve(tenors)
	if a == nil {
		t.Fatal("expected analysis, got nil")
	}

	byName := map[string]ClusterActivity{}
	for _, cl := range a.Clusters {
		byName[cl.Cluster] = cl
	}

	if got := byName["Short End"].NetOIChange; got == nil || *got != 15000 {
		t.Errorf("Short End = %v, want 15000", got)
	}
	if got := byName["Belly"].NetOIChange; got == nil || *got != -40000 {
		t.Errorf("Belly = %v, want -40000", got)
	}
	if got := byName["Tens"].NetOIChange; got == nil || *got != 10000 {
		t.Errorf("Tens = %v, want 10000 (TN matched case-insensitively)", got)
	}
	if got := byName["Long End"].NetOIChange; got == nil || *got != -1000 {
		t.Errorf("Long End = %v, want -1000", got)
	}

	if a.ActiveCluster != "Belly" {
		t.Errorf("active cluster = %q, want Belly (largest absolute change)", a.ActiveCluster)
	}
	if a.Regime == "" || a.Regime == "Quiet" {
		t.Errorf("regime = %q, want a rotation read", a.Regime)
	}
}

func TestAnalyzeCurveAbsentClusters(t *testing.T) {
	a := AnalyzeCurve(map[string]extract.TenorRow{"5y": {OIChange: f(5000)}})
	for _, cl := range a.Clusters {
		if cl.Cluster == "Belly" {
			if cl.NetOIChange == nil || *cl.NetOIChange != 5000 {
				t.Errorf("Belly = %v, want 5000", cl.NetOIChange)
			}
			continue
		}
		if cl.NetOIChange != nil {
			t.Errorf("cluster %s = %v, want absent (no reported tenors)", cl.Cluster, *cl.NetOIChange)
		}
	}
	if a.ActiveCluster != "Belly" {
		t.Errorf("active cluster = %q, want Belly", a.ActiveCluster)
	}
	if a.Regime != "Broad OI Build" {
		t.Errorf("regime = %q, want Broad OI Build", a.Regime)
	}
}

func TestAnalyzeCurveEmpty(t *testing.T) {
	if a := AnalyzeCurve(nil); a != nil {
		t.Errorf("expected nil analysis for no tenors, got %+v", a)
	}
}
