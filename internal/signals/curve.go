package signals

import (
	"math"
	"sort"
	"strings"

	"github.com/macrobrief/macrobrief/internal/extract"
)

// Treasury futures tenors grouped into curve clusters. Cluster membership is
// fixed; unknown tenor labels are ignored rather than guessed.
var tenorClusters = []struct {
	Name   string
	Tenors []string
}{
	{Name: "Short End", Tenors: []string{"2y", "3y"}},
	{Name: "Belly", Tenors: []string{"5y"}},
	{Name: "Tens", Tenors: []string{"10y", "tn"}},
	{Name: "Long End", Tenors: []string{"30y", "ultra"}},
}

// ClusterActivity is one curve cluster's aggregated open-interest change.
type ClusterActivity struct {
	Cluster     string   `json:"cluster"`
	NetOIChange *float64 `json:"net_oi_change"`
	Tenors      []string `json:"tenors"`
}

// CurveAnalysis summarizes where along the Treasury curve positioning moved.
type CurveAnalysis struct {
	Clusters      []ClusterActivity `json:"clusters"`
	ActiveCluster string            `json:"active_cluster"`
	Regime        string            `json:"regime"`
}

// AnalyzeCurve aggregates per-tenor OI changes into the four curve clusters
// and names the most active one by absolute net change. Tenor keys are
// matched case-insensitively. A cluster with no reported tenors stays absent
// rather than zero.
func AnalyzeCurve(tenors map[string]extract.TenorRow) *CurveAnalysis {
	if len(tenors) == 0 {
		return nil
	}

	normalized := make(map[string]extract.TenorRow, len(tenors))
	for k, v := range tenors {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}

	analysis := &CurveAnalysis{Clusters: make([]ClusterActivity, 0, len(tenorClusters))}
	bestAbs := -1.0
	for _, cl := range tenorClusters {
		activity := ClusterActivity{Cluster: cl.Name, Tenors: cl.Tenors}
		var sum float64
		seen := false
		for _, tenor := range cl.Tenors {
			row, ok := normalized[tenor]
			if !ok || row.OIChange == nil {
				continue
			}
			sum += *row.OIChange
			seen = true
		}
		if seen {
			v := sum
			activity.NetOIChange = &v
			if abs := math.Abs(sum); abs > bestAbs {
				bestAbs = abs
				analysis.ActiveCluster = cl.Name
			}
		}
		analysis.Clusters = append(analysis.Clusters, activity)
	}

	analysis.Regime = curveRegime(analysis)
	return analysis
}

// curveRegime gives a coarse positioning regime from which clusters built
// versus shed open interest. It describes flow location, not rate direction.
func curveRegime(a *CurveAnalysis) string {
	building := make([]string, 0, 4)
	shedding := make([]string, 0, 4)
	for _, cl := range a.Clusters {
		if cl.NetOIChange == nil {
			continue
		}
		switch {
		case *cl.NetOIChange > 0:
			building = append(building, cl.Cluster)
		case *cl.NetOIChange < 0:
			shedding = append(shedding, cl.Cluster)
		}
	}
	sort.Strings(building)
	sort.Strings(shedding)

	switch {
	case len(building) == 0 && len(shedding) == 0:
		return "Quiet"
	case len(shedding) == 0:
		return "Broad OI Build"
	case len(building) == 0:
		return "Broad OI Unwind"
	default:
		return "Rotation: into " + strings.Join(building, "/") + ", out of " + strings.Join(shedding, "/")
	}
}
