package livedata

import (
	"testing"
	"time"

	"github.com/macrobrief/macrobrief/internal/extract"
)

// series builds n daily closes ending the day before runDate, weekends
// skipped, walking linearly from start to end.
func series(runDate time.Time, n int, start, end float64) []Candle {
	candles := make([]Candle, 0, n)
	day := runDate
	for len(candles) < n {
		day = day.AddDate(0, 0, -1)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		candles = append(candles, Candle{Date: day})
	}
	// candles[0] is the most recent; assign closes oldest->newest.
	for i := range candles {
		frac := float64(len(candles)-1-i) / float64(len(candles)-1)
		candles[i].Close = start + (end-start)*frac
	}
	return candles
}

func run(t *testing.T) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", "2025-03-24")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestResolveTrendUp(t *testing.T) {
	candles := series(run(t), 30, 5000, 5200) // +4%
	snap := ResolveTrend(candles, run(t), DefaultTrendConfig())
	if snap.TrendStatus != extract.TrendUp {
		t.Errorf("status = %s, want Trending Up (audit: %s)", snap.TrendStatus, snap.TrendAudit)
	}
	if snap.Trend1moChangePct == nil || *snap.Trend1moChangePct < 2.0 {
		t.Errorf("change = %v, want > 2%%", snap.Trend1moChangePct)
	}
}

func TestResolveTrendDown(t *testing.T) {
	candles := series(run(t), 30, 5200, 5000)
	snap := ResolveTrend(candles, run(t), DefaultTrendConfig())
	if snap.TrendStatus != extract.TrendDown {
		t.Errorf("status = %s, want Trending Down", snap.TrendStatus)
	}
}

func TestResolveTrendFlat(t *testing.T) {
	candles := series(run(t), 30, 5000, 5040) // +0.8%
	snap := ResolveTrend(candles, run(t), DefaultTrendConfig())
	if snap.TrendStatus != extract.TrendFlat {
		t.Errorf("status = %s, want Flat", snap.TrendStatus)
	}
}

func TestResolveTrendInsufficientData(t *testing.T) {
	candles := series(run(t), 15, 5000, 5200)
	snap := ResolveTrend(candles, run(t), DefaultTrendConfig())
	if snap.TrendStatus != extract.TrendUnknown {
		t.Errorf("status = %s, want Unknown", snap.TrendStatus)
	}
	if snap.TrendAudit == "" || snap.Trend1moChangePct != nil {
		t.Errorf("short history must carry an audit note and no change: %+v", snap)
	}
}

func TestResolveTrendStaleData(t *testing.T) {
	// History ends well before the run date.
	old := run(t).AddDate(0, 0, -10)
	candles := series(old, 30, 5000, 5200)
	snap := ResolveTrend(candles, run(t), DefaultTrendConfig())
	if snap.TrendStatus != extract.TrendUnknown {
		t.Errorf("status = %s, want Unknown", snap.TrendStatus)
	}
	if snap.TrendAudit == "" || snap.TrendAudit[:10] != "Data Stale" {
		t.Errorf("audit = %q, want Data Stale prefix", snap.TrendAudit)
	}
}

func TestResolveTrendExcludesSameDayBar(t *testing.T) {
	candles := series(run(t), 30, 5000, 5040)
	// A same-day partial bar with an extreme print must not move the read.
	candles = append(candles, Candle{Date: run(t), Close: 9000})
	snap := ResolveTrend(candles, run(t), DefaultTrendConfig())
	if snap.TrendStatus != extract.TrendFlat {
		t.Errorf("status = %s, want Flat (same-day bar excluded)", snap.TrendStatus)
	}
}

func TestYieldChangeBps(t *testing.T) {
	candles := series(run(t), 30, 4.20, 4.35)
	bps := YieldChangeBps(candles, run(t), DefaultTrendConfig())
	if bps == nil {
		t.Fatal("expected a change, got nil")
	}
	// The window spans 21 trading days of a linear walk across 30 candles.
	if *bps < 5 || *bps > 15 {
		t.Errorf("change = %.2f bps, want roughly +10", *bps)
	}
	if got := YieldChangeBps(candles[:10], run(t), DefaultTrendConfig()); got != nil {
		t.Errorf("short series = %v, want nil", got)
	}
}
