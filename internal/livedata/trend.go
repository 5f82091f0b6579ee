// Package livedata resolves the live market context for a run: the broad
// equity index trend over a fixed trading-day window and the 10Y yield
// change. Everything here degrades to Unknown rather than guessing; a stale
// or short history must never produce a trend claim.
package livedata

import (
	"fmt"
	"sort"
	"time"

	"github.com/macrobrief/macrobrief/internal/extract"
)

// Candle is one daily close.
type Candle struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// TrendConfig holds the trend-resolution rules.
type TrendConfig struct {
	WindowDays    int     `yaml:"window_days"`     // trading days in the lookback
	ThresholdPct  float64 `yaml:"threshold_pct"`   // +/- band for a trend call
	StalenessDays int     `yaml:"staleness_days"`  // max calendar-day age of the latest close
}

// DefaultTrendConfig returns the production trend rules.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{WindowDays: 21, ThresholdPct: 2.0, StalenessDays: 4}
}

// ResolveTrend computes the index trend from daily candles.
//
// The same-day partial bar is excluded. The window needs WindowDays+1
// closes (the change spans WindowDays trading days). A latest close older
// than StalenessDays calendar days yields Unknown with a stale audit note.
func ResolveTrend(candles []Candle, runDate time.Time, cfg TrendConfig) extract.LiveSnapshot {
	runDay := runDate.UTC().Truncate(24 * time.Hour)

	usable := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if !c.Date.UTC().Truncate(24 * time.Hour).Before(runDay) {
			continue // same-day or future bar
		}
		usable = append(usable, c)
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i].Date.Before(usable[j].Date) })

	need := cfg.WindowDays + 1
	if len(usable) < need {
		return extract.LiveSnapshot{
			TrendStatus: extract.TrendUnknown,
			TrendAudit:  fmt.Sprintf("Insufficient data: %d closes, need %d", len(usable), need),
		}
	}

	last := usable[len(usable)-1]
	ageDays := int(runDay.Sub(last.Date.UTC().Truncate(24 * time.Hour)).Hours() / 24)
	if ageDays > cfg.StalenessDays {
		return extract.LiveSnapshot{
			TrendStatus: extract.TrendUnknown,
			TrendAudit:  fmt.Sprintf("Data Stale: latest close is %d days old", ageDays),
		}
	}

	base := usable[len(usable)-need]
	if base.Close == 0 {
		return extract.LiveSnapshot{
			TrendStatus: extract.TrendUnknown,
			TrendAudit:  "Insufficient data: zero base close",
		}
	}
	changePct := (last.Close/base.Close - 1) * 100

	status := extract.TrendFlat
	switch {
	case changePct >= cfg.ThresholdPct:
		status = extract.TrendUp
	case changePct <= -cfg.ThresholdPct:
		status = extract.TrendDown
	}

	return extract.LiveSnapshot{
		TrendStatus:       status,
		Trend1moChangePct: &changePct,
		TrendAudit: fmt.Sprintf("%d-trading-day change %.2f%% (%s -> %s)",
			cfg.WindowDays, changePct,
			base.Date.Format("2006-01-02"), last.Date.Format("2006-01-02")),
	}
}

// YieldChangeBps computes the change in basis points between the first and
// last yields of the window used for the trend. Returns nil when the series
// is too short.
func YieldChangeBps(yields []Candle, runDate time.Time, cfg TrendConfig) *float64 {
	runDay := runDate.UTC().Truncate(24 * time.Hour)
	usable := make([]Candle, 0, len(yields))
	for _, c := range yields {
		if !c.Date.UTC().Truncate(24 * time.Hour).Before(runDay) {
			continue
		}
		usable = append(usable, c)
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i].Date.Before(usable[j].Date) })

	need := cfg.WindowDays + 1
	if len(usable) < need {
		return nil
	}
	bps := (usable[len(usable)-1].Close - usable[len(usable)-need].Close) * 100
	return &bps
}
