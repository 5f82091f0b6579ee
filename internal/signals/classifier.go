// Package signals classifies open-interest flow into positioning signals.
// The classifier is sign-independent: it reads conviction structure
// (futures-led vs options-led, magnitude vs noise floor), never direction.
package signals

import (
	"math"

	"github.com/macrobrief/macrobrief/internal/extract"
)

// Label is the positioning read for one asset class.
type Label string

const (
	LabelDirectional Label = "Directional"
	LabelHedgingVol  Label = "Hedging-Vol"
	LabelNoise       Label = "Noise"
)

// Participation describes whether open interest is building or unwinding.
type Participation string

const (
	ParticipationExpanding   Participation = "Expanding"
	ParticipationContracting Participation = "Contracting"
	ParticipationFlat        Participation = "Flat"
)

// Signal is the classified read for one asset class.
type Signal struct {
	Class             extract.AssetClass `json:"asset_class"`
	FuturesDelta      *float64           `json:"futures_delta"`
	OptionsDelta      *float64           `json:"options_delta"`
	CombinedMagnitude float64            `json:"combined_magnitude"`
	DominanceRatio    float64            `json:"dominance_ratio"`
	Label             Label              `json:"label"`
	Detail            string             `json:"detail"`
}

// Classifier turns raw OI deltas into signals using configured noise floors
// and dominance cutoffs.
type Classifier struct {
	cfg *Config
}

// NewClassifier builds a classifier; a nil config falls back to defaults.
func NewClassifier(cfg *Config) *Classifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Classifier{cfg: cfg}
}

// Classify labels one asset class's open-interest delta pair.
//
// dominance = max(|futures|, |options|) / (|futures| + |options|). A pair
// below the class noise floor, or with both legs at zero, is Noise. The
// classifier never looks at the sign of either leg.
func (c *Classifier) Classify(class extract.AssetClass, delta extract.OIDelta) Signal {
	sig := Signal{
		Class:        class,
		FuturesDelta: delta.FuturesDelta,
		OptionsDelta: delta.OptionsDelta,
		Label:        LabelNoise,
	}

	if delta.FuturesDelta == nil || delta.OptionsDelta == nil {
		sig.Detail = "insufficient data: missing delta leg"
		return sig
	}

	fut := math.Abs(*delta.FuturesDelta)
	opt := math.Abs(*delta.OptionsDelta)
	combined := fut + opt
	sig.CombinedMagnitude = combined

	if combined == 0 {
		sig.Detail = "no open-interest change"
		return sig
	}
	sig.DominanceRatio = math.Max(fut, opt) / combined

	floor := c.cfg.NoiseFloor(class)
	if combined < floor {
		sig.Detail = "combined magnitude below noise floor"
		return sig
	}

	switch {
	case sig.DominanceRatio >= c.cfg.DirectionalCutoff:
		sig.Label = LabelDirectional
		if fut >= opt {
			sig.Detail = "futures-led flow"
		} else {
			sig.Detail = "options-led flow"
		}
	case sig.DominanceRatio >= c.cfg.HedgingCutoff:
		sig.Label = LabelHedgingVol
		sig.Detail = "balanced futures/options flow"
	default:
		sig.Detail = "dominance below hedging cutoff"
	}
	return sig
}

// ClassifyParticipation labels the overall open-interest trend from the
// exchange-wide net change. A nil input is Flat with no claim either way.
func ClassifyParticipation(netChange *float64) Participation {
	if netChange == nil {
		return ParticipationFlat
	}
	switch {
	case *netChange > 0:
		return ParticipationExpanding
	case *netChange < 0:
		return ParticipationContracting
	default:
		return ParticipationFlat
	}
}
