package trend

import (
	"math"

	"github.com/sipboard/sipboard/pkg/models"
)

// classify derives the direction of an observation series.
//
// Fewer than two observations carry no trend. Oscillation is checked
// first: when the significant day-to-day moves (|delta| above the
// tolerance) flip sign at least twice, the series whipsawed no matter
// where it ended. Otherwise the net move against the tolerance band
// decides. Gaps between observed days are treated as adjacency, never
// interpolated.
func (a *Analyzer) classify(obs []models.Observation) models.TrendDirection {
	if len(obs) < 2 {
		return models.TrendInsufficient
	}

	var signs []int
	for i := 1; i < len(obs); i++ {
		delta := obs[i].Value - obs[i-1].Value
		if math.Abs(delta) <= a.cfg.Tolerance {
			continue
		}
		if delta > 0 {
			signs = append(signs, 1)
		} else {
			signs = append(signs, -1)
		}
	}
	flips := 0
	for i := 1; i < len(signs); i++ {
		if signs[i] != signs[i-1] {
			flips++
		}
	}
	if flips >= 2 {
		return models.TrendOscillating
	}

	net := obs[len(obs)-1].Value - obs[0].Value
	switch {
	case net > a.cfg.Tolerance:
		return models.TrendUp
	case net < -a.cfg.Tolerance:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}
