// Package core contains the measurement engine of IOS Scale: the normalized
// value model, the gesture-to-value mappers, feedback thresholds, the
// reset-behavior policy, configuration and the capture flow lifecycle.
package core

import (
	"math"
	"time"

	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// Clamp restricts v to [lo, hi]. NaN maps to lo so the result is always a
// usable number.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampUnit restricts v to [0, 1].
func ClampUnit(v float64) float64 {
	return Clamp(v, 0, 1)
}

// NewMeasurement builds a measurement with its primary value clamped to
// [0, 1]. Secondary values are copied but not clamped; each modality owns
// their ranges.
func NewMeasurement(id string, ts time.Time, primary float64, secondary map[string]float64) models.Measurement {
	m := models.Measurement{
		ID:           id,
		Timestamp:    ts,
		PrimaryValue: ClampUnit(primary),
	}
	if len(secondary) > 0 {
		m.SecondaryValues = make(map[string]float64, len(secondary))
		for k, v := range secondary {
			m.SecondaryValues[k] = v
		}
	}
	return m
}
