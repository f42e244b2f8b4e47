package core

import (
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// PositionRepository persists the per-modality "last position" record read
// by the keepPosition policy.
type PositionRepository interface {
	GetPosition(modality models.Modality) (*models.Position, error)
	SetPosition(modality models.Modality, p models.Position) error
}

// NextValue returns the starting value of a new measurement for a single
// scalar. lastSaved is nil when nothing was ever saved; rnd returns a
// uniform sample in [0, 1).
func NextValue(policy models.ResetBehavior, lastSaved *float64, defaultValue, randMin, randMax float64, rnd func() float64) float64 {
	switch policy {
	case models.ResetKeepPosition:
		if lastSaved != nil {
			return *lastSaved
		}
		return defaultValue
	case models.ResetRandomPosition:
		return randMin + rnd()*(randMax-randMin)
	default:
		return defaultValue
	}
}

// NextPosition applies the reset policy to every value a modality captures.
func NextPosition(policy models.ResetBehavior, last *models.Position, d ModalityDescriptor, rnd func() float64) models.Position {
	var lastPrimary *float64
	if last != nil {
		v := last.Primary
		lastPrimary = &v
	}
	next := models.Position{
		Primary: ClampUnit(NextValue(policy, lastPrimary, d.Default, d.RandomMin, d.RandomMax, rnd)),
	}

	switch d.Kind {
	case KindScaled:
		next.Secondary = map[string]float64{}
		for _, key := range []string{models.SecondarySelfScale, models.SecondaryOtherScale} {
			lastScale := lastSecondary(last, key)
			v := NextValue(policy, lastScale, ScaleDefault, ScaleRandomMin, ScaleRandomMax, rnd)
			next.Secondary[key] = Clamp(v, ScaleMin, ScaleMax)
		}
	case KindMembership:
		next.Secondary = map[string]float64{}
		for _, key := range []string{models.SecondarySelfInSet, models.SecondaryOtherInSet} {
			lastFlag := lastSecondary(last, key)
			v := NextValue(policy, lastFlag, 0, 0, 1, rnd)
			next.Secondary[key] = boolValue(v >= 0.5)
		}
		next.Primary = MembershipPrimary(
			next.Secondary[models.SecondarySelfInSet] == 1,
			next.Secondary[models.SecondaryOtherInSet] == 1,
		)
	}
	return next
}

func lastSecondary(last *models.Position, key string) *float64 {
	if last == nil || last.Secondary == nil {
		return nil
	}
	v, ok := last.Secondary[key]
	if !ok {
		return nil
	}
	return &v
}
