package growth

import "github.com/talgya/farm-season/internal/field"

// FertilizerHorizonWeeks is how long one application keeps acting.
const FertilizerHorizonWeeks = 6

// FertilizerStage is the decay stage of an application.
type FertilizerStage uint8

const (
	FertilizerNone FertilizerStage = iota
	FertilizerStrong
	FertilizerModerate
	FertilizerWeak
	FertilizerExpired
)

func (s FertilizerStage) String() string {
	switch s {
	case FertilizerStrong:
		return "strong"
	case FertilizerModerate:
		return "moderate"
	case FertilizerWeak:
		return "weak"
	case FertilizerExpired:
		return "expired"
	default:
		return "none"
	}
}

// Multiplier is the growth-rate boost for the stage.
func (s FertilizerStage) Multiplier() float64 {
	switch s {
	case FertilizerStrong:
		return 1.5
	case FertilizerModerate:
		return 1.2
	case FertilizerWeak:
		return 1.05
	default:
		return 1
	}
}

// Boost is the growth multiplier for a crop with the given nitrogen
// requirement. The stage bonus scales with demand; at 0.5 it applies as is.
func (s FertilizerStage) Boost(nitrogen float64) float64 {
	return 1 + (s.Multiplier()-1)*(0.5+nitrogen)
}

// FertilizerStageAt reports the stage during the tick for week. The first
// tick after application is effect week 1.
func FertilizerStageAt(z *field.Zone, week int) FertilizerStage {
	if !z.HasFertilizer || z.FertilizerAppliedWeek == nil {
		return FertilizerNone
	}
	switch effectWeek := EffectWeek(z, week); {
	case effectWeek <= 2:
		return FertilizerStrong
	case effectWeek <= 4:
		return FertilizerModerate
	case effectWeek <= FertilizerHorizonWeeks:
		return FertilizerWeak
	default:
		return FertilizerExpired
	}
}

// EffectWeek is the 1-based week of effect for the zone's application, or
// 0 if unfertilized.
func EffectWeek(z *field.Zone, week int) int {
	if z.FertilizerAppliedWeek == nil {
		return 0
	}
	return max(1, week-*z.FertilizerAppliedWeek+1)
}
