// Package growth is the per-zone, per-week transition function.
//
// Effects are not commutative, so Step always applies them in the same order:
// weather, growth, natural stressors, derived recompute, extreme events, and
// finally settling of the intervention flags.
package growth

import (
	"github.com/talgya/farm-season/internal/crop"
	"github.com/talgya/farm-season/internal/field"
	"github.com/talgya/farm-season/internal/weather"
)

// Weather thresholds.
const (
	ComfortLowC         = 15.0
	DefaultComfortHighC = 35.0
	WetnessThresholdMM  = 20.0
	WindThresholdKPH    = 25.0
)

// Natural stressor tuning.
const (
	SoilDecayRate   = 0.985 // Global soil health multiplier per week
	SoilHealthFloor = 0.5
	PestIncrement   = 0.02
	PestCeiling     = 0.6
	PestDamage      = 0.04 // Vegetation lost per unit of pest pressure
	CanopyWaterUse  = 0.04 // Base weekly moisture draw per unit vegetation
)

// Conditions is the farm-wide state shared by every zone in one tick.
type Conditions struct {
	SoilHealth   float64 `json:"soil_health"`
	PestPressure float64 `json:"pest_pressure"`
}

// FreshConditions is the state at season start.
func FreshConditions() Conditions {
	return Conditions{SoilHealth: 1.0}
}

// Advance applies one week of global decay. Called once per tick,
// before any zone is stepped.
func (c Conditions) Advance() Conditions {
	c.SoilHealth = max(SoilHealthFloor, c.SoilHealth*SoilDecayRate)
	c.PestPressure = min(PestCeiling, c.PestPressure+PestIncrement)
	return c
}

// Inputs is everything Step reads besides the zone itself.
type Inputs struct {
	Crop       crop.Profile
	Weather    weather.Sample
	Conditions Conditions
	Week       int                    // 0-based week being simulated
	Events     []weather.ExtremeEvent // Extreme events active this week
}

// Step advances one zone by one week.
func Step(z *field.Zone, in Inputs) {
	ApplyWeather(z, in.Weather, in.Crop)
	Grow(z, in.Crop, in.Conditions, in.Week)
	ApplyStressors(z, in.Crop, in.Conditions)
	z.Recompute(in.Conditions.SoilHealth)
	for _, ev := range in.Events {
		ApplyExtreme(z, ev, in.Conditions.SoilHealth)
	}
	SettleFlags(z, in.Week)
}

// ApplyWeather applies temperature, rain and wind effects.
func ApplyWeather(z *field.Zone, s weather.Sample, p crop.Profile) {
	high := p.HeatToleranceC
	if high <= 0 {
		high = DefaultComfortHighC
	}

	switch {
	case s.TemperatureC > high:
		excess := s.TemperatureC - high
		z.AddVegetation(-excess * 0.01)
		z.AddMoisture(-excess * 0.008)
	case s.TemperatureC < ComfortLowC:
		z.AddVegetation(-(ComfortLowC - s.TemperatureC) * 0.006)
	}

	z.AddMoisture(s.PrecipitationMM * 0.004)
	if s.PrecipitationMM > WetnessThresholdMM {
		z.AddVegetation(0.01)
	}

	if s.WindKPH > WindThresholdKPH {
		loss := (s.WindKPH - WindThresholdKPH) * 0.002
		if z.HasIrrigation {
			loss *= 0.5
		}
		z.AddMoisture(-loss)
	}
}

// Grow moves vegetation toward the crop's optimal index.
func Grow(z *field.Zone, p crop.Profile, c Conditions, week int) {
	gap := p.OptimalVegetation - z.Vegetation()
	if gap <= 0 {
		z.AddVegetation(gap * p.GrowthRate)
		return
	}
	rate := p.GrowthRate *
		MoistureFactor(z.Moisture()) *
		z.Stress().Factor() *
		FertilizerStageAt(z, week).Boost(p.NitrogenRequirement) *
		c.SoilHealth *
		(1 - c.PestPressure)
	z.AddVegetation(gap * rate)
}

// MoistureFactor discounts growth in soil that is too dry or waterlogged.
func MoistureFactor(moisture float64) float64 {
	switch {
	case moisture < 0.3:
		return 0.5
	case moisture > 0.7:
		return 0.6
	default:
		return 1.0
	}
}

// ApplyStressors applies pest damage and canopy water use. Soil decay is
// global and handled by Conditions.Advance.
func ApplyStressors(z *field.Zone, p crop.Profile, c Conditions) {
	z.AddVegetation(-c.PestPressure * PestDamage)
	z.AddMoisture(-CanopyWaterUse * z.Vegetation() * (0.5 + p.WaterRequirement))
}

// SettleFlags clears irrigation and expires fertilizer after its horizon.
func SettleFlags(z *field.Zone, week int) {
	z.HasIrrigation = false
	if z.HasFertilizer && EffectWeek(z, week) >= FertilizerHorizonWeeks {
		z.HasFertilizer = false
		z.FertilizerAppliedWeek = nil
	}
}
