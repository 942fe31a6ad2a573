package engine

import (
	"math"

	"github.com/talgya/farm-season/internal/field"
	"github.com/talgya/farm-season/internal/ledger"
)

// Score weights.
const (
	HealthWeight  = 50.0
	WaterWeight   = 30.0
	TimeCap       = 20.0
	TimePerWeek   = 2.0
	ScoreMinimum  = 0.0
	ScoreMaximum  = 100.0
	HealthyCutoff = 0.6 // Vegetation above this counts as healthy
)

// ScoreBreakdown is the sustainability score with its components.
type ScoreBreakdown struct {
	Health   float64 `json:"health"`
	Water    float64 `json:"water"`
	Time     float64 `json:"time"`
	Practice float64 `json:"practice"`
	Total    float64 `json:"total"`
}

// ComputeScore derives the score from scratch. It reads nothing but its
// arguments, so calling it twice on the same state yields the same value.
func ComputeScore(healthyFraction, waterUsedFraction float64, week int, practice float64) ScoreBreakdown {
	b := ScoreBreakdown{
		Health:   HealthWeight * healthyFraction,
		Water:    WaterWeight * (1 - waterUsedFraction),
		Time:     math.Min(TimeCap, float64(week)*TimePerWeek),
		Practice: practice,
	}
	b.Total = math.Max(ScoreMinimum, math.Min(ScoreMaximum, b.Health+b.Water+b.Time+b.Practice))
	return b
}

// HealthyFraction is the share of zones with vegetation above HealthyCutoff.
func HealthyFraction(g *field.Grid) float64 {
	if g.Len() == 0 {
		return 0
	}
	return float64(g.Count(field.Healthy)) / float64(g.Len())
}

// StressedFraction is the share of zones with any stress.
func StressedFraction(g *field.Grid) float64 {
	if g.Len() == 0 {
		return 0
	}
	return float64(g.Count(field.Stressed)) / float64(g.Len())
}

// scoreState computes the breakdown for the current grid and ledger.
func scoreState(g *field.Grid, l *ledger.Ledger, week int) ScoreBreakdown {
	return ComputeScore(HealthyFraction(g), l.WaterUsedFraction(), week, l.Practice)
}
