package steward

import (
	"github.com/talgya/farm-season/internal/field"
	"github.com/talgya/farm-season/internal/weather"
)

// Crisis grades overall field health.
type Crisis string

const (
	CrisisHealthy  Crisis = "HEALTHY"
	CrisisWatch    Crisis = "WATCH"
	CrisisWarning  Crisis = "WARNING"
	CrisisCritical Crisis = "CRITICAL"
)

// Urgency scales how much of the per-week budget share a plan may use.
func (c Crisis) Urgency() float64 {
	switch c {
	case CrisisCritical:
		return 3
	case CrisisWarning:
		return 2
	case CrisisWatch:
		return 1.5
	default:
		return 1
	}
}

// FieldHealth holds diagnostic signals derived from a FieldSnapshot.
// Deterministic; runs before any planning.
type FieldHealth struct {
	Zones            int
	Healthy          int
	Stressed         int
	Severe           int // StressHigh
	StressedFraction float64
	SevereFraction   float64
	WaterLeft        float64 // fraction of the initial water budget
	WeeksLeft        int
	Threats          []weather.EventKind // active extremes
	CrisisLevel      Crisis
}

// Triage computes FieldHealth from the snapshot.
func Triage(snap *FieldSnapshot) *FieldHealth {
	h := &FieldHealth{
		Zones:     len(snap.Zones),
		WeeksLeft: max(0, snap.Status.MaxWeeks-snap.Status.Week),
	}
	for _, z := range snap.Zones {
		if z.Vegetation > 0.6 {
			h.Healthy++
		}
		if z.Stress != field.StressNone {
			h.Stressed++
		}
		if z.Stress == field.StressHigh {
			h.Severe++
		}
	}
	if h.Zones > 0 {
		h.StressedFraction = float64(h.Stressed) / float64(h.Zones)
		h.SevereFraction = float64(h.Severe) / float64(h.Zones)
	}

	l := snap.Status.Ledger
	if l.InitialWater > 0 {
		h.WaterLeft = l.Water / l.InitialWater
	}

	drying := false
	for _, a := range snap.Status.Active {
		h.Threats = append(h.Threats, a.Kind)
		if a.Kind == weather.Heatwave || a.Kind == weather.Drought {
			drying = true
		}
	}

	// Spending faster than the calendar is a watch signal on its own.
	var seasonLeft float64
	if snap.Status.MaxWeeks > 0 {
		seasonLeft = float64(h.WeeksLeft) / float64(snap.Status.MaxWeeks)
	}

	h.CrisisLevel = CrisisHealthy
	switch {
	case h.StressedFraction > 0.5 || h.SevereFraction > 0.25:
		h.CrisisLevel = CrisisCritical
	case h.StressedFraction > 0.25 || drying:
		h.CrisisLevel = CrisisWarning
	case h.StressedFraction > 0.1 || len(h.Threats) > 0 || h.WaterLeft < seasonLeft*0.5:
		h.CrisisLevel = CrisisWatch
	}
	return h
}
