// Package field provides the zone grid: land parcels, their bounded
// vegetation/moisture state, and the derived stress and productivity values.
package field

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Bounds for the clamped zone values.
const (
	MinVegetation = 0.1
	MaxVegetation = 1.0
	MinMoisture   = 0.05
	MaxMoisture   = 1.0
)

// ErrUnknownZone is returned by single-zone lookups for ids not on the grid.
var ErrUnknownZone = errors.New("unknown zone")

// ZoneID is a grid coordinate pair. Its text form is "row:col".
type ZoneID struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (id ZoneID) String() string {
	return fmt.Sprintf("%d:%d", id.Row, id.Col)
}

// MarshalText lets ZoneID serve as a JSON string and map key.
func (id ZoneID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses "row:col".
func (id *ZoneID) UnmarshalText(b []byte) error {
	parsed, err := ParseZoneID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseZoneID parses the "row:col" form.
func ParseZoneID(s string) (ZoneID, error) {
	rowStr, colStr, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ZoneID{}, fmt.Errorf("zone id %q: want row:col", s)
	}
	row, err := strconv.Atoi(rowStr)
	if err != nil {
		return ZoneID{}, fmt.Errorf("zone id %q: %w", s, err)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil {
		return ZoneID{}, fmt.Errorf("zone id %q: %w", s, err)
	}
	return ZoneID{Row: row, Col: col}, nil
}

// StressLevel is the derived health category of a zone.
type StressLevel uint8

const (
	StressNone StressLevel = iota
	StressModerate
	StressHigh
)

func (s StressLevel) String() string {
	switch s {
	case StressNone:
		return "none"
	case StressModerate:
		return "moderate"
	case StressHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalText renders the level by name.
func (s StressLevel) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a level name.
func (s *StressLevel) UnmarshalText(b []byte) error {
	for _, l := range []StressLevel{StressNone, StressModerate, StressHigh} {
		if l.String() == string(b) {
			*s = l
			return nil
		}
	}
	return fmt.Errorf("unknown stress level %q", b)
}

// Factor is the growth and productivity multiplier for the level.
func (s StressLevel) Factor() float64 {
	switch s {
	case StressHigh:
		return 0.3
	case StressModerate:
		return 0.7
	default:
		return 1.0
	}
}

// StressFor derives the stress level from moisture and vegetation.
func StressFor(moisture, vegetation float64) StressLevel {
	switch {
	case moisture < 0.2 || vegetation < 0.3:
		return StressHigh
	case moisture < 0.3 || moisture > 0.85 || vegetation < 0.45:
		return StressModerate
	default:
		return StressNone
	}
}

// Extent is layout data for renderers. The simulation never reads it.
type Extent struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Zone is one land parcel. Vegetation and moisture are only reachable
// through clamping setters; stress and productivity only through Recompute.
type Zone struct {
	ID     ZoneID
	Extent Extent

	HasIrrigation         bool
	HasFertilizer         bool
	FertilizerAppliedWeek *int

	vegetation   float64
	moisture     float64
	stress       StressLevel
	productivity float64
}

// NewZone builds a zone with clamped starting values and derived state
// computed against a pristine soil.
func NewZone(id ZoneID, extent Extent, vegetation, moisture float64) *Zone {
	z := &Zone{ID: id, Extent: extent}
	z.SetVegetation(vegetation)
	z.SetMoisture(moisture)
	z.Recompute(1.0)
	return z
}

func (z *Zone) Vegetation() float64 { return z.vegetation }
func (z *Zone) Moisture() float64 { return z.moisture }
func (z *Zone) Stress() StressLevel { return z.stress }
func (z *Zone) Productivity() float64 { return z.productivity }

// SetVegetation stores v clamped to [MinVegetation, MaxVegetation].
func (z *Zone) SetVegetation(v float64) {
	z.vegetation = clamp(v, MinVegetation, MaxVegetation)
}

// AddVegetation shifts vegetation by d, clamped.
func (z *Zone) AddVegetation(d float64) {
	z.SetVegetation(z.vegetation + d)
}

// RaiseVegetationTo adds d but never pushes vegetation past ceiling.
// A zone already above the ceiling is left where it is.
func (z *Zone) RaiseVegetationTo(d, ceiling float64) {
	target := z.vegetation + d
	if target > ceiling {
		target = max(ceiling, z.vegetation)
	}
	z.SetVegetation(target)
}

// SetMoisture stores m clamped to [MinMoisture, MaxMoisture].
func (z *Zone) SetMoisture(m float64) {
	z.moisture = clamp(m, MinMoisture, MaxMoisture)
}

// AddMoisture shifts moisture by d, clamped.
func (z *Zone) AddMoisture(d float64) {
	z.SetMoisture(z.moisture + d)
}

// ForceStress overrides the derived stress level until the next Recompute.
// Extreme-event handlers are the only callers.
func (z *Zone) ForceStress(level StressLevel, soilHealth float64) {
	z.stress = level
	z.productivity = z.vegetation * level.Factor() * soilHealth
}

// Recompute derives stress and productivity from the current values.
func (z *Zone) Recompute(soilHealth float64) {
	z.stress = StressFor(z.moisture, z.vegetation)
	z.productivity = z.vegetation * z.stress.Factor() * soilHealth
}

// Clone returns an independent copy.
func (z *Zone) Clone() Zone {
	c := *z
	if z.FertilizerAppliedWeek != nil {
		w := *z.FertilizerAppliedWeek
		c.FertilizerAppliedWeek = &w
	}
	return c
}

type zoneJSON struct {
	ID                    ZoneID      `json:"id"`
	Extent                Extent      `json:"extent"`
	Vegetation            float64     `json:"vegetation_index"`
	Moisture              float64     `json:"soil_moisture"`
	Stress                StressLevel `json:"stress_level"`
	Productivity          float64     `json:"productivity"`
	HasIrrigation         bool        `json:"has_irrigation"`
	HasFertilizer         bool        `json:"has_fertilizer"`
	FertilizerAppliedWeek *int        `json:"fertilizer_applied_week,omitempty"`
}

// MarshalJSON exposes the derived and bounded values read-only.
func (z Zone) MarshalJSON() ([]byte, error) {
	return json.Marshal(zoneJSON{
		ID:                    z.ID,
		Extent:                z.Extent,
		Vegetation:            z.vegetation,
		Moisture:              z.moisture,
		Stress:                z.stress,
		Productivity:          z.productivity,
		HasIrrigation:         z.HasIrrigation,
		HasFertilizer:         z.HasFertilizer,
		FertilizerAppliedWeek: z.FertilizerAppliedWeek,
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
