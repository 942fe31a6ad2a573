// Package weather generates a season's weekly climate samples and, optionally,
// calibrates a location profile from live conditions before generation.
package weather

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/talgya/farm-season/internal/entropy"
)

// ErrInvalidSeasonLength rejects non-positive week counts.
var ErrInvalidSeasonLength = errors.New("invalid season length")

// DefaultExtremeChance is the per-week probability of an extreme event.
const DefaultExtremeChance = 0.15

// EventKind enumerates extreme weather events.
type EventKind uint8

const (
	Heatwave EventKind = iota
	Drought
	Flooding
	Hail
	Windstorm

	eventKindCount = 5
)

var eventNames = [eventKindCount]string{"heatwave", "drought", "flooding", "hail", "windstorm"}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// MarshalText renders the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *EventKind) UnmarshalText(b []byte) error {
	parsed, ok := ParseEventKind(string(b))
	if !ok {
		return fmt.Errorf("unknown extreme event %q", string(b))
	}
	*k = parsed
	return nil
}

// ParseEventKind resolves a kind by name.
func ParseEventKind(s string) (EventKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range eventNames {
		if name == s {
			return EventKind(i), true
		}
	}
	return 0, false
}

// ExtremeEvent is a low-probability, high-impact weekly anomaly.
type ExtremeEvent struct {
	Kind      EventKind `json:"kind"`
	Intensity float64   `json:"intensity"` // 0.5–1.0
	Duration  int       `json:"duration"`  // 1–3 weeks
}

// Sample is one week's climate draw.
type Sample struct {
	Week            int           `json:"week"` // 1-based
	TemperatureC    float64       `json:"temperature_c"`
	PrecipitationMM float64       `json:"precipitation_mm"`
	Humidity        float64       `json:"humidity"`
	WindKPH         float64       `json:"wind_kph"`
	Extreme         *ExtremeEvent `json:"extreme_event,omitempty"`
}

// Season is an immutable sequence of weekly samples.
type Season struct {
	samples []Sample
}

// NewSeason wraps precomputed samples. The slice is copied.
func NewSeason(samples []Sample) Season {
	return Season{samples: cloneSamples(samples)}
}

// Len returns the number of weeks covered.
func (s Season) Len() int {
	return len(s.samples)
}

// At returns the sample for a 0-based week index.
func (s Season) At(index int) (Sample, bool) {
	if index < 0 || index >= len(s.samples) {
		return Sample{}, false
	}
	return cloneSample(s.samples[index]), true
}

// Samples returns a copy of every sample.
func (s Season) Samples() []Sample {
	return cloneSamples(s.samples)
}

// Regime is one precipitation parameter set.
type Regime struct {
	RainChance float64 `yaml:"rain_chance" json:"rain_chance"`
	MinMM      float64 `yaml:"min_mm" json:"min_mm"`
	MaxMM      float64 `yaml:"max_mm" json:"max_mm"`
}

// Location describes the climate a season is drawn from.
type Location struct {
	Name       string  `yaml:"name" json:"name"`
	BaseTempC  float64 `yaml:"base_temp_c" json:"base_temp_c"`
	AmplitudeC float64 `yaml:"amplitude_c" json:"amplitude_c"` // Peak seasonal swing above base
	JitterC    float64 `yaml:"jitter_c" json:"jitter_c"`

	// Wet window, inclusive 1-based weeks.
	WetStart int    `yaml:"wet_start" json:"wet_start"`
	WetEnd   int    `yaml:"wet_end" json:"wet_end"`
	Wet      Regime `yaml:"wet" json:"wet"`
	Dry      Regime `yaml:"dry" json:"dry"`

	BaseHumidity float64 `yaml:"base_humidity" json:"base_humidity"`
	BaseWindKPH  float64 `yaml:"base_wind_kph" json:"base_wind_kph"`
	GustKPH      float64 `yaml:"gust_kph" json:"gust_kph"`
}

// DefaultLocation is a monsoon-framed farming district.
func DefaultLocation() Location {
	return Location{
		Name:         "river plains",
		BaseTempC:    24,
		AmplitudeC:   8,
		JitterC:      3,
		WetStart:     8,
		WetEnd:       12,
		Wet:          Regime{RainChance: 0.7, MinMM: 15, MaxMM: 45},
		Dry:          Regime{RainChance: 0.25, MinMM: 1, MaxMM: 10},
		BaseHumidity: 55,
		BaseWindKPH:  8,
		GustKPH:      20,
	}
}

// InWetWindow reports whether a 1-based week falls in the wet regime.
func (l Location) InWetWindow(week int) bool {
	return week >= l.WetStart && week <= l.WetEnd
}

// Generator draws seasons from an injected random source.
type Generator struct {
	src           entropy.Source
	ExtremeChance float64
}

// NewGenerator creates a generator with the default extreme-event chance.
func NewGenerator(src entropy.Source) *Generator {
	return &Generator{src: src, ExtremeChance: DefaultExtremeChance}
}

// GenerateSeason draws weeks samples for loc. Draw order per week is fixed
// (temperature, rain, humidity, wind, extreme) so a seeded source replays.
func (g *Generator) GenerateSeason(weeks int, loc Location) (Season, error) {
	if weeks <= 0 {
		return Season{}, fmt.Errorf("generate %d weeks: %w", weeks, ErrInvalidSeasonLength)
	}

	samples := make([]Sample, 0, weeks)
	for i := 0; i < weeks; i++ {
		week := i + 1
		s := Sample{Week: week}

		s.TemperatureC = loc.BaseTempC + loc.AmplitudeC*seasonalCurve(i, weeks) +
			entropy.Uniform(g.src, -loc.JitterC, loc.JitterC)

		regime := loc.Dry
		if loc.InWetWindow(week) {
			regime = loc.Wet
		}
		if g.src.Float64() < regime.RainChance {
			s.PrecipitationMM = entropy.Uniform(g.src, regime.MinMM, regime.MaxMM)
		}

		s.Humidity = clamp(loc.BaseHumidity+s.PrecipitationMM*0.6+entropy.Uniform(g.src, -5, 5), 10, 100)
		s.WindKPH = loc.BaseWindKPH + entropy.Uniform(g.src, 0, loc.GustKPH)

		if g.src.Float64() < g.ExtremeChance {
			s.Extreme = &ExtremeEvent{
				Kind:      EventKind(g.src.IntN(eventKindCount)),
				Intensity: entropy.Uniform(g.src, 0.5, 1.0),
				Duration:  1 + g.src.IntN(3),
			}
		}

		samples = append(samples, s)
	}
	return Season{samples: samples}, nil
}

// seasonalCurve rises from 0 to 1 at mid-season and back to 0.
func seasonalCurve(index, weeks int) float64 {
	if weeks <= 1 {
		return 0
	}
	return math.Sin(math.Pi * float64(index) / float64(weeks-1))
}

func cloneSample(s Sample) Sample {
	if s.Extreme != nil {
		e := *s.Extreme
		s.Extreme = &e
	}
	return s
}

func cloneSamples(in []Sample) []Sample {
	out := make([]Sample, len(in))
	for i, s := range in {
		out[i] = cloneSample(s)
	}
	return out
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
