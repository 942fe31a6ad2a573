package field

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Reading is a one-shot satellite-style observation used to seed a zone.
// It never feeds back into the weekly tick.
type Reading struct {
	Vegetation float64 `json:"ndvi"`
	Moisture   float64 `json:"soil_moisture"`
}

// FallbackReading is used for zones a provider cannot observe.
var FallbackReading = Reading{Vegetation: 0.5, Moisture: 0.4}

// Provider supplies initial readings per zone.
type Provider interface {
	Reading(id ZoneID) (Reading, bool)
}

// Uniform gives every zone the same reading.
type Uniform Reading

func (u Uniform) Reading(ZoneID) (Reading, bool) {
	return Reading(u), true
}

// Readings is a fixed table of observations; missing ids fall back.
type Readings map[ZoneID]Reading

func (r Readings) Reading(id ZoneID) (Reading, bool) {
	v, ok := r[id]
	return v, ok
}

// NoiseConfig shapes the synthetic provider.
type NoiseConfig struct {
	Seed      int64   // 0 = random
	Frequency float64 // Base noise frequency per zone step
	Octaves   int

	VegetationBase   float64
	VegetationSpread float64
	MoistureBase     float64
	MoistureSpread   float64
}

// DefaultNoiseConfig yields fields centred near a fair mid-season start.
func DefaultNoiseConfig() NoiseConfig {
	return NoiseConfig{
		Frequency:        0.18,
		Octaves:          3,
		VegetationBase:   0.35,
		VegetationSpread: 0.35,
		MoistureBase:     0.25,
		MoistureSpread:   0.35,
	}
}

// NoiseProvider synthesizes spatially coherent readings from layered
// simplex noise, standing in for a satellite feed.
type NoiseProvider struct {
	cfg        NoiseConfig
	vegNoise   opensimplex.Noise
	moistNoise opensimplex.Noise
}

// NewNoiseProvider creates a provider with two independent noise layers.
func NewNoiseProvider(cfg NoiseConfig) *NoiseProvider {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.Octaves <= 0 {
		cfg.Octaves = 1
	}
	return &NoiseProvider{
		cfg:        cfg,
		vegNoise:   opensimplex.NewNormalized(seed),
		moistNoise: opensimplex.NewNormalized(seed + 1),
	}
}

func (p *NoiseProvider) Reading(id ZoneID) (Reading, bool) {
	x, y := float64(id.Col), float64(id.Row)
	veg := octaveNoise(p.vegNoise, x, y, p.cfg.Octaves, p.cfg.Frequency, 0.5)
	moist := octaveNoise(p.moistNoise, x, y, p.cfg.Octaves, p.cfg.Frequency, 0.5)
	return Reading{
		Vegetation: p.cfg.VegetationBase + veg*p.cfg.VegetationSpread,
		Moisture:   p.cfg.MoistureBase + moist*p.cfg.MoistureSpread,
	}, true
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
