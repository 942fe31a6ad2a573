package growth

import (
	"github.com/talgya/farm-season/internal/field"
	"github.com/talgya/farm-season/internal/weather"
)

// ApplyExtreme applies one extreme event to a zone. Handlers that name a
// stress level force it; the forced level never hides a worse derived one.
// Handlers that don't recompute so stress stays consistent with the new values.
func ApplyExtreme(z *field.Zone, ev weather.ExtremeEvent, soilHealth float64) {
	i := ev.Intensity
	switch ev.Kind {
	case weather.Heatwave:
		z.AddVegetation(-i * 0.2)
		z.AddMoisture(-i * 0.3)
		force(z, field.StressHigh, soilHealth)
	case weather.Drought:
		z.AddMoisture(-i * 0.3)
		if z.Moisture() < 0.2 {
			z.AddVegetation(-0.1)
			force(z, field.StressHigh, soilHealth)
			return
		}
		z.Recompute(soilHealth)
	case weather.Flooding:
		z.AddMoisture(i)
		if z.Moisture() > 0.8 {
			z.AddVegetation(-0.05)
			force(z, field.StressModerate, soilHealth)
			return
		}
		z.Recompute(soilHealth)
	case weather.Hail:
		z.AddVegetation(-i * 0.15)
		z.Recompute(soilHealth)
	case weather.Windstorm:
		z.AddMoisture(-i * 0.1)
		z.Recompute(soilHealth)
	}
}

func force(z *field.Zone, level field.StressLevel, soilHealth float64) {
	level = max(level, field.StressFor(z.Moisture(), z.Vegetation()))
	z.ForceStress(level, soilHealth)
}
