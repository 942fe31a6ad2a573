package growth

import (
	"math"
	"testing"

	"github.com/talgya/farm-season/internal/crop"
	"github.com/talgya/farm-season/internal/entropy"
	"github.com/talgya/farm-season/internal/field"
	"github.com/talgya/farm-season/internal/weather"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func corn(t *testing.T) crop.Profile {
	t.Helper()
	p, err := crop.Lookup("corn")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func newZone(veg, moist float64) *field.Zone {
	return field.NewZone(field.ZoneID{}, field.Extent{}, veg, moist)
}

func TestHeatwaveFullIntensity(t *testing.T) {
	z := newZone(0.6, 0.5)
	ApplyExtreme(z, weather.ExtremeEvent{Kind: weather.Heatwave, Intensity: 1.0, Duration: 1}, 1.0)

	if !near(z.Vegetation(), 0.4) || !near(z.Moisture(), 0.2) {
		t.Fatalf("after heatwave veg=%v moist=%v, want 0.4/0.2", z.Vegetation(), z.Moisture())
	}
	if z.Stress() != field.StressHigh {
		t.Fatalf("stress = %v, want high", z.Stress())
	}
}

func TestExtremeHandlers(t *testing.T) {
	tests := []struct {
		name       string
		veg, moist float64
		ev         weather.ExtremeEvent
		wantVeg    float64
		wantMoist  float64
		wantStress field.StressLevel
	}{
		{"drought below threshold", 0.6, 0.4, weather.ExtremeEvent{Kind: weather.Drought, Intensity: 0.8}, 0.5, 0.16, field.StressHigh},
		{"drought mild", 0.6, 0.8, weather.ExtremeEvent{Kind: weather.Drought, Intensity: 0.5}, 0.6, 0.65, field.StressNone},
		{"flooding over threshold", 0.6, 0.5, weather.ExtremeEvent{Kind: weather.Flooding, Intensity: 0.5}, 0.55, 1.0, field.StressModerate},
		{"flooding caps moisture", 0.6, 0.9, weather.ExtremeEvent{Kind: weather.Flooding, Intensity: 1.0}, 0.55, 1.0, field.StressModerate},
		{"hail", 0.6, 0.5, weather.ExtremeEvent{Kind: weather.Hail, Intensity: 0.8}, 0.48, 0.5, field.StressNone},
		{"windstorm", 0.6, 0.5, weather.ExtremeEvent{Kind: weather.Windstorm, Intensity: 0.5}, 0.6, 0.45, field.StressNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := newZone(tt.veg, tt.moist)
			ApplyExtreme(z, tt.ev, 1.0)
			if !near(z.Vegetation(), tt.wantVeg) || !near(z.Moisture(), tt.wantMoist) {
				t.Fatalf("veg=%v moist=%v, want %v/%v", z.Vegetation(), z.Moisture(), tt.wantVeg, tt.wantMoist)
			}
			if z.Stress() != tt.wantStress {
				t.Fatalf("stress = %v, want %v", z.Stress(), tt.wantStress)
			}
		})
	}
}

func TestForcedStressNeverHidesWorse(t *testing.T) {
	z := newZone(0.25, 0.5)
	ApplyExtreme(z, weather.ExtremeEvent{Kind: weather.Flooding, Intensity: 1.0}, 1.0)
	if z.Stress() != field.StressHigh {
		t.Fatalf("stress = %v, want high for sparse vegetation", z.Stress())
	}
}

func TestStepNeutralWeek(t *testing.T) {
	p := corn(t)
	cond := FreshConditions().Advance()
	z := newZone(0.5, 0.4)

	Step(z, Inputs{
		Crop:       p,
		Weather:    weather.Sample{Week: 1, TemperatureC: 22, PrecipitationMM: 8, Humidity: 60, WindKPH: 10},
		Conditions: cond,
	})

	moist := 0.4 + 8*0.004
	veg := 0.5 + (p.OptimalVegetation-0.5)*p.GrowthRate*cond.SoilHealth*(1-cond.PestPressure)
	veg -= cond.PestPressure * PestDamage
	moist -= CanopyWaterUse * veg * (0.5 + p.WaterRequirement)

	if !near(z.Vegetation(), veg) || !near(z.Moisture(), moist) {
		t.Fatalf("veg=%v moist=%v, want %v/%v", z.Vegetation(), z.Moisture(), veg, moist)
	}
	if z.Stress() != field.StressNone {
		t.Fatalf("stress = %v", z.Stress())
	}
	if !near(z.Productivity(), veg*cond.SoilHealth) {
		t.Fatalf("productivity = %v, want %v", z.Productivity(), veg*cond.SoilHealth)
	}
}

func TestHeatAboveToleranceHurts(t *testing.T) {
	p := corn(t)
	z := newZone(0.6, 0.5)
	ApplyWeather(z, weather.Sample{TemperatureC: p.HeatToleranceC + 5}, p)
	if !near(z.Vegetation(), 0.55) || !near(z.Moisture(), 0.46) {
		t.Fatalf("veg=%v moist=%v", z.Vegetation(), z.Moisture())
	}
}

func TestIrrigationHalvesWindLoss(t *testing.T) {
	p := corn(t)
	gust := weather.Sample{TemperatureC: 20, WindKPH: 45}

	dry := newZone(0.6, 0.5)
	ApplyWeather(dry, gust, p)

	wet := newZone(0.6, 0.5)
	wet.HasIrrigation = true
	ApplyWeather(wet, gust, p)

	if !near(0.5-dry.Moisture(), 0.04) || !near(0.5-wet.Moisture(), 0.02) {
		t.Fatalf("wind loss dry=%v irrigated=%v", 0.5-dry.Moisture(), 0.5-wet.Moisture())
	}
}

func TestOverOptimalRegresses(t *testing.T) {
	p := corn(t)
	z := newZone(0.95, 0.5)
	Grow(z, p, FreshConditions(), 0)
	if z.Vegetation() >= 0.95 || z.Vegetation() < p.OptimalVegetation {
		t.Fatalf("veg = %v, want pulled toward %v", z.Vegetation(), p.OptimalVegetation)
	}
}

func TestFertilizerDecay(t *testing.T) {
	z := newZone(0.5, 0.5)
	applied := 3
	z.HasFertilizer = true
	z.FertilizerAppliedWeek = &applied

	want := map[int]FertilizerStage{
		3: FertilizerStrong, 4: FertilizerStrong,
		5: FertilizerModerate, 6: FertilizerModerate,
		7: FertilizerWeak, 8: FertilizerWeak,
		9: FertilizerExpired,
	}
	for week, stage := range want {
		if got := FertilizerStageAt(z, week); got != stage {
			t.Errorf("week %d: stage %v, want %v", week, got, stage)
		}
	}

	for week := 3; week <= 7; week++ {
		SettleFlags(z, week)
		if !z.HasFertilizer {
			t.Fatalf("fertilizer cleared early at week %d", week)
		}
	}
	SettleFlags(z, 8)
	if z.HasFertilizer || z.FertilizerAppliedWeek != nil {
		t.Fatal("fertilizer should expire after its sixth effect week")
	}
}

func TestFertilizerBoostsGrowth(t *testing.T) {
	p := corn(t)
	plain := newZone(0.4, 0.5)
	fed := newZone(0.4, 0.5)
	w := 0
	fed.HasFertilizer = true
	fed.FertilizerAppliedWeek = &w

	Grow(plain, p, FreshConditions(), 0)
	Grow(fed, p, FreshConditions(), 0)
	if fed.Vegetation() <= plain.Vegetation() {
		t.Fatalf("fertilized %v not above plain %v", fed.Vegetation(), plain.Vegetation())
	}
}

func TestFertilizerBoostScalesWithNitrogen(t *testing.T) {
	tests := []struct {
		stage    FertilizerStage
		nitrogen float64
		want     float64
	}{
		{FertilizerStrong, 0.5, 1.5},
		{FertilizerStrong, 1, 1.75},
		{FertilizerStrong, 0, 1.25},
		{FertilizerNone, 1, 1},
		{FertilizerExpired, 0.7, 1},
	}
	for _, tt := range tests {
		if got := tt.stage.Boost(tt.nitrogen); got != tt.want {
			t.Errorf("%v.Boost(%v) = %v, want %v", tt.stage, tt.nitrogen, got, tt.want)
		}
	}

	hungry, light := corn(t), corn(t)
	hungry.NitrogenRequirement = 0.9
	light.NitrogenRequirement = 0.1
	w := 0
	fedHungry, fedLight := newZone(0.4, 0.5), newZone(0.4, 0.5)
	for _, z := range []*field.Zone{fedHungry, fedLight} {
		z.HasFertilizer = true
		z.FertilizerAppliedWeek = &w
	}
	Grow(fedHungry, hungry, FreshConditions(), 0)
	Grow(fedLight, light, FreshConditions(), 0)
	if fedHungry.Vegetation() <= fedLight.Vegetation() {
		t.Fatalf("nitrogen-hungry crop grew %v, light feeder %v", fedHungry.Vegetation(), fedLight.Vegetation())
	}
}

func TestSettleClearsIrrigation(t *testing.T) {
	z := newZone(0.5, 0.5)
	z.HasIrrigation = true
	SettleFlags(z, 0)
	if z.HasIrrigation {
		t.Fatal("irrigation flag should not survive the tick")
	}
}

func TestConditionsBounded(t *testing.T) {
	c := FreshConditions()
	for i := 0; i < 200; i++ {
		c = c.Advance()
	}
	if c.SoilHealth != SoilHealthFloor || c.PestPressure != PestCeiling {
		t.Fatalf("conditions after long run = %+v", c)
	}
}

func TestStepKeepsInvariants(t *testing.T) {
	p := corn(t)
	season, err := weather.NewGenerator(entropy.Seeded(5)).GenerateSeason(60, weather.DefaultLocation())
	if err != nil {
		t.Fatal(err)
	}
	z := newZone(0.3, 0.3)
	cond := FreshConditions()
	for week, s := range season.Samples() {
		cond = cond.Advance()
		in := Inputs{Crop: p, Weather: s, Conditions: cond, Week: week}
		if s.Extreme != nil {
			in.Events = []weather.ExtremeEvent{*s.Extreme}
		}
		Step(z, in)

		if z.Vegetation() < field.MinVegetation || z.Vegetation() > field.MaxVegetation {
			t.Fatalf("week %d: vegetation %v out of bounds", week, z.Vegetation())
		}
		if z.Moisture() < field.MinMoisture || z.Moisture() > field.MaxMoisture {
			t.Fatalf("week %d: moisture %v out of bounds", week, z.Moisture())
		}
		if s.Extreme == nil && z.Stress() != field.StressFor(z.Moisture(), z.Vegetation()) {
			t.Fatalf("week %d: stress %v not derived from state", week, z.Stress())
		}
	}
}
