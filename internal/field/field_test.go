package field

import (
	"errors"
	"math"
	"testing"
)

func TestSettersClamp(t *testing.T) {
	z := NewZone(ZoneID{}, Extent{}, 0.5, 0.4)

	z.AddVegetation(5)
	if z.Vegetation() != MaxVegetation {
		t.Fatalf("vegetation = %v, want %v", z.Vegetation(), MaxVegetation)
	}
	z.AddVegetation(-5)
	if z.Vegetation() != MinVegetation {
		t.Fatalf("vegetation = %v, want %v", z.Vegetation(), MinVegetation)
	}
	z.SetMoisture(-1)
	if z.Moisture() != MinMoisture {
		t.Fatalf("moisture = %v, want %v", z.Moisture(), MinMoisture)
	}
	z.AddMoisture(3)
	if z.Moisture() != MaxMoisture {
		t.Fatalf("moisture = %v, want %v", z.Moisture(), MaxMoisture)
	}
}

func TestRaiseVegetationToCeiling(t *testing.T) {
	z := NewZone(ZoneID{}, Extent{}, 0.8, 0.4)
	z.RaiseVegetationTo(0.15, 0.85)
	if math.Abs(z.Vegetation()-0.85) > 1e-9 {
		t.Fatalf("vegetation = %v, want capped at 0.85", z.Vegetation())
	}

	above := NewZone(ZoneID{}, Extent{}, 0.9, 0.4)
	above.RaiseVegetationTo(0.15, 0.85)
	if above.Vegetation() != 0.9 {
		t.Fatalf("zone above ceiling moved to %v", above.Vegetation())
	}
}

func TestStressFor(t *testing.T) {
	cases := []struct {
		moisture, vegetation float64
		want                 StressLevel
	}{
		{0.5, 0.6, StressNone},
		{0.15, 0.6, StressHigh},
		{0.5, 0.25, StressHigh},
		{0.25, 0.6, StressModerate},
		{0.9, 0.6, StressModerate},
		{0.5, 0.4, StressModerate},
		{0.4, 0.5, StressNone},
	}
	for _, c := range cases {
		if got := StressFor(c.moisture, c.vegetation); got != c.want {
			t.Errorf("StressFor(%v, %v) = %v, want %v", c.moisture, c.vegetation, got, c.want)
		}
	}
}

func TestRecomputeReplacesForcedStress(t *testing.T) {
	z := NewZone(ZoneID{}, Extent{}, 0.7, 0.5)
	z.ForceStress(StressHigh, 1.0)
	if z.Stress() != StressHigh {
		t.Fatalf("forced stress not applied")
	}
	z.Recompute(0.8)
	if z.Stress() != StressNone {
		t.Fatalf("stress after recompute = %v, want none", z.Stress())
	}
	if want := 0.7 * 0.8; math.Abs(z.Productivity()-want) > 1e-9 {
		t.Fatalf("productivity = %v, want %v", z.Productivity(), want)
	}
}

func TestGridApplyToIgnoresUnknown(t *testing.T) {
	g, err := NewGrid(2, 3, Uniform{Vegetation: 0.5, Moisture: 0.4})
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 6 {
		t.Fatalf("len = %d, want 6", g.Len())
	}

	ids := []ZoneID{{0, 0}, {9, 9}, {0, 0}, {1, 2}}
	n := g.ApplyTo(ids, func(z *Zone) { z.AddMoisture(0.1) })
	if n != 2 {
		t.Fatalf("applied to %d zones, want 2", n)
	}

	z, _ := g.Lookup(ZoneID{0, 0})
	if math.Abs(z.Moisture()-0.5) > 1e-9 {
		t.Fatalf("duplicate id applied twice: moisture %v", z.Moisture())
	}
	if _, err := g.Lookup(ZoneID{9, 9}); !errors.Is(err, ErrUnknownZone) {
		t.Fatalf("Lookup unknown err = %v, want ErrUnknownZone", err)
	}
}

func TestGridMatchingIsReadOnly(t *testing.T) {
	g, _ := NewGrid(3, 3, Uniform{Vegetation: 0.7, Moisture: 0.5})
	count := 0
	for z := range g.Matching(Healthy) {
		z.SetVegetation(0.1)
		count++
	}
	if count != 9 {
		t.Fatalf("matched %d, want 9", count)
	}
	if g.Count(Healthy) != 9 {
		t.Fatal("mutating a yielded copy leaked into the grid")
	}
}

func TestMatchingStopsEarly(t *testing.T) {
	g, _ := NewGrid(4, 4, Uniform(FallbackReading))
	seen := 0
	for range g.Matching(nil) {
		seen++
		if seen == 3 {
			break
		}
	}
	if seen != 3 {
		t.Fatalf("seen = %d", seen)
	}
}

func TestNewGridRejectsEmpty(t *testing.T) {
	if _, err := NewGrid(0, 3, Uniform(FallbackReading)); err == nil {
		t.Fatal("expected error for zero rows")
	}
}

func TestNoiseProviderDeterministicAndBounded(t *testing.T) {
	cfg := DefaultNoiseConfig()
	cfg.Seed = 7
	a, _ := NewGrid(6, 6, NewNoiseProvider(cfg))
	b, _ := NewGrid(6, 6, NewNoiseProvider(cfg))

	as, bs := a.Snapshot(), b.Snapshot()
	for i := range as {
		if as[i].Vegetation() != bs[i].Vegetation() || as[i].Moisture() != bs[i].Moisture() {
			t.Fatalf("zone %s differs between identical seeds", as[i].ID)
		}
		v, m := as[i].Vegetation(), as[i].Moisture()
		if v < MinVegetation || v > MaxVegetation || m < MinMoisture || m > MaxMoisture {
			t.Fatalf("zone %s out of bounds: veg=%v moist=%v", as[i].ID, v, m)
		}
		if as[i].Stress() != StressFor(m, v) {
			t.Fatalf("zone %s stress drifted", as[i].ID)
		}
	}
}

func TestParseZoneID(t *testing.T) {
	id, err := ParseZoneID("3:14")
	if err != nil || id != (ZoneID{Row: 3, Col: 14}) {
		t.Fatalf("ParseZoneID = %v, %v", id, err)
	}
	if _, err := ParseZoneID("3-14"); err == nil {
		t.Fatal("expected error for malformed id")
	}
}
