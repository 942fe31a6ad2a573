package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/farm-season/internal/crop"
	"github.com/talgya/farm-season/internal/engine"
	"github.com/talgya/farm-season/internal/field"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeScenario(t, `
name: dry test
crop: wheat
weeks: 12
seed: 42
grid: {rows: 2, cols: 3}
budget: {water: 200}
field: {source: uniform, vegetation: 0.55, moisture: 0.35}
location:
  wet_start: 3
  wet_end: 4
milestones:
  score_target: 80
`)
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Crop != "wheat" || s.Weeks != 12 || s.Grid.Rows != 2 || s.Budget.Water != 200 {
		t.Fatalf("scenario = %+v", s)
	}
	if s.Budget.Fertilizer != 300 {
		t.Fatalf("unset fertilizer budget lost its default: %v", s.Budget.Fertilizer)
	}
	if s.Location.BaseTempC != 24 || s.Location.WetStart != 3 {
		t.Fatalf("location = %+v", s.Location)
	}
	if s.Milestones.ScoreTarget != 80 || s.Milestones.ScoreStreak != 3 {
		t.Fatalf("milestones = %+v", s.Milestones)
	}

	opts := s.Options("")
	if opts.Rows != 2 || opts.Cols != 3 || opts.MaxWeeks != 12 {
		t.Fatalf("options = %+v", opts)
	}
	r, _ := opts.Provider.Reading(field.ZoneID{})
	if r.Vegetation != 0.55 || r.Moisture != 0.35 {
		t.Fatalf("uniform provider reading = %+v", r)
	}

	sim, err := engine.New(opts)
	if err != nil {
		t.Fatal(err)
	}
	if sim.Grid.Len() != 6 || sim.Crop.Name != "wheat" {
		t.Fatalf("sim grid %d crop %q", sim.Grid.Len(), sim.Crop.Name)
	}
}

func TestLoadCustomCrop(t *testing.T) {
	path := writeScenario(t, `
crop: sorghum
grid: {rows: 2, cols: 2}
crops:
  - name: Sorghum
    water_requirement: 0.35
    nitrogen_requirement: 0.4
    heat_tolerance_c: 40
    growth_rate: 0.05
    maturity_weeks: 15
    optimal_vegetation_index: 0.7
`)
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	sim, err := engine.New(s.Options(""))
	if err != nil {
		t.Fatal(err)
	}
	if sim.Crop.Name != "sorghum" || sim.Crop.HeatToleranceC != 40 {
		t.Fatalf("crop = %+v", sim.Crop)
	}
	if len(sim.Crops()) != 6 {
		t.Fatalf("crops = %d, want the five built-ins plus sorghum", len(sim.Crops()))
	}
	if err := sim.NewSeason("rice"); err != nil || sim.Crop.Name != "rice" {
		t.Fatalf("switch to rice: %v (%s)", err, sim.Crop.Name)
	}
}

func TestValidateRejectsBadCustomCrop(t *testing.T) {
	s := Default()
	s.Crops = []crop.Profile{{Name: "millet", GrowthRate: 0, MaturityWeeks: 12, OptimalVegetation: 0.7}}
	s.Crop = "millet"
	err := s.Validate()
	if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), "growth_rate") {
		t.Fatalf("err = %v", err)
	}
}

func TestSeedReplaysWeather(t *testing.T) {
	s := Default()
	s.Seed = 9

	a, err := engine.New(s.Options(""))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := engine.New(s.Options(""))
	as, bs := a.Season.Samples(), b.Season.Samples()
	for i := range as {
		if as[i].TemperatureC != bs[i].TemperatureC || as[i].PrecipitationMM != bs[i].PrecipitationMM {
			t.Fatalf("week %d differs for the same seed", i+1)
		}
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	s := Default()
	s.Grid.Rows = 0
	s.Weeks = -1
	s.Crop = "kale"
	s.Location.WetStart, s.Location.WetEnd = 10, 2

	err := s.Validate()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v", err)
	}
	for _, want := range []string{"grid", "weeks", "kale", "wet window"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	if _, err := Load(writeScenario(t, "grid: [1, 2")); err == nil {
		t.Fatal("malformed yaml should fail")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should fail")
	}
}
