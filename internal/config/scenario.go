// Package config loads season scenarios from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/farm-season/internal/crop"
	"github.com/talgya/farm-season/internal/engine"
	"github.com/talgya/farm-season/internal/entropy"
	"github.com/talgya/farm-season/internal/field"
	"github.com/talgya/farm-season/internal/weather"
)

// ErrInvalid marks a scenario that fails validation.
var ErrInvalid = errors.New("invalid scenario")

// Scenario is one playable season setup.
type Scenario struct {
	Name     string `yaml:"name"`
	Crop     string `yaml:"crop"`
	Weeks    int    `yaml:"weeks"`
	Tutorial bool   `yaml:"tutorial"`
	Seed     int64  `yaml:"seed"` // 0 = system entropy

	Grid   GridConfig   `yaml:"grid"`
	Budget BudgetConfig `yaml:"budget"`
	Field  FieldConfig  `yaml:"field"`

	// Crops adds custom profiles; one named like a built-in replaces it.
	Crops []crop.Profile `yaml:"crops"`

	ExtremeChance float64           `yaml:"extreme_chance"`
	Location      weather.Location  `yaml:"location"`
	Policy        engine.Policy     `yaml:"policy"`
	Milestones    engine.Milestones `yaml:"milestones"`
}

type GridConfig struct {
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`
}

type BudgetConfig struct {
	Water      float64 `yaml:"water"`
	Fertilizer float64 `yaml:"fertilizer"`
}

// FieldConfig chooses how zones are seeded: "noise" for synthetic
// satellite readings, "uniform" for identical zones.
type FieldConfig struct {
	Source     string  `yaml:"source"`
	Vegetation float64 `yaml:"vegetation"` // Uniform only
	Moisture   float64 `yaml:"moisture"`   // Uniform only
	Frequency  float64 `yaml:"frequency"`  // Noise only
	Octaves    int     `yaml:"octaves"`    // Noise only
}

// Default returns the built-in scenario.
func Default() Scenario {
	noise := field.DefaultNoiseConfig()
	return Scenario{
		Name:          "river plains corn",
		Crop:          "corn",
		Weeks:         20,
		Grid:          GridConfig{Rows: 6, Cols: 6},
		Budget:        BudgetConfig{Water: 1000, Fertilizer: 300},
		Field:         FieldConfig{Source: "noise", Vegetation: 0.5, Moisture: 0.4, Frequency: noise.Frequency, Octaves: noise.Octaves},
		ExtremeChance: weather.DefaultExtremeChance,
		Location:      weather.DefaultLocation(),
		Policy:        engine.DefaultPolicy(),
		Milestones:    engine.DefaultMilestones(),
	}
}

// Load reads a scenario file. Keys absent from the file keep their
// default values.
func Load(path string) (Scenario, error) {
	s := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

// Validate reports every problem at once.
func (s Scenario) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if s.Grid.Rows <= 0 || s.Grid.Cols <= 0 {
		bad("grid %dx%d must be positive", s.Grid.Rows, s.Grid.Cols)
	}
	if s.Weeks <= 0 {
		bad("weeks %d must be positive", s.Weeks)
	}
	if s.Budget.Water < 0 || s.Budget.Fertilizer < 0 {
		bad("budgets must not be negative")
	}
	crops, err := crop.NewCatalog(s.Crops...)
	if err != nil {
		bad("%v", err)
	}
	if _, err := crops.Lookup(s.Crop); err != nil {
		bad("%v", err)
	}
	if s.ExtremeChance < 0 || s.ExtremeChance > 1 {
		bad("extreme_chance %.2f outside [0,1]", s.ExtremeChance)
	}
	switch s.Field.Source {
	case "noise", "uniform":
	default:
		bad("field source %q: want noise or uniform", s.Field.Source)
	}

	loc := s.Location
	if loc.WetStart > loc.WetEnd {
		bad("wet window %d..%d is reversed", loc.WetStart, loc.WetEnd)
	}
	for name, r := range map[string]weather.Regime{"wet": loc.Wet, "dry": loc.Dry} {
		if r.RainChance < 0 || r.RainChance > 1 {
			bad("%s rain_chance %.2f outside [0,1]", name, r.RainChance)
		}
		if r.MinMM < 0 || r.MinMM > r.MaxMM {
			bad("%s rain range %.1f..%.1f invalid", name, r.MinMM, r.MaxMM)
		}
	}
	if s.Milestones.ScoreStreak <= 0 {
		bad("milestones.score_streak must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Options builds engine options. randomOrgKey enables the random.org pool
// when the scenario has no fixed seed. If any custom crop is invalid only
// the built-ins are offered.
func (s Scenario) Options(randomOrgKey string) engine.Options {
	crops, _ := crop.NewCatalog(s.Crops...)
	opts := engine.Options{
		Rows:          s.Grid.Rows,
		Cols:          s.Grid.Cols,
		MaxWeeks:      s.Weeks,
		Water:         s.Budget.Water,
		Fertilizer:    s.Budget.Fertilizer,
		Crop:          s.Crop,
		Tutorial:      s.Tutorial,
		Crops:         crops,
		Location:      s.Location,
		ExtremeChance: s.ExtremeChance,
		Policy:        s.Policy,
		Milestones:    s.Milestones,
	}

	if s.Seed != 0 {
		opts.Source = entropy.Seeded(s.Seed)
	} else {
		opts.Source = entropy.System(randomOrgKey)
	}

	switch s.Field.Source {
	case "uniform":
		opts.Provider = field.Uniform{Vegetation: s.Field.Vegetation, Moisture: s.Field.Moisture}
	default:
		cfg := field.DefaultNoiseConfig()
		cfg.Seed = s.Seed
		if s.Field.Frequency > 0 {
			cfg.Frequency = s.Field.Frequency
		}
		if s.Field.Octaves > 0 {
			cfg.Octaves = s.Field.Octaves
		}
		opts.Provider = field.NewNoiseProvider(cfg)
	}
	return opts
}
