// Package engine owns a farm season: the zone grid, the resource ledger,
// the weather sequence and the clock, advanced one week at a time.
//
// The Simulation takes no locks. Outer layers that share it between
// goroutines serialize access themselves.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/farm-season/internal/crop"
	"github.com/talgya/farm-season/internal/entropy"
	"github.com/talgya/farm-season/internal/field"
	"github.com/talgya/farm-season/internal/growth"
	"github.com/talgya/farm-season/internal/ledger"
	"github.com/talgya/farm-season/internal/weather"
)

// ErrAlreadyEnded is returned by mutations after the season has ended.
var ErrAlreadyEnded = errors.New("season already ended")

// Policy holds the tunable intervention and outcome constants.
type Policy struct {
	IrrigationCost     float64 `yaml:"irrigation_cost" json:"irrigation_cost"`
	IrrigationMoisture float64 `yaml:"irrigation_moisture" json:"irrigation_moisture"`
	IrrigationBonus    float64 `yaml:"irrigation_bonus" json:"irrigation_bonus"` // Deferred vegetation gain

	FertilizerCost  float64 `yaml:"fertilizer_cost" json:"fertilizer_cost"`
	FertilizerBoost float64 `yaml:"fertilizer_boost" json:"fertilizer_boost"`

	// Fertilizing a zone below NeedyVegetation earns NeedyDelta; any other
	// zone earns WastefulDelta.
	NeedyVegetation float64 `yaml:"needy_vegetation" json:"needy_vegetation"`
	NeedyDelta      float64 `yaml:"needy_delta" json:"needy_delta"`
	WastefulDelta   float64 `yaml:"wasteful_delta" json:"wasteful_delta"`

	SuccessHealthyFraction float64 `yaml:"success_healthy_fraction" json:"success_healthy_fraction"`
	SuccessScore           float64 `yaml:"success_score" json:"success_score"`
}

// DefaultPolicy returns the standard rules.
func DefaultPolicy() Policy {
	return Policy{
		IrrigationCost:         25,
		IrrigationMoisture:     0.4,
		IrrigationBonus:        0.05,
		FertilizerCost:         10,
		FertilizerBoost:        0.15,
		NeedyVegetation:        0.4,
		NeedyDelta:             3,
		WastefulDelta:          -1,
		SuccessHealthyFraction: 0.6,
		SuccessScore:           50,
	}
}

// Options configures a Simulation.
type Options struct {
	Rows, Cols int
	MaxWeeks   int
	Water      float64
	Fertilizer float64
	Crop       string
	Tutorial   bool

	// Crops resolves crop names; nil means the built-in crops only.
	Crops *crop.Catalog

	Location      weather.Location
	ExtremeChance float64
	Policy        Policy
	Milestones    Milestones

	// Provider seeds zones; nil means the fallback reading everywhere.
	Provider field.Provider
	// Source drives weather generation; nil means the system source.
	Source entropy.Source
	// Season replaces the generated weather for the first season only.
	Season *weather.Season
	// Objectives replaces DefaultObjectives when non-nil.
	Objectives func(Milestones) []Objective
}

// DefaultOptions returns a 20-week corn season on a 6×6 grid.
func DefaultOptions() Options {
	return Options{
		Rows:          6,
		Cols:          6,
		MaxWeeks:      20,
		Water:         1000,
		Fertilizer:    300,
		Crop:          "corn",
		Location:      weather.DefaultLocation(),
		ExtremeChance: weather.DefaultExtremeChance,
		Policy:        DefaultPolicy(),
		Milestones:    DefaultMilestones(),
	}
}

// Simulation is the season aggregate. It exclusively owns its grid,
// ledger and weather.
type Simulation struct {
	SeasonID   uuid.UUID
	Crop       crop.Profile
	Grid       *field.Grid
	Ledger     *ledger.Ledger
	Season     weather.Season
	Conditions growth.Conditions
	Clock      Clock
	Score      ScoreBreakdown
	Outcome    *Outcome

	Active        []ActiveExtreme // Extreme events still in effect
	Notifications []Notification  // Every notification this season
	Events        []Event         // Recent events, bounded

	opts       Options
	gen        *weather.Generator
	pending    []deferredEffect
	objectives []*objectiveState
	irrigated  bool // Any irrigation this season

	subs      []subscription
	nextSubID uint64
}

// ActiveExtreme is an extreme event with weeks left to run.
type ActiveExtreme struct {
	weather.ExtremeEvent
	Remaining int `json:"remaining"`
}

// New creates a simulation and starts its first season.
func New(opts Options) (*Simulation, error) {
	if opts.Provider == nil {
		opts.Provider = field.Uniform(field.FallbackReading)
	}
	if opts.Source == nil {
		opts.Source = entropy.System("")
	}
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy()
	}
	if opts.Milestones == (Milestones{}) {
		opts.Milestones = DefaultMilestones()
	}
	if opts.MaxWeeks <= 0 && opts.Season != nil {
		opts.MaxWeeks = opts.Season.Len()
	}

	gen := weather.NewGenerator(opts.Source)
	gen.ExtremeChance = opts.ExtremeChance

	s := &Simulation{opts: opts, gen: gen}

	var season weather.Season
	if opts.Season != nil {
		if opts.Season.Len() < opts.MaxWeeks {
			return nil, fmt.Errorf("supplied weather covers %d of %d weeks: %w",
				opts.Season.Len(), opts.MaxWeeks, weather.ErrInvalidSeasonLength)
		}
		season = *opts.Season
	} else {
		var err error
		season, err = gen.GenerateSeason(opts.MaxWeeks, opts.Location)
		if err != nil {
			return nil, fmt.Errorf("generate weather: %w", err)
		}
	}
	if err := s.reset(opts.Crop, season); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSeason starts a fresh season, optionally switching crop. This is the
// only path that regenerates weather.
func (s *Simulation) NewSeason(cropName string) error {
	if cropName == "" {
		cropName = s.Crop.Name
	}
	if _, err := s.opts.Crops.Lookup(cropName); err != nil {
		return err
	}
	season, err := s.gen.GenerateSeason(s.opts.MaxWeeks, s.opts.Location)
	if err != nil {
		return fmt.Errorf("generate weather: %w", err)
	}
	return s.reset(cropName, season)
}

// Crops lists the crops a new season may use.
func (s *Simulation) Crops() []crop.Profile {
	return s.opts.Crops.Profiles()
}

func (s *Simulation) reset(cropName string, season weather.Season) error {
	profile, err := s.opts.Crops.Lookup(cropName)
	if err != nil {
		return err
	}
	grid, err := field.NewGrid(s.opts.Rows, s.opts.Cols, s.opts.Provider)
	if err != nil {
		return err
	}

	s.SeasonID = uuid.New()
	s.Crop = profile
	s.Grid = grid
	s.Ledger = ledger.New(s.opts.Water, s.opts.Fertilizer)
	s.Season = season
	s.Conditions = growth.FreshConditions()
	s.Clock = NewClock(s.opts.MaxWeeks, s.opts.Tutorial)
	s.Outcome = nil
	s.Active = nil
	s.Notifications = nil
	s.pending = nil
	s.irrigated = false

	build := DefaultObjectives
	if s.opts.Objectives != nil {
		build = s.opts.Objectives
	}
	s.objectives = s.objectives[:0]
	for _, o := range build(s.opts.Milestones) {
		s.objectives = append(s.objectives, &objectiveState{Objective: o})
	}
	s.Score = scoreState(s.Grid, s.Ledger, 0)

	slog.Info("season started",
		"season", s.SeasonID,
		"crop", s.Crop.Name,
		"zones", s.Grid.Len(),
		"weeks", s.Clock.MaxWeeks,
		"water", s.Ledger.Water,
		"fertilizer", s.Ledger.Fertilizer,
	)
	info := s.Info()
	s.EmitEvent(Event{
		Kind:        EventSeasonStarted,
		Description: fmt.Sprintf("New %s season of %d weeks", s.Crop.Name, s.Clock.MaxWeeks),
		Season:      &info,
	})
	return nil
}

// SeasonInfo describes how a season was set up.
type SeasonInfo struct {
	ID         string  `json:"id"`
	Crop       string  `json:"crop"`
	MaxWeeks   int     `json:"max_weeks"`
	Rows       int     `json:"rows"`
	Cols       int     `json:"cols"`
	Water      float64 `json:"water"`
	Fertilizer float64 `json:"fertilizer"`
}

// Info returns the current season's setup.
func (s *Simulation) Info() SeasonInfo {
	return SeasonInfo{
		ID:         s.SeasonID.String(),
		Crop:       s.Crop.Name,
		MaxWeeks:   s.Clock.MaxWeeks,
		Rows:       s.Grid.Rows,
		Cols:       s.Grid.Cols,
		Water:      s.Ledger.InitialWater,
		Fertilizer: s.Ledger.InitialFertilizer,
	}
}

// CompleteTutorial moves a tutorial season to normal play.
func (s *Simulation) CompleteTutorial() error {
	if s.Clock.Ended {
		return ErrAlreadyEnded
	}
	if s.Clock.Mode == ModeNormal {
		return nil
	}
	s.Clock.Mode = ModeNormal
	s.emitPhase()
	return nil
}

// TogglePause flips between paused and running and returns the new state.
func (s *Simulation) TogglePause() (bool, error) {
	if s.Clock.Ended {
		return false, ErrAlreadyEnded
	}
	s.Clock.Paused = !s.Clock.Paused
	s.emitPhase()
	return s.Clock.Paused, nil
}

func (s *Simulation) emitPhase() {
	phase := s.Clock.Phase()
	slog.Info("phase changed", "phase", phase, "week", s.Clock.CurrentWeek)
	s.EmitEvent(Event{
		Kind:        EventPhaseChanged,
		Week:        s.Clock.CurrentWeek,
		Description: "Simulation is now " + phase.String(),
		Phase:       &phase,
	})
}

// CurrentSample returns the weather for the week about to be simulated.
func (s *Simulation) CurrentSample() (weather.Sample, bool) {
	return s.Season.At(s.Clock.CurrentWeek)
}

// PastSamples returns the weather of every completed week.
func (s *Simulation) PastSamples() []weather.Sample {
	all := s.Season.Samples()
	return all[:min(s.Clock.CurrentWeek, len(all))]
}

// State is a deep-copied view for renderers and outer layers.
type State struct {
	SeasonID      string            `json:"season_id"`
	Crop          crop.Profile      `json:"crop"`
	Week          int               `json:"current_week"`
	MaxWeeks      int               `json:"max_weeks"`
	Label         string            `json:"label"`
	Phase         Phase             `json:"phase"`
	Mode          Mode              `json:"mode"`
	Paused        bool              `json:"paused"`
	TutorialStage int               `json:"tutorial_stage"`
	Score         ScoreBreakdown    `json:"sustainability"`
	Ledger        ledger.Ledger     `json:"ledger"`
	Conditions    growth.Conditions `json:"conditions"`
	Weather       *weather.Sample   `json:"weather,omitempty"`
	Active        []ActiveExtreme   `json:"active_extremes"`
	Zones         []field.Zone      `json:"zones"`
	Healthy       int               `json:"healthy_zones"`
	Stressed      int               `json:"stressed_zones"`
	Notifications []Notification    `json:"notifications"`
	Outcome       *Outcome          `json:"outcome,omitempty"`
}

// Snapshot returns a deep copy of the observable state.
func (s *Simulation) Snapshot() State {
	st := State{
		SeasonID:      s.SeasonID.String(),
		Crop:          s.Crop,
		Week:          s.Clock.CurrentWeek,
		MaxWeeks:      s.Clock.MaxWeeks,
		Label:         WeekLabel(s.Clock.CurrentWeek, s.Clock.MaxWeeks),
		Phase:         s.Clock.Phase(),
		Mode:          s.Clock.Mode,
		Paused:        s.Clock.Paused,
		TutorialStage: s.Clock.TutorialStage,
		Score:         s.Score,
		Ledger:        s.Ledger.Clone(),
		Conditions:    s.Conditions,
		Active:        append([]ActiveExtreme(nil), s.Active...),
		Zones:         s.Grid.Snapshot(),
		Healthy:       s.Grid.Count(field.Healthy),
		Stressed:      s.Grid.Count(field.Stressed),
		Notifications: append([]Notification(nil), s.Notifications...),
	}
	if sample, ok := s.CurrentSample(); ok {
		st.Weather = &sample
	}
	if s.Outcome != nil {
		o := s.Outcome.clone()
		st.Outcome = &o
	}
	return st
}
