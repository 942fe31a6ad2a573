package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/talgya/farm-season/internal/field"
	"github.com/talgya/farm-season/internal/growth"
	"github.com/talgya/farm-season/internal/weather"
)

// TickSummary describes one AdvanceWeek call.
type TickSummary struct {
	Week          int                    `json:"week"` // 0-based week that was simulated
	Paused        bool                   `json:"paused,omitempty"`
	Weather       weather.Sample         `json:"weather"`
	Extremes      []weather.ExtremeEvent `json:"extremes,omitempty"`
	Score         ScoreBreakdown         `json:"sustainability"`
	Healthy       int                    `json:"healthy_zones"`
	Stressed      int                    `json:"stressed_zones"`
	NewlyStressed []field.ZoneID         `json:"newly_stressed,omitempty"`
	Notifications []Notification         `json:"notifications,omitempty"`
	Outcome       *Outcome               `json:"outcome,omitempty"`
}

// Failure names one unmet end-of-season condition.
type Failure string

const (
	FailureHealth Failure = "healthy_fraction_below_target"
	FailureWater  Failure = "water_over_budget"
	FailureScore  Failure = "score_below_target"
)

// Outcome is the end-of-season verdict.
type Outcome struct {
	Success         bool      `json:"success"`
	Failures        []Failure `json:"failures,omitempty"`
	HealthyFraction float64   `json:"healthy_fraction"`
	WaterUsed       float64   `json:"water_used"`
	WaterUsedShare  float64   `json:"water_used_fraction"` // WaterUsed over the initial budget
	Score           float64   `json:"score"`
}

func (o Outcome) clone() Outcome {
	o.Failures = slices.Clone(o.Failures)
	return o
}

// deferredEffect is a vegetation change that lands at the next tick boundary.
type deferredEffect struct {
	zone    field.ZoneID
	bonus   float64
	ceiling float64
}

// AdvanceWeek simulates the current week. While paused it changes nothing
// and returns a summary with Paused set.
func (s *Simulation) AdvanceWeek() (TickSummary, error) {
	if s.Clock.Ended {
		sum := TickSummary{Week: s.Clock.CurrentWeek, Score: s.Score}
		if s.Outcome != nil {
			o := s.Outcome.clone()
			sum.Outcome = &o
		}
		return sum, ErrAlreadyEnded
	}
	if s.Clock.Paused {
		return TickSummary{Week: s.Clock.CurrentWeek, Paused: true, Score: s.Score}, nil
	}

	week := s.Clock.CurrentWeek
	sample, ok := s.Season.At(week)
	if !ok {
		return TickSummary{}, fmt.Errorf("no weather for week %d: %w", week, weather.ErrInvalidSeasonLength)
	}

	s.applyDeferred()
	s.Conditions = s.Conditions.Advance()

	if sample.Extreme != nil {
		s.Active = append(s.Active, ActiveExtreme{ExtremeEvent: *sample.Extreme, Remaining: sample.Extreme.Duration})
	}
	extremes := make([]weather.ExtremeEvent, 0, len(s.Active))
	for _, a := range s.Active {
		extremes = append(extremes, a.ExtremeEvent)
	}

	before := make(map[field.ZoneID]field.StressLevel, s.Grid.Len())
	s.Grid.Each(func(z *field.Zone) {
		before[z.ID] = z.Stress()
	})

	in := growth.Inputs{
		Crop:       s.Crop,
		Weather:    sample,
		Conditions: s.Conditions,
		Week:       week,
		Events:     extremes,
	}
	var newlyStressed []field.ZoneID
	s.Grid.Each(func(z *field.Zone) {
		growth.Step(z, in)
		if z.Stress() > before[z.ID] {
			newlyStressed = append(newlyStressed, z.ID)
		}
		slog.Debug("zone stepped",
			"zone", z.ID,
			"vegetation", fmt.Sprintf("%.3f", z.Vegetation()),
			"moisture", fmt.Sprintf("%.3f", z.Moisture()),
			"stress", z.Stress(),
		)
	})
	s.expireExtremes()

	s.Score = scoreState(s.Grid, s.Ledger, week)
	s.Clock.CurrentWeek++

	sum := TickSummary{
		Week:          week,
		Weather:       sample,
		Extremes:      extremes,
		Score:         s.Score,
		Healthy:       s.Grid.Count(field.Healthy),
		Stressed:      s.Grid.Count(field.Stressed),
		NewlyStressed: newlyStressed,
	}
	sum.Notifications = s.evaluateObjectives()

	if s.Clock.Due() {
		o := s.finish()
		sum.Outcome = &o
	}

	slog.Info("weekly summary",
		"season", s.SeasonID,
		"week", week+1,
		"score", fmt.Sprintf("%.1f", s.Score.Total),
		"healthy", sum.Healthy,
		"stressed", sum.Stressed,
		"newly_stressed", len(newlyStressed),
		"extremes", len(extremes),
		"soil", fmt.Sprintf("%.3f", s.Conditions.SoilHealth),
		"pests", fmt.Sprintf("%.2f", s.Conditions.PestPressure),
	)

	if sample.Extreme != nil {
		ev := *sample.Extreme
		s.EmitEvent(Event{
			Kind:        EventExtremeFired,
			Week:        week,
			Description: fmt.Sprintf("%s strikes (intensity %.2f, %d week(s))", ev.Kind, ev.Intensity, ev.Duration),
			Extreme:     &ev,
		})
	}
	if len(newlyStressed) > 0 {
		s.EmitEvent(Event{
			Kind:        EventZonesStressed,
			Week:        week,
			Description: fmt.Sprintf("%d zone(s) became more stressed", len(newlyStressed)),
			Zones:       slices.Clone(newlyStressed),
		})
	}
	summary := sum
	s.EmitEvent(Event{
		Kind:        EventWeekAdvanced,
		Week:        week,
		Description: WeekLabel(week, s.Clock.MaxWeeks) + " complete",
		Summary:     &summary,
	})
	if sum.Outcome != nil {
		o := sum.Outcome.clone()
		s.EmitEvent(Event{
			Kind:        EventSeasonEnded,
			Week:        week,
			Description: outcomeText(o),
			Outcome:     &o,
		})
	}
	return sum, nil
}

// applyDeferred realizes queued effects from earlier interventions.
func (s *Simulation) applyDeferred() {
	for _, d := range s.pending {
		z, err := s.Grid.Lookup(d.zone)
		if err != nil {
			continue
		}
		z.RaiseVegetationTo(d.bonus, d.ceiling)
	}
	s.pending = s.pending[:0]
}

// PendingEffects reports how many deferred effects are queued.
func (s *Simulation) PendingEffects() int {
	return len(s.pending)
}

func (s *Simulation) expireExtremes() {
	n := 0
	for _, a := range s.Active {
		a.Remaining--
		if a.Remaining > 0 {
			s.Active[n] = a
			n++
		}
	}
	s.Active = s.Active[:n]
}

// finish ends the season and computes its outcome.
func (s *Simulation) finish() Outcome {
	p := s.opts.Policy
	o := Outcome{
		HealthyFraction: HealthyFraction(s.Grid),
		WaterUsed:       s.Ledger.WaterUsed(),
		WaterUsedShare:  s.Ledger.WaterUsedFraction(),
		Score:           s.Score.Total,
	}
	if o.HealthyFraction < p.SuccessHealthyFraction {
		o.Failures = append(o.Failures, FailureHealth)
	}
	if o.WaterUsed > s.Ledger.InitialWater {
		o.Failures = append(o.Failures, FailureWater)
	}
	if o.Score < p.SuccessScore {
		o.Failures = append(o.Failures, FailureScore)
	}
	o.Success = len(o.Failures) == 0

	s.Clock.Ended = true
	s.Outcome = &o

	slog.Info("season ended",
		"season", s.SeasonID,
		"success", o.Success,
		"failures", o.Failures,
		"healthy_fraction", fmt.Sprintf("%.2f", o.HealthyFraction),
		"water_used", o.WaterUsed,
		"score", fmt.Sprintf("%.1f", o.Score),
	)
	return o.clone()
}

func outcomeText(o Outcome) string {
	if o.Success {
		return fmt.Sprintf("Season succeeded with score %.1f", o.Score)
	}
	return fmt.Sprintf("Season failed (%d condition(s) unmet) with score %.1f", len(o.Failures), o.Score)
}
