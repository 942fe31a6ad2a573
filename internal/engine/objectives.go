package engine

import (
	"fmt"
	"log/slog"
)

// Milestones are the thresholds the default objectives watch.
type Milestones struct {
	ScoreTarget     float64 `yaml:"score_target" json:"score_target"`
	ScoreStreak     int     `yaml:"score_streak" json:"score_streak"`
	FirstCheckpoint int     `yaml:"first_checkpoint" json:"first_checkpoint"`
	LateCheckpoint  int     `yaml:"late_checkpoint" json:"late_checkpoint"`
	MaxStressed     float64 `yaml:"max_stressed" json:"max_stressed"` // Fraction allowed at a checkpoint
}

// DefaultMilestones returns the standard thresholds.
func DefaultMilestones() Milestones {
	return Milestones{
		ScoreTarget:     75,
		ScoreStreak:     3,
		FirstCheckpoint: 5,
		LateCheckpoint:  10,
		MaxStressed:     0.25,
	}
}

// NotificationLevel grades a notification for display.
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
)

// Notification is a user-facing message raised by an objective.
type Notification struct {
	Objective string            `json:"objective"`
	Week      int               `json:"week"`
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
}

// Objective pairs a predicate with an action that runs once, the first
// time the predicate holds. Predicates may keep their own state across
// evaluations; build fresh ones per season.
type Objective struct {
	ID    string
	Check func(s *Simulation) bool
	Fire  func(s *Simulation) Notification
}

type objectiveState struct {
	Objective
	fired bool
}

// DefaultObjectives builds the standard objective list.
func DefaultObjectives(m Milestones) []Objective {
	streak, counted := 0, -1
	return []Objective{
		{
			ID:    "first_irrigation",
			Check: func(s *Simulation) bool { return s.irrigated },
			Fire: func(s *Simulation) Notification {
				s.Clock.TutorialStage++
				return Notification{
					Level:   LevelInfo,
					Message: "First irrigation done. Water lands now; plants respond next week.",
				}
			},
		},
		{
			ID: "score_milestone",
			// One check per week; interventions within a week do not extend the streak.
			Check: func(s *Simulation) bool {
				if s.Clock.CurrentWeek == counted {
					return false
				}
				counted = s.Clock.CurrentWeek
				if s.Score.Total > m.ScoreTarget {
					streak++
				} else {
					streak = 0
				}
				return streak >= m.ScoreStreak
			},
			Fire: func(s *Simulation) Notification {
				return Notification{
					Level:   LevelSuccess,
					Message: fmt.Sprintf("Sustainability held above %.0f for %d weeks in a row.", m.ScoreTarget, m.ScoreStreak),
				}
			},
		},
		checkpoint("checkpoint_early", m.FirstCheckpoint, m.MaxStressed),
		checkpoint("checkpoint_late", m.LateCheckpoint, m.MaxStressed),
		{
			ID:    "crop_maturity",
			Check: func(s *Simulation) bool { return s.Clock.CurrentWeek >= s.Crop.MaturityWeeks },
			Fire: func(s *Simulation) Notification {
				return Notification{
					Level:   LevelSuccess,
					Message: fmt.Sprintf("The %s has reached maturity.", s.Crop.Name),
				}
			},
		},
	}
}

// checkpoint fires once the clock reaches week and grades the share of
// stressed zones at that moment.
func checkpoint(id string, week int, maxStressed float64) Objective {
	return Objective{
		ID:    id,
		Check: func(s *Simulation) bool { return s.Clock.CurrentWeek >= week },
		Fire: func(s *Simulation) Notification {
			frac := StressedFraction(s.Grid)
			if frac <= maxStressed {
				return Notification{
					Level:   LevelSuccess,
					Message: fmt.Sprintf("Week %d checkpoint passed: %.0f%% of zones stressed.", week, frac*100),
				}
			}
			return Notification{
				Level:   LevelWarning,
				Message: fmt.Sprintf("Week %d checkpoint missed: %.0f%% of zones stressed (limit %.0f%%).", week, frac*100, maxStressed*100),
			}
		},
	}
}

// evaluateObjectives fires every objective whose predicate newly holds.
func (s *Simulation) evaluateObjectives() []Notification {
	var out []Notification
	for _, o := range s.objectives {
		if o.fired || !o.Check(s) {
			continue
		}
		o.fired = true
		n := o.Fire(s)
		n.Objective = o.ID
		n.Week = s.Clock.CurrentWeek
		out = append(out, n)
		s.Notifications = append(s.Notifications, n)

		slog.Info("objective reached", "objective", o.ID, "week", n.Week, "level", n.Level)
		note := n
		s.EmitEvent(Event{
			Kind:         EventObjective,
			Week:         n.Week,
			Description:  n.Message,
			Notification: &note,
		})
	}
	return out
}

// FiredObjectives lists the ids of objectives that have fired this season.
func (s *Simulation) FiredObjectives() []string {
	var ids []string
	for _, o := range s.objectives {
		if o.fired {
			ids = append(ids, o.ID)
		}
	}
	return ids
}
