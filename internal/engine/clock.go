package engine

import "fmt"

// Mode is the onboarding mode of a season.
type Mode uint8

const (
	ModeTutorial Mode = iota
	ModeNormal
)

func (m Mode) String() string {
	if m == ModeTutorial {
		return "tutorial"
	}
	return "normal"
}

// MarshalText renders the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "tutorial":
		*m = ModeTutorial
	case "normal":
		*m = ModeNormal
	default:
		return fmt.Errorf("unknown mode %q", b)
	}
	return nil
}

// Phase is the externally visible clock state.
type Phase uint8

const (
	PhaseTutorial Phase = iota
	PhaseNormal
	PhasePaused
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseTutorial:
		return "tutorial"
	case PhaseNormal:
		return "normal"
	case PhasePaused:
		return "paused"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for _, c := range []Phase{PhaseTutorial, PhaseNormal, PhasePaused, PhaseEnded} {
		if c.String() == string(b) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Clock tracks the season's week counter and state machine.
type Clock struct {
	CurrentWeek   int  `json:"current_week"` // Weeks completed so far
	MaxWeeks      int  `json:"max_weeks"`
	Mode          Mode `json:"mode"`
	Paused        bool `json:"paused"`
	Ended         bool `json:"ended"`
	TutorialStage int  `json:"tutorial_stage"`
}

// NewClock starts a season at week 0.
func NewClock(maxWeeks int, tutorial bool) Clock {
	c := Clock{MaxWeeks: maxWeeks, Mode: ModeNormal}
	if tutorial {
		c.Mode = ModeTutorial
	}
	return c
}

// Phase collapses the flags into one state. Ended wins over paused.
func (c Clock) Phase() Phase {
	switch {
	case c.Ended:
		return PhaseEnded
	case c.Paused:
		return PhasePaused
	case c.Mode == ModeTutorial:
		return PhaseTutorial
	default:
		return PhaseNormal
	}
}

// Due reports whether the season has run its course.
func (c Clock) Due() bool {
	return c.CurrentWeek >= c.MaxWeeks
}

// WeekLabel returns a human-readable position in the season.
func WeekLabel(week, maxWeeks int) string {
	return fmt.Sprintf("Week %d of %d", min(week+1, maxWeeks), maxWeeks)
}
