package engine

import (
	"errors"
	"time"

	"github.com/talgya/farm-season/internal/field"
	"github.com/talgya/farm-season/internal/weather"
)

// MaxSubscribers bounds the subscription list.
const MaxSubscribers = 16

// recentEventCap bounds the in-memory event log.
const recentEventCap = 500

// ErrTooManySubscribers is returned when the subscription list is full.
var ErrTooManySubscribers = errors.New("too many subscribers")

// EventKind categorizes events for listeners.
type EventKind string

const (
	EventSeasonStarted EventKind = "season_started"
	EventWeekAdvanced  EventKind = "week_advanced"
	EventIntervention  EventKind = "intervention"
	EventExtremeFired  EventKind = "extreme_weather"
	EventZonesStressed EventKind = "zones_stressed"
	EventObjective     EventKind = "objective"
	EventPhaseChanged  EventKind = "phase_changed"
	EventSeasonEnded   EventKind = "season_ended"
)

// Event is a notable occurrence in the season. The payload field matching
// Kind is set; the others are nil.
type Event struct {
	Kind        EventKind `json:"kind"`
	SeasonID    string    `json:"season_id"`
	Week        int       `json:"week"`
	Description string    `json:"description"`
	Time        time.Time `json:"time"`

	Season       *SeasonInfo           `json:"season,omitempty"`
	Phase        *Phase                `json:"phase,omitempty"`
	Summary      *TickSummary          `json:"summary,omitempty"`
	Intervention *InterventionResult   `json:"intervention,omitempty"`
	Extreme      *weather.ExtremeEvent `json:"extreme,omitempty"`
	Zones        []field.ZoneID        `json:"zones,omitempty"`
	Notification *Notification         `json:"notification,omitempty"`
	Outcome      *Outcome              `json:"outcome,omitempty"`
}

// Handler receives events synchronously, inside the transaction that
// produced them. Handlers must not call back into the Simulation.
type Handler func(Event)

type subscription struct {
	id uint64
	fn Handler
}

// Subscribe registers fn and returns a function that removes it.
func (s *Simulation) Subscribe(fn Handler) (func(), error) {
	if len(s.subs) >= MaxSubscribers {
		return nil, ErrTooManySubscribers
	}
	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	return func() { s.unsubscribe(id) }, nil
}

func (s *Simulation) unsubscribe(id uint64) {
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// EmitEvent records e and fans it out to subscribers.
func (s *Simulation) EmitEvent(e Event) {
	e.SeasonID = s.SeasonID.String()
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.Events = append(s.Events, e)
	if len(s.Events) > recentEventCap {
		s.Events = s.Events[len(s.Events)-recentEventCap:]
	}
	for _, sub := range s.subs {
		sub.fn(e)
	}
}
