package persistence

import (
	"log/slog"
	"time"

	"github.com/talgya/farm-season/internal/engine"
)

// Recorder mirrors a simulation's events into the history DB and tick log.
// Either sink may be nil. Write failures are logged, never returned to
// the simulation.
type Recorder struct {
	DB   *DB
	Log  *TickLog
	Now  func() time.Time
	stop func()
}

// Attach records the current season and subscribes to future events.
func (r *Recorder) Attach(sim *engine.Simulation) error {
	if r.Now == nil {
		r.Now = time.Now
	}
	if r.DB != nil {
		if err := r.DB.SaveSeason(sim.Info(), r.Now()); err != nil {
			return err
		}
	}
	stop, err := sim.Subscribe(r.Handle)
	if err != nil {
		return err
	}
	r.stop = stop
	return nil
}

// Detach stops recording.
func (r *Recorder) Detach() {
	if r.stop != nil {
		r.stop()
		r.stop = nil
	}
}

// Handle routes one event to the sinks.
func (r *Recorder) Handle(e engine.Event) {
	var err error
	switch e.Kind {
	case engine.EventSeasonStarted:
		if r.DB != nil && e.Season != nil {
			err = r.DB.SaveSeason(*e.Season, e.Time)
		}
	case engine.EventWeekAdvanced:
		if e.Summary == nil {
			return
		}
		if r.DB != nil {
			err = r.DB.SaveTick(e.SeasonID, *e.Summary)
		}
		if r.Log != nil {
			if lerr := r.Log.Write(e.SeasonID, *e.Summary); lerr != nil {
				slog.Warn("tick log write failed", "season", e.SeasonID, "week", e.Week, "error", lerr)
			}
		}
	case engine.EventIntervention:
		if r.DB != nil && e.Intervention != nil {
			err = r.DB.SaveIntervention(e.SeasonID, *e.Intervention)
		}
	case engine.EventObjective:
		if r.DB != nil && e.Notification != nil {
			err = r.DB.SaveNotification(e.SeasonID, *e.Notification)
		}
	case engine.EventSeasonEnded:
		if r.DB != nil && e.Outcome != nil {
			err = r.DB.FinishSeason(e.SeasonID, *e.Outcome, e.Time)
		}
	}
	if err != nil {
		slog.Warn("history write failed", "kind", e.Kind, "season", e.SeasonID, "error", err)
	}
}
