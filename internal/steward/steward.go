package steward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/farm-season/internal/engine"
)

// Steward runs observe, triage, decide and act cycles.
type Steward struct {
	Observer Observer
	Executor Executor
	Config   Config
	Memory   *CycleMemory // Optional
}

// RunCycle executes one cycle. A rejected action is logged and the rest
// of the plan still runs; transport failures abort the cycle.
func (s *Steward) RunCycle(ctx context.Context) (CycleRecord, error) {
	snap, err := s.Observer.Observe(ctx)
	if err != nil {
		return CycleRecord{}, fmt.Errorf("observe: %w", err)
	}
	health := Triage(snap)
	plan := Decide(snap, health, s.Config)

	rec := CycleRecord{
		SeasonID:  snap.Status.SeasonID,
		Week:      snap.Status.Week,
		Crisis:    health.CrisisLevel,
		Stressed:  health.Stressed,
		WaterLeft: health.WaterLeft,
		Rationale: plan.Rationale,
	}

	for _, act := range plan.Actions {
		res, err := s.Executor.Execute(ctx, act)
		if errors.Is(err, ErrRejected) {
			slog.Warn("steward action rejected", "tool", act.Tool, "zones", len(act.Zones), "error", err)
			continue
		}
		if err != nil {
			return rec, fmt.Errorf("act %s: %w", act.Tool, err)
		}
		switch act.Tool {
		case engine.ToolIrrigation:
			rec.Irrigated += len(res.Zones)
		case engine.ToolFertilizer:
			rec.Fertilized += len(res.Zones)
		}
		rec.WaterLeft = waterLeftAfter(res, snap, rec.WaterLeft)
	}

	if s.Memory != nil {
		s.Memory.Record(rec)
	}
	slog.Info("steward cycle complete",
		"week", rec.Week,
		"crisis", rec.Crisis,
		"irrigated", rec.Irrigated,
		"fertilized", rec.Fertilized,
		"rationale", rec.Rationale,
	)
	return rec, nil
}

func waterLeftAfter(res *engine.InterventionResult, snap *FieldSnapshot, prev float64) float64 {
	initial := snap.Status.Ledger.InitialWater
	if res.Tool != engine.ToolIrrigation || initial <= 0 {
		return prev
	}
	return res.Remaining / initial
}
