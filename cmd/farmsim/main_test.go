package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/talgya/farm-season/internal/engine"
	"github.com/talgya/farm-season/internal/entropy"
	"github.com/talgya/farm-season/internal/field"
)

func shortSim(t *testing.T) *engine.Simulation {
	t.Helper()
	opts := engine.DefaultOptions()
	opts.Rows, opts.Cols = 2, 2
	opts.MaxWeeks = 3
	opts.Source = entropy.Seeded(9)
	opts.Provider = field.Uniform{Vegetation: 0.6, Moisture: 0.5}
	sim, err := engine.New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return sim
}

func TestSeasonWatchIgnoresSeasonsAlreadyPlayed(t *testing.T) {
	sim := shortSim(t)
	mu := &sync.Mutex{}
	w, err := watchSeasons(sim, mu)
	if err != nil {
		t.Fatal(err)
	}

	// A season replaced mid-run is played by the runner that is already going.
	sim.AdvanceWeek()
	if err := sim.NewSeason(""); err != nil {
		t.Fatal(err)
	}
	for !sim.Clock.Ended {
		if _, err := sim.AdvanceWeek(); err != nil {
			t.Fatal(err)
		}
	}
	if !w.settle() {
		t.Fatal("settle should report the ended season")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if w.wait(ctx) {
		t.Fatal("woke for a season that was already played")
	}

	if err := sim.NewSeason("wheat"); err != nil {
		t.Fatal(err)
	}
	if !w.wait(context.Background()) {
		t.Fatal("new season did not wake the loop")
	}
}

func TestSeasonWatchRestartsUnfinishedSeason(t *testing.T) {
	sim := shortSim(t)
	w, err := watchSeasons(sim, &sync.Mutex{})
	if err != nil {
		t.Fatal(err)
	}
	for !sim.Clock.Ended {
		sim.AdvanceWeek()
	}
	// Started between the runner stopping and settle.
	if err := sim.NewSeason(""); err != nil {
		t.Fatal(err)
	}
	if w.settle() {
		t.Fatal("a fresh season is not over")
	}
	select {
	case <-w.started:
		t.Fatal("signal should be consumed by settle")
	default:
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug").String() != "DEBUG" || parseLevel("nonsense").String() != "INFO" {
		t.Fatal("unexpected level parsing")
	}
}
