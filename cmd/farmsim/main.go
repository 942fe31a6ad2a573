// Command farmsim runs a farm season: headless to completion, or served
// over HTTP with a real-time runner.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/talgya/farm-season/internal/api"
	"github.com/talgya/farm-season/internal/config"
	"github.com/talgya/farm-season/internal/engine"
	"github.com/talgya/farm-season/internal/persistence"
	"github.com/talgya/farm-season/internal/steward"
	"github.com/talgya/farm-season/internal/weather"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	scenarioPath := flag.String("scenario", os.Getenv("FARMSIM_SCENARIO"), "scenario YAML file (default: built-in)")
	dbPath := flag.String("db", envOrDefault("FARMSIM_DB", "data/farm.db"), "sqlite history database (empty to disable)")
	logDir := flag.String("log-dir", envOrDefault("FARMSIM_LOG_DIR", "data/ticks"), "zstd tick log directory (empty to disable)")
	serve := flag.Bool("serve", false, "serve the HTTP API and advance weeks in real time")
	port := flag.Int("port", envIntOrDefault("FARMSIM_PORT", 8080), "HTTP port for -serve")
	interval := flag.Duration("interval", 5*time.Second, "wall-clock time per week for -serve")
	autopilot := flag.Bool("autopilot", false, "let the steward irrigate and fertilize each week")
	logLevel := flag.String("log-level", envOrDefault("FARMSIM_LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Scenario ──────────────────────────────────────────────────────
	scenario := config.Default()
	if *scenarioPath != "" {
		var err error
		if scenario, err = config.Load(*scenarioPath); err != nil {
			slog.Error("failed to load scenario", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("scenario loaded", "name", scenario.Name, "crop", scenario.Crop, "weeks", scenario.Weeks,
		"grid", fmt.Sprintf("%dx%d", scenario.Grid.Rows, scenario.Grid.Cols))

	// Live conditions nudge the climate baseline once, before generation.
	if wc := weather.NewClient(os.Getenv("OPENWEATHER_API_KEY"), os.Getenv("OPENWEATHER_LOCATION")); wc != nil {
		if obs, err := wc.Fetch(ctx); err != nil {
			slog.Warn("live weather unavailable, using profile baseline", "error", err)
		} else {
			scenario.Location = weather.Calibrate(scenario.Location, obs)
			slog.Info("location calibrated", "temp_c", obs.TempC, "humidity", obs.Humidity, "rain_mm", obs.RainMM, "desc", obs.Description)
		}
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.New(scenario.Options(os.Getenv("RANDOM_ORG_API_KEY")))
	if err != nil {
		slog.Error("failed to start season", "error", err)
		os.Exit(1)
	}
	mu := &sync.Mutex{}

	// ── History ───────────────────────────────────────────────────────
	var db *persistence.DB
	if *dbPath != "" {
		os.MkdirAll(filepath.Dir(*dbPath), 0o755)
		if db, err = persistence.Open(*dbPath); err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", *dbPath)
	}
	var tickLog *persistence.TickLog
	if *logDir != "" {
		os.MkdirAll(*logDir, 0o755)
		tickLog = persistence.NewTickLog(*logDir)
		defer tickLog.Close()
	}
	recorder := &persistence.Recorder{DB: db, Log: tickLog}
	if err := recorder.Attach(sim); err != nil {
		slog.Error("failed to record season", "error", err)
		os.Exit(1)
	}
	defer recorder.Detach()
	if db != nil {
		if err := db.SaveMeta("last_season", sim.SeasonID.String()); err != nil {
			slog.Warn("meta save failed", "error", err)
		}
	}

	var pilot *steward.Steward
	if *autopilot {
		cfg := steward.DefaultConfig()
		cfg.Policy = scenario.Policy
		pilot = &steward.Steward{
			Observer: &steward.LocalObserver{Sim: sim, Mu: mu},
			Executor: &steward.LocalActor{Sim: sim, Mu: mu},
			Config:   cfg,
			Memory:   &steward.CycleMemory{},
		}
		slog.Info("steward autopilot enabled")
	}

	if *serve {
		runServer(ctx, sim, mu, db, pilot, *port, *interval)
		return
	}
	runHeadless(ctx, sim, pilot)
}

// runHeadless plays the season to completion as fast as possible.
func runHeadless(ctx context.Context, sim *engine.Simulation, pilot *steward.Steward) {
	for !sim.Clock.Ended {
		if ctx.Err() != nil {
			slog.Info("interrupted", "week", sim.Clock.CurrentWeek)
			return
		}
		if pilot != nil {
			if _, err := pilot.RunCycle(ctx); err != nil {
				slog.Warn("steward cycle failed", "error", err)
			}
		}
		if _, err := sim.AdvanceWeek(); err != nil {
			slog.Error("advance failed", "error", err)
			os.Exit(1)
		}
	}

	o := sim.Outcome
	fmt.Printf("\nSeason %s (%s) finished after %d weeks.\n", sim.SeasonID, sim.Crop.Name, sim.Clock.MaxWeeks)
	fmt.Printf("Sustainability: %.1f | Healthy: %.0f%% | Water used: %.0f%%\n",
		o.Score, o.HealthyFraction*100, o.WaterUsedShare*100)
	if o.Success {
		fmt.Println("Outcome: SUCCESS")
	} else {
		failures := make([]string, len(o.Failures))
		for i, f := range o.Failures {
			failures[i] = string(f)
		}
		fmt.Printf("Outcome: FAILURE (%s)\n", strings.Join(failures, ", "))
	}
	if pilot != nil && pilot.Memory != nil {
		fmt.Print("\nSteward, last cycles:\n" + pilot.Memory.Summary())
	}
}

// runServer serves the API and advances weeks in real time. A season
// started over the API restarts the runner.
func runServer(ctx context.Context, sim *engine.Simulation, mu *sync.Mutex, db *persistence.DB, pilot *steward.Steward, port int, interval time.Duration) {
	adminKey := os.Getenv("FARMSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("FARMSIM_ADMIN_KEY not set, POST endpoints are open")
	}

	srv, err := api.NewServer(sim, mu)
	if err != nil {
		slog.Error("failed to create API server", "error", err)
		os.Exit(1)
	}
	srv.DB = db
	srv.Port = port
	srv.AdminKey = adminKey

	seasons, err := watchSeasons(sim, mu)
	if err != nil {
		slog.Error("failed to watch seasons", "error", err)
		os.Exit(1)
	}

	httpSrv := srv.Start()
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", port)
	fmt.Println("Season running... (Ctrl+C to stop)")

	for {
		runner := engine.NewRunner(sim, mu, interval)
		mu.Lock()
		srv.Runner = runner
		mu.Unlock()
		if pilot != nil {
			runner.OnWeek = func(engine.TickSummary) {
				if _, err := pilot.RunCycle(ctx); err != nil {
					slog.Warn("steward cycle failed", "error", err)
				}
			}
		}
		runner.Run(ctx)

		if ctx.Err() != nil {
			break
		}
		if !seasons.settle() {
			continue
		}
		slog.Info("season over, waiting for a new season")
		if !seasons.wait(ctx) {
			break
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	fmt.Println("Server stopped. History saved.")
}

// seasonWatch wakes the runner loop when a season is started over the API.
type seasonWatch struct {
	sim     *engine.Simulation
	mu      sync.Locker
	started chan struct{}
}

func watchSeasons(sim *engine.Simulation, mu sync.Locker) (*seasonWatch, error) {
	w := &seasonWatch{sim: sim, mu: mu, started: make(chan struct{}, 1)}
	mu.Lock()
	defer mu.Unlock()
	_, err := sim.Subscribe(func(e engine.Event) {
		if e.Kind != engine.EventSeasonStarted {
			return
		}
		select {
		case w.started <- struct{}{}:
		default:
		}
	})
	return w, err
}

// settle drops signals for seasons the runner has already played and
// reports whether the current season has ended.
func (w *seasonWatch) settle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.started:
	default:
	}
	return w.sim.Clock.Ended
}

// wait blocks until a new season starts. It returns false if ctx ends first.
func (w *seasonWatch) wait(ctx context.Context) bool {
	select {
	case <-w.started:
		return true
	case <-ctx.Done():
		return false
	}
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
