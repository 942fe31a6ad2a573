// Command steward runs the field autopilot against a farmsim API.
// It observes the season, plans irrigation and fertilizer within budget,
// and acts via the intervention endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/talgya/farm-season/internal/steward"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("STEWARD_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("FARMSIM_ADMIN_KEY")
	intervalSec := envIntOrDefault("STEWARD_INTERVAL", 5)
	memoryPath := envOrDefault("STEWARD_MEMORY", "steward_memory.json")

	interval := time.Duration(intervalSec) * time.Second
	slog.Info("steward starting", "api_url", apiURL, "interval", interval, "admin_auth", adminKey != "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wait for the farmsim API to be ready before the first cycle.
	slog.Info("waiting for farmsim API...")
	if err := waitForAPI(ctx, apiURL); err != nil {
		slog.Error("farmsim API unavailable", "error", err)
		os.Exit(1)
	}

	s := &steward.Steward{
		Observer: steward.NewHTTPObserver(apiURL),
		Executor: steward.NewHTTPActor(apiURL, adminKey),
		Config:   steward.DefaultConfig(),
		Memory:   steward.LoadMemory(memoryPath),
	}

	runCycle(ctx, s, memoryPath)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runCycle(ctx, s, memoryPath)
		case <-ctx.Done():
			slog.Info("shutting down")
			fmt.Print(s.Memory.Summary())
			fmt.Println("Steward stopped.")
			return
		}
	}
}

func runCycle(ctx context.Context, s *steward.Steward, memoryPath string) {
	if _, err := s.RunCycle(ctx); err != nil {
		slog.Error("steward cycle failed", "error", err)
		return
	}
	if err := s.Memory.Save(memoryPath); err != nil {
		slog.Warn("memory save failed", "error", err)
	}
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

// waitForAPI polls the status endpoint with exponential backoff until it
// responds, giving up after 5 minutes.
func waitForAPI(ctx context.Context, apiURL string) error {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("farmsim API is ready")
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("not ready after 5 minutes")
		}
		slog.Info("farmsim not ready, retrying...", "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
