// Package steward implements the field autopilot.
// It observes the season (over the API or in process), triages field
// health, plans irrigation and fertilizer within budget, and acts through
// the intervention endpoint.
package steward

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/talgya/farm-season/internal/engine"
	"github.com/talgya/farm-season/internal/field"
	"github.com/talgya/farm-season/internal/ledger"
)

// FieldSnapshot holds everything collected in one observation.
type FieldSnapshot struct {
	Status Status     `json:"status"`
	Zones  []ZoneView `json:"zones"`
}

// Status mirrors GET /api/v1/status.
type Status struct {
	SeasonID string                 `json:"season_id"`
	Crop     string                 `json:"crop"`
	Week     int                    `json:"week"`
	MaxWeeks int                    `json:"max_weeks"`
	Phase    engine.Phase           `json:"phase"`
	Ledger   ledger.Ledger          `json:"ledger"`
	Score    engine.ScoreBreakdown  `json:"sustainability"`
	Active   []engine.ActiveExtreme `json:"active_extreme"`
}

// ZoneView mirrors one item of GET /api/v1/zones.
type ZoneView struct {
	ID            field.ZoneID      `json:"id"`
	Vegetation    float64           `json:"vegetation_index"`
	Moisture      float64           `json:"soil_moisture"`
	Stress        field.StressLevel `json:"stress_level"`
	HasIrrigation bool              `json:"has_irrigation"`
	HasFertilizer bool              `json:"has_fertilizer"`
}

// Observer produces a FieldSnapshot.
type Observer interface {
	Observe(ctx context.Context) (*FieldSnapshot, error)
}

// HTTPObserver fetches state from a running API.
type HTTPObserver struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewHTTPObserver creates an observer targeting the given API base URL.
func NewHTTPObserver(baseURL string) *HTTPObserver {
	return &HTTPObserver{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches status and zones.
func (o *HTTPObserver) Observe(ctx context.Context) (*FieldSnapshot, error) {
	snap := &FieldSnapshot{}
	if err := o.fetchJSON(ctx, "/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/zones", &snap.Zones); err != nil {
		return nil, fmt.Errorf("fetch zones: %w", err)
	}
	return snap, nil
}

func (o *HTTPObserver) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// LocalObserver reads an in-process simulation under its lock.
type LocalObserver struct {
	Sim *engine.Simulation
	Mu  sync.Locker
}

// Observe snapshots the simulation.
func (o *LocalObserver) Observe(ctx context.Context) (*FieldSnapshot, error) {
	o.Mu.Lock()
	st := o.Sim.Snapshot()
	o.Mu.Unlock()

	snap := &FieldSnapshot{
		Status: Status{
			SeasonID: st.SeasonID,
			Crop:     st.Crop.Name,
			Week:     st.Week,
			MaxWeeks: st.MaxWeeks,
			Phase:    st.Phase,
			Ledger:   st.Ledger,
			Score:    st.Score,
			Active:   st.Active,
		},
		Zones: make([]ZoneView, 0, len(st.Zones)),
	}
	for _, z := range st.Zones {
		snap.Zones = append(snap.Zones, ZoneView{
			ID:            z.ID,
			Vegetation:    z.Vegetation(),
			Moisture:      z.Moisture(),
			Stress:        z.Stress(),
			HasIrrigation: z.HasIrrigation,
			HasFertilizer: z.HasFertilizer,
		})
	}
	return snap, nil
}
