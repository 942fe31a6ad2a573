package steward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/talgya/farm-season/internal/engine"
)

// ErrRejected is returned when the simulation refuses an action
// (insufficient budget, season over).
var ErrRejected = errors.New("intervention rejected")

// Executor carries out one action.
type Executor interface {
	Execute(ctx context.Context, a Action) (*engine.InterventionResult, error)
}

// HTTPActor executes actions via the admin API.
type HTTPActor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewHTTPActor creates an actor targeting the given API base URL.
func NewHTTPActor(baseURL, adminKey string) *HTTPActor {
	return &HTTPActor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Execute sends the action to POST /api/v1/intervention.
func (a *HTTPActor) Execute(ctx context.Context, act Action) (*engine.InterventionResult, error) {
	body, err := json.Marshal(act)
	if err != nil {
		return nil, fmt.Errorf("marshal action: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/api/v1/intervention", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.AdminKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.AdminKey)
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST intervention: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", ErrRejected, bytes.TrimSpace(respBody))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("intervention failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var result engine.InterventionResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// LocalActor applies actions to an in-process simulation under its lock.
type LocalActor struct {
	Sim *engine.Simulation
	Mu  sync.Locker
}

// Execute applies the action.
func (a *LocalActor) Execute(ctx context.Context, act Action) (*engine.InterventionResult, error) {
	a.Mu.Lock()
	res, err := a.Sim.Apply(act.Tool, act.Zones)
	a.Mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return &res, nil
}
