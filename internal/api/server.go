// Package api serves a season over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token when an admin key is configured.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/talgya/farm-season/internal/engine"
	"github.com/talgya/farm-season/internal/field"
	"github.com/talgya/farm-season/internal/ledger"
	"github.com/talgya/farm-season/internal/persistence"
)

// Server serves one simulation over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Runner   *engine.Runner // Optional; enables /speed. Guarded by mu once serving.
	DB       *persistence.DB
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST open.

	mu      sync.Locker // Guards Sim; shared with the runner
	hub     *Hub
	limiter *RateLimiter
}

// NewServer wires a server around sim. mu must be the same lock the
// runner uses.
func NewServer(sim *engine.Simulation, mu sync.Locker) (*Server, error) {
	s := &Server{
		Sim:     sim,
		mu:      mu,
		hub:     NewHub(),
		limiter: NewRateLimiter(60, time.Minute),
	}
	mu.Lock()
	_, err := sim.Subscribe(s.hub.Publish)
	mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("subscribe stream hub: %w", err)
	}
	return s, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.getOnly(s.handleStatus))
	mux.HandleFunc("/api/v1/zones", s.getOnly(s.handleZones))
	mux.HandleFunc("/api/v1/zone/", s.getOnly(s.handleZone))
	mux.HandleFunc("/api/v1/weather", s.getOnly(s.handleWeather))
	mux.HandleFunc("/api/v1/history", s.getOnly(s.handleHistory))
	mux.HandleFunc("/api/v1/crops", s.getOnly(s.handleCrops))
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Control endpoints (POST).
	mux.HandleFunc("/api/v1/intervention", s.adminOnly(RateLimitMiddleware(s.limiter, s.handleIntervention)))
	mux.HandleFunc("/api/v1/advance", s.adminOnly(s.handleAdvance))
	mux.HandleFunc("/api/v1/pause", s.adminOnly(s.handlePause))
	mux.HandleFunc("/api/v1/tutorial/complete", s.adminOnly(s.handleCompleteTutorial))
	mux.HandleFunc("/api/v1/season", s.adminOnly(s.handleNewSeason))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list; localhost dev servers are
// always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly restricts a handler to POST and, with an admin key set,
// requires the bearer token.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey != "" && !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.Sim.Snapshot()
	runner := s.Runner
	s.mu.Unlock()

	status := map[string]any{
		"season_id":      st.SeasonID,
		"crop":           st.Crop.Name,
		"week":           st.Week,
		"max_weeks":      st.MaxWeeks,
		"label":          st.Label,
		"phase":          st.Phase,
		"tutorial_stage": st.TutorialStage,
		"sustainability": st.Score,
		"ledger":         st.Ledger,
		"conditions":     st.Conditions,
		"weather":        st.Weather,
		"active_extreme": st.Active,
		"healthy_zones":  st.Healthy,
		"stressed_zones": st.Stressed,
		"zones":          len(st.Zones),
		"outcome":        st.Outcome,
	}
	if runner != nil {
		status["speed"] = runner.Speed()
	}
	writeJSON(w, status)
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var zones []field.Zone
	switch r.URL.Query().Get("filter") {
	case "stressed":
		for z := range s.Sim.Grid.Matching(field.Stressed) {
			zones = append(zones, z)
		}
	case "healthy":
		for z := range s.Sim.Grid.Matching(field.Healthy) {
			zones = append(zones, z)
		}
	default:
		zones = s.Sim.Grid.Snapshot()
	}
	s.mu.Unlock()

	if zones == nil {
		zones = []field.Zone{}
	}
	writeJSON(w, zones)
}

func (s *Server) handleZone(w http.ResponseWriter, r *http.Request) {
	id, err := field.ParseZoneID(strings.TrimPrefix(r.URL.Path, "/api/v1/zone/"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	z, err := s.Sim.Grid.Lookup(id)
	var zone field.Zone
	if err == nil {
		zone = z.Clone()
	}
	s.mu.Unlock()

	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, zone)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	current, ok := s.Sim.CurrentSample()
	past := s.Sim.PastSamples()
	active := append([]engine.ActiveExtreme(nil), s.Sim.Active...)
	s.mu.Unlock()

	resp := map[string]any{
		"past":           past,
		"active_extreme": active,
	}
	if ok {
		resp["current"] = current
	}
	writeJSON(w, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "history not available", http.StatusServiceUnavailable)
		return
	}
	seasonID := r.URL.Query().Get("season")
	if seasonID == "" {
		s.mu.Lock()
		seasonID = s.Sim.SeasonID.String()
		s.mu.Unlock()
	}

	ticks, err := s.DB.TickHistory(seasonID)
	if err != nil {
		slog.Error("history query failed", "season", seasonID, "error", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	if ticks == nil {
		ticks = []persistence.TickRow{}
	}
	seasons, err := s.DB.RecentSeasons(20)
	if err != nil {
		slog.Error("season query failed", "error", err)
	}
	writeJSON(w, map[string]any{
		"season_id": seasonID,
		"ticks":     ticks,
		"seasons":   seasons,
	})
}

func (s *Server) handleCrops(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	crops := s.Sim.Crops()
	s.mu.Unlock()
	writeJSON(w, crops)
}

func (s *Server) handleIntervention(w http.ResponseWriter, r *http.Request) {
	req, err := decodeIntervention(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tool, err := engine.ParseToolKind(req.Tool)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	res, err := s.Sim.Apply(tool, req.Zones)
	s.mu.Unlock()

	switch {
	case errors.Is(err, ledger.ErrInsufficientResource), errors.Is(err, engine.ErrAlreadyEnded):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		slog.Error("intervention failed", "tool", tool, "error", err)
		http.Error(w, "intervention failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sum, err := s.Sim.AdvanceWeek()
	s.mu.Unlock()

	if errors.Is(err, engine.ErrAlreadyEnded) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		slog.Error("advance failed", "error", err)
		http.Error(w, "advance failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, sum)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	paused, err := s.Sim.TogglePause()
	s.mu.Unlock()

	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"paused": paused})
}

func (s *Server) handleCompleteTutorial(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.Sim.CompleteTutorial()
	phase := s.Sim.Clock.Phase()
	s.mu.Unlock()

	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"phase": phase})
}

func (s *Server) handleNewSeason(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Crop string `json:"crop"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	err := s.Sim.NewSeason(req.Crop)
	st := s.Sim.Snapshot()
	s.mu.Unlock()

	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	runner := s.Runner
	s.mu.Unlock()
	if runner == nil {
		http.Error(w, "no runner attached", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > 100 {
		http.Error(w, "speed must be between 0 and 100", http.StatusBadRequest)
		return
	}
	runner.SetSpeed(req.Speed)
	slog.Info("runner speed changed", "speed", req.Speed)
	writeJSON(w, map[string]any{"speed": req.Speed})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
