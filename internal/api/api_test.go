package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/farm-season/internal/engine"
	"github.com/talgya/farm-season/internal/entropy"
	"github.com/talgya/farm-season/internal/field"
	"github.com/talgya/farm-season/internal/persistence"
	"github.com/talgya/farm-season/internal/weather"
)

func calmSeason(weeks int) weather.Season {
	samples := make([]weather.Sample, weeks)
	for i := range samples {
		samples[i] = weather.Sample{Week: i + 1, TemperatureC: 22, PrecipitationMM: 8, Humidity: 60, WindKPH: 10}
	}
	return weather.NewSeason(samples)
}

func newTestServer(t *testing.T, mutate func(*engine.Options)) (*Server, http.Handler) {
	t.Helper()
	season := calmSeason(8)
	opts := engine.DefaultOptions()
	opts.Rows, opts.Cols = 3, 3
	opts.MaxWeeks = 8
	opts.Season = &season
	opts.Source = entropy.Seeded(7)
	opts.Provider = field.Uniform{Vegetation: 0.5, Moisture: 0.4}
	if mutate != nil {
		mutate(&opts)
	}
	sim, err := engine.New(opts)
	if err != nil {
		t.Fatal(err)
	}
	srv, err := NewServer(sim, &sync.Mutex{})
	if err != nil {
		t.Fatal(err)
	}
	return srv, srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := do(t, h, http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["crop"] != "corn" || body["week"].(float64) != 0 || body["zones"].(float64) != 9 {
		t.Fatalf("status body = %v", body)
	}
	if body["label"] != "Week 1 of 8" {
		t.Fatalf("label = %v", body["label"])
	}
}

func TestZoneLookup(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/zone/1:2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var z map[string]any
	json.Unmarshal(rec.Body.Bytes(), &z)
	if z["id"] != "1:2" || z["vegetation_index"].(float64) != 0.5 {
		t.Fatalf("zone = %v", z)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/zone/9:9", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown zone status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/zone/abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed zone status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/zone/1:2", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST zone status = %d", rec.Code)
	}
}

func TestZonesFilter(t *testing.T) {
	_, h := newTestServer(t, nil)
	var all, stressed []json.RawMessage
	json.Unmarshal(do(t, h, http.MethodGet, "/api/v1/zones", "").Body.Bytes(), &all)
	json.Unmarshal(do(t, h, http.MethodGet, "/api/v1/zones?filter=stressed", "").Body.Bytes(), &stressed)
	if len(all) != 9 {
		t.Fatalf("zones = %d, want 9", len(all))
	}
	if stressed == nil || len(stressed) != 0 {
		t.Fatalf("stressed zones = %v, want empty array", stressed)
	}
}

func TestInterventionSpendsWater(t *testing.T) {
	srv, h := newTestServer(t, nil)
	rec := do(t, h, http.MethodPost, "/api/v1/intervention", `{"tool":"irrigate","zones":["0:0","0:1","7:7"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var res engine.InterventionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Tool != engine.ToolIrrigation || res.Cost != 50 || len(res.Ignored) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if srv.Sim.Ledger.Water != 950 {
		t.Fatalf("water = %v, want 950", srv.Sim.Ledger.Water)
	}
}

func TestInterventionRejectsBadBodies(t *testing.T) {
	_, h := newTestServer(t, nil)
	cases := map[string]string{
		"not json":      `{`,
		"missing zones": `{"tool":"irrigation"}`,
		"empty zones":   `{"tool":"irrigation","zones":[]}`,
		"bad zone id":   `{"tool":"irrigation","zones":["a-b"]}`,
		"extra field":   `{"tool":"irrigation","zones":["0:0"],"force":true}`,
		"unknown tool":  `{"tool":"plough","zones":["0:0"]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, "/api/v1/intervention", body); rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestInterventionInsufficientWater(t *testing.T) {
	srv, h := newTestServer(t, func(o *engine.Options) { o.Water = 30 })
	rec := do(t, h, http.MethodPost, "/api/v1/intervention", `{"tool":"irrigation","zones":["0:0","1:1"]}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if srv.Sim.Ledger.Water != 30 {
		t.Fatalf("rejected batch changed water to %v", srv.Sim.Ledger.Water)
	}
}

func TestAdminKey(t *testing.T) {
	srv, h := newTestServer(t, nil)
	srv.AdminKey = "secret"

	if rec := do(t, h, http.MethodPost, "/api/v1/advance", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/advance", "", "Authorization", "Bearer wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/advance", "", "Authorization", "Bearer secret"); rec.Code != http.StatusOK {
		t.Fatalf("good token status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/advance", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET advance status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/status", ""); rec.Code != http.StatusOK {
		t.Fatalf("public status = %d", rec.Code)
	}
}

func TestAdvanceToEnd(t *testing.T) {
	_, h := newTestServer(t, nil)
	var last engine.TickSummary
	for i := 0; i < 8; i++ {
		rec := do(t, h, http.MethodPost, "/api/v1/advance", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("week %d status = %d", i, rec.Code)
		}
		json.Unmarshal(rec.Body.Bytes(), &last)
	}
	if last.Outcome == nil {
		t.Fatal("final week carried no outcome")
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/advance", ""); rec.Code != http.StatusConflict {
		t.Fatalf("advance after end status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/pause", ""); rec.Code != http.StatusConflict {
		t.Fatalf("pause after end status = %d", rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/api/v1/season", `{"crop":"wheat"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("new season status = %d: %s", rec.Code, rec.Body)
	}
	var st engine.State
	json.Unmarshal(rec.Body.Bytes(), &st)
	if st.Crop.Name != "wheat" || st.Week != 0 || st.Outcome != nil {
		t.Fatalf("new season = %+v", st)
	}
}

func TestPauseAndTutorial(t *testing.T) {
	srv, h := newTestServer(t, func(o *engine.Options) { o.Tutorial = true })

	var p map[string]any
	json.Unmarshal(do(t, h, http.MethodPost, "/api/v1/pause", "").Body.Bytes(), &p)
	if p["paused"] != true {
		t.Fatalf("pause = %v", p)
	}
	var sum engine.TickSummary
	json.Unmarshal(do(t, h, http.MethodPost, "/api/v1/advance", "").Body.Bytes(), &sum)
	if !sum.Paused || srv.Sim.Clock.CurrentWeek != 0 {
		t.Fatalf("paused advance moved the clock: %+v", sum)
	}

	rec := do(t, h, http.MethodPost, "/api/v1/tutorial/complete", "")
	if rec.Code != http.StatusOK || srv.Sim.Clock.Mode != engine.ModeNormal {
		t.Fatalf("complete tutorial status = %d mode = %v", rec.Code, srv.Sim.Clock.Mode)
	}
}

func TestHistory(t *testing.T) {
	srv, h := newTestServer(t, nil)
	if rec := do(t, h, http.MethodGet, "/api/v1/history", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("history without db status = %d", rec.Code)
	}

	db, err := persistence.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	srv.DB = db
	rec := &persistence.Recorder{DB: db}
	if err := rec.Attach(srv.Sim); err != nil {
		t.Fatal(err)
	}
	do(t, h, http.MethodPost, "/api/v1/advance", "")
	do(t, h, http.MethodPost, "/api/v1/advance", "")

	var body struct {
		Ticks   []json.RawMessage `json:"ticks"`
		Seasons []json.RawMessage `json:"seasons"`
	}
	json.Unmarshal(do(t, h, http.MethodGet, "/api/v1/history", "").Body.Bytes(), &body)
	if len(body.Ticks) != 2 || len(body.Seasons) != 1 {
		t.Fatalf("history ticks = %d seasons = %d", len(body.Ticks), len(body.Seasons))
	}
}

func TestSpeedRequiresRunner(t *testing.T) {
	srv, h := newTestServer(t, nil)
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":2}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("speed without runner status = %d", rec.Code)
	}
	srv.Runner = engine.NewRunner(srv.Sim, srv.mu, time.Second)
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":500}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("out of range speed status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":2}`); rec.Code != http.StatusOK || srv.Runner.Speed() != 2 {
		t.Fatalf("speed status = %d speed = %v", rec.Code, srv.Runner.Speed())
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("limits are per client")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Fatalf("RetryAfter = %d, want 61", got)
	}
	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("window should reopen")
	}
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:4312"
	if got := clientAddr(r); got != "10.0.0.5" {
		t.Fatalf("clientAddr = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientAddr(r); got != "203.0.113.9" {
		t.Fatalf("forwarded clientAddr = %q", got)
	}
}

func TestStreamDeliversEvents(t *testing.T) {
	srv, h := newTestServer(t, nil)
	ts := httptest.NewServer(h)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Wait for the server to register the client before producing events.
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	srv.mu.Lock()
	_, err = srv.Sim.AdvanceWeek()
	srv.mu.Unlock()
	if err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("no week_advanced event: %v", err)
		}
		var e engine.Event
		if err := json.Unmarshal(msg, &e); err != nil {
			t.Fatal(err)
		}
		if e.Kind == engine.EventWeekAdvanced {
			if e.Summary == nil || e.Summary.Week != 0 {
				t.Fatalf("summary = %+v", e.Summary)
			}
			return
		}
	}
}

func TestHubReplaysRecent(t *testing.T) {
	hub := NewHub()
	for i := 0; i < streamCatchUp+10; i++ {
		hub.Publish(engine.Event{Kind: engine.EventWeekAdvanced, Week: i})
	}
	ch := hub.join()
	defer hub.leave(ch)
	if len(ch) != streamCatchUp {
		t.Fatalf("replayed %d events, want %d", len(ch), streamCatchUp)
	}
	var first engine.Event
	json.Unmarshal(<-ch, &first)
	if first.Week != 10 {
		t.Fatalf("oldest replayed week = %d, want 10", first.Week)
	}
}
