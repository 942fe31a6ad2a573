package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	observationTTL = 5 * time.Minute
	minBackoff     = time.Minute
	maxBackoff     = 10 * time.Minute
)

// Client reads current observations for one place from OpenWeatherMap.
// A fresh observation is reused; after a failure the client waits before
// asking again, doubling the wait up to ten minutes.
type Client struct {
	apiKey  string
	place   string
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	last    *Observation
	lastAt  time.Time
	backoff time.Duration
	retryAt time.Time
}

// NewClient creates a weather API client. Returns nil if apiKey is empty.
func NewClient(apiKey, place string) *Client {
	if apiKey == "" {
		return nil
	}
	if place == "" {
		place = "Fresno,US"
	}
	return &Client{
		apiKey:  apiKey,
		place:   place,
		baseURL: "https://api.openweathermap.org",
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Observation is the part of a current-weather report that calibration uses.
type Observation struct {
	TempC       float64 `json:"temp_c"`
	Humidity    float64 `json:"humidity"`
	WindKPH     float64 `json:"wind_kph"`
	RainMM      float64 `json:"rain_mm"` // Last hour
	Description string  `json:"description"`
}

// Fetch returns the current observation. While backing off it returns the
// last good observation if there is one.
func (c *Client) Fetch(ctx context.Context) (*Observation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.last != nil && now.Sub(c.lastAt) < observationTTL {
		return c.last, nil
	}
	if now.Before(c.retryAt) {
		if c.last != nil {
			return c.last, nil
		}
		return nil, fmt.Errorf("weather API backoff (%s remaining)", c.retryAt.Sub(now).Round(time.Second))
	}

	obs, err := c.observe(ctx)
	if err != nil {
		c.backoff = min(max(2*c.backoff, minBackoff), maxBackoff)
		c.retryAt = now.Add(c.backoff)
		if c.last != nil {
			return c.last, nil
		}
		return nil, err
	}
	c.last, c.lastAt = obs, now
	c.backoff, c.retryAt = 0, time.Time{}
	return obs, nil
}

type owmReport struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"` // m/s
	} `json:"wind"`
	Rain struct {
		LastHour float64 `json:"1h"`
	} `json:"rain"`
}

func (c *Client) observe(ctx context.Context) (*Observation, error) {
	q := url.Values{"q": {c.place}, "appid": {c.apiKey}, "units": {"metric"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather API call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("weather API error %d: %s", resp.StatusCode, msg)
	}
	var r owmReport
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&r); err != nil {
		return nil, fmt.Errorf("parse weather: %w", err)
	}

	obs := &Observation{
		TempC:    r.Main.Temp,
		Humidity: r.Main.Humidity,
		WindKPH:  r.Wind.Speed * 3.6,
		RainMM:   r.Rain.LastHour,
	}
	if len(r.Weather) > 0 {
		obs.Description = r.Weather[0].Description
	}
	slog.Debug("weather observed", "place", c.place, "temp_c", obs.TempC, "rain_mm", obs.RainMM)
	return obs, nil
}

// Calibrate blends an observation into a location profile before a season
// is generated. Observed values pull the baseline halfway toward them.
func Calibrate(loc Location, o *Observation) Location {
	if o == nil {
		return loc
	}
	loc.BaseTempC = (loc.BaseTempC + o.TempC) / 2
	if o.Humidity > 0 {
		loc.BaseHumidity = (loc.BaseHumidity + o.Humidity) / 2
	}
	loc.BaseWindKPH = (loc.BaseWindKPH + o.WindKPH) / 2
	if o.RainMM > 0 {
		loc.Dry.RainChance = clamp(loc.Dry.RainChance+0.1, 0, 1)
	}
	return loc
}
