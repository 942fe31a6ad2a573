package steward

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	maxRecords     = 20
	summaryRecords = 5 // how many recent records Summary reports
)

// CycleRecord captures what happened in a single steward cycle.
type CycleRecord struct {
	SeasonID   string  `json:"season_id"`
	Week       int     `json:"week"`
	Crisis     Crisis  `json:"crisis"`
	Stressed   int     `json:"stressed"`
	Irrigated  int     `json:"irrigated"`
	Fertilized int     `json:"fertilized"`
	WaterLeft  float64 `json:"water_left"`
	Rationale  string  `json:"rationale,omitempty"`
}

// CycleMemory keeps a ring of recent cycle records.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`
}

// LoadMemory reads the memory file. A missing or corrupt file yields
// empty memory.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("steward memory corrupted, starting fresh", "path", path, "error", err)
		return &CycleMemory{}
	}
	return &mem
}

// Save writes the memory to path.
func (m *CycleMemory) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal steward memory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write steward memory: %w", err)
	}
	return nil
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Summary describes the last few cycles, one line each.
func (m *CycleMemory) Summary() string {
	if len(m.Records) == 0 {
		return ""
	}
	var b strings.Builder
	start := max(0, len(m.Records)-summaryRecords)
	for _, r := range m.Records[start:] {
		fmt.Fprintf(&b, "week %d: crisis=%s stressed=%d irrigated=%d fertilized=%d water=%.0f%%\n",
			r.Week, r.Crisis, r.Stressed, r.Irrigated, r.Fertilized, r.WaterLeft*100)
	}
	return b.String()
}
