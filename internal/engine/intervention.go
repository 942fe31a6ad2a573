package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/talgya/farm-season/internal/field"
	"github.com/talgya/farm-season/internal/ledger"
)

// ErrUnknownTool is returned for tool names that resolve to nothing.
var ErrUnknownTool = errors.New("unknown tool")

// ToolKind is a player action.
type ToolKind uint8

const (
	ToolIrrigation ToolKind = iota
	ToolFertilizer
)

func (t ToolKind) String() string {
	switch t {
	case ToolIrrigation:
		return "irrigation"
	case ToolFertilizer:
		return "fertilizer"
	default:
		return "unknown"
	}
}

// MarshalText renders the tool by name.
func (t ToolKind) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts anything ParseToolKind does.
func (t *ToolKind) UnmarshalText(b []byte) error {
	parsed, err := ParseToolKind(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

var toolAliases = map[string]ToolKind{
	"irrigation": ToolIrrigation,
	"irrigate":   ToolIrrigation,
	"water":      ToolIrrigation,
	"fertilizer": ToolFertilizer,
	"fertiliser": ToolFertilizer,
	"fertilize":  ToolFertilizer,
	"fertilise":  ToolFertilizer,
}

// ParseToolKind resolves a tool name, tolerating small typos.
func ParseToolKind(name string) (ToolKind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if t, ok := toolAliases[key]; ok {
		return t, nil
	}
	best, bestDist := ToolKind(0), -1
	for alias, t := range toolAliases {
		d := levenshtein.ComputeDistance(key, alias)
		if bestDist < 0 || d < bestDist {
			best, bestDist = t, d
		}
	}
	if bestDist >= 0 && bestDist <= 2 && len(key) >= 4 {
		return best, nil
	}
	return 0, fmt.Errorf("tool %q: %w", name, ErrUnknownTool)
}

// InterventionResult reports what a successful batch did.
type InterventionResult struct {
	Tool          ToolKind        `json:"tool"`
	Week          int             `json:"week"`
	Zones         []field.ZoneID  `json:"zones"`
	Ignored       []field.ZoneID  `json:"ignored,omitempty"` // Unknown or repeated ids
	Resource      ledger.Resource `json:"resource"`
	Cost          float64         `json:"cost"`
	Remaining     float64         `json:"remaining"`
	PracticeDelta float64         `json:"practice_delta,omitempty"`
	Notifications []Notification  `json:"notifications,omitempty"`
}

// Apply runs a tool on a batch of zones. The batch is atomic: on error
// neither the ledger nor any zone has changed. A batch naming no known
// zone costs nothing and is not announced.
func (s *Simulation) Apply(tool ToolKind, ids []field.ZoneID) (InterventionResult, error) {
	switch tool {
	case ToolIrrigation:
		return s.ApplyIrrigation(ids)
	case ToolFertilizer:
		return s.ApplyFertilizer(ids)
	default:
		return InterventionResult{}, fmt.Errorf("tool %d: %w", tool, ErrUnknownTool)
	}
}

// ApplyIrrigation waters each zone now and queues a vegetation response
// for the next tick.
func (s *Simulation) ApplyIrrigation(ids []field.ZoneID) (InterventionResult, error) {
	p := s.opts.Policy
	zones, res, err := s.prepare(ToolIrrigation, ledger.Water, p.IrrigationCost, ids)
	if err != nil {
		return res, err
	}
	if len(zones) == 0 {
		return res, nil
	}

	for _, z := range zones {
		z.HasIrrigation = true
		z.AddMoisture(p.IrrigationMoisture)
		z.Recompute(s.Conditions.SoilHealth)
		s.pending = append(s.pending, deferredEffect{
			zone:    z.ID,
			bonus:   p.IrrigationBonus,
			ceiling: s.Crop.OptimalVegetation,
		})
	}
	s.irrigated = true
	return s.commit(res), nil
}

// ApplyFertilizer boosts vegetation now and records the application week.
// Zones that needed it earn practice credit; zones that didn't lose some.
func (s *Simulation) ApplyFertilizer(ids []field.ZoneID) (InterventionResult, error) {
	p := s.opts.Policy
	zones, res, err := s.prepare(ToolFertilizer, ledger.Fertilizer, p.FertilizerCost, ids)
	if err != nil {
		return res, err
	}
	if len(zones) == 0 {
		return res, nil
	}

	for _, z := range zones {
		delta := p.WastefulDelta
		if z.Vegetation() < p.NeedyVegetation {
			delta = p.NeedyDelta
		}
		res.PracticeDelta += delta

		week := s.Clock.CurrentWeek
		z.HasFertilizer = true
		z.FertilizerAppliedWeek = &week
		z.RaiseVegetationTo(p.FertilizerBoost, s.Crop.OptimalVegetation)
		z.Recompute(s.Conditions.SoilHealth)
	}
	s.Ledger.Credit(res.PracticeDelta)
	return s.commit(res), nil
}

// prepare validates the batch and spends its cost. Nothing is mutated
// unless the whole batch is affordable.
func (s *Simulation) prepare(tool ToolKind, r ledger.Resource, unit float64, ids []field.ZoneID) ([]*field.Zone, InterventionResult, error) {
	res := InterventionResult{Tool: tool, Week: s.Clock.CurrentWeek, Resource: r}
	if s.Clock.Ended {
		return nil, res, ErrAlreadyEnded
	}

	zones := s.Grid.Resolve(ids)
	res.Zones = make([]field.ZoneID, 0, len(zones))
	known := make(map[field.ZoneID]bool, len(zones))
	for _, z := range zones {
		res.Zones = append(res.Zones, z.ID)
		known[z.ID] = true
	}
	res.Ignored = ignoredIDs(ids, known)
	res.Cost = unit * float64(len(zones))

	if err := s.Ledger.Spend(r, res.Cost); err != nil {
		slog.Warn("intervention rejected", "tool", tool, "zones", len(zones), "cost", res.Cost, "error", err)
		res.Remaining = s.Ledger.Balance(r)
		return nil, res, fmt.Errorf("%s on %d zone(s): %w", tool, len(zones), err)
	}
	res.Remaining = s.Ledger.Balance(r)
	return zones, res, nil
}

// commit recomputes the score, evaluates objectives and announces the batch.
func (s *Simulation) commit(res InterventionResult) InterventionResult {
	s.Score = scoreState(s.Grid, s.Ledger, s.Clock.CurrentWeek)
	res.Notifications = s.evaluateObjectives()

	slog.Info("intervention applied",
		"tool", res.Tool,
		"week", res.Week,
		"zones", len(res.Zones),
		"ignored", len(res.Ignored),
		"cost", res.Cost,
		"remaining", res.Remaining,
		"practice_delta", res.PracticeDelta,
	)
	payload := res
	s.EmitEvent(Event{
		Kind:         EventIntervention,
		Week:         res.Week,
		Description:  fmt.Sprintf("%s applied to %d zone(s)", res.Tool, len(res.Zones)),
		Intervention: &payload,
		Zones:        res.Zones,
	})
	return res
}

// ignoredIDs lists the ids Resolve dropped: unknown ones and repeats.
func ignoredIDs(ids []field.ZoneID, known map[field.ZoneID]bool) []field.ZoneID {
	var out []field.ZoneID
	seen := make(map[field.ZoneID]bool, len(ids))
	for _, id := range ids {
		if known[id] && !seen[id] {
			seen[id] = true
			continue
		}
		out = append(out, id)
	}
	return out
}
