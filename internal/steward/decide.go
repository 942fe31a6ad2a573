package steward

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/talgya/farm-season/internal/engine"
	"github.com/talgya/farm-season/internal/field"
)

// Config tunes planning.
type Config struct {
	Policy engine.Policy

	// DryMoisture marks a zone as needing water.
	DryMoisture float64
	// MaxZonesPerAction caps a single batch. Zero means no cap.
	MaxZonesPerAction int
}

// DefaultConfig plans against the default rules.
func DefaultConfig() Config {
	return Config{
		Policy:            engine.DefaultPolicy(),
		DryMoisture:       0.35,
		MaxZonesPerAction: 12,
	}
}

// Action is one intervention batch, shaped as the POST /intervention body.
type Action struct {
	Tool  engine.ToolKind `json:"tool"`
	Zones []field.ZoneID  `json:"zones"`
}

// Plan is the outcome of one decision.
type Plan struct {
	Actions   []Action
	Rationale string
}

// Decide plans zero, one or two actions. The plan never commits more than
// the remaining balance, and spends at most the crisis-scaled weekly share
// of each budget.
func Decide(snap *FieldSnapshot, h *FieldHealth, cfg Config) *Plan {
	st := snap.Status
	if st.Phase == engine.PhaseEnded || h.WeeksLeft == 0 {
		return &Plan{Rationale: "season over"}
	}

	var (
		plan    = &Plan{}
		reasons []string
		urgency = h.CrisisLevel.Urgency()
	)

	if n := affordable(st.Ledger.Water, h.WeeksLeft, urgency, cfg.Policy.IrrigationCost, cfg.MaxZonesPerAction); n > 0 {
		dry := candidates(snap.Zones, func(z ZoneView) bool {
			return !z.HasIrrigation && (z.Moisture < cfg.DryMoisture || z.Stress == field.StressHigh)
		}, func(z ZoneView) float64 { return z.Moisture })
		if len(dry) > n {
			dry = dry[:n]
		}
		if len(dry) > 0 {
			plan.Actions = append(plan.Actions, Action{Tool: engine.ToolIrrigation, Zones: dry})
			reasons = append(reasons, fmt.Sprintf("irrigate %d dry zones", len(dry)))
		}
	}

	if n := affordable(st.Ledger.Fertilizer, h.WeeksLeft, urgency, cfg.Policy.FertilizerCost, cfg.MaxZonesPerAction); n > 0 {
		// Only sparse zones: fertilizing healthy ground costs practice points.
		sparse := candidates(snap.Zones, func(z ZoneView) bool {
			return !z.HasFertilizer && z.Vegetation < cfg.Policy.NeedyVegetation
		}, func(z ZoneView) float64 { return z.Vegetation })
		if len(sparse) > n {
			sparse = sparse[:n]
		}
		if len(sparse) > 0 {
			plan.Actions = append(plan.Actions, Action{Tool: engine.ToolFertilizer, Zones: sparse})
			reasons = append(reasons, fmt.Sprintf("fertilize %d sparse zones", len(sparse)))
		}
	}

	if len(reasons) == 0 {
		plan.Rationale = fmt.Sprintf("%s: no action needed", h.CrisisLevel)
	} else {
		plan.Rationale = fmt.Sprintf("%s: %s", h.CrisisLevel, strings.Join(reasons, ", "))
	}
	slog.Debug("steward plan", "crisis", h.CrisisLevel, "actions", len(plan.Actions), "rationale", plan.Rationale)
	return plan
}

// affordable returns how many zones the weekly share of balance covers,
// never more than the balance itself.
func affordable(balance float64, weeksLeft int, urgency, unitCost float64, limit int) int {
	if unitCost <= 0 || balance < unitCost {
		return 0
	}
	share := min(balance, balance/float64(max(1, weeksLeft))*urgency)
	n := int(math.Floor(share / unitCost))
	if n == 0 && urgency > 1 {
		n = 1 // a crisis may always spend one unit
	}
	if limit > 0 {
		n = min(n, limit)
	}
	return n
}

// candidates returns matching zone IDs ordered by key ascending, ties by ID.
func candidates(zones []ZoneView, match func(ZoneView) bool, key func(ZoneView) float64) []field.ZoneID {
	var picked []ZoneView
	for _, z := range zones {
		if match(z) {
			picked = append(picked, z)
		}
	}
	slices.SortFunc(picked, func(a, b ZoneView) int {
		if c := cmp.Compare(key(a), key(b)); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ID.Row, b.ID.Row); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.Col, b.ID.Col)
	})
	ids := make([]field.ZoneID, len(picked))
	for i, z := range picked {
		ids[i] = z.ID
	}
	return ids
}
