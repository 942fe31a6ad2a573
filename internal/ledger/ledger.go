// Package ledger tracks the season's consumable budgets and the
// sustainability practice credit earned by interventions.
package ledger

import (
	"errors"
	"fmt"
)

// ErrInsufficientResource is returned when a batch costs more than the
// remaining budget. The ledger is unchanged.
var ErrInsufficientResource = errors.New("insufficient resource")

// Resource names a budget.
type Resource string

const (
	Water      Resource = "water"
	Fertilizer Resource = "fertilizer"
)

// Ledger holds remaining and initial budgets. Only Spend and Credit mutate it.
type Ledger struct {
	Water             float64 `json:"water"`
	Fertilizer        float64 `json:"fertilizer"`
	InitialWater      float64 `json:"initial_water"`
	InitialFertilizer float64 `json:"initial_fertilizer"`

	// Practice is the running sum of sustainability deltas from interventions.
	Practice float64 `json:"practice"`
}

// New creates a ledger with full budgets. Negative budgets are treated as zero.
func New(water, fertilizer float64) *Ledger {
	water = max(0, water)
	fertilizer = max(0, fertilizer)
	return &Ledger{
		Water:             water,
		Fertilizer:        fertilizer,
		InitialWater:      water,
		InitialFertilizer: fertilizer,
	}
}

// Balance returns the remaining amount of r.
func (l *Ledger) Balance(r Resource) float64 {
	switch r {
	case Water:
		return l.Water
	case Fertilizer:
		return l.Fertilizer
	default:
		return 0
	}
}

// CanSpend checks affordability without mutating.
func (l *Ledger) CanSpend(r Resource, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("spend %s: negative amount %.2f", r, amount)
	}
	if have := l.Balance(r); have < amount {
		return fmt.Errorf("%s: need %.2f, have %.2f: %w", r, amount, have, ErrInsufficientResource)
	}
	return nil
}

// Spend deducts amount of r, all or nothing.
func (l *Ledger) Spend(r Resource, amount float64) error {
	if err := l.CanSpend(r, amount); err != nil {
		return err
	}
	switch r {
	case Water:
		l.Water -= amount
	case Fertilizer:
		l.Fertilizer -= amount
	}
	return nil
}

// Credit records a sustainability practice delta.
func (l *Ledger) Credit(delta float64) {
	l.Practice += delta
}

// WaterUsed is the cumulative water spent this season.
func (l *Ledger) WaterUsed() float64 {
	return l.InitialWater - l.Water
}

// WaterUsedFraction is WaterUsed over the initial budget, 0 when the
// budget was zero.
func (l *Ledger) WaterUsedFraction() float64 {
	if l.InitialWater <= 0 {
		return 0
	}
	return l.WaterUsed() / l.InitialWater
}

// Clone returns an independent copy.
func (l *Ledger) Clone() Ledger {
	return *l
}
