package field

import (
	"fmt"
	"iter"
)

// Grid owns a fixed set of zones in row-major order.
// Iteration order is stable so every tick visits zones identically.
type Grid struct {
	Rows int
	Cols int

	zones []*Zone
	index map[ZoneID]*Zone
}

// NewGrid creates a rows×cols grid seeded from a reading provider.
// Zones the provider has no reading for start from the fallback reading.
func NewGrid(rows, cols int, p Provider) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("grid %dx%d: dimensions must be positive", rows, cols)
	}
	g := &Grid{
		Rows:  rows,
		Cols:  cols,
		zones: make([]*Zone, 0, rows*cols),
		index: make(map[ZoneID]*Zone, rows*cols),
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			id := ZoneID{Row: r, Col: c}
			reading, ok := p.Reading(id)
			if !ok {
				reading = FallbackReading
			}
			extent := Extent{X: float64(c), Y: float64(r), Width: 1, Height: 1}
			z := NewZone(id, extent, reading.Vegetation, reading.Moisture)
			g.zones = append(g.zones, z)
			g.index[id] = z
		}
	}
	return g, nil
}

// Len returns the number of zones.
func (g *Grid) Len() int {
	return len(g.zones)
}

// Lookup returns the zone for id or ErrUnknownZone.
func (g *Grid) Lookup(id ZoneID) (*Zone, error) {
	z, ok := g.index[id]
	if !ok {
		return nil, fmt.Errorf("zone %s: %w", id, ErrUnknownZone)
	}
	return z, nil
}

// Contains reports whether id is on the grid.
func (g *Grid) Contains(id ZoneID) bool {
	_, ok := g.index[id]
	return ok
}

// Resolve returns the distinct known zones among ids, in input order.
// Unknown ids are dropped.
func (g *Grid) Resolve(ids []ZoneID) []*Zone {
	seen := make(map[ZoneID]bool, len(ids))
	out := make([]*Zone, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if z, ok := g.index[id]; ok {
			out = append(out, z)
		}
	}
	return out
}

// ApplyTo runs fn on each distinct known zone in ids and returns how many
// zones it touched. Unknown ids are a silent no-op.
func (g *Grid) ApplyTo(ids []ZoneID, fn func(*Zone)) int {
	zones := g.Resolve(ids)
	for _, z := range zones {
		fn(z)
	}
	return len(zones)
}

// Each runs fn on every zone in grid order.
func (g *Grid) Each(fn func(*Zone)) {
	for _, z := range g.zones {
		fn(z)
	}
}

// Matching lazily yields copies of the zones satisfying pred.
func (g *Grid) Matching(pred func(*Zone) bool) iter.Seq[Zone] {
	return func(yield func(Zone) bool) {
		for _, z := range g.zones {
			if pred != nil && !pred(z) {
				continue
			}
			if !yield(z.Clone()) {
				return
			}
		}
	}
}

// Count returns how many zones satisfy pred.
func (g *Grid) Count(pred func(*Zone) bool) int {
	n := 0
	for _, z := range g.zones {
		if pred(z) {
			n++
		}
	}
	return n
}

// RecomputeAll re-derives stress and productivity for every zone.
func (g *Grid) RecomputeAll(soilHealth float64) {
	for _, z := range g.zones {
		z.Recompute(soilHealth)
	}
}

// Snapshot returns independent copies of all zones in grid order.
func (g *Grid) Snapshot() []Zone {
	out := make([]Zone, 0, len(g.zones))
	for _, z := range g.zones {
		out = append(out, z.Clone())
	}
	return out
}

// IDs returns every zone id in grid order.
func (g *Grid) IDs() []ZoneID {
	out := make([]ZoneID, 0, len(g.zones))
	for _, z := range g.zones {
		out = append(out, z.ID)
	}
	return out
}

// Healthy reports vegetation above the 0.6 health line.
func Healthy(z *Zone) bool {
	return z.vegetation > 0.6
}

// Stressed reports any stress above none.
func Stressed(z *Zone) bool {
	return z.stress != StressNone
}
