// Package crop holds the static per-crop constants the growth model reads.
package crop

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Profile is the fixed set of constants for one crop.
type Profile struct {
	Name                string  `json:"name" yaml:"name"`
	WaterRequirement    float64 `json:"water_requirement" yaml:"water_requirement"`       // 0..1, scales canopy water use
	NitrogenRequirement float64 `json:"nitrogen_requirement" yaml:"nitrogen_requirement"` // 0..1, scales fertilizer response
	HeatToleranceC      float64 `json:"heat_tolerance_c" yaml:"heat_tolerance_c"`         // Upper edge of the comfort band
	GrowthRate          float64 `json:"growth_rate" yaml:"growth_rate"`                   // Fraction of the gap to optimal closed per week
	MaturityWeeks       int     `json:"maturity_weeks" yaml:"maturity_weeks"`
	OptimalVegetation   float64 `json:"optimal_vegetation_index" yaml:"optimal_vegetation_index"`
}

// Built-in crops.
var (
	Corn = Profile{
		Name:                "corn",
		WaterRequirement:    0.6,
		NitrogenRequirement: 0.7,
		HeatToleranceC:      35,
		GrowthRate:          0.06,
		MaturityWeeks:       16,
		OptimalVegetation:   0.85,
	}
	Wheat = Profile{
		Name:                "wheat",
		WaterRequirement:    0.45,
		NitrogenRequirement: 0.5,
		HeatToleranceC:      30,
		GrowthRate:          0.05,
		MaturityWeeks:       20,
		OptimalVegetation:   0.8,
	}
	Rice = Profile{
		Name:                "rice",
		WaterRequirement:    0.9,
		NitrogenRequirement: 0.6,
		HeatToleranceC:      36,
		GrowthRate:          0.055,
		MaturityWeeks:       18,
		OptimalVegetation:   0.82,
	}
	Soybean = Profile{
		Name:                "soybean",
		WaterRequirement:    0.5,
		NitrogenRequirement: 0.3,
		HeatToleranceC:      33,
		GrowthRate:          0.05,
		MaturityWeeks:       16,
		OptimalVegetation:   0.78,
	}
	Cotton = Profile{
		Name:                "cotton",
		WaterRequirement:    0.55,
		NitrogenRequirement: 0.55,
		HeatToleranceC:      38,
		GrowthRate:          0.045,
		MaturityWeeks:       22,
		OptimalVegetation:   0.75,
	}
)

var catalog = map[string]Profile{
	Corn.Name:    Corn,
	Wheat.Name:   Wheat,
	Rice.Name:    Rice,
	Soybean.Name: Soybean,
	Cotton.Name:  Cotton,
}

// Catalog is the built-in crops plus custom profiles. A custom profile
// shadows a built-in of the same name. A nil *Catalog holds only the
// built-ins.
type Catalog struct {
	custom map[string]Profile
}

// NewCatalog validates custom profiles and builds a catalog from them.
func NewCatalog(custom ...Profile) (*Catalog, error) {
	c := &Catalog{custom: make(map[string]Profile, len(custom))}
	var errs []error
	for _, p := range custom {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		key := normalize(p.Name)
		if _, dup := c.custom[key]; dup {
			errs = append(errs, fmt.Errorf("crop %s: defined twice", p.Name))
			continue
		}
		p.Name = key
		c.custom[key] = p
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) get(key string) (Profile, bool) {
	if c != nil {
		if p, ok := c.custom[key]; ok {
			return p, true
		}
	}
	p, ok := catalog[key]
	return p, ok
}

// Names lists every crop in the catalog alphabetically.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	if c != nil {
		for name := range c.custom {
			if _, builtin := catalog[name]; !builtin {
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Profiles lists every crop in name order.
func (c *Catalog) Profiles() []Profile {
	names := c.Names()
	out := make([]Profile, 0, len(names))
	for _, n := range names {
		p, _ := c.get(n)
		out = append(out, p)
	}
	return out
}

// Lookup resolves a crop by name, tolerating small typos ("whaet").
func (c *Catalog) Lookup(name string) (Profile, error) {
	key := normalize(name)
	if p, ok := c.get(key); ok {
		return p, nil
	}

	names := c.Names()
	best, bestDist := "", -1
	for _, cand := range names {
		d := levenshtein.ComputeDistance(key, cand)
		if d > typoLimit(len(cand)) {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = cand, d
		}
	}
	if best == "" {
		return Profile{}, fmt.Errorf("unknown crop %q (known: %s)", name, strings.Join(names, ", "))
	}
	p, _ := c.get(best)
	return p, nil
}

// Names lists the built-in crops alphabetically.
func Names() []string { return (*Catalog)(nil).Names() }

// Lookup resolves a built-in crop by name.
func Lookup(name string) (Profile, error) { return (*Catalog)(nil).Lookup(name) }

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Validate checks that a custom profile is usable by the growth model.
func (p Profile) Validate() error {
	switch {
	case normalize(p.Name) == "":
		return fmt.Errorf("crop profile: name required")
	case p.GrowthRate <= 0 || p.GrowthRate > 1:
		return fmt.Errorf("crop %s: growth_rate %v outside (0,1]", p.Name, p.GrowthRate)
	case p.OptimalVegetation <= 0.1 || p.OptimalVegetation > 1:
		return fmt.Errorf("crop %s: optimal_vegetation_index %v outside (0.1,1]", p.Name, p.OptimalVegetation)
	case p.WaterRequirement < 0 || p.WaterRequirement > 1 || p.NitrogenRequirement < 0 || p.NitrogenRequirement > 1:
		return fmt.Errorf("crop %s: requirements must be within [0,1]", p.Name)
	case p.MaturityWeeks <= 0:
		return fmt.Errorf("crop %s: maturity_weeks must be positive", p.Name)
	}
	return nil
}

func typoLimit(n int) int {
	switch {
	case n <= 4:
		return 1
	case n <= 7:
		return 2
	default:
		return 3
	}
}
