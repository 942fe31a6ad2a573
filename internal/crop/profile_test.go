package crop

import "testing"

func TestLookupExactAndTypo(t *testing.T) {
	cases := map[string]string{
		"corn":    "corn",
		" Wheat ": "wheat",
		"whaet":   "wheat",
		"soyben":  "soybean",
		"COTTON":  "cotton",
		"ryce":    "rice",
	}
	for in, want := range cases {
		p, err := Lookup(in)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", in, err)
		}
		if p.Name != want {
			t.Errorf("Lookup(%q) = %s, want %s", in, p.Name, want)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("dragonfruit"); err == nil {
		t.Fatal("expected error for unknown crop")
	}
}

func TestBuiltinsValidate(t *testing.T) {
	for _, name := range Names() {
		p, _ := Lookup(name)
		if err := p.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	bad := Corn
	bad.GrowthRate = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected zero growth rate to fail validation")
	}
}

func TestCatalogCustomProfiles(t *testing.T) {
	sorghum := Profile{Name: " Sorghum", WaterRequirement: 0.35, NitrogenRequirement: 0.4,
		HeatToleranceC: 40, GrowthRate: 0.05, MaturityWeeks: 15, OptimalVegetation: 0.7}
	hardyCorn := Corn
	hardyCorn.HeatToleranceC = 40

	c, err := NewCatalog(sorghum, hardyCorn)
	if err != nil {
		t.Fatal(err)
	}
	if names := c.Names(); len(names) != 6 || names[3] != "sorghum" {
		t.Fatalf("names = %v", names)
	}
	for _, in := range []string{"sorghum", "SORGHUM", "sorghm"} {
		if p, err := c.Lookup(in); err != nil || p.Name != "sorghum" {
			t.Errorf("Lookup(%q) = %v, %v", in, p.Name, err)
		}
	}
	if p, _ := c.Lookup("corn"); p.HeatToleranceC != 40 {
		t.Fatalf("custom corn should shadow the built-in, got %+v", p)
	}
	if p, _ := Lookup("corn"); p.HeatToleranceC != Corn.HeatToleranceC {
		t.Fatal("built-in corn changed")
	}
	if _, err := Lookup("sorghum"); err == nil {
		t.Fatal("custom crop leaked into the built-ins")
	}

	var none *Catalog
	if p, err := none.Lookup("rice"); err != nil || p.Name != "rice" {
		t.Fatalf("nil catalog Lookup(rice) = %v, %v", p.Name, err)
	}
}

func TestNewCatalogRejectsBadProfiles(t *testing.T) {
	bad := Corn
	bad.Name = "mush"
	bad.OptimalVegetation = 0
	if _, err := NewCatalog(bad); err == nil {
		t.Fatal("expected invalid profile to fail")
	}
	if _, err := NewCatalog(Corn, Corn); err == nil {
		t.Fatal("expected duplicate profile to fail")
	}
}
