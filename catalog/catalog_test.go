package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lumeiq/core/types"
)

func TestTierDefinitionsContiguous(t *testing.T) {
	if TierDefinitions[0].Min != 0 {
		t.Fatalf("first bracket starts at %v, want 0", TierDefinitions[0].Min)
	}
	if TierDefinitions[len(TierDefinitions)-1].Max != 100 {
		t.Fatalf("last bracket ends at %v, want 100", TierDefinitions[len(TierDefinitions)-1].Max)
	}
	for i := 1; i < len(TierDefinitions); i++ {
		prev, cur := TierDefinitions[i-1], TierDefinitions[i]
		if cur.Min != prev.Max+1 {
			t.Errorf("bracket %s starts at %v, want %v", cur.Tier, cur.Min, prev.Max+1)
		}
	}
}

func TestTierGrowthRatesCoverAllTiers(t *testing.T) {
	for _, def := range TierDefinitions {
		if _, ok := TierGrowthRates[def.Tier]; !ok {
			t.Errorf("no growth rate for tier %s", def.Tier)
		}
	}
}

func TestRingWeightsSumToOne(t *testing.T) {
	total := 0.0
	for _, ring := range types.Rings {
		w, ok := RingWeights[ring]
		if !ok {
			t.Fatalf("no weight for ring %s", ring)
		}
		total += w
	}
	if total < 0.999 || total > 1.001 {
		t.Errorf("ring weights sum to %v, want 1.0", total)
	}
}

func TestImpactOf(t *testing.T) {
	tests := []struct {
		name  string
		table []BaselineImpact
		value string
		want  float64
	}{
		{"walk commute", CommuteTypes, "walk", 30},
		{"vegan diet", DietTypes, "vegan", 25},
		{"fast fashion", ClothingFrequencies, "fast-fashion", -15},
		{"unknown answer", DietTypes, "carnivore", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImpactOf(tt.table, tt.value); got != tt.want {
				t.Errorf("ImpactOf(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestImpactModeByID(t *testing.T) {
	mode := ImpactModeByID("plant-based")
	if mode == nil {
		t.Fatal("plant-based mode not found")
	}
	if mode.Ring != types.RingConsumption || mode.BasePoints != 25 || mode.Multiplier != 1.2 {
		t.Errorf("plant-based mode = %+v", mode)
	}

	if ImpactModeByID("teleport") != nil {
		t.Error("unknown mode should return nil")
	}
}

func TestIsPractical(t *testing.T) {
	tests := []struct {
		mode TransportMode
		km   float64
		want bool
	}{
		{ModeWalk, 5, true},
		{ModeWalk, 5.1, false},
		{ModeCycle, 15, true},
		{ModeCycle, 16, false},
		{ModeCar, 500, true},
		{ModeMetro, 80, true},
	}

	for _, tt := range tests {
		if got := IsPractical(tt.mode, tt.km); got != tt.want {
			t.Errorf("IsPractical(%s, %v) = %v, want %v", tt.mode, tt.km, got, tt.want)
		}
	}
}

func TestMatchCompanyByBarcode(t *testing.T) {
	c := MatchCompanyByBarcode(DefaultCompanies, "3015550001")
	if c == nil || c.ID != "terra-foods" {
		t.Fatalf("barcode 301... matched %+v, want terra-foods", c)
	}
	if MatchCompanyByBarcode(DefaultCompanies, "9990001") != nil {
		t.Error("unclaimed prefix should not match")
	}
}

func TestCouponsFromPromotions(t *testing.T) {
	cat := Default()
	coupons := cat.Coupons()
	if len(coupons) != len(DefaultPromotions) {
		t.Fatalf("derived %d coupons, want %d", len(coupons), len(DefaultPromotions))
	}
	for i, coupon := range coupons {
		promo := DefaultPromotions[i]
		if coupon.PromotionID != promo.ID {
			t.Errorf("coupon %d references %q, want %q", i, coupon.PromotionID, promo.ID)
		}
		if coupon.MinIQRequired != promo.MinIQRequired {
			t.Errorf("coupon %d threshold %v, want %v", i, coupon.MinIQRequired, promo.MinIQRequired)
		}
		if coupon.Code == "" {
			t.Errorf("coupon %d has empty code", i)
		}
	}
}

func TestSearch(t *testing.T) {
	cat := Default()

	results := cat.Search("terra organics", 5)
	if len(results) == 0 || results[0].ID != "terra-foods" {
		t.Fatalf("Search(terra organics) = %+v", results)
	}
	if results[0].Confidence != 1.0 {
		t.Errorf("exact match confidence = %v, want 1.0", results[0].Confidence)
	}

	results = cat.Search("volride", 5) // typo
	found := false
	for _, r := range results {
		if r.ID == "voltride" {
			found = true
		}
	}
	if !found {
		t.Errorf("typo query did not surface voltride: %+v", results)
	}

	if got := cat.Search("", 5); got != nil {
		t.Errorf("empty query returned %+v", got)
	}
}

func TestLoadFile(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		cat, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		if len(cat.Companies) != len(DefaultCompanies) {
			t.Errorf("companies = %d, want defaults", len(cat.Companies))
		}
	})

	t.Run("override file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		content := `companies:
  - id: loop-goods
    name: Loop Goods
    category: lifestyle
    sustainability_weight: 1.2
    barcode_prefix: "415"
promotions:
  - id: promo-loop-1
    company_id: loop-goods
    title: Loop Starter Pack
    type: freebie
    value: 1
    min_iq_required: 55
    max_redemptions: 4
    active: true
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cat, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		if len(cat.Companies) != 1 || cat.Companies[0].ID != "loop-goods" {
			t.Errorf("companies = %+v", cat.Companies)
		}
		if len(cat.Coupons()) != 1 || cat.Coupons()[0].MinIQRequired != 55 {
			t.Errorf("coupons = %+v", cat.Coupons())
		}
	})

	t.Run("promotion referencing unknown company fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		content := `promotions:
  - id: promo-ghost
    company_id: ghost-co
    title: Ghost Promo
    type: flat
    value: 10
    min_iq_required: 40
    max_redemptions: 1
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFile(path); err == nil {
			t.Error("expected validation error")
		}
	})
}
