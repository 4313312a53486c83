package econ

import (
	"math"
	"testing"

	"civicgrid/internal/sim/catalog"
)

func TestMultiplierBounds(t *testing.T) {
	cases := []struct {
		supply, demand, want float64
	}{
		{0, 0, 1.0},    // no demand is neutral
		{10, 0, 1.0},   // oversupply of nothing demanded
		{1, 1, 1.0},    // balanced
		{0, 10, 0.4},   // starved, floor
		{100, 1, 1.6},  // glut, ceiling
		{2, 1, 1.6},    // 0.4 + 1.2
		{0.5, 1, 0.7},  // midpoint
	}
	for _, c := range cases {
		got := Totals{Supply: c.supply, Demand: c.demand}.Multiplier()
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("Multiplier(%v/%v) = %v, want %v", c.supply, c.demand, got, c.want)
		}
	}
}

func TestGlobalMultiplier_WorstResourceWins(t *testing.T) {
	var totals [NumResources]Totals
	for i := range totals {
		totals[i] = Totals{Supply: 5, Demand: 1} // all at ceiling
	}
	totals[Energy] = Totals{Supply: 0, Demand: 10}
	if got := GlobalMultiplier(totals); got != 0.4 {
		t.Fatalf("GlobalMultiplier = %v, want 0.4", got)
	}
}

func TestNeedsSatisfaction_AveragesOverRequiredOnly(t *testing.T) {
	var required, supplied [NumResources]float64
	required[Jobs] = 2
	required[Energy] = 4
	supplied[Jobs] = 2  // fully met
	supplied[Energy] = 1 // one quarter
	supplied[Food] = 100 // irrelevant, nothing required

	if got, want := NeedsSatisfaction(required, supplied), (1.0+0.25)/2; math.Abs(got-want) > 1e-9 {
		t.Fatalf("NeedsSatisfaction = %v, want %v", got, want)
	}

	var none [NumResources]float64
	if got := NeedsSatisfaction(none, supplied); got != 1.0 {
		t.Fatalf("no requirements should be fully satisfied, got %v", got)
	}
}

func TestPerformanceFloorAndCap(t *testing.T) {
	if got := Performance(0, 1.0); got != MinOperation {
		t.Fatalf("floor: %v", got)
	}
	if got := Performance(1.2, 1.4); got != LivabilityMax {
		t.Fatalf("cap: %v", got)
	}
	if got := Performance(0.5, 1.2); math.Abs(got-0.6) > 1e-9 {
		t.Fatalf("mid: %v", got)
	}
}

func TestConditionFloor(t *testing.T) {
	if got := Condition(0.2); math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("Condition(0.2) = %v", got)
	}
	if got := Condition(1.5); got != ConditionFloor {
		t.Fatalf("Condition(1.5) = %v, want floor", got)
	}
}

func TestLivabilityContribution_LinearFalloff(t *testing.T) {
	if got := LivabilityContribution(10, 0, 4); got != 10 {
		t.Fatalf("at source: %v", got)
	}
	if got := LivabilityContribution(10, 2, 4); math.Abs(got-5) > 1e-9 {
		t.Fatalf("half radius: %v", got)
	}
	if got := LivabilityContribution(10, 5, 4); got != 0 {
		t.Fatalf("beyond radius: %v", got)
	}
	if got := LivabilityContribution(-8, 2, 4); math.Abs(got+4) > 1e-9 {
		t.Fatalf("negative impact: %v", got)
	}
	if got := LivabilityContribution(10, 0, 0); got != 0 {
		t.Fatalf("zero radius: %v", got)
	}
}

func TestLivabilityMultiplier_PopulationGate(t *testing.T) {
	if got := LivabilityMultiplier(-500, 50, 100); got != 1.0 {
		t.Fatalf("below gate must be neutral, got %v", got)
	}
	if got := LivabilityMultiplier(50, 100, 100); math.Abs(got-1.2) > 1e-9 {
		t.Fatalf("50 points: %v", got)
	}
	if got := LivabilityMultiplier(500, 100, 100); got != LivabilityMax {
		t.Fatalf("ceiling: %v", got)
	}
	if got := LivabilityMultiplier(-500, 100, 100); got != LivabilityMin {
		t.Fatalf("floor: %v", got)
	}
}

func TestRevenueAndMaintenance(t *testing.T) {
	def := catalog.BuildingDef{
		Economics: &catalog.Economics{
			BuildCost: 100, MaxRevenue: 8, MaintenanceCost: 1, DecayRate: 0.001,
		},
	}
	if got, want := Revenue(def, 0.5, 0.8, 1.2), 8*0.5*0.8*1.2; math.Abs(got-want) > 1e-9 {
		t.Fatalf("Revenue = %v, want %v", got, want)
	}
	if got := Maintenance(def, 0); got != 1 {
		t.Fatalf("new building upkeep: %v", got)
	}
	if got, want := Maintenance(def, 100), math.Pow(1.001, 100); math.Abs(got-want) > 1e-9 {
		t.Fatalf("aged upkeep = %v, want %v", got, want)
	}

	bare := catalog.BuildingDef{}
	if Revenue(bare, 1, 1, 1) != 0 || Maintenance(bare, 10) != 0 {
		t.Fatalf("missing economics must yield zero")
	}
}

func TestAttractiveness_BlendsMultipliersAndLivability(t *testing.T) {
	var totals [NumResources]Totals // all neutral
	if got := Attractiveness(totals, 1.0); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("neutral city: %v", got)
	}
	totals[Jobs] = Totals{Supply: 0, Demand: 10} // one starved resource
	avg := (0.4 + 5*1.0) / 6
	if got, want := Attractiveness(totals, 1.4), (avg+1.4)/2; math.Abs(got-want) > 1e-9 {
		t.Fatalf("Attractiveness = %v, want %v", got, want)
	}
}
