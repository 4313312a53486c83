package room

import (
	"math"
	"testing"

	"civicgrid/internal/protocol"
)

func TestParcelPurchase_BumpsNeighborPrices(t *testing.T) {
	r := newTestRoom(t)
	base := r.cfg.ParcelBasePrice

	buyParcel(t, r, "P1", 5, 5)

	if r.grid[5][5].Owner != "P1" {
		t.Fatalf("parcel not transferred")
	}
	if r.grid[5][5].LastPaid != base {
		t.Fatalf("lastPaid=%v want %v", r.grid[5][5].LastPaid, base)
	}
	if r.treasury != base {
		t.Fatalf("treasury=%v want %v", r.treasury, base)
	}
	if got, want := r.grid[5][6].Price, base+r.cfg.NeighborPriceBump; got != want {
		t.Fatalf("neighbor price=%v want %v", got, want)
	}
	if got := r.grid[5][5].Price; got != base {
		t.Fatalf("purchased parcel price must not bump itself: %v", got)
	}
	// A corner far away is untouched.
	if got := r.grid[0][0].Price; got != base {
		t.Fatalf("distant parcel price=%v want %v", got, base)
	}
}

func TestBuildStart_CostAndActions(t *testing.T) {
	r := newTestRoom(t)
	buyParcel(t, r, "P1", 2, 2)
	p := r.players["P1"]
	balBefore := r.balance("P1")
	actionsBefore := p.Actions

	res := mustApply(t, r, protocol.TxMsg{
		Type:       protocol.TxBuildStart,
		PlayerID:   "P1",
		BuildingID: "cottage",
		Location:   []int{2, 2},
	})

	// cottage costs 100; empty budgets mean no subsidy.
	if got, want := r.balance("P1"), balBefore-100; got != want {
		t.Fatalf("balance=%v want %v", got, want)
	}
	if res.NewBalance == nil || *res.NewBalance != r.balance("P1") {
		t.Fatalf("result balance mismatch: %+v", res)
	}
	if p.Actions != actionsBefore-1 {
		t.Fatalf("actions=%d want %d", p.Actions, actionsBefore-1)
	}

	b := r.buildingAt(Coord{Row: 2, Col: 2})
	if b == nil || !b.UnderConstruction {
		t.Fatalf("expected building under construction, got %+v", b)
	}
	if b.ConstructionDays != 3 {
		t.Fatalf("constructionDays=%d want 3", b.ConstructionDays)
	}
}

func TestBuildStart_SubsidyFromBudget(t *testing.T) {
	r := newTestRoom(t)
	buyParcel(t, r, "P1", 2, 2)
	r.budgets["housing"] = 1000
	moneyBefore := totalMoney(r)
	balBefore := r.balance("P1")

	mustApply(t, r, protocol.TxMsg{
		Type:       protocol.TxBuildStart,
		PlayerID:   "P1",
		BuildingID: "cottage",
		Location:   []int{2, 2},
	})

	// Full subsidy share covers the whole 100 build cost.
	if got := r.balance("P1"); got != balBefore {
		t.Fatalf("subsidized build debited player: %v != %v", got, balBefore)
	}
	if got := r.budgets["housing"]; got != 900 {
		t.Fatalf("budget=%v want 900", got)
	}
	if got := r.players["P1"].FundsReceived; got != 100 {
		t.Fatalf("fundsReceived=%v want 100", got)
	}
	if got := r.publicSpending; got != 100 {
		t.Fatalf("publicSpending=%v want 100", got)
	}
	// The budget paid the construction bill, so total held cash drops by
	// exactly the build cost.
	if got, want := totalMoney(r), moneyBefore-100; math.Abs(got-want) > 1e-9 {
		t.Fatalf("totalMoney=%v want %v", got, want)
	}
}

func TestBuildComplete_RequiresElapsedDays(t *testing.T) {
	r := newTestRoom(t)
	buyParcel(t, r, "P1", 2, 2)
	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxBuildStart, PlayerID: "P1", BuildingID: "cottage", Location: []int{2, 2},
	})

	early := apply(t, r, protocol.TxMsg{
		Type: protocol.TxBuildComplete, PlayerID: "P1", Location: []int{2, 2},
	})
	if early.Success || early.Code != protocol.ErrConflict {
		t.Fatalf("expected early completion rejection, got %+v", early)
	}

	r.day += 3
	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxBuildComplete, PlayerID: "P1", Location: []int{2, 2},
	})
	b := r.buildingAt(Coord{Row: 2, Col: 2})
	if b.UnderConstruction || b.Age != 0 {
		t.Fatalf("building not completed: %+v", b)
	}
}

func TestRepairBuilding_CostScalesWithGap(t *testing.T) {
	r := newTestRoom(t)
	buyParcel(t, r, "P1", 2, 2)
	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxBuildStart, PlayerID: "P1", BuildingID: "cottage", Location: []int{2, 2},
	})
	r.day += 3
	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxBuildComplete, PlayerID: "P1", Location: []int{2, 2},
	})
	b := r.buildingAt(Coord{Row: 2, Col: 2})
	b.Decay = 0.4 // condition 0.6

	balBefore := r.balance("P1")
	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxRepair, PlayerID: "P1", Location: []int{2, 2}, TargetCondition: 1.0,
	})
	// (1.0 - 0.6) * 100 * 0.5 = 20
	if got, want := r.balance("P1"), balBefore-20; math.Abs(got-want) > 1e-9 {
		t.Fatalf("balance=%v want %v", got, want)
	}
	if b.Decay != 0 {
		t.Fatalf("decay=%v want 0", b.Decay)
	}

	worse := apply(t, r, protocol.TxMsg{
		Type: protocol.TxRepair, PlayerID: "P1", Location: []int{2, 2}, TargetCondition: 0.5,
	})
	if worse.Success {
		t.Fatalf("repair below current condition must fail")
	}
}

func TestDestroyBuilding_FreesParcel(t *testing.T) {
	r := newTestRoom(t)
	buyParcel(t, r, "P1", 2, 2)
	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxBuildStart, PlayerID: "P1", BuildingID: "cottage", Location: []int{2, 2},
	})
	balBefore := r.balance("P1")

	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxDestroy, PlayerID: "P1", Location: []int{2, 2},
	})
	// Demolition costs 10% of build cost.
	if got, want := r.balance("P1"), balBefore-10; math.Abs(got-want) > 1e-9 {
		t.Fatalf("balance=%v want %v", got, want)
	}
	if r.grid[2][2].BuildingID != "" {
		t.Fatalf("parcel still references a building")
	}
	if len(r.buildings) != 0 {
		t.Fatalf("building index not cleared")
	}
	if r.grid[2][2].Owner != "P1" {
		t.Fatalf("demolition must not change land ownership")
	}
}

func TestGovernanceVote_ReplacesAllocations(t *testing.T) {
	r := newTestRoom(t)
	rate := 0.25
	mustApply(t, r, protocol.TxMsg{
		Type:        protocol.TxGovernanceVote,
		PlayerID:    "P1",
		Allocations: map[string]float64{"education": 2, "healthcare": 1, "culture": 0},
		LVTVote:     &rate,
	})
	p := r.players["P1"]
	if p.LVTVote != 0.25 {
		t.Fatalf("lvtVote=%v want 0.25", p.LVTVote)
	}
	if len(p.Allocations) != 2 || p.Allocations["education"] != 2 {
		t.Fatalf("allocations=%v", p.Allocations)
	}

	bad := 1.5
	res := apply(t, r, protocol.TxMsg{
		Type: protocol.TxGovernanceVote, PlayerID: "P1", LVTVote: &bad,
	})
	if res.Success || res.Code != protocol.ErrBadRequest {
		t.Fatalf("expected out-of-range vote rejection, got %+v", res)
	}
}
