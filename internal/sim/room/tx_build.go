package room

import (
	"fmt"
	"math"

	"civicgrid/internal/protocol"
)

const (
	demolitionCostShare = 0.10
	repairCostFactor    = 0.50
)

func (r *Room) applyBuildStart(tx BuildStartTx) txOutcome {
	if !r.inBounds(tx.Loc) {
		return fail(protocol.ErrInvalidLocation, "location out of bounds")
	}
	def, ok := r.catalog.Get(tx.BuildingID)
	if !ok {
		return fail(protocol.ErrUnknownID, fmt.Sprintf("unknown building type %q", tx.BuildingID))
	}
	if def.Economics == nil {
		return fail(protocol.ErrMissingData, "building type has no economics data")
	}
	p := r.getOrCreatePlayer(tx.PlayerID, "")
	parcel := r.parcelAt(tx.Loc)
	if parcel.Owner != tx.PlayerID {
		return fail(protocol.ErrNotOwner, "parcel not owned by player")
	}
	if parcel.BuildingID != "" {
		return fail(protocol.ErrConflict, "parcel already has a building")
	}
	if p.Actions < 1 {
		return fail(protocol.ErrInsufficientActions, "no action credits")
	}

	cost := def.Economics.BuildCost
	subsidy := r.subsidyFor(def.Category, cost*r.cfg.ConstructionSubsidyShare)
	playerPortion := cost - subsidy
	if r.balance(tx.PlayerID) < playerPortion {
		return fail(protocol.ErrInsufficientFunds,
			fmt.Sprintf("need %.2f, have %.2f", playerPortion, r.balance(tx.PlayerID)))
	}

	// Validation passed; every write below must succeed.
	if err := r.debit(tx.PlayerID, playerPortion); err != nil {
		return fail(protocol.ErrInvariant, err.Error())
	}
	r.spendBudget(def.Category, subsidy)
	p.FundsReceived += subsidy
	p.Actions--
	r.markPlayerDirty(p.ID)

	b := &Building{
		ID:                r.newBuildingID(),
		TypeID:            def.ID,
		Owner:             tx.PlayerID,
		Loc:               tx.Loc,
		UnderConstruction: true,
		StartDay:          r.day,
		ConstructionDays:  def.Economics.ConstructionDays,
	}
	r.placeBuilding(b)
	return r.okBalance(tx.PlayerID)
}

func (r *Room) applyBuildComplete(tx BuildCompleteTx) txOutcome {
	b := r.buildingAt(tx.Loc)
	if b == nil {
		return fail(protocol.ErrInvalidLocation, "no building at location")
	}
	if b.Owner != tx.PlayerID {
		return fail(protocol.ErrNotOwner, "building not owned by player")
	}
	if !b.UnderConstruction {
		return fail(protocol.ErrConflict, "building already complete")
	}
	if r.day-b.StartDay < b.ConstructionDays {
		return fail(protocol.ErrConflict, "construction not finished")
	}
	r.completeBuilding(b)
	return okOutcome()
}

func (r *Room) completeBuilding(b *Building) {
	b.UnderConstruction = false
	b.Age = 0
	r.onBuildingChanged(b.Loc)
	r.markBuildingDirty(b.ID)
}

func (r *Room) applyDestroyBuilding(tx DestroyBuildingTx) txOutcome {
	b := r.buildingAt(tx.Loc)
	if b == nil {
		return fail(protocol.ErrInvalidLocation, "no building at location")
	}
	if b.Owner != tx.PlayerID {
		return fail(protocol.ErrNotOwner, "building not owned by player")
	}
	def, ok := r.catalog.Get(b.TypeID)
	if !ok || def.Economics == nil {
		return fail(protocol.ErrMissingData, "building type has no economics data")
	}
	p := r.getOrCreatePlayer(tx.PlayerID, "")

	cost := def.Economics.BuildCost * demolitionCostShare
	subsidy := r.subsidyFor(def.Category, cost*r.cfg.DemolitionSubsidyShare)
	playerPortion := cost - subsidy
	if r.balance(tx.PlayerID) < playerPortion {
		return fail(protocol.ErrInsufficientFunds,
			fmt.Sprintf("need %.2f, have %.2f", playerPortion, r.balance(tx.PlayerID)))
	}

	if err := r.debit(tx.PlayerID, playerPortion); err != nil {
		return fail(protocol.ErrInvariant, err.Error())
	}
	r.spendBudget(def.Category, subsidy)
	p.FundsReceived += subsidy
	r.removeBuilding(b)
	return r.okBalance(tx.PlayerID)
}

func (r *Room) applyRepairBuilding(tx RepairBuildingTx) txOutcome {
	b := r.buildingAt(tx.Loc)
	if b == nil {
		return fail(protocol.ErrInvalidLocation, "no building at location")
	}
	if b.Owner != tx.PlayerID {
		return fail(protocol.ErrNotOwner, "building not owned by player")
	}
	if b.UnderConstruction {
		return fail(protocol.ErrConflict, "building under construction")
	}
	def, ok := r.catalog.Get(b.TypeID)
	if !ok || def.Economics == nil {
		return fail(protocol.ErrMissingData, "building type has no economics data")
	}
	target := tx.TargetCondition
	if target <= 0 || target > 1 {
		return fail(protocol.ErrBadRequest, "targetCondition out of range")
	}
	current := b.Condition()
	if target <= current {
		return fail(protocol.ErrBadRequest, "target condition not above current")
	}

	cost := (target - current) * def.Economics.BuildCost * repairCostFactor
	if r.balance(tx.PlayerID) < cost {
		return fail(protocol.ErrInsufficientFunds,
			fmt.Sprintf("need %.2f, have %.2f", cost, r.balance(tx.PlayerID)))
	}

	if err := r.debit(tx.PlayerID, cost); err != nil {
		return fail(protocol.ErrInvariant, err.Error())
	}
	b.Decay = math.Max(0, 1-target)
	r.onBuildingChanged(b.Loc)
	r.markBuildingDirty(b.ID)
	return r.okBalance(tx.PlayerID)
}

// subsidyFor reports how much public funding a budget category can put
// toward a cost: capped by both the requested share and the category's
// current balance.
func (r *Room) subsidyFor(category string, want float64) float64 {
	bal, ok := r.budgets[category]
	if !ok || want <= 0 {
		return 0
	}
	return math.Min(bal, want)
}

func (r *Room) spendBudget(category string, amount float64) {
	if amount <= 0 {
		return
	}
	r.budgets[category] -= amount
	r.publicSpending += amount
}
