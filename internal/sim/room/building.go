package room

import (
	"fmt"

	"civicgrid/internal/sim/econ"
)

// Building is a placed instance of a catalog type. At most one per parcel.
type Building struct {
	ID     string
	TypeID string
	Owner  string
	Loc    Coord

	UnderConstruction bool
	StartDay          int // game day construction began
	ConstructionDays  int

	Age   int     // days since completion
	Decay float64 // in [0,1]
}

func (b *Building) Condition() float64 {
	return econ.Condition(b.Decay)
}

func (r *Room) newBuildingID() string {
	r.nextBuildingNum++
	return fmt.Sprintf("B%06d", r.nextBuildingNum)
}

// buildingValue is what the building is worth on the land exchange: build
// cost scaled by current condition. Under-construction buildings count at
// full cost (nothing has decayed yet).
func (r *Room) buildingValue(b *Building) float64 {
	def, ok := r.catalog.Get(b.TypeID)
	if !ok || def.Economics == nil {
		return 0
	}
	if b.UnderConstruction {
		return def.Economics.BuildCost
	}
	return def.Economics.BuildCost * b.Condition()
}

func (r *Room) buildingAt(c Coord) *Building {
	p := r.parcelAt(c)
	if p == nil || p.BuildingID == "" {
		return nil
	}
	return r.buildings[p.BuildingID]
}

// placeBuilding wires a new building into the grid and sparse index and
// invalidates the affected caches.
func (r *Room) placeBuilding(b *Building) {
	r.buildings[b.ID] = b
	r.grid[b.Loc.Row][b.Loc.Col].BuildingID = b.ID
	r.onBuildingChanged(b.Loc)
	r.markBuildingDirty(b.ID)
}

// removeBuilding detaches a building from the grid and sparse index.
func (r *Room) removeBuilding(b *Building) {
	delete(r.buildings, b.ID)
	r.grid[b.Loc.Row][b.Loc.Col].BuildingID = ""
	r.onBuildingChanged(b.Loc)
	r.markBuildingDirty(b.ID)
}
