package room

import "civicgrid/internal/sim/econ"

// Daily migration shares of the current population. Emigration escalates
// per extra streak day up to the cap.
const (
	immigrationShare   = 0.02
	emigrationShare    = 0.05
	emigrationShareMax = 0.25
	daysPerYear        = 365.0
)

// dailyTick advances the room one game day. Order matters: construction
// completes before cashflow so a building never earns on its first day,
// and taxes come after revenue so a profitable day can fund them.
func (r *Room) dailyTick() {
	r.day++

	r.completeDueConstruction()
	r.applyCashflow()
	r.collectLVT()
	r.ageBuildings()
	r.migratePopulation()
	r.expireListings()

	r.writeTickLog()

	if r.crossedMonthBoundary() {
		r.monthlyTick()
	}
	if r.cfg.SnapshotEveryDays > 0 && r.day%r.cfg.SnapshotEveryDays == 0 {
		r.emitSnapshot()
	}

	if r.checkVictory() {
		return
	}
	if r.day >= r.cfg.GameDays {
		r.endGame(r.leaderID(), "final_day")
	}
}

func (r *Room) completeDueConstruction() {
	for _, b := range r.buildings {
		if !b.UnderConstruction {
			continue
		}
		if r.day-b.StartDay >= b.ConstructionDays {
			r.completeBuilding(b)
		}
	}
}

// applyCashflow credits each completed building's revenue and debits its
// maintenance. Maintenance is capped at the owner's balance so the ledger
// never goes negative.
func (r *Room) applyCashflow() {
	agg := r.aggregates()
	for _, b := range r.buildings {
		if b.UnderConstruction {
			continue
		}
		def, ok := r.catalog.Get(b.TypeID)
		if !ok || def.Economics == nil {
			continue
		}
		perf := r.performanceAt(b.Loc)
		revenue := econ.Revenue(def, perf.Performance, b.Condition(), agg.GlobalMultiplier)
		if revenue > 0 {
			r.credit(b.Owner, revenue)
		}
		upkeep := econ.Maintenance(def, b.Age)
		if upkeep > 0 {
			if bal := r.balance(b.Owner); upkeep > bal {
				upkeep = bal
			}
			if upkeep > 0 {
				_ = r.debit(b.Owner, upkeep)
			}
		}
	}
}

// collectLVT charges each player the daily share of the annual land value
// tax on their parcel holdings, capped at their balance. Everything
// collected lands in the treasury.
func (r *Room) collectLVT() {
	for id, p := range r.players {
		var landValue float64
		for row := range r.grid {
			for col := range r.grid[row] {
				if r.grid[row][col].Owner == id {
					landValue += r.grid[row][col].Price
				}
			}
		}
		if landValue <= 0 {
			continue
		}
		tax := r.lvtRate * landValue / daysPerYear
		if bal := r.balance(id); tax > bal {
			tax = bal
		}
		if tax <= 0 {
			continue
		}
		_ = r.debit(id, tax)
		r.treasury += tax
		r.lvtCollected += tax
		p.LVTPaid += tax
		r.markPlayerDirty(id)
	}
}

func (r *Room) ageBuildings() {
	for _, b := range r.buildings {
		if b.UnderConstruction {
			continue
		}
		b.Age++
		def, ok := r.catalog.Get(b.TypeID)
		if ok && def.Economics != nil {
			b.Decay += def.Economics.DecayRate
			if b.Decay > 1 {
				b.Decay = 1
			}
		}
		r.markBuildingDirty(b.ID)
	}
}

// migratePopulation grows toward housing capacity when the city is
// attractive and shrinks after a sustained unattractive streak. A single
// bad day never triggers emigration, and settlements below the gate
// population only churn, they never empty out. The longer the streak
// runs past the threshold, the larger the daily outflow.
func (r *Room) migratePopulation() {
	agg := r.aggregates()
	switch {
	case agg.Attractiveness >= r.cfg.AttractThresholdHi:
		r.lowAttractDays = 0
		if r.population >= agg.HousingCapacity {
			return
		}
		in := int(float64(r.population) * immigrationShare)
		if in < 1 {
			in = 1
		}
		if r.population+in > agg.HousingCapacity {
			in = agg.HousingCapacity - r.population
		}
		if in > 0 {
			r.population += in
			r.onPopulationChanged()
		}
	case agg.Attractiveness <= r.cfg.AttractThresholdLo:
		r.lowAttractDays++
		if r.lowAttractDays < r.cfg.EmigrationDays {
			return
		}
		if r.population < r.cfg.CarensGatePop {
			return
		}
		share := emigrationShare * float64(r.lowAttractDays-r.cfg.EmigrationDays+1)
		if share > emigrationShareMax {
			share = emigrationShareMax
		}
		out := int(float64(r.population) * share)
		if out < 1 {
			out = 1
		}
		if out > r.population {
			out = r.population
		}
		if out > 0 {
			r.population -= out
			r.onPopulationChanged()
		}
	default:
		r.lowAttractDays = 0
	}
}

func (r *Room) crossedMonthBoundary() bool {
	prev := r.Date(r.day - 1)
	cur := r.Date(r.day)
	return prev.Month() != cur.Month() || prev.Year() != cur.Year()
}

// monthlyTick replenishes action credits, tallies governance votes, and
// distributes the treasury across budget categories.
func (r *Room) monthlyTick() {
	allowance := r.actionAllowance()
	for id, p := range r.players {
		p.Actions += allowance
		p.VotingPoints += 2
		r.markPlayerDirty(id)
	}

	r.tallyLVTVotes()
	r.distributeBudgets()
	r.expireOffers(30)

	r.broadcastMonth(allowance)
	r.broadcastScores()
}

// actionAllowance shrinks by one per elapsed month down to a floor, so
// credits grow scarcer as the game progresses.
func (r *Room) actionAllowance() int {
	start := r.cfg.StartDate
	cur := r.Date(r.day)
	months := (cur.Year()-start.Year())*12 + int(cur.Month()) - int(start.Month())
	allowance := r.cfg.ActionAllowanceStart - months
	if allowance < r.cfg.ActionAllowanceFloor {
		allowance = r.cfg.ActionAllowanceFloor
	}
	return allowance
}

// tallyLVTVotes sets the rate to the voting-point-weighted mean of all
// player votes. Players with more accrued points pull the rate harder;
// before any points exist the mean falls back to unweighted.
func (r *Room) tallyLVTVotes() {
	if len(r.players) == 0 {
		return
	}
	var sum, points float64
	for _, p := range r.players {
		w := float64(p.VotingPoints)
		if w <= 0 {
			continue
		}
		sum += w * p.LVTVote
		points += w
	}
	if points <= 0 {
		for _, p := range r.players {
			sum += p.LVTVote
		}
		r.lvtRate = sum / float64(len(r.players))
		return
	}
	r.lvtRate = sum / points
}

// distributeBudgets splits the treasury across categories in proportion to
// the voting-point-weighted player allocations. With no votes cast the
// treasury carries over untouched.
func (r *Room) distributeBudgets() {
	weights := map[string]float64{}
	var total float64
	for _, p := range r.players {
		pts := float64(p.VotingPoints)
		if pts <= 0 {
			continue
		}
		for _, cat := range r.cfg.BudgetCategories {
			w := p.Allocations[cat] * pts
			if w <= 0 {
				continue
			}
			weights[cat] += w
			total += w
		}
	}
	if total <= 0 || r.treasury <= 0 {
		return
	}
	pool := r.treasury
	for cat, w := range weights {
		share := pool * w / total
		r.budgets[cat] += share
		r.treasury -= share
	}
}

func (r *Room) emitSnapshot() {
	if r.snapshotSink == nil {
		return
	}
	select {
	case r.snapshotSink <- r.ExportSnapshot():
	default:
		// Persistence is behind; skip this cycle rather than stall the loop.
	}
}

func (r *Room) writeTickLog() {
	if r.tickLogger == nil {
		r.txDay = nil
		return
	}
	entry := TickLogEntry{
		Day:    r.day,
		Date:   r.Date(r.day).Format("2006-01-02"),
		Txs:    r.txDay,
		Digest: r.stateDigest(),
	}
	_ = r.tickLogger.WriteTick(entry)
	r.txDay = nil
}
