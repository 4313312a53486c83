package room

import (
	"civicgrid/internal/sim/cache"
	"civicgrid/internal/sim/catalog"
	"civicgrid/internal/sim/econ"
)

// Per-resident contributions to global demand and labor supply.
const (
	perCapitaHousing    = 1.0
	perCapitaFood       = 0.5
	perCapitaHealthcare = 0.2
	perCapitaEducation  = 0.2
	perCapitaLabor      = 0.6
)

// Aggregates are the room-wide economic totals derived from the full
// building set plus the resident population.
type Aggregates struct {
	Totals           [econ.NumResources]econ.Totals
	GlobalMultiplier float64

	LivabilityPoints map[string]float64
	LivabilityMult   float64

	HousingCapacity int
	Attractiveness  float64
}

// aggregates recomputes lazily through the cache; any building or
// population change invalidates the global key.
func (r *Room) aggregates() *Aggregates {
	if v, ok := r.cache.Get(cache.GlobalKey()); ok {
		return v.(*Aggregates)
	}
	a := r.computeAggregates()
	r.cache.Put(cache.GlobalKey(), a)
	return a
}

func (r *Room) computeAggregates() *Aggregates {
	a := &Aggregates{LivabilityPoints: map[string]float64{}}

	for _, b := range r.buildings {
		if b.UnderConstruction {
			continue
		}
		def, ok := r.catalog.Get(b.TypeID)
		if !ok {
			continue
		}
		prov := def.Resources.Provided()
		req := def.Resources.Required()
		for i := 0; i < int(econ.NumResources); i++ {
			a.Totals[i].Supply += prov[i]
			a.Totals[i].Demand += req[i]
		}
		a.HousingCapacity += int(def.Resources.HousingProvided)
		for dim, lv := range def.Livability {
			a.LivabilityPoints[dim] += lv.Impact
		}
	}

	pop := float64(r.population)
	a.Totals[econ.Housing].Demand += pop * perCapitaHousing
	a.Totals[econ.Food].Demand += pop * perCapitaFood
	a.Totals[econ.Healthcare].Demand += pop * perCapitaHealthcare
	a.Totals[econ.Education].Demand += pop * perCapitaEducation
	a.Totals[econ.Jobs].Supply += pop * perCapitaLabor

	a.GlobalMultiplier = econ.GlobalMultiplier(a.Totals)

	var points float64
	for _, v := range a.LivabilityPoints {
		points += v
	}
	a.LivabilityMult = econ.LivabilityMultiplier(points, r.population, r.cfg.CarensGatePop)
	a.Attractiveness = econ.Attractiveness(a.Totals, a.LivabilityMult)
	return a
}

// perfSnapshot is the per-building performance cache entry.
type perfSnapshot struct {
	Satisfaction   float64
	LivabilityMult float64
	Performance    float64
}

// performanceAt derives one building's performance from its 8-neighborhood
// and the livability field, memoized by location.
func (r *Room) performanceAt(loc Coord) perfSnapshot {
	key := cache.LocationKey(loc.Row, loc.Col)
	if v, ok := r.cache.Get(key); ok {
		return v.(perfSnapshot)
	}
	s := r.computePerformanceAt(loc)
	r.cache.Put(key, s)
	return s
}

func (r *Room) computePerformanceAt(loc Coord) perfSnapshot {
	neutral := perfSnapshot{Satisfaction: 1, LivabilityMult: 1, Performance: 1}
	b := r.buildingAt(loc)
	if b == nil || b.UnderConstruction {
		return neutral
	}
	def, ok := r.catalog.Get(b.TypeID)
	if !ok {
		// Missing catalog entry: cannot calculate, never a fault.
		return neutral
	}

	var supplied [econ.NumResources]float64
	r.neighbors8(loc, func(n Coord) {
		nb := r.buildingAt(n)
		if nb == nil || nb.UnderConstruction {
			return
		}
		ndef, ok := r.catalog.Get(nb.TypeID)
		if !ok {
			return
		}
		prov := ndef.Resources.Provided()
		for i := 0; i < int(econ.NumResources); i++ {
			supplied[i] += prov[i]
		}
	})
	satisfaction := econ.NeedsSatisfaction(def.Resources.Required(), supplied)

	points := r.livabilityPointsAt(loc)
	livMult := econ.LivabilityMultiplier(points, r.population, r.cfg.CarensGatePop)

	return perfSnapshot{
		Satisfaction:   satisfaction,
		LivabilityMult: livMult,
		Performance:    econ.Performance(satisfaction, livMult),
	}
}

// livabilityPointsAt sums every completed building's CARENS contribution
// at the given location, attenuated linearly by Chebyshev distance.
func (r *Room) livabilityPointsAt(loc Coord) float64 {
	var points float64
	for _, b := range r.buildings {
		if b.UnderConstruction {
			continue
		}
		def, ok := r.catalog.Get(b.TypeID)
		if !ok {
			continue
		}
		d := chebyshev(loc, b.Loc)
		for _, dim := range catalog.Dimensions {
			lv, ok := def.Livability[dim]
			if !ok {
				continue
			}
			points += econ.LivabilityContribution(lv.Impact, d, lv.Attenuation)
		}
	}
	return points
}

// playerWealth is cash plus land and building holdings, memoized per
// player. Ledger changes invalidate only this key.
func (r *Room) playerWealth(id string) float64 {
	key := cache.PlayerKey(id)
	if v, ok := r.cache.Get(key); ok {
		return v.(float64)
	}
	w := r.computePlayerWealth(id)
	r.cache.Put(key, w)
	return w
}

func (r *Room) computePlayerWealth(id string) float64 {
	w := r.balances[id]
	for row := range r.grid {
		for col := range r.grid[row] {
			p := &r.grid[row][col]
			if p.Owner != id {
				continue
			}
			w += p.Price
			if p.BuildingID != "" {
				if b := r.buildings[p.BuildingID]; b != nil {
					w += r.buildingValue(b)
				}
			}
		}
	}
	return w
}
