// Package econ holds the pure economic calculator: every function derives
// its result from its arguments alone so callers can memoize freely.
package econ

import (
	"math"

	"civicgrid/internal/sim/catalog"
)

// JEEFHH resource categories.
type Resource int

const (
	Jobs Resource = iota
	Energy
	Education
	Food
	Housing
	Healthcare
	NumResources
)

var resourceNames = [NumResources]string{
	"jobs", "energy", "education", "food", "housing", "healthcare",
}

func (r Resource) String() string { return resourceNames[r] }

// Multiplier bounds.
const (
	ResourceMultMin = 0.4
	ResourceMultMax = 1.6
	LivabilityMin   = 0.6
	LivabilityMax   = 1.4

	// No building ever fully stalls.
	MinOperation = 0.05
	// Condition floor regardless of decay.
	ConditionFloor = 0.1
)

type Totals struct {
	Supply float64
	Demand float64
}

// Multiplier maps a supply/demand pair onto [0.4, 1.6]. Zero demand is
// neutral.
func (t Totals) Multiplier() float64 {
	if t.Demand <= 0 {
		return 1.0
	}
	return clamp(0.4+0.6*(t.Supply/t.Demand), ResourceMultMin, ResourceMultMax)
}

// GlobalMultiplier is the minimum multiplier across all resources: a single
// bottleneck throttles every building city-wide.
func GlobalMultiplier(totals [NumResources]Totals) float64 {
	m := math.MaxFloat64
	for i := Resource(0); i < NumResources; i++ {
		if v := totals[i].Multiplier(); v < m {
			m = v
		}
	}
	return m
}

// LivabilityContribution is the signed points a contributor at Chebyshev
// distance d delivers within attenuation radius r (linear falloff, zero
// beyond r).
func LivabilityContribution(impact float64, d int, r float64) float64 {
	if r <= 0 || float64(d) > r {
		return 0
	}
	return impact * math.Max(0, 1-float64(d)/r)
}

// LivabilityMultiplier maps summed CARENS points onto [0.6, 1.4]. Below the
// population gate livability has no effect.
func LivabilityMultiplier(points float64, population, gatePop int) float64 {
	if population < gatePop {
		return 1.0
	}
	return clamp(1.0+(points/100)*0.4, LivabilityMin, LivabilityMax)
}

// NeedsSatisfaction averages min(1, supplied/required) over only the
// resources the building actually requires. supplied is what adjacent
// buildings provide. A building with no requirements is fully satisfied.
func NeedsSatisfaction(required, supplied [NumResources]float64) float64 {
	var sum float64
	var n int
	for i := 0; i < int(NumResources); i++ {
		req := required[i]
		if req <= 0 {
			continue
		}
		sum += math.Min(1, supplied[i]/req)
		n++
	}
	if n == 0 {
		return 1.0
	}
	return sum / float64(n)
}

// Performance combines local satisfaction with the livability multiplier,
// floored so no building fully stalls.
func Performance(satisfaction, livabilityMult float64) float64 {
	p := satisfaction * livabilityMult
	if p > LivabilityMax {
		p = LivabilityMax
	}
	return math.Max(MinOperation, p)
}

// Condition derives from decay with a hard floor.
func Condition(decay float64) float64 {
	return math.Max(ConditionFloor, 1-decay)
}

// Revenue for one day. A missing economics block yields zero (cannot
// calculate, never a fault).
func Revenue(def catalog.BuildingDef, performance, condition, globalMult float64) float64 {
	if def.Economics == nil {
		return 0
	}
	return def.Economics.MaxRevenue * performance * condition * globalMult
}

// Maintenance grows geometrically with age, independent of performance.
func Maintenance(def catalog.BuildingDef, age int) float64 {
	if def.Economics == nil {
		return 0
	}
	return def.Economics.MaintenanceCost * math.Pow(1+def.Economics.DecayRate, float64(age))
}

// Attractiveness blends the average resource multiplier with livability to
// drive migration.
func Attractiveness(totals [NumResources]Totals, livabilityMult float64) float64 {
	var sum float64
	for i := Resource(0); i < NumResources; i++ {
		sum += totals[i].Multiplier()
	}
	avg := sum / float64(NumResources)
	return (avg + livabilityMult) / 2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
