package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Livability dimension names (CARENS).
var Dimensions = []string{
	"culture", "affordability", "resilience", "environment", "noise", "safety",
}

type Catalog struct {
	ByID     map[string]BuildingDef
	IDs      []string // sorted
	Digest   string
	ByCategory map[string][]string
}

type BuildingDef struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	IsDefault   bool    `json:"isDefault,omitempty"`
	CivicScore  float64 `json:"civicScore,omitempty"`

	Economics  *Economics                `json:"economics,omitempty"`
	Resources  Resources                 `json:"resources,omitempty"`
	Livability map[string]LivabilityDef  `json:"livability,omitempty"`
}

type Economics struct {
	BuildCost        float64 `json:"buildCost"`
	ConstructionDays int     `json:"constructionDays"`
	MaxRevenue       float64 `json:"maxRevenue"`
	MaintenanceCost  float64 `json:"maintenanceCost"`
	DecayRate        float64 `json:"decayRate"` // per day
}

type Resources struct {
	JobsProvided       float64 `json:"jobsProvided,omitempty"`
	JobsRequired       float64 `json:"jobsRequired,omitempty"`
	EnergyProvided     float64 `json:"energyProvided,omitempty"`
	EnergyRequired     float64 `json:"energyRequired,omitempty"`
	EducationProvided  float64 `json:"educationProvided,omitempty"`
	EducationRequired  float64 `json:"educationRequired,omitempty"`
	FoodProvided       float64 `json:"foodProvided,omitempty"`
	FoodRequired       float64 `json:"foodRequired,omitempty"`
	HousingProvided    float64 `json:"housingProvided,omitempty"`
	HousingRequired    float64 `json:"housingRequired,omitempty"`
	HealthcareProvided float64 `json:"healthcareProvided,omitempty"`
	HealthcareRequired float64 `json:"healthcareRequired,omitempty"`
}

type LivabilityDef struct {
	Impact      float64 `json:"impact"`
	Attenuation float64 `json:"attenuation"`
}

// Load reads buildings.json from configDir. The file groups defs by
// category, matching the ingested building-data document.
func Load(configDir string) (*Catalog, error) {
	path := filepath.Join(configDir, "buildings.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var byCategory map[string][]BuildingDef
	if err := json.Unmarshal(raw, &byCategory); err != nil {
		return nil, fmt.Errorf("buildings.json: %w", err)
	}

	c := &Catalog{
		ByID:       map[string]BuildingDef{},
		ByCategory: map[string][]string{},
	}
	sum := sha256.Sum256(raw)
	c.Digest = hex.EncodeToString(sum[:])

	for cat, defs := range byCategory {
		for _, d := range defs {
			if d.ID == "" {
				return nil, fmt.Errorf("buildings.json: empty id in category %q", cat)
			}
			if _, dup := c.ByID[d.ID]; dup {
				return nil, fmt.Errorf("buildings.json: duplicate id %q", d.ID)
			}
			if d.Category == "" {
				d.Category = cat
			}
			if d.CivicScore == 0 {
				d.CivicScore = CivicScore(d.Livability)
			}
			c.ByID[d.ID] = d
			c.ByCategory[cat] = append(c.ByCategory[cat], d.ID)
		}
	}

	for id := range c.ByID {
		c.IDs = append(c.IDs, id)
	}
	sort.Strings(c.IDs)
	for cat := range c.ByCategory {
		sort.Strings(c.ByCategory[cat])
	}
	return c, nil
}

// Get returns the def for id. The second return is false for unknown ids;
// callers must treat that as "cannot calculate", never as a fault.
func (c *Catalog) Get(id string) (BuildingDef, bool) {
	d, ok := c.ByID[id]
	return d, ok
}

// CivicScore sums impact/sqrt(attenuation) over the CARENS dimensions.
// A zero attenuation counts as 1 to keep the ratio defined.
func CivicScore(liv map[string]LivabilityDef) float64 {
	var score float64
	for _, dim := range Dimensions {
		lv, ok := liv[dim]
		if !ok || lv.Impact == 0 {
			continue
		}
		att := lv.Attenuation
		if att == 0 {
			att = 1
		}
		score += lv.Impact / math.Sqrt(att)
	}
	return math.Round(score*10) / 10
}

// Provided/Required views keyed in JEEFHH order. Index matches econ.Resource.
func (r Resources) Provided() [6]float64 {
	return [6]float64{
		r.JobsProvided, r.EnergyProvided, r.EducationProvided,
		r.FoodProvided, r.HousingProvided, r.HealthcareProvided,
	}
}

func (r Resources) Required() [6]float64 {
	return [6]float64{
		r.JobsRequired, r.EnergyRequired, r.EducationRequired,
		r.FoodRequired, r.HousingRequired, r.HealthcareRequired,
	}
}
