package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	GridSize    int    `yaml:"grid_size"`
	DayLengthMs int    `yaml:"day_length_ms"`
	GameDays    int    `yaml:"game_days"`
	StartDate   string `yaml:"start_date"` // YYYY-MM-DD

	StartingBalance float64 `yaml:"starting_balance"`
	StartingActions int     `yaml:"starting_actions"`
	// Monthly action allowance starts here and shrinks by one per elapsed
	// month down to the floor.
	ActionAllowanceStart int `yaml:"action_allowance_start"`
	ActionAllowanceFloor int `yaml:"action_allowance_floor"`

	LVTRate          float64 `yaml:"lvt_rate"` // annual, on parcel price
	ParcelBasePrice  float64 `yaml:"parcel_base_price"`
	NeighborPriceBump float64 `yaml:"neighbor_price_bump"`
	ConstructionSubsidyShare float64 `yaml:"construction_subsidy_share"`
	DemolitionSubsidyShare   float64 `yaml:"demolition_subsidy_share"`

	CacheTTLMs      int `yaml:"cache_ttl_ms"`
	InfluenceRadius int `yaml:"influence_radius"`

	PopulationStart    int     `yaml:"population_start"`
	CarensGatePop      int     `yaml:"carens_gate_population"`
	AttractThresholdLo float64 `yaml:"attract_threshold_lo"`
	AttractThresholdHi float64 `yaml:"attract_threshold_hi"`
	EmigrationDays     int     `yaml:"emigration_days"`

	ListingDays      int     `yaml:"listing_days"`
	CancelFeeMultiple float64 `yaml:"cancel_fee_multiple"`
	MaxOpenOffers    int     `yaml:"max_open_offers"`

	VictoryScore     float64 `yaml:"victory_score"`
	VictoryMinPop    int     `yaml:"victory_min_population"`
	CivicScoreCap    float64 `yaml:"civic_score_cap"`

	TxDedupCapacity  int `yaml:"tx_dedup_capacity"`
	TxArchiveCap     int `yaml:"tx_archive_cap"`
	SnapshotEveryDays int `yaml:"snapshot_every_days"`

	BudgetCategories []string `yaml:"budget_categories"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",

		GridSize:    12,
		DayLengthMs: 9860,
		GameDays:    365,
		StartDate:   "2025-09-01",

		StartingBalance:      6000,
		StartingActions:      20,
		ActionAllowanceStart: 20,
		ActionAllowanceFloor: 4,

		LVTRate:                  0.50,
		ParcelBasePrice:          150,
		NeighborPriceBump:        25,
		ConstructionSubsidyShare: 1.0,
		DemolitionSubsidyShare:   1.0,

		CacheTTLMs:      30000,
		InfluenceRadius: 5,

		PopulationStart:    0,
		CarensGatePop:      100,
		AttractThresholdLo: 0.95,
		AttractThresholdHi: 1.05,
		EmigrationDays:     3,

		ListingDays:       7,
		CancelFeeMultiple: 5.0,
		MaxOpenOffers:     3,

		VictoryScore:  100,
		VictoryMinPop: 100,
		CivicScoreCap: 100,

		TxDedupCapacity:   512,
		TxArchiveCap:      1000,
		SnapshotEveryDays: 7,

		BudgetCategories: []string{
			"education", "healthcare", "infrastructure",
			"housing", "culture", "recreation",
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
