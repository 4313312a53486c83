package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
	RoomPreference  string `json:"room_preference,omitempty"`
	ResumeToken     string `json:"resume_token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	PlayerID        string     `json:"player_id"`
	ResumeToken     string     `json:"resume_token"`
	RoomID          string     `json:"room_id"`
	RoomParams      RoomParams `json:"room_params"`
	Catalog         DigestRef  `json:"catalog"`
}

type RoomParams struct {
	GridSize    int    `json:"grid_size"`
	DayLengthMs int    `json:"day_length_ms"`
	GameDays    int    `json:"game_days"`
	StartDate   string `json:"start_date"`
	LVTRate     float64 `json:"lvt_rate"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client): the full building catalog payload.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Digest          string      `json:"digest"`
	Data            interface{} `json:"data"`
}

// TxMsg is the flat inbound transaction envelope. The "type" field selects
// the transaction; unused fields stay at their zero value.
type TxMsg struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	PlayerID string `json:"playerId"`

	// Building/parcel operations.
	BuildingID      string  `json:"buildingId,omitempty"`
	Location        []int   `json:"location,omitempty"` // [row, col]
	Cost            float64 `json:"cost,omitempty"`
	Amount          float64 `json:"amount,omitempty"`
	TargetCondition float64 `json:"targetCondition,omitempty"`
	Reason          string  `json:"reason,omitempty"`

	// Action marketplace.
	ListingID    string  `json:"listingId,omitempty"`
	Quantity     int     `json:"quantity,omitempty"`
	BidAmount    float64 `json:"bidAmount,omitempty"`
	ReservePrice float64 `json:"reservePrice,omitempty"`
	BuyNowPrice  float64 `json:"buyNowPrice,omitempty"`

	// Land exchange.
	Row         int     `json:"row,omitempty"`
	Col         int     `json:"col,omitempty"`
	OfferAmount float64 `json:"offerAmount,omitempty"`
	OfferID     string  `json:"offerId,omitempty"`
	Action      string  `json:"action,omitempty"` // "accept" | "match"

	// Governance.
	Allocations map[string]float64 `json:"allocations,omitempty"`
	LVTVote     *float64           `json:"lvtVote,omitempty"`
}

// TX_RESULT (server -> client)
type TxResultMsg struct {
	Type          string   `json:"type"`
	Success       bool     `json:"success"`
	TransactionID string   `json:"transactionId"`
	NewBalance    *float64 `json:"newBalance,omitempty"`
	GameTime      int      `json:"gameTime"`
	Error         string   `json:"error,omitempty"`
	Code          string   `json:"code,omitempty"`
}

// STATE (server -> client): full room snapshot for clients.
type StateMsg struct {
	Type         string                  `json:"type"`
	Day          int                     `json:"day"`
	Date         string                  `json:"date"`
	Buildings    []BuildingState         `json:"buildings"`
	Players      map[string]PlayerState  `json:"players"`
	Grid         [][]ParcelState         `json:"grid"`
	Governance   GovernanceState         `json:"governance"`
	Market       MarketState             `json:"market"`
	Demographics DemographicsState       `json:"demographics"`
	Aggregates   map[string]ResourceAggr `json:"aggregates"`
}

// STATE_DELTA (server -> client): only changed keys.
type DeltaMsg struct {
	Type       string                  `json:"type"`
	Day        int                     `json:"day"`
	Buildings  []BuildingState         `json:"buildings,omitempty"`
	Players    map[string]PlayerState  `json:"players,omitempty"`
	Aggregates map[string]ResourceAggr `json:"aggregates,omitempty"`
}

type BuildingState struct {
	ID                string  `json:"id"`
	TypeID            string  `json:"typeId"`
	Owner             string  `json:"owner"`
	Row               int     `json:"row"`
	Col               int     `json:"col"`
	UnderConstruction bool    `json:"underConstruction"`
	Age               int     `json:"age"`
	Condition         float64 `json:"condition"`
	Performance       float64 `json:"performance"`
}

type PlayerState struct {
	Name          string    `json:"name"`
	Balance       float64   `json:"balance"`
	Actions       int       `json:"actions"`
	LVTPaid       float64   `json:"lvtPaid"`
	FundsReceived float64   `json:"fundsReceived"`
	Governance    []float64 `json:"governance,omitempty"`
	LVTVote       float64   `json:"lvtVote"`
}

type ParcelState struct {
	Owner      string  `json:"owner"`
	Price      float64 `json:"price"`
	BuildingID string  `json:"buildingId,omitempty"`
}

type GovernanceState struct {
	Treasury     float64            `json:"treasury"`
	LVTRate      float64            `json:"lvtRate"`
	Budgets      map[string]float64 `json:"budgets"`
	VotingPoints map[string]int     `json:"votingPoints"`
}

type MarketState struct {
	Listings []ListingState `json:"listings"`
	Offers   []OfferState   `json:"offers"`
}

type ListingState struct {
	ID           string  `json:"id"`
	Seller       string  `json:"seller"`
	Quantity     int     `json:"quantity"`
	ReservePrice float64 `json:"reservePrice"`
	BuyNowPrice  float64 `json:"buyNowPrice"`
	CurrentBid   float64 `json:"currentBid"`
	HighBidderID string  `json:"highBidderId,omitempty"`
	EndDay       int     `json:"endDay"`
	Status       string  `json:"status"`
}

type OfferState struct {
	ID       string  `json:"id"`
	Offerer  string  `json:"offerer"`
	Row      int     `json:"row"`
	Col      int     `json:"col"`
	Amount   float64 `json:"amount"`
	Escrow   float64 `json:"escrow"`
	Status   string  `json:"status"`
	MadeDay  int     `json:"madeDay"`
}

type DemographicsState struct {
	Population      int     `json:"population"`
	HousingCapacity int     `json:"housingCapacity"`
	Attractiveness  float64 `json:"attractiveness"`
}

type ResourceAggr struct {
	Supply     float64 `json:"supply"`
	Demand     float64 `json:"demand"`
	Multiplier float64 `json:"multiplier"`
}

// VICTORY (server -> client, room-wide)
type VictoryMsg struct {
	Type       string       `json:"type"`
	WinnerID   string       `json:"winnerId"`
	WinnerName string       `json:"winnerName"`
	Reason     string       `json:"reason"` // "threshold" | "final_day"
	Day        int          `json:"day"`
	Scores     []ScoreEntry `json:"scores"`
	Summary    GameSummary  `json:"summary"`
}

type GameSummary struct {
	FinalPopulation int     `json:"finalPopulation"`
	TotalWealth     float64 `json:"totalWealth"`
	TotalBuildings  int     `json:"totalBuildings"`
	LVTCollected    float64 `json:"lvtCollected"`
	PublicSpending  float64 `json:"publicSpending"`
	FinalLVTRate    float64 `json:"finalLvtRate"`
}

// MONTH (server -> client): monthly transition summary.
type MonthMsg struct {
	Type      string             `json:"type"`
	Month     string             `json:"month"` // e.g. "2025-02"
	LVTRate   float64            `json:"lvtRate"`
	Allowance int                `json:"actionAllowance"`
	Budgets   map[string]float64 `json:"budgets"`
}

// SCORES (server -> client): commonwealth ranking.
type ScoresMsg struct {
	Type   string       `json:"type"`
	Day    int          `json:"day"`
	Scores []ScoreEntry `json:"scores"`
}

type ScoreEntry struct {
	PlayerID    string  `json:"playerId"`
	PlayerName  string  `json:"playerName"`
	WealthScore float64 `json:"wealthScore"`
	CivicScore  float64 `json:"civicScore"`
	Score       float64 `json:"score"`
}
