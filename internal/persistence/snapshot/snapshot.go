package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	RoomID  string `json:"room_id"`
	Day     int    `json:"day"`
}

// RoomV1 captures everything needed to resume a room mid-game.
type RoomV1 struct {
	Header Header `json:"header"`

	GridSize  int    `json:"grid_size"`
	StartDate string `json:"start_date"`
	GameDays  int    `json:"game_days"`

	Day           int    `json:"day"`
	Ended         bool   `json:"ended"`
	WinnerID      string `json:"winner_id,omitempty"`
	VictoryReason string `json:"victory_reason,omitempty"`

	Treasury       float64            `json:"treasury"`
	Budgets        map[string]float64 `json:"budgets"`
	LVTRate        float64            `json:"lvt_rate"`
	LVTCollected   float64            `json:"lvt_collected"`
	PublicSpending float64            `json:"public_spending"`

	Population     int `json:"population"`
	LowAttractDays int `json:"low_attract_days"`

	Parcels   []ParcelV1   `json:"parcels"`
	Buildings []BuildingV1 `json:"buildings"`
	Players   []PlayerV1   `json:"players"`
	Listings  []ListingV1  `json:"listings"`
	Offers    []OfferV1    `json:"offers"`

	Counters CountersV1 `json:"counters"`
}

type ParcelV1 struct {
	Row        int     `json:"row"`
	Col        int     `json:"col"`
	Owner      string  `json:"owner"`
	Price      float64 `json:"price"`
	LastPaid   float64 `json:"last_paid"`
	BuildingID string  `json:"building_id,omitempty"`
}

type BuildingV1 struct {
	ID                string  `json:"id"`
	TypeID            string  `json:"type_id"`
	Owner             string  `json:"owner"`
	Row               int     `json:"row"`
	Col               int     `json:"col"`
	UnderConstruction bool    `json:"under_construction"`
	StartDay          int     `json:"start_day"`
	ConstructionDays  int     `json:"construction_days"`
	Age               int     `json:"age"`
	Decay             float64 `json:"decay"`
}

type PlayerV1 struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Balance       float64            `json:"balance"`
	Actions       int                `json:"actions"`
	VotingPoints  int                `json:"voting_points"`
	Allocations   map[string]float64 `json:"allocations,omitempty"`
	LVTVote       float64            `json:"lvt_vote"`
	LVTPaid       float64            `json:"lvt_paid"`
	FundsReceived float64            `json:"funds_received"`
	ResumeToken   string             `json:"resume_token,omitempty"`
}

type ListingV1 struct {
	ID           string  `json:"id"`
	Seller       string  `json:"seller"`
	Quantity     int     `json:"quantity"`
	ReservePrice float64 `json:"reserve_price"`
	BuyNowStart  float64 `json:"buy_now_start"`
	CurrentBid   float64 `json:"current_bid"`
	HighBidder   string  `json:"high_bidder,omitempty"`
	EscrowedBid  float64 `json:"escrowed_bid"`
	CreatedDay   int     `json:"created_day"`
	EndDay       int     `json:"end_day"`
	Status       string  `json:"status"`
}

type OfferV1 struct {
	ID            string  `json:"id"`
	Offerer       string  `json:"offerer"`
	Row           int     `json:"row"`
	Col           int     `json:"col"`
	Amount        float64 `json:"amount"`
	BuildingValue float64 `json:"building_value"`
	Escrow        float64 `json:"escrow"`
	CreatedDay    int     `json:"created_day"`
	Status        string  `json:"status"`
}

type CountersV1 struct {
	NextPlayer   int `json:"next_player"`
	NextBuilding int `json:"next_building"`
	NextListing  int `json:"next_listing"`
	NextOffer    int `json:"next_offer"`
}

func WriteSnapshot(path string, snap RoomV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (RoomV1, error) {
	var snap RoomV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is duplicated inside the gob payload.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
