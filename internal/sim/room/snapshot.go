package room

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"civicgrid/internal/persistence/snapshot"
)

// ExportSnapshot captures the full room state in deterministic order, so
// two identical rooms always export byte-identical snapshots.
func (r *Room) ExportSnapshot() snapshot.RoomV1 {
	s := snapshot.RoomV1{
		Header: snapshot.Header{
			Version: 1,
			RoomID:  r.cfg.ID,
			Day:     r.day,
		},
		GridSize:  r.cfg.GridSize,
		StartDate: r.cfg.StartDate.Format("2006-01-02"),
		GameDays:  r.cfg.GameDays,

		Day:           r.day,
		Ended:         r.ended,
		WinnerID:      r.winnerID,
		VictoryReason: r.victoryReason,

		Treasury:       r.treasury,
		Budgets:        map[string]float64{},
		LVTRate:        r.lvtRate,
		LVTCollected:   r.lvtCollected,
		PublicSpending: r.publicSpending,

		Population:     r.population,
		LowAttractDays: r.lowAttractDays,

		Counters: snapshot.CountersV1{
			NextPlayer:   r.nextPlayerNum,
			NextBuilding: r.nextBuildingNum,
			NextListing:  r.nextListingNum,
			NextOffer:    r.nextOfferNum,
		},
	}
	for k, v := range r.budgets {
		s.Budgets[k] = v
	}

	for row := range r.grid {
		for col := range r.grid[row] {
			p := &r.grid[row][col]
			s.Parcels = append(s.Parcels, snapshot.ParcelV1{
				Row:        row,
				Col:        col,
				Owner:      p.Owner,
				Price:      p.Price,
				LastPaid:   p.LastPaid,
				BuildingID: p.BuildingID,
			})
		}
	}

	for _, b := range r.buildings {
		s.Buildings = append(s.Buildings, snapshot.BuildingV1{
			ID:                b.ID,
			TypeID:            b.TypeID,
			Owner:             b.Owner,
			Row:               b.Loc.Row,
			Col:               b.Loc.Col,
			UnderConstruction: b.UnderConstruction,
			StartDay:          b.StartDay,
			ConstructionDays:  b.ConstructionDays,
			Age:               b.Age,
			Decay:             b.Decay,
		})
	}
	sort.Slice(s.Buildings, func(i, j int) bool { return s.Buildings[i].ID < s.Buildings[j].ID })

	for id, p := range r.players {
		s.Players = append(s.Players, snapshot.PlayerV1{
			ID:            id,
			Name:          p.Name,
			Balance:       r.balances[id],
			Actions:       p.Actions,
			VotingPoints:  p.VotingPoints,
			Allocations:   p.Allocations,
			LVTVote:       p.LVTVote,
			LVTPaid:       p.LVTPaid,
			FundsReceived: p.FundsReceived,
			ResumeToken:   p.ResumeToken,
		})
	}
	sort.Slice(s.Players, func(i, j int) bool { return s.Players[i].ID < s.Players[j].ID })

	for _, l := range r.listings {
		s.Listings = append(s.Listings, snapshot.ListingV1{
			ID:           l.ID,
			Seller:       l.Seller,
			Quantity:     l.Quantity,
			ReservePrice: l.ReservePrice,
			BuyNowStart:  l.BuyNowStart,
			CurrentBid:   l.CurrentBid,
			HighBidder:   l.HighBidder,
			EscrowedBid:  l.EscrowedBid,
			CreatedDay:   l.CreatedDay,
			EndDay:       l.EndDay,
			Status:       string(l.Status),
		})
	}
	sort.Slice(s.Listings, func(i, j int) bool { return s.Listings[i].ID < s.Listings[j].ID })

	for _, o := range r.offers {
		s.Offers = append(s.Offers, snapshot.OfferV1{
			ID:            o.ID,
			Offerer:       o.Offerer,
			Row:           o.Loc.Row,
			Col:           o.Loc.Col,
			Amount:        o.Amount,
			BuildingValue: o.BuildingValue,
			Escrow:        o.Escrow,
			CreatedDay:    o.CreatedDay,
			Status:        string(o.Status),
		})
	}
	sort.Slice(s.Offers, func(i, j int) bool { return s.Offers[i].ID < s.Offers[j].ID })

	return s
}

// ImportSnapshot replaces the room's state with the snapshot contents.
// Call before Run; config values not captured in the snapshot keep their
// current settings.
func (r *Room) ImportSnapshot(s snapshot.RoomV1) {
	r.day = s.Day
	r.ended = s.Ended
	r.winnerID = s.WinnerID
	r.victoryReason = s.VictoryReason

	r.treasury = s.Treasury
	r.budgets = map[string]float64{}
	for k, v := range s.Budgets {
		r.budgets[k] = v
	}
	r.lvtRate = s.LVTRate
	r.lvtCollected = s.LVTCollected
	r.publicSpending = s.PublicSpending

	r.population = s.Population
	r.lowAttractDays = s.LowAttractDays

	r.nextPlayerNum = s.Counters.NextPlayer
	r.nextBuildingNum = s.Counters.NextBuilding
	r.nextListingNum = s.Counters.NextListing
	r.nextOfferNum = s.Counters.NextOffer

	r.initGrid()
	for _, p := range s.Parcels {
		if !r.inBounds(Coord{Row: p.Row, Col: p.Col}) {
			continue
		}
		pc := &r.grid[p.Row][p.Col]
		pc.Owner = p.Owner
		pc.Price = p.Price
		pc.LastPaid = p.LastPaid
		pc.BuildingID = p.BuildingID
	}

	r.buildings = map[string]*Building{}
	for _, b := range s.Buildings {
		r.buildings[b.ID] = &Building{
			ID:                b.ID,
			TypeID:            b.TypeID,
			Owner:             b.Owner,
			Loc:               Coord{Row: b.Row, Col: b.Col},
			UnderConstruction: b.UnderConstruction,
			StartDay:          b.StartDay,
			ConstructionDays:  b.ConstructionDays,
			Age:               b.Age,
			Decay:             b.Decay,
		}
	}

	r.players = map[string]*Player{}
	r.balances = map[string]float64{}
	for _, p := range s.Players {
		alloc := p.Allocations
		if alloc == nil {
			alloc = map[string]float64{}
		}
		r.players[p.ID] = &Player{
			ID:            p.ID,
			Name:          p.Name,
			Actions:       p.Actions,
			VotingPoints:  p.VotingPoints,
			Allocations:   alloc,
			LVTVote:       p.LVTVote,
			LVTPaid:       p.LVTPaid,
			FundsReceived: p.FundsReceived,
			ResumeToken:   p.ResumeToken,
		}
		r.balances[p.ID] = p.Balance
	}

	r.listings = map[string]*Listing{}
	for _, l := range s.Listings {
		r.listings[l.ID] = &Listing{
			ID:           l.ID,
			Seller:       l.Seller,
			Quantity:     l.Quantity,
			ReservePrice: l.ReservePrice,
			BuyNowStart:  l.BuyNowStart,
			CurrentBid:   l.CurrentBid,
			HighBidder:   l.HighBidder,
			EscrowedBid:  l.EscrowedBid,
			CreatedDay:   l.CreatedDay,
			EndDay:       l.EndDay,
			Status:       ListingStatus(l.Status),
		}
	}

	r.offers = map[string]*Offer{}
	for _, o := range s.Offers {
		r.offers[o.ID] = &Offer{
			ID:            o.ID,
			Offerer:       o.Offerer,
			Loc:           Coord{Row: o.Row, Col: o.Col},
			Amount:        o.Amount,
			BuildingValue: o.BuildingValue,
			Escrow:        o.Escrow,
			CreatedDay:    o.CreatedDay,
			Status:        OfferStatus(o.Status),
		}
	}

	r.cache.InvalidateAll()
}

// stateDigest hashes the canonical snapshot encoding. Identical state
// always produces the identical digest, which is what tick-log replay
// verification compares.
func (r *Room) stateDigest() string {
	s := r.ExportSnapshot()
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
