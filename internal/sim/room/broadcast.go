package room

import (
	"encoding/json"
	"sort"

	"civicgrid/internal/protocol"
	"civicgrid/internal/sim/econ"
)

// broadcast fans a message out to every connected client without ever
// blocking the room loop.
func (r *Room) broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	for _, c := range r.clients {
		sendLatest(c.Out, b)
	}
}

func (r *Room) sendResult(playerID string, res protocol.TxResultMsg) {
	c := r.clients[playerID]
	if c == nil {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	sendLatest(c.Out, b)
}

// buildState assembles the full room state message sent on join.
func (r *Room) buildState() protocol.StateMsg {
	agg := r.aggregates()

	buildings := make([]protocol.BuildingState, 0, len(r.buildings))
	for _, b := range r.buildings {
		buildings = append(buildings, r.buildingState(b))
	}
	sort.Slice(buildings, func(i, j int) bool { return buildings[i].ID < buildings[j].ID })

	players := make(map[string]protocol.PlayerState, len(r.players))
	for id, p := range r.players {
		players[id] = r.playerState(p)
	}

	grid := make([][]protocol.ParcelState, len(r.grid))
	for row := range r.grid {
		grid[row] = make([]protocol.ParcelState, len(r.grid[row]))
		for col := range r.grid[row] {
			pc := &r.grid[row][col]
			grid[row][col] = protocol.ParcelState{
				Owner:      pc.Owner,
				Price:      pc.Price,
				BuildingID: pc.BuildingID,
			}
		}
	}

	votingPoints := make(map[string]int, len(r.players))
	for id, p := range r.players {
		votingPoints[id] = p.VotingPoints
	}

	listings := make([]protocol.ListingState, 0, len(r.listings))
	for _, l := range r.listings {
		if l.Status != ListingActive {
			continue
		}
		listings = append(listings, protocol.ListingState{
			ID:           l.ID,
			Seller:       l.Seller,
			Quantity:     l.Quantity,
			ReservePrice: l.ReservePrice,
			BuyNowPrice:  l.buyNowPrice(r.day),
			CurrentBid:   l.CurrentBid,
			HighBidderID: l.HighBidder,
			EndDay:       l.EndDay,
			Status:       string(l.Status),
		})
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })

	offers := make([]protocol.OfferState, 0, len(r.offers))
	for _, o := range r.offers {
		if o.Status != OfferPending {
			continue
		}
		offers = append(offers, protocol.OfferState{
			ID:      o.ID,
			Offerer: o.Offerer,
			Row:     o.Loc.Row,
			Col:     o.Loc.Col,
			Amount:  o.Amount,
			Escrow:  o.Escrow,
			Status:  string(o.Status),
			MadeDay: o.CreatedDay,
		})
	}
	sort.Slice(offers, func(i, j int) bool { return offers[i].ID < offers[j].ID })

	budgets := make(map[string]float64, len(r.budgets))
	for k, v := range r.budgets {
		budgets[k] = v
	}

	return protocol.StateMsg{
		Type:      protocol.TypeState,
		Day:       r.day,
		Date:      r.Date(r.day).Format("2006-01-02"),
		Buildings: buildings,
		Players:   players,
		Grid:      grid,
		Governance: protocol.GovernanceState{
			Treasury:     r.treasury,
			LVTRate:      r.lvtRate,
			Budgets:      budgets,
			VotingPoints: votingPoints,
		},
		Market: protocol.MarketState{
			Listings: listings,
			Offers:   offers,
		},
		Demographics: protocol.DemographicsState{
			Population:      r.population,
			HousingCapacity: agg.HousingCapacity,
			Attractiveness:  agg.Attractiveness,
		},
		Aggregates: r.aggregatesState(agg),
	}
}

func (r *Room) buildingState(b *Building) protocol.BuildingState {
	perf := r.performanceAt(b.Loc)
	return protocol.BuildingState{
		ID:                b.ID,
		TypeID:            b.TypeID,
		Owner:             b.Owner,
		Row:               b.Loc.Row,
		Col:               b.Loc.Col,
		UnderConstruction: b.UnderConstruction,
		Age:               b.Age,
		Condition:         b.Condition(),
		Performance:       perf.Performance,
	}
}

func (r *Room) playerState(p *Player) protocol.PlayerState {
	gov := make([]float64, len(r.cfg.BudgetCategories))
	for i, cat := range r.cfg.BudgetCategories {
		gov[i] = p.Allocations[cat]
	}
	return protocol.PlayerState{
		Name:          p.Name,
		Balance:       r.balance(p.ID),
		Actions:       p.Actions,
		LVTPaid:       p.LVTPaid,
		FundsReceived: p.FundsReceived,
		Governance:    gov,
		LVTVote:       p.LVTVote,
	}
}

func (r *Room) aggregatesState(agg *Aggregates) map[string]protocol.ResourceAggr {
	out := make(map[string]protocol.ResourceAggr, int(econ.NumResources))
	for i := 0; i < int(econ.NumResources); i++ {
		t := agg.Totals[i]
		out[econ.Resource(i).String()] = protocol.ResourceAggr{
			Supply:     t.Supply,
			Demand:     t.Demand,
			Multiplier: t.Multiplier(),
		}
	}
	return out
}

// broadcastDelta sends only what changed since the last delta. Removed
// buildings simply stop appearing; clients reconcile against the next full
// state.
func (r *Room) broadcastDelta() {
	if len(r.dirtyBuildings) == 0 && len(r.dirtyPlayers) == 0 && !r.dirtyAggregates {
		return
	}

	delta := protocol.DeltaMsg{
		Type: protocol.TypeDelta,
		Day:  r.day,
	}

	ids := make([]string, 0, len(r.dirtyBuildings))
	for id := range r.dirtyBuildings {
		if _, exists := r.buildings[id]; exists {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		delta.Buildings = append(delta.Buildings, r.buildingState(r.buildings[id]))
	}

	if len(r.dirtyPlayers) > 0 {
		delta.Players = make(map[string]protocol.PlayerState, len(r.dirtyPlayers))
		for id := range r.dirtyPlayers {
			if p := r.players[id]; p != nil {
				delta.Players[id] = r.playerState(p)
			}
		}
	}

	if r.dirtyAggregates {
		delta.Aggregates = r.aggregatesState(r.aggregates())
	}

	r.broadcast(delta)

	r.dirtyBuildings = map[string]struct{}{}
	r.dirtyPlayers = map[string]struct{}{}
	r.dirtyAggregates = false
}

func (r *Room) broadcastMonth(allowance int) {
	budgets := make(map[string]float64, len(r.budgets))
	for k, v := range r.budgets {
		budgets[k] = v
	}
	r.broadcast(protocol.MonthMsg{
		Type:      protocol.TypeMonth,
		Month:     r.Date(r.day).Format("2006-01"),
		LVTRate:   r.lvtRate,
		Allowance: allowance,
		Budgets:   budgets,
	})
}

func (r *Room) broadcastScores() {
	r.broadcast(protocol.ScoresMsg{
		Type:   protocol.TypeScores,
		Day:    r.day,
		Scores: r.scoreEntries(),
	})
}
