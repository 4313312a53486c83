package room

import (
	"math"
	"testing"

	"civicgrid/internal/protocol"
)

// ownedParcelWithBuilding sets up P1 owning (4,4) with a completed cottage.
func ownedParcelWithBuilding(t *testing.T, r *Room) Coord {
	t.Helper()
	buyParcel(t, r, "P1", 4, 4)
	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxBuildStart, PlayerID: "P1", BuildingID: "cottage", Location: []int{4, 4},
	})
	r.day += 3
	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxBuildComplete, PlayerID: "P1", Location: []int{4, 4},
	})
	return Coord{Row: 4, Col: 4}
}

func pendingOffer(t *testing.T, r *Room) *Offer {
	t.Helper()
	for _, o := range r.offers {
		if o.Status == OfferPending {
			return o
		}
	}
	t.Fatalf("no pending offer")
	return nil
}

func TestMakeOffer_EscrowsAmountPlusBuildingValue(t *testing.T) {
	r := newTestRoom(t)
	loc := ownedParcelWithBuilding(t, r)
	r.getOrCreatePlayer("P2", "")
	moneyBefore := totalMoney(r)

	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxExchangeMakeOffer, PlayerID: "P2",
		Row: loc.Row, Col: loc.Col, OfferAmount: 500,
	})

	o := pendingOffer(t, r)
	// Fresh cottage: building value is the full 100 build cost.
	if o.BuildingValue != 100 || o.Escrow != 600 {
		t.Fatalf("offer=%+v", o)
	}
	if got := r.balance("P2"); got != r.cfg.StartingBalance-600 {
		t.Fatalf("P2 balance=%v", got)
	}
	if math.Abs(totalMoney(r)-moneyBefore) > 1e-9 {
		t.Fatalf("escrow must conserve money")
	}
}

func TestMakeOffer_Rejections(t *testing.T) {
	r := newTestRoom(t)
	loc := ownedParcelWithBuilding(t, r)

	city := apply(t, r, protocol.TxMsg{
		Type: protocol.TxExchangeMakeOffer, PlayerID: "P2", Row: 0, Col: 0, OfferAmount: 100,
	})
	if city.Success {
		t.Fatalf("offers on city land must fail")
	}
	own := apply(t, r, protocol.TxMsg{
		Type: protocol.TxExchangeMakeOffer, PlayerID: "P1",
		Row: loc.Row, Col: loc.Col, OfferAmount: 100,
	})
	if own.Success {
		t.Fatalf("offers on own land must fail")
	}

	// P2 may hold at most MaxOpenOffers pending offers.
	buyParcel(t, r, "P3", 0, 0)
	buyParcel(t, r, "P3", 0, 2)
	buyParcel(t, r, "P3", 0, 4)
	targets := [][2]int{{4, 4}, {0, 0}, {0, 2}}
	for _, tgt := range targets {
		mustApply(t, r, protocol.TxMsg{
			Type: protocol.TxExchangeMakeOffer, PlayerID: "P2",
			Row: tgt[0], Col: tgt[1], OfferAmount: 10,
		})
	}
	over := apply(t, r, protocol.TxMsg{
		Type: protocol.TxExchangeMakeOffer, PlayerID: "P2", Row: 0, Col: 4, OfferAmount: 10,
	})
	if over.Success || over.Code != protocol.ErrOfferLimit {
		t.Fatalf("expected E_OFFER_LIMIT, got %+v", over)
	}
}

func TestAcceptOffer_TransfersEverything(t *testing.T) {
	r := newTestRoom(t)
	loc := ownedParcelWithBuilding(t, r)
	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxExchangeMakeOffer, PlayerID: "P2",
		Row: loc.Row, Col: loc.Col, OfferAmount: 500,
	})
	o := pendingOffer(t, r)
	ownerBefore := r.balance("P1")
	moneyBefore := totalMoney(r)

	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxExchangeRespond, PlayerID: "P1", OfferID: o.ID, Action: "accept",
	})

	if o.Status != OfferAccepted {
		t.Fatalf("status=%s", o.Status)
	}
	if got, want := r.balance("P1"), ownerBefore+600; math.Abs(got-want) > 1e-9 {
		t.Fatalf("owner payout=%v want %v", got, want)
	}
	parcel := r.parcelAt(loc)
	if parcel.Owner != "P2" || parcel.LastPaid != 500 {
		t.Fatalf("parcel=%+v", parcel)
	}
	if parcel.Price != 500 {
		t.Fatalf("listed price=%v, want 500 after sale", parcel.Price)
	}
	b := r.buildingAt(loc)
	if b == nil || b.Owner != "P2" {
		t.Fatalf("building ownership not transferred: %+v", b)
	}
	if math.Abs(totalMoney(r)-moneyBefore) > 1e-9 {
		t.Fatalf("accept must conserve money")
	}
}

func TestAcceptOffer_RefundsDecaySinceEscrow(t *testing.T) {
	r := newTestRoom(t)
	loc := ownedParcelWithBuilding(t, r)
	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxExchangeMakeOffer, PlayerID: "P2",
		Row: loc.Row, Col: loc.Col, OfferAmount: 500,
	})
	o := pendingOffer(t, r)

	// Building decays after the offer was escrowed. Condition 0.8 -> value 80.
	r.buildingAt(loc).Decay = 0.2
	ownerBefore := r.balance("P1")
	buyerBefore := r.balance("P2")

	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxExchangeRespond, PlayerID: "P1", OfferID: o.ID, Action: "accept",
	})

	if got, want := r.balance("P1"), ownerBefore+580; math.Abs(got-want) > 1e-9 {
		t.Fatalf("owner payout=%v want %v", got, want)
	}
	// The 20 the building lost comes back to the offerer.
	if got, want := r.balance("P2"), buyerBefore+20; math.Abs(got-want) > 1e-9 {
		t.Fatalf("offerer surplus refund=%v want %v", got, want)
	}
}

func TestMatchOffer_KeepsParcelAtAPrice(t *testing.T) {
	r := newTestRoom(t)
	loc := ownedParcelWithBuilding(t, r)
	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxExchangeMakeOffer, PlayerID: "P2",
		Row: loc.Row, Col: loc.Col, OfferAmount: 500,
	})
	o := pendingOffer(t, r)

	owner := r.players["P1"]
	ownerActions := owner.Actions
	ownerBefore := r.balance("P1")
	treasuryBefore := r.treasury
	lastPaid := r.parcelAt(loc).LastPaid
	moneyBefore := totalMoney(r)

	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxExchangeRespond, PlayerID: "P1", OfferID: o.ID, Action: "match",
	})

	if o.Status != OfferMatched {
		t.Fatalf("status=%s", o.Status)
	}
	delta := 500 - lastPaid
	if got, want := r.balance("P1"), ownerBefore-delta; math.Abs(got-want) > 1e-9 {
		t.Fatalf("owner balance=%v want %v", got, want)
	}
	if got, want := r.treasury, treasuryBefore+delta; math.Abs(got-want) > 1e-9 {
		t.Fatalf("treasury=%v want %v", got, want)
	}
	if owner.Actions != ownerActions-1 {
		t.Fatalf("match must cost one action credit")
	}
	// Offerer made whole.
	if got := r.balance("P2"); got != r.cfg.StartingBalance {
		t.Fatalf("offerer refund incomplete: %v", got)
	}
	parcel := r.parcelAt(loc)
	if parcel.Owner != "P1" || parcel.LastPaid != 500 || parcel.Price < 500 {
		t.Fatalf("parcel after match=%+v", parcel)
	}
	if math.Abs(totalMoney(r)-moneyBefore) > 1e-9 {
		t.Fatalf("match must conserve money")
	}
}

func TestWithdrawOffer_CostsOneAction(t *testing.T) {
	r := newTestRoom(t)
	loc := ownedParcelWithBuilding(t, r)
	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxExchangeMakeOffer, PlayerID: "P2",
		Row: loc.Row, Col: loc.Col, OfferAmount: 500,
	})
	o := pendingOffer(t, r)
	offerer := r.players["P2"]
	actionsBefore := offerer.Actions

	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxExchangeWithdraw, PlayerID: "P2", OfferID: o.ID,
	})
	if o.Status != OfferWithdrawn {
		t.Fatalf("status=%s", o.Status)
	}
	if got := r.balance("P2"); got != r.cfg.StartingBalance {
		t.Fatalf("escrow refund incomplete: %v", got)
	}
	if offerer.Actions != actionsBefore-1 {
		t.Fatalf("withdraw must cost one action credit")
	}
}

func TestExpireOffers_FullRefundNoActionCost(t *testing.T) {
	r := newTestRoom(t)
	loc := ownedParcelWithBuilding(t, r)
	mustApply(t, r, protocol.TxMsg{
		Type: protocol.TxExchangeMakeOffer, PlayerID: "P2",
		Row: loc.Row, Col: loc.Col, OfferAmount: 500,
	})
	o := pendingOffer(t, r)
	offerer := r.players["P2"]
	actionsBefore := offerer.Actions

	r.day += 30
	r.expireOffers(30)

	if o.Status != OfferExpired {
		t.Fatalf("status=%s", o.Status)
	}
	if got := r.balance("P2"); got != r.cfg.StartingBalance {
		t.Fatalf("expiry refund incomplete: %v", got)
	}
	if offerer.Actions != actionsBefore {
		t.Fatalf("expiry must not cost action credits")
	}
}
