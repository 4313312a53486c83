package room

import (
	"civicgrid/internal/protocol"
)

// Tx is the closed set of player transactions. Each variant carries its own
// typed payload; applyTx dispatches with an exhaustive type switch.
type Tx interface{ txType() string }

type BuildStartTx struct {
	PlayerID   string
	BuildingID string
	Loc        Coord
	Cost       float64
}

type BuildCompleteTx struct {
	PlayerID string
	Loc      Coord
}

type DestroyBuildingTx struct {
	PlayerID string
	Loc      Coord
}

type RepairBuildingTx struct {
	PlayerID        string
	Loc             Coord
	TargetCondition float64
}

type ParcelPurchaseTx struct {
	PlayerID string
	Loc      Coord
	Amount   float64
}

type CashSpendTx struct {
	PlayerID string
	Amount   float64
	Reason   string
}

type ActionSpendTx struct {
	PlayerID string
	Quantity int
	Reason   string
}

type CreateListingTx struct {
	PlayerID     string
	Quantity     int
	ReservePrice float64
	BuyNowPrice  float64
}

type BidTx struct {
	PlayerID  string
	ListingID string
	BidAmount float64
}

type BuyNowTx struct {
	PlayerID  string
	ListingID string
}

type CancelListingTx struct {
	PlayerID  string
	ListingID string
}

type EndEarlyTx struct {
	PlayerID  string
	ListingID string
}

type MakeOfferTx struct {
	PlayerID string
	Loc      Coord
	Amount   float64
}

type RespondOfferTx struct {
	PlayerID string
	OfferID  string
	Action   string // "accept" | "match"
}

type WithdrawOfferTx struct {
	PlayerID string
	OfferID  string
}

type GovernanceVoteTx struct {
	PlayerID    string
	Allocations map[string]float64
	LVTVote     *float64
}

func (BuildStartTx) txType() string     { return protocol.TxBuildStart }
func (BuildCompleteTx) txType() string  { return protocol.TxBuildComplete }
func (DestroyBuildingTx) txType() string { return protocol.TxDestroy }
func (RepairBuildingTx) txType() string { return protocol.TxRepair }
func (ParcelPurchaseTx) txType() string { return protocol.TxParcelPurchase }
func (CashSpendTx) txType() string      { return protocol.TxCashSpend }
func (ActionSpendTx) txType() string    { return protocol.TxActionSpend }
func (CreateListingTx) txType() string  { return protocol.TxActionCreateListing }
func (BidTx) txType() string            { return protocol.TxActionBid }
func (BuyNowTx) txType() string         { return protocol.TxActionBuyNow }
func (CancelListingTx) txType() string  { return protocol.TxActionCancelListing }
func (EndEarlyTx) txType() string       { return protocol.TxActionEndEarly }
func (MakeOfferTx) txType() string      { return protocol.TxExchangeMakeOffer }
func (RespondOfferTx) txType() string   { return protocol.TxExchangeRespond }
func (WithdrawOfferTx) txType() string  { return protocol.TxExchangeWithdraw }
func (GovernanceVoteTx) txType() string { return protocol.TxGovernanceVote }

// txOutcome is the all-or-nothing result of one handler. A failed outcome
// means no field of room state changed.
type txOutcome struct {
	ok         bool
	code       string
	err        string
	newBalance *float64
}

func fail(code, msg string) txOutcome { return txOutcome{code: code, err: msg} }

func (r *Room) okBalance(playerID string) txOutcome {
	b := r.balances[playerID]
	return txOutcome{ok: true, newBalance: &b}
}

func okOutcome() txOutcome { return txOutcome{ok: true} }

// decodeTx converts a flat wire envelope into a typed transaction.
func decodeTx(m protocol.TxMsg) (Tx, string) {
	loc := func() (Coord, bool) {
		if len(m.Location) != 2 {
			return Coord{}, false
		}
		return Coord{Row: m.Location[0], Col: m.Location[1]}, true
	}
	switch m.Type {
	case protocol.TxBuildStart:
		c, ok := loc()
		if !ok || m.BuildingID == "" {
			return nil, "missing buildingId or location"
		}
		return BuildStartTx{PlayerID: m.PlayerID, BuildingID: m.BuildingID, Loc: c, Cost: m.Cost}, ""
	case protocol.TxBuildComplete:
		c, ok := loc()
		if !ok {
			return nil, "missing location"
		}
		return BuildCompleteTx{PlayerID: m.PlayerID, Loc: c}, ""
	case protocol.TxDestroy:
		c, ok := loc()
		if !ok {
			return nil, "missing location"
		}
		return DestroyBuildingTx{PlayerID: m.PlayerID, Loc: c}, ""
	case protocol.TxRepair:
		c, ok := loc()
		if !ok {
			return nil, "missing location"
		}
		return RepairBuildingTx{PlayerID: m.PlayerID, Loc: c, TargetCondition: m.TargetCondition}, ""
	case protocol.TxParcelPurchase:
		c, ok := loc()
		if !ok {
			return nil, "missing location"
		}
		return ParcelPurchaseTx{PlayerID: m.PlayerID, Loc: c, Amount: m.Amount}, ""
	case protocol.TxCashSpend:
		return CashSpendTx{PlayerID: m.PlayerID, Amount: m.Amount, Reason: m.Reason}, ""
	case protocol.TxActionSpend:
		q := m.Quantity
		if q == 0 {
			q = 1
		}
		return ActionSpendTx{PlayerID: m.PlayerID, Quantity: q, Reason: m.Reason}, ""
	case protocol.TxActionCreateListing:
		if m.Quantity <= 0 {
			return nil, "missing quantity"
		}
		return CreateListingTx{
			PlayerID:     m.PlayerID,
			Quantity:     m.Quantity,
			ReservePrice: m.ReservePrice,
			BuyNowPrice:  m.BuyNowPrice,
		}, ""
	case protocol.TxActionBid:
		if m.ListingID == "" || m.BidAmount <= 0 {
			return nil, "missing listingId or bidAmount"
		}
		return BidTx{PlayerID: m.PlayerID, ListingID: m.ListingID, BidAmount: m.BidAmount}, ""
	case protocol.TxActionBuyNow:
		if m.ListingID == "" {
			return nil, "missing listingId"
		}
		return BuyNowTx{PlayerID: m.PlayerID, ListingID: m.ListingID}, ""
	case protocol.TxActionCancelListing:
		if m.ListingID == "" {
			return nil, "missing listingId"
		}
		return CancelListingTx{PlayerID: m.PlayerID, ListingID: m.ListingID}, ""
	case protocol.TxActionEndEarly:
		if m.ListingID == "" {
			return nil, "missing listingId"
		}
		return EndEarlyTx{PlayerID: m.PlayerID, ListingID: m.ListingID}, ""
	case protocol.TxExchangeMakeOffer:
		if m.OfferAmount <= 0 {
			return nil, "missing offerAmount"
		}
		return MakeOfferTx{PlayerID: m.PlayerID, Loc: Coord{Row: m.Row, Col: m.Col}, Amount: m.OfferAmount}, ""
	case protocol.TxExchangeRespond:
		if m.OfferID == "" || (m.Action != "accept" && m.Action != "match") {
			return nil, "missing offerId or action"
		}
		return RespondOfferTx{PlayerID: m.PlayerID, OfferID: m.OfferID, Action: m.Action}, ""
	case protocol.TxExchangeWithdraw:
		if m.OfferID == "" {
			return nil, "missing offerId"
		}
		return WithdrawOfferTx{PlayerID: m.PlayerID, OfferID: m.OfferID}, ""
	case protocol.TxGovernanceVote:
		return GovernanceVoteTx{PlayerID: m.PlayerID, Allocations: m.Allocations, LVTVote: m.LVTVote}, ""
	}
	return nil, "unknown transaction type"
}

// applyTx runs the full pipeline for one envelope:
// received -> deduplicated -> validated -> applied -> invalidated -> archived.
func (r *Room) applyTx(env TxEnvelope) protocol.TxResultMsg {
	m := env.Msg
	result := func(out txOutcome) protocol.TxResultMsg {
		res := protocol.TxResultMsg{
			Type:          protocol.TypeTxResult,
			Success:       out.ok,
			TransactionID: m.ID,
			NewBalance:    out.newBalance,
			GameTime:      r.day,
			Code:          out.code,
			Error:         out.err,
		}
		r.archiveTx(ArchivedTx{
			ID:       m.ID,
			Type:     m.Type,
			PlayerID: m.PlayerID,
			Day:      r.day,
			Success:  out.ok,
			Code:     out.code,
		})
		return res
	}

	if r.ended {
		return result(fail(protocol.ErrGameOver, "game has ended"))
	}
	if m.ID == "" || m.PlayerID == "" {
		return result(fail(protocol.ErrBadRequest, "missing id or playerId"))
	}
	if env.PlayerID != "" && env.PlayerID != m.PlayerID {
		return result(fail(protocol.ErrBadRequest, "playerId does not match session"))
	}
	if !r.dedup.Add(m.ID) {
		return result(fail(protocol.ErrDuplicateTx, "duplicate transaction id"))
	}

	tx, decodeErr := decodeTx(m)
	if tx == nil {
		return result(fail(protocol.ErrBadRequest, decodeErr))
	}

	var out txOutcome
	switch t := tx.(type) {
	case BuildStartTx:
		out = r.applyBuildStart(t)
	case BuildCompleteTx:
		out = r.applyBuildComplete(t)
	case DestroyBuildingTx:
		out = r.applyDestroyBuilding(t)
	case RepairBuildingTx:
		out = r.applyRepairBuilding(t)
	case ParcelPurchaseTx:
		out = r.applyParcelPurchase(t)
	case CashSpendTx:
		out = r.applyCashSpend(t)
	case ActionSpendTx:
		out = r.applyActionSpend(t)
	case CreateListingTx:
		out = r.applyCreateListing(t)
	case BidTx:
		out = r.applyBid(t)
	case BuyNowTx:
		out = r.applyBuyNow(t)
	case CancelListingTx:
		out = r.applyCancelListing(t)
	case EndEarlyTx:
		out = r.applyEndEarly(t)
	case MakeOfferTx:
		out = r.applyMakeOffer(t)
	case RespondOfferTx:
		out = r.applyRespondOffer(t)
	case WithdrawOfferTx:
		out = r.applyWithdrawOffer(t)
	case GovernanceVoteTx:
		out = r.applyGovernanceVote(t)
	}

	if out.ok {
		r.audit(m.PlayerID, m.Type, map[string]any{"tx_id": m.ID})
	}
	return result(out)
}

func (r *Room) archiveTx(a ArchivedTx) {
	r.archive = append(r.archive, a)
	if over := len(r.archive) - r.cfg.TxArchiveCap; over > 0 {
		r.archive = r.archive[over:]
	}
	r.txDay = append(r.txDay, a)
}

// dedupSet is a bounded recent-id set: fixed capacity, oldest evicted. It
// defends against network retries, not restarts.
type dedupSet struct {
	cap   int
	order []string
	seen  map[string]struct{}
}

func newDedupSet(capacity int) *dedupSet {
	if capacity <= 0 {
		capacity = 512
	}
	return &dedupSet{cap: capacity, seen: map[string]struct{}{}}
}

// Add reports false if the id was already present.
func (d *dedupSet) Add(id string) bool {
	if _, dup := d.seen[id]; dup {
		return false
	}
	if len(d.order) >= d.cap {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	d.order = append(d.order, id)
	d.seen[id] = struct{}{}
	return true
}
