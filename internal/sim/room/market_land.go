package room

import (
	"fmt"

	"civicgrid/internal/protocol"
)

type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferMatched   OfferStatus = "matched"
	OfferWithdrawn OfferStatus = "withdrawn"
	OfferExpired   OfferStatus = "expired"
)

// Offer is an escrow-backed bid for a competitor's parcel. The escrow is
// always offer amount plus the building's value at escrow time; on every
// terminal transition it is fully paid out or fully refunded.
type Offer struct {
	ID      string
	Offerer string
	Loc     Coord

	Amount        float64
	BuildingValue float64 // at escrow time
	Escrow        float64

	CreatedDay int
	Status     OfferStatus
}

func (r *Room) newOfferID() string {
	r.nextOfferNum++
	return fmt.Sprintf("O%06d", r.nextOfferNum)
}

func (r *Room) openOfferCount(playerID string) int {
	var n int
	for _, o := range r.offers {
		if o.Offerer == playerID && o.Status == OfferPending {
			n++
		}
	}
	return n
}

func (r *Room) applyMakeOffer(tx MakeOfferTx) txOutcome {
	if !r.inBounds(tx.Loc) {
		return fail(protocol.ErrInvalidLocation, "location out of bounds")
	}
	parcel := r.parcelAt(tx.Loc)
	if parcel.Owner == CityOwner {
		return fail(protocol.ErrBadRequest, "parcel is unowned; purchase it instead")
	}
	if parcel.Owner == tx.PlayerID {
		return fail(protocol.ErrBadRequest, "cannot offer on own parcel")
	}
	if r.openOfferCount(tx.PlayerID) >= r.cfg.MaxOpenOffers {
		return fail(protocol.ErrOfferLimit,
			fmt.Sprintf("at most %d outstanding offers", r.cfg.MaxOpenOffers))
	}

	var bv float64
	if b := r.buildingAt(tx.Loc); b != nil {
		bv = r.buildingValue(b)
	}
	escrow := tx.Amount + bv
	r.getOrCreatePlayer(tx.PlayerID, "")
	if r.balance(tx.PlayerID) < escrow {
		return fail(protocol.ErrInsufficientFunds,
			fmt.Sprintf("escrow %.2f exceeds balance %.2f", escrow, r.balance(tx.PlayerID)))
	}

	if err := r.debit(tx.PlayerID, escrow); err != nil {
		return fail(protocol.ErrInvariant, err.Error())
	}
	o := &Offer{
		ID:            r.newOfferID(),
		Offerer:       tx.PlayerID,
		Loc:           tx.Loc,
		Amount:        tx.Amount,
		BuildingValue: bv,
		Escrow:        escrow,
		CreatedDay:    r.day,
		Status:        OfferPending,
	}
	r.offers[o.ID] = o
	return r.okBalance(tx.PlayerID)
}

func (r *Room) applyRespondOffer(tx RespondOfferTx) txOutcome {
	o := r.offers[tx.OfferID]
	if o == nil {
		return fail(protocol.ErrUnknownID, "offer not found")
	}
	if o.Status != OfferPending {
		return fail(protocol.ErrConflict, "offer not pending")
	}
	parcel := r.parcelAt(o.Loc)
	if parcel.Owner != tx.PlayerID {
		return fail(protocol.ErrNotOwner, "parcel not owned by responder")
	}

	switch tx.Action {
	case "accept":
		return r.acceptOffer(o, parcel, tx.PlayerID)
	case "match":
		return r.matchOffer(o, parcel, tx.PlayerID)
	}
	return fail(protocol.ErrBadRequest, "action must be accept or match")
}

// acceptOffer transfers the parcel (and building) to the offerer. The owner
// is paid the offer amount plus the building's value now; any decay since
// escrow is refunded to the offerer.
func (r *Room) acceptOffer(o *Offer, parcel *Parcel, owner string) txOutcome {
	var bvNow float64
	b := r.buildingAt(o.Loc)
	if b != nil {
		bvNow = r.buildingValue(b)
	}
	if bvNow > o.BuildingValue {
		bvNow = o.BuildingValue // escrow never pays out more than it holds
	}
	payout := o.Amount + bvNow
	surplus := o.Escrow - payout

	r.credit(owner, payout)
	if surplus > 0 {
		r.credit(o.Offerer, surplus)
	}
	parcel.Owner = o.Offerer
	parcel.LastPaid = o.Amount
	if o.Amount > parcel.Price {
		parcel.Price = o.Amount
	}
	if b != nil {
		b.Owner = o.Offerer
		r.markBuildingDirty(b.ID)
	}
	o.Status = OfferAccepted
	return r.okBalance(owner)
}

// matchOffer lets the owner keep the parcel by paying the delta between the
// offer and the last recorded price into the treasury, at the cost of one
// action credit. The offerer's full escrow comes back.
func (r *Room) matchOffer(o *Offer, parcel *Parcel, owner string) txOutcome {
	p := r.getOrCreatePlayer(owner, "")
	delta := o.Amount - parcel.LastPaid
	if delta < 0 {
		delta = 0
	}
	if p.Actions < 1 {
		return fail(protocol.ErrInsufficientActions, "match costs one action credit")
	}
	if r.balance(owner) < delta {
		return fail(protocol.ErrInsufficientFunds,
			fmt.Sprintf("match delta %.2f exceeds balance %.2f", delta, r.balance(owner)))
	}

	if delta > 0 {
		if err := r.debit(owner, delta); err != nil {
			return fail(protocol.ErrInvariant, err.Error())
		}
		r.treasury += delta
	}
	p.Actions--
	r.markPlayerDirty(p.ID)
	parcel.LastPaid = o.Amount
	if o.Amount > parcel.Price {
		parcel.Price = o.Amount
	}
	r.credit(o.Offerer, o.Escrow)
	o.Status = OfferMatched
	return r.okBalance(owner)
}

func (r *Room) applyWithdrawOffer(tx WithdrawOfferTx) txOutcome {
	o := r.offers[tx.OfferID]
	if o == nil {
		return fail(protocol.ErrUnknownID, "offer not found")
	}
	if o.Offerer != tx.PlayerID {
		return fail(protocol.ErrNotOwner, "not the offerer")
	}
	if o.Status != OfferPending {
		return fail(protocol.ErrConflict, "offer not pending")
	}
	p := r.getOrCreatePlayer(tx.PlayerID, "")
	if p.Actions < 1 {
		return fail(protocol.ErrInsufficientActions, "withdraw costs one action credit")
	}

	p.Actions--
	r.markPlayerDirty(p.ID)
	r.credit(o.Offerer, o.Escrow)
	o.Status = OfferWithdrawn
	return r.okBalance(tx.PlayerID)
}

// expireOffers refunds pending offers that sat unanswered for a whole
// month. Expiry is scheduled, not caller-cancellable, so it costs the
// offerer nothing.
func (r *Room) expireOffers(maxAgeDays int) {
	for _, o := range r.offers {
		if o.Status != OfferPending || r.day-o.CreatedDay < maxAgeDays {
			continue
		}
		r.credit(o.Offerer, o.Escrow)
		o.Status = OfferExpired
	}
}
