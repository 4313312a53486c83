package room

import (
	"fmt"

	"civicgrid/internal/protocol"
)

func (r *Room) applyParcelPurchase(tx ParcelPurchaseTx) txOutcome {
	if !r.inBounds(tx.Loc) {
		return fail(protocol.ErrInvalidLocation, "location out of bounds")
	}
	parcel := r.parcelAt(tx.Loc)
	if parcel.Owner == tx.PlayerID {
		return fail(protocol.ErrConflict, "parcel already owned by player")
	}
	if parcel.Owner != CityOwner {
		return fail(protocol.ErrNotOwner, "parcel owned by another player")
	}
	if tx.Amount < parcel.Price {
		return fail(protocol.ErrBadRequest,
			fmt.Sprintf("amount %.2f below parcel price %.2f", tx.Amount, parcel.Price))
	}
	r.getOrCreatePlayer(tx.PlayerID, "")
	if r.balance(tx.PlayerID) < parcel.Price {
		return fail(protocol.ErrInsufficientFunds,
			fmt.Sprintf("need %.2f, have %.2f", parcel.Price, r.balance(tx.PlayerID)))
	}

	price := parcel.Price
	if err := r.debit(tx.PlayerID, price); err != nil {
		return fail(protocol.ErrInvariant, err.Error())
	}
	// Land sales fund the commons: 100% of price to the treasury.
	r.treasury += price
	parcel.Owner = tx.PlayerID
	parcel.LastPaid = price

	// Land-speculation pressure: every purchase bumps the asking price of
	// the 8-adjacent parcels.
	r.neighbors8(tx.Loc, func(n Coord) {
		r.grid[n.Row][n.Col].Price += r.cfg.NeighborPriceBump
	})
	return r.okBalance(tx.PlayerID)
}

func (r *Room) applyCashSpend(tx CashSpendTx) txOutcome {
	if tx.Amount <= 0 {
		return fail(protocol.ErrBadRequest, "amount must be positive")
	}
	r.getOrCreatePlayer(tx.PlayerID, "")
	if r.balance(tx.PlayerID) < tx.Amount {
		return fail(protocol.ErrInsufficientFunds,
			fmt.Sprintf("need %.2f, have %.2f", tx.Amount, r.balance(tx.PlayerID)))
	}
	if err := r.debit(tx.PlayerID, tx.Amount); err != nil {
		return fail(protocol.ErrInvariant, err.Error())
	}
	return r.okBalance(tx.PlayerID)
}

func (r *Room) applyActionSpend(tx ActionSpendTx) txOutcome {
	if tx.Quantity <= 0 {
		return fail(protocol.ErrBadRequest, "quantity must be positive")
	}
	p := r.getOrCreatePlayer(tx.PlayerID, "")
	if p.Actions < tx.Quantity {
		return fail(protocol.ErrInsufficientActions,
			fmt.Sprintf("need %d actions, have %d", tx.Quantity, p.Actions))
	}
	p.Actions -= tx.Quantity
	r.markPlayerDirty(p.ID)
	return okOutcome()
}

func (r *Room) applyGovernanceVote(tx GovernanceVoteTx) txOutcome {
	p := r.getOrCreatePlayer(tx.PlayerID, "")
	for cat := range tx.Allocations {
		if _, ok := r.budgets[cat]; !ok {
			return fail(protocol.ErrUnknownID, fmt.Sprintf("unknown budget category %q", cat))
		}
	}
	if tx.LVTVote != nil && (*tx.LVTVote < 0 || *tx.LVTVote > 1) {
		return fail(protocol.ErrBadRequest, "lvtVote out of range")
	}

	if tx.Allocations != nil {
		p.Allocations = map[string]float64{}
		for cat, w := range tx.Allocations {
			if w > 0 {
				p.Allocations[cat] = w
			}
		}
	}
	if tx.LVTVote != nil {
		p.LVTVote = *tx.LVTVote
	}
	r.markPlayerDirty(p.ID)
	return okOutcome()
}
