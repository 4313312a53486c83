package room

import (
	"fmt"

	"civicgrid/internal/protocol"
)

type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingCancelled ListingStatus = "cancelled"
	ListingExpired   ListingStatus = "expired"
)

// Listing is an English auction over escrowed action credits, with a
// decaying buy-now premium.
type Listing struct {
	ID     string
	Seller string

	Quantity     int // action credits held in escrow
	ReservePrice float64
	BuyNowStart  float64

	CurrentBid  float64
	HighBidder  string
	EscrowedBid float64 // cash held from the high bidder

	CreatedDay int
	EndDay     int
	Status     ListingStatus
}

func (r *Room) newListingID() string {
	r.nextListingNum++
	return fmt.Sprintf("L%06d", r.nextListingNum)
}

// remainingFrac is 1.0 at creation and 0.0 at expiry.
func (l *Listing) remainingFrac(day int) float64 {
	total := l.EndDay - l.CreatedDay
	if total <= 0 {
		return 0
	}
	rem := float64(l.EndDay-day) / float64(total)
	if rem < 0 {
		return 0
	}
	if rem > 1 {
		return 1
	}
	return rem
}

// buyNowPrice decays the starting premium linearly to zero over the
// listing period. Once the current bid exceeds the decayed premium there
// is no free premium left: buy-now costs the current bid.
func (l *Listing) buyNowPrice(day int) float64 {
	premium := l.BuyNowStart * l.remainingFrac(day)
	if l.CurrentBid > premium {
		return l.CurrentBid
	}
	return premium
}

// cancelFee decays from a large multiple of the current bid (reserve when
// nobody has bid) down to zero as the listing period elapses.
func (r *Room) cancelFee(l *Listing) float64 {
	base := l.CurrentBid
	if base == 0 {
		base = l.ReservePrice
	}
	return r.cfg.CancelFeeMultiple * base * l.remainingFrac(r.day)
}

func (r *Room) applyCreateListing(tx CreateListingTx) txOutcome {
	p := r.getOrCreatePlayer(tx.PlayerID, "")
	if p.Actions < tx.Quantity {
		return fail(protocol.ErrInsufficientActions,
			fmt.Sprintf("need %d actions, have %d", tx.Quantity, p.Actions))
	}
	if tx.ReservePrice < 0 || tx.BuyNowPrice < 0 {
		return fail(protocol.ErrBadRequest, "negative price")
	}
	buyNow := tx.BuyNowPrice
	if buyNow == 0 {
		buyNow = tx.ReservePrice * 10
	}
	if buyNow > 0 && buyNow < tx.ReservePrice {
		return fail(protocol.ErrBadRequest, "buyNowPrice below reservePrice")
	}

	// Seller escrows the credits, not cash.
	p.Actions -= tx.Quantity
	r.markPlayerDirty(p.ID)

	l := &Listing{
		ID:           r.newListingID(),
		Seller:       tx.PlayerID,
		Quantity:     tx.Quantity,
		ReservePrice: tx.ReservePrice,
		BuyNowStart:  buyNow,
		CreatedDay:   r.day,
		EndDay:       r.day + r.cfg.ListingDays,
		Status:       ListingActive,
	}
	r.listings[l.ID] = l
	return okOutcome()
}

func (r *Room) applyBid(tx BidTx) txOutcome {
	l := r.listings[tx.ListingID]
	if l == nil {
		return fail(protocol.ErrUnknownID, "listing not found")
	}
	if l.Status != ListingActive {
		return fail(protocol.ErrConflict, "listing not active")
	}
	if l.Seller == tx.PlayerID {
		return fail(protocol.ErrBadRequest, "cannot bid on own listing")
	}
	if tx.BidAmount < l.ReservePrice {
		return fail(protocol.ErrBadRequest,
			fmt.Sprintf("bid %.2f below reserve %.2f", tx.BidAmount, l.ReservePrice))
	}
	if tx.BidAmount <= l.CurrentBid {
		return fail(protocol.ErrBadRequest,
			fmt.Sprintf("bid %.2f not above current %.2f", tx.BidAmount, l.CurrentBid))
	}
	r.getOrCreatePlayer(tx.PlayerID, "")
	if r.balance(tx.PlayerID) < tx.BidAmount {
		return fail(protocol.ErrInsufficientFunds,
			fmt.Sprintf("need %.2f, have %.2f", tx.BidAmount, r.balance(tx.PlayerID)))
	}

	if err := r.debit(tx.PlayerID, tx.BidAmount); err != nil {
		return fail(protocol.ErrInvariant, err.Error())
	}
	// Refund the outbid player exactly what they escrowed.
	if l.HighBidder != "" {
		r.credit(l.HighBidder, l.EscrowedBid)
	}
	l.CurrentBid = tx.BidAmount
	l.HighBidder = tx.PlayerID
	l.EscrowedBid = tx.BidAmount
	return r.okBalance(tx.PlayerID)
}

func (r *Room) applyBuyNow(tx BuyNowTx) txOutcome {
	l := r.listings[tx.ListingID]
	if l == nil {
		return fail(protocol.ErrUnknownID, "listing not found")
	}
	if l.Status != ListingActive {
		return fail(protocol.ErrConflict, "listing not active")
	}
	if l.Seller == tx.PlayerID {
		return fail(protocol.ErrBadRequest, "cannot buy own listing")
	}
	price := l.buyNowPrice(r.day)
	if price <= 0 {
		return fail(protocol.ErrConflict, "buy-now not available")
	}
	r.getOrCreatePlayer(tx.PlayerID, "")
	if r.balance(tx.PlayerID) < price {
		return fail(protocol.ErrInsufficientFunds,
			fmt.Sprintf("need %.2f, have %.2f", price, r.balance(tx.PlayerID)))
	}

	if err := r.debit(tx.PlayerID, price); err != nil {
		return fail(protocol.ErrInvariant, err.Error())
	}
	if l.HighBidder != "" {
		r.credit(l.HighBidder, l.EscrowedBid)
		l.HighBidder = ""
		l.EscrowedBid = 0
	}
	r.settleListing(l, tx.PlayerID, price)
	return r.okBalance(tx.PlayerID)
}

func (r *Room) applyCancelListing(tx CancelListingTx) txOutcome {
	l := r.listings[tx.ListingID]
	if l == nil {
		return fail(protocol.ErrUnknownID, "listing not found")
	}
	if l.Seller != tx.PlayerID {
		return fail(protocol.ErrNotOwner, "not the seller")
	}
	if l.Status != ListingActive {
		return fail(protocol.ErrConflict, "listing not active")
	}
	fee := r.cancelFee(l)
	if r.balance(tx.PlayerID) < fee {
		return fail(protocol.ErrInsufficientFunds,
			fmt.Sprintf("cancel fee %.2f exceeds balance %.2f", fee, r.balance(tx.PlayerID)))
	}

	if fee > 0 {
		if err := r.debit(tx.PlayerID, fee); err != nil {
			return fail(protocol.ErrInvariant, err.Error())
		}
		r.treasury += fee
	}
	if l.HighBidder != "" {
		r.credit(l.HighBidder, l.EscrowedBid)
		l.HighBidder = ""
		l.EscrowedBid = 0
	}
	r.releaseListingCredits(l)
	l.Status = ListingCancelled
	return r.okBalance(tx.PlayerID)
}

// applyEndEarly settles to the current high bidder immediately. The seller
// pays the same decaying fee as cancellation; with no bids it behaves as a
// cancel.
func (r *Room) applyEndEarly(tx EndEarlyTx) txOutcome {
	l := r.listings[tx.ListingID]
	if l == nil {
		return fail(protocol.ErrUnknownID, "listing not found")
	}
	if l.Seller != tx.PlayerID {
		return fail(protocol.ErrNotOwner, "not the seller")
	}
	if l.Status != ListingActive {
		return fail(protocol.ErrConflict, "listing not active")
	}
	fee := r.cancelFee(l)
	if r.balance(tx.PlayerID) < fee {
		return fail(protocol.ErrInsufficientFunds,
			fmt.Sprintf("end-early fee %.2f exceeds balance %.2f", fee, r.balance(tx.PlayerID)))
	}

	if fee > 0 {
		if err := r.debit(tx.PlayerID, fee); err != nil {
			return fail(protocol.ErrInvariant, err.Error())
		}
		r.treasury += fee
	}
	if l.HighBidder == "" {
		r.releaseListingCredits(l)
		l.Status = ListingCancelled
		return r.okBalance(tx.PlayerID)
	}
	buyer := l.HighBidder
	bid := l.EscrowedBid
	l.HighBidder = ""
	l.EscrowedBid = 0
	r.settleListing(l, buyer, bid)
	return r.okBalance(tx.PlayerID)
}

// settleListing pays the seller and delivers the escrowed credits. price is
// cash already collected (escrowed bid or buy-now debit).
func (r *Room) settleListing(l *Listing, buyer string, price float64) {
	r.credit(l.Seller, price)
	b := r.getOrCreatePlayer(buyer, "")
	b.Actions += l.Quantity
	r.markPlayerDirty(b.ID)
	l.Status = ListingSold
}

// releaseListingCredits returns escrowed action credits to the seller.
func (r *Room) releaseListingCredits(l *Listing) {
	s := r.getOrCreatePlayer(l.Seller, "")
	s.Actions += l.Quantity
	r.markPlayerDirty(s.ID)
}

// expireListings is the scheduled terminal transition for listings past
// their end day: settle to the high bidder or return the credits.
func (r *Room) expireListings() {
	for _, l := range r.listings {
		if l.Status != ListingActive || r.day < l.EndDay {
			continue
		}
		if l.HighBidder != "" {
			buyer := l.HighBidder
			bid := l.EscrowedBid
			l.HighBidder = ""
			l.EscrowedBid = 0
			r.settleListing(l, buyer, bid)
		} else {
			r.releaseListingCredits(l)
			l.Status = ListingExpired
		}
	}
}
