package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrRoomNotFound,
		ErrRoomBusy,
		ErrGameOver,
		ErrBadRequest,
		ErrDuplicateTx,
		ErrInsufficientFunds,
		ErrInsufficientActions,
		ErrNotOwner,
		ErrInvalidLocation,
		ErrUnknownID,
		ErrOfferLimit,
		ErrConflict,
		ErrMissingData,
		ErrInvariant,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestIsTxType(t *testing.T) {
	for _, tt := range []string{
		TxBuildStart, TxBuildComplete, TxDestroy, TxRepair,
		TxParcelPurchase, TxCashSpend, TxActionSpend,
		TxActionCreateListing, TxActionBid, TxActionBuyNow,
		TxActionCancelListing, TxActionEndEarly,
		TxExchangeMakeOffer, TxExchangeRespond, TxExchangeWithdraw,
	} {
		if !IsTxType(tt) {
			t.Fatalf("expected tx type: %q", tt)
		}
	}
	if IsTxType(TypeHello) {
		t.Fatalf("HELLO is not a tx type")
	}
}
