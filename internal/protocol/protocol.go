package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello    = "HELLO"
	TypeWelcome  = "WELCOME"
	TypeCatalog  = "CATALOG"
	TypeTxResult = "TX_RESULT"
	TypeState    = "STATE"
	TypeDelta    = "STATE_DELTA"
	TypeVictory  = "VICTORY"
	TypeMonth    = "MONTH"
	TypeScores   = "SCORES"
)

// Transaction types. These double as the "type" field of inbound envelopes.
const (
	TxBuildStart     = "BUILD_START"
	TxBuildComplete  = "BUILD_COMPLETE"
	TxDestroy        = "DESTROY_BUILDING"
	TxRepair         = "REPAIR_BUILDING"
	TxParcelPurchase = "PARCEL_PURCHASE"
	TxCashSpend      = "CASH_SPEND"
	TxActionSpend    = "ACTION_SPEND"

	TxActionCreateListing = "ACTION_CREATE_LISTING"
	TxActionBid           = "ACTION_BID"
	TxActionBuyNow        = "ACTION_BUY_NOW"
	TxActionCancelListing = "ACTION_CANCEL_LISTING"
	TxActionEndEarly      = "ACTION_END_EARLY"

	TxExchangeMakeOffer = "LAND_EXCHANGE_MAKE_OFFER"
	TxExchangeRespond   = "LAND_EXCHANGE_RESPOND"
	TxExchangeWithdraw  = "LAND_EXCHANGE_WITHDRAW"

	TxGovernanceVote = "GOVERNANCE_VOTE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// IsTxType reports whether a message type names a player transaction.
func IsTxType(t string) bool {
	switch t {
	case TxBuildStart, TxBuildComplete, TxDestroy, TxRepair,
		TxParcelPurchase, TxCashSpend, TxActionSpend,
		TxActionCreateListing, TxActionBid, TxActionBuyNow,
		TxActionCancelListing, TxActionEndEarly,
		TxExchangeMakeOffer, TxExchangeRespond, TxExchangeWithdraw,
		TxGovernanceVote:
		return true
	}
	return false
}
