package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Room routing/state.
	ErrRoomNotFound = "E_ROOM_NOT_FOUND"
	ErrRoomBusy     = "E_ROOM_BUSY"
	ErrGameOver     = "E_GAME_OVER"

	// Transaction validation layer.
	ErrBadRequest          = "E_BAD_REQUEST"
	ErrDuplicateTx         = "E_DUPLICATE_TX"
	ErrInsufficientFunds   = "E_INSUFFICIENT_FUNDS"
	ErrInsufficientActions = "E_INSUFFICIENT_ACTIONS"
	ErrNotOwner            = "E_NOT_OWNER"
	ErrInvalidLocation     = "E_INVALID_LOCATION"
	ErrUnknownID           = "E_UNKNOWN_ID"
	ErrOfferLimit          = "E_OFFER_LIMIT"
	ErrConflict            = "E_CONFLICT"

	// Data/invariant layer.
	ErrMissingData = "E_MISSING_DATA"
	ErrInvariant   = "E_INVARIANT"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:     {},
	ErrRoomNotFound:        {},
	ErrRoomBusy:            {},
	ErrGameOver:            {},
	ErrBadRequest:          {},
	ErrDuplicateTx:         {},
	ErrInsufficientFunds:   {},
	ErrInsufficientActions: {},
	ErrNotOwner:            {},
	ErrInvalidLocation:     {},
	ErrUnknownID:           {},
	ErrOfferLimit:          {},
	ErrConflict:            {},
	ErrMissingData:         {},
	ErrInvariant:           {},
	ErrInternal:            {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
