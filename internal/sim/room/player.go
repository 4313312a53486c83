package room

import (
	"fmt"

	"civicgrid/internal/sim/cache"
)

// Player carries everything but the cash balance. Balances live only in the
// room's ledger so there is never a stale duplicate to trust.
type Player struct {
	ID   string
	Name string

	Actions      int
	VotingPoints int

	// Governance allocation weights per budget category, plus the LVT vote.
	Allocations map[string]float64
	LVTVote     float64

	// Cumulative totals used for scoring.
	LVTPaid       float64
	FundsReceived float64

	ResumeToken string
}

// getOrCreatePlayer creates ledger and player entries lazily on first
// reference.
func (r *Room) getOrCreatePlayer(id, name string) *Player {
	if p := r.players[id]; p != nil {
		return p
	}
	if name == "" {
		name = id
	}
	p := &Player{
		ID:          id,
		Name:        name,
		Actions:     r.cfg.StartingActions,
		Allocations: map[string]float64{},
		LVTVote:     r.lvtRate,
	}
	r.players[id] = p
	r.balances[id] = r.cfg.StartingBalance
	r.markPlayerDirty(id)
	return p
}

// credit and debit are the only ways the ledger moves. debit callers must
// have validated sufficiency first; a negative result is an invariant
// violation reported by the transaction layer.
func (r *Room) credit(playerID string, amount float64) {
	r.balances[playerID] += amount
	r.cache.Invalidate(cache.Change{Kind: cache.LedgerChanged, PlayerID: playerID})
	r.markPlayerDirty(playerID)
}

func (r *Room) debit(playerID string, amount float64) error {
	if r.balances[playerID] < amount {
		return fmt.Errorf("balance %.2f below debit %.2f", r.balances[playerID], amount)
	}
	r.balances[playerID] -= amount
	r.cache.Invalidate(cache.Change{Kind: cache.LedgerChanged, PlayerID: playerID})
	r.markPlayerDirty(playerID)
	return nil
}

func (r *Room) balance(playerID string) float64 { return r.balances[playerID] }

func (r *Room) newPlayerID() string {
	r.nextPlayerNum++
	return fmt.Sprintf("P%d", r.nextPlayerNum)
}
