package room

import (
	"sort"

	"civicgrid/internal/protocol"
)

const wealthScoreDivisor = 1000.0

// civicRatio scales civic credit by how a player's tax contributions
// compare to the public funds they drew. Paying in at least as much as you
// took out earns full credit; net recipients are scaled down.
func civicRatio(lvtPaid, fundsReceived float64) float64 {
	if fundsReceived <= 0 {
		return 1.0
	}
	ratio := lvtPaid / fundsReceived
	if ratio > 1 {
		return 1.0
	}
	return ratio
}

func (r *Room) wealthScore(id string) float64 {
	return r.playerWealth(id) / wealthScoreDivisor
}

// civicScore sums the civic value of a player's completed buildings, caps
// the raw total, then applies the contribution ratio.
func (r *Room) civicScore(p *Player) float64 {
	var raw float64
	for _, b := range r.buildings {
		if b.Owner != p.ID || b.UnderConstruction {
			continue
		}
		def, ok := r.catalog.Get(b.TypeID)
		if !ok {
			continue
		}
		raw += def.CivicScore
	}
	if raw > r.cfg.CivicScoreCap {
		raw = r.cfg.CivicScoreCap
	}
	return raw * civicRatio(p.LVTPaid, p.FundsReceived)
}

// scoreEntries ranks every player by combined wealth and civic score,
// highest first.
func (r *Room) scoreEntries() []protocol.ScoreEntry {
	entries := make([]protocol.ScoreEntry, 0, len(r.players))
	for id, p := range r.players {
		w := r.wealthScore(id)
		c := r.civicScore(p)
		entries = append(entries, protocol.ScoreEntry{
			PlayerID:    id,
			PlayerName:  p.Name,
			WealthScore: w,
			CivicScore:  c,
			Score:       w + c,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	return entries
}

func (r *Room) leaderID() string {
	entries := r.scoreEntries()
	if len(entries) == 0 {
		return ""
	}
	return entries[0].PlayerID
}

// checkVictory ends the game when the leader clears the score threshold
// and the city holds its minimum population.
func (r *Room) checkVictory() bool {
	if r.population < r.cfg.VictoryMinPop {
		return false
	}
	entries := r.scoreEntries()
	if len(entries) == 0 || entries[0].Score < r.cfg.VictoryScore {
		return false
	}
	r.endGame(entries[0].PlayerID, "threshold")
	return true
}

func (r *Room) endGame(winnerID, reason string) {
	if r.ended {
		return
	}
	r.ended = true
	r.winnerID = winnerID
	r.victoryReason = reason

	var winnerName string
	if p := r.players[winnerID]; p != nil {
		winnerName = p.Name
	}

	var totalWealth float64
	for id := range r.players {
		totalWealth += r.playerWealth(id)
	}

	msg := protocol.VictoryMsg{
		Type:       protocol.TypeVictory,
		WinnerID:   winnerID,
		WinnerName: winnerName,
		Reason:     reason,
		Day:        r.day,
		Scores:     r.scoreEntries(),
		Summary: protocol.GameSummary{
			FinalPopulation: r.population,
			TotalWealth:     totalWealth,
			TotalBuildings:  len(r.buildings),
			LVTCollected:    r.lvtCollected,
			PublicSpending:  r.publicSpending,
			FinalLVTRate:    r.lvtRate,
		},
	}
	r.broadcast(msg)
	r.audit("room", "game_over", map[string]any{
		"winner": winnerID,
		"reason": reason,
		"day":    r.day,
	})
}
