// Package cache memoizes economic calculator outputs. Invalidate is the
// only entry point allowed to mark entries stale; the change kind decides
// the blast radius.
package cache

import (
	"fmt"
	"time"
)

type Kind int

const (
	// A building was added, removed, or materially changed at a location.
	// Dirties the global aggregates plus every location cache within the
	// influence radius (livability attenuation reaches several tiles).
	BuildingChanged Kind = iota
	// A player ledger entry changed. Dirties only that player's caches.
	LedgerChanged
	// Resident population changed. Dirties only the global aggregates.
	PopulationChanged
)

type Change struct {
	Kind     Kind
	Row, Col int
	PlayerID string
}

type entry struct {
	data       any
	dirty      bool
	computedAt time.Time
}

type Store struct {
	gridSize int
	radius   int
	ttl      time.Duration
	entries  map[string]*entry

	now func() time.Time
}

func New(gridSize, influenceRadius int, ttl time.Duration) *Store {
	return &Store{
		gridSize: gridSize,
		radius:   influenceRadius,
		ttl:      ttl,
		entries:  map[string]*entry{},
		now:      time.Now,
	}
}

func GlobalKey() string              { return "global" }
func PlayerKey(id string) string     { return "player:" + id }
func LocationKey(row, col int) string { return fmt.Sprintf("loc:%d,%d", row, col) }

// Get returns the cached value for key. A dirty entry, or a clean entry
// older than the TTL, is a miss.
func (s *Store) Get(key string) (any, bool) {
	e := s.entries[key]
	if e == nil || e.dirty {
		return nil, false
	}
	if s.ttl > 0 && s.now().Sub(e.computedAt) > s.ttl {
		return nil, false
	}
	return e.data, true
}

// Put stores a freshly computed value and marks it clean.
func (s *Store) Put(key string, v any) {
	s.entries[key] = &entry{data: v, computedAt: s.now()}
}

// Invalidate marks entries dirty according to the change kind.
func (s *Store) Invalidate(ch Change) {
	switch ch.Kind {
	case BuildingChanged:
		s.markDirty(GlobalKey())
		for r := ch.Row - s.radius; r <= ch.Row+s.radius; r++ {
			if r < 0 || r >= s.gridSize {
				continue
			}
			for c := ch.Col - s.radius; c <= ch.Col+s.radius; c++ {
				if c < 0 || c >= s.gridSize {
					continue
				}
				s.markDirty(LocationKey(r, c))
			}
		}
	case LedgerChanged:
		s.markDirty(PlayerKey(ch.PlayerID))
	case PopulationChanged:
		s.markDirty(GlobalKey())
	}
}

// InvalidateAll dirties every entry (room reset, snapshot import).
func (s *Store) InvalidateAll() {
	for _, e := range s.entries {
		e.dirty = true
	}
}

func (s *Store) markDirty(key string) {
	if e := s.entries[key]; e != nil {
		e.dirty = true
	}
}

// Len reports how many entries are held (clean or dirty).
func (s *Store) Len() int { return len(s.entries) }
