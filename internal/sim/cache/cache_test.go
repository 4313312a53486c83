package cache

import (
	"testing"
	"time"
)

func newTestStore() *Store {
	return New(12, 5, 30*time.Second)
}

func TestGetPut(t *testing.T) {
	s := newTestStore()
	if _, ok := s.Get(GlobalKey()); ok {
		t.Fatalf("empty store must miss")
	}
	s.Put(GlobalKey(), 42)
	v, ok := s.Get(GlobalKey())
	if !ok || v.(int) != 42 {
		t.Fatalf("got %v,%v", v, ok)
	}
}

func TestBuildingChanged_DirtiesGlobalAndRadius(t *testing.T) {
	s := newTestStore()
	s.Put(GlobalKey(), "g")
	s.Put(LocationKey(6, 6), "near")
	s.Put(LocationKey(6, 11), "edge") // Chebyshev distance 5, still inside
	s.Put(LocationKey(0, 0), "far")
	s.Put(PlayerKey("P1"), "p")

	s.Invalidate(Change{Kind: BuildingChanged, Row: 6, Col: 6})

	if _, ok := s.Get(GlobalKey()); ok {
		t.Fatalf("global survived")
	}
	if _, ok := s.Get(LocationKey(6, 6)); ok {
		t.Fatalf("changed location survived")
	}
	if _, ok := s.Get(LocationKey(6, 11)); ok {
		t.Fatalf("radius edge survived")
	}
	if _, ok := s.Get(LocationKey(0, 0)); !ok {
		t.Fatalf("out-of-radius location was dirtied")
	}
	if _, ok := s.Get(PlayerKey("P1")); !ok {
		t.Fatalf("player cache was dirtied")
	}
}

func TestLedgerChanged_DirtiesOnlyThatPlayer(t *testing.T) {
	s := newTestStore()
	s.Put(GlobalKey(), "g")
	s.Put(PlayerKey("P1"), "a")
	s.Put(PlayerKey("P2"), "b")

	s.Invalidate(Change{Kind: LedgerChanged, PlayerID: "P1"})

	if _, ok := s.Get(PlayerKey("P1")); ok {
		t.Fatalf("P1 survived")
	}
	if _, ok := s.Get(PlayerKey("P2")); !ok {
		t.Fatalf("P2 was dirtied")
	}
	if _, ok := s.Get(GlobalKey()); !ok {
		t.Fatalf("global was dirtied")
	}
}

func TestPopulationChanged_DirtiesOnlyGlobal(t *testing.T) {
	s := newTestStore()
	s.Put(GlobalKey(), "g")
	s.Put(LocationKey(3, 3), "loc")
	s.Put(PlayerKey("P1"), "p")

	s.Invalidate(Change{Kind: PopulationChanged})

	if _, ok := s.Get(GlobalKey()); ok {
		t.Fatalf("global survived")
	}
	if _, ok := s.Get(LocationKey(3, 3)); !ok {
		t.Fatalf("location was dirtied")
	}
	if _, ok := s.Get(PlayerKey("P1")); !ok {
		t.Fatalf("player was dirtied")
	}
}

func TestTTLExpiry(t *testing.T) {
	s := newTestStore()
	clock := time.Now()
	s.now = func() time.Time { return clock }

	s.Put(GlobalKey(), "g")
	clock = clock.Add(29 * time.Second)
	if _, ok := s.Get(GlobalKey()); !ok {
		t.Fatalf("entry expired inside the TTL")
	}
	clock = clock.Add(2 * time.Second)
	if _, ok := s.Get(GlobalKey()); ok {
		t.Fatalf("entry outlived the TTL")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	s := New(12, 5, 0)
	clock := time.Now()
	s.now = func() time.Time { return clock }

	s.Put(GlobalKey(), "g")
	clock = clock.Add(24 * time.Hour)
	if _, ok := s.Get(GlobalKey()); !ok {
		t.Fatalf("zero TTL must disable expiry")
	}
}

func TestInvalidateAll(t *testing.T) {
	s := newTestStore()
	s.Put(GlobalKey(), "g")
	s.Put(PlayerKey("P1"), "p")
	s.Put(LocationKey(1, 1), "loc")

	s.InvalidateAll()

	for _, key := range []string{GlobalKey(), PlayerKey("P1"), LocationKey(1, 1)} {
		if _, ok := s.Get(key); ok {
			t.Fatalf("%s survived InvalidateAll", key)
		}
	}
	if s.Len() != 3 {
		t.Fatalf("Len=%d, want 3", s.Len())
	}
}
