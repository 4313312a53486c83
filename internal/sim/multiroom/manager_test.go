package multiroom

import (
	"context"
	"sync/atomic"
	"testing"

	"civicgrid/internal/sim/catalog"
	"civicgrid/internal/sim/room"
	"civicgrid/internal/sim/tuning"
)

func newTestManager(t *testing.T, hook RoomHook) *Manager {
	t.Helper()
	cats, err := catalog.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	m := NewManager(tuning.Defaults(), cats, hook)
	m.SetMaxPlayersPerRoom(2)
	ctx, cancel := context.WithCancel(context.Background())
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		m.StopAll()
		cancel()
	})
	return m
}

func TestRoute_SpawnsWhenFull(t *testing.T) {
	m := newTestManager(t, nil)

	r1, err := m.Route("", "")
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	r2, err := m.Route("", "")
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if r1.ID() != "room_1" || r2.ID() != "room_1" {
		t.Fatalf("first two joins split: %s, %s", r1.ID(), r2.ID())
	}

	r3, err := m.Route("", "")
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if r3.ID() != "room_2" {
		t.Fatalf("full room not skipped, got %s", r3.ID())
	}
	if got := m.RoomIDs(); len(got) != 2 || got[0] != "room_1" || got[1] != "room_2" {
		t.Fatalf("RoomIDs = %v", got)
	}
}

func TestRoute_ResumeTokenWinsEvenWhenFull(t *testing.T) {
	m := newTestManager(t, nil)

	for i := 0; i < 2; i++ {
		if _, err := m.Route("", ""); err != nil {
			t.Fatalf("Route: %v", err)
		}
	}
	m.Bind("tok-abc", "room_1")

	r, err := m.Route("", "tok-abc")
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if r.ID() != "room_1" {
		t.Fatalf("resume landed in %s", r.ID())
	}
}

func TestRoute_PreferenceRespectedWhenOpen(t *testing.T) {
	m := newTestManager(t, nil)

	// Fill room_1 so a new join would otherwise spawn room_2; then ask
	// for room_1 explicitly once a slot frees up.
	for i := 0; i < 2; i++ {
		if _, err := m.Route("", ""); err != nil {
			t.Fatalf("Route: %v", err)
		}
	}
	m.Release("room_1")

	r, err := m.Route("room_1", "")
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if r.ID() != "room_1" {
		t.Fatalf("preference ignored, got %s", r.ID())
	}
}

func TestRelease_FreesJoinSlot(t *testing.T) {
	m := newTestManager(t, nil)

	for i := 0; i < 2; i++ {
		if _, err := m.Route("", ""); err != nil {
			t.Fatalf("Route: %v", err)
		}
	}
	m.Release("room_1")

	r, err := m.Route("", "")
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if r.ID() != "room_1" {
		t.Fatalf("released slot not reused, got %s", r.ID())
	}
}

func TestHook_RunsOncePerSpawnedRoom(t *testing.T) {
	var hooked atomic.Int32
	m := newTestManager(t, func(r *room.Room) {
		hooked.Add(1)
	})
	if got := hooked.Load(); got != 1 {
		t.Fatalf("hooks after Start = %d", got)
	}

	for i := 0; i < 3; i++ {
		if _, err := m.Route("", ""); err != nil {
			t.Fatalf("Route: %v", err)
		}
	}
	if got := hooked.Load(); got != 2 {
		t.Fatalf("hooks after spawn = %d", got)
	}
}
