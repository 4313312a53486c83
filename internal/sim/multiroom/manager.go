package multiroom

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"civicgrid/internal/sim/catalog"
	"civicgrid/internal/sim/room"
	"civicgrid/internal/sim/tuning"
)

const defaultMaxPlayersPerRoom = 8

// Runtime pairs a running room with its loop cancellation.
type Runtime struct {
	Room   *room.Room
	cancel context.CancelFunc
	joined int
}

// RoomHook runs once per spawned room, before its loop starts. The server
// uses it to attach loggers and the snapshot sink.
type RoomHook func(r *room.Room)

// Manager owns the set of live rooms and routes joining players. Rooms are
// spawned on demand when every existing room is full.
type Manager struct {
	mu sync.RWMutex

	tun     tuning.Tuning
	catalog *catalog.Catalog
	hook    RoomHook

	rooms        map[string]*Runtime
	resumeToRoom map[string]string

	maxPlayers  int
	nextRoomNum int

	ctx context.Context
}

func NewManager(t tuning.Tuning, cats *catalog.Catalog, hook RoomHook) *Manager {
	return &Manager{
		tun:          t,
		catalog:      cats,
		hook:         hook,
		rooms:        map[string]*Runtime{},
		resumeToRoom: map[string]string{},
		maxPlayers:   defaultMaxPlayersPerRoom,
	}
}

// SetMaxPlayersPerRoom must be called before Start.
func (m *Manager) SetMaxPlayersPerRoom(n int) {
	if n > 0 {
		m.maxPlayers = n
	}
}

// Start spawns the first room. The context bounds every room loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx = ctx
	_, err := m.spawnLocked()
	return err
}

func (m *Manager) spawnLocked() (*Runtime, error) {
	m.nextRoomNum++
	id := fmt.Sprintf("room_%d", m.nextRoomNum)
	cfg, err := room.ConfigFromTuning(id, m.tun)
	if err != nil {
		return nil, err
	}
	r := room.New(cfg, m.catalog)
	if m.hook != nil {
		m.hook(r)
	}
	ctx, cancel := context.WithCancel(m.ctx)
	rt := &Runtime{Room: r, cancel: cancel}
	m.rooms[id] = rt
	go func() { _ = r.Run(ctx) }()
	return rt, nil
}

// Route picks the room for a joining player: their previous room when a
// resume token matches, the preferred room when it exists and has space,
// otherwise the first open room, spawning a new one when all are full.
func (m *Manager) Route(preference, resumeToken string) (*room.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if resumeToken != "" {
		if id, ok := m.resumeToRoom[resumeToken]; ok {
			if rt := m.rooms[id]; rt != nil {
				rt.joined++
				return rt.Room, nil
			}
		}
	}
	if preference != "" {
		if rt := m.rooms[preference]; rt != nil && rt.joined < m.maxPlayers {
			rt.joined++
			return rt.Room, nil
		}
	}

	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if rt := m.rooms[id]; rt.joined < m.maxPlayers {
			rt.joined++
			return rt.Room, nil
		}
	}

	rt, err := m.spawnLocked()
	if err != nil {
		return nil, err
	}
	rt.joined++
	return rt.Room, nil
}

// Bind records which room a resume token belongs to, so reconnects land in
// the same city.
func (m *Manager) Bind(resumeToken, roomID string) {
	if resumeToken == "" {
		return
	}
	m.mu.Lock()
	m.resumeToRoom[resumeToken] = roomID
	m.mu.Unlock()
}

// Release frees a join slot when a connection drops.
func (m *Manager) Release(roomID string) {
	m.mu.Lock()
	if rt := m.rooms[roomID]; rt != nil && rt.joined > 0 {
		rt.joined--
	}
	m.mu.Unlock()
}

// RoomIDs lists live rooms in stable order.
func (m *Manager) RoomIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StopAll cancels every room loop.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rt := range m.rooms {
		rt.cancel()
	}
}
