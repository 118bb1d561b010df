package core

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/metrics"
)

// Registry is the single source of truth for which rooms exist.
// Its mutex guards only the map; room state lives in each room's goroutine.
type Registry struct {
	opts Options
	log  zerolog.Logger

	mu          sync.Mutex
	rooms       map[string]*Room
	provisioned map[string]struct{}
	closed      bool
}

// NewRegistry builds an empty registry and provisions the configured rooms.
func NewRegistry(opts Options, logger *zerolog.Logger) *Registry {
	opts = opts.withDefaults()
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}
	g := &Registry{
		opts:        opts,
		log:         log,
		rooms:       make(map[string]*Room),
		provisioned: make(map[string]struct{}),
	}
	for _, id := range opts.ProvisionedRooms {
		g.Provision(id)
	}
	return g
}

// GetOrCreate returns the room with the given id, creating it if needed.
// After Close it returns a room that rejects every operation.
func (g *Registry) GetOrCreate(roomID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getOrCreateLocked(roomID)
}

func (g *Registry) getOrCreateLocked(roomID string) *Room {
	if room, ok := g.rooms[roomID]; ok {
		return room
	}

	_, provisioned := g.provisioned[roomID]
	room := newRoom(roomID, g.opts, g, g.opts.RetainEmptyRooms || provisioned, g.log)
	if g.closed {
		close(room.done)
		return room
	}
	g.rooms[roomID] = room
	room.start()

	metrics.RoomsCreated.Inc()
	metrics.RoomsActive.Inc()
	g.log.Debug().Str("room", roomID).Msg("room created")
	return room
}

// Get resolves a room for joining. Rooms are created lazily unless the
// registry requires them to be provisioned, in which case unknown ids fail
// with ErrRoomNotFound.
func (g *Registry) Get(roomID string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.opts.RequireProvisioned {
		if _, ok := g.provisioned[roomID]; !ok {
			return nil, coreError(ErrRoomNotFound, ErrCodeRoomNotFound, "room "+roomID+" not found")
		}
	}
	return g.getOrCreateLocked(roomID), nil
}

// Provision creates a room that is kept even while empty. An existing room
// created on demand is promoted in place.
func (g *Registry) Provision(roomID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.provisioned[roomID] = struct{}{}
	room := g.getOrCreateLocked(roomID)
	room.retain.Store(true)
	return room
}

// Lookup returns an existing room without creating one.
func (g *Registry) Lookup(roomID string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[roomID]
	return room, ok
}

// Remove deletes an empty room. It is a no-op when the room does not exist
// or still has members.
func (g *Registry) Remove(ctx context.Context, roomID string) (bool, error) {
	room, ok := g.Lookup(roomID)
	if !ok {
		return false, nil
	}
	return room.removeIfEmpty(ctx)
}

// forget is called from a room's goroutine when it releases itself. A
// self-release is refused once the room is retained; an explicit removal
// also drops the provisioning.
func (g *Registry) forget(room *Room, explicit bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	current, ok := g.rooms[room.ID]
	if !ok || current != room {
		return true
	}
	if !explicit && room.retain.Load() {
		return false
	}
	if explicit {
		delete(g.provisioned, room.ID)
	}
	delete(g.rooms, room.ID)
	metrics.RoomsRemoved.Inc()
	metrics.RoomsActive.Dec()
	g.log.Debug().Str("room", room.ID).Msg("room removed")
	return true
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// RoomIDs returns the ids of live rooms in lexical order.
func (g *Registry) RoomIDs() []string {
	g.mu.Lock()
	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Close stops every room. Later lookups yield rooms that reject operations.
func (g *Registry) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	g.rooms = make(map[string]*Room)
	g.mu.Unlock()

	for _, room := range rooms {
		room.shutdown()
		metrics.RoomsRemoved.Inc()
		metrics.RoomsActive.Dec()
	}
	g.log.Info().Int("rooms", len(rooms)).Msg("registry closed")
}
