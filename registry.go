package main

import (
	"sort"
	"sync"
	"time"
)

const (
	maxRooms     = 200
	openRoomsCap = 25

	TickRate     = 60 // room updates per second
	TickDuration = time.Second / TickRate
)

// Registry holds every live room and drives them all from a single
// fixed-rate scheduler. Rooms are independent; no tick ever blocks on
// another room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	auth  *Auth
	stop  chan struct{}
	once  sync.Once
}

// NewRegistry creates an empty registry.
func NewRegistry(auth *Auth) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		auth:  auth,
		stop:  make(chan struct{}),
	}
}

// CreateRoom creates and registers a room, minting signed player tokens.
// Returns nil if the room limit is reached.
func (reg *Registry) CreateRoom(mode string, pieceCount int, difficulty string, now time.Time) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if len(reg.rooms) >= maxRooms {
		return nil
	}

	room := NewRoom(mode, pieceCount, difficulty, now)
	if reg.auth != nil {
		for side, p := range room.Players {
			if token, err := reg.auth.MintToken(room.ID, side); err == nil {
				p.Token = token
			}
		}
	}
	reg.rooms[room.ID] = room
	return room
}

// Get returns a room by id, or nil.
func (reg *Registry) Get(id string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[id]
}

// Remove tears a room down immediately.
func (reg *Registry) Remove(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, id)
}

// RoomCount returns the number of live rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Run drives the scheduler until Stop is called.
func (reg *Registry) Run() {
	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reg.Sweep(time.Now())
		case <-reg.stop:
			return
		}
	}
}

// Stop terminates the scheduler loop.
func (reg *Registry) Stop() {
	reg.once.Do(func() { close(reg.stop) })
}

// Sweep advances every room one tick and expires the dead ones. Ticking
// happens outside the registry lock; per-room mutexes serialize against
// concurrent API calls.
func (reg *Registry) Sweep(now time.Time) {
	reg.mu.RLock()
	live := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		live = append(live, room)
	}
	reg.mu.RUnlock()

	var expired []string
	for _, room := range live {
		room.Tick(now)
		if room.Expired(now) {
			expired = append(expired, room.ID)
		}
	}

	if len(expired) > 0 {
		reg.mu.Lock()
		for _, id := range expired {
			delete(reg.rooms, id)
		}
		reg.mu.Unlock()
	}
}

// OpenRooms computes the public matchmaking list, newest-first and capped,
// plus a count of recently-active human players across all rooms.
func (reg *Registry) OpenRooms(now time.Time) ([]RoomListing, int) {
	reg.mu.RLock()
	live := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		live = append(live, room)
	}
	reg.mu.RUnlock()

	listings := make([]RoomListing, 0, len(live))
	online := 0
	for _, room := range live {
		online += room.ActiveHumans(now)
		if listing, ok := room.JoinableInfo(now); ok {
			listings = append(listings, listing)
		}
	}

	sort.Slice(listings, func(i, j int) bool {
		return listings[i].CreatedAt > listings[j].CreatedAt
	})
	if len(listings) > openRoomsCap {
		listings = listings[:openRoomsCap]
	}
	return listings, online
}
