// Package room provides the room registry, occupancy tracking, and
// in-room event fan-out for the game server.
package room

import "sync"

// Occupant is a non-owning handle to a session currently joined to a room.
// The room never owns the underlying connection; delivery goes through an
// outbox so Deliver must not block on a slow client.
type Occupant interface {
	// UID is the stable unique identifier of the session.
	UID() string
	// Nickname is the display name chosen by the session.
	Nickname() string
	// Deliver enqueues one protocol line for the occupant. It returns an
	// error if the occupant can no longer accept messages; it must not block.
	Deliver(line string) error
}

// Room is a named, capacity-bounded group of occupants sharing broadcasts.
// Name and settings are fixed at creation; only the occupant set mutates.
type Room struct {
	name       string
	turnTime   int
	maxPlayers int
	pieceCount int

	mu        sync.Mutex
	occupants []Occupant // join order
}

// Snapshot is an immutable view of a room's configuration and occupancy,
// used for /list responses.
type Snapshot struct {
	Name       string
	TurnTime   int
	MaxPlayers int
	PieceCount int
	Occupancy  int
}

func newRoom(name string, turnTime, maxPlayers int) *Room {
	return &Room{
		name:       name,
		turnTime:   turnTime,
		maxPlayers: maxPlayers,
		// One piece per player seat.
		pieceCount: maxPlayers,
	}
}

// Name returns the room's unique name.
func (r *Room) Name() string { return r.name }

// TurnTime returns the per-turn timer in seconds.
func (r *Room) TurnTime() int { return r.turnTime }

// MaxPlayers returns the room capacity.
func (r *Room) MaxPlayers() int { return r.maxPlayers }

// PieceCount returns the number of pieces configured for the room.
func (r *Room) PieceCount() int { return r.pieceCount }

// Admit adds an occupant to the room.
//
// Postcondition: Returns true and appends the occupant in join order, or
// returns false with no side effects if the room is at capacity or the
// occupant is already present.
func (r *Room) Admit(o Occupant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.occupants) >= r.maxPlayers {
		return false
	}
	for _, existing := range r.occupants {
		if existing.UID() == o.UID() {
			return false
		}
	}
	r.occupants = append(r.occupants, o)
	return true
}

// Evict removes an occupant if present; absent occupants are a no-op.
//
// Postcondition: Returns whether the room is now empty.
func (r *Room) Evict(o Occupant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.occupants {
		if existing.UID() == o.UID() {
			r.occupants = append(r.occupants[:i], r.occupants[i+1:]...)
			break
		}
	}
	return len(r.occupants) == 0
}

// Occupants returns a snapshot of the current occupant set in join order.
func (r *Room) Occupants() []Occupant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Occupant, len(r.occupants))
	copy(out, r.occupants)
	return out
}

// Len returns the current occupant count.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.occupants)
}

// Snapshot returns an immutable view of the room.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Name:       r.name,
		TurnTime:   r.turnTime,
		MaxPlayers: r.maxPlayers,
		PieceCount: r.pieceCount,
		Occupancy:  len(r.occupants),
	}
}
