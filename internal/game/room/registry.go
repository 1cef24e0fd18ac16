package room

import (
	"errors"
	"sync"
)

// Registry errors reported to sessions. Each maps to a fixed protocol
// response; none of them mutate registry state.
var (
	// ErrDuplicateRoom reports a /create with a name that is already registered.
	ErrDuplicateRoom = errors.New("room name already registered")
	// ErrRoomNotFound reports a lookup for a name with no registered room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull reports an admission attempt against a room at capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrRoomLimit reports a /create that would exceed the configured room cap.
	ErrRoomLimit = errors.New("room limit reached")
	// ErrEmptyName reports a room name that is empty after trimming.
	ErrEmptyName = errors.New("room name must not be empty")
)

// Registry is the process-wide name→Room directory. It lives for the
// process and serializes create/remove against admissions, so a join that
// observed a room can never complete after that room has been deleted.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	order    []string // creation order, for deterministic /list output
	maxRooms int      // 0 means unlimited
}

// NewRegistry creates an empty Registry.
//
// Precondition: maxRooms must be >= 0; zero disables the cap.
func NewRegistry(maxRooms int) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		maxRooms: maxRooms,
	}
}

// Create registers a new room under the given name.
//
// Precondition: turnTime and maxPlayers must be >= 1.
// Postcondition: Returns the new Room, or ErrEmptyName, ErrDuplicateRoom,
// or ErrRoomLimit with the registry unchanged.
func (reg *Registry) Create(name string, turnTime, maxPlayers int) (*Room, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.rooms[name]; exists {
		return nil, ErrDuplicateRoom
	}
	if reg.maxRooms > 0 && len(reg.rooms) >= reg.maxRooms {
		return nil, ErrRoomLimit
	}

	r := newRoom(name, turnTime, maxPlayers)
	reg.rooms[name] = r
	reg.order = append(reg.order, name)
	return r, nil
}

// Get returns the room registered under name.
//
// Postcondition: Returns (room, true) if found, or (nil, false) otherwise.
func (reg *Registry) Get(name string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[name]
	return r, ok
}

// Join admits an occupant into the named room. The lookup and the
// admission happen under the registry read lock, which excludes Leave's
// delete-when-empty, so admission into a concurrently removed room is
// impossible.
//
// Postcondition: Returns the joined Room, or ErrRoomNotFound / ErrRoomFull
// with no occupancy change.
func (reg *Registry) Join(name string, o Occupant) (*Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	r, ok := reg.rooms[name]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if !r.Admit(o) {
		return nil, ErrRoomFull
	}
	return r, nil
}

// Leave removes an occupant from the named room and deletes the room from
// the registry in the same critical section if it became empty. There is
// no window in which an emptied room remains joinable.
//
// Postcondition: Returns whether the room was deleted. Unknown room names
// are a no-op.
func (reg *Registry) Leave(name string, o Occupant) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[name]
	if !ok {
		return false
	}
	if empty := r.Evict(o); !empty {
		return false
	}

	delete(reg.rooms, name)
	for i, n := range reg.order {
		if n == name {
			reg.order = append(reg.order[:i], reg.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns a snapshot of every registered room in creation order.
func (reg *Registry) List() []Snapshot {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]Snapshot, 0, len(reg.order))
	for _, name := range reg.order {
		if r, ok := reg.rooms[name]; ok {
			out = append(out, r.Snapshot())
		}
	}
	return out
}

// Len returns the number of registered rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}
