package chat

import (
	"fmt"
	"log"
	"sync"
)

// RoomRegistry is the authoritative store of all rooms and the single
// choke-point for membership changes and broadcast routing. One mutex
// guards the whole registry; it is held for the duration of a logical
// operation, including the fan-out of any notice that operation emits.
// Fan-out itself never blocks because per-client delivery channels are
// bounded and sends into them are non-blocking.
//
// Rooms are never deleted: the registry retains every created room, along
// with its bounded history, for the life of the process.
type RoomRegistry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	clients *ClientRegistry
}

// NewRoomRegistry creates an empty room registry that fans broadcasts out
// through the given client registry.
func NewRoomRegistry(clients *ClientRegistry) *RoomRegistry {
	return &RoomRegistry{
		rooms:   make(map[string]*Room),
		clients: clients,
	}
}

// CreateRoom inserts an empty room under the given name.
func (rr *RoomRegistry) CreateRoom(name string) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if _, exists := rr.rooms[name]; exists {
		return fmt.Errorf("%w: %s", ErrRoomExists, name)
	}
	rr.rooms[name] = newRoom(name)
	return nil
}

// Join adds user to the room's membership. Joining a room the user is
// already in is a no-op; an effective join replays the room's history to
// the joining member and emits exactly one system notice to the room.
func (rr *RoomRegistry) Join(user, room string) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r, exists := rr.rooms[room]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, room)
	}

	if r.addMember(user) {
		for _, past := range r.history {
			rr.clients.Send(user, past)
		}
		rr.broadcastLocked(newSystemMessage(room, fmt.Sprintf("%s has joined the room", user)))
	}
	return nil
}

// Leave removes user from the room's membership. Leaving a room the user is
// not in is a no-op; an effective leave emits exactly one departure notice.
func (rr *RoomRegistry) Leave(user, room string) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r, exists := rr.rooms[room]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, room)
	}

	if r.removeMember(user) {
		rr.broadcastLocked(newSystemMessage(room, fmt.Sprintf("%s has left the room", user)))
	}
	return nil
}

// LeaveAll removes user from every room, emitting a departure notice for
// each room the user was actually in. Session cleanup calls this on
// disconnect so dead connections do not linger in membership sets.
func (rr *RoomRegistry) LeaveAll(user string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	for name, r := range rr.rooms {
		if r.removeMember(user) {
			rr.broadcastLocked(newSystemMessage(name, fmt.Sprintf("%s has left the room", user)))
		}
	}
}

// Broadcast records msg in its target room's history and delivers a copy to
// every current member. Members without a live registry entry, or whose
// delivery channel is full, are skipped; one unreachable recipient never
// aborts delivery to the rest.
func (rr *RoomRegistry) Broadcast(msg Message) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return rr.broadcastLocked(msg)
}

// broadcastLocked is the fan-out path shared by Broadcast and the system
// notices emitted inside Join/Leave. Callers must hold rr.mu.
func (rr *RoomRegistry) broadcastLocked(msg Message) error {
	r, exists := rr.rooms[msg.Room]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, msg.Room)
	}

	r.addHistory(msg)

	for _, member := range r.members {
		if !rr.clients.Send(member, msg) {
			log.Printf("Dropped delivery to %s in room %s", member, msg.Room)
		}
	}
	return nil
}

// Rooms returns the names of all rooms. Order is not significant.
func (rr *RoomRegistry) Rooms() []string {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	names := make([]string, 0, len(rr.rooms))
	for name := range rr.rooms {
		names = append(names, name)
	}
	return names
}

// Users returns the membership of the named room in join order.
func (rr *RoomRegistry) Users(room string) ([]string, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r, exists := rr.rooms[room]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, room)
	}
	return r.Members(), nil
}

// History returns a copy of the named room's replay buffer, oldest first.
func (rr *RoomRegistry) History(room string) ([]Message, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r, exists := rr.rooms[room]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, room)
	}
	return r.History(), nil
}
