package chat

// historyCap bounds the per-room replay buffer. The oldest message is
// evicted first once the cap is reached.
const historyCap = 100

// Room is a named broadcast domain: a membership set plus a bounded FIFO
// history. Rooms are owned exclusively by the RoomRegistry, which serializes
// all access; Room methods themselves are not safe for concurrent use.
type Room struct {
	name    string
	members []string
	history []Message
}

// newRoom creates an empty room.
func newRoom(name string) *Room {
	return &Room{
		name:    name,
		members: make([]string, 0),
		history: make([]Message, 0, historyCap),
	}
}

// Name returns the room's immutable name.
func (r *Room) Name() string {
	return r.name
}

// addMember adds user to the membership set. It reports whether the set
// changed; adding a user who is already a member is a no-op.
func (r *Room) addMember(user string) bool {
	if r.hasMember(user) {
		return false
	}
	r.members = append(r.members, user)
	return true
}

// removeMember removes user from the membership set, reporting whether the
// set changed.
func (r *Room) removeMember(user string) bool {
	for i, m := range r.members {
		if m == user {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) hasMember(user string) bool {
	for _, m := range r.members {
		if m == user {
			return true
		}
	}
	return false
}

// Members returns the membership set in insertion order.
func (r *Room) Members() []string {
	return append([]string(nil), r.members...)
}

// addHistory records a broadcast message, evicting the oldest entry when
// the buffer is full.
func (r *Room) addHistory(msg Message) {
	if len(r.history) >= historyCap {
		copy(r.history, r.history[1:])
		r.history = r.history[:historyCap-1]
	}
	r.history = append(r.history, msg)
}

// History returns a copy of the replay buffer, oldest first.
func (r *Room) History() []Message {
	return append([]Message(nil), r.history...)
}
