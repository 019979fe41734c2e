package chat

import "errors"

// Sentinel errors for registry and command failures. Callers classify with
// errors.Is; messages wrapped around these sentinels carry the detail that
// is reported back to the originating session.
var (
	// ErrRoomExists is returned when creating a room whose name is taken.
	ErrRoomExists = errors.New("room already exists")

	// ErrRoomNotFound is returned by any room operation that names an
	// unknown room.
	ErrRoomNotFound = errors.New("room does not exist")

	// ErrNameTaken is returned when registering a display name that is
	// already held by a live connection.
	ErrNameTaken = errors.New("username already taken")

	// ErrClientNotFound is returned when unregistering a name that has no
	// registry entry.
	ErrClientNotFound = errors.New("client not found")

	// ErrUsage is returned for a recognized command with malformed
	// arguments. The wrapped message carries the usage line.
	ErrUsage = errors.New("usage")

	// ErrUnknownCommand is returned for an unrecognized command verb.
	ErrUnknownCommand = errors.New("unknown command")
)
