package chat

import (
	"fmt"
	"sync"
)

// sendBufferSize is the capacity of each client's delivery channel. A full
// channel means the consumer is not keeping up; delivery to it is dropped
// rather than allowed to block the registries.
const sendBufferSize = 256

// ClientRegistry maps display names to live outbound delivery channels.
// The registry holds the producing end of each channel; the owning session
// holds the consuming end. At most one entry exists per display name.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]chan Message
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]chan Message),
	}
}

// Register associates name with the given delivery channel. The check and
// insert happen under one lock, so of two racing registrations for the same
// name exactly one succeeds and the other gets ErrNameTaken.
func (cr *ClientRegistry) Register(name string, send chan Message) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if _, exists := cr.clients[name]; exists {
		return fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	cr.clients[name] = send
	return nil
}

// Unregister removes name's delivery entry. Once Unregister returns, no
// further Send can reach the removed channel, so the owning session may
// safely close it.
func (cr *ClientRegistry) Unregister(name string) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if _, exists := cr.clients[name]; !exists {
		return fmt.Errorf("%w: %s", ErrClientNotFound, name)
	}
	delete(cr.clients, name)
	return nil
}

// Send delivers msg to name's channel without blocking. It reports false if
// the name has no live entry or the channel is full; either way delivery is
// best-effort and the caller treats failure as non-fatal.
func (cr *ClientRegistry) Send(name string, msg Message) bool {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	send, exists := cr.clients[name]
	if !exists {
		return false
	}

	select {
	case send <- msg:
		return true
	default:
		return false
	}
}

// Count returns the number of registered clients.
func (cr *ClientRegistry) Count() int {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return len(cr.clients)
}
