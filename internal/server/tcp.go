// Package server runs the TCP accept loop that turns incoming connections
// into chat sessions bound to the shared registries.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/wire"
)

// DefaultRoom is created at startup so clients always have somewhere to join.
const DefaultRoom = "lobby"

// ChatServer owns the shared registries and the TCP listener. Each accepted
// connection runs as its own session goroutine; a failure on one connection
// never terminates the accept loop.
type ChatServer struct {
	rooms   *chat.RoomRegistry
	clients *chat.ClientRegistry

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewChatServer creates a server with fresh registries and the default room.
func NewChatServer() *ChatServer {
	ctx, cancel := context.WithCancel(context.Background())

	clients := chat.NewClientRegistry()
	rooms := chat.NewRoomRegistry(clients)
	if err := rooms.CreateRoom(DefaultRoom); err != nil {
		// Fresh registry; the only failure mode is a duplicate name.
		log.Printf("Creating default room: %v", err)
	}

	return &ChatServer{
		rooms:   rooms,
		clients: clients,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}
}

func (s *ChatServer) trackConn(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// Rooms exposes the room registry for the gateway handlers and tests.
func (s *ChatServer) Rooms() *chat.RoomRegistry {
	return s.rooms
}

// Clients exposes the client registry for the gateway handlers and tests.
func (s *ChatServer) Clients() *chat.ClientRegistry {
	return s.clients
}

// Listen binds the TCP chat endpoint. It returns the bind error unchanged
// so the caller can exit non-zero on startup failure.
func (s *ChatServer) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	log.Printf("Chat server listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound listener address, useful when listening on :0.
func (s *ChatServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the accept loop until the listener is closed. Accept errors
// for individual connections are logged and the loop continues.
func (s *ChatServer) Serve() error {
	defer close(s.done)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if s.ctx.Err() != nil {
				return nil
			}
			log.Printf("Accept failed: %v", err)
			continue
		}

		log.Printf("New connection from %s", conn.RemoteAddr())

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// handleConn wraps one TCP connection in the frame codec and drives a
// session over it.
func (s *ChatServer) handleConn(conn net.Conn) {
	s.trackConn(conn, true)
	defer s.trackConn(conn, false)

	// Keepalive probes reap half-open peers whose sessions would otherwise
	// block in ReadFrame forever, holding their name and memberships.
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetKeepAlive(true); err == nil {
			_ = tc.SetKeepAlivePeriod(3 * time.Minute)
		}
	}

	cfg := currentConfig()

	session := chat.NewSession(
		wire.NewConn(conn, cfg.MaxFrameSize),
		s.rooms,
		s.clients,
		chat.SessionConfig{
			RateLimitBurst:  cfg.RateLimit.Burst,
			RateLimitRefill: cfg.RateLimit.RefillInterval,
		},
	)

	if err := session.Run(); err != nil {
		log.Printf("Session from %s ended: %v", conn.RemoteAddr(), err)
	}
}

// Shutdown stops accepting connections and waits for active sessions to
// finish, up to the timeout.
func (s *ChatServer) Shutdown(timeout time.Duration) error {
	log.Println("Initiating chat server shutdown...")

	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
		<-s.done
	}

	// Closing the connections unblocks sessions waiting on reads; each one
	// then runs its normal cleanup path.
	s.mu.Lock()
	open := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		open = append(open, conn)
	}
	s.mu.Unlock()
	for _, conn := range open {
		_ = conn.Close()
	}

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		log.Println("Chat server shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Chat server shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}
