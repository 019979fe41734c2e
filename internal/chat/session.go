package chat

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FrameConn is one client's framed view of its transport. Implementations
// exist for TCP (internal/wire) and for the WebSocket gateway; the session
// is agnostic to which one it is driving.
type FrameConn interface {
	// ReadFrame blocks for the next inbound frame. It returns io.EOF on a
	// clean peer close and a wrapped decode error when the stream cannot be
	// parsed; decode errors are fatal to the session.
	ReadFrame() (Message, error)

	// WriteFrame serializes one frame onto the stream.
	WriteFrame(Message) error

	Close() error
	RemoteAddr() string
}

// SessionState tracks a session through its lifecycle.
type SessionState int32

// Session lifecycle states. Transitions only move forward; Closed always
// runs the cleanup path regardless of which transition caused it.
const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateActive
	StateClosed
)

// writeDrainTimeout bounds how long teardown waits for the write loop to
// flush queued frames before force-closing the connection under it.
const writeDrainTimeout = time.Second

// SessionConfig carries the per-session tunables supplied by the server.
type SessionConfig struct {
	RateLimitBurst  int
	RateLimitRefill time.Duration
}

// Session is the per-connection control loop. It owns the inbound half of
// its FrameConn and the consuming end of its delivery channel; the client
// registry holds the producing end for broadcast fan-out.
type Session struct {
	conn    FrameConn
	rooms   *RoomRegistry
	clients *ClientRegistry

	send       chan Message
	name       string
	current    string // room context stamped onto unaddressed frames
	registered bool
	state      atomic.Int32
	limiter    *throttle
	wg         sync.WaitGroup
}

// NewSession creates a session bound to the shared registries. Run drives it.
func NewSession(conn FrameConn, rooms *RoomRegistry, clients *ClientRegistry, cfg SessionConfig) *Session {
	return &Session{
		conn:    conn,
		rooms:   rooms,
		clients: clients,
		send:    make(chan Message, sendBufferSize),
		limiter: newThrottle(cfg.RateLimitBurst, cfg.RateLimitRefill),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Name returns the display name, or "" before authentication.
func (s *Session) Name() string {
	return s.name
}

func (s *Session) setState(state SessionState) {
	s.state.Store(int32(state))
}

// Run executes the session from authentication to disconnect. It returns
// once the connection is closed and cleanup has completed; the error, if
// any, describes why the session ended.
func (s *Session) Run() error {
	defer s.close()

	if err := s.authenticate(); err != nil {
		return err
	}

	s.setState(StateActive)

	s.wg.Add(1)
	go s.writeLoop()

	return s.readLoop()
}

// authenticate consumes the first frame, whose sender field carries the
// requested display name. A taken or empty name terminates the session
// before it ever becomes Active.
func (s *Session) authenticate() error {
	frame, err := s.conn.ReadFrame()
	if err != nil {
		return fmt.Errorf("reading hello frame from %s: %w", s.conn.RemoteAddr(), err)
	}

	name := strings.TrimSpace(frame.Sender)
	if name == "" {
		s.writeDirect(NewMessage("", SystemSender, "a display name is required"))
		return errors.New("hello frame carried no display name")
	}

	if err := s.clients.Register(name, s.send); err != nil {
		s.writeDirect(NewMessage("", SystemSender, err.Error()))
		return err
	}

	s.name = name
	s.registered = true
	s.setState(StateAuthenticated)
	log.Printf("Client %q authenticated from %s", name, s.conn.RemoteAddr())

	s.reply(fmt.Sprintf("Welcome, %s", name))
	return nil
}

// readLoop processes inbound frames in arrival order until the stream ends,
// a decode error corrupts it, or the client quits.
func (s *Session) readLoop() error {
	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			if isClosedError(err) {
				return nil
			}
			return fmt.Errorf("session %q: %w", s.name, err)
		}

		if !s.limiter.allow() {
			log.Printf("Rate limit exceeded for %q; discarding frame", s.name)
			continue
		}

		content := strings.TrimSpace(frame.Content)
		if IsCommand(content) {
			if quit := s.dispatchCommand(content); quit {
				return nil
			}
			continue
		}

		s.submitChat(frame)
	}
}

// submitChat stamps a non-command frame with the sender's identity and room
// context and hands it to the room registry. Registry failures are reported
// back to this session only.
func (s *Session) submitChat(frame Message) {
	room := frame.Room
	if room == "" {
		room = s.current
	}
	if room == "" {
		s.reply("join a room first: /join <room>")
		return
	}

	msg := NewMessage(room, s.name, frame.Content)
	if err := s.rooms.Broadcast(msg); err != nil {
		s.reply(err.Error())
	}
}

// dispatchCommand parses and executes one command frame. It reports true
// when the session should terminate (quit). Command failures, including
// malformed or unknown commands, are reported locally and never broadcast.
func (s *Session) dispatchCommand(content string) bool {
	cmd, err := ParseCommand(content)
	if err != nil {
		s.reply(err.Error())
		return false
	}

	switch cmd.Verb {
	case VerbJoin:
		if err := s.rooms.Join(s.name, cmd.Arg); err != nil {
			s.reply(err.Error())
			return false
		}
		s.current = cmd.Arg

	case VerbLeave:
		if err := s.rooms.Leave(s.name, cmd.Arg); err != nil {
			s.reply(err.Error())
			return false
		}
		if s.current == cmd.Arg {
			s.current = ""
		}

	case VerbList:
		s.reply("Rooms: " + strings.Join(s.rooms.Rooms(), ", "))

	case VerbUsers:
		users, err := s.rooms.Users(cmd.Arg)
		if err != nil {
			s.reply(err.Error())
			return false
		}
		s.reply(fmt.Sprintf("Users in %s: %s", cmd.Arg, strings.Join(users, ", ")))

	case VerbQuit:
		s.reply("Goodbye")
		return true
	}

	return false
}

// writeLoop drains the delivery channel onto the stream in enqueue order.
// A write failure closes the connection, which in turn ends the read loop.
func (s *Session) writeLoop() {
	defer s.wg.Done()

	for msg := range s.send {
		if err := s.conn.WriteFrame(msg); err != nil {
			if !isClosedError(err) {
				log.Printf("Write to %q failed: %v", s.name, err)
			}
			_ = s.conn.Close()
			return
		}
	}
}

// reply queues a system message for this session only. Delivery is
// best-effort like any other: a full channel drops the reply.
func (s *Session) reply(content string) {
	msg := NewMessage("", SystemSender, content)
	select {
	case s.send <- msg:
	default:
	}
}

// writeDirect writes a frame synchronously, bypassing the delivery channel.
// Used before the write loop exists (authentication failures).
func (s *Session) writeDirect(msg Message) {
	if err := s.conn.WriteFrame(msg); err != nil && !isClosedError(err) {
		log.Printf("Write to %s failed: %v", s.conn.RemoteAddr(), err)
	}
}

// close is the guaranteed cleanup step behind every transition to Closed:
// implicit leave of all rooms, registry removal, channel teardown. It
// tolerates being reached from any point in the lifecycle.
func (s *Session) close() {
	s.setState(StateClosed)

	if s.registered {
		// Unregister first: once the entry is gone the name is free for the
		// next connection and no producer can reach s.send. The departure
		// notices from LeaveAll then skip this session like any other
		// unreachable member.
		if err := s.clients.Unregister(s.name); err != nil && !errors.Is(err, ErrClientNotFound) {
			log.Printf("Unregister %q: %v", s.name, err)
		}
		s.rooms.LeaveAll(s.name)
		close(s.send)

		// The write loop may be mid-write to a peer that stopped draining
		// its socket; closing the connection is the only way to unblock it.
		drained := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(writeDrainTimeout):
			log.Printf("Write loop for %q stalled, force-closing connection", s.name)
			_ = s.conn.Close()
			<-drained
		}
	}

	_ = s.conn.Close()
	log.Printf("Session for %s closed", s.conn.RemoteAddr())
}

// isClosedError reports whether err is an expected end-of-session condition
// rather than something worth surfacing.
func isClosedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close") ||
		strings.Contains(errStr, "broken pipe")
}
