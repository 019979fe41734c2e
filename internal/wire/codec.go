// Package wire implements the frame codec for the TCP transport: one JSON
// object per frame, frames delimited by a newline. JSON string escaping
// guarantees a raw newline can never occur inside an encoded frame, so the
// delimiter is unambiguous. The decoder buffers, which makes it correct
// under partial reads and under multiple frames arriving in one read.
package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// DefaultMaxFrameSize bounds a single encoded frame when the caller does
// not supply a limit.
const DefaultMaxFrameSize = 4096

// ErrFrameTooLarge is returned when an inbound frame exceeds the size limit
// before its delimiter arrives. The stream position is lost at that point,
// so the error is fatal to the connection.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Decoder reads delimited frames from a byte stream.
type Decoder struct {
	r        *bufio.Reader
	maxFrame int
}

// NewDecoder creates a Decoder with the given frame size limit; a
// non-positive limit selects DefaultMaxFrameSize.
func NewDecoder(r io.Reader, maxFrame int) *Decoder {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &Decoder{
		r:        bufio.NewReaderSize(r, 1024),
		maxFrame: maxFrame,
	}
}

// Decode blocks until one complete frame is available and returns it. It
// returns io.EOF on a clean end of stream, ErrFrameTooLarge when the limit
// is exceeded, and a wrapped decode error for malformed JSON. All but EOF
// indicate the stream can no longer be trusted.
func (d *Decoder) Decode() (chat.Message, error) {
	line, err := d.readDelimited()
	if err != nil {
		return chat.Message{}, err
	}

	var msg chat.Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return chat.Message{}, fmt.Errorf("decoding frame: %w", err)
	}
	return msg, nil
}

// readDelimited accumulates bytes up to the next delimiter, tolerating
// arbitrarily fragmented reads, and enforces the frame size limit.
func (d *Decoder) readDelimited() ([]byte, error) {
	var buf bytes.Buffer

	for {
		chunk, err := d.r.ReadSlice('\n')
		buf.Write(chunk)

		if buf.Len() > d.maxFrame {
			return nil, ErrFrameTooLarge
		}

		switch {
		case err == nil:
			line := bytes.TrimRight(buf.Bytes(), "\r\n")
			if len(line) == 0 {
				// Empty line between frames; keep reading.
				buf.Reset()
				continue
			}
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			// Delimiter not in this chunk; accumulate and continue.
		case errors.Is(err, io.EOF) && buf.Len() > 0:
			return nil, fmt.Errorf("decoding frame: %w", io.ErrUnexpectedEOF)
		default:
			return nil, err
		}
	}
}

// Encoder writes delimited frames to a byte stream.
type Encoder struct {
	w io.Writer
}

// NewEncoder creates an Encoder over w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one frame followed by the delimiter as a single write, so
// concurrent writers on distinct Encoders never interleave within a frame.
func (e *Encoder) Encode(msg chat.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	data = append(data, '\n')
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// writeWait bounds a single frame write so a peer that stopped draining
// its socket cannot block the writer indefinitely.
const writeWait = 10 * time.Second

// Conn adapts a net.Conn into the chat.FrameConn interface.
type Conn struct {
	conn net.Conn
	dec  *Decoder
	enc  *Encoder
}

// NewConn wraps conn with the frame codec.
func NewConn(conn net.Conn, maxFrame int) *Conn {
	return &Conn{
		conn: conn,
		dec:  NewDecoder(conn, maxFrame),
		enc:  NewEncoder(conn),
	}
}

// ReadFrame reads the next frame from the connection.
func (c *Conn) ReadFrame() (chat.Message, error) {
	return c.dec.Decode()
}

// WriteFrame writes one frame to the connection, bounded by a write
// deadline.
func (c *Conn) WriteFrame(msg chat.Message) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.enc.Encode(msg)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
