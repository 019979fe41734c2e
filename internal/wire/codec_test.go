package wire_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/wire"
)

// encodeFrame renders one message the way the encoder does.
func encodeFrame(t *testing.T, msg chat.Message) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return append(data, '\n')
}

// drip yields its contents n bytes at a time, forcing the decoder to see
// fragmented reads.
type drip struct {
	data []byte
	n    int
}

func (d *drip) Read(p []byte) (int, error) {
	if len(d.data) == 0 {
		return 0, io.EOF
	}
	n := d.n
	if n > len(d.data) {
		n = len(d.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, d.data[:n])
	d.data = d.data[n:]
	return n, nil
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := wire.NewEncoder(&buf)

	msg := chat.NewMessage("lobby", "alice", "hello world")
	require.NoError(t, enc.Encode(msg))

	dec := wire.NewDecoder(&buf, 0)
	got, err := dec.Decode()
	require.NoError(t, err)

	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, msg.Room, got.Room)
	assert.Equal(t, msg.Sender, got.Sender)
	assert.Equal(t, msg.Content, got.Content)
	assert.True(t, msg.Timestamp.Equal(got.Timestamp))
}

func TestDecodeCoalescedFrames(t *testing.T) {
	// Two frames arriving in a single read must decode as two messages.
	var buf bytes.Buffer
	buf.Write(encodeFrame(t, chat.NewMessage("lobby", "alice", "first")))
	buf.Write(encodeFrame(t, chat.NewMessage("lobby", "alice", "second")))

	dec := wire.NewDecoder(&buf, 0)

	got, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, "first", got.Content)

	got, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)

	_, err = dec.Decode()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodePartialReads(t *testing.T) {
	frame := encodeFrame(t, chat.NewMessage("lobby", "alice", "fragmented delivery"))

	for _, chunk := range []int{1, 2, 3, 7} {
		dec := wire.NewDecoder(&drip{data: append([]byte(nil), frame...), n: chunk}, 0)
		got, err := dec.Decode()
		require.NoError(t, err, "chunk size %d", chunk)
		assert.Equal(t, "fragmented delivery", got.Content)
	}
}

func TestDecodeFrameLargerThanBuffer(t *testing.T) {
	// Contents longer than the reader's internal buffer still decode as
	// long as they stay under the frame limit.
	content := strings.Repeat("x", 2000)
	frame := encodeFrame(t, chat.NewMessage("lobby", "alice", content))

	dec := wire.NewDecoder(bytes.NewReader(frame), 4096)
	got, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, content, got.Content)
}

func TestDecodeNewlineInsideContentIsEscaped(t *testing.T) {
	// JSON escapes the newline, so the delimiter stays unambiguous.
	msg := chat.NewMessage("lobby", "alice", "line one\nline two")

	var buf bytes.Buffer
	require.NoError(t, wire.NewEncoder(&buf).Encode(msg))
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte{'\n'}))

	got, err := wire.NewDecoder(&buf, 0).Decode()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got.Content)
}

func TestDecodeOversizeFrame(t *testing.T) {
	frame := encodeFrame(t, chat.NewMessage("lobby", "alice", strings.Repeat("x", 500)))

	dec := wire.NewDecoder(bytes.NewReader(frame), 128)
	_, err := dec.Decode()
	assert.ErrorIs(t, err, wire.ErrFrameTooLarge)
}

func TestDecodeMalformedFrame(t *testing.T) {
	dec := wire.NewDecoder(strings.NewReader("this is not json\n"), 0)
	_, err := dec.Decode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding frame")
}

func TestDecodeTruncatedStream(t *testing.T) {
	frame := encodeFrame(t, chat.NewMessage("lobby", "alice", "cut off"))
	// Drop the delimiter and the last few bytes.
	truncated := frame[:len(frame)-5]

	dec := wire.NewDecoder(bytes.NewReader(truncated), 0)
	_, err := dec.Decode()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeSkipsBlankLines(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("\r\n\n")
	buf.Write(encodeFrame(t, chat.NewMessage("lobby", "alice", "after blanks")))

	dec := wire.NewDecoder(&buf, 0)
	got, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, "after blanks", got.Content)
}

// deadlineConn records write deadlines set on it while discarding writes.
type deadlineConn struct {
	writeDeadline time.Time
}

func (c *deadlineConn) Read([]byte) (int, error)        { return 0, io.EOF }
func (c *deadlineConn) Write(p []byte) (int, error)     { return len(p), nil }
func (c *deadlineConn) Close() error                    { return nil }
func (c *deadlineConn) LocalAddr() net.Addr             { return &net.TCPAddr{} }
func (c *deadlineConn) RemoteAddr() net.Addr            { return &net.TCPAddr{} }
func (c *deadlineConn) SetDeadline(time.Time) error     { return nil }
func (c *deadlineConn) SetReadDeadline(time.Time) error { return nil }
func (c *deadlineConn) SetWriteDeadline(t time.Time) error {
	c.writeDeadline = t
	return nil
}

func TestWriteFrameSetsWriteDeadline(t *testing.T) {
	conn := &deadlineConn{}
	fc := wire.NewConn(conn, 0)

	require.NoError(t, fc.WriteFrame(chat.NewMessage("lobby", "alice", "hi")))
	assert.False(t, conn.writeDeadline.IsZero(), "write must be bounded by a deadline")
	assert.True(t, conn.writeDeadline.After(time.Now()))
}

func TestConnOverNetPipe(t *testing.T) {
	client, srv := net.Pipe()
	clientConn := wire.NewConn(client, 0)
	serverConn := wire.NewConn(srv, 0)

	errCh := make(chan error, 1)
	go func() {
		errCh <- clientConn.WriteFrame(chat.NewMessage("lobby", "alice", "over the pipe"))
	}()

	require.NoError(t, srv.SetReadDeadline(time.Now().Add(2*time.Second)))
	got, err := serverConn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "over the pipe", got.Content)
	require.NoError(t, <-errCh)

	require.NoError(t, clientConn.Close())
	_, err = serverConn.ReadFrame()
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe))
}
