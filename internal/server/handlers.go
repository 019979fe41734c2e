// Package server exposes the HTTP surface of the gateway: WebSocket
// upgrades onto the chat protocol, health checks, and the built-in test
// page.
package server

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// wsConn adapts a WebSocket connection to the chat.FrameConn interface.
// WebSocket messages already carry their own boundaries, so a frame is
// simply one JSON text message. The adapter owns the connection's
// keepalive: pings on a ticker, pongs extending the read deadline, and a
// write deadline on every outbound message. A peer that goes half-open
// stops answering pings, the read deadline expires, and the session tears
// down through its normal cleanup path.
type wsConn struct {
	conn *websocket.Conn

	// writeMu serializes session writes with keepalive pings.
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", conn.RemoteAddr(), err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	return &wsConn{conn: conn, done: make(chan struct{})}
}

func (w *wsConn) ReadFrame() (chat.Message, error) {
	var msg chat.Message
	if err := w.conn.ReadJSON(&msg); err != nil {
		return chat.Message{}, fmt.Errorf("decoding frame: %w", err)
	}
	return msg, nil
}

func (w *wsConn) WriteFrame(msg chat.Message) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return w.conn.WriteJSON(msg)
}

func (w *wsConn) Close() error {
	w.once.Do(func() { close(w.done) })
	return w.conn.Close()
}

func (w *wsConn) RemoteAddr() string {
	return w.conn.RemoteAddr().String()
}

// pingLoop keeps the connection alive until it is closed. A failed ping
// means the peer is gone; the read deadline will reap the session.
func (w *wsConn) pingLoop() {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.writeMu.Lock()
			if err := w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				w.writeMu.Unlock()
				return
			}
			err := w.conn.WriteMessage(websocket.PingMessage, nil)
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-w.done:
			return
		}
	}
}

// WebSocketHandler returns the handler that upgrades a request and runs a
// chat session over the resulting connection, against the same registries
// the TCP transport uses.
func WebSocketHandler(cs *ChatServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		cfg := currentConfig()
		conn.SetReadLimit(int64(cfg.MaxFrameSize))

		ws := newWSConn(conn)
		go ws.pingLoop()

		session := chat.NewSession(ws, cs.Rooms(), cs.Clients(), chat.SessionConfig{
			RateLimitBurst:  cfg.RateLimit.Burst,
			RateLimitRefill: cfg.RateLimit.RefillInterval,
		})

		go func() {
			if err := session.Run(); err != nil {
				log.Printf("WebSocket session from %s ended: %v", r.RemoteAddr, err)
			}
		}()
	}
}

// HealthHandler provides a simple health check endpoint that returns server
// status as plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Room chat server is running!")
}

// TestPageHandler serves an HTML page for exercising the WebSocket gateway:
// it speaks the frame protocol, so joins, chat, and system notices all work
// from a browser.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Room Chat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        #nameInput { width: 120px; }
        #messageInput { width: 300px; }
        button { padding: 5px 15px; cursor: pointer; }
    </style>
</head>
<body>
    <h1>Room Chat Test</h1>
    <div>
        <input type="text" id="nameInput" placeholder="Display name">
        <button id="connectButton" onclick="connect()">Connect</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Message or /join <room>" disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>
    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');

        function addLine(text) {
            const el = document.createElement('div');
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function connect() {
            const name = document.getElementById('nameInput').value.trim();
            if (!name) { addLine('Enter a display name first'); return; }

            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = function() {
                ws.send(JSON.stringify({sender: name, content: ''}));
                messageInput.disabled = false;
                sendButton.disabled = false;
                addLine('Connected as ' + name);
            };
            ws.onmessage = function(event) {
                const msg = JSON.parse(event.data);
                const room = msg.room ? '[' + msg.room + '] ' : '';
                addLine(room + msg.sender + ': ' + msg.content);
            };
            ws.onclose = function() {
                addLine('Connection closed');
                messageInput.disabled = true;
                sendButton.disabled = true;
                ws = null;
            };
        }

        function sendMessage() {
            const content = messageInput.value.trim();
            if (content && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({content: content}));
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendMessage(); }
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
