package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"cobitis_web"
	"cobitis_web/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
)

// Upgrader for HTTP -> WebSocket. Both channels are served to devices and
// pages from other origins.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn serializes writes on a websocket connection. gorilla allows one
// concurrent writer; the push loop and the request loop both write.
type wsConn struct {
	conn *websocket.Conn
	id   string
	log  *logger.Logger

	mu        sync.Mutex
	closeOnce sync.Once
}

func (h *Handler) upgrade(w http.ResponseWriter, r *http.Request, channel string) (*wsConn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "channel", channel, "err", err)
		}
		return nil, err
	}

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	wc := &wsConn{conn: conn, id: uuid.NewString()}
	if h.log != nil {
		wc.log = h.log.With("channel", channel, "conn", wc.id)
		wc.log.Infow("ws_connected", "remote", r.RemoteAddr)
	}
	return wc, nil
}

func (c *wsConn) writeFrame(f cobitis_web.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}

func (c *wsConn) send(event string, ack *int64, v any) error {
	f, err := cobitis_web.NewFrame(event, ack, v)
	if err != nil {
		return err
	}
	return c.writeFrame(f)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConn) close() {
	c.closeWith(websocket.CloseNormalClosure, "")
}

// closeWith sends a close frame and closes the socket. Later calls are no-ops.
func (c *wsConn) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
		_ = c.conn.Close()
	})
}

func (c *wsConn) infow(msg string, kv ...any) {
	if c.log != nil {
		c.log.Infow(msg, kv...)
	}
}

func (c *wsConn) debugw(msg string, kv ...any) {
	if c.log != nil {
		c.log.Debugw(msg, kv...)
	}
}

// serve runs the reader goroutine and the ping loop until the peer goes away
// or handle returns false. Frames that do not decode are skipped.
func (c *wsConn) serve(done <-chan struct{}, handle func(cobitis_web.Frame) bool) {
	frames := make(chan cobitis_web.Frame)
	readerDone := make(chan struct{})
	quit := make(chan struct{})
	defer close(quit)
	go c.startReader(frames, readerDone, quit)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-readerDone:
			return
		case <-done:
			return
		case <-ping.C:
			if err := c.ping(); err != nil {
				c.infow("ws_ping_failed", "err", err)
				return
			}
		case f := <-frames:
			if !handle(f) {
				return
			}
		}
	}
}

// startReader decodes text messages into frames and detects closure.
func (c *wsConn) startReader(frames chan<- cobitis_web.Frame, done chan<- struct{}, quit <-chan struct{}) {
	defer close(done)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.infow("ws_read_closed", "err", err)
			return
		}
		var f cobitis_web.Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			c.debugw("ws_frame_dropped", "err", err)
			continue
		}
		if err := cobitis_web.Validate(&f); err != nil {
			c.debugw("ws_frame_dropped", "err", err)
			continue
		}
		select {
		case frames <- f:
		case <-quit:
			return
		}
	}
}
