package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// maxMessageSize bounds inbound control messages on the dashboard feed
// (the feed itself only ever pushes, it doesn't expect payload-sized
// reads from clients).
const maxMessageSize int64 = 4096

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Feed fans out JSON-encoded events to every connected ops dashboard
// client over a single upgraded websocket connection each. It replaces two
// overlapping, duplicate-declaring handlers from the teacher with one
// consolidated broadcaster.
type Feed struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	logger  *zap.Logger
}

// NewFeed builds an empty Feed.
func NewFeed(logger *zap.Logger) *Feed {
	return &Feed{clients: make(map[*websocket.Conn]chan []byte), logger: logger}
}

// Broadcast JSON-encodes payload and sends it to every connected client,
// dropping it for any client whose send buffer is full rather than
// blocking the publisher.
func (f *Feed) Broadcast(payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		if f.logger != nil {
			f.logger.Warn("feed: failed to marshal broadcast payload", zap.Error(err))
		}
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.clients {
		select {
		case ch <- raw:
		default:
		}
	}
}

func (f *Feed) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 16)
	f.mu.Lock()
	f.clients[conn] = ch
	f.mu.Unlock()
	return ch
}

func (f *Feed) unregister(conn *websocket.Conn) {
	f.mu.Lock()
	if ch, ok := f.clients[conn]; ok {
		close(ch)
		delete(f.clients, conn)
	}
	f.mu.Unlock()
}

// Count reports the number of currently connected dashboard clients.
func (f *Feed) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func handleWS(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Feed == nil {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			if deps.Logger != nil {
				deps.Logger.Warn("api: websocket upgrade failed", zap.Error(err))
			}
			return
		}
		deps.Feed.serve(conn)
	}
}

// serve runs the read and write pumps for one connection until it closes,
// following the teacher's read-pump/write-pump/ping-pong split.
func (f *Feed) serve(conn *websocket.Conn) {
	ch := f.register(conn)
	defer f.unregister(conn)
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
