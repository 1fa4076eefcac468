package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamHub fans completed run summaries out to websocket subscribers.
type StreamHub struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]bool
	logger Logger
}

// NewStreamHub creates an empty StreamHub.
func NewStreamHub(log Logger) *StreamHub {
	return &StreamHub{
		conns:  make(map[*websocket.Conn]bool),
		logger: log,
	}
}

// Serve upgrades the request and subscribes the client until it disconnects.
func (h *StreamHub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()

	h.logger.Info("WebSocket client connected", nil)

	// Drain client frames; the stream is one-way and the read loop just
	// detects disconnects.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends a JSON event to every subscriber. Dead connections are
// dropped.
func (h *StreamHub) Broadcast(event string, payload interface{}) {
	message := map[string]interface{}{
		"type":      event,
		"timestamp": time.Now(),
		"data":      payload,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		if err := conn.WriteJSON(message); err != nil {
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

func (h *StreamHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[conn] {
		delete(h.conns, conn)
		conn.Close()
	}
}
