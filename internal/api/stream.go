package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/farm-season/internal/engine"
)

const (
	maxStreamConns   = 8
	streamBuffer     = 64
	streamCatchUp    = 50
	streamWriteWait  = 5 * time.Second
	streamPingPeriod = 30 * time.Second
)

// Hub fans simulation events out to websocket clients. Publish never
// blocks: a client whose buffer is full misses the event.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	recent  [][]byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

// Publish encodes e and offers it to every client.
func (h *Hub) Publish(e engine.Event) {
	b, err := json.Marshal(e)
	if err != nil {
		slog.Warn("stream encode failed", "kind", e.Kind, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent = append(h.recent, b)
	if len(h.recent) > streamCatchUp {
		h.recent = h.recent[len(h.recent)-streamCatchUp:]
	}
	for ch := range h.clients {
		select {
		case ch <- b:
		default:
		}
	}
}

// join registers a client and returns its channel primed with recent
// events, or nil when the hub is full.
func (h *Hub) join() chan []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= maxStreamConns {
		return nil
	}
	ch := make(chan []byte, streamBuffer+streamCatchUp)
	for _, b := range h.recent {
		ch <- b
	}
	h.clients[ch] = struct{}{}
	return ch
}

func (h *Hub) leave(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ch := s.hub.join()
	if ch == nil {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.hub.leave(ch)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	slog.Info("stream client connected", "remote", r.RemoteAddr)

	// Reader: drain control frames and notice the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case b := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			slog.Info("stream client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		}
	}
}
