package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seawatch/seawatch/internal/jobs"
)

// RunEvent is pushed to connected dashboard clients as a dedup run progresses
type RunEvent struct {
	Type      string    `json:"type"` // "progress" or "summary"
	Message   string    `json:"message,omitempty"`
	Summary   any       `json:"summary,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RunEventHub fans dedup run events out to websocket subscribers.
// Slow or dead clients are dropped rather than blocking the run.
type RunEventHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewRunEventHub creates a new websocket event hub
func NewRunEventHub() *RunEventHub {
	return &RunEventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// HandleWS handles GET /api/dedup/events and upgrades to a websocket
func (h *RunEventHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("RunEventHub: upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("RunEventHub: client connected (%d total)", count)

	// Drain incoming frames so pings are answered; we never expect data.
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends an event to all connected clients
func (h *RunEventHub) Broadcast(event RunEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			h.removeClient(conn)
		}
	}
}

// ProgressFunc adapts the hub to the dedup job's progress callback
func (h *RunEventHub) ProgressFunc() jobs.ProgressFunc {
	return func(message string) {
		h.Broadcast(RunEvent{Type: "progress", Message: message})
	}
}

// NotifyRunSummary implements jobs.SummaryNotifier for websocket clients
func (h *RunEventHub) NotifyRunSummary(summary *jobs.RunSummary) {
	h.Broadcast(RunEvent{Type: "summary", Summary: summary})
}

func (h *RunEventHub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}
