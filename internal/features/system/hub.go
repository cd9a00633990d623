package system

import (
	"encoding/json"
	"sync"

	"go-edu/internal/features/approval"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Hub fans approval events out to connected websocket clients. It
// implements approval.EventPublisher; publishing never blocks a decision,
// slow clients just miss events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan []byte),
		logger:  logger,
	}
}

func (h *Hub) Publish(event approval.ApprovalEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- payload:
		default:
			// Client's buffer is full; drop rather than stall the engine.
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

// HandleConnection streams events to one client until it disconnects.
func (h *Hub) HandleConnection(conn *websocket.Conn) {
	ch := h.register(conn)
	defer func() {
		h.unregister(conn)
		conn.Close()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
