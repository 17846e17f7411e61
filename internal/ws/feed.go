package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"mahjong-ledger/internal/model"
	"mahjong-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Hub fans every appended ledger row out to connected dashboard clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

type ledgerEvent struct {
	Event       string            `json:"event"`
	Transaction model.Transaction `json:"transaction"`
}

// PublishTransaction broadcasts a newly appended row. Connections that fail
// to accept the write are dropped.
func (h *Hub) PublishTransaction(txn *model.Transaction) {
	payload, err := json.Marshal(ledgerEvent{Event: "transaction", Transaction: *txn})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// HandleLedgerWS upgrades the connection and streams ledger rows until the
// client goes away. Clients send nothing meaningful; the read loop only
// detects disconnects.
func (h *Handler) HandleLedgerWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	h.hub.add(conn)
	defer func() {
		h.hub.remove(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
