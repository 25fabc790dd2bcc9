package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jsforge/backend/internal/engine"
	"github.com/jsforge/backend/internal/infrastructure/logging"
)

const defaultInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Playground editors connect from arbitrary origins
	},
}

// Handler streams live engine metrics over WebSocket connections
type Handler struct {
	engine   *engine.Engine
	logger   *logging.Logger
	interval time.Duration
}

// NewHandler creates a metrics stream handler
func NewHandler(eng *engine.Engine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewDefault()
	}
	return &Handler{
		engine:   eng,
		logger:   logger.Named("ws"),
		interval: defaultInterval,
	}
}

// message is an inbound client frame
type message struct {
	Type string `json:"type"`
}

// HandleConnection upgrades the request and pushes metrics snapshots
// until the client disconnects
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	h.logger.Info("metrics stream opened", zap.String("conn_id", connID))

	h.send(conn, gin.H{
		"type":    "system",
		"message": "connected to execution metrics stream",
		"conn_id": connID,
	})

	// Reader goroutine: pings and disconnect detection
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg message
			if err := sonic.Unmarshal(data, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case "ping":
				h.send(conn, gin.H{"type": "pong"})
			case "metrics":
				h.sendSnapshot(conn)
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			h.logger.Info("metrics stream closed", zap.String("conn_id", connID))
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			if err := h.sendSnapshot(conn); err != nil {
				h.logger.Debug("metrics push failed",
					zap.String("conn_id", connID),
					zap.Error(err),
				)
				return
			}
		}
	}
}

func (h *Handler) sendSnapshot(conn *websocket.Conn) error {
	return h.send(conn, gin.H{
		"type":      "metrics",
		"metrics":   h.engine.Metrics(),
		"timestamp": time.Now().Unix(),
	})
}

func (h *Handler) send(conn *websocket.Conn, data any) error {
	payload, err := sonic.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
