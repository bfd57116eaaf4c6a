package stream

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zsiec/cloudstream/internal/logger"
	"github.com/zsiec/cloudstream/internal/metrics"
	"github.com/zsiec/cloudstream/internal/ply"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// FrameNotice is the message sent to websocket subscribers for each
// published snapshot. Clients fetch the points themselves.
type FrameNotice struct {
	Name        string       `json:"name"`
	Index       uint64       `json:"frame_index"`
	Slot        int          `json:"slot"`
	Points      int          `json:"points"`
	Min         ply.Position `json:"min"`
	Max         ply.Position `json:"max"`
	PublishedAt time.Time    `json:"published_at"`
}

// NewFrameNotice summarises s.
func NewFrameNotice(s *Snapshot) FrameNotice {
	lo, hi := s.Cloud.Bounds()
	return FrameNotice{
		Name:        s.Name,
		Index:       s.Index,
		Slot:        s.Slot,
		Points:      s.Len(),
		Min:         lo,
		Max:         hi,
		PublishedAt: s.PublishedAt,
	}
}

// Hub streams a FrameNotice to every connected websocket client.
type Hub struct {
	publisher *Publisher
	logger    *logger.SampledLogger
	upgrader  websocket.Upgrader
	clients   atomic.Int64
}

func NewHub(p *Publisher, log logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Hub{
		publisher: p,
		logger:    logger.NewFrameLogger(log.WithField("component", "frame_hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Clients is the number of connected subscribers.
func (h *Hub) Clients() int {
	return int(h.clients.Load())
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade to WebSocket")
		return
	}

	h.clients.Add(1)
	metrics.IncrementWebSocketClients()
	remote := logger.RemoteIP(r)
	h.logger.InfoWithCategory(logger.CategoryWebSocket, "WebSocket subscriber connected",
		map[string]interface{}{"remote_ip": remote})

	frames, unsubscribe := h.publisher.Subscribe(4)
	defer func() {
		unsubscribe()
		conn.Close()
		h.clients.Add(-1)
		metrics.DecrementWebSocketClients()
		h.logger.InfoWithCategory(logger.CategoryWebSocket, "WebSocket subscriber disconnected",
			map[string]interface{}{"remote_ip": remote})
	}()

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	if latest := h.publisher.Latest(); latest != nil {
		if err := h.write(conn, NewFrameNotice(latest)); err != nil {
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-frames:
			if !ok {
				return
			}
			if err := h.write(conn, NewFrameNotice(snap)); err != nil {
				h.logger.DebugWithCategory(logger.CategoryWebSocket, "WebSocket write failed",
					map[string]interface{}{"remote_ip": remote, "error": err.Error()})
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, n FrameNotice) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(n)
}

// readPump drains client messages so control frames are processed, and
// signals closed when the client goes away.
func (h *Hub) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
