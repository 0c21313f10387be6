package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ayusman/avoid/internal/telemetry"
)

// DefaultBroadcastInterval matches the active capture rate.
const DefaultBroadcastInterval = 66 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

type wsClient struct {
	sent   uint64
	primed bool
}

// TelemetryHandler pushes each new snapshot to connected websocket clients.
type TelemetryHandler struct {
	publisher *telemetry.Publisher
	interval  time.Duration
	log       zerolog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]*wsClient

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewTelemetryHandler starts the broadcaster. Call Close to stop it.
func NewTelemetryHandler(p *telemetry.Publisher, interval time.Duration, log zerolog.Logger) *TelemetryHandler {
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}
	h := &TelemetryHandler{
		publisher: p,
		interval:  interval,
		log:       log,
		clients:   make(map[*websocket.Conn]*wsClient),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP upgrades the connection and keeps it registered until the client
// disconnects.
func (h *TelemetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = &wsClient{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Reads only detect the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *TelemetryHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *TelemetryHandler) broadcast() {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.push()
		}
	}
}

func (h *TelemetryHandler) push() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		return
	}

	snap := h.publisher.Latest()
	var msg []byte

	for conn, c := range h.clients {
		if c.primed && c.sent == snap.Seq {
			continue
		}
		if msg == nil {
			var err error
			if msg, err = json.Marshal(snap); err != nil {
				h.log.Error().Err(err).Msg("encode snapshot")
				return
			}
		}

		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug().Err(err).Msg("drop websocket client")
			conn.Close()
			delete(h.clients, conn)
			continue
		}
		c.sent, c.primed = snap.Seq, true
	}
}

// Close stops the broadcaster and disconnects every client.
func (h *TelemetryHandler) Close() {
	h.stopOnce.Do(func() {
		close(h.stop)
		<-h.done

		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
		}
		h.mu.Unlock()
	})
}
