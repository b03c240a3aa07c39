package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dataveil/dataveil/internal/config"
)

// Hub maintains the set of dashboard clients and broadcasts events.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client

	config   config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu    sync.RWMutex
	stats HubStats
}

// HubStats tracks hub statistics.
type HubStats struct {
	TotalConnections  int64 `json:"total_connections"`
	ActiveConnections int64 `json:"active_connections"`
	TotalBroadcasts   int64 `json:"total_broadcasts"`
}

// NewHub creates a hub.
func NewHub(cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		config:     cfg,
		logger:     logger,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.originAllowed,
	}

	return h
}

func (h *Hub) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Run starts the hub loop.
func (h *Hub) Run() {
	h.logger.Info("Starting WebSocket hub")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.config.MaxConnections > 0 && int64(len(h.clients)) >= int64(h.config.MaxConnections) {
		close(client.Send)
		client.Conn.Close()
		h.logger.Warn("Connection limit reached, rejecting client", zap.String("client_ip", client.IP))
		return
	}

	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.ActiveConnections++

	h.logger.Info("Dashboard client connected",
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int64("active_connections", h.stats.ActiveConnections),
	)

	if h.config.Events.BroadcastConnections {
		go h.BroadcastEvent(Event{
			Type:      EventTypeConnection,
			Timestamp: time.Now(),
			Data:      ConnectionEvent{Action: "connected", ClientID: client.ID, ClientIP: client.IP},
		})
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
		h.stats.ActiveConnections--

		h.logger.Info("Dashboard client disconnected",
			zap.String("client_id", client.ID),
			zap.Int64("active_connections", h.stats.ActiveConnections),
		)

		if h.config.Events.BroadcastConnections {
			go h.BroadcastEvent(Event{
				Type:      EventTypeConnection,
				Timestamp: time.Now(),
				Data:      ConnectionEvent{Action: "disconnected", ClientID: client.ID, ClientIP: client.IP},
			})
		}
	}
}

func (h *Hub) broadcastEvent(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.TotalBroadcasts++

	for client := range h.clients {
		if !clientSubscribed(client, event.Type) {
			continue
		}
		select {
		case client.Send <- event:
		default:
			// Slow client: drop it rather than block the hub
			h.logger.Warn("Client send channel full, closing connection",
				zap.String("client_id", client.ID),
			)
			delete(h.clients, client)
			close(client.Send)
			h.stats.ActiveConnections--
		}
	}
}

func clientSubscribed(client *Client, eventType EventType) bool {
	if len(client.Subscribed) == 0 {
		return true
	}
	for _, t := range client.Subscribed {
		if t == eventType {
			return true
		}
	}
	return false
}

// BroadcastEvent queues an event for all subscribed clients, honoring the
// per-kind broadcast configuration.
func (h *Hub) BroadcastEvent(event Event) {
	if !h.shouldBroadcast(event.Type) {
		return
	}

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

func (h *Hub) shouldBroadcast(eventType EventType) bool {
	switch eventType {
	case EventTypeDetection:
		return h.config.Events.BroadcastDetections
	case EventTypeRunProgress:
		return h.config.Events.BroadcastRunProgress
	case EventTypeSystem:
		return h.config.Events.BroadcastSystem
	case EventTypeConnection:
		return h.config.Events.BroadcastConnections
	default:
		return false
	}
}

// RunProgress implements the pipeline observer by broadcasting progress
// events.
func (h *Hub) RunProgress(runID string, processed, total int) {
	percent := 0.0
	if total > 0 {
		percent = float64(processed) / float64(total) * 100
	}
	h.BroadcastEvent(Event{
		Type:      EventTypeRunProgress,
		Timestamp: time.Now(),
		Data: RunProgressEvent{
			RunID:     runID,
			Processed: processed,
			Total:     total,
			Percent:   percent,
			Done:      processed >= total,
		},
	})
}

// HandleWebSocket upgrades an HTTP request into a dashboard connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.NewString(),
		Conn:        conn,
		Send:        make(chan Event, 256),
		ConnectedAt: time.Now(),
		IP:          clientIP(r),
		UserAgent:   r.UserAgent(),
	}

	h.register <- client

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(event); err != nil {
				h.logger.Debug("Failed to write WebSocket message",
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		h.unregister <- client
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(h.config.MaxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
		return nil
	})

	for {
		var msg ClientMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("WebSocket read error",
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
			}
			break
		}
		h.handleClientMessage(client, msg)
	}
}

func (h *Hub) handleClientMessage(client *Client, msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		data, err := json.Marshal(msg.Data)
		if err != nil {
			return
		}
		var sub struct {
			Events []EventType `json:"events"`
		}
		if err := json.Unmarshal(data, &sub); err == nil {
			client.Subscribed = sub.Events
			h.logger.Debug("Client subscription updated",
				zap.String("client_id", client.ID),
				zap.Int("event_types", len(sub.Events)),
			)
		}
	case "ping":
		select {
		case client.Send <- Event{Type: "pong", Timestamp: time.Now()}:
		default:
		}
	}
}

// GetStats returns current hub statistics.
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := h.stats
	stats.ActiveConnections = int64(len(h.clients))
	return stats
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
