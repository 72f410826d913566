package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Client -> server message types
const (
	msgSubscribeToSession  = "subscribeToSession"
	msgHumanInputSubmitted = "humanInputSubmitted"
)

// WSMessage is the {type, payload} envelope used in both directions
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
	Value     string `json:"value,omitempty"`
}

// wsClient adapts one connection to interfaces.Subscriber.
// Writes are serialized by the connection's mutex.
type wsClient struct {
	id   string
	conn *websocket.Conn
	mu   *sync.Mutex
}

func (c *wsClient) ID() string {
	return c.id
}

func (c *wsClient) Send(kind models.EventKind, payload interface{}) error {
	data, err := json.Marshal(WSMessage{Type: string(kind), Payload: payload})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type WebSocketHandler struct {
	logger      arbor.ILogger
	events      interfaces.EventChannel
	clients     map[*websocket.Conn]*wsClient
	clientMutex map[*websocket.Conn]*sync.Mutex
	mu          sync.RWMutex
}

func NewWebSocketHandler(events interfaces.EventChannel, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		logger:      logger,
		events:      events,
		clients:     make(map[*websocket.Conn]*wsClient),
		clientMutex: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &wsClient{
		id:   common.NewSubscriberID(),
		conn: conn,
		mu:   &sync.Mutex{},
	}

	h.mu.Lock()
	h.clients[conn] = client
	h.clientMutex[conn] = client.mu
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Str("subscriber_id", client.id).Msgf("WebSocket client connected (total: %d)", clientCount)

	// Handle client disconnection
	defer func() {
		h.events.Unsubscribe(client)

		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Str("subscriber_id", client.id).Msgf("WebSocket client disconnected (remaining: %d)", clientCount)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
		h.handleMessage(r.Context(), client, data)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, client *wsClient, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Warn().Err(err).Str("subscriber_id", client.id).Msg("Ignoring malformed WebSocket message")
		return
	}

	var payload sessionPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Ignoring WebSocket message with malformed payload")
			return
		}
	}

	switch msg.Type {
	case msgSubscribeToSession:
		if err := h.events.Subscribe(client, payload.SessionID); err != nil {
			h.logger.Warn().Err(err).Str("session_id", payload.SessionID).Msg("Subscription failed")
		}
	case msgHumanInputSubmitted:
		if payload.SessionID == "" {
			h.logger.Warn().Msg("Human input submitted without session id")
			return
		}
		h.events.SubmitHumanInput(context.WithoutCancel(ctx), payload.SessionID, payload.Value)
	default:
		h.logger.Debug().Str("type", msg.Type).Msg("Ignoring unknown WebSocket message type")
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client, used on shutdown
func (h *WebSocketHandler) CloseAll() {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		c.mu.Unlock()
		_ = c.conn.Close()
	}
}
