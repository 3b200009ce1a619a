package services

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub fans room events out to connected host UI clients. It replaces the
// realtime subscriptions the UI would otherwise need against the store: the
// UI opens one socket per room and re-fetches on events.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	events     chan roomEvent
	logger     *zap.Logger
}

type Client struct {
	hub    *Hub
	socket *websocket.Conn
	send   chan []byte
	roomID string
}

type HubMessage struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Payload any    `json:"payload"`
}

type roomEvent struct {
	roomID string
	data   []byte
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan roomEvent, 64),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("ws client registered", zap.String("roomId", client.roomID))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("ws client unregistered", zap.String("roomId", client.roomID))
			}

		case event := <-h.events:
			for client := range h.clients {
				if client.roomID != event.roomID {
					continue
				}
				select {
				case client.send <- event.data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// PublishRoomEvent implements EventPublisher. Events are best-effort: when
// the hub's buffer is full the event is dropped rather than blocking a
// message handler.
func (h *Hub) PublishRoomEvent(roomID, eventType string, payload any) {
	data, err := json.Marshal(HubMessage{Type: eventType, RoomID: roomID, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal room event", zap.Error(err))
		return
	}
	select {
	case h.events <- roomEvent{roomID: roomID, data: data}:
	default:
		h.logger.Warn("room event dropped, hub buffer full",
			zap.String("roomId", roomID), zap.String("type", eventType))
	}
}

// RegisterClient attaches a websocket connection to a room's event stream.
func (h *Hub) RegisterClient(conn *websocket.Conn, roomID string) *Client {
	client := &Client{
		hub:    h,
		socket: conn,
		send:   make(chan []byte, 256),
		roomID: roomID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.socket.Close()
	}()

	// The UI never sends anything meaningful; reading just detects closure.
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("ws read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.socket.Close()

	for message := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}
