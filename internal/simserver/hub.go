package simserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"brilho/internal/events"
	"brilho/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

// Hub fans push events out to connected clients, keyed by user and by room.
// Viewer presence per room is tracked in Redis when a client is provided,
// falling back to the in-memory room maps otherwise.
type Hub struct {
	mu    sync.RWMutex
	users map[uint]map[*hubClient]struct{}
	rooms map[uint]map[*hubClient]struct{}

	rdb *redis.Client
}

type hubClient struct {
	userID uint
	conn   *websocket.Conn
	sendMu sync.Mutex
}

// NewHub creates a Hub, optionally backed by Redis for presence counts.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		users: make(map[uint]map[*hubClient]struct{}),
		rooms: make(map[uint]map[*hubClient]struct{}),
		rdb:   rdb,
	}
}

func roomPresenceKey(roomID uint) string {
	return fmt.Sprintf("sim:room:%d:viewers", roomID)
}

// Register adds a connection for userID.
func (h *Hub) Register(userID uint, conn *websocket.Conn) *hubClient {
	c := &hubClient{userID: userID, conn: conn}
	h.mu.Lock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[*hubClient]struct{})
	}
	h.users[userID][c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Unregister drops a connection and removes it from every room.
func (h *Hub) Unregister(c *hubClient) {
	h.mu.Lock()
	if m, ok := h.users[c.userID]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.users, c.userID)
		}
	}
	var emptied []uint
	for roomID, members := range h.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			observability.RoomConnectionsTotal.WithLabelValues(fmt.Sprint(roomID)).Dec()
			emptied = append(emptied, roomID)
		}
	}
	h.mu.Unlock()

	for _, roomID := range emptied {
		h.removePresence(c.userID, roomID)
	}
}

// JoinRoom subscribes a client to a room. Idempotent.
func (h *Hub) JoinRoom(c *hubClient, roomID uint) {
	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*hubClient]struct{})
	}
	if _, ok := h.rooms[roomID][c]; ok {
		h.mu.Unlock()
		return
	}
	h.rooms[roomID][c] = struct{}{}
	h.mu.Unlock()

	observability.RoomConnectionsTotal.WithLabelValues(fmt.Sprint(roomID)).Inc()
	if h.rdb != nil {
		if err := h.rdb.SAdd(context.Background(), roomPresenceKey(roomID), fmt.Sprint(c.userID)).Err(); err != nil {
			log.Printf("presence add failed for room %d: %v", roomID, err)
		}
	}
}

// LeaveRoom unsubscribes a client from a room. Idempotent.
func (h *Hub) LeaveRoom(c *hubClient, roomID uint) {
	h.mu.Lock()
	members, ok := h.rooms[roomID]
	if ok {
		if _, in := members[c]; !in {
			ok = false
		} else {
			delete(members, c)
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	observability.RoomConnectionsTotal.WithLabelValues(fmt.Sprint(roomID)).Dec()
	h.removePresence(c.userID, roomID)
}

func (h *Hub) removePresence(userID, roomID uint) {
	if h.rdb == nil {
		return
	}
	if err := h.rdb.SRem(context.Background(), roomPresenceKey(roomID), fmt.Sprint(userID)).Err(); err != nil {
		log.Printf("presence remove failed for room %d: %v", roomID, err)
	}
}

// RoomViewers reports the audience size of a room.
func (h *Hub) RoomViewers(roomID uint) int {
	if h.rdb != nil {
		n, err := h.rdb.SCard(context.Background(), roomPresenceKey(roomID)).Result()
		if err == nil {
			return int(n)
		}
		log.Printf("presence count failed for room %d: %v", roomID, err)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// SendUser pushes one event to every connection of a user.
func (h *Hub) SendUser(userID uint, eventType string, payload interface{}) {
	raw, err := marshalEnvelope(eventType, payload)
	if err != nil {
		log.Printf("failed to marshal %s event: %v", eventType, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		c.trySend(raw)
	}
}

// SendRoom pushes one event to every connection subscribed to a room.
func (h *Hub) SendRoom(roomID uint, eventType string, payload interface{}) {
	raw, err := marshalEnvelope(eventType, payload)
	if err != nil {
		log.Printf("failed to marshal %s event: %v", eventType, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		c.trySend(raw)
	}
}

// SendAll pushes one event to every connected client.
func (h *Hub) SendAll(eventType string, payload interface{}) {
	raw, err := marshalEnvelope(eventType, payload)
	if err != nil {
		log.Printf("failed to marshal %s event: %v", eventType, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conns := range h.users {
		for c := range conns {
			c.trySend(raw)
		}
	}
}

func marshalEnvelope(eventType string, payload interface{}) ([]byte, error) {
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(events.Envelope{Type: eventType, Payload: rawPayload})
}

func (c *hubClient) trySend(raw []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		log.Printf("push write to user %d failed: %v", c.userID, err)
	}
}
