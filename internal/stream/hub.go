package stream

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Hub is the connection registry and room fan-out. Each live connection gets
// a Client; rooms are session codes. An optional redis bridge relays room
// broadcasts between instances.
type Hub struct {
	redis      *redis.Client
	instanceID string
	pubsub     *redis.PubSub

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	joins map[*Client]map[string]struct{}
}

type Client struct {
	ID   string
	Send chan []byte
}

// relay wraps a payload published to redis so the publishing instance can
// skip its own messages on the way back in.
type relay struct {
	Src     string          `json:"src"`
	Payload json.RawMessage `json:"payload"`
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:      redisClient,
		instanceID: uuid.NewString(),
		rooms:      map[string]map[*Client]struct{}{},
		joins:      map[*Client]map[string]struct{}{},
	}

	if redisClient != nil {
		h.pubsub = redisClient.PSubscribe(context.Background(), "buddyway:*:broadcast")
		go h.relayLoop()
	}
	return h
}

// Close stops the redis relay goroutine. Safe on hubs without a bridge and
// safe to call more than once.
func (h *Hub) Close() {
	if h.pubsub != nil {
		_ = h.pubsub.Close()
	}
}

// Register creates a Client for a new connection. The connection id doubles
// as the member id in every session the client joins.
func (h *Hub) Register() *Client {
	client := &Client{
		ID:   uuid.NewString(),
		Send: make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.joins[client] = map[string]struct{}{}
	return client
}

// Unregister drops the client from every room and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.joins[client]; !ok {
		return
	}
	for code := range h.joins[client] {
		h.removeFromRoom(client, code)
	}
	delete(h.joins, client)
	close(client.Send)
}

func (h *Hub) JoinRoom(client *Client, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.joins[client]; !ok {
		return
	}
	if h.rooms[code] == nil {
		h.rooms[code] = map[*Client]struct{}{}
	}
	h.rooms[code][client] = struct{}{}
	h.joins[client][code] = struct{}{}
}

func (h *Hub) LeaveRoom(client *Client, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoom(client, code)
	if joined, ok := h.joins[client]; ok {
		delete(joined, code)
	}
}

// removeFromRoom is called with the lock held.
func (h *Hub) removeFromRoom(client *Client, code string) {
	if room, ok := h.rooms[code]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, code)
		}
	}
}

// InRoom reports whether the client currently belongs to the room.
func (h *Hub) InRoom(client *Client, code string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.joins[client][code]
	return ok
}

// Broadcast delivers the payload to everyone in the room.
func (h *Hub) Broadcast(code string, payload []byte) {
	h.fanOut(code, nil, payload)
	h.publish(code, payload)
}

// BroadcastExcept delivers the payload to everyone in the room but the
// sender. Remote instances never hold the sender's connection, so the relay
// carries the full payload either way.
func (h *Hub) BroadcastExcept(code string, sender *Client, payload []byte) {
	h.fanOut(code, sender, payload)
	h.publish(code, payload)
}

// Unicast delivers the payload to a single client. Clients already
// unregistered are skipped: their send channel is closed.
func (h *Hub) Unicast(client *Client, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.joins[client]; !ok {
		return
	}
	select {
	case client.Send <- payload:
	default:
	}
}

// fanOut sends while holding the read lock. Unregister closes send channels
// under the write lock, so a send can never race a close; the sends are
// non-blocking, so holding the lock across them is cheap.
func (h *Hub) fanOut(code string, skip *Client, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[code] {
		if client == skip {
			continue
		}
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) publish(code string, payload []byte) {
	if h.redis == nil {
		return
	}
	msg, err := json.Marshal(relay{Src: h.instanceID, Payload: payload})
	if err != nil {
		return
	}
	if err := h.redis.Publish(context.Background(), roomChannel(code), msg).Err(); err != nil {
		log.Printf("stream: redis publish error: %v", err)
	}
}

// relayLoop forwards remote room broadcasts until Close shuts the
// subscription down.
func (h *Hub) relayLoop() {
	for msg := range h.pubsub.Channel() {
		code := roomFromChannel(msg.Channel)
		if code == "" {
			continue
		}
		var r relay
		if err := json.Unmarshal([]byte(msg.Payload), &r); err != nil {
			log.Printf("stream: redis relay decode error: %v", err)
			continue
		}
		if r.Src == h.instanceID {
			continue
		}
		h.fanOut(code, nil, r.Payload)
	}
}

func roomChannel(code string) string {
	return "buddyway:" + code + ":broadcast"
}

func roomFromChannel(ch string) string {
	// buddyway:{code}:broadcast
	const prefix = "buddyway:"
	const suffix = ":broadcast"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
