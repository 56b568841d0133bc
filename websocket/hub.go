package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// eventsChannel is the redis pub/sub channel shared by every API instance.
const eventsChannel = "realty:events"

const (
	targetUser   = "user"
	targetThread = "thread"
)

// envelope is what travels over redis: an encoded frame plus its audience.
type envelope struct {
	Target   string          `json:"target"`
	TargetID uint            `json:"target_id"`
	Frame    json.RawMessage `json:"frame"`
}

// Hub maintains the set of active clients and routes frames to users and
// thread rooms. With a redis client it publishes every event so all API
// instances deliver to their own sockets; without one it delivers locally.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// userID -> connected sockets
	users map[uint]map[*Client]bool

	// threadID -> sockets that joined the thread
	threads map[uint]map[*Client]bool

	mu sync.RWMutex

	redis *redis.Client

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// closed once Run returns
	done chan struct{}
}

// NewHub creates a new hub instance. rdb may be nil.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		users:      make(map[uint]map[*Client]bool),
		threads:    make(map[uint]map[*Client]bool),
		redis:      rdb,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if _, ok := h.users[client.userID]; !ok {
				h.users[client.userID] = make(map[*Client]bool)
			}
			h.users[client.userID][client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()
		}
	}
}

// shutdown closes every remaining client and releases pending
// register/unregister senders.
func (h *Hub) shutdown() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.drop(client)
	}
}

// addClient hands a new client to Run. It reports false once the hub has
// stopped.
func (h *Hub) addClient(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) removeClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Start subscribes to the shared events channel. It returns once the
// subscription is confirmed so no event published afterwards is missed.
func (h *Hub) Start(ctx context.Context) error {
	if h.redis == nil {
		return nil
	}
	sub := h.redis.Subscribe(ctx, eventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe to %s: %w", eventsChannel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Printf("error unmarshaling event: %v", err)
					continue
				}
				h.deliver(env)
			}
		}
	}()
	return nil
}

// NotifyUser sends an event to every socket of a user.
func (h *Hub) NotifyUser(userID uint, eventType string, payload interface{}) {
	h.publish(targetUser, userID, eventType, payload)
}

// BroadcastToThread sends an event to every socket that joined the thread.
func (h *Hub) BroadcastToThread(threadID uint, eventType string, payload interface{}) {
	h.publish(targetThread, threadID, eventType, payload)
}

// isOnline reports whether the user has a socket on this instance.
func (h *Hub) isOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

func (h *Hub) publish(target string, targetID uint, eventType string, payload interface{}) {
	frame, err := json.Marshal(Message{Type: eventType, Payload: payload})
	if err != nil {
		log.Printf("error marshaling message: %v", err)
		return
	}
	env := envelope{Target: target, TargetID: targetID, Frame: frame}

	if h.redis != nil {
		data, err := json.Marshal(env)
		if err != nil {
			log.Printf("error marshaling event: %v", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = h.redis.Publish(ctx, eventsChannel, data).Err()
		if err == nil {
			return
		}
		log.Printf("error publishing event, delivering locally: %v", err)
	}
	h.deliver(env)
}

func (h *Hub) deliver(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var targets map[*Client]bool
	switch env.Target {
	case targetUser:
		targets = h.users[env.TargetID]
	case targetThread:
		targets = h.threads[env.TargetID]
	default:
		return
	}
	for client := range targets {
		select {
		case client.send <- env.Frame:
		default:
			// slow consumer
			h.drop(client)
		}
	}
}

// sendTo writes a frame to a single client unless it is already gone.
func (h *Hub) sendTo(client *Client, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- frame:
	default:
		h.drop(client)
	}
}

// joinThread adds a client to a thread room
func (h *Hub) joinThread(client *Client, threadID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return
	}
	if _, ok := h.threads[threadID]; !ok {
		h.threads[threadID] = make(map[*Client]bool)
	}
	h.threads[threadID][client] = true
}

// leaveThread removes a client from a thread room
func (h *Hub) leaveThread(client *Client, threadID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	removeFrom(h.threads, threadID, client)
}

func (h *Hub) threadSize(threadID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.threads[threadID])
}

// drop forgets a client and closes its send channel. h.mu must be held.
func (h *Hub) drop(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	close(client.send)

	removeFrom(h.users, client.userID, client)
	for threadID := range h.threads {
		removeFrom(h.threads, threadID, client)
	}
}

func removeFrom(rooms map[uint]map[*Client]bool, id uint, client *Client) {
	clients, ok := rooms[id]
	if !ok {
		return
	}
	delete(clients, client)
	// Clean up empty rooms
	if len(clients) == 0 {
		delete(rooms, id)
	}
}
