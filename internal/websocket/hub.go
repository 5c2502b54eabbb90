package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-bookchat-be/internal/model"
	"ai-bookchat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// clusterChannel carries notification frames between instances so a user
// connected to another node still receives their events.
const clusterChannel = "cluster_events"

// Hub tracks open notification sockets per user. One user may hold several
// connections (multiple tabs, devices); every one of them gets each frame.
type Hub struct {
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Optional cross-instance mirror.
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
					h.logger.Info("Hub", "Last connection closed", map[string]interface{}{"user_id": client.UserID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Send delivers a notification to every connection of one user, locally and
// through the cluster mirror. Implements service.NotificationDelivery.
func (h *Hub) Send(userID uuid.UUID, notification model.Notification) {
	data := frame(notification)

	h.mu.RLock()
	clients, ok := h.clients[userID]
	h.mu.RUnlock()

	if ok {
		h.deliver(clients, data)
	}

	// Always mirror: the same user may be connected elsewhere too.
	h.publishToCluster(userID.String(), data)
}

// Broadcast delivers a notification to every connected client.
func (h *Hub) Broadcast(notification model.Notification) {
	data := frame(notification)

	h.mu.RLock()
	for _, clients := range h.clients {
		h.deliver(clients, data)
	}
	h.mu.RUnlock()

	h.publishToCluster("*", data)
}

func frame(notification model.Notification) []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "notification",
		"data": notification,
	})
	return data
}

func (h *Hub) deliver(clients []*Client, data []byte) {
	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			// A client that cannot keep up gets disconnected, not buffered
			// without bound. Run closes the channel on unregister.
			h.logger.Warn("Hub", "Send buffer full, dropping client", map[string]interface{}{"user_id": client.UserID})
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

type clusterEnvelope struct {
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

func (h *Hub) publishToCluster(target string, data []byte) {
	if h.rdb == nil {
		return
	}
	payload, _ := json.Marshal(clusterEnvelope{TargetUserID: target, Message: data})
	h.rdb.Publish(context.Background(), clusterChannel, payload)
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var env clusterEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			h.logger.Warn("Hub", "Malformed cluster payload", map[string]interface{}{"error": err.Error()})
			continue
		}

		if env.TargetUserID == "*" {
			h.mu.RLock()
			for _, clients := range h.clients {
				h.deliver(clients, env.Message)
			}
			h.mu.RUnlock()
			continue
		}

		uid, err := uuid.Parse(env.TargetUserID)
		if err != nil {
			continue
		}

		h.mu.RLock()
		clients, ok := h.clients[uid]
		h.mu.RUnlock()
		if ok {
			h.deliver(clients, env.Message)
		}
	}
}
