package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/progress"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisChannel = "research_progress_events"

// Hub fans progress events out to the WebSocket clients watching a session.
// A session can have several connections (multiple tabs), and with Redis
// configured events reach clients connected to other instances too.
type Hub struct {
	// sessionID -> connected clients
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out, may be nil.
	rdb *redis.Client

	// Identifies this process on the Redis channel so it can skip its own
	// publishes; local delivery already happened in SendToSession.
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
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
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.SessionID]) == 0 {
					delete(h.clients, client.SessionID)
					h.logger.Info("Hub", "Session fully disconnected", map[string]interface{}{"session_id": client.SessionID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// ConsumeProgress pipes the in-process progress bus into the hub. Runs until
// the context is cancelled or the bus closes.
func (h *Hub) ConsumeProgress(ctx context.Context, bus *progress.Bus) error {
	messages, err := bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	for msg := range messages {
		var event progress.Event
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			h.logger.Warn("Hub", "Unparseable progress event", map[string]interface{}{"error": err.Error()})
			msg.Ack()
			continue
		}
		h.SendToSession(event.SessionID, msg.Payload)
		msg.Ack()
	}
	return nil
}

// SendToSession delivers one payload to every local client of the session and
// publishes it for other instances. Delivery is best effort: a client whose
// buffer is full gets dropped. Only the unregister handler closes Send, so a
// full buffer never double-closes the channel.
func (h *Hub) SendToSession(sessionID string, data []byte) {
	h.mu.RLock()
	clients, found := h.clients[sessionID]
	h.mu.RUnlock()

	if found {
		for _, client := range clients {
			select {
			case client.Send <- data:
			default:
				h.logger.Warn("Hub", "Client buffer full, dropping connection", map[string]interface{}{"session_id": sessionID})
				h.unregister <- client
			}
		}
	}

	if h.rdb != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"origin":            h.instanceID,
			"target_session_id": sessionID,
			"message":           json.RawMessage(data),
		})
		h.rdb.Publish(context.Background(), redisChannel, payload)
	}
}

// subscribeToRedis receives events published by other instances and delivers
// them to local clients only. Local delivery in SendToSession already covers
// this instance, so remote payloads are never republished.
func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			Origin          string          `json:"origin"`
			TargetSessionID string          `json:"target_session_id"`
			Message         json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Unparseable cluster event", map[string]interface{}{"error": err.Error()})
			continue
		}
		if payload.Origin == h.instanceID {
			continue
		}

		h.mu.RLock()
		clients, ok := h.clients[payload.TargetSessionID]
		h.mu.RUnlock()
		if !ok {
			continue
		}

		for _, client := range clients {
			select {
			case client.Send <- payload.Message:
			default:
				h.unregister <- client
			}
		}
	}
}
