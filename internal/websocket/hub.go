package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"biblo-chat-be/internal/dto"
	"biblo-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionEventsChannel is the Redis channel shared by every instance.
const SessionEventsChannel = "session_events"

// ActivityFunc records client activity on a session. It reports whether the session is live.
type ActivityFunc func(sessionID string) bool

// Hub tracks liveness sockets per session and closes them when the session ends,
// on this instance or, through Redis, on any other.
type Hub struct {
	// Registered clients: SessionID -> attached sockets (several tabs may watch one session)
	clients map[string][]*Client

	mu sync.RWMutex

	// Redis connection for cross-instance communication; nil runs single-instance.
	rdb *redis.Client

	instanceID string
	activity   ActivityFunc
	logger     logger.ILogger
}

type clusterMessage struct {
	Origin    string          `json:"origin"`
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, activity ActivityFunc, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		activity:   activity,
		logger:     log,
	}
}

// Run relays session events from other instances until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	if h.rdb == nil {
		<-ctx.Done()
		return nil
	}

	pubsub := h.rdb.Subscribe(ctx, SessionEventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.handleClusterMessage([]byte(msg.Payload))
		}
	}
}

func (h *Hub) handleClusterMessage(raw []byte) {
	var payload clusterMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
		return
	}
	if payload.Origin == h.instanceID {
		return
	}
	h.deliverAndClose(payload.SessionID, payload.Message)
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
	h.mu.Unlock()
	h.logger.Debug("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID})
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	clients := h.clients[client.SessionID]
	for i, c := range clients {
		if c == client {
			h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.clients[client.SessionID]) == 0 {
		delete(h.clients, client.SessionID)
	}
	h.mu.Unlock()

	client.close()
}

// ClientCount returns the number of sockets attached to a session.
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// touch forwards socket activity to the session store.
func (h *Hub) touch(sessionID string) bool {
	if h.activity == nil {
		return true
	}
	return h.activity(sessionID)
}

// NotifySessionEnded pushes session_status "ended" to every socket watching the session
// and closes them.
func (h *Hub) NotifySessionEnded(ctx context.Context, sessionID string) {
	data, err := json.Marshal(dto.SessionStatusFrame(dto.SessionStatusEnded, nil))
	if err != nil {
		return
	}

	h.deliverAndClose(sessionID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{
			Origin:    h.instanceID,
			SessionID: sessionID,
			Message:   data,
		})
		if err := h.rdb.Publish(ctx, SessionEventsChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to publish session event", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}
}

func (h *Hub) deliverAndClose(sessionID string, data []byte) {
	h.mu.Lock()
	clients := h.clients[sessionID]
	delete(h.clients, sessionID)
	h.mu.Unlock()

	for _, client := range clients {
		client.enqueue(data)
		client.close()
	}
	if len(clients) > 0 {
		h.logger.Info("Hub", "Closed liveness sockets of ended session", map[string]interface{}{
			"session_id": sessionID,
			"sockets":    len(clients),
		})
	}
}
