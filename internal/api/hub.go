package api

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/procwarden/internal/infrastructure/config"
	"github.com/nerrad567/procwarden/internal/infrastructure/logging"
	"github.com/nerrad567/procwarden/internal/process"
)

// Subscription channels beyond the plain event types.
const (
	// ChannelAll receives every lifecycle event.
	ChannelAll = "*"

	// channelProcessPrefix scopes a subscription to one pid: "process/1234".
	channelProcessPrefix = "process/"
)

// ProcessChannel returns the channel carrying every event for pid.
func ProcessChannel(pid int) string {
	return channelProcessPrefix + strconv.Itoa(pid)
}

// eventChannels lists the channels an event is delivered on.
func eventChannels(e process.Event) []string {
	channels := []string{string(e.Type), ChannelAll}
	if e.PID > 0 {
		channels = append(channels, ProcessChannel(e.PID))
	}
	return channels
}

// ProcessSource answers the list and tail queries. *process.Manager
// satisfies it.
type ProcessSource interface {
	List() []process.Info
	Output(pid int) (process.Output, error)
}

// Hub tracks WebSocket clients and routes lifecycle events to them.
//
// Thread Safety: all methods are safe for concurrent use.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	source  ProcessSource
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// NewHub creates a hub. source may be nil, in which case clients can still
// subscribe but list and tail queries are refused.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, source ProcessSource) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		source:  source,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and closes its outbound queue. Repeated calls
// are harmless.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish delivers a lifecycle event to every client subscribed to its type,
// its pid channel or the wildcard.
func (h *Hub) Publish(e process.Event) {
	h.broadcast(eventChannels(e), string(e.Type), e)
}

func (h *Hub) broadcast(channels []string, eventType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "error", err, "event_type", eventType)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		if c.subscribedToAny(channels) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range targets {
		if !c.trySend(data) {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("websocket clients too slow, event dropped", "event_type", eventType, "clients", dropped)
	}
}

// HubSink relays lifecycle events to WebSocket clients.
type HubSink struct {
	hub *Hub
}

// NewHubSink creates an event sink publishing through hub.
func NewHubSink(hub *Hub) *HubSink {
	return &HubSink{hub: hub}
}

// Name identifies the sink in dispatcher logs.
func (s *HubSink) Name() string { return "websocket" }

// Deliver publishes e to subscribed clients.
func (s *HubSink) Deliver(_ context.Context, e process.Event) error {
	s.hub.Publish(e)
	return nil
}
