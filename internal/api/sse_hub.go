package api

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"reviewguard/internal"

	"github.com/gin-gonic/gin"
)

// allStreams is the key of clients that receive every event
const allStreams = ""

// SSEClient represents a connected SSE client
type SSEClient struct {
	StreamID string
	Channel  chan StreamEvent
}

// StreamEvent is one server-sent training event
type StreamEvent struct {
	StreamID  string                 `json:"stream_id,omitempty"`
	EventType string                 `json:"event_type"`
	RunID     string                 `json:"run_id"`
	Algorithm string                 `json:"algorithm"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// SSEHub fans training events out to Server-Sent Events clients. Clients
// subscribe to one stream ID, or to every stream with an empty ID.
type SSEHub struct {
	clients    map[string]map[chan StreamEvent]bool
	clientsMu  sync.RWMutex
	register   chan SSEClient
	unregister chan SSEClient
	broadcast  chan StreamEvent
	done       chan struct{}
	closeOnce  sync.Once
	logger     *internal.Logger
}

// NewSSEHub creates a new SSE hub and starts its dispatch loop
func NewSSEHub(logger *internal.Logger) *SSEHub {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	hub := &SSEHub{
		clients:    make(map[string]map[chan StreamEvent]bool),
		register:   make(chan SSEClient, 10),
		unregister: make(chan SSEClient, 10),
		broadcast:  make(chan StreamEvent, 100),
		done:       make(chan struct{}),
		logger:     logger.Named("SSE"),
	}

	go hub.run()
	return hub
}

// run processes SSE hub operations
func (h *SSEHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			if h.clients[client.StreamID] == nil {
				h.clients[client.StreamID] = make(map[chan StreamEvent]bool)
			}
			h.clients[client.StreamID][client.Channel] = true
			h.logger.Debug("client registered for stream %q (total clients: %d)",
				client.StreamID, len(h.clients[client.StreamID]))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if clients, exists := h.clients[client.StreamID]; exists {
				delete(clients, client.Channel)
				close(client.Channel)
				if len(clients) == 0 {
					delete(h.clients, client.StreamID)
				}
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			h.deliver(event, event.StreamID)
			if event.StreamID != allStreams {
				h.deliver(event, allStreams)
			}
			h.clientsMu.RUnlock()

		case <-h.done:
			return
		}
	}
}

// deliver must be called with clientsMu held
func (h *SSEHub) deliver(event StreamEvent, streamID string) {
	for clientChan := range h.clients[streamID] {
		select {
		case clientChan <- event:
		default:
			h.logger.Warn("client channel full for stream %q, skipping event", streamID)
		}
	}
}

// Broadcast queues an event without blocking; events are dropped when the
// hub is saturated.
func (h *SSEHub) Broadcast(event StreamEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping event: %s", event.EventType)
	}
}

// Subscribe registers a client for streamID and returns its channel and the
// function that unregisters it.
func (h *SSEHub) Subscribe(streamID string) (<-chan StreamEvent, func()) {
	ch := make(chan StreamEvent, 10)
	client := SSEClient{StreamID: streamID, Channel: ch}
	select {
	case h.register <- client:
	case <-h.done:
		close(ch)
		return ch, func() {}
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			select {
			case h.unregister <- client:
			case <-h.done:
			}
		})
	}
}

// Close stops the dispatch loop
func (h *SSEHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// HandleSSE streams events for the stream_id query parameter, or for every
// stream when it is absent.
func (h *SSEHub) HandleSSE(c *gin.Context) {
	streamID := c.Query("stream_id")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events, unsubscribe := h.Subscribe(streamID)
	defer unsubscribe()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			eventJSON, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event: %v", err)
				return true
			}
			c.SSEvent(event.EventType, string(eventJSON))
			return true

		case <-time.After(30 * time.Second):
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}

// GetClientCount returns the number of active clients for a stream
func (h *SSEHub) GetClientCount(streamID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[streamID])
}
