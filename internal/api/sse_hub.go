package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"fractalscan/domain/fractal"

	"github.com/gin-gonic/gin"
)

// AllConversations subscribes to scans of every conversation
const AllConversations = "*"

// ScanEvent is the compact form of a record pushed to stream clients
type ScanEvent struct {
	ScanID         string         `json:"scan_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Status         fractal.Status `json:"status"`
	Alert          bool           `json:"alert"`
	InfluenceScore float64        `json:"influence_score"`
	ActiveTiers    int            `json:"active_tiers"`
	AlignedTiers   int            `json:"aligned_tiers"`
	CreatedAt      int64          `json:"created_at"`
}

// NewScanEvent summarizes a record for streaming
func NewScanEvent(rec *fractal.Record) ScanEvent {
	return ScanEvent{
		ScanID:         rec.ID.String(),
		ConversationID: rec.ConversationID.String(),
		Status:         rec.Summary.Status,
		Alert:          rec.Summary.Alert,
		InfluenceScore: rec.InfluenceScore,
		ActiveTiers:    rec.Summary.ActiveTiers,
		AlignedTiers:   rec.Summary.AlignedTiers,
		CreatedAt:      rec.CreatedAt,
	}
}

// SSEHub fans completed scans out to Server-Sent Events clients, keyed by
// conversation ID
type SSEHub struct {
	clients   map[string]map[chan ScanEvent]bool
	clientsMu sync.RWMutex
	broadcast chan ScanEvent
	done      chan struct{}
	keepAlive time.Duration
}

// DefaultKeepAlive is the ping interval used when none is configured
const DefaultKeepAlive = 15 * time.Second

// NewSSEHub creates a hub and starts its fan-out loop. Clients are pinged
// every keepAlive.
func NewSSEHub(keepAlive time.Duration) *SSEHub {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	hub := &SSEHub{
		clients:   make(map[string]map[chan ScanEvent]bool),
		broadcast: make(chan ScanEvent, 100),
		done:      make(chan struct{}),
		keepAlive: keepAlive,
	}

	go hub.run()
	return hub
}

func (h *SSEHub) run() {
	for {
		select {
		case event := <-h.broadcast:
			h.clientsMu.RLock()
			h.deliver(event.ConversationID, event)
			if event.ConversationID != AllConversations {
				h.deliver(AllConversations, event)
			}
			h.clientsMu.RUnlock()
		case <-h.done:
			return
		}
	}
}

// deliver must be called with clientsMu held
func (h *SSEHub) deliver(topic string, event ScanEvent) {
	for clientChan := range h.clients[topic] {
		select {
		case clientChan <- event:
		default:
			log.Printf("[SSE] Client channel full for %q, skipping scan %s", topic, event.ScanID)
		}
	}
}

// Close stops the fan-out loop
func (h *SSEHub) Close() {
	close(h.done)
}

// Subscribe registers a client for a conversation, or AllConversations. The
// returned func unregisters and closes the channel.
func (h *SSEHub) Subscribe(topic string) (<-chan ScanEvent, func()) {
	ch := make(chan ScanEvent, 10)

	h.clientsMu.Lock()
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[chan ScanEvent]bool)
	}
	h.clients[topic][ch] = true
	h.clientsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.clientsMu.Lock()
			defer h.clientsMu.Unlock()
			if clients, exists := h.clients[topic]; exists {
				delete(clients, ch)
				if len(clients) == 0 {
					delete(h.clients, topic)
				}
			}
			close(ch)
		})
	}
}

// Publish queues a record for delivery without blocking the scan path
func (h *SSEHub) Publish(rec *fractal.Record) {
	select {
	case h.broadcast <- NewScanEvent(rec):
	default:
		log.Printf("[SSE] Broadcast channel full, dropping scan %s", rec.ID)
	}
}

// ClientCount returns the number of clients subscribed to a topic
func (h *SSEHub) ClientCount(topic string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[topic])
}

// HandleSSE streams scan events. ?conversation_id= narrows the feed.
func (h *SSEHub) HandleSSE(c *gin.Context) {
	topic := c.DefaultQuery("conversation_id", AllConversations)

	// the server's WriteTimeout would otherwise cut every stream
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		log.Printf("[SSE] Failed to clear write deadline: %v", err)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	events, unsubscribe := h.Subscribe(topic)
	defer unsubscribe()

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			payload, err := json.Marshal(event)
			if err != nil {
				log.Printf("[SSE] Failed to marshal scan event: %v", err)
				return true
			}
			c.SSEvent("scan", string(payload))
			return true

		case <-ticker.C:
			c.SSEvent("ping", `{"status":"alive"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}
