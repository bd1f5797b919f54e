package api

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"neurodyn/domain/run"
	"neurodyn/internal"

	"github.com/gin-gonic/gin"
)

// SSEClient represents a connected SSE client
type SSEClient struct {
	CohortID string
	Channel  chan run.CohortEvent
}

// SSEHub fans cohort progress events out to Server-Sent Events subscribers,
// keyed by cohort ID. It implements ports.EventPublisher.
type SSEHub struct {
	clients    map[string]map[chan run.CohortEvent]bool
	clientsMu  sync.RWMutex
	register   chan SSEClient
	unregister chan SSEClient
	broadcast  chan run.CohortEvent
	done       chan struct{}
	logger     *internal.Logger

	keepAlive time.Duration
}

// NewSSEHub creates a hub and starts its dispatch loop
func NewSSEHub(logger *internal.Logger) *SSEHub {
	hub := &SSEHub{
		clients:    make(map[string]map[chan run.CohortEvent]bool),
		register:   make(chan SSEClient, 10),
		unregister: make(chan SSEClient, 10),
		broadcast:  make(chan run.CohortEvent, 100),
		done:       make(chan struct{}),
		logger:     logger,
		keepAlive:  30 * time.Second,
	}

	go hub.run()
	return hub
}

func (h *SSEHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			if h.clients[client.CohortID] == nil {
				h.clients[client.CohortID] = make(map[chan run.CohortEvent]bool)
			}
			h.clients[client.CohortID][client.Channel] = true
			h.logger.Debug("[SSE] client registered for cohort %s (total clients: %d)",
				client.CohortID, len(h.clients[client.CohortID]))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if clients, exists := h.clients[client.CohortID]; exists {
				delete(clients, client.Channel)
				close(client.Channel)
				if len(clients) == 0 {
					delete(h.clients, client.CohortID)
				}
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for clientChan := range h.clients[event.CohortID.String()] {
				select {
				case clientChan <- event:
				default:
					h.logger.Warn("[SSE] client channel full for cohort %s, skipping %s",
						event.CohortID, event.EventType)
				}
			}
			h.clientsMu.RUnlock()

		case <-h.done:
			return
		}
	}
}

// Publish queues an event for the subscribers of its cohort. Events are
// dropped when the queue is full.
func (h *SSEHub) Publish(event run.CohortEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("[SSE] broadcast channel full, dropping event: %s", event.EventType)
	}
}

// Close stops the dispatch loop
func (h *SSEHub) Close() {
	close(h.done)
}

// Subscribe registers a channel for cohortID. The returned cancel function
// unregisters it and closes the channel.
func (h *SSEHub) Subscribe(cohortID string) (<-chan run.CohortEvent, func()) {
	ch := make(chan run.CohortEvent, 10)
	h.register <- SSEClient{CohortID: cohortID, Channel: ch}
	return ch, func() {
		h.unregister <- SSEClient{CohortID: cohortID, Channel: ch}
	}
}

// HandleSSE streams the events of the cohort named by the cohort_id query
// parameter until the client disconnects or the cohort completes.
func (h *SSEHub) HandleSSE(c *gin.Context) {
	cohortID := c.Query("cohort_id")
	if cohortID == "" {
		c.JSON(400, gin.H{"error": "cohort_id parameter required"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events, cancel := h.Subscribe(cohortID)
	defer cancel()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			eventJSON, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("[SSE] failed to marshal event: %v", err)
				return true
			}
			c.SSEvent("cohort", string(eventJSON))
			return event.EventType != run.EventCohortComplete

		case <-time.After(h.keepAlive):
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}

// GetClientCount returns the number of active clients for a cohort
func (h *SSEHub) GetClientCount(cohortID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[cohortID])
}
