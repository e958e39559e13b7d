package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"BloodLink/pkg/notification"

	"github.com/gin-gonic/gin"
)

type Client struct {
	id     string
	groups map[string]bool
	ch     chan string
	done   chan struct{}
}

// Hub fans notifications out to browsers. A client that joined no group
// receives every event; otherwise only the groups it joined.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	groups   map[string]map[string]bool // group -> clientID set
	interval time.Duration
	retryMs  int
}

func NewHub(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Hub{clients: make(map[string]*Client), groups: make(map[string]map[string]bool), interval: interval, retryMs: 5000}
}

func (h *Hub) AddClient(id string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &Client{id: id, groups: make(map[string]bool), ch: make(chan string, 64), done: make(chan struct{})}
	h.clients[id] = c
	return c
}

func (h *Hub) RemoveClient(id string) {
	h.mu.Lock()
	if c, ok := h.clients[id]; ok {
		close(c.done)
		for g := range c.groups {
			delete(h.groups[g], id)
		}
		delete(h.clients, id)
	}
	h.mu.Unlock()
}

func (h *Hub) Join(id, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	c.groups[group] = true
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]bool)
	}
	h.groups[group][id] = true
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DonorGroup is the group carrying one donor's private notifications.
func DonorGroup(donorID string) string { return notification.ScopeDonor + ":" + donorID }

// Publish implements notification.Publisher. Donor entries go only to that
// donor's group; other scopes go to their group and to unfiltered clients.
func (h *Hub) Publish(scope string, e notification.Entry) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	msg := formatEvent(scope, string(b))

	h.mu.RLock()
	defer h.mu.RUnlock()
	if scope == notification.ScopeDonor {
		h.sendGroupLocked(DonorGroup(e.DonorID), msg)
		return
	}
	h.sendGroupLocked(scope, msg)
	for _, c := range h.clients {
		if len(c.groups) == 0 {
			trySend(c, msg)
		}
	}
}

func (h *Hub) sendGroupLocked(group, msg string) {
	for id := range h.groups[group] {
		if c := h.clients[id]; c != nil {
			trySend(c, msg)
		}
	}
}

// slow consumers drop events rather than block publishers
func trySend(c *Client, msg string) {
	select {
	case c.ch <- msg:
	default:
	}
}

func formatEvent(event, s string) string { return fmt.Sprintf("event: %s\ndata: %s\n\n", event, s) }

// Serve streams events to one client until it disconnects. Each group query
// parameter subscribes to one group.
func (h *Hub) Serve(c *gin.Context, clientID string) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)
	flusher.Flush()

	client := h.AddClient(clientID)
	defer h.RemoveClient(clientID)
	for _, g := range c.QueryArray("group") {
		if g != "" {
			h.Join(clientID, g)
		}
	}

	ping := time.NewTicker(h.interval)
	defer ping.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprintf(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case msg := <-client.ch:
			_, _ = c.Writer.Write([]byte(msg))
			flusher.Flush()
		}
	}
}
