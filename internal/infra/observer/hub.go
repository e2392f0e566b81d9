// Package observer broadcasts tick/rule/violation events to connected
// websocket clients, adapted from the teacher's Hub
// (internal/infrastructure/websocket/hub.go). The teacher's per-user,
// per-workflow, per-execution subscription indexes are collapsed to a
// single per-branch index, since a Longtable process drives one world
// (optionally with several timeline branches) rather than many
// independent workflow executions.
package observer

import (
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// EventType identifies what kind of kernel event a Event carries.
type EventType string

const (
	EventTickCommitted EventType = "tick_committed"
	EventTickAborted   EventType = "tick_aborted"
	EventRuleFired     EventType = "rule_fired"
	EventViolation     EventType = "violation"
)

// Event is one broadcastable kernel notification.
type Event struct {
	Type   EventType `json:"type"`
	Branch string    `json:"branch"`
	TickID uint64    `json:"tick_id"`
	Detail any       `json:"detail,omitempty"`
}

// Client wraps one websocket connection and the branches it is
// subscribed to.
type Client struct {
	conn     *websocket.Conn
	send     chan *Event
	branches map[string]bool
}

// NewClient wraps an already-upgraded websocket connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn, send: make(chan *Event, 64), branches: map[string]bool{}}
}

type broadcastMsg struct {
	branch string
	event  *Event
}

// Hub manages connected Clients and routes Events to the ones subscribed
// to the affected branch.
type Hub struct {
	clients    map[*Client]bool
	byBranch   map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg
}

// NewHub returns an idle Hub; call Run in a goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byBranch:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
	}
}

// Run processes register/unregister/broadcast until the hub is abandoned.
// It is meant to run in its own goroutine for the life of the process.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			log.Debug().Int("total_clients", len(h.clients)).Msg("observer client registered")
		case c := <-h.unregister:
			h.removeClient(c)
		case msg := <-h.broadcast:
			h.dispatch(msg)
		}
	}
}

func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	for branch := range c.branches {
		if set, ok := h.byBranch[branch]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.byBranch, branch)
			}
		}
	}
}

func (h *Hub) dispatch(msg *broadcastMsg) {
	targets := h.byBranch[msg.branch]
	for c := range targets {
		select {
		case c.send <- msg.event:
		default:
			log.Warn().Str("branch", msg.branch).Msg("observer client buffer full, dropping event")
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Subscribe adds branch to the set of branches c receives events for.
func (h *Hub) Subscribe(c *Client, branch string) {
	c.branches[branch] = true
	if h.byBranch[branch] == nil {
		h.byBranch[branch] = make(map[*Client]bool)
	}
	h.byBranch[branch][c] = true
}

// Broadcast emits event to every client subscribed to branch.
func (h *Hub) Broadcast(branch string, event *Event) {
	h.broadcast <- &broadcastMsg{branch: branch, event: event}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int { return len(h.clients) }
