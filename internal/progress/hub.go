package progress

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 2 * time.Second
	// queueSize bounds the events buffered per client before it is dropped.
	queueSize = 64
)

// client is one connected stream consumer. Only its writer goroutine
// calls send.
type client interface {
	send(msg []byte) error
	close() error
	transport() string
}

type tcpClient struct{ conn net.Conn }

func (c *tcpClient) send(msg []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := c.conn.Write(msg)
	return err
}

func (c *tcpClient) close() error      { return c.conn.Close() }
func (c *tcpClient) transport() string { return "tcp" }

type wsClient struct{ conn *websocket.Conn }

func (c *wsClient) send(msg []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *wsClient) close() error      { return c.conn.Close() }
func (c *wsClient) transport() string { return "websocket" }

// Hub fans events out to stream clients as JSON lines and keeps the latest
// event per stage or sync entity so late joiners start from current state.
// Each client drains its own queue; a client whose queue is full is dropped
// rather than stalling Observe.
type Hub struct {
	mu      sync.Mutex
	queues  map[client]chan []byte
	last    map[string]Event
	dropped int
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
	Dropped    int `json:"dropped"`
}

type welcome struct {
	Type      string           `json:"type"`
	Transport string           `json:"transport"`
	Clients   int              `json:"clients"`
	Latest    map[string]Event `json:"latest,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		queues: make(map[client]chan []byte),
		last:   make(map[string]Event),
	}
}

func snapshotKey(e Event) string {
	if e.Entity != "" {
		return "sync:" + e.Entity
	}
	return e.Stage
}

// Observe records e as the latest for its key and queues it for every
// client without blocking.
func (h *Hub) Observe(e Event) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[snapshotKey(e)] = e
	for c, q := range h.queues {
		select {
		case q <- b:
		default:
			h.removeLocked(c)
			h.dropped++
			_ = c.close()
		}
	}
}

// Snapshot returns the latest event per stage ("<stage>") or sync entity
// ("sync:<entity>").
func (h *Hub) Snapshot() map[string]Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Hub) snapshotLocked() map[string]Event {
	out := make(map[string]Event, len(h.last))
	for k, v := range h.last {
		out[k] = v
	}
	return out
}

// join queues the current snapshot as c's greeting, registers c and starts
// its writer. Queueing under the lock keeps the greeting ahead of any event.
func (h *Hub) join(c client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg, err := json.Marshal(welcome{
		Type:      "welcome",
		Transport: c.transport(),
		Clients:   len(h.queues) + 1,
		Latest:    h.snapshotLocked(),
	})
	if err != nil {
		return err
	}
	q := make(chan []byte, queueSize)
	q <- append(msg, '\n')
	h.queues[c] = q
	go h.write(c, q)
	return nil
}

// write drains q into c until q is closed or a send fails.
func (h *Hub) write(c client, q <-chan []byte) {
	for msg := range q {
		if err := c.send(msg); err != nil {
			h.leave(c)
			for range q {
			}
			return
		}
	}
}

func (h *Hub) removeLocked(c client) {
	if q, ok := h.queues[c]; ok {
		delete(h.queues, c)
		close(q)
	}
}

func (h *Hub) leave(c client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
	_ = c.close()
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Stats{Dropped: h.dropped}
	for c := range h.queues {
		switch c.(type) {
		case *tcpClient:
			s.TCPClients++
		case *wsClient:
			s.WSClients++
		}
	}
	return s
}
