package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/break-tracker/internal/engine"
	"github.com/danielpatrickdp/break-tracker/internal/signals"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans transitions out to every connected websocket client.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	snapshot func() SnapshotPayload
	logger   *zap.Logger
}

// NewBroadcaster creates a broadcaster. snapshot is sent to each new client.
func NewBroadcaster(snapshot func() SnapshotPayload, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		clients:  make(map[*client]bool),
		snapshot: snapshot,
		logger:   logger,
	}
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	// the snapshot is queued before registration so it precedes any transition
	if b.snapshot != nil {
		data, _ := json.Marshal(WSMessage{Type: MsgSnapshot, Payload: b.snapshot()})
		c.send <- data
	}

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()
	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// Notify implements engine.Notifier.
func (b *Broadcaster) Notify(res engine.Result) {
	b.broadcast(WSMessage{
		Type: MsgTransition,
		Payload: TransitionPayload{
			Outcome: string(res.Outcome),
			Signal:  signals.MessageFrom(res.Signal),
			Session: res.Session,
			Current: res.Current,
			Reason:  res.Reason,
		},
	})
}

// sendTo queues a message for one client, dropping it if the client is slow.
func (b *Broadcaster) sendTo(c *client, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Warn("ws marshal", zap.Error(err))
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Warn("broadcast marshal", zap.Error(err))
		return
	}

	// sends happen under the read lock so RemoveClient cannot close a channel mid-send
	b.mu.RLock()
	var slow []*client
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Warn("ws client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		delete(b.clients, c)
		c.close()
	}
}
