package feed

import (
	"time"

	"github.com/gorilla/websocket"

	"firestige.xyz/procsniff/internal/retriever"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64 // messages; packet batches are dropped when full
)

// Message types pushed to clients.
const (
	// TypeReset announces a new retriever. Clients discard earlier packets.
	TypeReset = "reset"
	// TypePackets carries newly appended packets, oldest first.
	TypePackets = "packets"
	// TypeStatus reports that the retriever stopped, with its error if any.
	TypeStatus = "status"
)

// Message is one websocket frame sent to a client.
type Message struct {
	Type    string            `json:"type"`
	Status  *retriever.Status `json:"status,omitempty"`
	Packets []PacketView      `json:"packets,omitempty"`
	Skipped uint64            `json:"skipped,omitempty"` // packets never delivered before this batch
}

type client struct {
	conn *websocket.Conn
	send chan Message
	gone chan struct{}

	// evicted counts packets of queued batches displaced by control
	// messages. Only the pump goroutine touches it.
	evicted uint64
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan Message, sendBuffer),
		gone: make(chan struct{}),
	}
}

// enqueue never blocks. Packet batches are dropped when the buffer is full;
// control messages evict one queued message instead, and the packets of an
// evicted batch are added to evicted.
func (c *client) enqueue(msg Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
	}
	if msg.Type == TypePackets {
		return false
	}
	select {
	case old := <-c.send:
		if old.Type == TypePackets {
			c.evicted += uint64(len(old.Packets))
		}
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// writeLoop drains the send channel until it is closed or a write fails.
func (c *client) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// readLoop discards client input and reports disconnects.
func (c *client) readLoop() {
	defer close(c.gone)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
