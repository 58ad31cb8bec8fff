package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yacoubb/roomhub/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Requests carry at most a
	// short operation name and a few small string arguments.
	maxMessageSize = 4096
)

// request is the inbound message envelope. A message is either an operation
// request (op set) or a challenge reply (reply set).
type request struct {
	ID    string            `json:"id,omitempty"`
	Op    string            `json:"op,omitempty"`
	Args  []json.RawMessage `json:"args,omitempty"`
	Reply string            `json:"reply,omitempty"`
	Data  json.RawMessage   `json:"data,omitempty"`
}

// response acknowledges one request.
type response struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// push is an unsolicited server-to-client event.
type push struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// challengeMsg asks the client to answer a suspended request.
type challengeMsg struct {
	Challenge string `json:"challenge"`
	ID        string `json:"id"`
}

// Client is one WebSocket connection. It implements protocol.Conn.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	id   string
	send chan []byte

	mu      sync.Mutex
	pending map[string]chan json.RawMessage

	closed    chan struct{}
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		id:      id,
		send:    make(chan []byte, 256),
		pending: make(map[string]chan json.RawMessage),
		closed:  make(chan struct{}),
	}
}

// ID returns the connection identifier assigned at upgrade time.
func (c *Client) ID() string { return c.id }

// Notify pushes an event to the peer.
func (c *Client) Notify(event string, payload any) {
	c.enqueue(push{Event: event, Data: payload})
}

// Challenge sends a challenge to the peer and blocks until it answers, ctx
// expires, or the connection closes.
func (c *Client) Challenge(ctx context.Context, kind string) (json.RawMessage, error) {
	id := uuid.NewString()
	ch := make(chan json.RawMessage, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.enqueue(challengeMsg{Challenge: kind, ID: id})

	select {
	case raw := <-ch:
		return raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, protocol.ErrConnClosed
	}
}

// Close signals shutdown. The write pump flushes already-queued messages
// (a rejection acknowledged just before the close must still reach the
// peer), sends a close frame and closes the socket, which in turn ends the
// read pump and triggers disconnect cleanup.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// enqueue marshals a message onto the outbound queue. A peer that cannot
// drain its queue is dropped rather than allowed to block the server.
func (c *Client) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("marshal outbound message: %v", err)
		return
	}
	select {
	case c.send <- data:
	case <-c.closed:
	default:
		log.Printf("client %s cannot keep up, dropping", c.id)
		c.Close()
	}
}

// ackFor builds the single-use acknowledgement callback for one request.
// Requests without an id are fire-and-forget and get no acknowledgement.
func (c *Client) ackFor(id string) protocol.Ack {
	var once sync.Once
	return func(ok bool, payload any) {
		once.Do(func() {
			if id == "" {
				return
			}
			resp := response{ID: id, OK: ok}
			if err, failed := payload.(error); !ok && failed {
				resp.Error = err.Error()
			} else {
				resp.Data = payload
			}
			c.enqueue(resp)
		})
	}
}

// readPump pumps messages from the WebSocket connection into the
// dispatcher. Challenge replies are routed inline to the suspended request;
// operation requests run on their own goroutines so a suspended request
// never blocks the loop.
func (c *Client) readPump() {
	defer func() {
		c.Close()
		c.hub.dispatcher.Disconnected(c)
		c.hub.remove(c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			log.Printf("client %s sent malformed message: %v", c.id, err)
			continue
		}

		if req.Reply != "" {
			c.mu.Lock()
			ch := c.pending[req.Reply]
			delete(c.pending, req.Reply)
			c.mu.Unlock()
			if ch != nil {
				ch <- req.Data
			}
			continue
		}
		if req.Op == "" {
			continue
		}

		go c.hub.dispatcher.Handle(context.Background(), c, req.Op, req.Args, c.ackFor(req.ID))
	}
}

// writePump pumps messages from the outbound queue to the WebSocket
// connection and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-c.closed:
			// Drain what was queued before the close was signalled.
			for {
				select {
				case message := <-c.send:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					w, err := c.conn.NextWriter(websocket.TextMessage)
					if err != nil {
						return
					}
					w.Write(message)
					if err := w.Close(); err != nil {
						return
					}
				default:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
