package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 * 1024
	sendQueue      = 32
)

// Client is one websocket connection attached to a hub.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	reader func(data []byte)
	done   chan struct{} // Closed when write returns
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithGreeting sends msg ahead of any broadcast.
func WithGreeting(msg Message) ClientOption {
	return func(c *Client) { c.send <- msg }
}

// WithReader hands every inbound message to fn, on the read goroutine.
func WithReader(fn func(data []byte)) ClientOption {
	return func(c *Client) { c.reader = fn }
}

// NewClient attaches conn to h. It returns nil once h has stopped.
func NewClient(h *Hub, conn *websocket.Conn, opts ...ClientOption) *Client {
	c := &Client{hub: h, conn: conn, send: make(chan Message, sendQueue), done: make(chan struct{})}
	for _, opt := range opts {
		opt(c)
	}
	select {
	case h.join <- c:
		return c
	case <-h.done:
		return nil
	}
}

// Run pumps the connection until it closes. Call it from the websocket
// handler: the connection is recycled when the handler returns, so Run
// returns only after both pumps have stopped using it.
func (c *Client) Run() {
	go c.write()
	c.read()
	<-c.done
}

func (c *Client) read() {
	defer func() {
		select {
		case c.hub.leave <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	extend := func() { c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		extend()
		if c.reader != nil {
			c.reader(data)
		}
	}
}

// write is the only goroutine writing to the connection.
func (c *Client) write() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
		close(c.done)
	}()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			kind, data = websocket.TextMessage, msg.Data
			if msg.Binary {
				kind = websocket.BinaryMessage
			}
		case <-ping.C:
			kind = websocket.PingMessage
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}
