package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/robalobadob/tradle/internal/game"
	"github.com/robalobadob/tradle/internal/handshake"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 16 << 10

	// Size of the send channel buffer
	sendBufferSize = 32
)

var errClosed = errors.New("connection closed")

// Client is one shell connection. It owns the handshake for the page and
// implements handshake.Poster by asking the shell to call parent.postMessage.
type Client struct {
	conn      *websocket.Conn
	session   *game.Session
	handshake *handshake.Handshake
	send      chan []byte
	done      chan struct{}
	log       zerolog.Logger
	mu        sync.Mutex
	closed    bool
}

// NewClient creates a client bound to session. Call SetHandshake before Run.
func NewClient(conn *websocket.Conn, session *game.Session, log zerolog.Logger) *Client {
	return &Client{
		conn:    conn,
		session: session,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		log:     log,
	}
}

// SetHandshake binds the page's handshake and attaches it to the session.
func (c *Client) SetHandshake(h *handshake.Handshake) {
	c.handshake = h
	h.OnChange(func(st handshake.State, id *handshake.Identity) {
		_ = c.Send(HostMessage{Type: MsgIdentity, State: st.String(), Identity: id})
	})
	c.session.AttachIdentity(h)
}

// PostMessage implements handshake.Poster.
func (c *Client) PostMessage(targetOrigin string, msg any) error {
	return c.Send(HostMessage{Type: MsgPostMessage, TargetOrigin: targetOrigin, Data: msg})
}

// Send queues a message for the shell.
func (c *Client) Send(message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.log.Warn().Msg("send buffer full, message dropped")
		return nil
	}
}

// Close tears the client down: the handshake stops listening and is
// detached from the session so late messages cannot reach it.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	if c.handshake != nil {
		c.handshake.Close()
		c.session.DetachIdentity(c.handshake)
	}
	return c.conn.Close()
}

// Run starts the client's read and write pumps and blocks until the
// connection ends.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection.
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes one shell message.
func (c *Client) handleMessage(data []byte) {
	var msg ShellMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage)
		return
	}

	switch msg.Type {
	case MsgHello:
		if err := c.handshake.Start(msg.Referrer); err != nil && !errors.Is(err, handshake.ErrUntrustedOrigin) {
			c.log.Warn().Err(err).Msg("session request not sent")
		}
	case MsgMessage:
		// Untrusted senders are logged and dropped by the handshake itself.
		_ = c.handshake.Receive(msg.Origin, msg.Data)
	case MsgPing:
		_ = c.Send(HostMessage{Type: MsgPong})
	default:
		c.sendError(ErrCodeUnknownType)
	}
}

func (c *Client) sendError(code string) {
	_ = c.Send(HostMessage{Type: MsgError, Error: code})
}
