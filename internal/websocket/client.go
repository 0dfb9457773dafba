package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"zawj-chat/internal/metrics"
	"zawj-chat/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8 * 1024
)

type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	userID  string
	session *Session
	limiter *rate.Limiter
	logger  *logger.Logger

	// Connection state management
	ctx        context.Context
	cancel     context.CancelFunc
	closed     int32 // atomic flag to track if client is closed
	sendMu     sync.RWMutex
	sendClosed bool

	// Goroutine coordination
	wg sync.WaitGroup
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		id:      uuid.New().String(),
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		userID:  userID,
		limiter: rate.NewLimiter(rate.Limit(hub.opts.FramesPerSecond), hub.opts.Burst),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.logger = hub.logger.With("clientID", c.id, "userID", userID)
	c.session = NewSession(userID, hub.backend, hub.conversations, hub.opts, c, hub.logger)
	return c
}

func (c *Client) GetID() string {
	return c.id
}

func (c *Client) GetUserID() string {
	return c.userID
}

// isClosed returns true if the client is closed
func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// close marks the client as closed and cancels the context
func (c *Client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.cancel()
		c.logger.Debug("Client marked as closed")
	}
}

// closeSendChannel safely closes the send channel
func (c *Client) closeSendChannel() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	c.wg.Add(1)
	defer func() {
		c.wg.Done()
		c.close()

		// Release the chat subscriptions here rather than waiting for the hub,
		// which may be busy.
		c.session.Close()

		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		case <-time.After(5 * time.Second):
			c.logger.Warn("Timeout sending unregister request")
			c.closeSendChannel()
		}

		if err := c.conn.Close(); err != nil {
			c.logger.Debug("Error closing connection", "error", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.isClosed() {
			return websocket.ErrCloseSent
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			} else {
				c.logger.Debug("WebSocket connection closed", "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			metrics.RejectedFrames.Inc()
			c.sendError(CodeRateLimited, "Too many messages, slow down")
			continue
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			c.sendError(CodeInvalidMessage, "Invalid message format")
			continue
		}

		msg.UserID = c.userID
		msg.Timestamp = time.Now().Unix()
		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}

		// Frames from one client are handled in order on this goroutine.
		c.session.Handle(c.ctx, &msg)

		if c.isClosed() {
			return
		}
	}
}

func (c *Client) writePump() {
	c.wg.Add(1)
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		c.wg.Done()
		ticker.Stop()
		// readPump owns closing the connection
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.logger.Debug("Error getting next writer", "error", err)
				return
			}
			if _, err := w.Write(message); err != nil {
				w.Close()
				return
			}

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				queued, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(queued)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			if c.isClosed() {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// SendMessage queues a frame for the client. A full buffer disconnects the
// client.
func (c *Client) SendMessage(message *Message) error {
	if c.isClosed() {
		return ErrClientDisconnected
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.sendMu.RLock()
	if c.sendClosed {
		c.sendMu.RUnlock()
		return ErrClientDisconnected
	}
	select {
	case c.send <- data:
		c.sendMu.RUnlock()
		return nil
	default:
	}
	c.sendMu.RUnlock()

	c.logger.Warn("Send buffer full, closing client")
	c.close()
	c.closeSendChannel()
	return ErrClientDisconnected
}

func (c *Client) sendError(code, message string) {
	c.SendMessage(NewErrorMessage(c.userID, ErrorData{Code: code, Message: message}))
}

// ServeWS upgrades the request and attaches a client for userID to the hub.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := NewUpgrader(hub.opts.AllowedOrigins).Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("Failed to upgrade WebSocket connection", "userID", userID, "error", err)
		return
	}

	client := NewClient(hub, conn, userID)
	hub.logger.Info("New WebSocket connection established", "clientID", client.id, "userID", userID)

	select {
	case hub.register <- client:
	case <-hub.ctx.Done():
		conn.Close()
		return
	case <-time.After(5 * time.Second):
		hub.logger.Error("Timeout sending registration request", "clientID", client.id, "userID", userID)
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
