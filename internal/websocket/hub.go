package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"zawj-chat/internal/metrics"
	"zawj-chat/pkg/logger"
)

var ErrClientDisconnected = fmt.Errorf("client disconnected")

// Presence writes run on the hub loop and must not block it.
const presenceTimeout = 5 * time.Second

// Presence records which users hold an open socket.
type Presence interface {
	SetUserOnline(ctx context.Context, userID string) error
	SetUserOffline(ctx context.Context, userID string) error
}

// Options tunes the sessions created by the hub.
type Options struct {
	AllowedOrigins []string

	// Inbound frame rate per client.
	FramesPerSecond float64
	Burst           int

	Location       *time.Location
	ResubscribeMin time.Duration
	ResubscribeMax time.Duration
}

type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Client lookup by user ID
	userClients map[string]map[*Client]bool

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	backend       ChatBackend
	conversations ConversationLookup
	presence      Presence
	opts          Options

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc

	mu sync.RWMutex

	logger *logger.Logger
}

// NewHub creates a hub. presence may be nil.
func NewHub(backend ChatBackend, conversations ConversationLookup, presence Presence, opts Options, log *logger.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.FramesPerSecond <= 0 {
		opts.FramesPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}

	return &Hub{
		clients:       make(map[*Client]bool),
		userClients:   make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		backend:       backend,
		conversations: conversations,
		presence:      presence,
		opts:          opts,
		ctx:           ctx,
		cancel:        cancel,
		logger:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub shutting down")
			h.closeAll()
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	if h.userClients[client.userID] == nil {
		h.userClients[client.userID] = make(map[*Client]bool)
	}
	first := len(h.userClients[client.userID]) == 0
	h.userClients[client.userID][client] = true
	h.mu.Unlock()

	metrics.WSSessions.Inc()
	h.logger.Info("Client registered", "clientID", client.id, "userID", client.userID)

	if first && h.presence != nil {
		ctx, cancel := context.WithTimeout(h.ctx, presenceTimeout)
		err := h.presence.SetUserOnline(ctx, client.userID)
		cancel()
		if err != nil {
			h.logger.Error("Failed to set user online", "userID", client.userID, "error", err)
		}
	}

	if err := client.SendMessage(NewConnectMessage(client.id, client.userID)); err != nil {
		h.logger.Debug("Failed to send connect frame", "clientID", client.id, "error", err)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	last := false
	if userClients, ok := h.userClients[client.userID]; ok {
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.userClients, client.userID)
			last = true
		}
	}
	h.mu.Unlock()

	client.session.Close()
	client.closeSendChannel()
	metrics.WSSessions.Dec()
	h.logger.Info("Client unregistered", "clientID", client.id, "userID", client.userID)

	if last && h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		defer cancel()
		if err := h.presence.SetUserOffline(ctx, client.userID); err != nil {
			h.logger.Error("Failed to set user offline", "userID", client.userID, "error", err)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
		h.unregisterClient(c)
		c.conn.Close()
	}
}

// IsConnected reports whether the user has at least one open socket on this
// instance.
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID]) > 0
}

// ClientCount returns the number of open sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
