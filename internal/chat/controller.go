// Package chat holds the controller behind one open conversation: it loads
// the history and the connection record, keeps both current through realtime
// subscriptions and gates every send through the connection state machine.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"zawj-chat/internal/connection"
	"zawj-chat/internal/feed"
	"zawj-chat/internal/metrics"
	"zawj-chat/internal/models"
	"zawj-chat/internal/realtime"
	"zawj-chat/internal/repositories"
	"zawj-chat/pkg/logger"

	"golang.org/x/sync/errgroup"
)

type Phase string

const (
	PhaseLoading      Phase = "loading"
	PhaseUnauthorized Phase = "unauthorized"
	PhaseReady        Phase = "ready"
)

const (
	defaultResubscribeMin = 500 * time.Millisecond
	defaultResubscribeMax = 30 * time.Second

	topicMessages   = "messages"
	topicConnection = "connection"
)

type ConnectionStore interface {
	FindConnection(ctx context.Context, a, b string) (*models.Connection, error)
	CreateConnection(ctx context.Context, requesterID, addresseeID string) (*models.Connection, error)
	RespondToConnection(ctx context.Context, viewerID, peerID string, to models.ConnectionStatus) (*models.Connection, bool, error)
	BlockConnection(ctx context.Context, viewerID, peerID string) (*models.Connection, bool, error)
}

type MessageStore interface {
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	InsertMessage(ctx context.Context, conversationID, senderID, text string) (*models.Message, error)
}

type BlockList interface {
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

type Realtime interface {
	SubscribeMessages(ctx context.Context, conversationID string) (realtime.Subscription, error)
	SubscribeConnection(ctx context.Context, pairKey string) (realtime.Subscription, error)
}

type Params struct {
	ConversationID string
	ViewerID       string
	PeerID         string
}

type Deps struct {
	Connections ConnectionStore
	Messages    MessageStore
	Blocks      BlockList
	Realtime    Realtime
	Notifier    Notifier
	Logger      *logger.Logger

	// Location renders the date dividers; UTC when nil.
	Location *time.Location

	ResubscribeMin time.Duration
	ResubscribeMax time.Duration

	// OnChange receives a fresh snapshot after every state change. It is
	// called without the controller lock held and may run on any goroutine.
	OnChange func(Snapshot)
}

// Snapshot is the render state of the chat screen.
type Snapshot struct {
	ConversationID string             `json:"conversationId"`
	PeerID         string             `json:"peerId"`
	Phase          Phase              `json:"phase"`
	State          connection.State   `json:"state,omitempty"`
	Actions        connection.Actions `json:"actions"`
	Placeholder    string             `json:"placeholder"`
	Connection     *models.Connection `json:"connection,omitempty"`
	Messages       []models.Message   `json:"messages"`
	Rows           []feed.Row         `json:"rows"`
}

// SendResult reports what a send attempt turned into. RestoreDraft carries
// the text back to the input when the write failed.
type SendResult struct {
	Effect       connection.Effect
	Message      *models.Message
	Connection   *models.Connection
	RestoreDraft string
	Err          error
}

type Controller struct {
	params  Params
	deps    Deps
	pairKey string
	logger  *logger.Logger

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	phase       Phase
	conn        *models.Connection
	blocked     bool
	messages    []models.Message
	subs        map[string]realtime.Subscription
	initialized bool
	disposed    bool
}

func NewController(p Params, d Deps) *Controller {
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = LogNotifier{Logger: d.Logger}
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.ResubscribeMin <= 0 {
		d.ResubscribeMin = defaultResubscribeMin
	}
	if d.ResubscribeMax < d.ResubscribeMin {
		d.ResubscribeMax = defaultResubscribeMax
		if d.ResubscribeMax < d.ResubscribeMin {
			d.ResubscribeMax = d.ResubscribeMin
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		params: p,
		deps:   d,
		logger: d.Logger.With("conversationID", p.ConversationID, "viewerID", p.ViewerID),
		runCtx: ctx,
		cancel: cancel,
		phase:  PhaseLoading,
		subs:   make(map[string]realtime.Subscription),
	}
	if p.ViewerID != "" && p.PeerID != "" {
		c.pairKey = models.PairKey(p.ViewerID, p.PeerID)
	}
	return c
}

func (c *Controller) ConversationID() string { return c.params.ConversationID }
func (c *Controller) PeerID() string         { return c.params.PeerID }

// Initialize loads the screen state and starts listening for changes. Missing
// identifiers leave the controller in PhaseUnauthorized without touching the
// backend. Load failures are reported through the notifier and leave an
// empty state; only cancellation and teardown are returned as errors.
func (c *Controller) Initialize(ctx context.Context) error {
	if c.params.ViewerID == "" || c.params.PeerID == "" || c.params.ConversationID == "" {
		c.mu.Lock()
		c.phase = PhaseUnauthorized
		c.initialized = true
		c.mu.Unlock()
		c.notify(KindError, MsgUnauthorized)
		c.emit()
		return ErrUnauthorized
	}

	c.mu.Lock()
	switch {
	case c.disposed:
		c.mu.Unlock()
		return ErrDisposed
	case c.initialized:
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	c.initialized = true
	c.mu.Unlock()

	// Subscribe before loading so nothing committed in between is missed;
	// buffered events are merged once the pumps start.
	acquired := make(map[string]realtime.Subscription, 2)
	release := func() {
		for _, s := range acquired {
			_ = s.Close()
		}
	}

	if sub, err := c.deps.Realtime.SubscribeMessages(ctx, c.params.ConversationID); err != nil {
		c.logger.Warn("Failed to subscribe to messages, will retry", "error", err)
	} else {
		acquired[topicMessages] = sub
	}
	if sub, err := c.deps.Realtime.SubscribeConnection(ctx, c.pairKey); err != nil {
		c.logger.Warn("Failed to subscribe to connection changes, will retry", "error", err)
	} else {
		acquired[topicConnection] = sub
	}
	if err := ctx.Err(); err != nil {
		release()
		return err
	}

	var (
		conn       *models.Connection
		blocked    bool
		history    []models.Message
		connErr    error
		blockErr   error
		historyErr error
	)
	// A plain Group: one failed load must not cancel the others.
	var g errgroup.Group
	g.Go(func() error {
		conn, connErr = c.deps.Connections.FindConnection(ctx, c.params.ViewerID, c.params.PeerID)
		if connErr != nil {
			return fmt.Errorf("load connection: %w", connErr)
		}
		return nil
	})
	g.Go(func() error {
		blocked, blockErr = c.deps.Blocks.IsBlocked(ctx, c.params.ViewerID, c.params.PeerID)
		if blockErr != nil {
			return fmt.Errorf("load block list: %w", blockErr)
		}
		return nil
	})
	g.Go(func() error {
		history, historyErr = feed.LoadHistory(ctx, c.deps.Messages, c.params.ConversationID)
		return historyErr
	})
	if err := g.Wait(); err != nil {
		c.logger.Error("Initial load incomplete", "error", err)
	}

	if err := ctx.Err(); err != nil {
		release()
		return err
	}

	if historyErr != nil {
		history = nil
	}
	if connErr != nil {
		conn = nil
	}
	if blockErr != nil {
		// Fail closed: an unknown block list must not allow sending.
		blocked = true
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		release()
		return ErrDisposed
	}
	c.conn = conn
	c.blocked = blocked
	c.messages = history
	c.phase = PhaseReady
	for name, sub := range acquired {
		c.subs[name] = sub
	}
	c.wg.Add(2)
	go c.watch(c.messagesWatcher(), acquired[topicMessages])
	go c.watch(c.connectionWatcher(), acquired[topicConnection])
	c.mu.Unlock()

	if historyErr != nil {
		c.notify(KindError, MsgHistoryFailed)
	}
	if connErr != nil || blockErr != nil {
		c.notify(KindError, MsgStatusFailed)
	}
	c.emit()
	return nil
}

// Send trims text and dispatches it according to the current permissions.
// Empty input is ignored.
func (c *Controller) Send(ctx context.Context, text string) SendResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{}
	}

	c.mu.Lock()
	phase, disposed := c.phase, c.disposed
	actions := c.actionsLocked()
	c.mu.Unlock()

	switch {
	case disposed:
		return SendResult{Err: ErrDisposed, RestoreDraft: text}
	case phase == PhaseUnauthorized:
		c.notify(KindError, MsgUnauthorized)
		return SendResult{Err: ErrUnauthorized, RestoreDraft: text}
	case phase != PhaseReady:
		c.notify(KindInfo, MsgLoading)
		return SendResult{Err: ErrNotReady, RestoreDraft: text}
	}

	effect := actions.SendEffect()
	res := SendResult{Effect: effect}

	switch effect {
	case connection.EffectCreateRequest:
		conn, err := c.deps.Connections.CreateConnection(ctx, c.params.ViewerID, c.params.PeerID)
		if err != nil {
			c.logger.Error("Failed to create connection request", "peerID", c.params.PeerID, "error", err)
			if errors.Is(err, repositories.ErrConnectionExists) {
				c.refreshConnection(ctx)
			}
			res.Err = &WriteError{Op: "create connection", Err: err}
			res.RestoreDraft = text
			c.notifyIfLive(KindError, MsgRequestFailed)
			return res
		}
		// The request replaces the first message; the text is not kept.
		res.Connection = conn
		if c.applyConnection(conn) {
			c.emit()
		}
		c.notifyIfLive(KindSuccess, MsgRequestSent)

	case connection.EffectRejectBlocked:
		res.Err = ErrForbidden
		c.notify(KindError, MsgBlocked)

	case connection.EffectRejectAwaiting:
		res.Err = ErrAwaitingResponse
		c.notify(KindInfo, MsgAwaiting)

	case connection.EffectRejectMustRespond:
		res.Err = ErrMustRespond
		c.notify(KindInfo, MsgMustRespond)

	case connection.EffectSendMessage:
		msg, err := c.deps.Messages.InsertMessage(ctx, c.params.ConversationID, c.params.ViewerID, text)
		if err != nil {
			c.logger.Error("Failed to send message", "error", err)
			res.Err = &WriteError{Op: "insert message", Err: err}
			res.RestoreDraft = text
			c.notifyIfLive(KindError, MsgSendFailed)
			return res
		}
		res.Message = msg
		if c.appendMessage(*msg) {
			c.emit()
		}
	}
	return res
}

// AcceptIncoming accepts the peer's pending request. It does nothing unless
// the viewer is the addressee of a pending request.
func (c *Controller) AcceptIncoming(ctx context.Context) bool {
	return c.respond(ctx, models.ConnectionAccepted)
}

// DeclineIncoming declines the peer's pending request, with the same
// preconditions as AcceptIncoming.
func (c *Controller) DeclineIncoming(ctx context.Context) bool {
	return c.respond(ctx, models.ConnectionDeclined)
}

func (c *Controller) respond(ctx context.Context, to models.ConnectionStatus) bool {
	c.mu.Lock()
	ok := c.phase == PhaseReady && !c.disposed && c.actionsLocked().MustRespond
	c.mu.Unlock()
	if !ok {
		return false
	}

	conn, changed, err := c.deps.Connections.RespondToConnection(ctx, c.params.ViewerID, c.params.PeerID, to)
	if err != nil {
		c.logger.Error("Failed to respond to connection request", "status", to, "error", err)
		c.notifyIfLive(KindError, MsgRespondFailed)
		return false
	}
	if c.applyConnection(conn) {
		c.emit()
	}
	if changed {
		if to == models.ConnectionAccepted {
			c.notifyIfLive(KindSuccess, MsgRequestAccepted)
		} else {
			c.notifyIfLive(KindInfo, MsgRequestDeclined)
		}
	}
	return changed
}

// Block sets the connection to blocked. Either participant may block at any
// time, including before any request exists.
func (c *Controller) Block(ctx context.Context) bool {
	c.mu.Lock()
	ok := c.phase == PhaseReady && !c.disposed
	c.mu.Unlock()
	if !ok {
		return false
	}

	conn, changed, err := c.deps.Connections.BlockConnection(ctx, c.params.ViewerID, c.params.PeerID)
	if err != nil {
		c.logger.Error("Failed to block connection", "peerID", c.params.PeerID, "error", err)
		c.notifyIfLive(KindError, MsgBlockFailed)
		return false
	}
	if c.applyConnection(conn) {
		c.emit()
	}
	if changed {
		c.notifyIfLive(KindSuccess, MsgUserBlocked)
	}
	return changed
}

// Snapshot returns a copy of the current render state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		ConversationID: c.params.ConversationID,
		PeerID:         c.params.PeerID,
		Phase:          c.phase,
		Connection:     c.conn.Clone(),
		Messages:       append([]models.Message(nil), c.messages...),
	}
	if c.phase == PhaseReady {
		s.Actions = c.actionsLocked()
		s.State = s.Actions.Active()
		s.Placeholder = s.Actions.Placeholder()
	} else {
		s.Placeholder = connection.PlaceholderDefault
	}
	s.Rows = feed.GroupByDate(s.Messages, c.deps.Location)
	return s
}

// Teardown releases both subscriptions and discards the results of any
// request still in flight. It is safe to call more than once.
func (c *Controller) Teardown() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	c.cancel()
	for _, s := range subs {
		if s != nil {
			_ = s.Close()
		}
	}
	c.logger.Debug("Chat controller torn down")
}

// Wait blocks until the realtime goroutines have exited. Call after Teardown.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) actionsLocked() connection.Actions {
	if c.blocked {
		return connection.BlockListed()
	}
	return connection.Derive(c.conn, c.params.ViewerID, c.params.PeerID)
}

// applyConnection keeps the newest observation of the pair's record.
func (c *Controller) applyConnection(conn *models.Connection) bool {
	if conn == nil || conn.PairKey != c.pairKey {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return false
	}
	if c.conn != nil && !conn.NewerThan(c.conn) {
		return false
	}
	c.conn = conn.Clone()
	return true
}

func (c *Controller) appendMessage(msg models.Message) bool {
	if msg.ConversationID != c.params.ConversationID {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return false
	}
	out, added := feed.AppendIfNew(c.messages, msg)
	if added {
		c.messages = out
	}
	return added
}

func (c *Controller) refreshConnection(ctx context.Context) {
	conn, err := c.deps.Connections.FindConnection(ctx, c.params.ViewerID, c.params.PeerID)
	if err != nil {
		c.logger.Warn("Failed to refresh connection", "error", err)
		return
	}
	if c.applyConnection(conn) {
		c.emit()
	}
}

func (c *Controller) refreshBlocked(ctx context.Context) {
	blocked, err := c.deps.Blocks.IsBlocked(ctx, c.params.ViewerID, c.params.PeerID)
	if err != nil {
		c.logger.Warn("Failed to refresh block list", "error", err)
		return
	}
	c.mu.Lock()
	changed := !c.disposed && c.blocked != blocked
	if changed {
		c.blocked = blocked
	}
	c.mu.Unlock()
	if changed {
		c.emit()
	}
}

func (c *Controller) refreshHistory(ctx context.Context) {
	history, err := feed.LoadHistory(ctx, c.deps.Messages, c.params.ConversationID)
	if err != nil {
		c.logger.Warn("Failed to refresh history", "error", err)
		return
	}
	added := false
	for _, m := range history {
		if c.appendMessage(m) {
			added = true
		}
	}
	if added {
		c.emit()
	}
}

func (c *Controller) notify(kind Kind, message string) {
	metrics.Notifications.WithLabelValues(string(kind)).Inc()
	c.deps.Notifier.Notify(kind, message)
}

// notifyIfLive drops notices for results that arrive after teardown.
func (c *Controller) notifyIfLive(kind Kind, message string) {
	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if !disposed {
		c.notify(kind, message)
	}
}

func (c *Controller) emit() {
	if c.deps.OnChange == nil {
		return
	}
	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		return
	}
	c.deps.OnChange(c.Snapshot())
}
