// Package backend is the data access surface the chat controller talks to:
// filtered reads, inserts, conditional updates and realtime subscriptions.
// Every successful write is published on the realtime bus so that all open
// sessions, including the writer's own, observe it.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zawj-chat/internal/connection"
	"zawj-chat/internal/metrics"
	"zawj-chat/internal/models"
	"zawj-chat/internal/realtime"
	"zawj-chat/internal/repositories"
	"zawj-chat/pkg/logger"
)

var ErrEmptyMessage = errors.New("message text is empty")

// EventSink receives a copy of every published event. The Kafka exporter
// implements it.
type EventSink interface {
	Emit(ctx context.Context, ev realtime.Event) error
}

type Backend struct {
	connections repositories.ConnectionRepository
	messages    repositories.MessageRepository
	blocks      repositories.BlockRepository
	bus         realtime.Bus
	sink        EventSink
	logger      *logger.Logger
	now         func() time.Time
}

type Option func(*Backend)

// WithSink exports every event to sink as well.
func WithSink(sink EventSink) Option {
	return func(b *Backend) { b.sink = sink }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

func New(store repositories.Store, bus realtime.Bus, log *logger.Logger, opts ...Option) *Backend {
	b := &Backend{
		connections: store.Connections,
		messages:    store.Messages,
		blocks:      store.Blocks,
		bus:         bus,
		logger:      log,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// =============================================================================
// Connections
// =============================================================================

// FindConnection looks the pair up in either direction. nil means no record.
func (b *Backend) FindConnection(ctx context.Context, a, c string) (*models.Connection, error) {
	return b.connections.FindByPairKey(ctx, models.PairKey(a, c))
}

// CreateConnection inserts a pending request from requester to addressee.
func (b *Backend) CreateConnection(ctx context.Context, requesterID, addresseeID string) (*models.Connection, error) {
	if requesterID == addresseeID {
		return nil, fmt.Errorf("cannot connect user %s with itself", requesterID)
	}
	conn := connection.NewRequest(requesterID, addresseeID, b.now().UTC())
	if err := b.connections.Create(ctx, conn); err != nil {
		return nil, err
	}
	metrics.ConnectionTransitions.WithLabelValues(string(conn.Status)).Inc()
	b.publish(ctx, realtime.ConnectionsTopic(conn.PairKey), realtime.TableConnections, realtime.EventInsert, conn)
	return conn, nil
}

// RespondToConnection applies the addressee's answer to a pending request.
// The update is conditional on the stored status still being pending, so a
// repeated or late answer reports changed=false and returns the stored row.
func (b *Backend) RespondToConnection(ctx context.Context, viewerID, peerID string, to models.ConnectionStatus) (*models.Connection, bool, error) {
	if to != models.ConnectionAccepted && to != models.ConnectionDeclined {
		return nil, false, fmt.Errorf("invalid response status %q", to)
	}

	current, err := b.FindConnection(ctx, viewerID, peerID)
	if err != nil {
		return nil, false, err
	}
	if current == nil {
		return nil, false, repositories.ErrNotFound
	}

	// Validate against a copy; the write below is what actually commits.
	candidate := current.Clone()
	now := b.now().UTC()
	var changed bool
	if to == models.ConnectionAccepted {
		changed, err = connection.Accept(candidate, viewerID, now)
	} else {
		changed, err = connection.Decline(candidate, viewerID, now)
	}
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return current, false, nil
	}

	return b.updateStatus(ctx, current.PairKey, connection.RespondableFrom(), to, now)
}

// BlockConnection moves the pair to blocked, creating the record if the pair
// never interacted.
func (b *Backend) BlockConnection(ctx context.Context, viewerID, peerID string) (*models.Connection, bool, error) {
	current, err := b.FindConnection(ctx, viewerID, peerID)
	if err != nil {
		return nil, false, err
	}
	now := b.now().UTC()

	if current == nil {
		conn := connection.NewRequest(viewerID, peerID, now)
		conn.Status = models.ConnectionBlocked
		err := b.connections.Create(ctx, conn)
		switch {
		case err == nil:
			metrics.ConnectionTransitions.WithLabelValues(string(conn.Status)).Inc()
			b.publish(ctx, realtime.ConnectionsTopic(conn.PairKey), realtime.TableConnections, realtime.EventInsert, conn)
			return conn, true, nil
		case errors.Is(err, repositories.ErrConnectionExists):
			// Raced with the peer's request; fall through to the update.
		default:
			return nil, false, err
		}
	} else if _, err := connection.Block(current.Clone(), viewerID, now); err != nil {
		return nil, false, err
	}

	return b.updateStatus(ctx, models.PairKey(viewerID, peerID), connection.BlockableFrom(), models.ConnectionBlocked, now)
}

func (b *Backend) updateStatus(ctx context.Context, pairKey string, from []models.ConnectionStatus, to models.ConnectionStatus, at time.Time) (*models.Connection, bool, error) {
	conn, changed, err := b.connections.UpdateStatus(ctx, pairKey, from, to, at)
	if err != nil {
		return nil, false, err
	}
	if changed {
		metrics.ConnectionTransitions.WithLabelValues(string(to)).Inc()
		b.publish(ctx, realtime.ConnectionsTopic(pairKey), realtime.TableConnections, realtime.EventUpdate, conn)
	}
	return conn, changed, nil
}

// =============================================================================
// Messages
// =============================================================================

func (b *Backend) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return b.messages.ListByConversation(ctx, conversationID)
}

func (b *Backend) InsertMessage(ctx context.Context, conversationID, senderID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      b.now().UTC(),
	}
	if err := b.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()
	b.publish(ctx, realtime.MessagesTopic(conversationID), realtime.TableMessages, realtime.EventInsert, msg)
	return msg, nil
}

// =============================================================================
// Block list
// =============================================================================

func (b *Backend) IsBlocked(ctx context.Context, a, c string) (bool, error) {
	return b.blocks.IsBlockedEither(ctx, a, c)
}

func (b *Backend) BlockUser(ctx context.Context, userID, blockedUserID string) error {
	if userID == blockedUserID {
		return fmt.Errorf("cannot block yourself")
	}
	added, err := b.blocks.Block(ctx, userID, blockedUserID)
	if err != nil {
		return err
	}
	if added {
		row := models.BlockedUser{UserID: userID, BlockedUserID: blockedUserID, CreatedAt: b.now().UTC()}
		b.publish(ctx, realtime.ConnectionsTopic(models.PairKey(userID, blockedUserID)), realtime.TableBlockedUsers, realtime.EventInsert, row)
	}
	return nil
}

func (b *Backend) UnblockUser(ctx context.Context, userID, blockedUserID string) error {
	removed, err := b.blocks.Unblock(ctx, userID, blockedUserID)
	if err != nil {
		return err
	}
	if removed {
		row := models.BlockedUser{UserID: userID, BlockedUserID: blockedUserID}
		b.publish(ctx, realtime.ConnectionsTopic(models.PairKey(userID, blockedUserID)), realtime.TableBlockedUsers, realtime.EventDelete, row)
	}
	return nil
}

func (b *Backend) ListBlocked(ctx context.Context, userID string) ([]models.BlockedUser, error) {
	return b.blocks.ListBlocked(ctx, userID)
}

// =============================================================================
// Realtime
// =============================================================================

func (b *Backend) SubscribeMessages(ctx context.Context, conversationID string) (realtime.Subscription, error) {
	return b.bus.Subscribe(ctx, realtime.MessagesTopic(conversationID))
}

func (b *Backend) SubscribeConnection(ctx context.Context, pairKey string) (realtime.Subscription, error) {
	return b.bus.Subscribe(ctx, realtime.ConnectionsTopic(pairKey))
}

// publish never fails the write it follows; subscribers reconcile on their
// next load.
func (b *Backend) publish(ctx context.Context, topic, table string, typ realtime.EventType, record interface{}) {
	ev, err := realtime.NewEvent(topic, table, typ, record)
	if err != nil {
		b.logger.Error("Failed to build event", "topic", topic, "error", err)
		return
	}
	if err := b.bus.Publish(ctx, ev); err != nil {
		b.logger.Warn("Failed to publish event", "topic", topic, "table", table, "error", err)
	}
	if b.sink != nil {
		if err := b.sink.Emit(ctx, ev); err != nil {
			b.logger.Warn("Failed to export event", "topic", topic, "error", err)
		}
	}
}
