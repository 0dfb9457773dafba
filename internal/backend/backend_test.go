package backend

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zawj-chat/internal/connection"
	"zawj-chat/internal/models"
	"zawj-chat/internal/realtime"
	"zawj-chat/internal/repositories"
	"zawj-chat/internal/repositories/memory"
	"zawj-chat/pkg/logger"
)

type recordingSink struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (s *recordingSink) Emit(ctx context.Context, ev realtime.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func newTestBackend(t *testing.T) (*Backend, *realtime.MemoryBus, *recordingSink) {
	t.Helper()
	bus := realtime.NewMemoryBus()
	t.Cleanup(func() { bus.Close() })
	sink := &recordingSink{}
	return New(memory.New().Store(), bus, logger.NewNop(), WithSink(sink)), bus, sink
}

func next(t *testing.T, sub realtime.Subscription) realtime.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return realtime.Event{}
	}
}

func TestCreateConnectionPublishesInsert(t *testing.T) {
	ctx := context.Background()
	b, _, sink := newTestBackend(t)

	sub, err := b.SubscribeConnection(ctx, models.PairKey("a", "b"))
	require.NoError(t, err)
	defer sub.Close()

	conn, err := b.CreateConnection(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionPending, conn.Status)

	ev := next(t, sub)
	assert.Equal(t, realtime.EventInsert, ev.Type)
	var got models.Connection
	require.NoError(t, ev.Decode(&got))
	assert.Equal(t, conn.ID, got.ID)
	assert.Len(t, sink.events, 1)

	_, err = b.CreateConnection(ctx, "b", "a")
	assert.ErrorIs(t, err, repositories.ErrConnectionExists)
}

func TestRespondToConnection(t *testing.T) {
	ctx := context.Background()
	b, _, _ := newTestBackend(t)
	_, err := b.CreateConnection(ctx, "a", "b")
	require.NoError(t, err)

	_, _, err = b.RespondToConnection(ctx, "a", "b", models.ConnectionAccepted)
	assert.ErrorIs(t, err, connection.ErrNotAddressee)

	conn, changed, err := b.RespondToConnection(ctx, "b", "a", models.ConnectionAccepted)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.ConnectionAccepted, conn.Status)

	conn, changed, err = b.RespondToConnection(ctx, "b", "a", models.ConnectionDeclined)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.ConnectionAccepted, conn.Status)
}

func TestRespondWithoutRecord(t *testing.T) {
	b, _, _ := newTestBackend(t)
	_, _, err := b.RespondToConnection(context.Background(), "b", "a", models.ConnectionAccepted)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestBlockConnection(t *testing.T) {
	ctx := context.Background()
	b, _, _ := newTestBackend(t)

	conn, changed, err := b.BlockConnection(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.ConnectionBlocked, conn.Status)

	_, changed, err = b.BlockConnection(ctx, "b", "a")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestBlockAcceptedConnection(t *testing.T) {
	ctx := context.Background()
	b, _, _ := newTestBackend(t)
	_, err := b.CreateConnection(ctx, "a", "b")
	require.NoError(t, err)
	_, _, err = b.RespondToConnection(ctx, "b", "a", models.ConnectionAccepted)
	require.NoError(t, err)

	conn, changed, err := b.BlockConnection(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.ConnectionBlocked, conn.Status)
}

func TestInsertMessage(t *testing.T) {
	ctx := context.Background()
	b, _, _ := newTestBackend(t)

	sub, err := b.SubscribeMessages(ctx, "conv")
	require.NoError(t, err)
	defer sub.Close()

	_, err = b.InsertMessage(ctx, "conv", "a", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	msg, err := b.InsertMessage(ctx, "conv", "a", "  salam  ")
	require.NoError(t, err)
	assert.Equal(t, "salam", msg.Text)

	ev := next(t, sub)
	var got models.Message
	require.NoError(t, ev.Decode(&got))
	assert.Equal(t, msg.ID, got.ID)

	list, err := b.ListMessages(ctx, "conv")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBlockUserPublishesOnPairTopic(t *testing.T) {
	ctx := context.Background()
	b, _, _ := newTestBackend(t)

	sub, err := b.SubscribeConnection(ctx, models.PairKey("a", "b"))
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.BlockUser(ctx, "a", "b"))
	require.NoError(t, b.BlockUser(ctx, "a", "b"))
	ev := next(t, sub)
	assert.Equal(t, realtime.TableBlockedUsers, ev.Table)

	blocked, err := b.IsBlocked(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, blocked)

	require.NoError(t, b.UnblockUser(ctx, "a", "b"))
	ev = next(t, sub)
	assert.Equal(t, realtime.EventDelete, ev.Type)

	assert.Error(t, b.BlockUser(ctx, "a", "a"))
}
