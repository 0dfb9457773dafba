package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zawj-chat/internal/backend"
	"zawj-chat/internal/connection"
	"zawj-chat/internal/models"
	"zawj-chat/internal/realtime"
	"zawj-chat/internal/repositories/memory"
	"zawj-chat/pkg/logger"
)

const (
	userA  = "user-a"
	userB  = "user-b"
	convID = "conv-1"

	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type notice struct {
	kind    Kind
	message string
}

type recorder struct {
	mu      sync.Mutex
	notices []notice
}

func (r *recorder) Notify(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice{kind, message})
}

func (r *recorder) has(kind Kind, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notices {
		if n.kind == kind && n.message == message {
			return true
		}
	}
	return false
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

type harness struct {
	db  *memory.DB
	bus *realtime.MemoryBus
	be  *backend.Backend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := memory.New()
	bus := realtime.NewMemoryBus()
	t.Cleanup(func() { bus.Close() })
	return &harness{db: db, bus: bus, be: backend.New(db.Store(), bus, logger.NewNop())}
}

func (h *harness) newController(viewer, peer string, rec *recorder) *Controller {
	return NewController(
		Params{ConversationID: convID, ViewerID: viewer, PeerID: peer},
		Deps{
			Connections:    h.be,
			Messages:       h.be,
			Blocks:         h.be,
			Realtime:       h.be,
			Notifier:       rec,
			ResubscribeMin: 5 * time.Millisecond,
			ResubscribeMax: 20 * time.Millisecond,
		},
	)
}

func (h *harness) open(t *testing.T, viewer, peer string) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	c := h.newController(viewer, peer, rec)
	require.NoError(t, c.Initialize(context.Background()))
	t.Cleanup(func() {
		c.Teardown()
		c.Wait()
	})
	return c, rec
}

func (h *harness) accepted(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := h.be.CreateConnection(ctx, userA, userB)
	require.NoError(t, err)
	_, _, err = h.be.RespondToConnection(ctx, userB, userA, models.ConnectionAccepted)
	require.NoError(t, err)
}

func eventuallyState(t *testing.T, c *Controller, want connection.State) {
	t.Helper()
	assert.Eventually(t, func() bool { return c.Snapshot().State == want }, waitFor, tick,
		"want state %s, have %s", want, c.Snapshot().State)
}

func TestInitializeWithoutIdentifiers(t *testing.T) {
	rec := &recorder{}
	// No backend at all: any call would panic.
	c := NewController(Params{ConversationID: convID, ViewerID: userA}, Deps{Notifier: rec})

	err := c.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, PhaseUnauthorized, c.Snapshot().Phase)
	assert.True(t, rec.has(KindError, MsgUnauthorized))

	res := c.Send(context.Background(), "hi")
	assert.ErrorIs(t, res.Err, ErrUnauthorized)
	assert.Equal(t, "hi", res.RestoreDraft)

	c.Teardown()
	c.Teardown()
}

func TestInitializeTwice(t *testing.T) {
	h := newHarness(t)
	c, _ := h.open(t, userA, userB)
	assert.ErrorIs(t, c.Initialize(context.Background()), ErrAlreadyInitialized)
}

func TestInitialStateWithoutConnection(t *testing.T) {
	h := newHarness(t)
	c, _ := h.open(t, userA, userB)

	s := c.Snapshot()
	assert.Equal(t, PhaseReady, s.Phase)
	assert.Equal(t, connection.StateNoConnection, s.State)
	assert.True(t, s.Actions.MustRequestFirst)
	assert.Equal(t, connection.PlaceholderDefault, s.Placeholder)
	assert.Empty(t, s.Messages)
}

func TestFirstContactCreatesRequest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a, recA := h.open(t, userA, userB)
	b, _ := h.open(t, userB, userA)

	res := a.Send(ctx, "  hi  ")
	require.NoError(t, res.Err)
	assert.Equal(t, connection.EffectCreateRequest, res.Effect)
	assert.Empty(t, res.RestoreDraft)
	assert.True(t, recA.has(KindSuccess, MsgRequestSent))

	msgs, err := h.be.ListMessages(ctx, convID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	for _, pair := range [][2]string{{userA, userB}, {userB, userA}} {
		conn, err := h.be.FindConnection(ctx, pair[0], pair[1])
		require.NoError(t, err)
		require.NotNil(t, conn)
		assert.Equal(t, models.ConnectionPending, conn.Status)
		assert.Equal(t, userA, conn.RequesterID)
		assert.Equal(t, userB, conn.AddresseeID)
	}

	assert.Equal(t, connection.StatePendingAsRequester, a.Snapshot().State)
	eventuallyState(t, b, connection.StatePendingAsAddressee)
	assert.Equal(t, connection.PlaceholderMustRespond, b.Snapshot().Placeholder)
}

func TestRequesterCannotSendWhilePending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.be.CreateConnection(ctx, userA, userB)
	require.NoError(t, err)
	a, recA := h.open(t, userA, userB)

	res := a.Send(ctx, "hi again")
	assert.ErrorIs(t, res.Err, ErrAwaitingResponse)
	assert.True(t, recA.has(KindInfo, MsgAwaiting))
	assert.Equal(t, connection.StatePendingAsRequester, a.Snapshot().State)

	msgs, _ := h.be.ListMessages(ctx, convID)
	assert.Empty(t, msgs)
}

func TestAddresseeMustRespondBeforeSending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.be.CreateConnection(ctx, userA, userB)
	require.NoError(t, err)
	b, recB := h.open(t, userB, userA)

	res := b.Send(ctx, "hello")
	assert.ErrorIs(t, res.Err, ErrMustRespond)
	assert.True(t, recB.has(KindInfo, MsgMustRespond))
}

func TestAddresseeAcceptsThenSends(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.be.CreateConnection(ctx, userA, userB)
	require.NoError(t, err)
	a, _ := h.open(t, userA, userB)
	b, recB := h.open(t, userB, userA)

	require.True(t, b.AcceptIncoming(ctx))
	assert.True(t, recB.has(KindSuccess, MsgRequestAccepted))
	assert.Equal(t, connection.StateAccepted, b.Snapshot().State)
	eventuallyState(t, a, connection.StateAccepted)

	res := b.Send(ctx, "hello")
	require.NoError(t, res.Err)
	require.NotNil(t, res.Message)
	assert.Equal(t, userB, res.Message.SenderID)

	assert.Eventually(t, func() bool { return len(a.Snapshot().Messages) == 1 }, waitFor, tick)
	assert.Equal(t, "hello", a.Snapshot().Messages[0].Text)
}

func TestAcceptIsNoOpForRequester(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.be.CreateConnection(ctx, userA, userB)
	require.NoError(t, err)
	a, _ := h.open(t, userA, userB)

	assert.False(t, a.AcceptIncoming(ctx))
	assert.False(t, a.DeclineIncoming(ctx))
	conn, _ := h.be.FindConnection(ctx, userA, userB)
	assert.Equal(t, models.ConnectionPending, conn.Status)
}

func TestAcceptTwiceKeepsTimestamps(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.be.CreateConnection(ctx, userA, userB)
	require.NoError(t, err)
	b, _ := h.open(t, userB, userA)

	require.True(t, b.AcceptIncoming(ctx))
	first, _ := h.be.FindConnection(ctx, userA, userB)

	assert.False(t, b.AcceptIncoming(ctx))
	second, _ := h.be.FindConnection(ctx, userA, userB)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.Equal(t, first.RespondedAt, second.RespondedAt)
	assert.Equal(t, models.ConnectionAccepted, second.Status)
}

func TestDeclineBlocksBothSides(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.be.CreateConnection(ctx, userA, userB)
	require.NoError(t, err)
	a, recA := h.open(t, userA, userB)
	b, _ := h.open(t, userB, userA)

	require.True(t, b.DeclineIncoming(ctx))
	assert.Equal(t, connection.StateBlocked, b.Snapshot().State)
	eventuallyState(t, a, connection.StateBlocked)

	res := a.Send(ctx, "please")
	assert.ErrorIs(t, res.Err, ErrForbidden)
	assert.True(t, recA.has(KindError, MsgBlocked))
}

func TestBlockedConnectionRejectsBothParties(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.accepted(t)
	_, _, err := h.be.BlockConnection(ctx, userA, userB)
	require.NoError(t, err)

	for _, pair := range [][2]string{{userA, userB}, {userB, userA}} {
		c, rec := h.open(t, pair[0], pair[1])
		res := c.Send(ctx, "hi")
		assert.ErrorIs(t, res.Err, ErrForbidden)
		assert.True(t, rec.has(KindError, MsgBlocked))
	}
	msgs, _ := h.be.ListMessages(ctx, convID)
	assert.Empty(t, msgs)
}

func TestBlockListIsCheckedFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.accepted(t)
	a, recA := h.open(t, userA, userB)
	require.Equal(t, connection.StateAccepted, a.Snapshot().State)

	require.NoError(t, h.be.BlockUser(ctx, userB, userA))
	eventuallyState(t, a, connection.StateBlocked)

	res := a.Send(ctx, "hi")
	assert.ErrorIs(t, res.Err, ErrForbidden)
	assert.True(t, recA.has(KindError, MsgBlocked))

	require.NoError(t, h.be.UnblockUser(ctx, userB, userA))
	eventuallyState(t, a, connection.StateAccepted)
}

func TestBlockFromController(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.accepted(t)
	a, recA := h.open(t, userA, userB)
	b, _ := h.open(t, userB, userA)

	require.True(t, a.Block(ctx))
	assert.True(t, recA.has(KindSuccess, MsgUserBlocked))
	assert.Equal(t, connection.StateBlocked, a.Snapshot().State)
	eventuallyState(t, b, connection.StateBlocked)
}

func TestOptimisticAppendIsDeduplicated(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.accepted(t)
	a, _ := h.open(t, userA, userB)

	res := a.Send(ctx, "one")
	require.NoError(t, res.Err)
	require.Len(t, a.Snapshot().Messages, 1)

	_, err := h.be.InsertMessage(ctx, convID, userB, "two")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(a.Snapshot().Messages) == 2 }, waitFor, tick)
	s := a.Snapshot()
	assert.Equal(t, "one", s.Messages[0].Text)
	assert.Equal(t, "two", s.Messages[1].Text)
	assert.Len(t, s.Rows, 3)
}

func TestWriteFailureRestoresDraft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.accepted(t)
	a, recA := h.open(t, userA, userB)

	h.db.SetFailure(errors.New("db down"))
	res := a.Send(ctx, "hello")

	var werr *WriteError
	assert.ErrorAs(t, res.Err, &werr)
	assert.Equal(t, "hello", res.RestoreDraft)
	assert.True(t, recA.has(KindError, MsgSendFailed))
	assert.Empty(t, a.Snapshot().Messages)
}

func TestRequestFailureRestoresDraft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a, recA := h.open(t, userA, userB)

	h.db.SetFailure(errors.New("db down"))
	res := a.Send(ctx, "hi")
	assert.Error(t, res.Err)
	assert.Equal(t, "hi", res.RestoreDraft)
	assert.True(t, recA.has(KindError, MsgRequestFailed))
	assert.Equal(t, connection.StateNoConnection, a.Snapshot().State)
}

func TestFetchFailureShowsEmptyState(t *testing.T) {
	h := newHarness(t)
	h.db.SetFailure(errors.New("db down"))
	a, recA := h.open(t, userA, userB)

	s := a.Snapshot()
	assert.Equal(t, PhaseReady, s.Phase)
	assert.Empty(t, s.Messages)
	assert.Nil(t, s.Connection)
	assert.True(t, recA.has(KindError, MsgHistoryFailed))
	assert.True(t, recA.has(KindError, MsgStatusFailed))
	// An unreadable block list fails closed.
	assert.Equal(t, connection.StateBlocked, s.State)
}

func TestEmptyTextIsIgnored(t *testing.T) {
	h := newHarness(t)
	a, recA := h.open(t, userA, userB)

	res := a.Send(context.Background(), "   \n\t ")
	assert.NoError(t, res.Err)
	assert.Zero(t, recA.count())
	conn, _ := h.be.FindConnection(context.Background(), userA, userB)
	assert.Nil(t, conn)
}

func TestTeardownReleasesSubscriptions(t *testing.T) {
	h := newHarness(t)
	a, recA := h.open(t, userA, userB)
	msgTopic := realtime.MessagesTopic(convID)
	connTopic := realtime.ConnectionsTopic(models.PairKey(userA, userB))
	require.Equal(t, 1, h.bus.Subscribers(msgTopic))
	require.Equal(t, 1, h.bus.Subscribers(connTopic))

	a.Teardown()
	a.Teardown()
	a.Wait()
	assert.Equal(t, 0, h.bus.Subscribers(msgTopic))
	assert.Equal(t, 0, h.bus.Subscribers(connTopic))

	res := a.Send(context.Background(), "hi")
	assert.ErrorIs(t, res.Err, ErrDisposed)
	assert.Zero(t, recA.count())
}

func TestResubscribesAfterDrop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.accepted(t)
	a, _ := h.open(t, userA, userB)
	topic := realtime.MessagesTopic(convID)

	h.bus.Disconnect(topic)
	_, err := h.be.InsertMessage(ctx, convID, userB, "while away")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return h.bus.Subscribers(topic) == 1 }, waitFor, tick)
	assert.Eventually(t, func() bool { return len(a.Snapshot().Messages) == 1 }, waitFor, tick)

	_, err = h.be.InsertMessage(ctx, convID, userB, "after")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return len(a.Snapshot().Messages) == 2 }, waitFor, tick)
}

func TestOnChangeReceivesSnapshots(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.accepted(t)

	var mu sync.Mutex
	var seen []Snapshot
	c := NewController(Params{ConversationID: convID, ViewerID: userA, PeerID: userB}, Deps{
		Connections: h.be,
		Messages:    h.be,
		Blocks:      h.be,
		Realtime:    h.be,
		OnChange: func(s Snapshot) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		},
	})
	require.NoError(t, c.Initialize(ctx))
	defer c.Teardown()

	_, err := h.be.InsertMessage(ctx, convID, userB, "salam")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 2 && len(seen[len(seen)-1].Messages) == 1
	}, waitFor, tick)
	mu.Lock()
	assert.Equal(t, PhaseReady, seen[0].Phase)
	mu.Unlock()
}

// gatedBackend holds writes until released, so a test can tear the controller
// down while a request is in flight.
type gatedBackend struct {
	*backend.Backend
	entered chan struct{}
	release chan struct{}
}

func newGatedBackend(be *backend.Backend) *gatedBackend {
	return &gatedBackend{Backend: be, entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedBackend) hold() {
	g.entered <- struct{}{}
	<-g.release
}

func (g *gatedBackend) InsertMessage(ctx context.Context, conversationID, senderID, text string) (*models.Message, error) {
	g.hold()
	return g.Backend.InsertMessage(context.Background(), conversationID, senderID, text)
}

func (g *gatedBackend) RespondToConnection(ctx context.Context, viewerID, peerID string, to models.ConnectionStatus) (*models.Connection, bool, error) {
	g.hold()
	return g.Backend.RespondToConnection(context.Background(), viewerID, peerID, to)
}

func (g *gatedBackend) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(waitFor):
		t.Fatal("write never reached the backend")
	}
}

func openGated(t *testing.T, h *harness, gate *gatedBackend, viewer, peer string) (*Controller, *recorder, *int32) {
	t.Helper()
	rec := &recorder{}
	changes := new(int32)
	c := NewController(
		Params{ConversationID: convID, ViewerID: viewer, PeerID: peer},
		Deps{
			Connections: gate,
			Messages:    gate,
			Blocks:      h.be,
			Realtime:    h.be,
			Notifier:    rec,
			OnChange:    func(Snapshot) { atomic.AddInt32(changes, 1) },
		},
	)
	require.NoError(t, c.Initialize(context.Background()))
	t.Cleanup(func() {
		c.Teardown()
		c.Wait()
	})
	return c, rec, changes
}

func TestSendCompletingAfterTeardownIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.accepted(t)
	gate := newGatedBackend(h.be)
	c, rec, changes := openGated(t, h, gate, userA, userB)

	notices := rec.count()
	emitted := atomic.LoadInt32(changes)

	done := make(chan SendResult, 1)
	go func() { done <- c.Send(context.Background(), "late") }()
	gate.waitEntered(t)

	c.Teardown()
	close(gate.release)
	res := <-done

	require.NoError(t, res.Err)
	require.NotNil(t, res.Message)
	assert.Empty(t, c.Snapshot().Messages)
	assert.Equal(t, notices, rec.count())
	assert.Equal(t, emitted, atomic.LoadInt32(changes))

	stored, err := h.be.ListMessages(context.Background(), convID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestResponseCompletingAfterTeardownIsDiscarded(t *testing.T) {
	for _, tc := range []struct {
		name    string
		respond func(*Controller, context.Context) bool
	}{
		{"accept", (*Controller).AcceptIncoming},
		{"decline", (*Controller).DeclineIncoming},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.be.CreateConnection(context.Background(), userB, userA)
			require.NoError(t, err)
			gate := newGatedBackend(h.be)
			c, rec, changes := openGated(t, h, gate, userA, userB)
			require.Equal(t, connection.StatePendingAsAddressee, c.Snapshot().State)

			notices := rec.count()
			emitted := atomic.LoadInt32(changes)

			done := make(chan bool, 1)
			go func() { done <- tc.respond(c, context.Background()) }()
			gate.waitEntered(t)

			c.Teardown()
			close(gate.release)
			<-done

			assert.Equal(t, connection.StatePendingAsAddressee, c.Snapshot().State)
			assert.Equal(t, notices, rec.count())
			assert.Equal(t, emitted, atomic.LoadInt32(changes))
		})
	}
}

type failingBlocks struct{}

func (failingBlocks) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	return false, errors.New("block list unavailable")
}

func TestSingleLoadFailureKeepsOtherLoads(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.accepted(t)
	_, err := h.be.InsertMessage(ctx, convID, userB, "salam")
	require.NoError(t, err)

	rec := &recorder{}
	c := NewController(
		Params{ConversationID: convID, ViewerID: userA, PeerID: userB},
		Deps{Connections: h.be, Messages: h.be, Blocks: failingBlocks{}, Realtime: h.be, Notifier: rec},
	)
	require.NoError(t, c.Initialize(ctx))
	t.Cleanup(func() {
		c.Teardown()
		c.Wait()
	})

	s := c.Snapshot()
	require.Len(t, s.Messages, 1)
	require.NotNil(t, s.Connection)
	assert.Equal(t, models.ConnectionAccepted, s.Connection.Status)
	assert.Equal(t, connection.StateBlocked, s.State)
	assert.True(t, rec.has(KindError, MsgStatusFailed))
	assert.False(t, rec.has(KindError, MsgHistoryFailed))
}
