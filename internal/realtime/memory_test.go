package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func receive(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestMemoryBusDeliversToTopicSubscribers(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()
	defer bus.Close()

	subA, err := bus.Subscribe(ctx, MessagesTopic("c1"))
	require.NoError(t, err)
	subB, err := bus.Subscribe(ctx, MessagesTopic("c2"))
	require.NoError(t, err)

	ev, err := NewEvent(MessagesTopic("c1"), TableMessages, EventInsert, row{ID: "m1", Text: "hi"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, ev))

	got := receive(t, subA)
	assert.Equal(t, EventInsert, got.Type)
	var r row
	require.NoError(t, got.Decode(&r))
	assert.Equal(t, "m1", r.ID)

	select {
	case <-subB.Events():
		t.Fatal("event leaked to another topic")
	default:
	}
}

func TestMemoryBusCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()
	topic := ConnectionsTopic("a:b")

	sub, err := bus.Subscribe(ctx, topic)
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers(topic))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Equal(t, 0, bus.Subscribers(topic))

	_, ok := <-sub.Events()
	assert.False(t, ok)

	ev, _ := NewEvent(topic, TableConnections, EventUpdate, row{ID: "x"})
	assert.NoError(t, bus.Publish(ctx, ev))
}

func TestMemoryBusDisconnectClosesChannel(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()
	topic := MessagesTopic("c1")

	sub, err := bus.Subscribe(ctx, topic)
	require.NoError(t, err)

	bus.Disconnect(topic)
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.NoError(t, sub.Close())
}

func TestMemoryBusClosed(t *testing.T) {
	bus := NewMemoryBus()
	require.NoError(t, bus.Close())

	_, err := bus.Subscribe(context.Background(), "t")
	assert.ErrorIs(t, err, ErrBusClosed)
	assert.ErrorIs(t, bus.Publish(context.Background(), Event{Topic: "t"}), ErrBusClosed)
}

func TestEventDecodeWithoutRecord(t *testing.T) {
	var r row
	assert.Error(t, Event{Topic: "t", Type: EventInsert}.Decode(&r))
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "messages:conversation:c1", MessagesTopic("c1"))
	assert.Equal(t, "connections:pair:a:b", ConnectionsTopic("a:b"))
	assert.Equal(t, "user:u1:notifications", UserTopic("u1"))
}
