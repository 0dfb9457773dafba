// Package realtime carries row-change events from writers to live chat
// sessions. A Bus is backed either by Redis Pub/Sub or by an in-process
// fan-out used in single-node deployments and tests.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrBusClosed = errors.New("realtime: bus closed")

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Table names carried in Event.Table.
const (
	TableMessages     = "messages"
	TableConnections  = "connections"
	TableBlockedUsers = "blocked_users"
)

// Event describes one committed row change.
type Event struct {
	Topic       string          `json:"topic"`
	Table       string          `json:"table"`
	Type        EventType       `json:"type"`
	Record      json.RawMessage `json:"record"`
	CommittedAt time.Time       `json:"committedAt"`
}

// NewEvent marshals record into an Event.
func NewEvent(topic, table string, typ EventType, record interface{}) (Event, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s record: %w", table, err)
	}
	return Event{
		Topic:       topic,
		Table:       table,
		Type:        typ,
		Record:      data,
		CommittedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the row carried by the event.
func (e Event) Decode(v interface{}) error {
	if len(e.Record) == 0 {
		return fmt.Errorf("realtime: %s event on %s has no record", e.Type, e.Topic)
	}
	return json.Unmarshal(e.Record, v)
}

// Subscription delivers the events of one topic. The Events channel is closed
// when the subscription is closed by its owner or dropped by the bus; owners
// that did not call Close should treat a closed channel as a lost
// subscription and subscribe again.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Close() error
}

// MessagesTopic carries inserts into a conversation's history.
func MessagesTopic(conversationID string) string {
	return "messages:conversation:" + conversationID
}

// ConnectionsTopic carries changes to the connection and block list of a pair.
func ConnectionsTopic(pairKey string) string {
	return "connections:pair:" + pairKey
}

// UserTopic carries notifications addressed to a single user.
func UserTopic(userID string) string {
	return "user:" + userID + ":notifications"
}
