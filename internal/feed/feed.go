// Package feed loads, orders and groups the message history of a conversation.
package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"zawj-chat/internal/models"
)

// HeaderLayout renders a date divider, e.g. "Jun 18, 2021".
const HeaderLayout = "Jan 2, 2006"

type RowType string

const (
	RowHeader  RowType = "header"
	RowMessage RowType = "msg"
)

// Row is one line of the rendered feed: either a date divider or a message.
type Row struct {
	Type    RowType         `json:"type"`
	Header  string          `json:"header,omitempty"`
	Date    string          `json:"date,omitempty"`
	Message *models.Message `json:"message,omitempty"`
}

// Loader reads the stored messages of a conversation.
type Loader interface {
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

// FetchError is returned when the history could not be read.
type FetchError struct {
	ConversationID string
	Err            error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to load messages for conversation %s: %v", e.ConversationID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// LoadHistory returns every message of the conversation ordered by CreatedAt.
func LoadHistory(ctx context.Context, l Loader, conversationID string) ([]models.Message, error) {
	msgs, err := l.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, &FetchError{ConversationID: conversationID, Err: err}
	}
	Sort(msgs)
	return msgs, nil
}

// Sort orders messages by CreatedAt, breaking ties on ID so the order is total.
func Sort(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return less(&msgs[i], &msgs[j])
	})
}

func less(a, b *models.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// GroupByDate inserts a header row before the first message of every calendar
// day, as seen in loc. Messages are sorted first, so each day gets exactly one
// header and groups come out in chronological order. msgs is not modified.
func GroupByDate(msgs []models.Message, loc *time.Location) []Row {
	if loc == nil {
		loc = time.UTC
	}
	sorted := make([]models.Message, len(msgs))
	copy(sorted, msgs)
	Sort(sorted)
	msgs = sorted

	rows := make([]Row, 0, len(msgs)+1)
	var current string
	for i := range msgs {
		local := msgs[i].CreatedAt.In(loc)
		day := local.Format("2006-01-02")
		if i == 0 || day != current {
			current = day
			rows = append(rows, Row{
				Type:   RowHeader,
				Header: local.Format(HeaderLayout),
				Date:   day,
			})
		}
		m := msgs[i]
		rows = append(rows, Row{Type: RowMessage, Message: &m})
	}
	return rows
}

// AppendIfNew returns existing plus incoming unless a message with the same ID
// is already present, in which case existing is returned unchanged and false.
// The caller's slice is never mutated.
func AppendIfNew(existing []models.Message, incoming models.Message) ([]models.Message, bool) {
	for i := range existing {
		if existing[i].ID == incoming.ID {
			return existing, false
		}
	}

	out := make([]models.Message, len(existing), len(existing)+1)
	copy(out, existing)

	n := len(out)
	if n == 0 || !less(&incoming, &out[n-1]) {
		return append(out, incoming), true
	}

	// Arrived out of order; keep the feed sorted.
	idx := sort.Search(n, func(i int) bool { return less(&incoming, &out[i]) })
	out = append(out, models.Message{})
	copy(out[idx+1:], out[idx:])
	out[idx] = incoming
	return out, true
}
