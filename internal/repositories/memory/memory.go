// Package memory implements the repositories with maps guarded by a single
// mutex. It backs tests and the single-node development mode.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"zawj-chat/internal/models"
	"zawj-chat/internal/repositories"

	"github.com/google/uuid"
)

type DB struct {
	mu            sync.RWMutex
	users         map[string]models.User
	conversations map[string]models.Conversation
	messages      map[string][]models.Message
	connections   map[string]models.Connection
	blocks        map[string]models.BlockedUser
	reports       []models.Report

	// Fail, when set, is returned by every call. Tests use it to simulate an
	// unavailable database.
	fail error
}

func New() *DB {
	return &DB{
		users:         make(map[string]models.User),
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string][]models.Message),
		connections:   make(map[string]models.Connection),
		blocks:        make(map[string]models.BlockedUser),
	}
}

// Store returns every repository backed by this DB.
func (d *DB) Store() repositories.Store {
	return repositories.Store{
		Users:         &UserRepository{d},
		Conversations: &ConversationRepository{d},
		Messages:      &MessageRepository{d},
		Connections:   &ConnectionRepository{d},
		Blocks:        &BlockRepository{d},
		Reports:       &ReportRepository{d},
	}
}

func (d *DB) SetFailure(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

/** -------------------- users -------------------- */

type UserRepository struct{ d *DB }

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.fail != nil {
		return r.d.fail
	}
	for _, u := range r.d.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repositories.ErrEmailExists
		}
		if u.Username == user.Username {
			return repositories.ErrUsernameExists
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.d.users[user.ID] = *user
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return nil, r.d.fail
	}
	u, ok := r.d.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return nil, r.d.fail
	}
	for _, u := range r.d.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return nil, r.d.fail
	}
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.fail != nil {
		return r.d.fail
	}
	if _, ok := r.d.users[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	r.d.users[user.ID] = *user
	return nil
}

func (r *UserRepository) Search(ctx context.Context, query, excludeID string, offset, limit int) ([]models.User, int64, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return nil, 0, r.d.fail
	}
	query = strings.ToLower(strings.TrimSpace(query))
	var matched []models.User
	for _, u := range r.d.users {
		if u.ID == excludeID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(u.Username), query) {
			continue
		}
		matched = append(matched, u)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []models.User{}, total, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

/** -------------------- conversations -------------------- */

type ConversationRepository struct{ d *DB }

func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.fail != nil {
		return r.d.fail
	}
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	conv.PairKey = models.PairKey(conv.User1ID, conv.User2ID)
	for _, c := range r.d.conversations {
		if c.PairKey == conv.PairKey {
			*conv = c
			return nil
		}
	}
	now := time.Now()
	conv.CreatedAt, conv.UpdatedAt = now, now
	r.d.conversations[conv.ID] = *conv
	return nil
}

func (r *ConversationRepository) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return nil, r.d.fail
	}
	c, ok := r.d.conversations[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r *ConversationRepository) FindByPairKey(ctx context.Context, pairKey string) (*models.Conversation, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return nil, r.d.fail
	}
	for _, c := range r.d.conversations {
		if c.PairKey == pairKey {
			c := c
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return nil, r.d.fail
	}
	var out []models.Conversation
	for _, c := range r.d.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

/** -------------------- messages -------------------- */

type MessageRepository struct{ d *DB }

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.fail != nil {
		return r.d.fail
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	r.d.messages[msg.ConversationID] = append(r.d.messages[msg.ConversationID], *msg)
	if c, ok := r.d.conversations[msg.ConversationID]; ok {
		c.UpdatedAt = msg.CreatedAt
		r.d.conversations[c.ID] = c
	}
	return nil
}

func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return nil, r.d.fail
	}
	for _, msgs := range r.d.messages {
		for _, m := range msgs {
			if m.ID == id {
				m := m
				return &m, nil
			}
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return nil, r.d.fail
	}
	out := make([]models.Message, len(r.d.messages[conversationID]))
	copy(out, r.d.messages[conversationID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MessageRepository) LastInConversation(ctx context.Context, conversationID string) (*models.Message, error) {
	msgs, err := r.ListByConversation(ctx, conversationID)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	last := msgs[len(msgs)-1]
	return &last, nil
}

/** -------------------- connections -------------------- */

type ConnectionRepository struct{ d *DB }

func (r *ConnectionRepository) FindByPairKey(ctx context.Context, pairKey string) (*models.Connection, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return nil, r.d.fail
	}
	c, ok := r.d.connections[pairKey]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

func (r *ConnectionRepository) Create(ctx context.Context, conn *models.Connection) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.fail != nil {
		return r.d.fail
	}
	conn.PairKey = models.PairKey(conn.RequesterID, conn.AddresseeID)
	if _, exists := r.d.connections[conn.PairKey]; exists {
		return repositories.ErrConnectionExists
	}
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	now := time.Now()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	if conn.UpdatedAt.IsZero() {
		conn.UpdatedAt = now
	}
	r.d.connections[conn.PairKey] = *conn.Clone()
	return nil
}

func (r *ConnectionRepository) UpdateStatus(ctx context.Context, pairKey string, from []models.ConnectionStatus, to models.ConnectionStatus, at time.Time) (*models.Connection, bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.fail != nil {
		return nil, false, r.d.fail
	}
	c, ok := r.d.connections[pairKey]
	if !ok {
		return nil, false, repositories.ErrNotFound
	}
	if !statusIn(c.Status, from) {
		return c.Clone(), false, nil
	}
	c.Status = to
	c.UpdatedAt = at
	if repositories.Responded(to) {
		t := at
		c.RespondedAt = &t
	}
	r.d.connections[pairKey] = c
	return c.Clone(), true, nil
}

func (r *ConnectionRepository) ListForUser(ctx context.Context, userID string) ([]models.Connection, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return nil, r.d.fail
	}
	var out []models.Connection
	for _, c := range r.d.connections {
		if c.HasParticipant(userID) {
			out = append(out, *c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func statusIn(s models.ConnectionStatus, set []models.ConnectionStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

/** -------------------- block list -------------------- */

type BlockRepository struct{ d *DB }

func blockKey(userID, blockedUserID string) string { return userID + ">" + blockedUserID }

func (r *BlockRepository) Block(ctx context.Context, userID, blockedUserID string) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.fail != nil {
		return false, r.d.fail
	}
	key := blockKey(userID, blockedUserID)
	if _, ok := r.d.blocks[key]; ok {
		return false, nil
	}
	r.d.blocks[key] = models.BlockedUser{UserID: userID, BlockedUserID: blockedUserID, CreatedAt: time.Now()}
	return true, nil
}

func (r *BlockRepository) Unblock(ctx context.Context, userID, blockedUserID string) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.fail != nil {
		return false, r.d.fail
	}
	key := blockKey(userID, blockedUserID)
	if _, ok := r.d.blocks[key]; !ok {
		return false, nil
	}
	delete(r.d.blocks, key)
	return true, nil
}

func (r *BlockRepository) IsBlockedEither(ctx context.Context, a, b string) (bool, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return false, r.d.fail
	}
	_, ab := r.d.blocks[blockKey(a, b)]
	_, ba := r.d.blocks[blockKey(b, a)]
	return ab || ba, nil
}

func (r *BlockRepository) ListBlocked(ctx context.Context, userID string) ([]models.BlockedUser, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return nil, r.d.fail
	}
	var out []models.BlockedUser
	for _, b := range r.d.blocks {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

/** -------------------- reports -------------------- */

type ReportRepository struct{ d *DB }

func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.fail != nil {
		return r.d.fail
	}
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	r.d.reports = append(r.d.reports, *report)
	return nil
}

func (r *ReportRepository) ListByReporter(ctx context.Context, userID string) ([]models.Report, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if r.d.fail != nil {
		return nil, r.d.fail
	}
	var out []models.Report
	for _, rep := range r.d.reports {
		if rep.UserID == userID {
			out = append(out, rep)
		}
	}
	return out, nil
}
