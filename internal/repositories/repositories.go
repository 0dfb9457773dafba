// Package repositories declares the storage contracts of the chat service.
// The postgres subpackage backs them with gorm, the memory subpackage with
// in-process maps.
package repositories

import (
	"context"
	"errors"
	"time"

	"zawj-chat/internal/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrConnectionExists = errors.New("connection already exists for this pair")
	ErrEmailExists      = errors.New("email already exists")
	ErrUsernameExists   = errors.New("username already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	// Search pages through users whose username contains query, newest
	// first, leaving out excludeID. It also returns the total match count.
	Search(ctx context.Context, query, excludeID string, offset, limit int) ([]models.User, int64, error)
}

type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	ListByReporter(ctx context.Context, userID string) ([]models.Report, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, conv *models.Conversation) error
	FindByID(ctx context.Context, id string) (*models.Conversation, error)
	// FindByPairKey returns ErrNotFound when the pair has no conversation.
	FindByPairKey(ctx context.Context, pairKey string) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	// LastInConversation returns nil, nil for an empty conversation.
	LastInConversation(ctx context.Context, conversationID string) (*models.Message, error)
}

type ConnectionRepository interface {
	// FindByPairKey returns nil, nil when the pair has no record.
	FindByPairKey(ctx context.Context, pairKey string) (*models.Connection, error)
	// Create fails with ErrConnectionExists when the pair already has a record.
	Create(ctx context.Context, conn *models.Connection) error
	// UpdateStatus moves the record to `to` only if its current status is one
	// of from. It returns the stored record and whether it changed.
	UpdateStatus(ctx context.Context, pairKey string, from []models.ConnectionStatus, to models.ConnectionStatus, at time.Time) (*models.Connection, bool, error)
	ListForUser(ctx context.Context, userID string) ([]models.Connection, error)
}

type BlockRepository interface {
	// Block is idempotent: blocking twice is not an error.
	Block(ctx context.Context, userID, blockedUserID string) (bool, error)
	Unblock(ctx context.Context, userID, blockedUserID string) (bool, error)
	// IsBlockedEither reports whether either user blocked the other.
	IsBlockedEither(ctx context.Context, a, b string) (bool, error)
	ListBlocked(ctx context.Context, userID string) ([]models.BlockedUser, error)
}

// Store groups every repository the service needs.
type Store struct {
	Users         UserRepository
	Conversations ConversationRepository
	Messages      MessageRepository
	Connections   ConnectionRepository
	Blocks        BlockRepository
	Reports       ReportRepository
}

// Responded reports whether moving to status records a response time.
func Responded(status models.ConnectionStatus) bool {
	return status == models.ConnectionAccepted || status == models.ConnectionDeclined
}
