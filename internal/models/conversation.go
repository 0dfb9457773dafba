package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// Conversation holds the message history of exactly two participants.
type Conversation struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PairKey   string    `gorm:"uniqueIndex;not null;type:varchar(80)" json:"-"`
	User1ID   string    `gorm:"not null;index;type:varchar(36)" json:"user1Id"`
	User2ID   string    `gorm:"not null;index;type:varchar(36)" json:"user2Id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.PairKey == "" {
		c.PairKey = PairKey(c.User1ID, c.User2ID)
	}
	return nil
}

func (c *Conversation) HasParticipant(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// Peer returns the other participant, or "" when viewerID is not one.
func (c *Conversation) Peer(viewerID string) string {
	switch viewerID {
	case c.User1ID:
		return c.User2ID
	case c.User2ID:
		return c.User1ID
	default:
		return ""
	}
}

/** -------------------- DTOs -------------------- */
type CreateConversationRequest struct {
	PeerID string `json:"peerId" binding:"required"`
}

// ConversationSummary is one row of the chat list.
type ConversationSummary struct {
	Conversation
	Peer        UserResponse `json:"peer"`
	LastMessage *Message     `json:"lastMessage,omitempty"`
}
