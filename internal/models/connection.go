package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionBlocked  ConnectionStatus = "blocked"
	ConnectionDeclined ConnectionStatus = "declined"
)

func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionPending, ConnectionAccepted, ConnectionBlocked, ConnectionDeclined:
		return true
	default:
		return false
	}
}

/** --------------------ENTITIES-------------------- */
// Connection is the messaging permission between two users. There is at most
// one row per unordered pair, enforced by the unique PairKey.
type Connection struct {
	ID          string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PairKey     string           `gorm:"uniqueIndex;not null;type:varchar(80)" json:"pairKey"`
	RequesterID string           `gorm:"not null;index;type:varchar(36)" json:"requesterId"`
	AddresseeID string           `gorm:"not null;index;type:varchar(36)" json:"addresseeId"`
	Status      ConnectionStatus `gorm:"not null;type:varchar(16);default:'pending'" json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	RespondedAt *time.Time       `json:"respondedAt,omitempty"`
}

func (c *Connection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.PairKey == "" {
		c.PairKey = PairKey(c.RequesterID, c.AddresseeID)
	}
	return nil
}

// HasParticipant reports whether userID is either side of the connection.
func (c *Connection) HasParticipant(userID string) bool {
	return c.RequesterID == userID || c.AddresseeID == userID
}

// NewerThan orders two observations of the same row; ties count as newer so
// that a realtime echo carrying the same timestamp still wins.
func (c *Connection) NewerThan(other *Connection) bool {
	if other == nil {
		return true
	}
	return !c.UpdatedAt.Before(other.UpdatedAt)
}

// Clone returns a deep copy.
func (c *Connection) Clone() *Connection {
	if c == nil {
		return nil
	}
	out := *c
	if c.RespondedAt != nil {
		t := *c.RespondedAt
		out.RespondedAt = &t
	}
	return &out
}
