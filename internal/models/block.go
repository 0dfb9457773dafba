package models

import "time"

// BlockedUser is one direction of the user block list. It is independent of
// the Connection status and is checked before it.
type BlockedUser struct {
	UserID        string    `gorm:"primaryKey;type:varchar(36)" json:"userId"`
	BlockedUserID string    `gorm:"primaryKey;type:varchar(36)" json:"blockedUserId"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (BlockedUser) TableName() string { return "blocked_users" }
