package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// Message is immutable once written. History is ordered by CreatedAt.
type Message struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string    `gorm:"not null;type:varchar(36);index:idx_messages_conversation_created,priority:1" json:"conversationId"`
	SenderID       string    `gorm:"not null;type:varchar(36)" json:"senderId"`
	Text           string    `gorm:"type:text" json:"text"`
	AttachmentKey  string    `gorm:"type:varchar(255)" json:"attachmentKey,omitempty"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2" json:"createdAt"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

/** -------------------- DTOs -------------------- */
// AttachmentResponse carries a short-lived download URL.
type AttachmentResponse struct {
	MessageID string    `json:"messageId"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
