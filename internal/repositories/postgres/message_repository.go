package postgres

import (
	"context"
	"errors"

	"zawj-chat/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db}
}

// Create stores the message and bumps the conversation so the chat list
// stays ordered by activity.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("updated_at", msg.CreatedAt).Error
	})
}

func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}

func (r *MessageRepository) LastInConversation(ctx context.Context, conversationID string) (*models.Message, error) {
	var m models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
