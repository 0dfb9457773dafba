package postgres

import (
	"context"
	"errors"
	"fmt"

	"zawj-chat/internal/models"

	"gorm.io/gorm"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db}
}

// Create inserts conv, or loads the existing conversation of the same pair
// into conv when one already exists.
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	conv.PairKey = models.PairKey(conv.User1ID, conv.User2ID)
	err := r.db.WithContext(ctx).Create(conv).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return r.db.WithContext(ctx).Where("pair_key = ?", conv.PairKey).First(conv).Error
	}
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *ConversationRepository) FindByPairKey(ctx context.Context, pairKey string) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.db.WithContext(ctx).First(&c, "pair_key = ?", pairKey).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&convs).Error
	return convs, err
}
