package postgres

import (
	"context"
	"time"

	"zawj-chat/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BlockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(db *gorm.DB) *BlockRepository {
	return &BlockRepository{db}
}

func (r *BlockRepository) Block(ctx context.Context, userID, blockedUserID string) (bool, error) {
	row := models.BlockedUser{UserID: userID, BlockedUserID: blockedUserID, CreatedAt: time.Now().UTC()}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *BlockRepository) Unblock(ctx context.Context, userID, blockedUserID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND blocked_user_id = ?", userID, blockedUserID).
		Delete(&models.BlockedUser{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *BlockRepository) IsBlockedEither(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BlockedUser{}).
		Where("(user_id = ? AND blocked_user_id = ?) OR (user_id = ? AND blocked_user_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

func (r *BlockRepository) ListBlocked(ctx context.Context, userID string) ([]models.BlockedUser, error) {
	var rows []models.BlockedUser
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
