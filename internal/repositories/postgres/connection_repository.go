package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zawj-chat/internal/models"
	"zawj-chat/internal/repositories"

	"gorm.io/gorm"
)

type ConnectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db}
}

func (r *ConnectionRepository) FindByPairKey(ctx context.Context, pairKey string) (*models.Connection, error) {
	var c models.Connection
	err := r.db.WithContext(ctx).First(&c, "pair_key = ?", pairKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	return &c, nil
}

func (r *ConnectionRepository) Create(ctx context.Context, conn *models.Connection) error {
	conn.PairKey = models.PairKey(conn.RequesterID, conn.AddresseeID)
	err := r.db.WithContext(ctx).Create(conn).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repositories.ErrConnectionExists
	}
	return err
}

// UpdateStatus is a single conditional UPDATE; the database arbitrates races
// between the two participants.
func (r *ConnectionRepository) UpdateStatus(ctx context.Context, pairKey string, from []models.ConnectionStatus, to models.ConnectionStatus, at time.Time) (*models.Connection, bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	if repositories.Responded(to) {
		updates["responded_at"] = at
	}

	res := r.db.WithContext(ctx).
		Model(&models.Connection{}).
		Where("pair_key = ? AND status IN ?", pairKey, from).
		Updates(updates)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to update connection: %w", res.Error)
	}

	conn, err := r.FindByPairKey(ctx, pairKey)
	if err != nil {
		return nil, false, err
	}
	if conn == nil {
		return nil, false, repositories.ErrNotFound
	}
	return conn, res.RowsAffected > 0, nil
}

func (r *ConnectionRepository) ListForUser(ctx context.Context, userID string) ([]models.Connection, error) {
	var conns []models.Connection
	err := r.db.WithContext(ctx).
		Where("requester_id = ? OR addressee_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&conns).Error
	return conns, err
}
