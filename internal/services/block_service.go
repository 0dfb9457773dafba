package services

import (
	"context"
	"errors"

	"zawj-chat/internal/backend"
	"zawj-chat/internal/models"
	"zawj-chat/internal/repositories"
	"zawj-chat/pkg/logger"
)

// BlockService manages the user block list. It is separate from the
// connection status and takes precedence over it.
type BlockService struct {
	backend *backend.Backend
	users   repositories.UserRepository
	logger  *logger.Logger
}

func NewBlockService(be *backend.Backend, users repositories.UserRepository, log *logger.Logger) *BlockService {
	return &BlockService{backend: be, users: users, logger: log}
}

func (s *BlockService) Block(ctx context.Context, userID, targetID string) error {
	if userID == targetID {
		return ErrSelfAction
	}
	if _, err := s.users.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := s.backend.BlockUser(ctx, userID, targetID); err != nil {
		return err
	}
	s.logger.Info("User blocked", "userID", userID, "blockedUserID", targetID)
	return nil
}

func (s *BlockService) Unblock(ctx context.Context, userID, targetID string) error {
	if userID == targetID {
		return ErrSelfAction
	}
	return s.backend.UnblockUser(ctx, userID, targetID)
}

func (s *BlockService) List(ctx context.Context, userID string) ([]models.BlockedUser, error) {
	rows, err := s.backend.ListBlocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.BlockedUser{}
	}
	return rows, nil
}
