package services

import (
	"context"
	"errors"
	"time"

	"zawj-chat/internal/models"
	"zawj-chat/internal/repositories"
)

// Presigner issues temporary download URLs for stored objects.
type Presigner interface {
	PresignGet(ctx context.Context, key string) (string, time.Time, error)
}

type AttachmentService struct {
	messages      repositories.MessageRepository
	conversations repositories.ConversationRepository
	presigner     Presigner
}

// NewAttachmentService accepts a nil presigner when storage is disabled.
func NewAttachmentService(store repositories.Store, presigner Presigner) *AttachmentService {
	return &AttachmentService{
		messages:      store.Messages,
		conversations: store.Conversations,
		presigner:     presigner,
	}
}

// Resolve returns a download URL for the attachment of a message the user
// can see.
func (s *AttachmentService) Resolve(ctx context.Context, userID, messageID string) (*models.AttachmentResponse, error) {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	conv, err := s.conversations.FindByID(ctx, msg.ConversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	if msg.AttachmentKey == "" {
		return nil, ErrNoAttachment
	}
	if s.presigner == nil {
		return nil, ErrStorageDisabled
	}

	url, expires, err := s.presigner.PresignGet(ctx, msg.AttachmentKey)
	if err != nil {
		return nil, err
	}
	return &models.AttachmentResponse{MessageID: msg.ID, URL: url, ExpiresAt: expires}, nil
}
