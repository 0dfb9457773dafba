package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zawj-chat/internal/feed"
	"zawj-chat/internal/models"
	"zawj-chat/internal/repositories"
	"zawj-chat/pkg/logger"
)

// HistoryResponse is the message history of a conversation together with the
// date-divided rows the chat screen renders.
type HistoryResponse struct {
	ConversationID string           `json:"conversationId"`
	Messages       []models.Message `json:"messages"`
	Rows           []feed.Row       `json:"rows"`
}

type ConversationService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	location      *time.Location
	logger        *logger.Logger
}

func NewConversationService(store repositories.Store, loc *time.Location, log *logger.Logger) *ConversationService {
	if loc == nil {
		loc = time.UTC
	}
	return &ConversationService{
		conversations: store.Conversations,
		messages:      store.Messages,
		users:         store.Users,
		location:      loc,
		logger:        log,
	}
}

// CreateOrGet returns the conversation of the pair, creating it on first use.
func (s *ConversationService) CreateOrGet(ctx context.Context, userID, peerID string) (*models.Conversation, error) {
	if userID == peerID {
		return nil, ErrSelfAction
	}
	if _, err := s.users.FindByID(ctx, peerID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	conv, err := s.conversations.FindByPairKey(ctx, models.PairKey(userID, peerID))
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	conv = &models.Conversation{User1ID: userID, User2ID: peerID}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	s.logger.Info("Conversation created", "conversationID", conv.ID, "userID", userID, "peerID", peerID)
	return conv, nil
}

// Get returns the conversation if userID takes part in it.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

// ListForUser returns the chat list, most recent activity first.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	peerIDs := make([]string, 0, len(convs))
	for i := range convs {
		peerIDs = append(peerIDs, convs[i].Peer(userID))
	}
	peers, err := s.users.FindByIDs(ctx, peerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load peers: %w", err)
	}
	byID := make(map[string]*models.User, len(peers))
	for i := range peers {
		byID[peers[i].ID] = &peers[i]
	}

	out := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := models.ConversationSummary{Conversation: conv}
		if peer, ok := byID[conv.Peer(userID)]; ok {
			summary.Peer = models.NewPublicUserResponse(peer)
		} else {
			summary.Peer = models.UserResponse{ID: conv.Peer(userID)}
		}
		last, err := s.messages.LastInConversation(ctx, conv.ID)
		if err != nil {
			s.logger.Warn("Failed to load last message", "conversationID", conv.ID, "error", err)
		}
		summary.LastMessage = last
		out = append(out, summary)
	}
	return out, nil
}

// History loads the ordered messages of a conversation the user takes part in.
func (s *ConversationService) History(ctx context.Context, userID, conversationID string) (*HistoryResponse, error) {
	if _, err := s.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := feed.LoadHistory(ctx, messageLoader{s.messages}, conversationID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return &HistoryResponse{
		ConversationID: conversationID,
		Messages:       msgs,
		Rows:           feed.GroupByDate(msgs, s.location),
	}, nil
}

type messageLoader struct {
	repo repositories.MessageRepository
}

func (l messageLoader) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return l.repo.ListByConversation(ctx, conversationID)
}
