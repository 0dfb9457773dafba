package services

import (
	"context"
	"errors"
	"fmt"

	"zawj-chat/internal/backend"
	"zawj-chat/internal/connection"
	"zawj-chat/internal/models"
	"zawj-chat/internal/repositories"
	"zawj-chat/pkg/logger"
)

// ConnectionView is the connection record between the viewer and a peer with
// what the viewer may do next.
type ConnectionView struct {
	PeerID      string             `json:"peerId"`
	Connection  *models.Connection `json:"connection"`
	State       connection.State   `json:"state"`
	Actions     connection.Actions `json:"actions"`
	Placeholder string             `json:"placeholder"`
}

// ConnectionService exposes the connection lifecycle outside of an open chat.
type ConnectionService struct {
	backend     *backend.Backend
	connections repositories.ConnectionRepository
	users       repositories.UserRepository
	logger      *logger.Logger
}

func NewConnectionService(be *backend.Backend, store repositories.Store, log *logger.Logger) *ConnectionService {
	return &ConnectionService{
		backend:     be,
		connections: store.Connections,
		users:       store.Users,
		logger:      log,
	}
}

func (s *ConnectionService) Get(ctx context.Context, viewerID, peerID string) (*ConnectionView, error) {
	if viewerID == peerID {
		return nil, ErrSelfAction
	}
	conn, err := s.backend.FindConnection(ctx, viewerID, peerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	return s.view(ctx, viewerID, peerID, conn)
}

func (s *ConnectionService) List(ctx context.Context, viewerID string) ([]models.Connection, error) {
	return s.connections.ListForUser(ctx, viewerID)
}

// Request sends a connection request without a message.
func (s *ConnectionService) Request(ctx context.Context, viewerID, peerID string) (*ConnectionView, error) {
	if viewerID == peerID {
		return nil, ErrSelfAction
	}
	if err := s.requireUser(ctx, peerID); err != nil {
		return nil, err
	}
	blocked, err := s.backend.IsBlocked(ctx, viewerID, peerID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrForbidden
	}

	conn, err := s.backend.CreateConnection(ctx, viewerID, peerID)
	if err != nil {
		if errors.Is(err, repositories.ErrConnectionExists) {
			return nil, ErrAlreadyConnected
		}
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}
	s.logger.Info("Connection requested", "requesterID", viewerID, "addresseeID", peerID)
	return s.view(ctx, viewerID, peerID, conn)
}

func (s *ConnectionService) Accept(ctx context.Context, viewerID, peerID string) (*ConnectionView, error) {
	return s.respond(ctx, viewerID, peerID, models.ConnectionAccepted)
}

func (s *ConnectionService) Decline(ctx context.Context, viewerID, peerID string) (*ConnectionView, error) {
	return s.respond(ctx, viewerID, peerID, models.ConnectionDeclined)
}

func (s *ConnectionService) respond(ctx context.Context, viewerID, peerID string, to models.ConnectionStatus) (*ConnectionView, error) {
	conn, changed, err := s.backend.RespondToConnection(ctx, viewerID, peerID, to)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil, ErrConnectionNotFound
	case errors.Is(err, connection.ErrNotAddressee):
		return nil, ErrNotAddressee
	case err != nil:
		return nil, fmt.Errorf("failed to update connection: %w", err)
	}
	if changed {
		s.logger.Info("Connection answered", "addresseeID", viewerID, "requesterID", peerID, "status", to)
	}
	return s.view(ctx, viewerID, peerID, conn)
}

// Block sets the pair's connection to blocked.
func (s *ConnectionService) Block(ctx context.Context, viewerID, peerID string) (*ConnectionView, error) {
	if viewerID == peerID {
		return nil, ErrSelfAction
	}
	if err := s.requireUser(ctx, peerID); err != nil {
		return nil, err
	}
	conn, _, err := s.backend.BlockConnection(ctx, viewerID, peerID)
	if err != nil {
		return nil, fmt.Errorf("failed to block connection: %w", err)
	}
	return s.view(ctx, viewerID, peerID, conn)
}

func (s *ConnectionService) view(ctx context.Context, viewerID, peerID string, conn *models.Connection) (*ConnectionView, error) {
	blocked, err := s.backend.IsBlocked(ctx, viewerID, peerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check block list: %w", err)
	}
	actions := connection.Derive(conn, viewerID, peerID)
	if blocked {
		actions = connection.BlockListed()
	}
	return &ConnectionView{
		PeerID:      peerID,
		Connection:  conn,
		State:       actions.Active(),
		Actions:     actions,
		Placeholder: actions.Placeholder(),
	}, nil
}

func (s *ConnectionService) requireUser(ctx context.Context, userID string) error {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
