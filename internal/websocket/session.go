package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"zawj-chat/internal/chat"
	"zawj-chat/internal/metrics"
	"zawj-chat/internal/models"
	"zawj-chat/internal/services"
	"zawj-chat/pkg/logger"
)

// ChatBackend is everything a chat controller needs from the data layer.
type ChatBackend interface {
	chat.ConnectionStore
	chat.MessageStore
	chat.BlockList
	chat.Realtime
}

// ConversationLookup resolves a conversation the user takes part in.
type ConversationLookup interface {
	Get(ctx context.Context, userID, conversationID string) (*models.Conversation, error)
}

type sender interface {
	SendMessage(message *Message) error
}

// Session owns the chat controllers opened over one socket. Closing the
// session tears all of them down.
type Session struct {
	userID        string
	backend       ChatBackend
	conversations ConversationLookup
	opts          Options
	out           sender
	logger        *logger.Logger

	mu     sync.Mutex
	chats  map[string]*chat.Controller
	closed bool
}

func NewSession(userID string, backend ChatBackend, conversations ConversationLookup, opts Options, out sender, log *logger.Logger) *Session {
	return &Session{
		userID:        userID,
		backend:       backend,
		conversations: conversations,
		opts:          opts,
		out:           out,
		logger:        log.With("userID", userID),
		chats:         make(map[string]*chat.Controller),
	}
}

// Handle dispatches one inbound frame.
func (s *Session) Handle(ctx context.Context, msg *Message) {
	if err := msg.Validate(); err != nil {
		s.sendError(ErrorData{Code: CodeUnknownType, Message: err.Error()})
		return
	}

	switch msg.Type {
	case MessageTypeChatOpen:
		var data ChatOpenData
		if err := msg.DecodeData(&data); err != nil || data.ConversationID == "" {
			s.sendError(ErrorData{Code: CodeInvalidMessage, Message: "conversation_id is required"})
			return
		}
		s.open(ctx, data)

	case MessageTypeChatSend:
		var data ChatSendData
		if err := msg.DecodeData(&data); err != nil {
			s.sendError(ErrorData{Code: CodeInvalidMessage, Message: "Invalid chat.send payload"})
			return
		}
		ctrl := s.controller(data.ConversationID)
		if ctrl == nil {
			return
		}
		res := ctrl.Send(ctx, data.Text)
		if res.Message != nil {
			s.send(NewChatMessage(s.userID, ChatMessageData{ConversationID: data.ConversationID, Message: *res.Message}))
		}
		if res.RestoreDraft != "" {
			s.sendError(ErrorData{
				Code:           CodeSendFailed,
				Message:        "The message was not sent",
				ConversationID: data.ConversationID,
				Draft:          res.RestoreDraft,
			})
		}

	case MessageTypeChatAccept, MessageTypeChatDecline, MessageTypeChatBlock:
		var data ChatTargetData
		if err := msg.DecodeData(&data); err != nil {
			s.sendError(ErrorData{Code: CodeInvalidMessage, Message: "Invalid payload"})
			return
		}
		ctrl := s.controller(data.ConversationID)
		if ctrl == nil {
			return
		}
		switch msg.Type {
		case MessageTypeChatAccept:
			ctrl.AcceptIncoming(ctx)
		case MessageTypeChatDecline:
			ctrl.DeclineIncoming(ctx)
		default:
			ctrl.Block(ctx)
		}

	case MessageTypeChatClose:
		var data ChatTargetData
		if err := msg.DecodeData(&data); err != nil {
			s.sendError(ErrorData{Code: CodeInvalidMessage, Message: "Invalid payload"})
			return
		}
		s.closeChat(data.ConversationID)
	}
}

func (s *Session) open(ctx context.Context, data ChatOpenData) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	existing := s.chats[data.ConversationID]
	s.mu.Unlock()
	if existing != nil {
		s.send(NewStateMessage(s.userID, existing.Snapshot()))
		return
	}

	conv, err := s.conversations.Get(ctx, s.userID, data.ConversationID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConversationNotFound):
			s.sendError(ErrorData{Code: CodeNotFound, Message: "Conversation not found", ConversationID: data.ConversationID})
		case errors.Is(err, services.ErrNotParticipant):
			s.sendError(ErrorData{Code: CodeForbidden, Message: "Not a participant of this conversation", ConversationID: data.ConversationID})
		default:
			s.logger.Error("Failed to load conversation", "conversationID", data.ConversationID, "error", err)
			s.sendError(ErrorData{Code: CodeInternal, Message: "Failed to open chat", ConversationID: data.ConversationID})
		}
		return
	}
	peerID := conv.Peer(s.userID)
	if data.PeerID != "" && data.PeerID != peerID {
		s.sendError(ErrorData{Code: CodeForbidden, Message: "Peer does not match the conversation", ConversationID: data.ConversationID})
		return
	}

	convID := conv.ID
	ctrl := chat.NewController(chat.Params{
		ConversationID: convID,
		ViewerID:       s.userID,
		PeerID:         peerID,
	}, chat.Deps{
		Connections: s.backend,
		Messages:    s.backend,
		Blocks:      s.backend,
		Realtime:    s.backend,
		Notifier: chat.NotifierFunc(func(kind chat.Kind, message string) {
			s.send(NewNotifyMessage(s.userID, NotifyData{ConversationID: convID, Kind: kind, Message: message}))
		}),
		Logger:         s.logger,
		Location:       s.opts.Location,
		ResubscribeMin: s.opts.ResubscribeMin,
		ResubscribeMax: s.opts.ResubscribeMax,
		OnChange: func(snap chat.Snapshot) {
			s.send(NewStateMessage(s.userID, snap))
		},
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if other := s.chats[convID]; other != nil {
		s.mu.Unlock()
		s.send(NewStateMessage(s.userID, other.Snapshot()))
		return
	}
	s.chats[convID] = ctrl
	s.mu.Unlock()
	metrics.OpenControllers.Inc()

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := ctrl.Initialize(initCtx); err != nil && !errors.Is(err, chat.ErrDisposed) {
		s.logger.Warn("Chat failed to initialize", "conversationID", convID, "error", err)
		s.closeChat(convID)
		s.sendError(ErrorData{Code: CodeInternal, Message: "Failed to open chat", ConversationID: convID})
	}
}

func (s *Session) controller(conversationID string) *chat.Controller {
	s.mu.Lock()
	ctrl := s.chats[conversationID]
	s.mu.Unlock()
	if ctrl == nil {
		s.sendError(ErrorData{Code: CodeChatNotOpen, Message: "Open the chat first", ConversationID: conversationID})
	}
	return ctrl
}

func (s *Session) closeChat(conversationID string) {
	s.mu.Lock()
	ctrl := s.chats[conversationID]
	delete(s.chats, conversationID)
	s.mu.Unlock()
	if ctrl != nil {
		ctrl.Teardown()
		metrics.OpenControllers.Dec()
	}
}

// OpenChats returns the ids of the conversations currently open.
func (s *Session) OpenChats() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.chats))
	for id := range s.chats {
		ids = append(ids, id)
	}
	return ids
}

// Close tears down every open chat. Later frames are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	chats := s.chats
	s.chats = make(map[string]*chat.Controller)
	s.mu.Unlock()

	for _, ctrl := range chats {
		ctrl.Teardown()
		metrics.OpenControllers.Dec()
	}
	if len(chats) > 0 {
		s.logger.Debug("Session closed", "chats", len(chats))
	}
}

func (s *Session) send(m *Message) {
	if err := s.out.SendMessage(m); err != nil {
		s.logger.Debug("Dropped outbound frame", "type", m.Type, "error", err)
	}
}

func (s *Session) sendError(data ErrorData) {
	s.send(NewErrorMessage(s.userID, data))
}
