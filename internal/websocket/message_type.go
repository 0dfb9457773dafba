package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"zawj-chat/internal/chat"
	"zawj-chat/internal/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	// Connection events
	MessageTypeConnect MessageType = "connection.connect"

	// Client -> server chat commands
	MessageTypeChatOpen    MessageType = "chat.open"
	MessageTypeChatSend    MessageType = "chat.send"
	MessageTypeChatAccept  MessageType = "chat.accept"
	MessageTypeChatDecline MessageType = "chat.decline"
	MessageTypeChatBlock   MessageType = "chat.block"
	MessageTypeChatClose   MessageType = "chat.close"

	// Server -> client chat events
	MessageTypeChatState   MessageType = "chat.state"
	MessageTypeChatMessage MessageType = "chat.message"
	MessageTypeNotify      MessageType = "notify"

	// Error events
	MessageTypeError MessageType = "error"
)

// Error codes carried by error frames.
const (
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeUnknownType    = "UNKNOWN_TYPE"
	CodeRateLimited    = "RATE_LIMITED"
	CodeChatNotOpen    = "CHAT_NOT_OPEN"
	CodeNotFound       = "NOT_FOUND"
	CodeForbidden      = "FORBIDDEN"
	CodeSendFailed     = "SEND_FAILED"
	CodeInternal       = "INTERNAL_ERROR"
)

func (mt MessageType) String() string {
	return string(mt)
}

// IsValid reports whether a client may send this type.
func (mt MessageType) IsValid() bool {
	switch mt {
	case MessageTypeChatOpen, MessageTypeChatSend, MessageTypeChatAccept,
		MessageTypeChatDecline, MessageTypeChatBlock, MessageTypeChatClose:
		return true
	default:
		return false
	}
}

// Message is the envelope of every frame in both directions.
type Message struct {
	ID        string                 `json:"id"`
	Type      MessageType            `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
	UserID    string                 `json:"user_id,omitempty"`
}

func (m *Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message ID is required")
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid message type: %s", m.Type)
	}
	if m.Data == nil {
		m.Data = make(map[string]interface{})
	}
	return nil
}

// DecodeData copies the data object into v.
func (m *Message) DecodeData(v interface{}) error {
	raw, err := json.Marshal(m.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Inbound payloads

type ChatOpenData struct {
	ConversationID string `json:"conversation_id"`
	PeerID         string `json:"peer_id,omitempty"`
}

type ChatSendData struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// ChatTargetData addresses an open chat for accept, decline, block and close.
type ChatTargetData struct {
	ConversationID string `json:"conversation_id"`
}

// Outbound payloads

type NotifyData struct {
	ConversationID string    `json:"conversation_id,omitempty"`
	Kind           chat.Kind `json:"kind"`
	Message        string    `json:"message"`
}

type ErrorData struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	Draft          string `json:"draft,omitempty"`
}

type ChatMessageData struct {
	ConversationID string         `json:"conversation_id"`
	Message        models.Message `json:"message"`
}

// NewMessage creates a new message with the specified type and data
func NewMessage(id string, msgType MessageType, userID string, data map[string]interface{}) *Message {
	if data == nil {
		data = make(map[string]interface{})
	}
	if id == "" {
		id = uuid.New().String()
	}
	return &Message{
		ID:        id,
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
		UserID:    userID,
	}
}

func NewConnectMessage(clientID, userID string) *Message {
	return NewMessage("", MessageTypeConnect, userID, map[string]interface{}{
		"client_id": clientID,
		"status":    "connected",
	})
}

func NewErrorMessage(userID string, data ErrorData) *Message {
	return NewMessage("", MessageTypeError, userID, toMap(data))
}

func NewNotifyMessage(userID string, data NotifyData) *Message {
	return NewMessage("", MessageTypeNotify, userID, toMap(data))
}

func NewStateMessage(userID string, snap chat.Snapshot) *Message {
	return NewMessage("", MessageTypeChatState, userID, toMap(snap))
}

func NewChatMessage(userID string, data ChatMessageData) *Message {
	return NewMessage("", MessageTypeChatMessage, userID, toMap(data))
}

// toMap converts a struct to the generic data map of the envelope.
func toMap(v interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	if raw, err := json.Marshal(v); err == nil {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}
