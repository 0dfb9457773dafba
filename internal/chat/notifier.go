package chat

import "zawj-chat/pkg/logger"

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// User-facing notices.
const (
	MsgRequestSent     = "Request sent"
	MsgBlocked         = "You cannot send messages to this user."
	MsgAwaiting        = "Waiting for the user to accept your request"
	MsgMustRespond     = "Accept the request to reply"
	MsgUnauthorized    = "Please sign in again to open this chat."
	MsgLoading         = "The chat is still loading"
	MsgHistoryFailed   = "Failed to load messages"
	MsgStatusFailed    = "Failed to load the connection status"
	MsgSendFailed      = "Failed to send message"
	MsgRequestFailed   = "Failed to send request"
	MsgRespondFailed   = "Failed to update the request"
	MsgRequestAccepted = "Request accepted"
	MsgRequestDeclined = "Request declined"
	MsgUserBlocked     = "User blocked"
	MsgBlockFailed     = "Failed to block user"
)

// Notifier shows a short notice to the viewer.
type Notifier interface {
	Notify(kind Kind, message string)
}

type NotifierFunc func(kind Kind, message string)

func (f NotifierFunc) Notify(kind Kind, message string) { f(kind, message) }

// LogNotifier writes notices to the log. Used when no client is attached.
type LogNotifier struct {
	Logger *logger.Logger
}

func (n LogNotifier) Notify(kind Kind, message string) {
	if kind == KindError {
		n.Logger.Warn("Chat notice", "kind", kind, "message", message)
		return
	}
	n.Logger.Debug("Chat notice", "kind", kind, "message", message)
}
