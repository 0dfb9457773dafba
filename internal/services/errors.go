package services

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRequest     = errors.New("invalid request")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("user is not a participant of this conversation")
	ErrSelfAction           = errors.New("cannot target yourself")

	ErrConnectionNotFound = errors.New("connection not found")
	ErrAlreadyConnected   = errors.New("a connection with this user already exists")
	ErrForbidden          = errors.New("messaging this user is not allowed")
	ErrNotAddressee       = errors.New("only the recipient can respond to this request")

	ErrMessageNotFound = errors.New("message not found")
	ErrNoAttachment    = errors.New("message has no attachment")
	ErrStorageDisabled = errors.New("attachment storage is not configured")
)
