package chat

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized       = errors.New("chat: viewer, peer and conversation are required")
	ErrForbidden          = errors.New("chat: messaging this user is not allowed")
	ErrAwaitingResponse   = errors.New("chat: waiting for the peer to accept the request")
	ErrMustRespond        = errors.New("chat: the pending request must be answered first")
	ErrNotReady           = errors.New("chat: controller is not ready")
	ErrDisposed           = errors.New("chat: controller was torn down")
	ErrAlreadyInitialized = errors.New("chat: controller already initialized")
)

// WriteError wraps a failed insert or update.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("chat: %s failed: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
