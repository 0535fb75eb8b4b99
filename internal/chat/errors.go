package chat

import "errors"

var (
	ErrEmptyText          = errors.New("chat: message text is empty")
	ErrNotConnected       = errors.New("chat: channel not connected")
	ErrNotInitialized     = errors.New("chat: session not initialized")
	ErrAlreadyInitialized = errors.New("chat: session already initialized")
	ErrSessionClosed      = errors.New("chat: session closed")
	ErrMessageNotFound    = errors.New("chat: message not found")
	ErrMessageDeleted     = errors.New("chat: message is deleted")
	ErrMessagePending     = errors.New("chat: message not yet acknowledged")
	ErrNotAuthor          = errors.New("chat: only the author can do that")
	ErrInvalidScope       = errors.New("chat: invalid delete scope")
)
