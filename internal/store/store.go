package store

import (
	"context"
	"errors"

	"social-client/internal/models"
)

var ErrUnknownDriver = errors.New("store: unknown driver")

// Key scopes a last-seen marker to one local user and one conversation.
type Key struct {
	LocalUserID  models.ID
	TargetUserID models.ID
}

func (k Key) valid() bool {
	return k.LocalUserID != "" && k.TargetUserID != ""
}

// LastSeenStore persists the id of the last message the local user has seen
// in a conversation.
type LastSeenStore interface {
	Get(ctx context.Context, key Key) (models.ID, bool, error)
	Set(ctx context.Context, key Key, messageID models.ID) error
	Close() error
}

var errInvalidKey = errors.New("store: key requires both user ids")
