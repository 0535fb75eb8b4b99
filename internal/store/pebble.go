package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	pebble "github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"social-client/internal/models"
)

const lastSeenPrefix = "lastseen"

// PebbleStore keeps markers in a local pebble database.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) the database in dir. A nil fs uses the OS
// filesystem.
func OpenPebble(dir string, fs vfs.FS) (*PebbleStore, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	} else if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func pebbleKey(key Key) []byte {
	return []byte(lastSeenPrefix + "\x00" + key.LocalUserID.String() + "\x00" + key.TargetUserID.String())
}

func (s *PebbleStore) Get(_ context.Context, key Key) (models.ID, bool, error) {
	if !key.valid() {
		return "", false, errInvalidKey
	}
	v, closer, err := s.db.Get(pebbleKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get last seen: %w", err)
	}
	defer closer.Close()
	// v is only valid until closer.Close
	return models.ID(string(v)), true, nil
}

func (s *PebbleStore) Set(_ context.Context, key Key, messageID models.ID) error {
	if !key.valid() {
		return errInvalidKey
	}
	if err := s.db.Set(pebbleKey(key), []byte(messageID.String()), pebble.Sync); err != nil {
		return fmt.Errorf("set last seen: %w", err)
	}
	return nil
}

func (s *PebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
