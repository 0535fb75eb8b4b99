package store

import (
	"context"
	"fmt"
	"log/slog"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	PebbleDir   string
	PostgresDSN string
}

// Open returns the backend named by opts.Driver: "pebble", "postgres" or
// "memory".
func Open(ctx context.Context, opts Options, log *slog.Logger) (LastSeenStore, error) {
	switch opts.Driver {
	case "", "pebble":
		s, err := OpenPebble(opts.PebbleDir, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := ConnectPostgres(ctx, opts.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
