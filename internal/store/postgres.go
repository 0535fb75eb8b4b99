package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"social-client/internal/models"
)

// PostgresStore shares markers between installs through a last_seen table.
type PostgresStore struct {
	db *sqlx.DB
}

// ConnectPostgres connects to dsn and applies migrations.
func ConnectPostgres(ctx context.Context, dsn string, log *slog.Logger) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if log != nil {
		log.Info("database migrations applied")
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an already migrated connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS last_seen (
            local_user_id TEXT NOT NULL,
            target_user_id TEXT NOT NULL,
            message_id TEXT NOT NULL,
            updated_at TIMESTAMPTZ DEFAULT NOW(),
            PRIMARY KEY(local_user_id, target_user_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key Key) (models.ID, bool, error) {
	if !key.valid() {
		return "", false, errInvalidKey
	}
	query, args, err := sq.Select("message_id").
		From("last_seen").
		Where(sq.Eq{"local_user_id": key.LocalUserID.String(), "target_user_id": key.TargetUserID.String()}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("failed to build sql query: %w", err)
	}

	var id string
	err = s.db.GetContext(ctx, &id, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get last seen: %w", err)
	}
	return models.ID(id), true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key Key, messageID models.ID) error {
	if !key.valid() {
		return errInvalidKey
	}
	query, args, err := sq.Insert("last_seen").
		Columns("local_user_id", "target_user_id", "message_id").
		Values(key.LocalUserID.String(), key.TargetUserID.String(), messageID.String()).
		Suffix("ON CONFLICT (local_user_id, target_user_id) DO UPDATE SET message_id = EXCLUDED.message_id, updated_at = NOW()").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set last seen: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
