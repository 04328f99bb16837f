package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements KV on the profile_entries table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects through the pgx driver and, when migrationsDir is
// set, applies the pending migrations before returning.
func OpenPostgres(ctx context.Context, databaseURL, migrationsDir string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if migrationsDir != "" {
		if err := ApplyMigrations(ctx, db, migrationsDir); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, profile, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM profile_entries WHERE profile_id=$1 AND entry_key=$2`,
		profile, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", Wrap("get", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, profile, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile_entries (profile_id, entry_key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (profile_id, entry_key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, profile, key, value)
	return Wrap("set", key, err)
}

func (s *PostgresStore) Delete(ctx context.Context, profile, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM profile_entries WHERE profile_id=$1 AND entry_key=$2`,
		profile, key,
	)
	return Wrap("delete", key, err)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
