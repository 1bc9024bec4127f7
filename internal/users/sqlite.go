package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// SQLiteStore keeps users in a single SQLite table as JSON documents
type SQLiteStore struct {
	db   *sql.DB
	keys keyedMutex
	now  func() time.Time
}

// OpenSQLite opens the database at path and ensures the schema.
// The path can be ":memory:" for an in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) get(ctx context.Context, q querier, id string) (*User, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM users WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	var u User
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return nil, fmt.Errorf("unmarshaling user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) put(ctx context.Context, q querier, u *User) error {
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshaling user: %w", err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO users (id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		u.ID, string(data), now)
	if err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*User, error) {
	return s.get(ctx, s.db, id)
}

func (s *SQLiteStore) Put(ctx context.Context, u *User) error {
	if u == nil || u.ID == "" {
		return ErrInvalidUser
	}
	unlock := s.keys.lock(u.ID)
	defer unlock()
	return s.put(ctx, s.db, u.Clone())
}

func (s *SQLiteStore) Update(ctx context.Context, id string, fn UpdateFunc) (*User, error) {
	return s.apply(ctx, id, fn, false)
}

func (s *SQLiteStore) Upsert(ctx context.Context, id string, fn UpdateFunc) (*User, error) {
	return s.apply(ctx, id, fn, true)
}

func (s *SQLiteStore) apply(ctx context.Context, id string, fn UpdateFunc, create bool) (*User, error) {
	if id == "" {
		return nil, ErrInvalidUser
	}
	unlock := s.keys.lock(id)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	u, err := s.get(ctx, tx, id)
	if create && errors.Is(err, ErrNotFound) {
		u, err = &User{ID: id}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	u.ID = id
	if err := s.put(ctx, tx, u); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing user update: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	unlock := s.keys.lock(id)
	defer unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("deleting users: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		var u User
		if err := json.Unmarshal([]byte(data), &u); err != nil {
			return nil, fmt.Errorf("unmarshaling user: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CheckHealth(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite health check failed: %w", err)
	}
	return nil
}
