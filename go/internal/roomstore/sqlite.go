package roomstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcdev12/basta/go/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS room_snapshots (
    room_id    TEXT    NOT NULL,
    state_key  TEXT    NOT NULL,
    blob       BLOB    NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (room_id, state_key)
)`

// SQLite stores snapshots in a single-file database. Suited to one-node deployments.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create room_snapshots table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, roomID string) (*models.RoomState, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM room_snapshots WHERE room_id = ? AND state_key = ?`,
		roomID, StateKey,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select room %s: %w", roomID, err)
	}
	return decode(blob)
}

func (s *SQLite) Put(ctx context.Context, roomID string, state *models.RoomState) error {
	blob, err := encode(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO room_snapshots (room_id, state_key, blob, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (room_id, state_key)
        DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at
    `, roomID, StateKey, blob, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert room %s: %w", roomID, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
