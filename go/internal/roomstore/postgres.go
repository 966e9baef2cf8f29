package roomstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/basta/go/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS room_snapshots (
    room_id    TEXT        NOT NULL,
    state_key  TEXT        NOT NULL,
    blob       JSONB       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (room_id, state_key)
)`

// Postgres stores snapshots in the room_snapshots table.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and makes sure the snapshot table exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create room_snapshots table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Get(ctx context.Context, roomID string) (*models.RoomState, error) {
	var blob []byte
	err := p.pool.QueryRow(ctx,
		`SELECT blob FROM room_snapshots WHERE room_id = $1 AND state_key = $2`,
		roomID, StateKey,
	).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select room %s: %w", roomID, err)
	}
	return decode(blob)
}

func (p *Postgres) Put(ctx context.Context, roomID string, state *models.RoomState) error {
	blob, err := encode(state)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
        INSERT INTO room_snapshots (room_id, state_key, blob, updated_at)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (room_id, state_key)
        DO UPDATE SET blob = EXCLUDED.blob, updated_at = EXCLUDED.updated_at
    `, roomID, StateKey, blob)
	if err != nil {
		return fmt.Errorf("upsert room %s: %w", roomID, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
