package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlRooms = `
CREATE TABLE IF NOT EXISTS rooms (
    room_id           TEXT         PRIMARY KEY,
    voice_channel_id  TEXT,
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlUsers = `
CREATE TABLE IF NOT EXISTS users (
    id          BIGSERIAL    PRIMARY KEY,
    discord_id  TEXT         UNIQUE,
    twitch_id   TEXT         UNIQUE,
    system_id   TEXT         UNIQUE,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    CONSTRAINT check_user_identity CHECK (
        discord_id IS NOT NULL OR twitch_id IS NOT NULL OR system_id IS NOT NULL
    )
);
`

const ddlUserMessages = `
CREATE TABLE IF NOT EXISTS user_messages (
    id          BIGSERIAL    PRIMARY KEY,
    user_id     BIGINT       NOT NULL REFERENCES users (id),
    room_id     TEXT         NOT NULL,
    source      TEXT         NOT NULL,
    channel_id  TEXT         NOT NULL DEFAULT '',
    content     TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_user_messages_room_id
    ON user_messages (room_id);

CREATE INDEX IF NOT EXISTS idx_user_messages_room_order
    ON user_messages (room_id, id);
`

// Migrate creates or ensures all required tables and indexes exist. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlRooms,
		ddlUsers,
		ddlUserMessages,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store migrate: %w", err)
		}
	}
	return nil
}
