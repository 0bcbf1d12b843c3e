// Package store persists accepted chat messages and per-room bindings in
// PostgreSQL. It is the narrow record/query collaborator consumed by the
// dispatcher: handlers record training messages and read a room's history
// back when rebuilding its text model.
//
// The [Postgres] implementation holds a single [pgxpool.Pool]. [Migrate] runs
// on startup and is idempotent. All methods are safe for concurrent use.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is one accepted training message tied to its origin.
type Message struct {
	// UserID is the platform-specific identity of the author.
	UserID string

	// Source names the originating platform ("discord", "twitch", "system").
	Source string

	// RoomID is the chat room (server/guild) the message was seen in.
	RoomID string

	// ChannelID is the channel within the room.
	ChannelID string

	// Content is the normalised sentence.
	Content string
}

// RoomInfo is the persisted per-room record.
type RoomInfo struct {
	RoomID string

	// VoiceChannelID is the channel the bot should join on bootstrap.
	// Empty when the room has no stored voice binding.
	VoiceChannelID string
}

// Store is the persisted-message collaborator contract.
type Store interface {
	// RecordMessage persists msg in its own transaction, creating the author
	// and room records as needed.
	RecordMessage(ctx context.Context, msg Message) error

	// MessagesForRoom returns all recorded message contents for roomID in
	// insertion order.
	MessagesForRoom(ctx context.Context, roomID string) ([]string, error)

	// EnsureRoom returns the persisted record for roomID, creating it first
	// when missing.
	EnsureRoom(ctx context.Context, roomID string) (RoomInfo, error)

	// SetVoiceChannel stores the voice channel binding for roomID.
	SetVoiceChannel(ctx context.Context, roomID, channelID string) error
}

var _ Store = (*Postgres)(nil)

// Postgres is the PostgreSQL-backed [Store].
type Postgres struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn, verifies the connection, and runs the
// schema migration.
func New(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Ping probes database connectivity. Used by the readiness endpoint.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (p *Postgres) Close() {
	p.pool.Close()
}

// RecordMessage implements [Store]. The room row, the user row, and the
// message insert share one transaction; any failure rolls the whole unit back.
func (p *Postgres) RecordMessage(ctx context.Context, msg Message) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx,
		`INSERT INTO rooms (room_id) VALUES ($1) ON CONFLICT (room_id) DO NOTHING`,
		msg.RoomID,
	); err != nil {
		return fmt.Errorf("store: ensure room %q: %w", msg.RoomID, err)
	}

	userID, err := ensureUser(ctx, tx, msg.Source, msg.UserID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO user_messages (user_id, room_id, source, channel_id, content)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, msg.RoomID, msg.Source, msg.ChannelID, msg.Content,
	); err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// ensureUser finds or creates the user row for a platform identity and
// returns its numeric id.
func ensureUser(ctx context.Context, tx pgx.Tx, source, platformID string) (int64, error) {
	column, err := identityColumn(source)
	if err != nil {
		return 0, err
	}

	var id int64
	q := fmt.Sprintf(
		`INSERT INTO users (%[1]s) VALUES ($1)
		 ON CONFLICT (%[1]s) DO UPDATE SET %[1]s = EXCLUDED.%[1]s
		 RETURNING id`, column)
	if err := tx.QueryRow(ctx, q, platformID).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: ensure user %s=%q: %w", column, platformID, err)
	}
	return id, nil
}

// identityColumn maps a task source to the users column holding that
// platform's identity.
func identityColumn(source string) (string, error) {
	switch source {
	case "discord":
		return "discord_id", nil
	case "twitch":
		return "twitch_id", nil
	case "system":
		return "system_id", nil
	default:
		return "", fmt.Errorf("store: no identity column for source %q", source)
	}
}

// MessagesForRoom implements [Store].
func (p *Postgres) MessagesForRoom(ctx context.Context, roomID string) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT content FROM user_messages WHERE room_id = $1 ORDER BY id`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: messages for room %q: %w", roomID, err)
	}
	contents, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("store: scan messages: %w", err)
	}
	return contents, nil
}

// EnsureRoom implements [Store].
func (p *Postgres) EnsureRoom(ctx context.Context, roomID string) (RoomInfo, error) {
	info := RoomInfo{RoomID: roomID}

	err := p.pool.QueryRow(ctx,
		`SELECT COALESCE(voice_channel_id, '') FROM rooms WHERE room_id = $1`,
		roomID,
	).Scan(&info.VoiceChannelID)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return RoomInfo{}, fmt.Errorf("store: ensure room %q: %w", roomID, err)
	}

	if _, err := p.pool.Exec(ctx,
		`INSERT INTO rooms (room_id) VALUES ($1) ON CONFLICT (room_id) DO NOTHING`,
		roomID,
	); err != nil {
		return RoomInfo{}, fmt.Errorf("store: create room %q: %w", roomID, err)
	}
	return info, nil
}

// SetVoiceChannel implements [Store].
func (p *Postgres) SetVoiceChannel(ctx context.Context, roomID, channelID string) error {
	if _, err := p.pool.Exec(ctx,
		`UPDATE rooms SET voice_channel_id = $2 WHERE room_id = $1`,
		roomID, channelID,
	); err != nil {
		return fmt.Errorf("store: set voice channel for %q: %w", roomID, err)
	}
	return nil
}
