// Package twitch adapts Twitch chat to the shared task queue. Twitch chat is
// IRC carried over a WebSocket; the adapter speaks just enough of the
// protocol to authenticate, join channels, answer server pings, and exchange
// PRIVMSGs.
//
// Each joined channel is its own room: tasks from channel "somechan" carry
// room id "twitch:somechan", so Twitch rooms never collide with Discord guild
// ids in the registry or the store.
package twitch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/roboto/internal/command"
	"github.com/MrWong99/roboto/internal/room"
)

// defaultEndpoint is Twitch's public IRC-over-WebSocket gateway.
const defaultEndpoint = "wss://irc-ws.chat.twitch.tv:443"

// reconnectDelay is the pause between reconnect attempts after a dropped
// connection.
const reconnectDelay = 5 * time.Second

// roomPrefix namespaces Twitch channel names into room ids.
const roomPrefix = "twitch:"

// Config holds the Twitch adapter configuration.
type Config struct {
	// Nick is the bot's Twitch username.
	Nick string

	// Token is the IRC OAuth token, including the "oauth:" prefix.
	Token string

	// Channels lists the channels to join, without the "#" prefix.
	Channels []string

	// Endpoint overrides the IRC gateway URL. Used by tests.
	Endpoint string
}

// Bot maintains the IRC connection and classifies incoming chat into tasks.
type Bot struct {
	cfg        Config
	classifier *command.Classifier
	enqueuer   room.Enqueuer

	mu   sync.Mutex
	conn *websocket.Conn
}

var _ command.Sender = (*Bot)(nil)

// New creates a Bot. No connection is made until [Bot.Run].
func New(cfg Config, classifier *command.Classifier, enqueuer room.Enqueuer) *Bot {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return &Bot{
		cfg:        cfg,
		classifier: classifier,
		enqueuer:   enqueuer,
	}
}

// RoomID returns the room id for a Twitch channel name.
func RoomID(channel string) string {
	return roomPrefix + channel
}

// Run connects to the IRC gateway and serves until ctx is cancelled,
// reconnecting after dropped connections.
func (b *Bot) Run(ctx context.Context) error {
	for {
		err := b.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("twitch: connection lost, reconnecting", "err", err)
		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

// runOnce dials, authenticates, joins the configured channels, and reads
// until the connection drops.
func (b *Bot) runOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, b.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("twitch: dial %q: %w", b.cfg.Endpoint, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down") //nolint:errcheck

	for _, line := range b.loginLines() {
		if err := write(ctx, conn, line); err != nil {
			return err
		}
	}

	b.setConn(conn)
	defer b.setConn(nil)
	slog.Info("twitch: connected", "nick", b.cfg.Nick, "channels", b.cfg.Channels)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("twitch: read: %w", err)
		}
		// One WebSocket message can carry several IRC lines.
		for _, line := range strings.Split(string(data), "\r\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if reply := b.handleLine(line); reply != "" {
				if err := write(ctx, conn, reply); err != nil {
					return err
				}
			}
		}
	}
}

// loginLines is the IRC authentication and join sequence.
func (b *Bot) loginLines() []string {
	lines := []string{
		"PASS " + b.cfg.Token,
		"NICK " + b.cfg.Nick,
	}
	for _, ch := range b.cfg.Channels {
		lines = append(lines, "JOIN #"+ch)
	}
	return lines
}

// handleLine processes one IRC line and returns the protocol reply to send,
// if any. Chat lines are classified and enqueued as a side effect.
func (b *Bot) handleLine(line string) string {
	msg, ok := parseLine(line)
	if !ok {
		return ""
	}

	switch msg.command {
	case "PING":
		return "PONG :" + msg.text

	case "PRIVMSG":
		if strings.EqualFold(msg.nick, b.cfg.Nick) {
			return ""
		}
		task := b.classifier.Classify(msg.text)
		if task == nil {
			return ""
		}
		task.Attach(command.SourceTwitch, RoomID(msg.channel), msg.channel, msg.nick, b)
		b.enqueuer.Enqueue(task)
	}
	return ""
}

// Send implements [command.Sender]. channelID is the bare channel name.
func (b *Bot) Send(ctx context.Context, _, channelID, text string) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("twitch: not connected")
	}
	return write(ctx, conn, "PRIVMSG #"+channelID+" :"+text)
}

// Ping reports connection health. Used by the readiness endpoint.
func (b *Bot) Ping(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return fmt.Errorf("twitch: not connected")
	}
	return nil
}

func (b *Bot) setConn(conn *websocket.Conn) {
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
}

// write sends one IRC line as a text frame.
func write(ctx context.Context, conn *websocket.Conn, line string) error {
	if err := conn.Write(ctx, websocket.MessageText, []byte(line+"\r\n")); err != nil {
		return fmt.Errorf("twitch: write: %w", err)
	}
	return nil
}
