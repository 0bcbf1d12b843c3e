// Package discord adapts Discord chat to the shared task queue. It owns the
// discordgo.Session lifecycle, classifies every guild message into a task,
// and provides the voice-join capability used by the playback commands.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/roboto/internal/command"
	"github.com/MrWong99/roboto/internal/player"
	"github.com/MrWong99/roboto/internal/player/discordplayer"
	"github.com/MrWong99/roboto/internal/room"
)

// Config holds the Discord adapter configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string
}

// Bot owns the Discord gateway connection. Every guild message is classified
// and enqueued; replies go back through the session as plain channel messages.
type Bot struct {
	session    *discordgo.Session
	classifier *command.Classifier
	enqueuer   room.Enqueuer
	closeOnce  sync.Once
}

var _ command.Sender = (*Bot)(nil)

// New creates a Bot, connects to the Discord gateway, and registers the
// message handler.
func New(cfg Config, classifier *command.Classifier, enqueuer room.Enqueuer) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuilds |
		discordgo.IntentsMessageContent

	b := &Bot{
		session:    session,
		classifier: classifier,
		enqueuer:   enqueuer,
	}
	session.AddHandler(b.onMessageCreate)

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	slog.Info("discord: gateway connected", "user", session.State.User.Username)
	return b, nil
}

// onMessageCreate is the discordgo message handler. Own and bot-authored
// messages are ignored so the bot never trains on itself.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if m.GuildID == "" {
		// DMs are not rooms; nothing to classify against.
		return
	}
	b.handleMessage(m.GuildID, m.ChannelID, m.Author.ID, m.Content)
}

// handleMessage classifies one chat line and enqueues the resulting task.
func (b *Bot) handleMessage(guildID, channelID, userID, content string) {
	task := b.classifier.Classify(content)
	if task == nil {
		return
	}
	task.Attach(command.SourceDiscord, guildID, channelID, userID, b)
	b.enqueuer.Enqueue(task)
}

// Send implements [command.Sender].
func (b *Bot) Send(_ context.Context, _, channelID, text string) error {
	if _, err := b.session.ChannelMessageSend(channelID, text); err != nil {
		return fmt.Errorf("discord: send to %q: %w", channelID, err)
	}
	return nil
}

// JoinVoice implements the dispatcher's voice capability. It joins the voice
// channel and wraps the connection in a playback controller whose natural
// song endings enqueue a system next task for continuous playback.
func (b *Bot) JoinVoice(_ context.Context, roomID, channelID string) (player.Controller, error) {
	vc, err := b.session.ChannelVoiceJoin(roomID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}
	return discordplayer.New(vc, discordplayer.WithOnFinish(func() {
		b.enqueuer.Enqueue(command.NewSystemTask(command.CmdNext, roomID))
	})), nil
}

// Ping reports gateway health. Used by the readiness endpoint.
func (b *Bot) Ping(_ context.Context) error {
	if b.session.State == nil || b.session.State.User == nil {
		return fmt.Errorf("discord: gateway session not established")
	}
	return nil
}

// Close disconnects from the gateway. Safe to call more than once.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
		slog.Info("discord: gateway closed")
	})
	return closeErr
}
