// Package command defines the typed command taxonomy, the Task unit of work,
// and the classifier that turns raw chat lines into Tasks.
//
// A Task is created for every inbound chat line, carries its routing context
// (room, channel, user, source) plus the sender capability of the originating
// platform, and is consumed exactly once by the dispatcher.
package command

import (
	"context"
	"fmt"
	"strings"
)

// Command identifies one dispatchable task type. The set is closed: lines
// that match no known name classify as [CmdRecord].
type Command string

const (
	CmdPlay          Command = "play"
	CmdNext          Command = "next"
	CmdStop          Command = "stop"
	CmdVol           Command = "vol"
	CmdPlaylist      Command = "playlist"
	CmdJoinVoice     Command = "join_voice"
	CmdNowPlaying    Command = "now_playing"
	CmdTalk          Command = "talk"
	CmdRecord        Command = "record"
	CmdRank          Command = "rank"
	CmdYT            Command = "yt"
	CmdServerConnect Command = "server_connect"
	CmdHelp          Command = "help"

	// CmdUnknown is a defensive terminal state. The classifier never produces
	// it; a task carrying it is logged and dropped by the dispatcher.
	CmdUnknown Command = "unknown"
)

// All returns every dispatchable command in a stable order.
func All() []Command {
	return []Command{
		CmdPlay, CmdNext, CmdStop, CmdVol, CmdPlaylist, CmdJoinVoice,
		CmdNowPlaying, CmdTalk, CmdRecord, CmdRank, CmdYT,
		CmdServerConnect, CmdHelp,
	}
}

// aliases maps alternate command names to their canonical command.
var aliases = map[string]Command{
	"np": CmdNowPlaying,
	"pl": CmdPlaylist,
}

// Lookup resolves a lower-cased command name (canonical or alias) to its
// Command. It returns false when the name is not part of the closed set.
func Lookup(name string) (Command, bool) {
	for _, c := range All() {
		if string(c) == name {
			return c, true
		}
	}
	if c, ok := aliases[name]; ok {
		return c, true
	}
	return "", false
}

// Source identifies where a task originated.
type Source string

const (
	SourceSystem  Source = "system"
	SourceDiscord Source = "discord"
	SourceTwitch  Source = "twitch"
)

// Sender delivers a reply back to the platform a task came from.
// Implementations must be safe for concurrent use.
type Sender interface {
	// Send posts text to the given channel in the given room.
	Send(ctx context.Context, roomID, channelID, text string) error
}

// Task is one classified unit of work derived from an inbound chat line.
// Fields are set once via the attach methods before enqueue and must not be
// mutated afterwards.
type Task struct {
	Command Command
	Args    []string

	Source    Source
	RoomID    string
	ChannelID string
	UserID    string

	// Sender is the reply capability of the originating platform. Nil for
	// system tasks, which never reply.
	Sender Sender
}

// NewTask creates a task for a classified command with its arguments.
func NewTask(cmd Command, args []string) *Task {
	return &Task{Command: cmd, Args: args}
}

// NewSystemTask creates an internally generated task targeting roomID.
// System tasks carry fixed channel and user identities so they satisfy the
// dispatchability invariant without a real originator.
func NewSystemTask(cmd Command, roomID string) *Task {
	return &Task{
		Command:   cmd,
		Source:    SourceSystem,
		RoomID:    roomID,
		ChannelID: "system",
		UserID:    "system",
	}
}

// Attach sets the routing context for a platform-originated task.
func (t *Task) Attach(source Source, roomID, channelID, userID string, sender Sender) {
	t.Source = source
	t.RoomID = roomID
	t.ChannelID = channelID
	t.UserID = userID
	t.Sender = sender
}

// Valid reports whether the task carries everything needed for dispatch.
func (t *Task) Valid() bool {
	return t.Command != "" &&
		t.Source != "" &&
		t.RoomID != "" &&
		t.ChannelID != "" &&
		t.UserID != ""
}

// Reply sends text back to the task's originating channel. It is a no-op for
// tasks without a sender (system tasks) or empty text.
func (t *Task) Reply(ctx context.Context, text string) error {
	if t.Sender == nil || text == "" {
		return nil
	}
	if err := t.Sender.Send(ctx, t.RoomID, t.ChannelID, text); err != nil {
		return fmt.Errorf("command: reply to %s/%s: %w", t.RoomID, t.ChannelID, err)
	}
	return nil
}

// String renders the task for log output.
func (t *Task) String() string {
	return fmt.Sprintf("room=%s cmd=%s source=%s args=%s",
		t.RoomID, t.Command, t.Source, strings.Join(t.Args, " "))
}
