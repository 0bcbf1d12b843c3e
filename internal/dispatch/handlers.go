package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/roboto/internal/command"
	"github.com/MrWong99/roboto/internal/observe"
	"github.com/MrWong99/roboto/internal/player"
	"github.com/MrWong99/roboto/internal/room"
	"github.com/MrWong99/roboto/internal/stats"
	"github.com/MrWong99/roboto/internal/store"
	"github.com/MrWong99/roboto/internal/text"
)

// generateFailed is the fixed reply when every generation attempt fails.
const generateFailed = "Failed to generate message"

// helpSeparator joins help entries into one chat line.
const helpSeparator = " :100: "

// handleTalk generates a sentence from the room's text model. Arguments seed
// the start of the sentence; without arguments the walk is fully random.
func (d *Dispatcher) handleTalk(ctx context.Context, task *command.Task, st *room.State) error {
	var sentence string
	var ok bool
	if len(task.Args) == 0 {
		sentence, ok = st.Model().Generate(text.DefaultMaxAttempts)
	} else {
		sentence, ok = st.Model().GenerateWithStart(strings.Join(task.Args, " "), text.DefaultMaxAttempts)
	}

	status := "ok"
	if !ok {
		status = "failed"
		sentence = generateFailed
	}
	d.metrics.Generations.Add(ctx, 1, metric.WithAttributes(observe.Attr("status", status)))

	return task.Reply(ctx, sentence)
}

// handleRecord gates the raw line through the normalizer, persists accepted
// sentences, and rebuilds the room model on the configured cadence. Rejected
// lines are dropped without a reply.
func (d *Dispatcher) handleRecord(ctx context.Context, task *command.Task, st *room.State) error {
	if len(task.Args) == 0 {
		return nil
	}

	sentence, ok := d.normalizer.Normalize(task.Args[0])
	if !ok {
		return nil
	}

	err := d.store.RecordMessage(ctx, store.Message{
		UserID:    task.UserID,
		Source:    string(task.Source),
		RoomID:    task.RoomID,
		ChannelID: task.ChannelID,
		Content:   sentence,
	})
	if err != nil {
		return fmt.Errorf("dispatch: record message: %w", err)
	}
	d.metrics.MessagesRecorded.Add(ctx, 1,
		metric.WithAttributes(observe.Attr("source", string(task.Source))))

	if st.RecordAccepted()%d.rebuildEvery == 0 {
		return d.rebuildModel(ctx, st)
	}
	return nil
}

// rebuildModel replaces the room's text model chain with one built from the
// room's full persisted history.
func (d *Dispatcher) rebuildModel(ctx context.Context, st *room.State) error {
	corpus, err := d.store.MessagesForRoom(ctx, st.RoomID())
	if err != nil {
		return fmt.Errorf("dispatch: load corpus for %q: %w", st.RoomID(), err)
	}
	st.Model().Rebuild(corpus)
	d.metrics.ModelRebuilds.Add(ctx, 1,
		metric.WithAttributes(observe.Attr("room", st.RoomID())))
	slog.Info("dispatch: model rebuilt", "room", st.RoomID(), "corpus", len(corpus))
	return nil
}

// handleRank looks up player stats. Without arguments the configured default
// identity is used.
func (d *Dispatcher) handleRank(ctx context.Context, task *command.Task, _ *room.State) error {
	identity := d.statsIdentity
	if len(task.Args) > 0 {
		identity = task.Args[0]
	}
	// Battle tags arrive as "name#1234"; the API path wants "name-1234".
	identity = strings.ReplaceAll(identity, "#", "-")
	if d.stats == nil || identity == "" {
		return task.Reply(ctx, "Stats lookup is not configured")
	}

	s, err := d.stats.GetStats(ctx, identity)
	if err != nil {
		if rerr := task.Reply(ctx, "Error retrieving stats for "+identity); rerr != nil {
			slog.Error("dispatch: reply failed", "task", task.String(), "err", rerr)
		}
		return fmt.Errorf("dispatch: rank lookup %q: %w", identity, err)
	}
	if s == nil {
		return task.Reply(ctx, "Error retrieving stats for "+identity)
	}
	return task.Reply(ctx, stats.FormatLine(identity, s))
}

// handlePlay starts playback of the library song with the given id.
func (d *Dispatcher) handlePlay(ctx context.Context, task *command.Task, st *room.State) error {
	id, err := strconv.Atoi(task.Args[0])
	if err != nil {
		return task.Reply(ctx, "Song id must be a number, see !playlist")
	}
	return d.playSong(ctx, task, st, id)
}

// playSong is the shared play path for the play and next commands.
func (d *Dispatcher) playSong(ctx context.Context, task *command.Task, st *room.State, id int) error {
	path, ok := d.library.FullPath(id)
	if !ok {
		return task.Reply(ctx, "No song with id "+strconv.Itoa(id)+", see !playlist")
	}
	ctrl := st.Controller()
	if ctrl == nil {
		return task.Reply(ctx, "Not connected to a voice channel, use !join_voice first")
	}

	song, _ := d.library.Song(id)
	if err := ctrl.PlayFile(ctx, path, song.Name()); err != nil {
		if rerr := task.Reply(ctx, "Could not play "+song.Name()); rerr != nil {
			slog.Error("dispatch: reply failed", "task", task.String(), "err", rerr)
		}
		return fmt.Errorf("dispatch: play %q: %w", path, err)
	}
	st.SetSongCursor(id)
	st.SetContinuous(true)
	return nil
}

// handleNext advances the song cursor, wrapping at the end of the library.
// System-sourced next tasks come from the playback auto-advance; they only
// apply while continuous playback is on, so a stop between the song ending
// and the task running wins.
func (d *Dispatcher) handleNext(ctx context.Context, task *command.Task, st *room.State) error {
	if task.Source == command.SourceSystem && !st.Continuous() {
		return nil
	}
	if d.library.Len() == 0 {
		return task.Reply(ctx, "The music library is empty")
	}
	next := 0
	if id, ok := st.SongCursor(); ok {
		next = (id + 1) % d.library.Len()
	}
	return d.playSong(ctx, task, st, next)
}

// handleStop halts playback and clears the song cursor.
func (d *Dispatcher) handleStop(_ context.Context, _ *command.Task, st *room.State) error {
	st.SetContinuous(false)
	st.ClearSongCursor()
	if ctrl := st.Controller(); ctrl != nil {
		if err := ctrl.Stop(); err != nil {
			return fmt.Errorf("dispatch: stop playback: %w", err)
		}
	}
	return nil
}

// handleVol sets the playback volume from a 0-100 scale.
func (d *Dispatcher) handleVol(ctx context.Context, task *command.Task, st *room.State) error {
	v, err := strconv.Atoi(task.Args[0])
	if err != nil || v < 0 || v > 100 {
		return task.Reply(ctx, "Volume must be a number between 0 and 100")
	}
	ctrl := st.Controller()
	if ctrl == nil {
		return task.Reply(ctx, "Not connected to a voice channel, use !join_voice first")
	}
	ctrl.SetVolume(float64(v) / 100.0)
	return nil
}

// handlePlaylist lists the library as "id: name" lines.
func (d *Dispatcher) handlePlaylist(ctx context.Context, task *command.Task, _ *room.State) error {
	if d.library.Len() == 0 {
		return task.Reply(ctx, "The music library is empty")
	}
	lines := make([]string, 0, d.library.Len())
	for _, s := range d.library.Songs() {
		lines = append(lines, strconv.Itoa(s.ID)+": "+s.Name())
	}
	return task.Reply(ctx, strings.Join(lines, "\n"))
}

// handleNowPlaying reports the current playback title.
func (d *Dispatcher) handleNowPlaying(ctx context.Context, task *command.Task, st *room.State) error {
	ctrl := st.Controller()
	if ctrl == nil {
		return task.Reply(ctx, "Nothing is playing")
	}
	title, playing := ctrl.Playing()
	if !playing {
		return task.Reply(ctx, "Nothing is playing")
	}
	return task.Reply(ctx, "Now playing: "+title)
}

// handleYT streams remote media from a URL. Streaming suspends playlist
// playback; the cursor is cleared so next restarts from the top.
func (d *Dispatcher) handleYT(ctx context.Context, task *command.Task, st *room.State) error {
	ctrl := st.Controller()
	if ctrl == nil {
		return task.Reply(ctx, "Not connected to a voice channel, use !join_voice first")
	}
	target := task.Args[0]
	if !validStreamURL(target) {
		return task.Reply(ctx, "Invalid URL")
	}
	title, err := ctrl.PlayURL(ctx, target)
	if err != nil {
		if rerr := task.Reply(ctx, "Could not play "+target); rerr != nil {
			slog.Error("dispatch: reply failed", "task", task.String(), "err", rerr)
		}
		return fmt.Errorf("dispatch: play url %q: %w", target, err)
	}
	st.ClearSongCursor()
	st.SetContinuous(false)
	return task.Reply(ctx, "Now playing: "+title)
}

// validStreamURL filters obvious junk before a URL is handed to the external
// stream resolver.
func validStreamURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// handleJoinVoice connects the room to a voice channel, binds the resulting
// controller to the room state, and persists the binding so the next bootstrap
// reconnects automatically.
func (d *Dispatcher) handleJoinVoice(ctx context.Context, task *command.Task, st *room.State) error {
	if d.voice == nil {
		return task.Reply(ctx, "Voice is not available")
	}
	channelID := task.Args[0]

	ctrl, err := d.voice.JoinVoice(ctx, task.RoomID, channelID)
	if err != nil {
		if rerr := task.Reply(ctx, "Could not join voice channel "+channelID); rerr != nil {
			slog.Error("dispatch: reply failed", "task", task.String(), "err", rerr)
		}
		return fmt.Errorf("dispatch: join voice %q: %w", channelID, err)
	}
	d.bindController(st, ctrl)

	if err := d.store.SetVoiceChannel(ctx, task.RoomID, channelID); err != nil {
		return fmt.Errorf("dispatch: persist voice channel: %w", err)
	}
	return nil
}

// bindController swaps the room's playback controller, closing the old one.
func (d *Dispatcher) bindController(st *room.State, ctrl player.Controller) {
	if old := st.Controller(); old != nil {
		if err := old.Close(); err != nil {
			slog.Warn("dispatch: closing previous controller", "room", st.RoomID(), "err", err)
		}
	}
	st.SetController(ctrl)
}

// handleServerConnect is the system bootstrap task scheduled once per room by
// the registry. It ensures the persisted room record, builds the room's text
// model from its recorded history, and rejoins a previously bound voice
// channel. A voice failure is logged but does not fail the bootstrap.
func (d *Dispatcher) handleServerConnect(ctx context.Context, task *command.Task, st *room.State) error {
	info, err := d.store.EnsureRoom(ctx, task.RoomID)
	if err != nil {
		return fmt.Errorf("dispatch: bootstrap %q: %w", task.RoomID, err)
	}

	if err := d.rebuildModel(ctx, st); err != nil {
		return err
	}

	if info.VoiceChannelID != "" && d.voice != nil {
		ctrl, err := d.voice.JoinVoice(ctx, task.RoomID, info.VoiceChannelID)
		if err != nil {
			slog.Warn("dispatch: bootstrap voice join failed",
				"room", task.RoomID, "channel", info.VoiceChannelID, "err", err)
		} else {
			d.bindController(st, ctrl)
		}
	}

	slog.Info("dispatch: room bootstrapped", "room", task.RoomID)
	return nil
}

// handleHelp replies with the help text, narrowed to a single command when
// one is named as the first argument.
func (d *Dispatcher) handleHelp(ctx context.Context, task *command.Task, _ *room.State) error {
	filter := ""
	if len(task.Args) > 0 {
		filter = task.Args[0]
	}
	return task.Reply(ctx, d.helpText(filter))
}

// helpText renders one "!name: help" entry per user-facing command, joined
// with the help separator. A non-empty filter narrows the listing to the
// named command; a single entry stands bare. A filter matching nothing falls
// back to the full listing.
func (d *Dispatcher) helpText(filter string) string {
	filter = strings.ToLower(strings.TrimPrefix(filter, d.prefix))
	var entries []string
	for _, cmd := range command.All() {
		entry, ok := d.handlers[cmd]
		if !ok || entry.help == "" {
			continue
		}
		if filter != "" && string(cmd) != filter {
			continue
		}
		entries = append(entries, d.prefix+string(cmd)+": "+entry.help)
	}
	if len(entries) == 0 && filter != "" {
		return d.helpText("")
	}
	return strings.Join(entries, helpSeparator)
}
