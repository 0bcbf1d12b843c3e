// Package dispatch implements the single-consumer task queue at the heart of
// the bot. Every classified chat line from any platform lands on one shared
// FIFO queue; one consumer goroutine executes tasks strictly in arrival order.
//
// Serial execution is the concurrency model: because only the dispatcher
// mutates per-room state, room.State needs no locking. A handler failure or
// panic is contained to its task; the queue keeps draining.
package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/roboto/internal/command"
	"github.com/MrWong99/roboto/internal/observe"
	"github.com/MrWong99/roboto/internal/player"
	"github.com/MrWong99/roboto/internal/room"
	"github.com/MrWong99/roboto/internal/stats"
	"github.com/MrWong99/roboto/internal/store"
	"github.com/MrWong99/roboto/internal/text"
)

const (
	// defaultQueueSize bounds the task backlog. Enqueue drops (with a log)
	// when the queue is full rather than blocking platform callbacks.
	defaultQueueSize = 256

	// defaultRebuildEvery is how many accepted training messages trigger a
	// room model rebuild.
	defaultRebuildEvery = 5
)

// RoomProvider yields per-room state, creating it on first reference.
// Implemented by [room.Registry].
type RoomProvider interface {
	Room(roomID string) *room.State
}

// VoicePlatform joins voice channels and hands back a playback controller.
// Implemented by the Discord adapter; nil when no voice-capable platform is
// configured.
type VoicePlatform interface {
	JoinVoice(ctx context.Context, roomID, channelID string) (player.Controller, error)
}

// StatsAPI is the player-stats lookup contract. Implemented by [stats.Client].
type StatsAPI interface {
	GetStats(ctx context.Context, identity string) (*stats.PlayerStats, error)
}

// Config carries the dispatcher's collaborators. Store is required; the rest
// default to working zero-configurations.
type Config struct {
	// Prefix is the command prefix used in help output. Default "!".
	Prefix string

	// Store persists training messages and room records.
	Store store.Store

	// Stats looks up player stats for the rank command. Nil disables rank.
	Stats StatsAPI

	// StatsIdentity is the identity rank looks up when called without args.
	StatsIdentity string

	// Voice joins voice channels. Nil disables join_voice and voice bootstrap.
	Voice VoicePlatform

	// Library is the scanned media library. Nil means an empty library.
	Library *player.Library

	// Normalizer gates training text. Nil selects the default for Prefix.
	Normalizer *text.Normalizer

	// Metrics receives dispatcher instrumentation. Nil selects
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// RebuildEvery overrides the model rebuild cadence. Values below 1 use
	// the default of 5.
	RebuildEvery int

	// QueueSize overrides the queue capacity. Values below 1 use the default.
	QueueSize int
}

// handlerFunc executes one task against its room state.
type handlerFunc func(ctx context.Context, task *command.Task, st *room.State) error

// handlerEntry is one row of the static dispatch table.
type handlerEntry struct {
	fn   handlerFunc
	help string

	// numArgs is the exact argument count the handler expects, or -1 for any.
	numArgs int
}

// Dispatcher owns the shared task queue and the handler table. Construct with
// [New], bind the room provider with [Dispatcher.BindRooms], then start
// exactly one [Dispatcher.Run].
type Dispatcher struct {
	queue chan *command.Task

	prefix        string
	rooms         RoomProvider
	store         store.Store
	stats         StatsAPI
	statsIdentity string
	voice         VoicePlatform
	library       *player.Library
	normalizer    *text.Normalizer
	metrics       *observe.Metrics
	rebuildEvery  int

	handlers map[command.Command]handlerEntry
}

// New creates a dispatcher from cfg. The room provider is bound separately
// because the registry needs the dispatcher as its enqueuer first.
func New(cfg Config) *Dispatcher {
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.RebuildEvery < 1 {
		cfg.RebuildEvery = defaultRebuildEvery
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = text.NewNormalizer(cfg.Prefix, 0)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Library == nil {
		cfg.Library, _ = player.ScanLibrary("")
	}

	d := &Dispatcher{
		queue:         make(chan *command.Task, cfg.QueueSize),
		prefix:        cfg.Prefix,
		store:         cfg.Store,
		stats:         cfg.Stats,
		statsIdentity: cfg.StatsIdentity,
		voice:         cfg.Voice,
		library:       cfg.Library,
		normalizer:    cfg.Normalizer,
		metrics:       cfg.Metrics,
		rebuildEvery:  cfg.RebuildEvery,
	}

	d.handlers = map[command.Command]handlerEntry{
		command.CmdPlay:          {d.handlePlay, "play the song with the given playlist id", 1},
		command.CmdNext:          {d.handleNext, "skip to the next song in the playlist", 0},
		command.CmdStop:          {d.handleStop, "stop playback", 0},
		command.CmdVol:           {d.handleVol, "set the playback volume (0-100)", 1},
		command.CmdPlaylist:      {d.handlePlaylist, "list all songs in the library", 0},
		command.CmdJoinVoice:     {d.handleJoinVoice, "join the voice channel with the given id", 1},
		command.CmdNowPlaying:    {d.handleNowPlaying, "show the currently playing song", 0},
		command.CmdTalk:          {d.handleTalk, "generate a message, optionally starting with the given words", -1},
		command.CmdRecord:        {d.handleRecord, "record a sentence for message generation", -1},
		command.CmdRank:          {d.handleRank, "look up player stats, optionally for the given battle tag", -1},
		command.CmdYT:            {d.handleYT, "stream audio from the given URL", 1},
		command.CmdServerConnect: {d.handleServerConnect, "", 0},
		command.CmdHelp:          {d.handleHelp, "show this help, optionally for a single command", -1},
	}
	return d
}

// BindRooms sets the room provider. Must be called before Run.
func (d *Dispatcher) BindRooms(rooms RoomProvider) {
	d.rooms = rooms
}

// BindVoice sets the voice platform. Must be called before Run; the platform
// is created after the dispatcher because it needs the dispatcher as its
// enqueuer.
func (d *Dispatcher) BindVoice(voice VoicePlatform) {
	d.voice = voice
}

// Enqueue implements [room.Enqueuer]. It adds task to the shared queue and
// reports whether the task was accepted; a full queue drops the task with a
// log rather than blocking the caller. Safe for concurrent use from any
// goroutine.
func (d *Dispatcher) Enqueue(task *command.Task) bool {
	if task == nil {
		return false
	}
	select {
	case d.queue <- task:
		d.metrics.TasksEnqueued.Add(context.Background(), 1,
			metric.WithAttributes(observe.Attr("source", string(task.Source))))
		d.metrics.QueueDepth.Add(context.Background(), 1)
		return true
	default:
		slog.Warn("dispatch: queue full, dropping task", "task", task.String())
		d.metrics.RecordTaskProcessed(context.Background(), string(task.Command), "dropped")
		return false
	}
}

// QueueLen returns the number of tasks currently waiting. Used by health
// checks and the web UI.
func (d *Dispatcher) QueueLen() int {
	return len(d.queue)
}

// Run consumes the queue until ctx is cancelled. It is the only goroutine
// that executes tasks; starting it more than once breaks the serial-execution
// guarantee.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Info("dispatch: consumer started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatch: consumer stopped", "pending", len(d.queue))
			return nil
		case task := <-d.queue:
			d.metrics.QueueDepth.Add(ctx, -1)
			d.process(ctx, task)
		}
	}
}

// process executes one task. Handler errors and panics are logged with the
// task context and never escape to the consumer loop.
func (d *Dispatcher) process(ctx context.Context, task *command.Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch: handler panicked",
				"task", task.String(), "panic", r, "stack", string(debug.Stack()))
			d.metrics.RecordTaskProcessed(ctx, string(task.Command), "error")
		}
	}()

	if !task.Valid() {
		slog.Warn("dispatch: dropping invalid task", "task", task.String())
		d.metrics.RecordTaskProcessed(ctx, string(task.Command), "invalid")
		return
	}

	entry, ok := d.handlers[task.Command]
	if !ok {
		slog.Warn("dispatch: no handler for command", "task", task.String())
		d.metrics.RecordTaskProcessed(ctx, string(task.Command), "dropped")
		return
	}

	if entry.numArgs >= 0 && len(task.Args) != entry.numArgs {
		msg := d.helpText(string(task.Command)) + " [ERR: !" + string(task.Command) + " takes " +
			argCount(entry.numArgs) + "]"
		if err := task.Reply(ctx, msg); err != nil {
			slog.Error("dispatch: reply failed", "task", task.String(), "err", err)
		}
		d.metrics.RecordTaskProcessed(ctx, string(task.Command), "invalid")
		return
	}

	start := time.Now()
	err := entry.fn(ctx, task, d.rooms.Room(task.RoomID))
	d.metrics.RecordHandlerDuration(ctx, string(task.Command), time.Since(start).Seconds())

	if err != nil {
		slog.Error("dispatch: handler failed", "task", task.String(), "err", err)
		d.metrics.RecordTaskProcessed(ctx, string(task.Command), "error")
		return
	}
	d.metrics.RecordTaskProcessed(ctx, string(task.Command), "ok")
}

// argCount renders an argument count for the mismatch error suffix.
func argCount(n int) string {
	if n == 1 {
		return "1 argument"
	}
	return strconv.Itoa(n) + " arguments"
}
