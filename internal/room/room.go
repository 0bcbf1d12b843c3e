// Package room holds per-room state and the registry that lazily creates it.
//
// A [State] exists at most once per room id and lives for the process
// lifetime. Its fields are mutated only from within dispatcher-executed
// tasks; because the dispatcher runs a single consumer, State needs no
// internal locking. The [Registry] map itself is guarded so read-only
// surfaces (web UI, health checks) can inspect it from other goroutines.
package room

import (
	"github.com/MrWong99/roboto/internal/command"
	"github.com/MrWong99/roboto/internal/player"
	"github.com/MrWong99/roboto/internal/text"
)

// noSong marks an unset playback cursor.
const noSong = -1

// State is the per-room state: the room's text model, its playback handle,
// the song cursor, and bootstrap readiness.
//
// All mutating methods must only be called from dispatcher-executed tasks.
type State struct {
	roomID string
	model  *text.Model

	controller player.Controller
	songID     int
	continuous bool
	ready      bool
	recorded   int
}

// NewState creates the state for roomID with a fresh empty text model.
func NewState(roomID string, model *text.Model) *State {
	return &State{
		roomID: roomID,
		model:  model,
		songID: noSong,
	}
}

// RoomID returns the room identifier.
func (s *State) RoomID() string { return s.roomID }

// Model returns the room's text model.
func (s *State) Model() *text.Model { return s.model }

// Ready reports whether the room's bootstrap task has been scheduled.
// Note: scheduled, not completed — connection-dependent fields may still be
// unset until the server_connect task has actually run.
func (s *State) Ready() bool { return s.ready }

// MarkReady records that the bootstrap task has been scheduled.
func (s *State) MarkReady() { s.ready = true }

// Controller returns the room's playback handle, or nil before a voice
// connection is bound.
func (s *State) Controller() player.Controller { return s.controller }

// SetController binds the room's playback handle.
func (s *State) SetController(c player.Controller) { s.controller = c }

// SongCursor returns the current song id and whether one is set.
func (s *State) SongCursor() (int, bool) {
	if s.songID == noSong {
		return 0, false
	}
	return s.songID, true
}

// SetSongCursor records the currently playing song id.
func (s *State) SetSongCursor(id int) { s.songID = id }

// ClearSongCursor unsets the playback cursor.
func (s *State) ClearSongCursor() { s.songID = noSong }

// Continuous reports whether playback should advance to the next song when
// the current one ends.
func (s *State) Continuous() bool { return s.continuous }

// SetContinuous toggles continuous playback.
func (s *State) SetContinuous(v bool) { s.continuous = v }

// RecordAccepted increments and returns the count of accepted training
// messages for this room. The dispatcher uses the count to decide when to
// rebuild the room's model.
func (s *State) RecordAccepted() int {
	s.recorded++
	return s.recorded
}

// Enqueuer schedules a task on the shared dispatcher queue, reporting whether
// the task was accepted. Implemented by the dispatcher; declared here so the
// registry does not depend on it concretely.
type Enqueuer interface {
	Enqueue(task *command.Task) bool
}
