package room

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/MrWong99/roboto/internal/command"
	"github.com/MrWong99/roboto/internal/text"
)

// Registry lazily creates and caches one [State] per room id. Room state is
// never evicted; rooms live for the process lifetime.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*State
	enqueuer Enqueuer
	newModel func() *text.Model
}

// RegistryOption customises a [Registry].
type RegistryOption func(*Registry)

// WithModelFactory overrides how per-room text models are constructed.
// Used by tests to inject deterministic models.
func WithModelFactory(f func() *text.Model) RegistryOption {
	return func(r *Registry) { r.newModel = f }
}

// NewRegistry creates an empty registry. enqueuer receives the one-time
// server_connect bootstrap task scheduled for each newly created room.
func NewRegistry(enqueuer Enqueuer, opts ...RegistryOption) *Registry {
	r := &Registry{
		rooms:    make(map[string]*State),
		enqueuer: enqueuer,
		newModel: func() *text.Model { return text.NewModel() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Room returns the state for roomID, creating it on first reference.
//
// Creation schedules a system-sourced server_connect task and marks the room
// ready before that task executes: readiness means "bootstrap scheduled",
// not "bootstrap completed". Callers must tolerate unset connection-dependent
// fields until the dispatcher has run the bootstrap task. If a full queue
// rejects the bootstrap task, the room stays unready and the next reference
// retries the enqueue.
func (r *Registry) Room(roomID string) *State {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rooms[roomID]
	if !ok {
		s = NewState(roomID, r.newModel())
		r.rooms[roomID] = s
	}
	if !s.Ready() {
		r.scheduleBootstrap(s)
	}
	return s
}

// scheduleBootstrap enqueues the one-time server_connect task for s, marking
// the room ready only when the queue accepted it. Caller holds r.mu.
func (r *Registry) scheduleBootstrap(s *State) {
	slog.Info("room: scheduling bootstrap", "room", s.RoomID())
	if r.enqueuer.Enqueue(command.NewSystemTask(command.CmdServerConnect, s.RoomID())) {
		s.MarkReady()
		return
	}
	slog.Warn("room: bootstrap task rejected, retrying on next reference", "room", s.RoomID())
}

// Len returns the number of rooms created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// RoomIDs returns the ids of all created rooms in sorted order. Used by
// read-only surfaces like the web UI.
func (r *Registry) RoomIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
