// Package storemock provides an in-memory [store.Store] test double.
package storemock

import (
	"context"
	"sync"

	"github.com/MrWong99/roboto/internal/store"
)

// Store is an in-memory store.Store. Configure failure injection via the
// *Err fields; inspect recorded state via the accessor methods. Safe for
// concurrent use.
type Store struct {
	mu sync.Mutex

	// RecordErr, when non-nil, is returned by every RecordMessage call.
	RecordErr error

	// MessagesErr, when non-nil, is returned by every MessagesForRoom call.
	MessagesErr error

	// Rooms maps room id to its RoomInfo. EnsureRoom reads and populates it.
	Rooms map[string]store.RoomInfo

	messages []store.Message
}

var _ store.Store = (*Store)(nil)

// New creates an empty mock store.
func New() *Store {
	return &Store{Rooms: make(map[string]store.RoomInfo)}
}

// RecordMessage implements store.Store.
func (s *Store) RecordMessage(_ context.Context, msg store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RecordErr != nil {
		return s.RecordErr
	}
	s.messages = append(s.messages, msg)
	return nil
}

// MessagesForRoom implements store.Store.
func (s *Store) MessagesForRoom(_ context.Context, roomID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MessagesErr != nil {
		return nil, s.MessagesErr
	}
	var contents []string
	for _, m := range s.messages {
		if m.RoomID == roomID {
			contents = append(contents, m.Content)
		}
	}
	return contents, nil
}

// EnsureRoom implements store.Store.
func (s *Store) EnsureRoom(_ context.Context, roomID string) (store.RoomInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.Rooms[roomID]; ok {
		return info, nil
	}
	info := store.RoomInfo{RoomID: roomID}
	s.Rooms[roomID] = info
	return info, nil
}

// SetVoiceChannel implements store.Store.
func (s *Store) SetVoiceChannel(_ context.Context, roomID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.Rooms[roomID]
	info.RoomID = roomID
	info.VoiceChannelID = channelID
	s.Rooms[roomID] = info
	return nil
}

// Messages returns a copy of all recorded messages.
func (s *Store) Messages() []store.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Seed pre-populates the message log for a room.
func (s *Store) Seed(roomID string, contents ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range contents {
		s.messages = append(s.messages, store.Message{RoomID: roomID, Content: c, Source: "system", UserID: "seed"})
	}
}
