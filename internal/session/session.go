// Package session provides in-memory conversation state storage for the chatbot.
//
// Conversations are volatile and live only for the duration of the process.
// Access is serialized per conversation so a user's messages are handled one
// at a time, while different users advance concurrently.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

// Opts holds configuration options for the session store.
type Opts struct {
	Clock func() time.Time
}

// Option defines a configuration option for the session store.
type Option func(*Opts)

// WithClock overrides the time source, used by tests to control LastActivity.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

type entry struct {
	mu   sync.Mutex
	conv models.Conversation
}

// Store holds all live conversations keyed by canonical phone number.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	clock   func() time.Time
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Store{
		entries: make(map[string]*entry),
		clock:   cfg.Clock,
	}
}

// lookup returns the entry for id, creating it on first access.
func (s *Store) lookup(id string) *entry {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e
	}
	now := s.clock()
	e = &entry{conv: models.Conversation{
		ID:           id,
		State:        models.StateInit,
		CreatedAt:    now,
		LastActivity: now,
	}}
	s.entries[id] = e
	slog.Debug("SessionStore created conversation", "id", id)
	return e
}

// Mutate runs fn with exclusive access to the conversation for id, creating
// the conversation on first access. LastActivity is bumped after fn returns.
// The returned value is a copy taken while the lock was still held.
func (s *Store) Mutate(id string, fn func(conv *models.Conversation)) models.Conversation {
	e := s.lookup(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.conv)
	e.conv.LastActivity = s.clock()
	return e.conv
}

// Touch bumps LastActivity without otherwise modifying the conversation.
func (s *Store) Touch(id string) {
	s.Mutate(id, func(*models.Conversation) {})
}

// Peek returns a copy of the conversation for id without creating one.
func (s *Store) Peek(id string) (models.Conversation, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return models.Conversation{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv, true
}

// Delete removes the conversation for id. Deleting a missing id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		delete(s.entries, id)
		slog.Debug("SessionStore deleted conversation", "id", id)
	}
}

// DeleteIf removes the conversation for id when pred still holds under the
// conversation's lock. The sweeper uses it so a close decided on a stale
// snapshot never races a message that just revived the conversation.
func (s *Store) DeleteIf(id string, pred func(conv *models.Conversation) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !pred(&e.conv) {
		return false
	}
	delete(s.entries, id)
	slog.Debug("SessionStore deleted conversation", "id", id, "cause", "sweep")
	return true
}

// Snapshot returns copies of all live conversations. No locks are held once
// it returns, so callers act on a point-in-time view.
func (s *Store) Snapshot() []models.Conversation {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	convs := make([]models.Conversation, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		convs = append(convs, e.conv)
		e.mu.Unlock()
	}
	return convs
}

// Len returns the number of live conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
