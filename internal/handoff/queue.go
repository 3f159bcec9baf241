// Package handoff coordinates the queue of conversations waiting for the
// single human agent.
//
// The queue is strictly FIFO. The active conversation is always the head of
// the waiting list, so closing or advancing the active conversation promotes
// the next one automatically.
package handoff

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Entry is one conversation waiting for (or attended by) the agent.
type Entry struct {
	ID         string `json:"id"`
	SenderName string `json:"sender_name,omitempty"`
	// Context is the user message that triggered the handoff.
	Context    string    `json:"context_message,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Opts holds configuration options for the queue.
type Opts struct {
	Clock func() time.Time
}

// Option defines a configuration option for the queue.
type Option func(*Opts)

// WithClock overrides the time source, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

// Queue is the FIFO handoff queue. The head entry is the active one.
type Queue struct {
	mu      sync.Mutex
	waiting []Entry
	clock   func() time.Time
}

// NewQueue creates an empty handoff queue.
func NewQueue(opts ...Option) *Queue {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Queue{clock: cfg.Clock}
}

// Enqueue appends a conversation to the queue and returns its 1-based
// position. context is the message that triggered the handoff, kept so the
// agent sees what the user needs. Enqueueing an id already present is a
// no-op that returns the existing position.
func (q *Queue) Enqueue(id, senderName, context string) (pos int, isNew bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if p := q.positionLocked(id); p > 0 {
		slog.Debug("HandoffQueue Enqueue duplicate ignored", "id", id, "position", p)
		return p, false
	}
	q.waiting = append(q.waiting, Entry{ID: id, SenderName: senderName, Context: context, EnqueuedAt: q.clock()})
	pos = len(q.waiting)
	slog.Info("HandoffQueue Enqueue", "id", id, "position", pos, "size", pos)
	return pos, true
}

// Active returns the conversation currently attended by the agent.
func (q *Queue) Active() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) == 0 {
		return Entry{}, false
	}
	return q.waiting[0], true
}

// CloseActive removes the active conversation. The next waiting conversation,
// if any, becomes active and is returned.
func (q *Queue) CloseActive() (closed Entry, next *Entry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) == 0 {
		return Entry{}, nil, false
	}
	closed = q.waiting[0]
	q.waiting = q.waiting[1:]
	slog.Info("HandoffQueue CloseActive", "id", closed.ID, "remaining", len(q.waiting))
	if len(q.waiting) > 0 {
		n := q.waiting[0]
		return closed, &n, true
	}
	return closed, nil, true
}

// AdvanceActive moves the active conversation to the tail of the queue and
// returns the newly active one. With fewer than two entries it is a no-op.
func (q *Queue) AdvanceActive() (next Entry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) < 2 {
		return Entry{}, false
	}
	head := q.waiting[0]
	q.waiting = append(q.waiting[1:], head)
	slog.Info("HandoffQueue AdvanceActive", "parked", head.ID, "active", q.waiting[0].ID)
	return q.waiting[0], true
}

// Remove drops a conversation from the queue wherever it is. Removing the
// active conversation promotes the next one, same as CloseActive.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.waiting {
		if e.ID == id {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			slog.Debug("HandoffQueue Remove", "id", id, "position", i+1, "remaining", len(q.waiting))
			return true
		}
	}
	return false
}

// PositionOf returns the 1-based queue position of id, or 0 when absent.
// Position 1 is the active conversation.
func (q *Queue) PositionOf(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.positionLocked(id)
}

func (q *Queue) positionLocked(id string) int {
	for i, e := range q.waiting {
		if e.ID == id {
			return i + 1
		}
	}
	return 0
}

// Size returns the number of queued conversations, including the active one.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Entries returns a snapshot of the queue in order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.waiting))
	copy(out, q.waiting)
	return out
}

// RenderStatus builds the agent-facing queue listing in Spanish.
func (q *Queue) RenderStatus() string {
	q.mu.Lock()
	entries := make([]Entry, len(q.waiting))
	copy(entries, q.waiting)
	now := q.clock()
	q.mu.Unlock()

	if len(entries) == 0 {
		return "📭 No hay conversaciones en espera."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 *Cola de atención* (%d)\n", len(entries))
	for i, e := range entries {
		name := e.SenderName
		if name == "" {
			name = e.ID
		}
		wait := now.Sub(e.EnqueuedAt).Round(time.Minute)
		if i == 0 {
			fmt.Fprintf(&b, "▶️ 1. %s (%s) — en atención, hace %s\n", name, e.ID, formatWait(wait))
		} else {
			fmt.Fprintf(&b, "%d. %s (%s) — esperando hace %s\n", i+1, name, e.ID, formatWait(wait))
		}
		if snippet := ContextSnippet(e.Context); snippet != "" {
			fmt.Fprintf(&b, "   💬 «%s»\n", snippet)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// contextSnippetMax caps how much of the triggering message the agent-facing
// listings quote.
const contextSnippetMax = 80

// ContextSnippet condenses a handoff context message for agent-facing
// listings. Whitespace collapses to single spaces and long messages are cut
// at a rune boundary.
func ContextSnippet(context string) string {
	s := strings.Join(strings.Fields(context), " ")
	if s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= contextSnippetMax {
		return s
	}
	return strings.TrimSpace(string(runes[:contextSnippetMax])) + "…"
}

func formatWait(d time.Duration) string {
	if d < time.Minute {
		return "menos de 1 min"
	}
	if d < time.Hour {
		return fmt.Sprintf("%d min", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh %dmin", int(d.Hours()), int(d.Minutes())%60)
}
