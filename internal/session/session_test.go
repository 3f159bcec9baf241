package session

import (
	"sync"
	"testing"
	"time"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

func TestStore_MutateCreatesOnFirstAccess(t *testing.T) {
	s := NewStore()

	conv := s.Mutate("+5491112345678", func(c *models.Conversation) {
		if c.State != models.StateInit {
			t.Errorf("expected new conversation in init state, got %q", c.State)
		}
		c.State = models.StateAwaitingMenuChoice
	})

	if conv.ID != "+5491112345678" {
		t.Errorf("expected id to be set, got %q", conv.ID)
	}
	if conv.State != models.StateAwaitingMenuChoice {
		t.Errorf("expected mutation to persist, got state %q", conv.State)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 conversation, got %d", s.Len())
	}
}

func TestStore_PeekDoesNotCreate(t *testing.T) {
	s := NewStore()

	if _, ok := s.Peek("+5491100000000"); ok {
		t.Error("expected Peek on unknown id to report not found")
	}
	if s.Len() != 0 {
		t.Errorf("expected Peek not to create conversations, got %d", s.Len())
	}
}

func TestStore_MutateBumpsLastActivity(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return now }))

	s.Mutate("u1", func(*models.Conversation) {})
	now = now.Add(5 * time.Minute)
	conv := s.Mutate("u1", func(*models.Conversation) {})

	if !conv.LastActivity.Equal(now) {
		t.Errorf("expected LastActivity %v, got %v", now, conv.LastActivity)
	}
}

func TestStore_DeleteRemovesConversation(t *testing.T) {
	s := NewStore()
	s.Mutate("u1", func(*models.Conversation) {})

	s.Delete("u1")
	if _, ok := s.Peek("u1"); ok {
		t.Error("expected conversation to be gone after Delete")
	}

	// Deleting again must not panic.
	s.Delete("u1")
}

func TestStore_SnapshotReturnsCopies(t *testing.T) {
	s := NewStore()
	s.Mutate("u1", func(c *models.Conversation) { c.State = models.StateConfirming })
	s.Mutate("u2", func(c *models.Conversation) { c.State = models.StateHandedOffToHuman })

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 conversations in snapshot, got %d", len(snap))
	}

	// Mutating a snapshot entry must not affect the store.
	snap[0].State = models.StateFinalized
	for _, id := range []string{"u1", "u2"} {
		conv, ok := s.Peek(id)
		if !ok {
			t.Fatalf("conversation %s missing", id)
		}
		if conv.State == models.StateFinalized {
			t.Errorf("snapshot mutation leaked into store for %s", id)
		}
	}
}

func TestStore_ConcurrentMutations(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Mutate("shared", func(c *models.Conversation) {
				c.Survey.Question++
			})
		}()
	}
	wg.Wait()

	conv, ok := s.Peek("shared")
	if !ok {
		t.Fatal("conversation missing")
	}
	if conv.Survey.Question != 50 {
		t.Errorf("expected 50 serialized mutations, got %d", conv.Survey.Question)
	}
}
