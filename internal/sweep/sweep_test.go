package sweep

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/config"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/handoff"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/session"
)

type sentMessage struct {
	To   string
	Body string
}

type mockSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (m *mockSender) SendMessage(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{To: to, Body: body})
	return nil
}

func (m *mockSender) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

type mockArchiver struct {
	mu       sync.Mutex
	closures []models.ClosureRecord
}

func (m *mockArchiver) SaveClosure(_ context.Context, rec models.ClosureRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closures = append(m.closures, rec)
	return nil
}

func (m *mockArchiver) records() []models.ClosureRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ClosureRecord(nil), m.closures...)
}

type fixture struct {
	sessions *session.Store
	queue    *handoff.Queue
	sender   *mockSender
	archive  *mockArchiver
	sweeper  *Sweeper
	base     time.Time
	now      time.Time
}

func newFixture() *fixture {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		sender:  &mockSender{},
		archive: &mockArchiver{},
		base:    base,
		now:     base,
	}
	clock := func() time.Time { return f.now }
	f.sessions = session.NewStore(session.WithClock(clock))
	f.queue = handoff.NewQueue(handoff.WithClock(clock))
	profile := config.CompanyProfile{
		AgentNumber:          "+5491199999999",
		HandoffTTLMinutes:    120,
		SurveyOfferMinutes:   10,
		SurveyAbandonMinutes: 30,
		ResolutionMinutes:    15,
	}
	f.sweeper = NewSweeper(f.sessions, f.queue, f.sender, f.archive, profile)
	return f
}

// seed creates a handed-off conversation in the given state, already queued.
func (f *fixture) seed(id string, state models.ConversationState, mutate func(*models.Conversation)) {
	f.sessions.Mutate(id, func(c *models.Conversation) {
		c.State = state
		if mutate != nil {
			mutate(c)
		}
	})
	f.queue.Enqueue(id, "", "")
}

func TestSweep_ExpiredSurveyOfferClosesSilently(t *testing.T) {
	f := newFixture()
	f.seed("u1", models.StateAwaitingSurveyResponse, func(c *models.Conversation) {
		c.Survey.Offered = true
	})

	rep := f.sweeper.Sweep(context.Background(), f.base.Add(11*time.Minute))
	if rep.SurveyOffersExpired != 1 || rep.Total() != 1 {
		t.Fatalf("expected one expired offer, got %+v", rep)
	}
	if _, ok := f.sessions.Peek("u1"); ok {
		t.Error("expected session deleted")
	}
	for _, m := range f.sender.messages() {
		if m.To == "u1" {
			t.Errorf("expected silent close, but sent %q", m.Body)
		}
	}
	recs := f.archive.records()
	if len(recs) != 1 || recs[0].Reason != models.ClosureReasonSurveyTimeout {
		t.Errorf("expected survey timeout closure archived, got %+v", recs)
	}
}

func TestSweep_AbandonedSurveySendsGoodbye(t *testing.T) {
	f := newFixture()
	f.seed("u1", models.StateSurveyInProgress, func(c *models.Conversation) {
		c.Survey.Question = 2
		c.Survey.Answers = []string{"si"}
	})

	rep := f.sweeper.Sweep(context.Background(), f.base.Add(31*time.Minute))
	if rep.SurveysAbandoned != 1 {
		t.Fatalf("expected abandoned survey, got %+v", rep)
	}
	msgs := f.sender.messages()
	if len(msgs) == 0 || msgs[0].To != "u1" {
		t.Fatalf("expected goodbye to user, got %v", msgs)
	}
}

func TestSweep_WindowNotElapsedDoesNothing(t *testing.T) {
	f := newFixture()
	f.seed("u1", models.StateAwaitingSurveyResponse, nil)
	f.seed("u2", models.StateSurveyInProgress, nil)
	f.seed("u3", models.StateHandedOffToHuman, nil)

	rep := f.sweeper.Sweep(context.Background(), f.base.Add(5*time.Minute))
	if rep.Total() != 0 {
		t.Fatalf("expected nothing closed, got %+v", rep)
	}
	if f.sessions.Len() != 3 {
		t.Errorf("expected all sessions alive, got %d", f.sessions.Len())
	}
}

func TestSweep_ResolutionTimeoutCloses(t *testing.T) {
	f := newFixture()
	f.seed("u1", models.StateHandedOffToHuman, func(c *models.Conversation) {
		c.Survey.ResolutionAsked = true
	})

	rep := f.sweeper.Sweep(context.Background(), f.base.Add(16*time.Minute))
	if rep.ResolutionsExpired != 1 {
		t.Fatalf("expected resolution timeout, got %+v", rep)
	}
	if _, ok := f.sessions.Peek("u1"); ok {
		t.Error("expected session deleted")
	}
}

func TestSweep_HandoffTTLClosesAndPromotesNext(t *testing.T) {
	f := newFixture()
	f.seed("u1", models.StateHandedOffToHuman, nil)
	f.now = f.base.Add(116 * time.Minute)
	f.seed("u2", models.StateHandedOffToHuman, nil)

	// u1 has been idle 121 minutes, u2 only 5.
	now := f.base.Add(121 * time.Minute)
	rep := f.sweeper.Sweep(context.Background(), now)
	if rep.InactivityClosed != 1 {
		t.Fatalf("expected one TTL closure, got %+v", rep)
	}

	act, ok := f.queue.Active()
	if !ok || act.ID != "u2" {
		t.Fatalf("expected u2 promoted to active, got %v %v", act, ok)
	}

	var agentNotified, userNotified bool
	for _, m := range f.sender.messages() {
		if m.To == "+5491199999999" {
			agentNotified = true
		}
		if m.To == "u1" {
			userNotified = true
		}
	}
	if !agentNotified {
		t.Error("expected agent notified of newly active conversation")
	}
	if !userNotified {
		t.Error("expected inactivity notice sent to user")
	}
}

func TestSweep_NonActiveClosureLeavesActiveAlone(t *testing.T) {
	f := newFixture()
	f.seed("u1", models.StateHandedOffToHuman, nil)
	f.seed("u2", models.StateAwaitingSurveyResponse, nil)

	// u1 stays fresh, u2's survey offer expires.
	now := f.base.Add(11 * time.Minute)
	f.now = now
	f.sessions.Touch("u1")

	rep := f.sweeper.Sweep(context.Background(), now)
	if rep.SurveyOffersExpired != 1 {
		t.Fatalf("expected u2 closed, got %+v", rep)
	}
	act, ok := f.queue.Active()
	if !ok || act.ID != "u1" {
		t.Errorf("expected u1 still active, got %v %v", act, ok)
	}
	if f.queue.Size() != 1 {
		t.Errorf("expected u2 removed from queue, got size %d", f.queue.Size())
	}
}

func TestSweep_SecondPassClosesNothing(t *testing.T) {
	f := newFixture()
	f.seed("u1", models.StateAwaitingSurveyResponse, nil)
	f.seed("u2", models.StateHandedOffToHuman, nil)
	now := f.base.Add(3 * time.Hour)

	first := f.sweeper.Sweep(context.Background(), now)
	if first.Total() != 2 {
		t.Fatalf("expected both closed on first pass, got %+v", first)
	}
	second := f.sweeper.Sweep(context.Background(), now)
	if second.Total() != 0 {
		t.Errorf("expected idempotent second pass, got %+v", second)
	}
}

func TestSweep_IgnoresBotHandledConversations(t *testing.T) {
	f := newFixture()
	f.sessions.Mutate("u1", func(c *models.Conversation) {
		c.State = models.StateCollectingSequential
	})

	rep := f.sweeper.Sweep(context.Background(), f.base.Add(10*time.Hour))
	if rep.Total() != 0 {
		t.Fatalf("expected bot-handled conversation untouched, got %+v", rep)
	}
	if _, ok := f.sessions.Peek("u1"); !ok {
		t.Error("expected session still alive")
	}
}
