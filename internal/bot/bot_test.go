package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/agent"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/config"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/flow"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/messaging"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/store"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/survey"
)

const (
	agentNumber = "+5491199999999"
	userCarla   = "+5491144445555"
	userMarcos  = "+5491166667777"
)

type mockLeadSender struct {
	Sent    []models.LeadRecord
	SendErr error
}

func (m *mockLeadSender) SendLead(_ context.Context, lead models.LeadRecord) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, lead)
	return nil
}

type fixture struct {
	bot     *Bot
	svc     *messaging.MockService
	archive *store.InMemoryStore
	leads   *mockLeadSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	profile := config.CompanyProfile{
		CompanyName:          "Argenfuego",
		BotName:              "Eva",
		ContactPhones:        []string{"011-4567-8900"},
		BusinessHours:        "lunes a viernes de 9 a 18 hs",
		AgentNumber:          agentNumber,
		SurveyEnabled:        true,
		HandoffTTLMinutes:    config.DefaultHandoffTTLMinutes,
		SurveyOfferMinutes:   config.DefaultSurveyOfferMinutes,
		SurveyAbandonMinutes: config.DefaultSurveyAbandonMinutes,
		ResolutionMinutes:    config.DefaultResolutionMinutes,
	}
	svc := messaging.NewMockService()
	archive := store.NewInMemoryStore()
	leads := &mockLeadSender{}
	b := New(profile, svc,
		WithArchive(archive),
		WithLeadSender(leads),
	)
	return &fixture{bot: b, svc: svc, archive: archive, leads: leads}
}

func (f *fixture) userSays(from, name, body string) {
	f.bot.ProcessUserMessage(context.Background(), models.Response{From: from, SenderName: name, Body: body})
}

func (f *fixture) agentSays(body string) {
	f.bot.ProcessAgentMessage(context.Background(), models.Response{From: agentNumber, Body: body})
}

func lastMessageTo(t *testing.T, svc *messaging.MockService, to string) string {
	t.Helper()
	msgs := svc.SentTo(to)
	if len(msgs) == 0 {
		t.Fatalf("no messages sent to %s", to)
	}
	return msgs[len(msgs)-1]
}

func TestFirstMessageGreets(t *testing.T) {
	f := newFixture(t)
	f.userSays(userCarla, "Carla", "hola")

	got := lastMessageTo(t, f.svc, userCarla)
	if !strings.Contains(got, "Eva") || !strings.Contains(got, "Argenfuego") {
		t.Errorf("greeting = %q, want bot and company name", got)
	}
	if f.bot.Sessions().Len() != 1 {
		t.Errorf("sessions = %d, want 1", f.bot.Sessions().Len())
	}
}

func TestUrgencyEndsConversation(t *testing.T) {
	f := newFixture(t)
	f.userSays(userCarla, "Carla", "hola")
	f.userSays(userCarla, "Carla", "3")

	got := lastMessageTo(t, f.svc, userCarla)
	if !strings.Contains(got, "011-4567-8900") {
		t.Errorf("urgency reply = %q, want contact phone", got)
	}
	if f.bot.Sessions().Len() != 0 {
		t.Errorf("session should be deleted after the urgency reply")
	}
}

func TestLeadSubmission(t *testing.T) {
	f := newFixture(t)
	completeQuote(f, userCarla, "Carla")

	if len(f.leads.Sent) != 1 {
		t.Fatalf("leads sent = %d, want 1", len(f.leads.Sent))
	}
	lead := f.leads.Sent[0]
	if lead.Phone != userCarla || lead.Category != models.CategoryQuote {
		t.Errorf("lead = %+v", lead)
	}
	if lead.Contact.Email != "carla@empresa.com" {
		t.Errorf("lead email = %q", lead.Contact.Email)
	}
	if len(f.archive.Leads()) != 1 {
		t.Errorf("archived leads = %d, want 1", len(f.archive.Leads()))
	}
	if f.bot.Sessions().Len() != 0 {
		t.Errorf("session should be deleted after submission")
	}
	got := lastMessageTo(t, f.svc, userCarla)
	if !strings.Contains(got, "Recibimos tu consulta") {
		t.Errorf("final reply = %q", got)
	}
}

func TestLeadSubmissionFailureKeepsConversation(t *testing.T) {
	f := newFixture(t)
	f.leads.SendErr = errors.New("smtp down")
	completeQuote(f, userCarla, "Carla")

	got := lastMessageTo(t, f.svc, userCarla)
	if !strings.Contains(got, "No pudimos registrar") {
		t.Errorf("reply = %q, want retry notice", got)
	}
	conv, ok := f.bot.Sessions().Peek(userCarla)
	if !ok {
		t.Fatalf("session should survive a failed submission")
	}
	if conv.State != models.StateSending {
		t.Errorf("state = %q, want %q", conv.State, models.StateSending)
	}
	if len(f.archive.Leads()) != 0 {
		t.Errorf("nothing should be archived on failure")
	}

	// The email comes back up; any follow-up message retries, no second
	// confirmation needed.
	f.leads.SendErr = nil
	f.userSays(userCarla, "Carla", "llegó mi consulta?")
	if len(f.leads.Sent) != 1 {
		t.Fatalf("retry should submit the lead")
	}
	if f.bot.Sessions().Len() != 0 {
		t.Errorf("session should be deleted once the retry succeeds")
	}
	if got := lastMessageTo(t, f.svc, userCarla); !strings.Contains(got, "Recibimos tu consulta") {
		t.Errorf("final reply = %q", got)
	}
}

func TestHandoffEnqueueAnnouncesToAgent(t *testing.T) {
	f := newFixture(t)
	f.userSays(userCarla, "Carla", "hola")
	f.userSays(userCarla, "Carla", "quiero hablar con una persona, tengo un problema con una recarga")

	userGot := lastMessageTo(t, f.svc, userCarla)
	if userGot != flow.HandoffActiveMessage {
		t.Errorf("user reply = %q, want active handoff message", userGot)
	}
	agentGot := lastMessageTo(t, f.svc, agentNumber)
	if !strings.Contains(agentGot, "Carla") {
		t.Errorf("agent announcement = %q, want sender name", agentGot)
	}
	if !strings.Contains(agentGot, "tengo un problema con una recarga") {
		t.Errorf("agent announcement = %q, want the triggering message quoted", agentGot)
	}
	if f.bot.Queue().Size() != 1 {
		t.Errorf("queue size = %d, want 1", f.bot.Queue().Size())
	}

	f.agentSays("/cola")
	if status := lastMessageTo(t, f.svc, agentNumber); !strings.Contains(status, "tengo un problema con una recarga") {
		t.Errorf("queue status = %q, want the handoff context quoted", status)
	}
}

func TestSecondHandoffReportsPosition(t *testing.T) {
	f := newFixture(t)
	f.userSays(userCarla, "Carla", "hola")
	f.userSays(userCarla, "Carla", "quiero hablar con una persona")
	f.userSays(userMarcos, "Marcos", "hola")
	f.userSays(userMarcos, "Marcos", "necesito hablar con un humano")

	got := lastMessageTo(t, f.svc, userMarcos)
	if !strings.Contains(got, "1 consulta(s)") {
		t.Errorf("queued reply = %q, want one ahead", got)
	}
}

func TestAgentFreeTextReachesActiveUser(t *testing.T) {
	f := newFixture(t)
	enqueue(f, userCarla, "Carla")

	f.agentSays("Hola Carla, ¿en qué te ayudo?")
	got := lastMessageTo(t, f.svc, userCarla)
	if got != "Hola Carla, ¿en qué te ayudo?" {
		t.Errorf("relayed = %q", got)
	}
}

func TestAgentFreeTextWithoutActiveWarns(t *testing.T) {
	f := newFixture(t)
	f.agentSays("hola?")
	got := lastMessageTo(t, f.svc, agentNumber)
	if got != agent.NoActiveMessage {
		t.Errorf("reply = %q, want no-active warning", got)
	}
}

func TestUserMessagesForwardedWhileHandedOff(t *testing.T) {
	f := newFixture(t)
	enqueue(f, userCarla, "Carla")

	f.userSays(userCarla, "Carla", "sigo esperando")
	got := lastMessageTo(t, f.svc, agentNumber)
	if !strings.Contains(got, "Carla") || !strings.Contains(got, "sigo esperando") {
		t.Errorf("forwarded = %q", got)
	}
}

func TestFinishOffersSurveyAndPromotesNext(t *testing.T) {
	f := newFixture(t)
	enqueue(f, userCarla, "Carla")
	enqueue(f, userMarcos, "Marcos")

	f.agentSays("/listo")

	agentGot := lastMessageTo(t, f.svc, agentNumber)
	if !strings.Contains(agentGot, "Carla") || !strings.Contains(agentGot, "Marcos") {
		t.Errorf("close announcement = %q, want closed and next names", agentGot)
	}
	marcosGot := lastMessageTo(t, f.svc, userMarcos)
	if marcosGot != flow.HandoffActiveMessage {
		t.Errorf("promoted user got %q", marcosGot)
	}
	carlaGot := lastMessageTo(t, f.svc, userCarla)
	if carlaGot != survey.Offer {
		t.Errorf("closed user got %q, want survey offer", carlaGot)
	}
	if len(f.archive.Closures()) != 1 {
		t.Fatalf("closures = %d, want 1", len(f.archive.Closures()))
	}
	if f.archive.Closures()[0].Reason != models.ClosureReasonAgentDone {
		t.Errorf("closure reason = %q", f.archive.Closures()[0].Reason)
	}
	active, ok := f.bot.Queue().Active()
	if !ok || active.ID != userMarcos {
		t.Errorf("active = %+v, want Marcos", active)
	}
}

func TestFinishWithEmptyQueue(t *testing.T) {
	f := newFixture(t)
	f.agentSays("/listo")
	got := lastMessageTo(t, f.svc, agentNumber)
	if !strings.Contains(got, "No hay conversaciones") {
		t.Errorf("reply = %q", got)
	}
}

func TestFinishWithoutSurveyAsksResolution(t *testing.T) {
	f := newFixture(t)
	f.bot.profile.SurveyEnabled = false
	enqueue(f, userCarla, "Carla")

	f.agentSays("/listo")
	got := lastMessageTo(t, f.svc, userCarla)
	if !strings.Contains(got, "resolver tu consulta") {
		t.Errorf("reply = %q, want resolution question", got)
	}
}

func TestSurveyCompletionIsArchived(t *testing.T) {
	f := newFixture(t)
	enqueue(f, userCarla, "Carla")
	f.agentSays("/listo")

	f.userSays(userCarla, "Carla", "si")
	f.userSays(userCarla, "Carla", "1")
	f.userSays(userCarla, "Carla", "si")
	f.userSays(userCarla, "Carla", "no")

	results := f.archive.SurveyResults()
	if len(results) != 1 {
		t.Fatalf("survey results = %d, want 1", len(results))
	}
	r := results[0]
	if !r.Completed {
		t.Errorf("survey should be completed")
	}
	want := []string{"si", "si", "no"}
	if len(r.Answers) != len(want) {
		t.Fatalf("answers = %v", r.Answers)
	}
	for i, a := range want {
		if r.Answers[i] != a {
			t.Errorf("answer[%d] = %q, want %q", i, r.Answers[i], a)
		}
	}
	if f.bot.Sessions().Len() != 0 {
		t.Errorf("session should be deleted after the survey")
	}
}

func TestSurveyDeclineNotArchived(t *testing.T) {
	f := newFixture(t)
	enqueue(f, userCarla, "Carla")
	f.agentSays("/listo")

	f.userSays(userCarla, "Carla", "no gracias")

	if len(f.archive.SurveyResults()) != 0 {
		t.Errorf("declined survey should not be archived")
	}
	if f.bot.Sessions().Len() != 0 {
		t.Errorf("session should be deleted on decline")
	}
}

func TestAdvanceRotatesQueue(t *testing.T) {
	f := newFixture(t)
	enqueue(f, userCarla, "Carla")
	enqueue(f, userMarcos, "Marcos")

	f.agentSays("/siguiente")

	active, ok := f.bot.Queue().Active()
	if !ok || active.ID != userMarcos {
		t.Fatalf("active = %+v, want Marcos", active)
	}
	got := lastMessageTo(t, f.svc, agentNumber)
	if !strings.Contains(got, "Marcos") {
		t.Errorf("announcement = %q", got)
	}
	if last := lastMessageTo(t, f.svc, userMarcos); last != flow.HandoffActiveMessage {
		t.Errorf("promoted user got %q", last)
	}
	if f.bot.Queue().Size() != 2 {
		t.Errorf("advance must not drop anyone, size = %d", f.bot.Queue().Size())
	}
}

func TestAdvanceWithSingleEntry(t *testing.T) {
	f := newFixture(t)
	enqueue(f, userCarla, "Carla")
	f.agentSays("/siguiente")
	got := lastMessageTo(t, f.svc, agentNumber)
	if got != advanceUnavailableMessage {
		t.Errorf("reply = %q", got)
	}
}

func TestStatusAndActiveCommands(t *testing.T) {
	f := newFixture(t)
	enqueue(f, userCarla, "Carla")
	enqueue(f, userMarcos, "Marcos")

	f.agentSays("/cola")
	if got := lastMessageTo(t, f.svc, agentNumber); !strings.Contains(got, "Carla") || !strings.Contains(got, "Marcos") {
		t.Errorf("status = %q", got)
	}

	f.agentSays("/actual")
	if got := lastMessageTo(t, f.svc, agentNumber); !strings.Contains(got, "Carla") {
		t.Errorf("active status = %q", got)
	}
}

func TestUnknownCommandNotForwarded(t *testing.T) {
	f := newFixture(t)
	enqueue(f, userCarla, "Carla")
	before := len(f.svc.SentTo(userCarla))

	f.agentSays("/fin")

	if got := len(f.svc.SentTo(userCarla)); got != before {
		t.Errorf("unknown command must not reach the user")
	}
	if got := lastMessageTo(t, f.svc, agentNumber); !strings.Contains(got, "/ayuda") {
		t.Errorf("reply = %q, want pointer to help", got)
	}
}

func TestHelpCommand(t *testing.T) {
	f := newFixture(t)
	f.agentSays("/ayuda")
	got := lastMessageTo(t, f.svc, agentNumber)
	if !strings.Contains(got, "/listo") || !strings.Contains(got, "/cola") {
		t.Errorf("help = %q", got)
	}
}

func TestResolutionNoReenqueues(t *testing.T) {
	f := newFixture(t)
	f.bot.profile.SurveyEnabled = false
	enqueue(f, userCarla, "Carla")
	f.agentSays("/listo")

	f.userSays(userCarla, "Carla", "no")

	if f.bot.Queue().Size() != 1 {
		t.Fatalf("queue size = %d, want re-enqueued user", f.bot.Queue().Size())
	}
	active, _ := f.bot.Queue().Active()
	if active.ID != userCarla {
		t.Errorf("active = %q", active.ID)
	}
}

func TestAgentNumberNeverTreatedAsUser(t *testing.T) {
	f := newFixture(t)
	f.bot.HandleResponse(context.Background(), models.Response{From: agentNumber, Body: "hola"})
	if f.bot.Sessions().Len() != 0 {
		t.Errorf("agent traffic must not open a session")
	}
}

func TestRunSweepOnIdleQueue(t *testing.T) {
	f := newFixture(t)
	report := f.bot.RunSweep(context.Background())
	if report.Total() != 0 {
		t.Errorf("sweep on empty state = %+v", report)
	}
}

// TestHandoffEndToEnd walks the full scenario: a user interrupts data
// collection to ask for a human, a second user queues behind them, the
// agent chats and closes, the queue promotes, and the survey runs.
func TestHandoffEndToEnd(t *testing.T) {
	f := newFixture(t)

	// Carla starts a quote and bails out to a human mid-collection.
	f.userSays(userCarla, "Carla", "hola")
	f.userSays(userCarla, "Carla", "1")
	f.userSays(userCarla, "Carla", "carla@empresa.com")
	f.userSays(userCarla, "Carla", "quiero hablar con una persona")

	if got := lastMessageTo(t, f.svc, userCarla); got != flow.HandoffActiveMessage {
		t.Fatalf("Carla got %q, want active handoff", got)
	}

	// Marcos queues behind her.
	f.userSays(userMarcos, "Marcos", "hola")
	f.userSays(userMarcos, "Marcos", "quiero hablar con un humano")
	if got := f.bot.Queue().PositionOf(userMarcos); got != 2 {
		t.Fatalf("Marcos position = %d, want 2", got)
	}

	// Agent free text goes to Carla only.
	marcosBefore := len(f.svc.SentTo(userMarcos))
	f.agentSays("Hola, ya te ayudo")
	if got := lastMessageTo(t, f.svc, userCarla); got != "Hola, ya te ayudo" {
		t.Fatalf("Carla got %q", got)
	}
	if got := len(f.svc.SentTo(userMarcos)); got != marcosBefore {
		t.Fatalf("Marcos must not receive the agent's reply to Carla")
	}

	// Carla answers; the text is forwarded to the agent with her name.
	f.userSays(userCarla, "Carla", "necesito una factura")
	if got := lastMessageTo(t, f.svc, agentNumber); !strings.Contains(got, "necesito una factura") {
		t.Fatalf("forwarded = %q", got)
	}

	// The agent closes: Marcos becomes active, Carla gets the survey.
	f.agentSays("/listo")
	if active, _ := f.bot.Queue().Active(); active.ID != userMarcos {
		t.Fatalf("active = %q, want Marcos", active.ID)
	}
	if got := lastMessageTo(t, f.svc, userCarla); got != survey.Offer {
		t.Fatalf("Carla got %q, want survey offer", got)
	}

	// Carla completes the survey and her session ends.
	f.userSays(userCarla, "Carla", "si")
	f.userSays(userCarla, "Carla", "si")
	f.userSays(userCarla, "Carla", "si")
	f.userSays(userCarla, "Carla", "si")
	if len(f.archive.SurveyResults()) != 1 {
		t.Fatalf("survey results = %d", len(f.archive.SurveyResults()))
	}
	if _, ok := f.bot.Sessions().Peek(userCarla); ok {
		t.Fatalf("Carla's session should be gone")
	}

	// Marcos is still handed off and still queued.
	conv, ok := f.bot.Sessions().Peek(userMarcos)
	if !ok || conv.State != models.StateHandedOffToHuman {
		t.Fatalf("Marcos state = %+v", conv)
	}
	if f.bot.Queue().Size() != 1 {
		t.Fatalf("queue size = %d, want 1", f.bot.Queue().Size())
	}
}

// completeQuote walks a user through the whole quote flow up to the final
// confirmation.
func completeQuote(f *fixture, id, name string) {
	f.userSays(id, name, "hola")
	f.userSays(id, name, "1")
	f.userSays(id, name, "carla@empresa.com")
	f.userSays(id, name, "Av. Corrientes 1500, CABA")
	f.userSays(id, name, "lunes a viernes por la mañana")
	f.userSays(id, name, "recarga de 10 matafuegos ABC")
	f.userSays(id, name, "sí")
}

// enqueue walks a user into the handoff queue.
func enqueue(f *fixture, id, name string) {
	f.userSays(id, name, "hola")
	f.userSays(id, name, "quiero hablar con una persona")
}
