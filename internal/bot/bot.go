// Package bot wires the conversation engine, handoff queue, messaging
// channel, archive and notifications together. It owns the three entry
// points the API layer calls: ProcessUserMessage, ProcessAgentMessage and
// RunSweep.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/agent"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/config"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/email"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/flow"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/handoff"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/messaging"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/nlu"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/notify"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/session"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/store"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/survey"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/sweep"
)

const (
	// leadRetryMessage is sent when the lead could not be submitted; the
	// conversation stays in the sending state and any message retries.
	leadRetryMessage = "⚠️ No pudimos registrar tu consulta en este momento. Escribinos cualquier mensaje en unos minutos y lo volvemos a intentar."

	// advanceUnavailableMessage answers /siguiente when there is nothing to
	// rotate to.
	advanceUnavailableMessage = "ℹ️ No hay otra conversación esperando en la cola."
)

// Opts holds the bot's collaborators.
type Opts struct {
	Sessions *session.Store
	Queue    *handoff.Queue
	Engine   *flow.Engine
	Resolver *nlu.Resolver
	Leads    email.Sender
	Archive  store.Store
	Notifier *notify.Notifier
	Clock    func() time.Time
}

// Option configures the bot.
type Option func(*Opts)

// WithSessions sets the session store.
func WithSessions(s *session.Store) Option {
	return func(o *Opts) { o.Sessions = s }
}

// WithQueue sets the handoff queue.
func WithQueue(q *handoff.Queue) Option {
	return func(o *Opts) { o.Queue = q }
}

// WithEngine sets a prebuilt conversation engine.
func WithEngine(e *flow.Engine) Option {
	return func(o *Opts) { o.Engine = e }
}

// WithResolver sets the NLU resolver backing the conversation engine.
func WithResolver(r *nlu.Resolver) Option {
	return func(o *Opts) { o.Resolver = r }
}

// WithLeadSender sets the outbound lead email sender. Without one, leads
// are only archived.
func WithLeadSender(s email.Sender) Option {
	return func(o *Opts) { o.Leads = s }
}

// WithArchive sets the persistent archive for leads, surveys and closures.
func WithArchive(s store.Store) Option {
	return func(o *Opts) { o.Archive = s }
}

// WithNotifier sets the operational notifier. A nil notifier is fine.
func WithNotifier(n *notify.Notifier) Option {
	return func(o *Opts) { o.Notifier = n }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

// Bot is the orchestration layer between the messaging channel and the
// conversation engine.
type Bot struct {
	profile  config.CompanyProfile
	svc      messaging.Service
	sessions *session.Store
	queue    *handoff.Queue
	engine   *flow.Engine
	leads    email.Sender
	archive  store.Store
	notifier *notify.Notifier
	sweeper  *sweep.Sweeper
	clock    func() time.Time
}

// New builds a bot on top of a messaging service. Collaborators not
// provided through options get in-memory defaults.
func New(profile config.CompanyProfile, svc messaging.Service, opts ...Option) *Bot {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.Sessions == nil {
		o.Sessions = session.NewStore()
	}
	if o.Queue == nil {
		o.Queue = handoff.NewQueue()
	}
	if o.Resolver == nil {
		o.Resolver = nlu.NewResolver(nil)
	}
	if o.Engine == nil {
		o.Engine = flow.NewEngine(profile, o.Resolver)
	}
	if o.Archive == nil {
		o.Archive = store.NewInMemoryStore()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}

	b := &Bot{
		profile:  profile,
		svc:      svc,
		sessions: o.Sessions,
		queue:    o.Queue,
		engine:   o.Engine,
		leads:    o.Leads,
		archive:  o.Archive,
		notifier: o.Notifier,
		clock:    o.Clock,
	}
	b.sweeper = sweep.NewSweeper(o.Sessions, o.Queue, svc, o.Archive, profile)
	return b
}

// Sessions exposes the session store for the API layer.
func (b *Bot) Sessions() *session.Store { return b.sessions }

// Queue exposes the handoff queue for the API layer.
func (b *Bot) Queue() *handoff.Queue { return b.queue }

// Archive exposes the persistent archive for the API layer.
func (b *Bot) Archive() store.Store { return b.archive }

// HandleResponse routes an incoming message to the user or agent path
// depending on the sender.
func (b *Bot) HandleResponse(ctx context.Context, resp models.Response) {
	if resp.From == b.profile.AgentNumber {
		b.ProcessAgentMessage(ctx, resp)
		return
	}
	b.ProcessUserMessage(ctx, resp)
}

// ProcessUserMessage advances the sender's conversation with one message
// and carries out the resulting side effects: replies, queueing, lead
// submission, forwarding and session teardown.
func (b *Bot) ProcessUserMessage(ctx context.Context, resp models.Response) {
	id := resp.From
	var res flow.Result
	conv := b.sessions.Mutate(id, func(c *models.Conversation) {
		if resp.SenderName != "" {
			c.SenderName = resp.SenderName
		}
		res = b.engine.Advance(ctx, c, resp.Body)
	})

	replies := res.Replies
	end := res.EndConversation

	if res.SubmitLead {
		// The conversation sits in the sending state until the lead is
		// actually out; on failure any follow-up message retries.
		if err := b.submitLead(ctx, conv); err != nil {
			slog.Error("Bot.ProcessUserMessage: lead submission failed", "id", id, "error", err)
			replies = []string{leadRetryMessage}
			end = false
		} else {
			b.sessions.Mutate(id, func(c *models.Conversation) {
				c.State = models.StateFinalized
			})
			replies = append(replies, flow.LeadSentMessage(b.profile))
			end = true
		}
	}

	if res.EnqueueHandoff {
		pos, isNew := b.queue.Enqueue(id, conv.SenderName, conv.HandoffContext)
		if pos == 1 {
			replies = append(replies, flow.HandoffActiveMessage)
		} else {
			replies = append(replies, flow.HandoffEnqueuedMessage(pos))
		}
		if isNew {
			entry := handoff.Entry{ID: id, SenderName: conv.SenderName, Context: conv.HandoffContext}
			b.sendToAgent(ctx, agent.EnqueueAnnouncement(entry, pos, b.queue.Size()))
			b.notifier.HandoffEnqueued(ctx, id, conv.SenderName, pos, b.queue.Size())
		}
	}

	if res.ForwardToAgent != "" {
		b.sendToAgent(ctx, forwardedMessage(conv, res.ForwardToAgent))
	}

	if res.SurveyDone && len(conv.Survey.Answers) > 0 {
		b.archiveSurvey(ctx, conv)
	}

	for _, msg := range replies {
		b.send(ctx, id, msg)
	}

	if end {
		b.sessions.Delete(id)
	}
}

// ProcessAgentMessage interprets a message coming from the agent number:
// slash commands control the queue, anything else is relayed verbatim to
// the active conversation.
func (b *Bot) ProcessAgentMessage(ctx context.Context, resp models.Response) {
	cmd, isCommand := agent.Parse(resp.Body)
	if !isCommand {
		active, ok := b.queue.Active()
		if !ok {
			b.sendToAgent(ctx, agent.NoActiveMessage)
			return
		}
		b.send(ctx, active.ID, strings.TrimSpace(resp.Body))
		return
	}

	switch cmd {
	case agent.CommandFinish:
		b.finishActive(ctx)
	case agent.CommandAdvance:
		next, ok := b.queue.AdvanceActive()
		if !ok {
			b.sendToAgent(ctx, advanceUnavailableMessage)
			return
		}
		b.sendToAgent(ctx, agent.ActiveAnnouncement(next))
		b.send(ctx, next.ID, flow.HandoffActiveMessage)
		b.notifier.HandoffActivated(ctx, next.ID, next.SenderName)
	case agent.CommandStatus:
		b.sendToAgent(ctx, b.queue.RenderStatus())
	case agent.CommandActive:
		e, ok := b.queue.Active()
		b.sendToAgent(ctx, agent.ActiveStatusMessage(e, ok))
	case agent.CommandHelp:
		b.sendToAgent(ctx, agent.HelpMessage())
	default:
		b.sendToAgent(ctx, agent.UnknownCommandMessage(resp.Body))
	}
}

// finishActive closes the active conversation, promotes the next one and
// starts the closing question (survey offer or resolution check) with the
// user who was just closed.
func (b *Bot) finishActive(ctx context.Context) {
	closed, next, ok := b.queue.CloseActive()
	if !ok {
		b.sendToAgent(ctx, agent.ActiveStatusMessage(handoff.Entry{}, false))
		return
	}

	rec := models.ClosureRecord{
		ID:        uuid.NewString(),
		Phone:     closed.ID,
		Reason:    models.ClosureReasonAgentDone,
		CreatedAt: b.clock(),
	}
	if err := b.archive.SaveClosure(ctx, rec); err != nil {
		slog.Error("Bot.finishActive: failed to archive closure", "id", closed.ID, "error", err)
	}

	b.sendToAgent(ctx, agent.ClosedAnnouncement(closed, next))
	if next != nil {
		b.send(ctx, next.ID, flow.HandoffActiveMessage)
		b.notifier.HandoffActivated(ctx, next.ID, next.SenderName)
	}

	var res flow.Result
	b.sessions.Mutate(closed.ID, func(c *models.Conversation) {
		if b.profile.SurveyEnabled {
			res = b.engine.OfferSurvey(c)
		} else {
			res = b.engine.AskResolution(c)
		}
	})
	for _, msg := range res.Replies {
		b.send(ctx, closed.ID, msg)
	}
}

// RunSweep runs one pass of the inactivity sweeper.
func (b *Bot) RunSweep(ctx context.Context) sweep.Report {
	return b.sweeper.Sweep(ctx, b.clock())
}

// Run starts the messaging service and consumes its response and receipt
// channels until the context is cancelled or the channels close.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	responses := b.svc.Responses()
	receipts := b.svc.Receipts()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case resp, ok := <-responses:
			if !ok {
				return nil
			}
			b.HandleResponse(ctx, resp)
		case rc, ok := <-receipts:
			if !ok {
				receipts = nil
				continue
			}
			slog.Debug("Bot.Run: receipt", "to", rc.To, "status", rc.Status)
		}
	}
}

func (b *Bot) submitLead(ctx context.Context, conv models.Conversation) error {
	lead := models.LeadRecord{
		ID:         uuid.NewString(),
		Phone:      conv.ID,
		SenderName: conv.SenderName,
		Category:   conv.Category,
		Contact:    conv.Contact,
		CreatedAt:  b.clock(),
	}
	if b.leads != nil {
		if err := b.leads.SendLead(ctx, lead); err != nil {
			return fmt.Errorf("failed to send lead email: %w", err)
		}
	}
	if err := b.archive.SaveLead(ctx, lead); err != nil {
		slog.Error("Bot.submitLead: failed to archive lead", "id", conv.ID, "error", err)
	}
	b.notifier.LeadSubmitted(ctx, conv.ID, string(conv.Category))
	slog.Info("Bot.submitLead: lead submitted", "id", conv.ID, "category", conv.Category)
	return nil
}

func (b *Bot) archiveSurvey(ctx context.Context, conv models.Conversation) {
	result := models.SurveyResult{
		ID:        uuid.NewString(),
		Phone:     conv.ID,
		Answers:   conv.Survey.Answers,
		Completed: len(conv.Survey.Answers) >= len(survey.Questions),
		CreatedAt: b.clock(),
	}
	if err := b.archive.SaveSurveyResult(ctx, result); err != nil {
		slog.Error("Bot.archiveSurvey: failed to archive survey", "id", conv.ID, "error", err)
	}
}

func (b *Bot) send(ctx context.Context, to, body string) {
	if err := b.svc.SendMessage(ctx, to, body); err != nil {
		slog.Error("Bot.send: failed to send message", "to", to, "error", err)
	}
}

func (b *Bot) sendToAgent(ctx context.Context, body string) {
	if b.profile.AgentNumber == "" {
		slog.Warn("Bot.sendToAgent: no agent number configured, dropping message")
		return
	}
	b.send(ctx, b.profile.AgentNumber, body)
}

func forwardedMessage(conv models.Conversation, text string) string {
	if conv.SenderName == "" {
		return fmt.Sprintf("💬 %s: %s", conv.ID, text)
	}
	return fmt.Sprintf("💬 *%s* (%s): %s", conv.SenderName, conv.ID, text)
}
