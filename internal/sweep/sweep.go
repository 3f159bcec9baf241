// Package sweep reclaims handed-off conversations whose users stopped
// responding. It runs on a fixed interval and is safe to invoke repeatedly
// and concurrently with live traffic.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/agent"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/config"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/handoff"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/session"
)

// Farewell texts sent when a timed-out conversation is closed. The expired
// survey offer closes silently: no answer is an implicit decline.
const (
	surveyAbandonedFarewell   = "🙌 ¡Gracias por tu tiempo! Cerramos la conversación. Escribinos cuando quieras."
	resolutionExpiredFarewell = "🙌 Damos tu consulta por resuelta. ¡Gracias por contactarnos! Escribinos cuando quieras."
	inactivityFarewell        = "⏰ Cerramos la conversación por inactividad. Escribinos de nuevo cuando quieras, ¡te esperamos!"
)

// Sender delivers outbound messages to users and to the agent.
type Sender interface {
	SendMessage(ctx context.Context, to, body string) error
}

// Archiver persists closure records for closed handoffs.
type Archiver interface {
	SaveClosure(ctx context.Context, rec models.ClosureRecord) error
}

// Report counts what one sweep pass closed.
type Report struct {
	SurveyOffersExpired int `json:"survey_offers_expired"`
	SurveysAbandoned    int `json:"surveys_abandoned"`
	ResolutionsExpired  int `json:"resolutions_expired"`
	InactivityClosed    int `json:"inactivity_closed"`
}

// Total returns the number of conversations closed by the pass.
func (r Report) Total() int {
	return r.SurveyOffersExpired + r.SurveysAbandoned + r.ResolutionsExpired + r.InactivityClosed
}

// Sweeper scans handed-off conversations and closes the expired ones.
type Sweeper struct {
	sessions *session.Store
	queue    *handoff.Queue
	sender   Sender
	archive  Archiver

	agentNumber      string
	offerWindow      time.Duration
	abandonWindow    time.Duration
	resolutionWindow time.Duration
	ttl              time.Duration
}

// NewSweeper creates a sweeper with the windows from the company profile.
func NewSweeper(sessions *session.Store, queue *handoff.Queue, sender Sender, archive Archiver, profile config.CompanyProfile) *Sweeper {
	return &Sweeper{
		sessions:         sessions,
		queue:            queue,
		sender:           sender,
		archive:          archive,
		agentNumber:      profile.AgentNumber,
		offerWindow:      time.Duration(profile.SurveyOfferMinutes) * time.Minute,
		abandonWindow:    time.Duration(profile.SurveyAbandonMinutes) * time.Minute,
		resolutionWindow: time.Duration(profile.ResolutionMinutes) * time.Minute,
		ttl:              time.Duration(profile.HandoffTTLMinutes) * time.Minute,
	}
}

// Sweep evaluates every handed-off conversation against the timeout rules in
// priority order and closes the first rule that matches. Each close removes
// the conversation, so a second pass with no new traffic closes nothing.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) Report {
	var rep Report
	for _, conv := range s.sessions.Snapshot() {
		if !conv.State.IsHandedOff() {
			continue
		}
		idle := now.Sub(conv.LastActivity)
		switch {
		case conv.State == models.StateAwaitingSurveyResponse && idle >= s.offerWindow:
			if s.close(ctx, conv.ID, models.ClosureReasonSurveyTimeout, "", now, func(c *models.Conversation) bool {
				return c.State == models.StateAwaitingSurveyResponse && now.Sub(c.LastActivity) >= s.offerWindow
			}) {
				rep.SurveyOffersExpired++
			}
		case conv.State == models.StateSurveyInProgress && idle >= s.abandonWindow:
			if s.close(ctx, conv.ID, models.ClosureReasonSurveyTimeout, surveyAbandonedFarewell, now, func(c *models.Conversation) bool {
				return c.State == models.StateSurveyInProgress && now.Sub(c.LastActivity) >= s.abandonWindow
			}) {
				rep.SurveysAbandoned++
			}
		case conv.State == models.StateHandedOffToHuman && conv.Survey.ResolutionAsked && idle >= s.resolutionWindow:
			if s.close(ctx, conv.ID, models.ClosureReasonInactivity, resolutionExpiredFarewell, now, func(c *models.Conversation) bool {
				return c.State == models.StateHandedOffToHuman && c.Survey.ResolutionAsked && now.Sub(c.LastActivity) >= s.resolutionWindow
			}) {
				rep.ResolutionsExpired++
			}
		case idle >= s.ttl:
			if s.close(ctx, conv.ID, models.ClosureReasonInactivity, inactivityFarewell, now, func(c *models.Conversation) bool {
				return c.State.IsHandedOff() && now.Sub(c.LastActivity) >= s.ttl
			}) {
				rep.InactivityClosed++
			}
		}
	}
	if rep.Total() > 0 {
		slog.Info("Sweeper.Sweep closed conversations",
			"survey_offers_expired", rep.SurveyOffersExpired,
			"surveys_abandoned", rep.SurveysAbandoned,
			"resolutions_expired", rep.ResolutionsExpired,
			"inactivity_closed", rep.InactivityClosed)
	}
	return rep
}

// close deletes the conversation if pred still holds, then notifies the
// user, fixes up the queue, and archives the closure.
func (s *Sweeper) close(ctx context.Context, id string, reason models.ClosureReason, farewell string, now time.Time, pred func(*models.Conversation) bool) bool {
	if !s.sessions.DeleteIf(id, pred) {
		return false
	}
	slog.Info("Sweeper closed conversation", "id", id, "reason", reason)

	if farewell != "" && s.sender != nil {
		if err := s.sender.SendMessage(ctx, id, farewell); err != nil {
			slog.Warn("Sweeper failed to send farewell", "id", id, "error", err)
		}
	}

	if act, ok := s.queue.Active(); ok && act.ID == id {
		if _, next, ok := s.queue.CloseActive(); ok && next != nil {
			s.notifyAgent(ctx, agent.ActiveAnnouncement(*next))
		}
	} else {
		s.queue.Remove(id)
	}

	if s.archive != nil {
		rec := models.ClosureRecord{
			ID:        uuid.NewString(),
			Phone:     id,
			Reason:    reason,
			CreatedAt: now,
		}
		if err := s.archive.SaveClosure(ctx, rec); err != nil {
			slog.Warn("Sweeper failed to archive closure", "id", id, "error", err)
		}
	}
	return true
}

func (s *Sweeper) notifyAgent(ctx context.Context, body string) {
	if s.agentNumber == "" || s.sender == nil {
		return
	}
	if err := s.sender.SendMessage(ctx, s.agentNumber, body); err != nil {
		slog.Warn("Sweeper failed to notify agent", "error", err)
	}
}
