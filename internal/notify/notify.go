// Package notify fans out handoff events to the team's Slack. Notifications
// are observability only: a nil Notifier is valid and does nothing, and
// delivery failures are logged, never surfaced to the conversation.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/slack-go/slack"
)

type webhookPoster func(ctx context.Context, url string, msg *slack.WebhookMessage) error

// Notifier posts handoff events to a Slack incoming webhook.
type Notifier struct {
	url  string
	post webhookPoster
}

// NewNotifier creates a notifier for the given webhook URL, falling back to
// the SLACK_WEBHOOK_URL environment variable. An empty URL yields a nil
// notifier, which disables notifications.
func NewNotifier(webhookURL string) *Notifier {
	if webhookURL == "" {
		webhookURL = os.Getenv("SLACK_WEBHOOK_URL")
	}
	if webhookURL == "" {
		return nil
	}
	return &Notifier{url: webhookURL, post: slack.PostWebhookContext}
}

// HandoffEnqueued reports a conversation joining the agent queue.
func (n *Notifier) HandoffEnqueued(ctx context.Context, id, senderName string, position, size int) {
	if n == nil {
		return
	}
	name := senderName
	if name == "" {
		name = id
	}
	n.send(ctx, fmt.Sprintf(":bell: *%s* (%s) pidió hablar con una persona. Posición %d de %d en la cola.", name, id, position, size))
}

// HandoffActivated reports a conversation becoming the active one.
func (n *Notifier) HandoffActivated(ctx context.Context, id, senderName string) {
	if n == nil {
		return
	}
	name := senderName
	if name == "" {
		name = id
	}
	n.send(ctx, fmt.Sprintf(":arrow_forward: *%s* (%s) pasó a atención.", name, id))
}

// LeadSubmitted reports a finalized lead.
func (n *Notifier) LeadSubmitted(ctx context.Context, id, category string) {
	if n == nil {
		return
	}
	n.send(ctx, fmt.Sprintf(":fire_extinguisher: Nueva consulta de %s (%s).", id, category))
}

func (n *Notifier) send(ctx context.Context, text string) {
	if err := n.post(ctx, n.url, &slack.WebhookMessage{Text: text}); err != nil {
		slog.Warn("Notifier failed to post to Slack", "error", err)
	}
}
