package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/slack-go/slack"
)

func TestNilNotifierIsSafe(t *testing.T) {
	var n *Notifier
	ctx := context.Background()
	n.HandoffEnqueued(ctx, "+5491100000001", "Carla", 2, 3)
	n.HandoffActivated(ctx, "+5491100000001", "Carla")
	n.LeadSubmitted(ctx, "+5491100000001", "presupuesto")
}

func TestNewNotifier_EmptyURLDisables(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "")
	if n := NewNotifier(""); n != nil {
		t.Error("expected nil notifier without a webhook URL")
	}
	if n := NewNotifier("https://hooks.slack.com/services/T/B/x"); n == nil {
		t.Error("expected notifier with an explicit URL")
	}
}

func TestHandoffEnqueued_PostsPosition(t *testing.T) {
	var posted []string
	n := &Notifier{url: "https://hooks.example.com", post: func(_ context.Context, _ string, msg *slack.WebhookMessage) error {
		posted = append(posted, msg.Text)
		return nil
	}}

	n.HandoffEnqueued(context.Background(), "+5491100000001", "Carla", 2, 3)
	if len(posted) != 1 {
		t.Fatalf("expected one post, got %d", len(posted))
	}
	if !strings.Contains(posted[0], "Carla") || !strings.Contains(posted[0], "Posición 2 de 3") {
		t.Errorf("unexpected notification %q", posted[0])
	}
}

func TestSend_FailureDoesNotPanic(t *testing.T) {
	n := &Notifier{url: "https://hooks.example.com", post: func(context.Context, string, *slack.WebhookMessage) error {
		return errors.New("slack down")
	}}
	n.HandoffActivated(context.Background(), "+5491100000001", "")
}
