package messaging

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/twiliowhatsapp"
)

func TestTwilioService_ValidateAndCanonicalizeRecipient(t *testing.T) {
	s := NewTwilioService(twiliowhatsapp.NewMockClient())
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+54 9 11 0000-0001", "+5491100000001", false},
		{"5491100000001", "+5491100000001", false},
		{"", "", true},
		{"abc", "", true},
		{"123", "", true},
	}
	for _, tt := range tests {
		got, err := s.ValidateAndCanonicalizeRecipient(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ValidateAndCanonicalizeRecipient(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTwilioService_SendMessageRecordsReceipt(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	s := NewTwilioService(mock)

	if err := s.SendMessage(context.Background(), "+5491100000001", "hola"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].Body != "hola" {
		t.Fatalf("unexpected sends %+v", mock.SentMessages)
	}

	select {
	case r := <-s.Receipts():
		if r.Status != models.MessageStatusSent || r.To != "+5491100000001" {
			t.Errorf("unexpected receipt %+v", r)
		}
	default:
		t.Error("expected a sent receipt")
	}
}

func TestTwilioService_SendAfterStopFails(t *testing.T) {
	s := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := s.SendMessage(context.Background(), "+5491100000001", "hola"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}

func TestTwilioWebhookHandler_EmitsResponse(t *testing.T) {
	s := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+5491100000001")
	form.Set("Body", "hola")
	form.Set("ProfileName", "Carla")

	req := httptest.NewRequest("POST", "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.WebhookHandler(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	select {
	case resp := <-s.Responses():
		if resp.From != "+5491100000001" || resp.Body != "hola" || resp.SenderName != "Carla" {
			t.Errorf("unexpected response %+v", resp)
		}
	default:
		t.Fatal("expected an inbound response")
	}
}

func TestTwilioWebhookHandler_MissingFields(t *testing.T) {
	s := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+5491100000001")

	req := httptest.NewRequest("POST", "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.WebhookHandler(rec, req)

	if rec.Code != 400 {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestTwilioStatusWebhookHandler_EmitsReceipt(t *testing.T) {
	s := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("To", "whatsapp:+5491100000001")
	form.Set("MessageStatus", "delivered")

	req := httptest.NewRequest("POST", "/webhook/twilio/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.StatusWebhookHandler(rec, req)

	select {
	case r := <-s.Receipts():
		if r.Status != models.MessageStatusDelivered {
			t.Errorf("unexpected receipt %+v", r)
		}
	default:
		t.Fatal("expected a delivery receipt")
	}
}
