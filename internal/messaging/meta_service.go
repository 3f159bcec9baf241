package messaging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/metawhatsapp"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

// MetaService implements Service on top of the Meta WhatsApp Cloud API.
// Outbound messages go through the Graph API client; inbound messages arrive
// on the webhook, which also answers Meta's verify-token handshake.
type MetaService struct {
	client      metawhatsapp.Sender
	verifyToken string
	appSecret   string
	receipts    chan models.Receipt
	responses   chan models.Response
	done        chan struct{}
	mu          sync.RWMutex
	stopped     bool
}

// NewMetaService creates a MetaService. verifyToken answers the webhook
// subscription handshake; appSecret, when set, enforces payload signatures.
func NewMetaService(client metawhatsapp.Sender, verifyToken, appSecret string) *MetaService {
	return &MetaService{
		client:      client,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		receipts:    make(chan models.Receipt, DefaultChannelBufferSize),
		responses:   make(chan models.Response, DefaultChannelBufferSize),
		done:        make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient reduces the recipient to +digits.
func (s *MetaService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// Start is a no-op: Meta pushes events to the webhook.
func (s *MetaService) Start(context.Context) error {
	return nil
}

// Stop closes channels and stops the service.
func (s *MetaService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.receipts)
		close(s.responses)
	}()
	return nil
}

// SendMessage sends a message via the Cloud API and emits a sent receipt.
func (s *MetaService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("MetaService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		return err
	}
	s.emitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// Receipts returns the channel of delivery receipts.
func (s *MetaService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns the channel of inbound messages.
func (s *MetaService) Responses() <-chan models.Response {
	return s.responses
}

// webhookPayload mirrors the slice of the Cloud API notification format the
// bot cares about: inbound text messages and their sender profile.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
				Statuses []struct {
					RecipientID string `json:"recipient_id"`
					Status      string `json:"status"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// WebhookHandler handles the Cloud API webhook: GET answers the verify-token
// handshake, POST carries message and status notifications.
func (s *MetaService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.handleVerification(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if s.appSecret != "" {
		if !metawhatsapp.ValidateSignature(s.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
			slog.Warn("Meta webhook signature validation failed")
			http.Error(w, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Error("Failed to decode Meta webhook payload", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	s.processPayload(payload)
	w.WriteHeader(http.StatusOK)
}

func (s *MetaService) handleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == s.verifyToken {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, q.Get("hub.challenge"))
		return
	}
	slog.Warn("Meta webhook verification failed", "mode", q.Get("hub.mode"))
	http.Error(w, "Forbidden", http.StatusForbidden)
}

func (s *MetaService) processPayload(payload webhookPayload) {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" {
					slog.Debug("MetaService ignoring non-text message", "from", msg.From, "type", msg.Type)
					continue
				}
				canonical, err := s.ValidateAndCanonicalizeRecipient(msg.From)
				if err != nil {
					slog.Warn("Meta webhook invalid sender", "from", msg.From, "error", err)
					continue
				}
				s.emitResponse(models.Response{
					From:       canonical,
					SenderName: names[msg.From],
					Body:       msg.Text.Body,
					Time:       time.Now().Unix(),
				})
			}
			for _, st := range change.Value.Statuses {
				var status models.MessageStatus
				switch st.Status {
				case "sent":
					status = models.MessageStatusSent
				case "delivered":
					status = models.MessageStatusDelivered
				case "read":
					status = models.MessageStatusRead
				case "failed":
					status = models.MessageStatusFailed
				default:
					continue
				}
				s.emitReceipt(models.Receipt{To: "+" + st.RecipientID, Status: status, Time: time.Now().Unix()})
			}
		}
	}
}

func (s *MetaService) emitReceipt(receipt models.Receipt) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("MetaService receipts channel blocked, dropping receipt", "to", receipt.To)
	}
}

func (s *MetaService) emitResponse(response models.Response) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("MetaService dropping inbound response (service stopped)", "from", response.From)
		return
	}

	select {
	case s.responses <- response:
		slog.Debug("MetaService emitted inbound response", "from", response.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("MetaService responses channel blocked, dropping message", "from", response.From)
	}
}
