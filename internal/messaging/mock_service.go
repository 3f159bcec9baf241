package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

// MockService is an in-memory Service for tests: it records sends and lets
// tests inject inbound messages.
type MockService struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	SendErr      error

	receipts  chan models.Receipt
	responses chan models.Response
}

// SentMessage is one recorded send.
type SentMessage struct {
	To   string
	Body string
}

// NewMockService creates a mock messaging service.
func NewMockService() *MockService {
	return &MockService{
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

func (m *MockService) SendMessage(_ context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

func (m *MockService) Start(context.Context) error { return nil }

func (m *MockService) Stop() error {
	close(m.receipts)
	close(m.responses)
	return nil
}

func (m *MockService) Receipts() <-chan models.Receipt {
	return m.receipts
}

func (m *MockService) Responses() <-chan models.Response {
	return m.responses
}

// InjectResponse simulates an inbound user message.
func (m *MockService) InjectResponse(from, senderName, body string) {
	m.responses <- models.Response{From: from, SenderName: senderName, Body: body, Time: time.Now().Unix()}
}

// Sent returns a copy of the recorded sends.
func (m *MockService) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.SentMessages...)
}

// SentTo returns the recorded bodies sent to one recipient.
func (m *MockService) SentTo(to string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.SentMessages {
		if s.To == to {
			out = append(out, s.Body)
		}
	}
	return out
}
